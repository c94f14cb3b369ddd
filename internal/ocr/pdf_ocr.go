package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func (e *Extractor) pdfToText(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	// pdftotext -layout -enc UTF-8 -eol unix <path> -
	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}
	text = string(out)
	// A form-feed \f is used as page separator by default
	pages = 1 + strings.Count(text, "\f")
	return text, pages, nil, nil
}

// pdfToOCR rasterizes every page and runs tesseract on each rendered image,
// in page order. A page that fails to OCR contributes an empty string so one
// corrupt page does not sink an otherwise readable document; rasterization
// failure for the file as a whole is an error.
func (e *Extractor) pdfToOCR(ctx context.Context, path string) (text string, pages int, warnings []string, err error) {
	tmpDir, err := os.MkdirTemp("", "oi-pp-*")
	if err != nil {
		return "", 0, nil, err
	}
	defer func() {
		if rerr := os.RemoveAll(tmpDir); rerr != nil {
			e.logger.Warn("failed to remove temp dir", "path", tmpDir, "error", rerr)
		}
	}()

	prefix := filepath.Join(tmpDir, "page")
	// pdftoppm -r 300 -png <in.pdf> <tmp/page>
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", fmt.Sprintf("%d", e.cfg.DPI), "-png", path, prefix)
	if err != nil {
		return "", 0, []string{string(errb)}, err
	}

	// collect generated pngs (prefix-1.png, prefix-2.png, ...)
	matches, _ := filepath.Glob(prefix + "-*.png")
	sort.Strings(matches)
	if e.cfg.MaxPages > 0 && len(matches) > e.cfg.MaxPages {
		matches = matches[:e.cfg.MaxPages]
	}
	if len(matches) == 0 {
		return "", 0, []string{"pdftoppm produced no images"}, fmt.Errorf("no pages rendered")
	}

	var warns []string
	pageTexts := make([]string, 0, len(matches))
	for _, img := range matches {
		txt, w, perr := e.tesseractOCR(ctx, img)
		warns = append(warns, w...)
		if perr != nil {
			if ctx.Err() != nil {
				// a cancelled context fails every remaining page; surface it
				return "", 0, warns, ctx.Err()
			}
			warns = append(warns, fmt.Sprintf("page %d: %v", len(pageTexts)+1, perr))
			pageTexts = append(pageTexts, "")
			continue
		}
		pageTexts = append(pageTexts, txt)
	}
	// \f keeps a clear page break marker
	return strings.Join(pageTexts, "\n\f\n"), len(matches), warns, nil
}
