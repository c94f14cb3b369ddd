package store

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	reUnsafe     = regexp.MustCompile(`[\\/:*?"<>|]`)
	reWhitespace = regexp.MustCompile(`\s+`)
)

// NormalizeFilename derives the canonical display name for a stored artifact:
// lowercased, trimmed, whitespace collapsed to underscores, filesystem-unsafe
// characters removed, extension stripped. Deterministic.
func NormalizeFilename(original string) string {
	base := filepath.Base(original)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.ToLower(strings.TrimSpace(base))
	base = reUnsafe.ReplaceAllString(base, "")
	base = reWhitespace.ReplaceAllString(base, "_")
	if base == "" {
		base = "unnamed"
	}
	return base
}

// StoredBase is the artifact base name inside a bucket directory. The hash
// suffix is derived from the raw original filename, so originals that fold to
// the same normalized form ("Report.pdf" vs "report.pdf") still get distinct
// stored names and cannot overwrite each other.
func StoredBase(original string) string {
	sum := sha256.Sum256([]byte(filepath.Base(original)))
	return NormalizeFilename(original) + "-" + hex.EncodeToString(sum[:4])
}

// StoredName is the artifact filename inside a bucket directory. Every
// stored artifact is a PDF regardless of the original format.
func StoredName(original string) string {
	return StoredBase(original) + ".pdf"
}
