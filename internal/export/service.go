package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/merbantech/ocr-indexer/internal/index"
)

// Service produces XLSX bytes for index exports.
type Service struct {
	idx    *index.Index
	logger *slog.Logger
}

func NewService(idx *index.Index, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{idx: idx, logger: logger}
}

// ExportIndexXLSX returns a workbook with one row per document record.
func (s *Service) ExportIndexXLSX(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	recs := s.idx.List(nil)

	f := excelize.NewFile()
	const sheet = "Documents"
	if idx, _ := f.GetSheetIndex(sheet); idx == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Original Filename",
		"Normalized Filename",
		"Status",
		"Extracted Name",
		"Extracted Account",
		"Extracted ID",
		"Classification Reason",
		"Stored Path",
		"Size (bytes)",
		"Modified At",
		"Error Detail",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		modified := ""
		if r.ModifiedAt != nil {
			modified = r.ModifiedAt.Format(time.RFC3339)
		}
		values := []any{
			r.OriginalFilename,
			r.NormalizedFilename,
			string(r.Status),
			r.ExtractedFields["name"],
			r.ExtractedFields["account"],
			r.ExtractedFields["id"],
			r.ClassificationReason,
			r.StoredPath,
			r.SizeBytes,
			modified,
			r.ErrorDetail,
		}
		for i, v := range values {
			cell, _ := excelize.CoordinatesToCellName(i+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	s.logger.Info("exported index", "records", len(recs), "duration_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}
