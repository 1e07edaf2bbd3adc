package nem12

import (
	"bytes"
	"fmt"
	"io"
	"iter"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"

	"github.com/yurifrl/nem12sql/pkg/models"
)

// Worksheets are bounded by the format itself; this caps reads well above
// any real NEM12 export.
const maxXLSRows = 100000

// FileType identifies the physical container a NEM12 file arrives in.
type FileType string

const (
	TypeCSV FileType = "csv"
	TypeXLS FileType = "xls"
)

// DetectFileType picks the input decoder from the file name extension.
// NEM12 payloads are normally plain CSV but retailers ship them inside
// Excel worksheets often enough to support both.
func DetectFileType(filename string) FileType {
	if strings.ToLower(filepath.Ext(filename)) == ".xls" {
		return TypeXLS
	}
	return TypeCSV
}

// ParseXLS streams readings out of a NEM12 worksheet. Each worksheet row is
// treated as one record, cells as fields, and fed through the same state
// machine as CSV input.
func (p *Parser) ParseXLS(data []byte) iter.Seq2[models.MeterReading, error] {
	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return func(yield func(models.MeterReading, error) bool) {
			yield(models.MeterReading{}, fmt.Errorf("open workbook: %w", err))
		}
	}
	return p.stream(&xlsSource{rows: workbook.ReadAllCells(maxXLSRows)})
}

// xlsSource replays pre-read worksheet rows as records. The xls library
// loads the sheet up front, so laziness here only spans the expansion of
// rows into readings.
type xlsSource struct {
	rows [][]string
	next int
}

func (s *xlsSource) Next() ([]string, int, error) {
	if s.next >= len(s.rows) {
		return nil, 0, io.EOF
	}
	row := s.rows[s.next]
	s.next++
	return row, s.next, nil
}
