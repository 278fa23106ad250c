// Package parser reads uploaded spreadsheets and CSV files into header-keyed rows.
package parser

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"topic_importer/internal/models"
)

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("file has no header row")
)

// SupportedExtension reports whether name has an extension ParseFile can read.
func SupportedExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".xlsx", ".xlsm", ".xls":
		return true
	}
	return false
}

// ParseFile reads the file at path. The format is chosen from originalName,
// since uploaded temp files lose their extension. Rows are returned in file
// order with every header present; cells missing from a short row are "".
func ParseFile(path, originalName string) ([]models.SourceRow, []string, error) {
	ext := strings.ToLower(filepath.Ext(originalName))
	if !SupportedExtension(originalName) {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	var records [][]string
	if ext == ".csv" {
		records, err = readCSV(f)
	} else {
		records, err = readSpreadsheet(f)
	}
	if err != nil {
		return nil, nil, err
	}
	return buildRows(records)
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := bufio.NewReader(r)
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func readSpreadsheet(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from %s: %w", sheets[0], err)
	}
	return rows, nil
}

// buildRows treats the first non-empty record as the header row.
func buildRows(records [][]string) ([]models.SourceRow, []string, error) {
	var headers []string
	var rows []models.SourceRow

	for _, record := range records {
		if isEmpty(record) {
			continue
		}
		if headers == nil {
			headers = make([]string, len(record))
			for i, h := range record {
				headers[i] = strings.TrimSpace(h)
			}
			continue
		}

		values := make(map[string]any, len(headers))
		for i, h := range headers {
			if h == "" {
				continue
			}
			cell := ""
			if i < len(record) {
				cell = record[i]
			}
			values[h] = cell
		}
		rows = append(rows, models.SourceRow{RowNumber: len(rows) + 1, Values: values})
	}

	if headers == nil {
		return nil, nil, ErrEmptyFile
	}
	return rows, headers, nil
}

func isEmpty(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
