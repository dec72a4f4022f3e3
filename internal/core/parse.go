package core

// parse.go turns uploaded spreadsheet files into a header row plus raw data
// rows. CSV goes through encoding/csv with UTF-8 sanitization; XLSX goes
// through excelize, reading the first sheet. The per-batch row cap is
// enforced here: oversized files are rejected outright, never truncated.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
)

// ParsedFile is the raw content of one import file.
type ParsedFile struct {
	FileName string
	Headers  []string
	Rows     [][]string
}

// ParseImportFile parses a CSV or XLSX file. The first non-blank row is the
// header; rowCap bounds the number of data rows (0 means no cap).
func ParseImportFile(fileName string, data []byte, rowCap int) (*ParsedFile, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty file")
	}

	var records [][]string
	var err error

	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		records, err = parseXLSX(data)
	default:
		records, err = parseCSV(sanitizeUTF8(data))
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", fileName, err)
	}

	// Skip leading blank rows before the header
	start := 0
	for start < len(records) && isEmptyRow(records[start]) {
		start++
	}
	if start >= len(records) {
		return nil, fmt.Errorf("empty file: no header row found")
	}

	headers := records[start]
	rows := records[start+1:]

	if rowCap > 0 && len(rows) > rowCap {
		return nil, &RowCapError{Rows: len(rows), Cap: rowCap}
	}

	return &ParsedFile{
		FileName: fileName,
		Headers:  headers,
		Rows:     rows,
	}, nil
}

func parseCSV(data []byte) ([][]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r.ReadAll()
}

func parseXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	return f.GetRows(sheets[0])
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the replacement rune.
// Windows exports frequently carry Latin-1 bytes that would otherwise break
// the CSV reader downstream.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
