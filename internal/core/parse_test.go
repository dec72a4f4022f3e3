package core

import (
	"errors"
	"strings"
	"testing"
)

func TestParseImportFileCSV(t *testing.T) {
	data := []byte("title,price,city\nFlat A,1000,Haifa\nFlat B,2000,Tel Aviv\n")

	pf, err := ParseImportFile("listings.csv", data, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(pf.Headers) != 3 || pf.Headers[0] != "title" {
		t.Errorf("headers = %v", pf.Headers)
	}
	if len(pf.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(pf.Rows))
	}
	if pf.Rows[1][2] != "Tel Aviv" {
		t.Errorf("rows[1][2] = %q", pf.Rows[1][2])
	}
}

func TestParseImportFileSkipsLeadingBlankRows(t *testing.T) {
	data := []byte(",,\n,,\ntitle,price,city\nFlat A,1000,Haifa\n")

	pf, err := ParseImportFile("listings.csv", data, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pf.Headers[0] != "title" {
		t.Errorf("header row not found past blanks: %v", pf.Headers)
	}
	if len(pf.Rows) != 1 {
		t.Errorf("rows = %d, want 1", len(pf.Rows))
	}
}

func TestParseImportFileRowCap(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("title,price\n")
	for i := 0; i < 10; i++ {
		sb.WriteString("Flat,1000\n")
	}

	_, err := ParseImportFile("big.csv", []byte(sb.String()), 5)
	var capErr *RowCapError
	if !errors.As(err, &capErr) {
		t.Fatalf("error = %v, want RowCapError", err)
	}
	if capErr.Rows != 10 || capErr.Cap != 5 {
		t.Errorf("RowCapError = %+v", capErr)
	}

	// At exactly the cap the file passes.
	if _, err := ParseImportFile("big.csv", []byte(sb.String()), 10); err != nil {
		t.Errorf("file at the cap rejected: %v", err)
	}
}

func TestParseImportFileEmpty(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "zero bytes", data: nil},
		{name: "only blank rows", data: []byte(",,\n,,\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseImportFile("empty.csv", tt.data, 0)
			if err == nil {
				t.Fatal("expected error for empty file")
			}
			if !strings.Contains(err.Error(), "empty file") {
				t.Errorf("error = %v", err)
			}
		})
	}
}

func TestParseImportFileRaggedRows(t *testing.T) {
	// Rows with differing field counts must not abort the parse.
	data := []byte("title,price,city\nFlat A,1000\nFlat B,2000,Haifa,extra\n")

	pf, err := ParseImportFile("ragged.csv", data, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pf.Rows) != 2 {
		t.Errorf("rows = %d, want 2", len(pf.Rows))
	}
}

func TestSanitizeUTF8(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
		want  string
	}{
		{name: "valid passes through", input: []byte("hello, עולם"), want: "hello, עולם"},
		{name: "latin1 byte replaced", input: []byte{'c', 'a', 'f', 0xe9}, want: "caf�"},
		{name: "empty", input: []byte{}, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(sanitizeUTF8(tt.input)); got != tt.want {
				t.Errorf("sanitizeUTF8(%v) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
