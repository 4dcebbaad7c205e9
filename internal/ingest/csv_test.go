package ingest_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/mortality-audit/internal/ingest"
)

func TestReadFileCSV(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "september.csv")
	content := "patient_id, sex ,outcome\n" +
		"1,M,Dead\n" +
		"2,F\n" +
		",,\n" +
		"3,F,Alive,extra\n"
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	tab, err := ingest.ReadFile(p, ingest.Options{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if tab.Name != "september.csv" {
		t.Fatalf("name = %q", tab.Name)
	}
	if got := strings.Join(tab.Header, "|"); got != "patient_id|sex|outcome" {
		t.Fatalf("header = %q", got)
	}
	if tab.Len() != 3 {
		t.Fatalf("rows = %d, want 3 (blank row skipped)", tab.Len())
	}
	col, ok := tab.Column("outcome")
	if !ok {
		t.Fatalf("outcome column missing")
	}
	if v := tab.Value(1, col); v != "" {
		t.Fatalf("short row should be padded, got %q", v)
	}
	if len(tab.Rows[2]) != 3 {
		t.Fatalf("long row should be cut to header width, got %d cells", len(tab.Rows[2]))
	}
}

func TestReadCSVStripsBOMAndSniffsSemicolon(t *testing.T) {
	data := "\xef\xbb\xbfadmission_date;outcome\n2025-09-01;Dead\n"
	tab, err := ingest.Read("export.csv", strings.NewReader(data), ingest.Options{})
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if _, ok := tab.Column("admission_date"); !ok {
		t.Fatalf("BOM not stripped from header: %#v", tab.Header)
	}
	if tab.Value(0, 1) != "Dead" {
		t.Fatalf("semicolon not sniffed: %#v", tab.Rows)
	}
}

func TestReadRejectsUnsupportedAndEmpty(t *testing.T) {
	if _, err := ingest.Read("notes.docx", strings.NewReader("x"), ingest.Options{}); !errors.Is(err, ingest.ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported, got %v", err)
	}
	if _, err := ingest.Read("empty.csv", strings.NewReader(""), ingest.Options{}); !errors.Is(err, ingest.ErrEmpty) {
		t.Fatalf("expected ErrEmpty, got %v", err)
	}
}

func TestReadEnforcesMaxRows(t *testing.T) {
	data := "outcome\nDead\nAlive\nAlive\n"
	_, err := ingest.Read("big.csv", strings.NewReader(data), ingest.Options{MaxRows: 2})
	if !errors.Is(err, ingest.ErrTooManyRows) {
		t.Fatalf("expected ErrTooManyRows, got %v", err)
	}
}

func TestReadCorruptCSV(t *testing.T) {
	data := "outcome,primary_diagnosis\n\"Dead,Sepsis\n"
	if _, err := ingest.Read("bad.csv", strings.NewReader(data), ingest.Options{}); err == nil {
		t.Fatalf("expected error for unterminated quote")
	}
}

func TestWriteCSVRoundTrip(t *testing.T) {
	src := ingest.NewTable("sample.csv", []string{"outcome", "primary_diagnosis"}, [][]string{
		{"Dead", "Neonatal Sepsis, late onset"},
		{"Alive", "Severe Pneumonia"},
	})
	var buf bytes.Buffer
	if err := ingest.WriteCSV(&buf, src); err != nil {
		t.Fatalf("write: %v", err)
	}
	back, err := ingest.Read("sample.csv", &buf, ingest.Options{})
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if back.Len() != 2 || back.Value(0, 1) != "Neonatal Sepsis, late onset" {
		t.Fatalf("round trip mismatch: %#v", back.Rows)
	}
}
