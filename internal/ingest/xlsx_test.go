package ingest

import (
	"archive/zip"
	"bytes"
	"strings"
	"testing"
)

func buildWorkbook(t *testing.T, sheets map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	write := func(name, body string) {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	for name, body := range sheets {
		write(name, body)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

const testWorkbookXML = `<?xml version="1.0" encoding="UTF-8"?>
<workbook xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">
<sheets><sheet name="Notes" sheetId="1" r:id="rId1"/><sheet name="Admissions" sheetId="2" r:id="rId2"/></sheets>
</workbook>`

const testRelsXML = `<?xml version="1.0" encoding="UTF-8"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Target="worksheets/sheet1.xml"/>
<Relationship Id="rId2" Target="/xl/worksheets/sheet2.xml"/>
</Relationships>`

const testSharedXML = `<?xml version="1.0" encoding="UTF-8"?>
<sst xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"><si><t>outcome</t></si><si><t>Dead</t></si></sst>`

const testSheet1XML = `<worksheet><sheetData><row r="1"><c r="A1" t="inlineStr"><is><t>free text</t></is></c></row></sheetData></worksheet>`

const testSheet2XML = `<worksheet><sheetData>
<row r="1"><c r="A1" t="s"><v>0</v></c><c r="C1" t="inlineStr"><is><t>admission_date</t></is></c></row>
<row r="2"/>
<row r="3"><c r="A3" t="s"><v>1</v></c><c r="C3"><v>45901</v></c></row>
</sheetData></worksheet>`

func testWorkbook(t *testing.T) []byte {
	return buildWorkbook(t, map[string]string{
		"xl/workbook.xml":            testWorkbookXML,
		"xl/_rels/workbook.xml.rels": testRelsXML,
		"xl/sharedStrings.xml":       testSharedXML,
		"xl/worksheets/sheet1.xml":   testSheet1XML,
		"xl/worksheets/sheet2.xml":   testSheet2XML,
	})
}

func TestReadXLSXBySheetName(t *testing.T) {
	tab, err := ReadXLSX("audit.xlsx", testWorkbook(t), "admissions", 0, Options{})
	if err != nil {
		t.Fatalf("ReadXLSX: %v", err)
	}
	if got := strings.Join(tab.Header, "|"); got != "outcome||admission_date" {
		t.Fatalf("header = %q", got)
	}
	if tab.Len() != 1 {
		t.Fatalf("rows = %d, want 1 (empty row skipped)", tab.Len())
	}
	if tab.Value(0, 0) != "Dead" || tab.Value(0, 2) != "45901" {
		t.Fatalf("row = %#v", tab.Rows[0])
	}
}

func TestReadXLSXByIndexAndMissingSheet(t *testing.T) {
	tab, err := ReadXLSX("audit.xlsx", testWorkbook(t), "", 1, Options{})
	if err != nil {
		t.Fatalf("ReadXLSX: %v", err)
	}
	if tab.Header[0] != "free text" {
		t.Fatalf("expected first sheet, got %#v", tab.Header)
	}
	if _, err := ReadXLSX("audit.xlsx", testWorkbook(t), "Deaths", 0, Options{}); err == nil || !strings.Contains(err.Error(), "Admissions") {
		t.Fatalf("expected missing-sheet error listing available sheets, got %v", err)
	}
}

func TestReadDispatchesXLSX(t *testing.T) {
	tab, err := Read("audit.xlsx", bytes.NewReader(testWorkbook(t)), Options{})
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if tab.Name != "audit.xlsx" {
		t.Fatalf("name = %q", tab.Name)
	}
}

func TestXLSXRelationshipPathNormalization(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"/xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"xl/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"/worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"worksheets/sheet1.xml", "xl/worksheets/sheet1.xml"},
		{"styles.xml", "xl/styles.xml"},
	}
	for _, tt := range tests {
		if got := normalizeRelPath(tt.input); got != tt.expected {
			t.Errorf("normalizeRelPath(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestColIndexFromRef(t *testing.T) {
	for ref, want := range map[string]int{"A1": 0, "C12": 2, "AA3": 26, "": -1} {
		if got := colIndexFromRef(ref); got != want {
			t.Errorf("colIndexFromRef(%q) = %d, want %d", ref, got, want)
		}
	}
}
