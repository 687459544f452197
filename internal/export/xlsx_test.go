package export

import (
	"bytes"
	"testing"

	"github.com/xuri/excelize/v2"
)

func TestWorkbook(t *testing.T) {
	columns := []Column{{Title: "SKU", Width: 14}, {Title: "Quantity"}}
	rows := [][]any{
		{"INK-1", 4},
		{"DRUM-2", 0},
	}

	data, err := Workbook("Inventory", columns, rows)
	if err != nil {
		t.Fatalf("Workbook error: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("OpenReader error: %v", err)
	}
	defer f.Close()

	if sheets := f.GetSheetList(); len(sheets) != 1 || sheets[0] != "Inventory" {
		t.Fatalf("sheets = %v, want [Inventory]", sheets)
	}

	got, err := f.GetRows("Inventory")
	if err != nil {
		t.Fatalf("GetRows error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("rows = %d, want 3", len(got))
	}
	if got[0][0] != "SKU" || got[0][1] != "Quantity" {
		t.Fatalf("header = %v", got[0])
	}
	if got[1][0] != "INK-1" || got[1][1] != "4" {
		t.Fatalf("first row = %v", got[1])
	}
}

func TestWorkbookRejectsWideRows(t *testing.T) {
	if _, err := Workbook("Data", []Column{{Title: "A"}}, [][]any{{1, 2}}); err == nil {
		t.Fatal("expected error for a row wider than the header")
	}
}
