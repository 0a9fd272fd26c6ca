package excel

import (
	"context"
	"math"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

func workbook(t *testing.T, sheets map[string][][]any) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	first := true
	for name, rows := range sheets {
		if first {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				t.Fatalf("rename sheet: %v", err)
			}
			first = false
		} else if _, err := f.NewSheet(name); err != nil {
			t.Fatalf("new sheet: %v", err)
		}
		for i, row := range rows {
			cell, _ := excelize.CoordinatesToCellName(1, i+1)
			values := row
			if err := f.SetSheetRow(name, cell, &values); err != nil {
				t.Fatalf("set row: %v", err)
			}
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

func TestSheetsBOQSchema(t *testing.T) {
	data := workbook(t, map[string][][]any{
		"Eelarve": {
			{"Materjal", "Kogus", "Ühik", "Hind"},
			{"Betoon C25/30", 10, "m³", 85.00},
			{"Teras B500B", 500, "kg", 0.85},
			{"", 3, "tk", 1},
		},
	})

	sheets, err := NewExtractor(nil).Sheets(context.Background(), data)
	if err != nil {
		t.Fatalf("Sheets() error = %v", err)
	}
	if len(sheets) != 1 {
		t.Fatalf("expected 1 sheet, got %d", len(sheets))
	}
	sheet := sheets[0]
	if sheet.Schema != domain.SchemaBOQ {
		t.Fatalf("expected boq schema, got %s", sheet.Schema)
	}
	if sheet.Columns[RoleMaterial] != "Materjal" || sheet.Columns[RoleQuantity] != "Kogus" ||
		sheet.Columns[RoleUnit] != "Ühik" || sheet.Columns[RolePrice] != "Hind" {
		t.Fatalf("unexpected column mapping %v", sheet.Columns)
	}
	if len(sheet.ExtractedItems) != 2 {
		t.Fatalf("expected blank material row to be skipped, got %d items", len(sheet.ExtractedItems))
	}
	concrete := sheet.ExtractedItems[0]
	if concrete.Material != "Betoon C25/30" || concrete.QuantityValue() != 10 || concrete.Unit != "m³" || concrete.UnitPrice != 85 {
		t.Fatalf("unexpected first item %+v", concrete)
	}
	steel := sheet.ExtractedItems[1]
	if steel.QuantityValue() != 500 || steel.UnitPrice != 0.85 || steel.SourceSheet != "Eelarve" {
		t.Fatalf("unexpected second item %+v", steel)
	}
	if sheet.RowCount != 3 || len(sheet.Preview) != 3 {
		t.Fatalf("unexpected row count %d / preview %d", sheet.RowCount, len(sheet.Preview))
	}
	if sheet.Preview[2]["Materjal"] != nil {
		t.Fatalf("expected empty preview cell to be nil, got %v", sheet.Preview[2]["Materjal"])
	}
}

func TestSheetsCADExportSchema(t *testing.T) {
	rows := [][]any{{"Handle", "ParentID", "Color", "Linetype", "Lineweight", "Name", "Area", "Length"}}
	for i := 0; i < 100; i++ {
		rows = append(rows, []any{i + 1, 0, "ByLayer", "Continuous", 25, "New_Ext_Wall_Pen_No_2__x", 2500000, 0})
	}
	data := workbook(t, map[string][][]any{"Layers": rows})

	sheets, err := NewExtractor(nil).Sheets(context.Background(), data)
	if err != nil {
		t.Fatalf("Sheets() error = %v", err)
	}
	sheet := sheets[0]
	if sheet.Schema != domain.SchemaCADExport {
		t.Fatalf("expected cad_export schema, got %s", sheet.Schema)
	}
	if len(sheet.ExtractedItems) != 100 {
		t.Fatalf("expected 100 raw items, got %d", len(sheet.ExtractedItems))
	}
	item := sheet.ExtractedItems[0]
	if item.Area == nil || *item.Area != 2500000 {
		t.Fatalf("expected area 2500000, got %v", item.Area)
	}
	if item.QuantityValue() != 0 || item.Unit != domain.UnitDefault {
		t.Fatalf("unexpected raw CAD item %+v", item)
	}
	if len(sheet.Preview) != previewRows {
		t.Fatalf("expected preview capped at %d, got %d", previewRows, len(sheet.Preview))
	}
}

func TestSheetsReadsRawValuesOfFormattedCells(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"Materjal", "Kogus", "Ühik", "Hind"},
		{"Betoon C25/30", 1275, "m³", 85},
		{"Teras B500B", 0.125, "t", 920},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow("Sheet1", cell, &row); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	thousands, err := f.NewStyle(&excelize.Style{NumFmt: 3})
	if err != nil {
		t.Fatalf("new style: %v", err)
	}
	twoDecimals, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		t.Fatalf("new style: %v", err)
	}
	if err := f.SetCellStyle("Sheet1", "B2", "B2", thousands); err != nil {
		t.Fatalf("set style: %v", err)
	}
	if err := f.SetCellStyle("Sheet1", "B3", "B3", twoDecimals); err != nil {
		t.Fatalf("set style: %v", err)
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	sheets, err := NewExtractor(nil).Sheets(context.Background(), buf.Bytes())
	if err != nil {
		t.Fatalf("Sheets() error = %v", err)
	}
	items := sheets[0].ExtractedItems
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if got := items[0].QuantityValue(); got != 1275 {
		t.Fatalf("expected #,##0 cell to read 1275, got %v", got)
	}
	if got := items[1].QuantityValue(); got != 0.125 {
		t.Fatalf("expected 0.00 cell to read 0.125, got %v", got)
	}
}

func TestSheetsKeepsInfiniteQuantity(t *testing.T) {
	data := workbook(t, map[string][][]any{
		"Data": {
			{"Material", "Quantity", "Unit", "Price"},
			{"Concrete", "inf", "m3", "nan"},
			{"Brick", "12,5", "tk", "0,45"},
		},
	})

	sheets, err := NewExtractor(nil).Sheets(context.Background(), data)
	if err != nil {
		t.Fatalf("Sheets() error = %v", err)
	}
	items := sheets[0].ExtractedItems
	if items[0].Quantity == nil || !math.IsInf(*items[0].Quantity, 1) {
		t.Fatalf("expected +Inf quantity to be kept, got %v", items[0].Quantity)
	}
	if items[0].UnitPrice != 0 {
		t.Fatalf("expected invalid price to default to 0, got %v", items[0].UnitPrice)
	}
	if items[1].QuantityValue() != 12.5 || items[1].UnitPrice != 0.45 {
		t.Fatalf("expected decimal comma parsing, got %+v", items[1])
	}
}

func TestSheetsWithoutMaterialColumnYieldNoItems(t *testing.T) {
	data := workbook(t, map[string][][]any{
		"Notes": {{"Foo", "Bar"}, {"x", "y"}},
	})
	sheets, err := NewExtractor(nil).Sheets(context.Background(), data)
	if err != nil {
		t.Fatalf("Sheets() error = %v", err)
	}
	if len(sheets[0].ExtractedItems) != 0 || len(sheets[0].Warnings) != 1 {
		t.Fatalf("expected no items and a warning, got %+v", sheets[0])
	}
}

func TestSheetsRejectsInvalidWorkbook(t *testing.T) {
	_, err := NewExtractor(nil).Sheets(context.Background(), []byte("not a workbook"))
	if !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMapColumnsFirstUnassignedHeaderWins(t *testing.T) {
	got := mapColumns([]string{"Nr", "Description", "Item code", "Qty", "Unit", "Unit price", "Total cost"})
	want := map[string]string{
		RoleMaterial: "Description",
		RoleQuantity: "Qty",
		RoleUnit:     "Unit",
		RolePrice:    "Unit price",
	}
	for role, header := range want {
		if got[role] != header {
			t.Fatalf("role %s mapped to %q, want %q", role, got[role], header)
		}
	}
}

func TestParseFloat(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"85", 85, true},
		{" 0,85 ", 0.85, true},
		{"1,234.50", 1234.5, true},
		{"2 500 000", 2500000, true},
		{"12 €", 12, true},
		{"abc", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, ok := parseFloat(tc.raw)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("parseFloat(%q) = %v, %v; want %v, %v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
	if safeFloat("NaN") != nil || safeFloat("-inf") != nil {
		t.Fatalf("expected non-finite values to be rejected by safeFloat")
	}
}
