package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/inimene84/cad2data-pipeline/internal/core/cad"
	"github.com/inimene84/cad2data-pipeline/internal/core/catalog"
	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/cache"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/extractor/excel"
	"github.com/inimene84/cad2data-pipeline/internal/infrastructure/repository/memory"
)

func boqWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]any{
		{"Materjal", "Kogus", "Ühik", "Hind"},
		{"Betoon C25/30", 10, "m³", 85.00},
		{"Teras B500B", 500, "kg", 0.85},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		values := row
		if err := f.SetSheetRow("Sheet1", cell, &values); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf.Bytes()
}

type extractionFixture struct {
	uc        *ExtractionUseCase
	materials *memory.MaterialStore
	pdf       *pdfFake
	excel     *excelFake
	metrics   *metricsFake
}

func newExtractionFixture(excelExtractor *excelFake) extractionFixture {
	c := catalog.Default(0, "")
	fx := extractionFixture{
		materials: memory.NewMaterialStore(nil),
		pdf:       &pdfFake{},
		excel:     excelExtractor,
		metrics:   &metricsFake{},
	}
	fx.uc = NewExtractionUseCase(fx.pdf, fx.excel, cad.NewAggregator(c), fx.materials, cache.NewMemory(), inlinePool{},
		ExtractionOptions{Metrics: fx.metrics})
	return fx
}

func TestExtractExcelBOQPersistsMaterials(t *testing.T) {
	c := catalog.Default(0, "")
	materials := memory.NewMaterialStore(nil)
	uc := NewExtractionUseCase(&pdfFake{}, excel.NewExtractor(nil), cad.NewAggregator(c), materials, cache.NewMemory(), inlinePool{},
		ExtractionOptions{})

	result, err := uc.ExtractExcel(context.Background(), "eelarve.xlsx", boqWorkbook(t))
	if err != nil {
		t.Fatalf("ExtractExcel() error = %v", err)
	}
	if len(result.ExtractedItems) != 2 || result.MaterialsSaved != 2 {
		t.Fatalf("expected 2 items and 2 saved, got %d/%d", len(result.ExtractedItems), result.MaterialsSaved)
	}
	if result.MaterialIDs[1] != result.MaterialIDs[0]+1 {
		t.Fatalf("expected contiguous ids, got %v", result.MaterialIDs)
	}
	stored, _ := materials.Get(context.Background(), result.MaterialIDs[1])
	if stored.Name != "Teras B500B" || stored.Price != 0.85 || stored.Category != domain.CategoryExtracted ||
		stored.SourceFile == nil || *stored.SourceFile != "eelarve.xlsx" {
		t.Fatalf("unexpected stored material %+v", stored)
	}
	if _, ok := result.SheetsData["Sheet1"]; !ok || result.SheetOrder[0] != "Sheet1" {
		t.Fatalf("expected sheet data keyed by name, got %v", result.SheetOrder)
	}
	if result.Cached {
		t.Fatalf("first extraction must not be cached")
	}
}

func TestExtractExcelAggregatesCADSheet(t *testing.T) {
	area := 2_500_000.0
	zero := 0.0
	items := make([]domain.ExtractedItem, 100)
	for i := range items {
		items[i] = domain.ExtractedItem{Material: "New_Ext_Wall_Pen_No_2__x", Area: &area, Length: &zero, SourceSheet: "Layers"}
	}
	fx := newExtractionFixture(&excelFake{sheets: []domain.SheetResult{{SheetName: "Layers", Schema: domain.SchemaCADExport, ExtractedItems: items}}})

	result, err := fx.uc.ExtractExcel(context.Background(), "plan.xlsx", []byte("cad"))
	if err != nil {
		t.Fatalf("ExtractExcel() error = %v", err)
	}
	if len(result.ExtractedItems) != 1 || !result.SheetsData["Layers"].Aggregated {
		t.Fatalf("expected one aggregated item, got %+v", result.ExtractedItems)
	}
	wall := result.ExtractedItems[0]
	if wall.Material != "Ext Wall 2" || wall.QuantityValue() != 250 || wall.Unit != domain.UnitSquareMetre ||
		wall.UnitPrice != 21250 || wall.Category != domain.CategoryWalls || wall.ElementCount != 100 {
		t.Fatalf("unexpected aggregated item %+v", wall)
	}

	stored, _ := fx.materials.Get(context.Background(), result.MaterialIDs[0])
	if stored.Price != 85 || stored.Quantity != 250 || stored.Category != domain.CategoryWalls {
		t.Fatalf("expected per-unit cost to be stored, got %+v", stored)
	}
}

func TestExtractExcelSecondCallServedFromCache(t *testing.T) {
	fx := newExtractionFixture(&excelFake{sheets: []domain.SheetResult{{
		SheetName:      "Data",
		ExtractedItems: []domain.ExtractedItem{{Material: "Betoon", Quantity: ptr(10.0), Unit: "m³", UnitPrice: 85}},
	}}})
	clock := &stepClock{t: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), step: time.Millisecond}
	fx.uc.now = clock.Now
	ctx := context.Background()

	first, err := fx.uc.ExtractExcel(ctx, "a.xlsx", []byte("same bytes"))
	if err != nil {
		t.Fatalf("first ExtractExcel() error = %v", err)
	}
	second, err := fx.uc.ExtractExcel(ctx, "a.xlsx", []byte("same bytes"))
	if err != nil {
		t.Fatalf("second ExtractExcel() error = %v", err)
	}

	if !second.Cached || first.Cached {
		t.Fatalf("expected only the second call to be cached")
	}
	if second.ProcessingTimeSeconds >= first.ProcessingTimeSeconds {
		t.Fatalf("expected cached call to be faster: %v >= %v", second.ProcessingTimeSeconds, first.ProcessingTimeSeconds)
	}
	if fx.excel.calls != 1 {
		t.Fatalf("expected extractor to run once, ran %d times", fx.excel.calls)
	}
	if second.MaterialsSaved != first.MaterialsSaved || len(second.ExtractedItems) != 1 || second.ExtractedItems[0].Material != "Betoon" {
		t.Fatalf("cached payload differs: %+v", second)
	}
	all, _ := fx.materials.List(ctx, domain.MaterialFilter{})
	if len(all) != 1 {
		t.Fatalf("cache hit must not persist again, store has %d", len(all))
	}
	if len(fx.metrics.cacheHits) != 1 || fx.metrics.extraction[0] != "excel:success" || fx.metrics.extraction[1] != "excel:cached" {
		t.Fatalf("unexpected metrics %+v", fx.metrics)
	}

	third, _ := fx.uc.ExtractPDF(ctx, "a.pdf", []byte("same bytes"))
	if third.Cached {
		t.Fatalf("operation must be part of the cache key")
	}
}

func TestExtractExcelSkipsInvalidItems(t *testing.T) {
	fx := newExtractionFixture(&excelFake{sheets: []domain.SheetResult{{
		SheetName: "Data",
		ExtractedItems: []domain.ExtractedItem{
			{Material: "Betoon", Quantity: ptr(math.Inf(1)), UnitPrice: 85},
			{Material: "Liiv", Quantity: ptr(2.0), UnitPrice: 18},
			{Material: "Kruus", Quantity: ptr(-1.0), UnitPrice: 20},
		},
	}}})

	result, err := fx.uc.ExtractExcel(context.Background(), "a.xlsx", []byte("x"))
	if err != nil {
		t.Fatalf("ExtractExcel() error = %v", err)
	}
	if len(result.ExtractedItems) != 3 || result.MaterialsSaved != 1 {
		t.Fatalf("expected 3 items with 1 saved, got %d/%d", len(result.ExtractedItems), result.MaterialsSaved)
	}
}

func TestExtractPDFCollectsPages(t *testing.T) {
	fx := newExtractionFixture(&excelFake{})
	fx.pdf.pages = []domain.PageResult{
		{Page: 1, Method: domain.PageMethodOCR, ConstructionItems: []domain.ExtractedItem{{Material: "concrete", Quantity: ptr(12.0), Unit: "unit", SourcePage: 1}}},
		{Page: 2, Method: domain.PageMethodFailed},
	}

	result, err := fx.uc.ExtractPDF(context.Background(), "scan.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("ExtractPDF() error = %v", err)
	}
	if len(result.Pages) != 2 || len(result.ExtractedItems) != 1 || result.MaterialsSaved != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if result.ExtractedItems[0].Material != "concrete" || result.ExtractedItems[0].SourcePage != 1 {
		t.Fatalf("unexpected item %+v", result.ExtractedItems[0])
	}
}

func TestExtractErrors(t *testing.T) {
	fx := newExtractionFixture(&excelFake{err: domain.WrapError(domain.ErrValidation, "open", errors.New("bad zip"))})
	ctx := context.Background()

	if _, err := fx.uc.ExtractPDF(ctx, "a.pdf", nil); !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for empty upload, got %v", err)
	}
	if _, err := fx.uc.ExtractExcel(ctx, "a.xlsx", []byte("junk")); !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fx.pdf.err = domain.WrapError(domain.ErrValidation, "open pdf", errors.New("not a pdf"))
	if _, err := fx.uc.ExtractPDF(ctx, "a.pdf", []byte("junk")); !domain.IsKind(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	fx.uc.pool = inlinePool{err: context.DeadlineExceeded}
	if _, err := fx.uc.ExtractPDF(ctx, "b.pdf", []byte("other")); !domain.IsKind(err, domain.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
}

func TestMaterialFromItem(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	m := MaterialFromItem(domain.ExtractedItem{Material: "Walls", Quantity: ptr(250.0), Unit: "m²", UnitPrice: 21250, UnitCost: 85, ElementCount: 100, Category: "walls"}, "f.xlsx", now)
	if m.Price != 85 || m.Category != "walls" {
		t.Fatalf("unexpected aggregated material %+v", m)
	}
	m = MaterialFromItem(domain.ExtractedItem{Material: "concrete", Unit: "unit"}, "f.pdf", now)
	if m.Quantity != 0 || m.Price != 0 || m.Category != domain.CategoryExtracted || *m.SourceFile != "f.pdf" {
		t.Fatalf("unexpected material %+v", m)
	}
}

func TestContentKey(t *testing.T) {
	// md5("hello") = 5d41402abc4b2a76b9719d911017c592
	if got := ContentKey([]byte("hello"), domain.OperationExcel); got != "5d41402abc4b2a76b9719d911017c592:excel" {
		t.Fatalf("unexpected content key %q", got)
	}
}
