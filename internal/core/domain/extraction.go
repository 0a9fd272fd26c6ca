package domain

import "time"

type Operation string

const (
	OperationPDF   Operation = "pdf"
	OperationExcel Operation = "excel"
)

// Item categories inferred from CAD layer names.
const (
	CategoryWalls      = "walls"
	CategoryFloors     = "floors"
	CategoryRoofing    = "roofing"
	CategoryDoors      = "doors"
	CategoryWindows    = "windows"
	CategoryPiping     = "piping"
	CategoryElectrical = "electrical"
	CategoryAreas      = "areas"
	CategoryGeneral    = "general"
	CategoryExtracted  = "extracted"
)

const (
	UnitDefault     = "unit"
	UnitSquareMetre = "m²"
	UnitMetre       = "m"
	UnitItem        = "item"
)

// ExtractedItem is one construction line found in an uploaded document.
//
// For aggregated CAD items UnitPrice is the line total (quantity times the
// category unit cost) and UnitCost carries the per-unit rate.
type ExtractedItem struct {
	Material     string   `json:"material"`
	Quantity     *float64 `json:"quantity"`
	Unit         string   `json:"unit"`
	UnitPrice    float64  `json:"unit_price"`
	UnitCost     float64  `json:"unit_cost,omitempty"`
	SourceSheet  string   `json:"source_sheet,omitempty"`
	SourcePage   int      `json:"source_page,omitempty"`
	Area         *float64 `json:"area,omitempty"`
	Length       *float64 `json:"length,omitempty"`
	Perimeter    *float64 `json:"perimeter,omitempty"`
	Radius       *float64 `json:"radius,omitempty"`
	Category     string   `json:"category,omitempty"`
	ElementCount int      `json:"element_count,omitempty"`
}

// QuantityValue returns the quantity or 0 when absent.
func (i ExtractedItem) QuantityValue() float64 {
	if i.Quantity == nil {
		return 0
	}
	return *i.Quantity
}

type PageMethod string

const (
	PageMethodText   PageMethod = "text"
	PageMethodOCR    PageMethod = "ocr"
	PageMethodFailed PageMethod = "failed"
)

type PageResult struct {
	Page              int             `json:"page"`
	Method            PageMethod      `json:"method"`
	Lines             []string        `json:"lines"`
	ConstructionItems []ExtractedItem `json:"construction_items"`
}

type SheetSchema string

const (
	SchemaCADExport SheetSchema = "cad_export"
	SchemaBOQ       SheetSchema = "boq"
	SchemaUnknown   SheetSchema = "unknown"
)

type SheetResult struct {
	SheetName      string            `json:"sheet_name"`
	Schema         SheetSchema       `json:"schema"`
	Columns        map[string]string `json:"columns,omitempty"`
	RowCount       int               `json:"row_count"`
	Preview        []map[string]any  `json:"preview"`
	ExtractedItems []ExtractedItem   `json:"extracted_items"`
	Aggregated     bool              `json:"aggregated"`
	Warnings       []string          `json:"warnings,omitempty"`
}

type ExtractionResult struct {
	Filename              string                 `json:"filename"`
	Operation             Operation              `json:"operation"`
	Pages                 []PageResult           `json:"pages,omitempty"`
	SheetsData            map[string]SheetResult `json:"sheets_data,omitempty"`
	SheetOrder            []string               `json:"sheet_order,omitempty"`
	ExtractedItems        []ExtractedItem        `json:"extracted_items"`
	MaterialsSaved        int                    `json:"materials_saved"`
	MaterialIDs           []int64                `json:"material_ids,omitempty"`
	ProcessingTimeSeconds float64                `json:"processing_time_seconds"`
	Cached                bool                   `json:"cached"`
	ProcessedAt           time.Time              `json:"processed_at"`
}
