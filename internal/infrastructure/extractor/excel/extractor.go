package excel

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/core/money"
)

const previewRows = 10

// Column roles used in the mapping reported back to clients.
const (
	RoleMaterial = "material"
	RoleQuantity = "quantity"
	RoleUnit     = "unit"
	RolePrice    = "price"
)

var cadMarkerColumns = []string{"handle", "parentid", "color", "linetype", "lineweight"}

var geometryColumns = []string{"area", "length", "perimeter", "radius"}

var quantityAliases = []string{"quantity", "amount", "qty", "count", "kogus", "maht"}

var roleAliases = []struct {
	role    string
	aliases []string
}{
	{RoleMaterial, []string{"material", "item", "element", "materjal", "kirjeldus", "nimetus", "description"}},
	{RoleQuantity, quantityAliases},
	{RoleUnit, nil},
	{RolePrice, []string{"price", "cost", "hind", "maksumus"}},
}

type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Sheets decodes every worksheet in workbook order. A sheet that fails to
// decode contributes an empty result with a warning.
func (e *Extractor) Sheets(ctx context.Context, data []byte) ([]domain.SheetResult, error) {
	if len(data) == 0 {
		return nil, domain.WrapError(domain.ErrValidation, "excel open", fmt.Errorf("empty workbook"))
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, domain.WrapError(domain.ErrValidation, "excel open", err)
	}
	defer f.Close()

	names := f.GetSheetList()
	results := make([]domain.SheetResult, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return results, domain.WrapError(domain.ErrTimeout, "excel sheets", err)
		}
		results = append(results, e.sheet(f, name))
	}
	return results, nil
}

func (e *Extractor) sheet(f *excelize.File, name string) (result domain.SheetResult) {
	result = domain.SheetResult{
		SheetName:      name,
		Schema:         domain.SchemaUnknown,
		Preview:        []map[string]any{},
		ExtractedItems: []domain.ExtractedItem{},
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extraction_sheet_failed", "sheet", name, "panic", fmt.Sprint(r))
			result = domain.SheetResult{
				SheetName:      name,
				Schema:         domain.SchemaUnknown,
				Preview:        []map[string]any{},
				ExtractedItems: []domain.ExtractedItem{},
				Warnings:       []string{"sheet could not be decoded"},
			}
		}
	}()

	// Raw values: display formats such as "#,##0" would otherwise reach
	// parseFloat as "1,275" and read back as a decimal comma.
	rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		e.logger.Error("extraction_sheet_failed", "sheet", name, "error", err)
		result.Warnings = append(result.Warnings, "sheet could not be decoded")
		return result
	}
	if len(rows) == 0 {
		return result
	}

	headers := normalizeHeaders(rows[0])
	body := rows[1:]
	result.RowCount = len(body)
	result.Preview = preview(headers, body)

	if isCADExport(headers) {
		result.Schema = domain.SchemaCADExport
		result.Columns, result.ExtractedItems = cadItems(name, headers, body)
		return result
	}

	result.Schema = domain.SchemaBOQ
	result.Columns = mapColumns(headers)
	if _, ok := result.Columns[RoleMaterial]; !ok {
		result.Warnings = append(result.Warnings, "no material column found")
		return result
	}
	result.ExtractedItems = boqItems(name, headers, result.Columns, body)
	return result
}

func normalizeHeaders(row []string) []string {
	out := make([]string, len(row))
	for i, raw := range row {
		out[i] = strings.TrimSpace(raw)
		if out[i] == "" {
			out[i] = fmt.Sprintf("column_%d", i+1)
		}
	}
	return out
}

// isCADExport requires at least three exporter marker columns and a Name column.
func isCADExport(headers []string) bool {
	if indexOf(headers, "name") < 0 {
		return false
	}
	markers := 0
	for _, marker := range cadMarkerColumns {
		if indexOf(headers, marker) >= 0 {
			markers++
		}
	}
	return markers >= 3
}

// mapColumns assigns each role the first unassigned header matching one of its aliases.
func mapColumns(headers []string) map[string]string {
	mapping := make(map[string]string)
	used := make(map[int]bool)
	for _, ra := range roleAliases {
		for i, header := range headers {
			if used[i] {
				continue
			}
			if matchesRole(ra.role, ra.aliases, strings.ToLower(header)) {
				mapping[ra.role] = header
				used[i] = true
				break
			}
		}
	}
	return mapping
}

func matchesRole(role string, aliases []string, lower string) bool {
	if role == RoleUnit {
		return lower == "unit" || strings.Contains(lower, "ühik") || strings.Contains(lower, "mõõt")
	}
	for _, alias := range aliases {
		if strings.Contains(lower, alias) {
			return true
		}
	}
	return false
}

func boqItems(sheet string, headers []string, columns map[string]string, body [][]string) []domain.ExtractedItem {
	materialIdx := indexOf(headers, columns[RoleMaterial])
	quantityIdx := indexOf(headers, columns[RoleQuantity])
	unitIdx := indexOf(headers, columns[RoleUnit])
	priceIdx := indexOf(headers, columns[RolePrice])

	items := make([]domain.ExtractedItem, 0, len(body))
	for _, row := range body {
		name := strings.TrimSpace(cell(row, materialIdx))
		if name == "" {
			continue
		}
		unit := strings.TrimSpace(cell(row, unitIdx))
		if unit == "" {
			unit = domain.UnitDefault
		}
		items = append(items, domain.ExtractedItem{
			Material:    name,
			Quantity:    quantityValue(cell(row, quantityIdx)),
			Unit:        unit,
			UnitPrice:   valueOrZero(safeFloat(cell(row, priceIdx))),
			SourceSheet: sheet,
		})
	}
	return items
}

func cadItems(sheet string, headers []string, body [][]string) (map[string]string, []domain.ExtractedItem) {
	nameIdx := indexOf(headers, "name")
	columns := map[string]string{RoleMaterial: headers[nameIdx]}

	quantityIdx := -1
	for i, header := range headers {
		if matchesRole(RoleQuantity, quantityAliases, strings.ToLower(header)) {
			quantityIdx = i
			columns[RoleQuantity] = header
			break
		}
	}
	geometryIdx := make(map[string]int, len(geometryColumns))
	for _, col := range geometryColumns {
		if idx := indexOf(headers, col); idx >= 0 {
			geometryIdx[col] = idx
			columns[col] = headers[idx]
		}
	}

	items := make([]domain.ExtractedItem, 0, len(body))
	for _, row := range body {
		name := strings.TrimSpace(cell(row, nameIdx))
		if name == "" {
			continue
		}
		item := domain.ExtractedItem{
			Material:    name,
			Quantity:    quantityValue(cell(row, quantityIdx)),
			Unit:        domain.UnitDefault,
			SourceSheet: sheet,
		}
		if idx, ok := geometryIdx["area"]; ok {
			item.Area = geometry(cell(row, idx))
		}
		if idx, ok := geometryIdx["length"]; ok {
			item.Length = geometry(cell(row, idx))
		}
		if idx, ok := geometryIdx["perimeter"]; ok {
			item.Perimeter = geometry(cell(row, idx))
		}
		if idx, ok := geometryIdx["radius"]; ok {
			item.Radius = geometry(cell(row, idx))
		}
		items = append(items, item)
	}
	return columns, items
}

// quantityValue keeps a non-finite quantity so it reaches the response as
// null; unparsable or missing cells become 0.
func quantityValue(raw string) *float64 {
	v, ok := parseFloat(raw)
	if !ok || math.IsNaN(v) {
		v = 0
	}
	return &v
}

func geometry(raw string) *float64 {
	v := safeFloat(raw)
	if v == nil {
		return nil
	}
	rounded := money.Round2(*v)
	return &rounded
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func preview(headers []string, body [][]string) []map[string]any {
	n := min(len(body), previewRows)
	out := make([]map[string]any, 0, n)
	for _, row := range body[:n] {
		record := make(map[string]any, len(headers))
		for i, header := range headers {
			value := strings.TrimSpace(cell(row, i))
			if value == "" || strings.EqualFold(value, "nan") {
				record[header] = nil
				continue
			}
			record[header] = value
		}
		out = append(out, record)
	}
	return out
}

func indexOf(headers []string, name string) int {
	if name == "" {
		return -1
	}
	for i, header := range headers {
		if strings.EqualFold(header, name) {
			return i
		}
	}
	return -1
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}
