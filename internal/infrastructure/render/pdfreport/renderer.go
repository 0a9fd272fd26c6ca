// Package pdfreport renders cost reports as A4 PDF documents.
package pdfreport

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

const (
	pageMargin = 15.0
	lineHeight = 6.0
)

var columns = []struct {
	title string
	width float64
	align string
}{
	{"Material", 80, "L"},
	{"Quantity", 25, "R"},
	{"Unit", 20, "L"},
	{"Unit price", 25, "R"},
	{"Total", 30, "R"},
}

type Renderer struct{}

func New() *Renderer {
	return &Renderer{}
}

// Render lays out the header, one row per line item and the cost block.
// Text is translated to cp1252 so Estonian letters and m²/m³ survive the
// core fonts.
func (r *Renderer) Render(report domain.Report) ([]byte, error) {
	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.SetAutoPageBreak(true, pageMargin)
	doc.SetTitle(report.Name, true)
	doc.SetCreator("cad2data-pipeline", true)
	doc.SetCreationDate(report.CreatedAt)
	tr := doc.UnicodeTranslatorFromDescriptor("")

	doc.AddPage()
	doc.SetFont("Helvetica", "B", 16)
	doc.CellFormat(0, 10, tr(report.Name), "", 1, "L", false, 0, "")

	doc.SetFont("Helvetica", "", 10)
	header := []string{
		fmt.Sprintf("Report #%d, type %s, status %s", report.ID, report.Type, report.Status),
		fmt.Sprintf("Region: %s (multiplier %.2f)", report.Region, report.RegionalMultiplier),
		"Generated: " + report.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"),
	}
	if report.ProjectID != nil {
		header = append(header, fmt.Sprintf("Project: %d", *report.ProjectID))
	}
	for _, line := range header {
		doc.CellFormat(0, lineHeight, tr(line), "", 1, "L", false, 0, "")
	}
	if report.Error != "" {
		doc.SetTextColor(180, 0, 0)
		doc.MultiCell(0, lineHeight, tr("Errors: "+report.Error), "", "L", false)
		doc.SetTextColor(0, 0, 0)
	}
	doc.Ln(4)

	doc.SetFont("Helvetica", "B", 10)
	doc.SetFillColor(230, 230, 230)
	for _, col := range columns {
		doc.CellFormat(col.width, 7, col.title, "1", 0, col.align, true, 0, "")
	}
	doc.Ln(-1)

	doc.SetFont("Helvetica", "", 10)
	for _, item := range report.Materials {
		cells := []string{
			item.Name,
			formatAmount(item.Quantity),
			item.Unit,
			formatAmount(item.UnitPrice),
			formatAmount(item.TotalPrice),
		}
		for i, col := range columns {
			doc.CellFormat(col.width, lineHeight, tr(cells[i]), "1", 0, col.align, false, 0, "")
		}
		doc.Ln(-1)
	}
	doc.Ln(4)

	totals := [][2]string{
		{"Base cost", formatMoney(report.BaseCost, report.Currency)},
		{fmt.Sprintf("VAT (%.0f%%)", report.VATRate*100), formatMoney(report.VATAmount, report.Currency)},
		{"Total cost", formatMoney(report.TotalCost, report.Currency)},
		{"Regionally adjusted", formatMoney(report.RegionalAdjustedCost, report.Currency)},
	}
	for i, row := range totals {
		style := ""
		if i == 2 {
			style = "B"
		}
		doc.SetFont("Helvetica", style, 10)
		doc.CellFormat(150, lineHeight, tr(row[0]), "", 0, "R", false, 0, "")
		doc.CellFormat(30, lineHeight, tr(row[1]), "", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, domain.WrapError(domain.ErrSerialization, "render report pdf", err)
	}
	return buf.Bytes(), nil
}

func formatAmount(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

func formatMoney(v float64, currency string) string {
	if currency == "EUR" || currency == "" {
		return fmt.Sprintf("%.2f €", v)
	}
	return fmt.Sprintf("%.2f %s", v, currency)
}
