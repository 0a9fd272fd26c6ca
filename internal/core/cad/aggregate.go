// Package cad turns CAD-exporter layer rows into priced material line items.
//
// CAD exports are assumed to be in millimetres: areas are divided by 1e6 and
// lengths by 1e3 to obtain m² and m.
package cad

import (
	"fmt"
	"strings"

	"github.com/inimene84/cad2data-pipeline/internal/core/catalog"
	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
	"github.com/inimene84/cad2data-pipeline/internal/core/money"
)

const (
	zeroQuantityShare = 0.8

	mm2PerM2 = 1e6
	mmPerM   = 1e3

	// Plausible upper bounds for a single CAD element; a group whose mean
	// exceeds ten times these values was likely not exported in millimetres.
	maxElementAreaM2  = 500.0
	maxElementLengthM = 100.0
	plausibilityRatio = 10.0
)

type Aggregation struct {
	Items    []domain.ExtractedItem
	Warnings []string
}

type group struct {
	name           string
	sheet          string
	elementCount   int
	totalArea      float64
	totalLength    float64
	totalPerimeter float64
}

// ShouldAggregate reports whether more than 80% of the items carry no quantity.
func ShouldAggregate(items []domain.ExtractedItem) bool {
	if len(items) == 0 {
		return false
	}
	zero := 0
	for _, item := range items {
		if item.QuantityValue() == 0 {
			zero++
		}
	}
	return float64(zero)/float64(len(items)) > zeroQuantityShare
}

type Aggregator struct {
	catalog *catalog.Catalog
}

func NewAggregator(c *catalog.Catalog) *Aggregator {
	return &Aggregator{catalog: c}
}

// Aggregate groups items by normalized name in first-seen order and prices each group.
func (a *Aggregator) Aggregate(items []domain.ExtractedItem) Aggregation {
	groups := make(map[string]*group)
	order := make([]string, 0)

	for _, item := range items {
		name := NormalizeName(item.Material)
		if name == "" {
			continue
		}
		g, ok := groups[name]
		if !ok {
			g = &group{name: name, sheet: item.SourceSheet}
			groups[name] = g
			order = append(order, name)
		}
		g.elementCount++
		g.totalArea += positive(item.Area)
		g.totalLength += positive(item.Length)
		g.totalPerimeter += positive(item.Perimeter)
	}

	out := Aggregation{Items: make([]domain.ExtractedItem, 0, len(order))}
	for _, name := range order {
		g := groups[name]
		item, warning := a.price(g)
		out.Items = append(out.Items, item)
		if warning != "" {
			out.Warnings = append(out.Warnings, warning)
		}
	}
	return out
}

func (a *Aggregator) price(g *group) (domain.ExtractedItem, string) {
	rule := a.catalog.InferCategory(g.name)

	var (
		quantity float64
		unit     string
		unitCost float64
		warning  string
	)
	switch {
	case g.totalArea > 0:
		quantity = money.Round2(g.totalArea / mm2PerM2)
		unit = domain.UnitSquareMetre
		unitCost = costFor(rule, catalog.BasisArea, catalog.FallbackAreaCost)
		if mean := quantity / float64(g.elementCount); mean > maxElementAreaM2*plausibilityRatio {
			warning = fmt.Sprintf("%s: mean element area %.2f m² is implausible; source may not be in millimetres", g.name, mean)
		}
	case g.totalLength > 0:
		quantity = money.Round2(g.totalLength / mmPerM)
		unit = domain.UnitMetre
		unitCost = costFor(rule, catalog.BasisLength, catalog.FallbackLengthCost)
		if mean := quantity / float64(g.elementCount); mean > maxElementLengthM*plausibilityRatio {
			warning = fmt.Sprintf("%s: mean element length %.2f m is implausible; source may not be in millimetres", g.name, mean)
		}
	default:
		quantity = float64(g.elementCount)
		unit = domain.UnitItem
		unitCost = costFor(rule, catalog.BasisItem, catalog.FallbackItemCost)
	}

	item := domain.ExtractedItem{
		Material:     g.name,
		Quantity:     &quantity,
		Unit:         unit,
		UnitPrice:    money.Round2(quantity * unitCost),
		UnitCost:     unitCost,
		SourceSheet:  g.sheet,
		Category:     rule.Category,
		ElementCount: g.elementCount,
	}
	if g.totalArea > 0 {
		item.Area = ptr(money.Round2(g.totalArea))
	}
	if g.totalLength > 0 {
		item.Length = ptr(money.Round2(g.totalLength))
	}
	if g.totalPerimeter > 0 {
		item.Perimeter = ptr(money.Round2(g.totalPerimeter))
	}
	return item, warning
}

// costFor uses the category price only when the category is priced on the
// basis the available geometry dictates.
func costFor(rule catalog.CategoryRule, basis catalog.Basis, fallback float64) float64 {
	if rule.Basis == basis {
		return rule.UnitPrice
	}
	return fallback
}

// NormalizeName cleans CAD layer names. It is applied until the name stops
// changing, so NormalizeName(NormalizeName(s)) == NormalizeName(s).
func NormalizeName(s string) string {
	for {
		next := normalizeOnce(s)
		if next == s {
			return next
		}
		s = next
	}
}

func normalizeOnce(s string) string {
	// Every "New_" goes before underscores turn into spaces.
	for strings.HasPrefix(s, "New_") {
		s = s[len("New_"):]
	}
	s = strings.ReplaceAll(s, "_Pen_No_", " ")
	if before, _, found := strings.Cut(s, "__"); found {
		s = before
	}
	s = strings.Trim(s, " \t_")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.Join(strings.Fields(s), " ")
}

func positive(v *float64) float64 {
	if v == nil || *v <= 0 || *v != *v {
		return 0
	}
	return *v
}

func ptr(v float64) *float64 {
	return &v
}
