package cad

import (
	"strings"
	"testing"

	"github.com/inimene84/cad2data-pipeline/internal/core/catalog"
	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

func f(v float64) *float64 { return &v }

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"New_Ext_Wall_Pen_No_2__x":  "Ext Wall 2",
		"  _Floor slab_ ":           "Floor slab",
		"New_New_Door":              "Door",
		"New_New_New_Slab_Pen_No_3": "Slab 3",
		"Pipe__DN100__extra":        "Pipe",
		"__hidden":                  "",
		"Roof":                      "Roof",
		"Aken   A1":                 "Aken A1",
	}
	for in, want := range cases {
		if got := NormalizeName(in); got != want {
			t.Fatalf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeNameIdempotent(t *testing.T) {
	inputs := []string{
		"New_Ext_Wall_Pen_No_2__x",
		"New__New_Wall",
		"_Pen_No__Pen_No_",
		"a__b__c",
		"New_ New_ x",
		"Välissein_Pen_No_3",
		"",
		"___",
	}
	for _, in := range inputs {
		once := NormalizeName(in)
		if twice := NormalizeName(once); twice != once {
			t.Fatalf("NormalizeName not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestShouldAggregate(t *testing.T) {
	zero := make([]domain.ExtractedItem, 9)
	withQty := append(zero, domain.ExtractedItem{Quantity: f(3)})
	if !ShouldAggregate(withQty) {
		t.Fatalf("expected 90%% zero quantities to aggregate")
	}

	mixed := []domain.ExtractedItem{
		{Quantity: f(1)}, {Quantity: f(2)}, {}, {},
	}
	if ShouldAggregate(mixed) {
		t.Fatalf("expected 50%% zero quantities to pass through")
	}
	if ShouldAggregate(nil) {
		t.Fatalf("expected empty batch to pass through")
	}

	exactly := []domain.ExtractedItem{{}, {}, {}, {}, {Quantity: f(1)}}
	if ShouldAggregate(exactly) {
		t.Fatalf("expected exactly 80%% to pass through")
	}
}

func TestAggregateCADWallLayer(t *testing.T) {
	items := make([]domain.ExtractedItem, 0, 100)
	for i := 0; i < 100; i++ {
		items = append(items, domain.ExtractedItem{
			Material:    "New_Ext_Wall_Pen_No_2__x",
			Quantity:    f(0),
			Unit:        domain.UnitDefault,
			SourceSheet: "Layers",
			Area:        f(2_500_000),
			Length:      f(0),
		})
	}

	agg := NewAggregator(catalog.Default(0.24, "EE")).Aggregate(items)
	if len(agg.Items) != 1 {
		t.Fatalf("expected one aggregated item, got %d", len(agg.Items))
	}
	got := agg.Items[0]
	if got.Material != "Ext Wall 2" {
		t.Fatalf("unexpected name %q", got.Material)
	}
	if got.QuantityValue() != 250 {
		t.Fatalf("expected quantity 250, got %v", got.QuantityValue())
	}
	if got.Unit != "m²" {
		t.Fatalf("expected m², got %s", got.Unit)
	}
	if got.UnitPrice != 21250 {
		t.Fatalf("expected unit price 21250, got %v", got.UnitPrice)
	}
	if got.UnitCost != 85 {
		t.Fatalf("expected unit cost 85, got %v", got.UnitCost)
	}
	if got.Category != "walls" || got.ElementCount != 100 || got.SourceSheet != "Layers" {
		t.Fatalf("unexpected traceability fields: %+v", got)
	}
	if len(agg.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", agg.Warnings)
	}
}

func TestAggregateUnitFollowsGeometry(t *testing.T) {
	items := []domain.ExtractedItem{
		{Material: "Doors", Area: f(1_800_000)},
		{Material: "Doors", Area: f(1_800_000)},
		{Material: "Water_Pipe", Length: f(12_500)},
		{Material: "Front Door", Area: f(0)},
		{Material: "Front Door"},
		{Material: "Kaabel", Length: f(500)},
		{Material: "Hatch"},
		{Material: "__ignored"},
	}

	agg := NewAggregator(catalog.Default(0.24, "EE")).Aggregate(items)
	if len(agg.Items) != 5 {
		t.Fatalf("expected 5 groups, got %d: %+v", len(agg.Items), agg.Items)
	}

	byName := make(map[string]domain.ExtractedItem)
	for _, item := range agg.Items {
		byName[item.Material] = item
	}

	doors := byName["Doors"]
	if doors.Unit != "m²" || doors.QuantityValue() != 3.6 || doors.UnitCost != catalog.FallbackAreaCost {
		t.Fatalf("door layer with area should be priced per m² at fallback: %+v", doors)
	}
	if doors.Category != "doors" {
		t.Fatalf("expected doors category, got %s", doors.Category)
	}

	pipe := byName["Water Pipe"]
	if pipe.Unit != "m" || pipe.QuantityValue() != 12.5 || pipe.UnitPrice != 562.5 {
		t.Fatalf("unexpected pipe pricing: %+v", pipe)
	}

	front := byName["Front Door"]
	if front.Unit != "item" || front.QuantityValue() != 2 || front.UnitPrice != 900 {
		t.Fatalf("unexpected per-item door pricing: %+v", front)
	}

	cable := byName["Kaabel"]
	if cable.Unit != "m" || cable.UnitCost != 25 || cable.UnitPrice != 12.5 {
		t.Fatalf("unexpected cable pricing: %+v", cable)
	}

	hatch := byName["Hatch"]
	if hatch.Unit != "item" || hatch.UnitCost != catalog.FallbackItemCost || hatch.Category != "general" {
		t.Fatalf("unexpected general item pricing: %+v", hatch)
	}

	for _, item := range agg.Items {
		area := item.Area != nil && *item.Area > 0
		length := item.Length != nil && *item.Length > 0
		switch {
		case area:
			if item.Unit != "m²" {
				t.Fatalf("%s: area present but unit %s", item.Material, item.Unit)
			}
		case length:
			if item.Unit != "m" {
				t.Fatalf("%s: length present but unit %s", item.Material, item.Unit)
			}
		default:
			if item.Unit != "item" {
				t.Fatalf("%s: no geometry but unit %s", item.Material, item.Unit)
			}
		}
	}
}

func TestAggregateKeepsFirstSeenOrder(t *testing.T) {
	items := []domain.ExtractedItem{
		{Material: "Roof"},
		{Material: "Floor"},
		{Material: "New_Roof"},
		{Material: "Wall"},
	}
	agg := NewAggregator(catalog.Default(0.24, "EE")).Aggregate(items)
	var names []string
	for _, item := range agg.Items {
		names = append(names, item.Material)
	}
	if strings.Join(names, ",") != "Roof,Floor,Wall" {
		t.Fatalf("unexpected group order %v", names)
	}
	if agg.Items[0].ElementCount != 2 {
		t.Fatalf("expected New_Roof to join Roof group")
	}
}

func TestAggregateWarnsOnImplausibleScale(t *testing.T) {
	items := []domain.ExtractedItem{
		{Material: "Slab", Area: f(6_000_000_000)},
		{Material: "Duct", Length: f(2_000_000)},
	}
	agg := NewAggregator(catalog.Default(0.24, "EE")).Aggregate(items)
	if len(agg.Warnings) != 2 {
		t.Fatalf("expected two warnings, got %v", agg.Warnings)
	}
	if !strings.Contains(agg.Warnings[0], "Slab") || !strings.Contains(agg.Warnings[1], "Duct") {
		t.Fatalf("unexpected warnings %v", agg.Warnings)
	}
}
