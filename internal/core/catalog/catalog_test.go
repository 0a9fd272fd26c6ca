package catalog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultCatalogValues(t *testing.T) {
	c := Default(0, "")
	if c.VATRate() != 0.24 {
		t.Fatalf("expected default VAT 0.24, got %v", c.VATRate())
	}
	if c.VATCountry() != "EE" {
		t.Fatalf("expected EE, got %s", c.VATCountry())
	}
	if m, ok := c.Multiplier("Tallinn"); !ok || m != 1.10 {
		t.Fatalf("unexpected Tallinn multiplier %v (%v)", m, ok)
	}
	if m, ok := c.Multiplier("narva"); !ok || m != 0.95 {
		t.Fatalf("expected case-insensitive Narva lookup, got %v (%v)", m, ok)
	}
	if m, ok := c.Multiplier("Atlantis"); ok || m != 1.0 {
		t.Fatalf("expected unknown region to yield 1.0, got %v (%v)", m, ok)
	}
	if len(c.BaselineMaterials()) != 10 {
		t.Fatalf("expected 10 baseline materials, got %d", len(c.BaselineMaterials()))
	}
}

func TestMatchKeywordFirstMatchWins(t *testing.T) {
	c := Default(0.24, "EE")
	kw, ok := c.MatchKeyword("concrete 12 m3 with steel mesh")
	if !ok || kw != "concrete" {
		t.Fatalf("expected concrete, got %q (%v)", kw, ok)
	}
	kw, ok = c.MatchKeyword("teras b500b 500 kg")
	if !ok || kw != "teras" {
		t.Fatalf("expected teras, got %q (%v)", kw, ok)
	}
	if _, ok := c.MatchKeyword("page 3 of 12"); ok {
		t.Fatalf("expected no keyword match")
	}
}

func TestInferCategory(t *testing.T) {
	c := Default(0.24, "EE")
	cases := map[string]string{
		"Ext Wall 2":          "walls",
		"Välissein":           "walls",
		"Põrand 1. korrus":    "floors",
		"Roof slab":           "roofing",
		"Front Door":          "doors",
		"Aken A1":             "windows",
		"Kanalisatsioonitoru": "piping",
		"Elekter kaabel":      "electrical",
		"Sand fill":           "areas",
		"Hatch":               "general",
	}
	for name, want := range cases {
		if got := c.InferCategory(name).Category; got != want {
			t.Fatalf("InferCategory(%q) = %s, want %s", name, got, want)
		}
	}
}

func TestLoadAppliesYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := []byte(`
extra_keywords: ["Drywall", "concrete"]
regional_multipliers:
  Tallinn: 1.2
  Paide: 0.96
default_region: Paide
`)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	c, err := Load(path, 0.24, "EE")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if m, _ := c.Multiplier("Tallinn"); m != 1.2 {
		t.Fatalf("expected overridden Tallinn multiplier, got %v", m)
	}
	if c.DefaultRegion() != "Paide" {
		t.Fatalf("expected default region Paide, got %s", c.DefaultRegion())
	}
	if kw, ok := c.MatchKeyword("drywall partition"); !ok || kw != "drywall" {
		t.Fatalf("expected extra keyword drywall, got %q", kw)
	}
	count := 0
	for _, kw := range c.Keywords() {
		if kw == "concrete" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("expected concrete once, got %d", count)
	}
}

func TestLoadRejectsUnknownDefaultRegion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte("default_region: Nowhere\n"), 0o644); err != nil {
		t.Fatalf("write catalog: %v", err)
	}
	if _, err := Load(path, 0.24, "EE"); err == nil {
		t.Fatalf("expected error for unknown default region")
	}
}

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	c, err := Load("", 0.2, "EE")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.VATRate() != 0.2 {
		t.Fatalf("expected VAT override 0.2, got %v", c.VATRate())
	}
}

func TestSeedMaterialsCarriesSuppliers(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seed := Default(0, "").SeedMaterials(now)
	if len(seed) != 10 {
		t.Fatalf("expected 10 seed materials, got %d", len(seed))
	}
	for _, m := range seed {
		if m.ID != 0 || m.Supplier == nil || *m.Supplier == "" || !m.CreatedAt.Equal(now) {
			t.Fatalf("unexpected seed material %+v", m)
		}
	}
}

func TestUseDefaultRegion(t *testing.T) {
	c := Default(0, "")
	if err := c.UseDefaultRegion("Tallinn"); err != nil || c.DefaultRegion() != "Tallinn" {
		t.Fatalf("UseDefaultRegion() = %v, region %q", err, c.DefaultRegion())
	}
	if err := c.UseDefaultRegion("Helsinki"); err == nil {
		t.Fatalf("expected error for region without multiplier")
	}
	if c.DefaultRegion() != "Tallinn" {
		t.Fatalf("failed switch must keep the previous region, got %q", c.DefaultRegion())
	}
}
