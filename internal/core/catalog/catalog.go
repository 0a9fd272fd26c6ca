// Package catalog holds the process-wide read-only tables the extraction and
// costing code depends on. Changing any value here changes extraction results.
package catalog

import (
	"sort"
	"strings"
	"time"

	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

const (
	DefaultVATRate    = 0.24
	DefaultVATCountry = "EE"
	DefaultRegion     = "Tartu"
	Currency          = "EUR"
)

// Basis is the geometric quantity a category is priced by.
type Basis string

const (
	BasisArea   Basis = "area"
	BasisLength Basis = "length"
	BasisItem   Basis = "item"
)

// Fallback unit costs used when the inferred category is priced on another basis.
const (
	FallbackAreaCost   = 25.0
	FallbackLengthCost = 35.0
	FallbackItemCost   = 50.0
)

type CategoryRule struct {
	Category  string
	Tokens    []string
	Basis     Basis
	UnitPrice float64
}

// Unit returns the display unit for the rule's basis.
func (r CategoryRule) Unit() string {
	switch r.Basis {
	case BasisArea:
		return "m²"
	case BasisLength:
		return "m"
	default:
		return "item"
	}
}

var defaultKeywords = []string{
	"concrete", "betoon",
	"rebar", "armatuur",
	"steel", "teras",
	"brick", "tellis",
	"cement", "tsement",
	"aggregate", "killustik",
	"gravel", "kruus",
	"sand", "liiv",
	"timber", "lumber", "saematerjal", "puit",
	"plywood", "vineer",
	"osb",
	"insulation", "soojustus", "mineraalvill", "kivivill",
	"xps",
	"gypsum", "kipsplaat",
	"plaster", "krohv",
	"mortar", "mört",
	"asphalt", "asfalt",
	"glass", "klaas",
	"window", "aken",
	"roofing", "katus",
	"membrane", "membraan",
	"pipe", "toru",
	"cable", "kaabel",
	"paint", "värv",
	"tile", "plaat",
}

var defaultRegionalMultipliers = map[string]float64{
	"Tallinn":    1.10,
	"Tartu":      1.00,
	"Pärnu":      0.98,
	"Narva":      0.95,
	"Viljandi":   0.96,
	"Rakvere":    0.95,
	"Kuressaare": 0.97,
	"Haapsalu":   0.97,
	"Jõhvi":      0.94,
	"Võru":       0.93,
}

var defaultCategoryRules = []CategoryRule{
	{Category: "walls", Tokens: []string{"wall", "sein"}, Basis: BasisArea, UnitPrice: 85},
	{Category: "floors", Tokens: []string{"floor", "põrand"}, Basis: BasisArea, UnitPrice: 65},
	{Category: "roofing", Tokens: []string{"roof", "katus"}, Basis: BasisArea, UnitPrice: 95},
	{Category: "doors", Tokens: []string{"door", "uks"}, Basis: BasisItem, UnitPrice: 450},
	{Category: "windows", Tokens: []string{"window", "aken"}, Basis: BasisItem, UnitPrice: 380},
	{Category: "piping", Tokens: []string{"pipe", "toru"}, Basis: BasisLength, UnitPrice: 45},
	{Category: "electrical", Tokens: []string{"wire", "kaabel", "elekter"}, Basis: BasisLength, UnitPrice: 25},
	{Category: "areas", Tokens: []string{"fill", "täide"}, Basis: BasisArea, UnitPrice: 15},
}

var generalRule = CategoryRule{Category: "general", Basis: BasisArea, UnitPrice: 25}

// BaselineMaterial is one row of the Estonian seed catalogue.
type BaselineMaterial struct {
	Name     string
	Quantity float64
	Unit     string
	Price    float64
	Supplier string
	Category string
}

var baselineMaterials = []BaselineMaterial{
	{Name: "Betoon C25/30", Quantity: 100, Unit: "m³", Price: 85.00, Supplier: "Rudus AS", Category: "concrete"},
	{Name: "Betoon C30/37", Quantity: 50, Unit: "m³", Price: 92.00, Supplier: "Rudus AS", Category: "concrete"},
	{Name: "Armatuur B500B", Quantity: 5000, Unit: "kg", Price: 0.85, Supplier: "BLRT Grupp", Category: "steel"},
	{Name: "Silikaattellis", Quantity: 10000, Unit: "tk", Price: 0.45, Supplier: "Silikaat Grupp AS", Category: "masonry"},
	{Name: "Portlandtsement CEM I 42,5R", Quantity: 200, Unit: "kott", Price: 6.50, Supplier: "Kunda Nordic Tsement", Category: "cement"},
	{Name: "Killustik 16-32 mm", Quantity: 80, Unit: "t", Price: 14.00, Supplier: "Verston Ehitus", Category: "aggregates"},
	{Name: "Saematerjal 50x150 mm", Quantity: 120, Unit: "jm", Price: 3.20, Supplier: "Stora Enso Eesti", Category: "timber"},
	{Name: "OSB-3 plaat 12 mm", Quantity: 60, Unit: "m²", Price: 9.80, Supplier: "Puumarket", Category: "timber"},
	{Name: "Mineraalvill 150 mm", Quantity: 300, Unit: "m²", Price: 7.40, Supplier: "Paroc", Category: "insulation"},
	{Name: "XPS soojustusplaat 100 mm", Quantity: 150, Unit: "m²", Price: 12.60, Supplier: "Finnfoam", Category: "insulation"},
}

// Catalog is loaded once at startup and never mutated afterwards.
type Catalog struct {
	keywords      []string
	regions       map[string]float64
	categories    []CategoryRule
	vatRate       float64
	vatCountry    string
	defaultRegion string
}

// Default returns the built-in catalogue with the given VAT settings.
func Default(vatRate float64, vatCountry string) *Catalog {
	if vatRate <= 0 || vatRate >= 1 {
		vatRate = DefaultVATRate
	}
	if strings.TrimSpace(vatCountry) == "" {
		vatCountry = DefaultVATCountry
	}
	regions := make(map[string]float64, len(defaultRegionalMultipliers))
	for k, v := range defaultRegionalMultipliers {
		regions[k] = v
	}
	return &Catalog{
		keywords:      append([]string(nil), defaultKeywords...),
		regions:       regions,
		categories:    append([]CategoryRule(nil), defaultCategoryRules...),
		vatRate:       vatRate,
		vatCountry:    vatCountry,
		defaultRegion: DefaultRegion,
	}
}

func (c *Catalog) Keywords() []string {
	return append([]string(nil), c.keywords...)
}

// MatchKeyword returns the first keyword contained in the lower-cased line.
func (c *Catalog) MatchKeyword(lowerLine string) (string, bool) {
	for _, kw := range c.keywords {
		if strings.Contains(lowerLine, kw) {
			return kw, true
		}
	}
	return "", false
}

func (c *Catalog) VATRate() float64 { return c.vatRate }

func (c *Catalog) VATCountry() string { return c.vatCountry }

func (c *Catalog) DefaultRegion() string { return c.defaultRegion }

// Multiplier looks up a region case-insensitively. Unknown regions yield 1.0.
func (c *Catalog) Multiplier(region string) (float64, bool) {
	if v, ok := c.regions[region]; ok {
		return v, true
	}
	for name, v := range c.regions {
		if strings.EqualFold(name, strings.TrimSpace(region)) {
			return v, true
		}
	}
	return 1.0, false
}

// Regions returns region names sorted alphabetically with their multipliers.
func (c *Catalog) Regions() []Region {
	out := make([]Region, 0, len(c.regions))
	for name, v := range c.regions {
		out = append(out, Region{Name: name, Multiplier: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

type Region struct {
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
}

// InferCategory checks category tokens against the lower-cased name; first match wins.
func (c *Catalog) InferCategory(name string) CategoryRule {
	lower := strings.ToLower(name)
	for _, rule := range c.categories {
		for _, token := range rule.Tokens {
			if strings.Contains(lower, token) {
				return rule
			}
		}
	}
	return generalRule
}

func (c *Catalog) BaselineMaterials() []BaselineMaterial {
	return append([]BaselineMaterial(nil), baselineMaterials...)
}

// SeedMaterials converts the baseline catalogue into unsaved materials.
func (c *Catalog) SeedMaterials(now time.Time) []domain.Material {
	out := make([]domain.Material, 0, len(baselineMaterials))
	for _, b := range baselineMaterials {
		supplier := b.Supplier
		out = append(out, domain.Material{
			Name:      b.Name,
			Quantity:  b.Quantity,
			Unit:      b.Unit,
			Price:     b.Price,
			Supplier:  &supplier,
			Category:  b.Category,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return out
}
