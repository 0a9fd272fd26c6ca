package pdf

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/inimene84/cad2data-pipeline/internal/core/catalog"
	"github.com/inimene84/cad2data-pipeline/internal/core/domain"
)

const minLineRunes = 6

var quantityPattern = regexp.MustCompile(`\d+(?:\.\d+)?`)

// SplitLines trims every line and drops those shorter than six characters.
func SplitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) < minLineRunes {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// ScanLines emits one item per line containing a catalogue keyword. The
// first keyword in catalogue order wins; the quantity is the first number.
func ScanLines(c *catalog.Catalog, lines []string, page int) []domain.ExtractedItem {
	items := make([]domain.ExtractedItem, 0)
	for _, line := range lines {
		lower := strings.ToLower(line)
		keyword, ok := c.MatchKeyword(lower)
		if !ok {
			continue
		}
		item := domain.ExtractedItem{
			Material:   keyword,
			Unit:       domain.UnitDefault,
			SourcePage: page,
		}
		if match := quantityPattern.FindString(lower); match != "" {
			if v, err := strconv.ParseFloat(match, 64); err == nil {
				item.Quantity = &v
			}
		}
		items = append(items, item)
	}
	return items
}
