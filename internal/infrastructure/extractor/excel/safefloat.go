package excel

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

var numberCleaner = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "€", "", "'", "")

// parseFloat accepts spreadsheet-formatted numbers, including the decimal
// comma used in Estonian sheets. The result may be NaN or ±Inf.
func parseFloat(raw string) (float64, bool) {
	s := numberCleaner.Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return v, true
		}
		return 0, false
	}
	return v, true
}

// safeFloat returns a finite value or nil.
func safeFloat(raw string) *float64 {
	v, ok := parseFloat(raw)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
