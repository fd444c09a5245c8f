// Package convert provides parsing helpers for raw bhavcopy cell values.
package convert

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParsePrice parses a bhavcopy price cell. NSE files pad cells with spaces
// and occasionally use thousands separators; "-" marks an absent value.
// Returns (0, false) when the cell holds no usable number.
func ParsePrice(cell string) (float64, bool) {
	cell = cleanCell(cell)
	if cell == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(cell)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// ParseQty parses an integer quantity cell (traded or deliverable volume).
func ParseQty(cell string) (int64, bool) {
	cell = cleanCell(cell)
	if cell == "" {
		return 0, false
	}
	// Some feeds report quantities as "123.00".
	if i := strings.IndexByte(cell, '.'); i >= 0 {
		cell = cell[:i]
	}
	n, err := strconv.ParseInt(cell, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func cleanCell(cell string) string {
	cell = strings.TrimSpace(cell)
	if cell == "" || cell == "-" || strings.EqualFold(cell, "nil") {
		return ""
	}
	return strings.ReplaceAll(cell, ",", "")
}
