package supplier

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ReformatPrice turns a localized price string such as "1.456,34 €" into a
// decimal. Dots are thousands separators, the comma is the decimal mark and
// any currency symbol is dropped. Unparsable input yields zero.
func ReformatPrice(s string) decimal.Decimal {
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	s = strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
