package utils

import (
	"strings"

	"github.com/shopspring/decimal"
)

// FormatBRL renders v as Brazilian reais, e.g. R$ 1.234,50.
func FormatBRL(v decimal.Decimal) string {
	s := v.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "R$ " + b.String() + "," + frac
	if v.IsNegative() {
		return "-" + out
	}
	return out
}
