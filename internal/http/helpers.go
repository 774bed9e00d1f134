package http

import (
	"html/template"
	"strings"

	"github.com/Rhymond/go-money"

	"networth/internal/core"
)

// formatAmount renders a value in the configured currency, e.g. "$1,234.56",
// using the currency's own number of minor digits. Non-numeric values carried
// through from the document print as zero.
func formatAmount(a core.Amount, currency string) string {
	cur := money.New(0, currency).Currency()
	minor := a.MinorUnits(int32(cur.Fraction))
	if core.FitsInt64(minor) {
		return money.New(minor.IntPart(), currency).Display()
	}
	return formatMinorDigits(cur.Formatter(), minor.Abs().String(), minor.IsNegative())
}

// formatMinorDigits lays out a minor unit count too large for int64 the way
// money.Formatter does.
func formatMinorDigits(f *money.Formatter, digits string, negative bool) string {
	if len(digits) <= f.Fraction {
		digits = strings.Repeat("0", f.Fraction-len(digits)+1) + digits
	}
	intPart, frac := digits[:len(digits)-f.Fraction], digits[len(digits)-f.Fraction:]
	if f.Thousand != "" {
		var b strings.Builder
		for i, r := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				b.WriteString(f.Thousand)
			}
			b.WriteRune(r)
		}
		intPart = b.String()
	}
	out := intPart
	if f.Fraction > 0 {
		out += f.Decimal + frac
	}
	out = strings.Replace(f.Template, "1", out, 1)
	out = strings.Replace(out, "$", f.Grapheme, 1)
	if negative {
		out = "-" + out
	}
	return out
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(a core.Amount) string { return formatAmount(a, s.currency) },
		"roleClass": func(r core.Role) string {
			if r == "" {
				return "role-untagged"
			}
			return "role-" + strings.ToLower(string(r))
		},
	}
}
