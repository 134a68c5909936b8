package format

import "github.com/shopspring/decimal"

// DerefString returns *s, or defaultVal when s is nil.
func DerefString(s *string, defaultVal string) string {
	if s != nil {
		return *s
	}
	return defaultVal
}

// Amount renders a reward balance with two decimals.
func Amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
