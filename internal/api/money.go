package api

import "fmt"

// FormatPrice renders minor units as a two-decimal amount, e.g. 500 -> "5.00".
func FormatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
