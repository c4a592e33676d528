package format

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var units = []string{"W", "kW", "MW", "GW"}

var printer = message.NewPrinter(language.English)

// Watts renders a power reading with two decimals in the largest unit that
// keeps it under 1000, up to GW. With hours set the unit becomes an energy
// unit (kWh, MWh...).
func Watts(w float64, hours bool) string {
	idx := 0
	v := w
	for v >= 1000 && idx < len(units)-1 {
		v /= 1000
		idx++
	}
	suffix := ""
	if hours {
		suffix = "h"
	}
	return printer.Sprintf("%.2f %s%s", v, units[idx], suffix)
}

// Percent renders a ratio already scaled to 0..100.
func Percent(p float64) string {
	return printer.Sprintf("%.2f%%", p)
}
