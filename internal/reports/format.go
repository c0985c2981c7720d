package reports

import (
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var idr = message.NewPrinter(language.Indonesian)

// FormatRupiah renders an amount as whole Rupiah with Indonesian digit
// grouping, e.g. "Rp 1.500.000".
func FormatRupiah(amount decimal.Decimal) string {
	n := amount.Round(0).IntPart()
	if n < 0 {
		return idr.Sprintf("-Rp %d", -n)
	}
	return idr.Sprintf("Rp %d", n)
}
