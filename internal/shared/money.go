package shared

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// MoneyFormatter renders amounts for user-facing messages.
type MoneyFormatter struct {
	symbol  string
	printer *message.Printer
}

// NewMoneyFormatter builds a formatter for the locale tag, falling back to English.
func NewMoneyFormatter(symbol, locale string) MoneyFormatter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	return MoneyFormatter{symbol: symbol, printer: message.NewPrinter(tag)}
}

// Format renders amount with two decimals and locale digit grouping.
func (f MoneyFormatter) Format(amount float64) string {
	printer := f.printer
	if printer == nil {
		printer = message.NewPrinter(language.English)
	}
	return f.symbol + printer.Sprintf("%.2f", amount)
}

// RoundMoney rounds to cents.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
