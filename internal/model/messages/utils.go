package messages

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Rx5v/catatan-pengeluaran-harian/internal/model/customerr"
)

func location(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// exact matches the whole text, argument-less commands and menu buttons.
func exact(keyword string) func(string) (string, bool) {
	return func(text string) (string, bool) {
		return "", text == keyword
	}
}

// command matches `keyword` alone or `keyword <arg>`, returning the arg.
func command(keyword string) func(string) (string, bool) {
	return func(text string) (string, bool) {
		if text == keyword {
			return "", true
		}
		if strings.HasPrefix(text, keyword+" ") {
			return strings.TrimSpace(text[len(keyword)+1:]), true
		}
		return "", false
	}
}

// parseAdd splits "<jumlah> <deskripsi> [#kategori]". The amount is the
// first token and must be a positive decimal; a trailing #-token is the
// category; everything in between is the description.
func parseAdd(arg string) (amount decimal.Decimal, description, category string, err error) {
	fields := strings.Fields(arg)
	if len(fields) < 2 {
		return decimal.Decimal{}, "", "", &customerr.ValidationError{Msg: "amount and description are required"}
	}

	amount, convErr := decimal.NewFromString(fields[0])
	if convErr != nil || !amount.IsPositive() {
		return decimal.Decimal{}, "", "", &customerr.ValidationError{Msg: "amount must be a positive number"}
	}

	rest := fields[1:]
	if last := rest[len(rest)-1]; len(last) > 1 && strings.HasPrefix(last, "#") {
		category = strings.TrimPrefix(last, "#")
		rest = rest[:len(rest)-1]
	}
	if len(rest) == 0 {
		return decimal.Decimal{}, "", "", &customerr.ValidationError{Msg: "description must not be empty"}
	}

	return amount, strings.Join(rest, " "), category, nil
}

// formatRupiah renders an amount the Indonesian way: Rp prefix, dots
// grouping the thousands, comma before the decimals. Fractional amounts
// always carry two decimal digits.
func formatRupiah(d decimal.Decimal) string {
	s := d.Abs().String()
	if strings.IndexByte(s, '.') >= 0 {
		s = d.Abs().StringFixed(2)
	}
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, fracPart = s[:i], s[i+1:]
	}

	var b strings.Builder
	b.WriteString("Rp")
	if d.IsNegative() {
		b.WriteByte('-')
	}
	pre := len(intPart) % 3
	if pre > 0 {
		b.WriteString(intPart[:pre])
	}
	for i := pre; i < len(intPart); i += 3 {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(intPart[i : i+3])
	}
	if fracPart != "" {
		b.WriteByte(',')
		b.WriteString(fracPart)
	}
	return b.String()
}
