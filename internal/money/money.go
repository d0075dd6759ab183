// Package money converts between the application's currency display strings
// and whole-unit amounts.
//
// Amounts in the harness are whole currency units (20 means $20.00). The
// application renders balances like "$1,234.00" and signed transaction
// amounts like "-$20.00" or "+$20.00".
package money

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrInvalidAmount is returned for display strings that are not a whole
// currency amount.
var ErrInvalidAmount = errors.New("invalid amount")

var digitsPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+)?$`)

var printer = message.NewPrinter(language.English)

// ParseAmount converts a display string into a signed whole amount.
//
// Currency symbol, sign, thousands separators, surrounding whitespace and
// an all-zero fractional part are accepted. A plain integer parses to
// itself, so ParseAmount(fmt.Sprint(ParseAmount(s))) == ParseAmount(s).
func ParseAmount(display string) (int64, error) {
	s := strings.TrimSpace(display)
	neg := false

	// sign and symbol may come in either order: "-$20.00", "$-20.00"
sign:
	for len(s) > 0 {
		switch s[0] {
		case '-':
			neg = !neg
		case '+', '$':
		default:
			break sign
		}
		s = strings.TrimSpace(s[1:])
	}

	s = strings.ReplaceAll(s, ",", "")
	if !digitsPattern.MatchString(s) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, display)
	}

	whole, frac, _ := strings.Cut(s, ".")
	if strings.Trim(frac, "0") != "" {
		return 0, fmt.Errorf("%w: %q has a fractional part", ErrInvalidAmount, display)
	}

	n, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", ErrInvalidAmount, display, err)
	}
	if neg {
		n = -n
	}
	return n, nil
}

// Format renders a whole amount as the application displays balances:
// "$1,234.00", "-$20.00".
func Format(amount int64) string {
	if amount < 0 {
		return "-$" + printer.Sprintf("%d", -amount) + ".00"
	}
	return "$" + printer.Sprintf("%d", amount) + ".00"
}

// FormatSigned renders a transaction amount with an explicit sign:
// "+$20.00", "-$20.00". Zero renders unsigned.
func FormatSigned(amount int64) string {
	if amount > 0 {
		return "+" + Format(amount)
	}
	return Format(amount)
}

// FormatCents renders a cent balance, the unit the backend stores.
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + "$" + printer.Sprintf("%d", cents/100) + fmt.Sprintf(".%02d", cents%100)
}
