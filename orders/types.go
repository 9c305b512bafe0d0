// Package orders implements the lunch-order sheet on top of the generic
// calendar: who ordered on which day, which days can still be edited, and
// what the billing period costs.
package orders

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/order-sheet/generic"
)

// =============================================================================
// MARK - Per-person, per-day order state
// =============================================================================

// Mark is the order state of one person on one day. The zero value is unset
// and is never stored in the ledger.
type Mark string

const (
	MarkUnset       Mark = ""
	MarkAffirmative Mark = "circle"
	MarkNegative    Mark = "cross"
	MarkSpecial     Mark = "special"
)

// ParseMark parses a wire token. "" and "none" are unset.
func ParseMark(s string) (Mark, error) {
	switch m := Mark(strings.TrimSpace(s)); m {
	case MarkUnset, MarkAffirmative, MarkNegative, MarkSpecial:
		return m, nil
	case "none":
		return MarkUnset, nil
	default:
		return MarkUnset, &generic.ValidationError{Field: "mark", Value: s, Reason: "must be circle, cross, special or empty"}
	}
}

func (m Mark) IsSet() bool { return m != MarkUnset }

// =============================================================================
// PEOPLE
// =============================================================================

// Person is a roster entry. Special marks the single roster member allowed to
// use MarkSpecial.
type Person struct {
	Name    string
	Special bool
}

// DefaultRoster is used when no stored roster exists.
var DefaultRoster = []string{
	"横井", "横井②", "克也", "牛田", "西岡", "今枝", "滝沢",
	"村田", "大竹", "木村", "荒井", "藤野", "佐藤", "山本", "優花",
}

// =============================================================================
// MONEY
// =============================================================================

// Yen is an integer amount in the smallest currency unit.
type Yen int64

// Rates splits the price of one order between the company and the person.
type Rates struct {
	Company  Yen
	Personal Yen
}

// Unit is the full price of one order.
func (r Rates) Unit() Yen { return r.Company + r.Personal }

// RateConfig holds the rate pair for ordinary orders and for special orders.
type RateConfig struct {
	Primary Rates
	Special Rates
}

// MaxRate bounds each share so totals stay far from int64 overflow.
const MaxRate Yen = 1_000_000

// DefaultRates are applied when nothing is stored.
var DefaultRates = RateConfig{
	Primary: Rates{Company: 280, Personal: 200},
	Special: Rates{Company: 280, Personal: 220},
}

func (rc RateConfig) validate() error {
	fields := []struct {
		name  string
		value Yen
	}{
		{"primary.company", rc.Primary.Company},
		{"primary.personal", rc.Primary.Personal},
		{"special.company", rc.Special.Company},
		{"special.personal", rc.Special.Personal},
	}
	for _, f := range fields {
		if f.value < 0 {
			return invalid(f.name, strconv.FormatInt(int64(f.value), 10), "must not be negative")
		}
		if f.value > MaxRate {
			return invalid(f.name, strconv.FormatInt(int64(f.value), 10), "must not exceed "+strconv.FormatInt(int64(MaxRate), 10))
		}
	}
	return nil
}

// RateFromDecimal converts a decimal amount into Yen. Amounts must be whole
// and within 0..MaxRate.
func RateFromDecimal(field string, d decimal.Decimal) (Yen, error) {
	if d.IsNegative() {
		return 0, &generic.ValidationError{Field: field, Value: d.String(), Reason: "must not be negative"}
	}
	if d.GreaterThan(decimal.NewFromInt(int64(MaxRate))) {
		return 0, &generic.ValidationError{Field: field, Value: d.String(), Reason: "must not exceed " + strconv.FormatInt(int64(MaxRate), 10)}
	}
	if !d.IsInteger() {
		return 0, &generic.ValidationError{Field: field, Value: d.String(), Reason: "must be a whole number of yen"}
	}
	return Yen(d.IntPart()), nil
}

// ParseRate parses a rate typed by a user ("280", "280.0", " 200 ").
func ParseRate(field, s string) (Yen, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, &generic.ValidationError{Field: field, Value: s, Reason: "must be a number"}
	}
	return RateFromDecimal(field, d)
}
