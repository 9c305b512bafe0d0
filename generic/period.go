package generic

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// Period is the inclusive range [Start, End].
type Period struct {
	Start Date
	End   Date
}

// Contains returns true if the date is within the period [Start, End]
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Days returns every calendar day in the period, ascending.
func (p Period) Days() []Date {
	if p.End.Before(p.Start) {
		return nil
	}
	days := make([]Date, 0, DaysBetween(p.Start, p.End)+1)
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// PERIOD KEY - "YYYY-MM" names a billing period
// =============================================================================

// PeriodKey names a billing period by the month in which it closes.
type PeriodKey struct {
	Year  int
	Month time.Month
}

// ParsePeriodKey parses "YYYY-MM".
func ParsePeriodKey(s string) (PeriodKey, error) {
	invalid := &ValidationError{Field: "period", Value: s, Reason: "must be YYYY-MM"}
	year, month, ok := strings.Cut(s, "-")
	if !ok || len(year) != 4 || len(month) != 2 {
		return PeriodKey{}, invalid
	}
	y, err := strconv.Atoi(year)
	if err != nil || y < 1 {
		return PeriodKey{}, invalid
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return PeriodKey{}, invalid
	}
	return PeriodKey{Year: y, Month: time.Month(m)}, nil
}

// PeriodKeyOf returns the key of the calendar month containing d.
func PeriodKeyOf(d Date) PeriodKey {
	return PeriodKey{Year: d.Year(), Month: d.Month()}
}

func (k PeriodKey) String() string {
	return fmt.Sprintf("%04d-%02d", k.Year, int(k.Month))
}

func (k PeriodKey) IsZero() bool { return k.Year == 0 && k.Month == 0 }

// Next returns the following month's key.
func (k PeriodKey) Next() PeriodKey { return PeriodKeyOf(NewDate(k.Year, k.Month+1, 1)) }

// Previous returns the preceding month's key.
func (k PeriodKey) Previous() PeriodKey { return PeriodKeyOf(NewDate(k.Year, k.Month-1, 1)) }

// MarshalText encodes the key as YYYY-MM.
func (k PeriodKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a YYYY-MM key.
func (k *PeriodKey) UnmarshalText(b []byte) error {
	parsed, err := ParsePeriodKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// =============================================================================
// BILLING PERIOD CALCULATOR
// =============================================================================

// DefaultCutoffDay closes every billing period on the 15th.
const DefaultCutoffDay = 15

// PeriodConfig defines how billing periods are cut.
//
// A period named "2026-02" with CutoffDay 15 runs from 2026-01-16 through
// 2026-02-15. CutoffDay must be in 1..28 so every month has the day.
type PeriodConfig struct {
	CutoffDay int
}

// DefaultPeriodConfig is the 16th-to-15th billing month.
var DefaultPeriodConfig = PeriodConfig{CutoffDay: DefaultCutoffDay}

func (pc PeriodConfig) cutoff() int {
	if pc.CutoffDay < 1 || pc.CutoffDay > 28 {
		return DefaultCutoffDay
	}
	return pc.CutoffDay
}

// PeriodFor returns the date range of the billing period named by key.
func (pc PeriodConfig) PeriodFor(key PeriodKey) Period {
	cut := pc.cutoff()
	return Period{
		// time.Date normalizes month 0 to December of the prior year.
		Start: NewDate(key.Year, key.Month-1, cut+1),
		End:   NewDate(key.Year, key.Month, cut),
	}
}

// KeyFor returns the key of the billing period that contains d.
func (pc PeriodConfig) KeyFor(d Date) PeriodKey {
	if d.Day() > pc.cutoff() {
		return PeriodKeyOf(d).Next()
	}
	return PeriodKeyOf(d)
}

// DatesInPeriod returns every day of the default billing period for key.
func DatesInPeriod(key PeriodKey) []Date {
	return DefaultPeriodConfig.PeriodFor(key).Days()
}
