/*
Package holiday computes Japanese national holidays.

PURPOSE:
  Decides whether a calendar day is a national holiday and names it. Nothing
  is loaded from a table: every rule is computed, so the calendar works for
  any year from 1980 through 2099 without maintenance.

RULES (evaluated in this order):
  1. Fixed dates          元日 (1/1), 建国記念の日 (2/11), ...
  2. Nth Monday           成人の日 (2nd Monday of January), ...
  3. Equinoxes            floor(C + 0.242194*(y-1980) - floor((y-1980)/4))
                          C = 20.8431 (spring, March), 23.2488 (autumn, September)
  4. Substitute holiday   the day after a holiday that fell on a Sunday,
                          unless that holiday was itself a substitute
  5. Golden Week          May 6 on a Tuesday or Wednesday when May 3, 4 and 5
                          are all holidays

  Rules 4 and 5 are independent: rule 5 is checked even when rule 4 did not
  match.

SEE ALSO:
  - generic/time.go: HolidayCalendar interface
  - orders/rules.go: editability uses the calendar
*/
package holiday

import (
	"math"
	"time"

	"github.com/warp/order-sheet/generic"
)

// Holiday names.
const (
	NewYearsDay        = "元日"
	FoundationDay      = "建国記念の日"
	EmperorsBirthday   = "天皇誕生日"
	ShowaDay           = "昭和の日"
	ConstitutionDay    = "憲法記念日"
	GreeneryDay        = "みどりの日"
	ChildrensDay       = "こどもの日"
	MountainDay        = "山の日"
	CultureDay         = "文化の日"
	LaborThanksgiving  = "勤労感謝の日"
	ComingOfAgeDay     = "成人の日"
	MarineDay          = "海の日"
	RespectForAgedDay  = "敬老の日"
	SportsDay          = "スポーツの日"
	VernalEquinoxDay   = "春分の日"
	AutumnalEquinoxDay = "秋分の日"
	SubstituteHoliday  = "振替休日"
)

type monthDay struct {
	month time.Month
	day   int
}

var fixedHolidays = map[monthDay]string{
	{time.January, 1}:   NewYearsDay,
	{time.February, 11}: FoundationDay,
	{time.February, 23}: EmperorsBirthday,
	{time.April, 29}:    ShowaDay,
	{time.May, 3}:       ConstitutionDay,
	{time.May, 4}:       GreeneryDay,
	{time.May, 5}:       ChildrensDay,
	{time.August, 11}:   MountainDay,
	{time.November, 3}:  CultureDay,
	{time.November, 23}: LaborThanksgiving,
}

type nthMonday struct {
	month time.Month
	nth   int
}

var mondayHolidays = map[nthMonday]string{
	{time.January, 2}:   ComingOfAgeDay,
	{time.July, 3}:      MarineDay,
	{time.September, 3}: RespectForAgedDay,
	{time.October, 2}:   SportsDay,
}

// Calendar implements generic.HolidayCalendar for Japan.
type Calendar struct{}

var _ generic.HolidayCalendar = Calendar{}

// New returns the Japanese holiday calendar.
func New() Calendar { return Calendar{} }

// HolidayName returns the holiday observed on d.
func (Calendar) HolidayName(d generic.Date) (string, bool) {
	return Name(d)
}

// Holidays returns every holiday in year, ascending.
func (Calendar) Holidays(year int) []generic.Holiday {
	var out []generic.Holiday
	period := generic.Period{Start: generic.NewDate(year, time.January, 1), End: generic.NewDate(year, time.December, 31)}
	for _, d := range period.Days() {
		if name, ok := Name(d); ok {
			out = append(out, generic.Holiday{Date: d, Name: name})
		}
	}
	return out
}

// Name returns the name of the holiday observed on d.
func Name(d generic.Date) (string, bool) {
	name, ok, _ := lookup(d, 0)
	return name, ok
}

// IsHoliday reports whether d is a holiday.
func IsHoliday(d generic.Date) bool {
	_, ok := Name(d)
	return ok
}

// maxLookback is the deepest chain of "previous day" lookups any date needs:
// a Golden Week May 6 asks about May 5, which may ask about a Sunday May 4.
const maxLookback = 2

// lookup resolves d, looking back at earlier days at most maxLookback levels
// deep. It also returns the deepest level it reached.
func lookup(d generic.Date, depth int) (string, bool, int) {
	if name, ok := ruleName(d); ok {
		return name, true, depth
	}
	if depth == maxLookback {
		return "", false, depth
	}
	deepest := depth

	yesterday := d.AddDays(-1)
	if yesterday.Weekday() == time.Sunday {
		name, ok, reached := lookup(yesterday, depth+1)
		deepest = max(deepest, reached)
		if ok && name != SubstituteHoliday {
			return SubstituteHoliday, true, deepest
		}
	}

	if isGoldenWeekCandidate(d) {
		all := true
		for day := 3; day <= 5 && all; day++ {
			_, ok, reached := lookup(generic.NewDate(d.Year(), time.May, day), depth+1)
			deepest = max(deepest, reached)
			all = ok
		}
		if all {
			return SubstituteHoliday, true, deepest
		}
	}
	return "", false, deepest
}

// ruleName matches the date-only rules (fixed, Nth Monday, equinox).
func ruleName(d generic.Date) (string, bool) {
	if name, ok := fixedHolidays[monthDay{d.Month(), d.Day()}]; ok {
		return name, true
	}

	if d.Weekday() == time.Monday {
		nth := (d.Day()-1)/7 + 1
		if name, ok := mondayHolidays[nthMonday{d.Month(), nth}]; ok {
			return name, true
		}
	}

	switch d.Month() {
	case time.March:
		if d.Day() == SpringEquinox(d.Year()) {
			return VernalEquinoxDay, true
		}
	case time.September:
		if d.Day() == AutumnEquinox(d.Year()) {
			return AutumnalEquinoxDay, true
		}
	}
	return "", false
}

// isGoldenWeekCandidate reports whether d is a May 6 on a Tuesday or
// Wednesday, the only days the Golden Week rule can apply to.
func isGoldenWeekCandidate(d generic.Date) bool {
	if d.Month() != time.May || d.Day() != 6 {
		return false
	}
	wd := d.Weekday()
	return wd == time.Tuesday || wd == time.Wednesday
}

// SpringEquinox returns the March day of the vernal equinox. Valid 1980-2099.
func SpringEquinox(year int) int { return equinoxDay(20.8431, year) }

// AutumnEquinox returns the September day of the autumnal equinox. Valid 1980-2099.
func AutumnEquinox(year int) int { return equinoxDay(23.2488, year) }

func equinoxDay(base float64, year int) int {
	elapsed := year - 1980
	leap := math.Floor(float64(elapsed) / 4)
	return int(math.Floor(base + 0.242194*float64(elapsed) - leap))
}
