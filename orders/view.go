package orders

import (
	"fmt"
	"time"

	"github.com/warp/order-sheet/generic"
)

var weekdayLabels = [...]string{"日", "月", "火", "水", "木", "金", "土"}

// DayRow is one line of the sheet.
type DayRow struct {
	Date         generic.Date
	WeekdayLabel string
	Weekday      time.Weekday
	Holiday      string
	Closed       bool // weekend or holiday
	Past         bool
	Editable     bool
	Marks        map[string]Mark
	Affirmative  int
	Special      int
}

// View is the read-only projection a renderer needs for one period.
type View struct {
	Period           generic.PeriodKey
	Label            string
	Start            generic.Date
	End              generic.Date
	People           []Person
	Days             []DayRow
	Rates            RateConfig
	UnitPrice        Yen
	SpecialUnitPrice Yen
	Summary          Summary
}

// PeriodLabel renders "2026年2月 (1/16 〜 2/15)".
func PeriodLabel(key generic.PeriodKey) string {
	p := generic.DefaultPeriodConfig.PeriodFor(key)
	return fmt.Sprintf("%d年%d月 (%d/%d 〜 %d/%d)",
		key.Year, int(key.Month),
		int(p.Start.Month()), p.Start.Day(),
		int(p.End.Month()), p.End.Day())
}

// BuildView projects s for display on today.
func BuildView(s *State, rules Rules, today generic.Date) View {
	period := generic.DefaultPeriodConfig.PeriodFor(s.Period)
	v := View{
		Period:           s.Period,
		Label:            PeriodLabel(s.Period),
		Start:            period.Start,
		End:              period.End,
		People:           s.Roster.People(),
		Rates:            s.Rates,
		UnitPrice:        s.Rates.Primary.Unit(),
		SpecialUnitPrice: s.Rates.Special.Unit(),
		Summary:          s.Summary(),
	}

	names := s.Roster.Names()
	for _, d := range period.Days() {
		holidayName, isHoliday := rules.HolidayName(d)
		v.Days = append(v.Days, DayRow{
			Date:         d,
			Weekday:      d.Weekday(),
			WeekdayLabel: weekdayLabels[d.Weekday()],
			Holiday:      holidayName,
			Closed:       d.IsWeekend() || isHoliday,
			Past:         d.Before(today),
			Editable:     rules.IsEditable(d, today),
			Marks:        s.Ledger.Marks(d),
			Affirmative:  s.Ledger.CountOn(d, MarkAffirmative, names),
			Special:      s.Ledger.CountOn(d, MarkSpecial, names),
		})
	}
	return v
}
