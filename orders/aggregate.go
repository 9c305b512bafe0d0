package orders

import (
	"github.com/warp/order-sheet/generic"
)

// =============================================================================
// SUMMARY - Counts and amounts derived from the ledger
// =============================================================================

// Totals are the counts and amounts of one person, or of the whole roster.
type Totals struct {
	Affirmative int
	Special     int

	PrimaryCompany  Yen
	PrimaryPersonal Yen
	SpecialCompany  Yen
	SpecialPersonal Yen

	// Total = Affirmative x primary unit + Special x special unit.
	Total Yen
}

func (t Totals) add(o Totals) Totals {
	return Totals{
		Affirmative:     t.Affirmative + o.Affirmative,
		Special:         t.Special + o.Special,
		PrimaryCompany:  t.PrimaryCompany + o.PrimaryCompany,
		PrimaryPersonal: t.PrimaryPersonal + o.PrimaryPersonal,
		SpecialCompany:  t.SpecialCompany + o.SpecialCompany,
		SpecialPersonal: t.SpecialPersonal + o.SpecialPersonal,
		Total:           t.Total + o.Total,
	}
}

// PersonTotals are the totals of one roster member.
type PersonTotals struct {
	Name string
	Totals
}

// Summary is the aggregate of one billing period.
type Summary struct {
	Period generic.PeriodKey
	People []PersonTotals
	Grand  Totals
}

// Amounts prices counts with rates.
func Amounts(affirmative, special int, rates RateConfig) Totals {
	a, s := Yen(affirmative), Yen(special)
	return Totals{
		Affirmative:     affirmative,
		Special:         special,
		PrimaryCompany:  a * rates.Primary.Company,
		PrimaryPersonal: a * rates.Primary.Personal,
		SpecialCompany:  s * rates.Special.Company,
		SpecialPersonal: s * rates.Special.Personal,
		Total:           a*rates.Primary.Unit() + s*rates.Special.Unit(),
	}
}

// CountAffirmative counts person's affirmative marks in the billing period key.
func CountAffirmative(ledger *Ledger, person string, key generic.PeriodKey) int {
	return ledger.CountByMark(person, key, MarkAffirmative)
}

// CountSpecial counts person's special marks in the billing period key.
func CountSpecial(ledger *Ledger, person string, key generic.PeriodKey) int {
	return ledger.CountByMark(person, key, MarkSpecial)
}

// Summarize aggregates the roster over the billing period key. Ledger entries
// of people not on the roster are not counted.
func Summarize(roster Roster, ledger *Ledger, key generic.PeriodKey, rates RateConfig) Summary {
	period := generic.DefaultPeriodConfig.PeriodFor(key)
	summary := Summary{Period: key, People: make([]PersonTotals, 0, roster.Len())}

	for _, name := range roster.Names() {
		t := Amounts(
			ledger.CountInPeriod(name, period, MarkAffirmative),
			ledger.CountInPeriod(name, period, MarkSpecial),
			rates,
		)
		summary.People = append(summary.People, PersonTotals{Name: name, Totals: t})
		summary.Grand = summary.Grand.add(t)
	}
	return summary
}

// Summary aggregates the selected period.
func (s *State) Summary() Summary {
	return Summarize(s.Roster, s.Ledger, s.Period, s.Rates)
}
