/*
ledger.go - Sparse order ledger

PURPOSE:
  Records the mark each person chose on each day. Only set marks are stored:
  an absent entry IS the unset mark, so the ledger stays as small as the
  number of actual choices.

INVARIANTS:
  1. No entry holds MarkUnset. Setting unset deletes the entry.
  2. A date with no remaining entries is removed as well (no tombstones).
  3. Reads never create entries.

  Entries are not tied to the roster. Dates from closed periods and people
  who were removed from the roster may stay until purged.

SEE ALSO:
  - state.go: every user mutation goes through State, which checks the rules
  - aggregate.go: counts per person over a billing period
*/
package orders

import (
	"sort"

	"github.com/warp/order-sheet/generic"
)

// Ledger maps (date, person) to a set mark.
type Ledger struct {
	entries map[generic.Date]map[string]Mark
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[generic.Date]map[string]Mark)}
}

// Get returns the mark of person on date; MarkUnset when absent.
func (l *Ledger) Get(date generic.Date, person string) Mark {
	return l.entries[date][person]
}

// Set stores mark, or removes the entry when mark is unset.
func (l *Ledger) Set(date generic.Date, person string, mark Mark) {
	if !mark.IsSet() {
		day, ok := l.entries[date]
		if !ok {
			return
		}
		delete(day, person)
		if len(day) == 0 {
			delete(l.entries, date)
		}
		return
	}

	day, ok := l.entries[date]
	if !ok {
		day = make(map[string]Mark)
		l.entries[date] = day
	}
	day[person] = mark
}

// CountByMark counts the days of the billing period key on which person has mark.
func (l *Ledger) CountByMark(person string, key generic.PeriodKey, mark Mark) int {
	return l.CountInPeriod(person, generic.DefaultPeriodConfig.PeriodFor(key), mark)
}

// CountInPeriod counts the days of period on which person has mark.
func (l *Ledger) CountInPeriod(person string, period generic.Period, mark Mark) int {
	count := 0
	for _, d := range period.Days() {
		if l.Get(d, person) == mark {
			count++
		}
	}
	return count
}

// CountOn counts the given people with mark on date. Entries of anyone else
// (a person deleted from the roster) are not counted.
func (l *Ledger) CountOn(date generic.Date, mark Mark, people []string) int {
	day := l.entries[date]
	count := 0
	for _, person := range people {
		if day[person] == mark {
			count++
		}
	}
	return count
}

// Marks returns a copy of every set mark on date.
func (l *Ledger) Marks(date generic.Date) map[string]Mark {
	day := l.entries[date]
	out := make(map[string]Mark, len(day))
	for person, m := range day {
		out[person] = m
	}
	return out
}

// Dates returns the dates holding at least one entry, ascending.
func (l *Ledger) Dates() []generic.Date {
	dates := make([]generic.Date, 0, len(l.entries))
	for d := range l.entries {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// Len returns the number of stored (date, person) entries.
func (l *Ledger) Len() int {
	n := 0
	for _, day := range l.entries {
		n += len(day)
	}
	return n
}

// PurgeThrough deletes every date in year or earlier and returns how many
// dates were removed.
func (l *Ledger) PurgeThrough(year int) int {
	removed := 0
	for d := range l.entries {
		if d.Year() <= year {
			delete(l.entries, d)
			removed++
		}
	}
	return removed
}

func (l *Ledger) hasPerson(person string) bool {
	for _, day := range l.entries {
		if _, ok := day[person]; ok {
			return true
		}
	}
	return false
}

// movePerson carries every entry of from over to to, overwriting to's mark.
func (l *Ledger) movePerson(from, to string) {
	for _, day := range l.entries {
		if m, ok := day[from]; ok {
			day[to] = m
			delete(day, from)
		}
	}
}

// removePerson deletes every entry of person.
func (l *Ledger) removePerson(person string) {
	for d, day := range l.entries {
		delete(day, person)
		if len(day) == 0 {
			delete(l.entries, d)
		}
	}
}

// Clone returns a deep copy.
func (l *Ledger) Clone() *Ledger {
	out := NewLedger()
	for d, day := range l.entries {
		copied := make(map[string]Mark, len(day))
		for person, m := range day {
			copied[person] = m
		}
		out.entries[d] = copied
	}
	return out
}
