package orders

import (
	"strings"

	"github.com/warp/order-sheet/generic"
)

// State is the whole sheet: roster, selected billing period, rates and ledger.
//
// A State is owned by a single writer. Every method validates first and only
// then mutates, so a returned error means nothing changed.
type State struct {
	Roster Roster
	Period generic.PeriodKey
	Rates  RateConfig
	Ledger *Ledger
}

// NewState returns the default sheet for a session starting on today.
func NewState(today generic.Date) *State {
	return &State{
		Roster: NewRoster(DefaultRoster...),
		Period: generic.PeriodKeyOf(today),
		Rates:  DefaultRates,
		Ledger: NewLedger(),
	}
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	return &State{
		Roster: s.Roster.clone(),
		Period: s.Period,
		Rates:  s.Rates,
		Ledger: s.Ledger.Clone(),
	}
}

// Dates returns every day of the selected billing period.
func (s *State) Dates() []generic.Date {
	return generic.DatesInPeriod(s.Period)
}

func (s *State) person(name string) (Person, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Person{}, invalid("person", "", "must not be empty")
	}
	p, ok := s.Roster.Find(name)
	if !ok {
		return Person{}, invalid("person", name, "not on the roster")
	}
	return p, nil
}

// Toggle advances one cell to the next mark in the person's cycle and returns
// the new mark. Locked dates are rejected with *IneligibleDateError.
func (s *State) Toggle(rules Rules, date generic.Date, name string, today generic.Date) (Mark, error) {
	p, err := s.person(name)
	if err != nil {
		return MarkUnset, err
	}
	if err := rules.CheckEditable(date, today); err != nil {
		return MarkUnset, err
	}

	next := NextMark(s.Ledger.Get(date, p.Name), p)
	s.Ledger.Set(date, p.Name, next)
	return next, nil
}

// BulkSet sets mark for the person on every editable day of the selected
// period and returns how many days were written. Locked days are skipped, not
// rejected. The capability check runs before any day is touched.
func (s *State) BulkSet(rules Rules, name string, mark Mark, today generic.Date) (int, error) {
	p, err := s.person(name)
	if err != nil {
		return 0, err
	}
	if !CanUse(p, mark) {
		return 0, &CapabilityError{Person: p.Name, Mark: mark}
	}

	written := 0
	for _, d := range s.Dates() {
		if !rules.IsEditable(d, today) {
			continue
		}
		s.Ledger.Set(d, p.Name, mark)
		written++
	}
	return written, nil
}

// AddPeople appends names to the roster and returns the names added.
func (s *State) AddPeople(names ...string) ([]string, error) {
	return s.Roster.Add(names...)
}

// DeletePerson removes the roster entry at index. The person's ledger entries
// are kept.
func (s *State) DeletePerson(index int) (Person, error) {
	return s.Roster.Delete(index)
}

// SetSpecialHolder moves the special capability to name.
func (s *State) SetSpecialHolder(name string) error {
	return s.Roster.SetSpecialHolder(name)
}

// SetPeriod selects the billing period shown and aggregated.
func (s *State) SetPeriod(key generic.PeriodKey) error {
	if key.Year < 1 || key.Month < 1 || key.Month > 12 {
		return invalid("period", key.String(), "must be YYYY-MM")
	}
	s.Period = key
	return nil
}

// SetRates replaces both rate pairs.
func (s *State) SetRates(rates RateConfig) error {
	if err := rates.validate(); err != nil {
		return err
	}
	s.Rates = rates
	return nil
}

// PurgeThrough deletes every ledger date in year or earlier.
func (s *State) PurgeThrough(year int) (int, error) {
	if year < 1 {
		return 0, invalid("year", "", "must be positive")
	}
	return s.Ledger.PurgeThrough(year), nil
}
