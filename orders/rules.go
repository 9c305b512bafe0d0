package orders

import (
	"github.com/warp/order-sheet/generic"
)

// Rules decides which days can be edited and how a cell cycles.
type Rules struct {
	Calendar generic.HolidayCalendar
}

// NewRules returns rules backed by calendar. A nil calendar has no holidays.
func NewRules(calendar generic.HolidayCalendar) Rules {
	if calendar == nil {
		calendar = generic.NoHolidays{}
	}
	return Rules{Calendar: calendar}
}

func (r Rules) calendar() generic.HolidayCalendar {
	if r.Calendar == nil {
		return generic.NoHolidays{}
	}
	return r.Calendar
}

// HolidayName returns the holiday observed on date, if any.
func (r Rules) HolidayName(date generic.Date) (string, bool) {
	return r.calendar().HolidayName(date)
}

// CheckEditable returns nil when date can be edited on today, otherwise an
// *IneligibleDateError naming the first rule that locks it.
func (r Rules) CheckEditable(date, today generic.Date) error {
	if date.IsWeekend() {
		return &IneligibleDateError{Date: date, Reason: ReasonWeekend}
	}
	if name, ok := r.HolidayName(date); ok {
		return &IneligibleDateError{Date: date, Reason: ReasonHoliday, Holiday: name}
	}
	if date.Before(today) {
		return &IneligibleDateError{Date: date, Reason: ReasonPast}
	}
	return nil
}

// IsEditable reports whether date is a weekday, not a holiday and not before today.
func (r Rules) IsEditable(date, today generic.Date) bool {
	return r.CheckEditable(date, today) == nil
}

// NextMark returns the mark after current in person's cycle:
//
//	capability holder: unset -> circle -> cross -> special -> unset
//	everyone else:     unset -> circle -> cross -> unset
func NextMark(current Mark, person Person) Mark {
	switch current {
	case MarkUnset:
		return MarkAffirmative
	case MarkAffirmative:
		return MarkNegative
	case MarkNegative:
		if person.Special {
			return MarkSpecial
		}
		return MarkUnset
	default:
		return MarkUnset
	}
}

// CanUse reports whether person may hold mark.
func CanUse(person Person, mark Mark) bool {
	return mark != MarkSpecial || person.Special
}
