/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication, decoupled from the
  orders package so field names can follow the browser client.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Responses of mutations, always carrying the SaveStatus

MONEY:
  Rates are read as decimal (JSON number or string) and must be whole,
  non-negative yen. Amounts in responses are integers.

SEE ALSO:
  - handlers.go: Uses these types
  - orders/view.go: View projected into SheetDTO
*/
package api

import (
	"github.com/shopspring/decimal"
	"github.com/warp/order-sheet/generic"
	"github.com/warp/order-sheet/orders"
	"github.com/warp/order-sheet/sheet"
)

// =============================================================================
// SHEET
// =============================================================================

// SheetDTO is the whole screen for the selected period.
type SheetDTO struct {
	Period           string            `json:"period"`
	Label            string            `json:"label"`
	Start            string            `json:"start"`
	End              string            `json:"end"`
	Today            string            `json:"today"`
	People           []PersonDTO       `json:"people"`
	Days             []DayDTO          `json:"days"`
	Rates            RatesDTO          `json:"rates"`
	UnitPrice        int64             `json:"unitPrice"`
	SpecialUnitPrice int64             `json:"specialUnitPrice"`
	Totals           []PersonTotalsDTO `json:"totals"`
	Grand            TotalsDTO         `json:"grand"`
	Save             sheet.SaveStatus  `json:"save"`
}

// PersonDTO is a roster entry. Index is the position used by DELETE.
type PersonDTO struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Special bool   `json:"special"`
}

// DayDTO is one row of the sheet.
type DayDTO struct {
	Date         string            `json:"date"`
	Weekday      int               `json:"weekday"`
	WeekdayLabel string            `json:"weekdayLabel"`
	Holiday      string            `json:"holiday,omitempty"`
	Closed       bool              `json:"closed"`
	Past         bool              `json:"past"`
	Editable     bool              `json:"editable"`
	Marks        map[string]string `json:"marks"`
	Affirmative  int               `json:"affirmative"`
	Special      int               `json:"special"`
}

// RatePairDTO is one company/personal split.
type RatePairDTO struct {
	Company  int64 `json:"company"`
	Personal int64 `json:"personal"`
	Unit     int64 `json:"unit"`
}

// RatesDTO holds both rate pairs.
type RatesDTO struct {
	Primary RatePairDTO `json:"primary"`
	Special RatePairDTO `json:"special"`
}

// TotalsDTO are counts and amounts.
type TotalsDTO struct {
	Affirmative     int   `json:"affirmative"`
	Special         int   `json:"special"`
	PrimaryCompany  int64 `json:"primaryCompany"`
	PrimaryPersonal int64 `json:"primaryPersonal"`
	SpecialCompany  int64 `json:"specialCompany"`
	SpecialPersonal int64 `json:"specialPersonal"`
	Total           int64 `json:"total"`
}

// PersonTotalsDTO are the totals of one person.
type PersonTotalsDTO struct {
	Name string `json:"name"`
	TotalsDTO
}

// HolidayDTO is one public holiday.
type HolidayDTO struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// =============================================================================
// REQUESTS
// =============================================================================

// PeriodRequest selects a billing period ("2026-02").
type PeriodRequest struct {
	Period string `json:"period"`
}

// RatePairRequest carries decimal amounts as typed by the user.
type RatePairRequest struct {
	Company  decimal.Decimal `json:"company"`
	Personal decimal.Decimal `json:"personal"`
}

// RatesRequest replaces rates. A missing pair keeps its current value.
type RatesRequest struct {
	Primary *RatePairRequest `json:"primary"`
	Special *RatePairRequest `json:"special"`
}

// BulkRequest sets one mark for a person over the selected period.
type BulkRequest struct {
	Person string `json:"person"`
	Mark   string `json:"mark"`
}

// AddPeopleRequest adds one or more people.
type AddPeopleRequest struct {
	Names []string `json:"names"`
}

// SpecialHolderRequest names the holder; empty clears it.
type SpecialHolderRequest struct {
	Name string `json:"name"`
}

// PurgeRequest removes every date in Year or earlier. Nil means last year.
type PurgeRequest struct {
	Year *int `json:"year"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// SaveResponse is returned by mutations with no other result.
type SaveResponse struct {
	Save sheet.SaveStatus `json:"save"`
}

// ToggleResponse is the new mark of one cell.
type ToggleResponse struct {
	Date   string           `json:"date"`
	Person string           `json:"person"`
	Mark   string           `json:"mark"`
	Save   sheet.SaveStatus `json:"save"`
}

// BulkResponse reports how many days were written.
type BulkResponse struct {
	Person  string           `json:"person"`
	Mark    string           `json:"mark"`
	Written int              `json:"written"`
	Save    sheet.SaveStatus `json:"save"`
}

// AddPeopleResponse lists the names added.
type AddPeopleResponse struct {
	Added []string         `json:"added"`
	Save  sheet.SaveStatus `json:"save"`
}

// DeletePersonResponse names the removed person.
type DeletePersonResponse struct {
	Removed PersonDTO        `json:"removed"`
	Save    sheet.SaveStatus `json:"save"`
}

// PurgeResponse reports the purge.
type PurgeResponse struct {
	Through int              `json:"through"`
	Removed int              `json:"removed"`
	Save    sheet.SaveStatus `json:"save"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Field   string `json:"field,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSheetDTO(v orders.View, today generic.Date, status sheet.SaveStatus) SheetDTO {
	dto := SheetDTO{
		Period:           v.Period.String(),
		Label:            v.Label,
		Start:            v.Start.String(),
		End:              v.End.String(),
		Today:            today.String(),
		People:           make([]PersonDTO, len(v.People)),
		Days:             make([]DayDTO, len(v.Days)),
		Rates:            toRatesDTO(v.Rates),
		UnitPrice:        int64(v.UnitPrice),
		SpecialUnitPrice: int64(v.SpecialUnitPrice),
		Totals:           make([]PersonTotalsDTO, len(v.Summary.People)),
		Grand:            toTotalsDTO(v.Summary.Grand),
		Save:             status,
	}
	for i, p := range v.People {
		dto.People[i] = PersonDTO{Index: i, Name: p.Name, Special: p.Special}
	}
	for i, row := range v.Days {
		marks := make(map[string]string, len(row.Marks))
		for person, m := range row.Marks {
			marks[person] = string(m)
		}
		dto.Days[i] = DayDTO{
			Date:         row.Date.String(),
			Weekday:      int(row.Weekday),
			WeekdayLabel: row.WeekdayLabel,
			Holiday:      row.Holiday,
			Closed:       row.Closed,
			Past:         row.Past,
			Editable:     row.Editable,
			Marks:        marks,
			Affirmative:  row.Affirmative,
			Special:      row.Special,
		}
	}
	for i, pt := range v.Summary.People {
		dto.Totals[i] = PersonTotalsDTO{Name: pt.Name, TotalsDTO: toTotalsDTO(pt.Totals)}
	}
	return dto
}

func toRatesDTO(rc orders.RateConfig) RatesDTO {
	return RatesDTO{
		Primary: RatePairDTO{
			Company:  int64(rc.Primary.Company),
			Personal: int64(rc.Primary.Personal),
			Unit:     int64(rc.Primary.Unit()),
		},
		Special: RatePairDTO{
			Company:  int64(rc.Special.Company),
			Personal: int64(rc.Special.Personal),
			Unit:     int64(rc.Special.Unit()),
		},
	}
}

func toTotalsDTO(t orders.Totals) TotalsDTO {
	return TotalsDTO{
		Affirmative:     t.Affirmative,
		Special:         t.Special,
		PrimaryCompany:  int64(t.PrimaryCompany),
		PrimaryPersonal: int64(t.PrimaryPersonal),
		SpecialCompany:  int64(t.SpecialCompany),
		SpecialPersonal: int64(t.SpecialPersonal),
		Total:           int64(t.Total),
	}
}

// toRates converts the pairs present in req. A nil pair means "keep".
func (req RatesRequest) toRates() (primary, special *orders.Rates, err error) {
	if req.Primary != nil {
		pair, err := req.Primary.toRates("primary")
		if err != nil {
			return nil, nil, err
		}
		primary = &pair
	}
	if req.Special != nil {
		pair, err := req.Special.toRates("special")
		if err != nil {
			return nil, nil, err
		}
		special = &pair
	}
	return primary, special, nil
}

func (req RatePairRequest) toRates(prefix string) (orders.Rates, error) {
	company, err := orders.RateFromDecimal(prefix+".company", req.Company)
	if err != nil {
		return orders.Rates{}, err
	}
	personal, err := orders.RateFromDecimal(prefix+".personal", req.Personal)
	if err != nil {
		return orders.Rates{}, err
	}
	return orders.Rates{Company: company, Personal: personal}, nil
}
