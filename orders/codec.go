/*
codec.go - Plain document form of State

PURPOSE:
  State is persisted and replicated as one JSON document. Loading is lenient:
  missing fields take defaults and entries that cannot be understood are
  dropped, because documents written by older clients must still open.

DOCUMENT:
  {
    "employees": ["横井", ...],
    "specialHolder": "",
    "currentMonth": "2026-02",
    "companyShare": 280, "personalShare": 200,
    "specialCompanyShare": 280, "specialPersonalShare": 220,
    "orders": {"2026-02-02": {"横井": "circle"}}
  }

SEE ALSO:
  - migrate.go: repairs applied right after LoadState
*/
package orders

import (
	"encoding/json"
	"fmt"

	"github.com/warp/order-sheet/generic"
)

// Document is the serialized form of State.
type Document struct {
	Employees            []string                     `json:"employees"`
	SpecialHolder        string                       `json:"specialHolder,omitempty"`
	CurrentMonth         string                       `json:"currentMonth"`
	CompanyShare         *int64                       `json:"companyShare"`
	PersonalShare        *int64                       `json:"personalShare"`
	SpecialCompanyShare  *int64                       `json:"specialCompanyShare"`
	SpecialPersonalShare *int64                       `json:"specialPersonalShare"`
	Orders               map[string]map[string]string `json:"orders"`
}

// LoadState decodes data into a State. Empty data yields NewState(today).
func LoadState(data []byte, today generic.Date) (*State, error) {
	if len(data) == 0 {
		return NewState(today), nil
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode sheet document: %w", err)
	}
	return FromDocument(doc, today), nil
}

// FromDocument builds a State from doc, filling in defaults.
func FromDocument(doc Document, today generic.Date) *State {
	s := NewState(today)

	if doc.Employees != nil {
		s.Roster = NewRoster(doc.Employees...)
	}
	if doc.SpecialHolder != "" && s.Roster.Contains(doc.SpecialHolder) {
		_ = s.Roster.SetSpecialHolder(doc.SpecialHolder)
	}
	if key, err := generic.ParsePeriodKey(doc.CurrentMonth); err == nil {
		s.Period = key
	}

	s.Rates.Primary.Company = yenOr(doc.CompanyShare, DefaultRates.Primary.Company)
	s.Rates.Primary.Personal = yenOr(doc.PersonalShare, DefaultRates.Primary.Personal)
	s.Rates.Special.Company = yenOr(doc.SpecialCompanyShare, DefaultRates.Special.Company)
	s.Rates.Special.Personal = yenOr(doc.SpecialPersonalShare, DefaultRates.Special.Personal)

	for key, day := range doc.Orders {
		date, err := generic.ParseDate(key)
		if err != nil {
			continue
		}
		for person, token := range day {
			mark, err := ParseMark(token)
			if err != nil {
				continue
			}
			s.Ledger.Set(date, person, mark)
		}
	}
	return s
}

func yenOr(v *int64, def Yen) Yen {
	if v == nil || *v < 0 || *v > int64(MaxRate) {
		return def
	}
	return Yen(*v)
}

// Document returns the serializable form of s.
func (s *State) Document() Document {
	doc := Document{
		Employees:            s.Roster.Names(),
		CurrentMonth:         s.Period.String(),
		CompanyShare:         int64Ptr(s.Rates.Primary.Company),
		PersonalShare:        int64Ptr(s.Rates.Primary.Personal),
		SpecialCompanyShare:  int64Ptr(s.Rates.Special.Company),
		SpecialPersonalShare: int64Ptr(s.Rates.Special.Personal),
		Orders:               make(map[string]map[string]string),
	}
	if holder, ok := s.Roster.SpecialHolder(); ok {
		doc.SpecialHolder = holder
	}
	for _, d := range s.Ledger.Dates() {
		day := make(map[string]string)
		for person, m := range s.Ledger.Marks(d) {
			day[person] = string(m)
		}
		doc.Orders[d.String()] = day
	}
	return doc
}

// Serialize encodes s as JSON. Map keys are sorted by encoding/json, so equal
// states serialize to equal bytes.
func Serialize(s *State) ([]byte, error) {
	data, err := json.Marshal(s.Document())
	if err != nil {
		return nil, fmt.Errorf("encode sheet document: %w", err)
	}
	return data, nil
}

func int64Ptr(y Yen) *int64 {
	v := int64(y)
	return &v
}
