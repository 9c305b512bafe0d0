/*
handlers.go - HTTP API handlers for the order sheet

PURPOSE:
  Exposes sheet.Service via a JSON API. Handles HTTP request/response and
  JSON serialization, and delegates every decision to the service.

ENDPOINTS (under /s/{secret}/api):
  Sheet:
    GET    /sheet                               View of the selected period
    GET    /sheet/document                      Whole sheet as persisted
    PUT    /sheet/period                        Select billing period
    PUT    /sheet/rates                         Replace the pairs sent
    POST   /sheet/cells/{date}/{person}/toggle  Advance one cell
    POST   /sheet/bulk                          Set a mark over the period

  People:
    POST   /people                              Add people
    DELETE /people/{index}                      Remove a person
    PUT    /people/special                      Move the special capability

  Admin:
    POST   /admin/purge                         Remove old years

  Calendar:
    GET    /holidays?year=2026                  Public holidays of a year

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 403: Mark not allowed for the person
  - 409: Date not editable (weekend, holiday, past)
  - 503: Sheet not loaded yet
  - 500: Internal errors
  Save failures are not errors: the change is applied and the response's
  "save" field reports what failed.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/warp/order-sheet/generic"
	"github.com/warp/order-sheet/orders"
	"github.com/warp/order-sheet/sheet"
)

// Handler holds the API dependencies.
type Handler struct {
	Service  *sheet.Service
	Calendar generic.HolidayCalendar

	// Store is checked by Health when set.
	Store Pinger
}

// Pinger reports whether the durable store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewHandler creates a handler over svc. Holidays are listed from calendar.
func NewHandler(svc *sheet.Service, calendar generic.HolidayCalendar) *Handler {
	if calendar == nil {
		calendar = generic.NoHolidays{}
	}
	return &Handler{Service: svc, Calendar: calendar}
}

// =============================================================================
// SHEET ENDPOINTS
// =============================================================================

// GetSheet returns the selected period.
// GET /sheet
func (h *Handler) GetSheet(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.View(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSheetDTO(view, h.Service.Today(), h.Service.LastStatus()))
}

// GetDocument returns the persisted form of the whole sheet.
// GET /sheet/document
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Service.Document(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// SetPeriod selects the billing period.
// PUT /sheet/period
func (h *Handler) SetPeriod(w http.ResponseWriter, r *http.Request) {
	var req PeriodRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	key, err := generic.ParsePeriodKey(req.Period)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status, err := h.Service.SetPeriod(r.Context(), key)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SaveResponse{Save: status})
}

// SetRates replaces the rate pairs present in the request.
// PUT /sheet/rates
func (h *Handler) SetRates(w http.ResponseWriter, r *http.Request) {
	var req RatesRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	primary, special, err := req.toRates()
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status, err := h.Service.UpdateRates(r.Context(), primary, special)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SaveResponse{Save: status})
}

// Toggle advances one cell.
// POST /sheet/cells/{date}/{person}/toggle
func (h *Handler) Toggle(w http.ResponseWriter, r *http.Request) {
	date, err := generic.ParseDate(chi.URLParam(r, "date"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	person := pathParam(r, "person")

	mark, status, err := h.Service.Toggle(r.Context(), date, person)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ToggleResponse{
		Date:   date.String(),
		Person: person,
		Mark:   string(mark),
		Save:   status,
	})
}

// BulkSet sets one mark for a person over the selected period.
// POST /sheet/bulk
func (h *Handler) BulkSet(w http.ResponseWriter, r *http.Request) {
	var req BulkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	mark, err := orders.ParseMark(req.Mark)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	n, status, err := h.Service.BulkSet(r.Context(), req.Person, mark)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, BulkResponse{
		Person:  req.Person,
		Mark:    string(mark),
		Written: n,
		Save:    status,
	})
}

// =============================================================================
// PEOPLE ENDPOINTS
// =============================================================================

// AddPeople adds people to the roster.
// POST /people
func (h *Handler) AddPeople(w http.ResponseWriter, r *http.Request) {
	var req AddPeopleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	added, status, err := h.Service.AddPeople(r.Context(), req.Names)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, AddPeopleResponse{Added: added, Save: status})
}

// DeletePerson removes the person at index. Their marks stay in the ledger.
// DELETE /people/{index}
func (h *Handler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be a number", err)
		return
	}
	removed, status, err := h.Service.DeletePerson(r.Context(), index)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeletePersonResponse{
		Removed: PersonDTO{Index: index, Name: removed.Name, Special: removed.Special},
		Save:    status,
	})
}

// SetSpecialHolder moves the special capability.
// PUT /people/special
func (h *Handler) SetSpecialHolder(w http.ResponseWriter, r *http.Request) {
	var req SpecialHolderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	status, err := h.Service.SetSpecialHolder(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SaveResponse{Save: status})
}

// =============================================================================
// ADMIN ENDPOINTS
// =============================================================================

// Purge removes every ledger date in the given year or earlier.
// POST /admin/purge
func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	var req PurgeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", fmt.Errorf("decode: %w", err))
		return
	}
	year := h.Service.DefaultPurgeYear()
	if req.Year != nil {
		year = *req.Year
	}

	removed, status, err := h.Service.Purge(r.Context(), year)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PurgeResponse{Through: year, Removed: removed, Save: status})
}

// =============================================================================
// HOLIDAY ENDPOINTS
// =============================================================================

// ListHolidays returns the public holidays of a year (default: this year).
// GET /holidays?year=2026
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := h.Service.Today().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1 || y > 9999 {
			writeError(w, http.StatusBadRequest, "year must be a number between 1 and 9999", err)
			return
		}
		year = y
	}

	holidays := h.Calendar.Holidays(year)
	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = HolidayDTO{Date: hol.Date.String(), Name: hol.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Health reports liveness.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.Store != nil {
		if err := h.Store.Ping(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps domain errors to HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	if !orders.IsClientError(err) {
		if errors.Is(err, sheet.ErrNotLoaded) {
			writeError(w, http.StatusServiceUnavailable, "sheet not loaded", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal error", err)
		return
	}

	var (
		ineligible *orders.IneligibleDateError
		capability *orders.CapabilityError
		validation *generic.ValidationError
	)
	switch {
	case errors.As(err, &ineligible):
		details := map[string]string{"date": ineligible.Date.String(), "reason": string(ineligible.Reason)}
		if ineligible.Holiday != "" {
			details["holiday"] = ineligible.Holiday
		}
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   err.Error(),
			Code:    "locked",
			Details: details,
		})
	case errors.As(err, &capability):
		writeJSON(w, http.StatusForbidden, ErrorResponse{
			Error: err.Error(),
			Code:  "capability",
			Field: "mark",
		})
	default:
		resp := ErrorResponse{Error: err.Error(), Code: "invalid"}
		if errors.As(err, &validation) {
			resp.Field = validation.Field
		}
		writeJSON(w, http.StatusBadRequest, resp)
	}
}

// decodeJSON reads the body into v and answers 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", fmt.Errorf("decode: %w", err))
		return false
	}
	return true
}

// pathParam returns a URL parameter, unescaping it when the router saw the
// raw path.
func pathParam(r *http.Request, name string) string {
	v := chi.URLParam(r, name)
	if unescaped, err := url.PathUnescape(v); err == nil {
		return unescaped
	}
	return v
}
