package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/order-sheet/api"
	"github.com/warp/order-sheet/holiday"
	"github.com/warp/order-sheet/orders"
	"github.com/warp/order-sheet/sheet"
	"github.com/warp/order-sheet/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

const secret = "s3cret"

// fixedNow is Monday 2026-02-02 09:00 JST.
func fixedNow() time.Time {
	return time.Date(2026, time.February, 2, 9, 0, 0, 0, time.FixedZone("JST", 9*60*60))
}

type testServer struct {
	router  http.Handler
	handler *api.Handler
	store   *store.Memory
}

func newTestServer(t *testing.T, secretHash string) testServer {
	t.Helper()
	reg := prometheus.NewRegistry()
	mem := store.NewMemory()
	svc := sheet.New(mem, sheet.Options{
		Calendar:      holiday.New(),
		Location:      time.FixedZone("JST", 9*60*60),
		Now:           fixedNow,
		SpecialHolder: "克也",
		Metrics:       sheet.NewMetrics(reg),
	})
	require.NoError(t, svc.Open(context.Background()))

	h := api.NewHandler(svc, holiday.New())
	return testServer{
		router: api.NewRouter(h, api.RouterOptions{
			SecretHash: secretHash,
			Registry:   reg,
			StaticDir:  t.TempDir(),
		}),
		handler: h,
		store:   mem,
	}
}

func (ts testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func apiPath(p string) string {
	return "/s/" + secret + "/api" + p
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func togglePath(date, person string) string {
	return apiPath("/sheet/cells/" + date + "/" + url.PathEscape(person) + "/toggle")
}

// =============================================================================
// SHEET
// =============================================================================

func TestGetSheet(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, apiPath("/sheet"), "")

	require.Equal(t, http.StatusOK, rec.Code)
	dto := decode[api.SheetDTO](t, rec)
	assert.Equal(t, "2026-02", dto.Period)
	assert.Equal(t, "2026年2月 (1/16 〜 2/15)", dto.Label)
	assert.Equal(t, "2026-02-02", dto.Today)
	assert.Len(t, dto.Days, 31)
	assert.Len(t, dto.People, 15)
	assert.Equal(t, int64(480), dto.UnitPrice)
	assert.Equal(t, int64(500), dto.SpecialUnitPrice)
	assert.True(t, dto.Save.Persisted)

	var feb11 api.DayDTO
	for _, d := range dto.Days {
		if d.Date == "2026-02-11" {
			feb11 = d
		}
	}
	assert.Equal(t, holiday.FoundationDay, feb11.Holiday)
	assert.False(t, feb11.Editable)
}

func TestToggle(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodPost, togglePath("2026-02-03", "横井"), "")

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[api.ToggleResponse](t, rec)
	assert.Equal(t, "circle", resp.Mark)
	assert.Equal(t, "横井", resp.Person)
	assert.True(t, resp.Save.Persisted)

	rec = ts.do(t, http.MethodPost, togglePath("2026-02-03", "横井"), "")
	assert.Equal(t, "cross", decode[api.ToggleResponse](t, rec).Mark)

	sheetDTO := decode[api.SheetDTO](t, ts.do(t, http.MethodGet, apiPath("/sheet"), ""))
	for _, d := range sheetDTO.Days {
		if d.Date == "2026-02-03" {
			assert.Equal(t, "cross", d.Marks["横井"])
		}
	}
}

func TestToggle_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
		code   string
	}{
		{"holiday", togglePath("2026-02-11", "横井"), http.StatusConflict, "locked"},
		{"weekend", togglePath("2026-02-07", "横井"), http.StatusConflict, "locked"},
		{"past", togglePath("2026-01-30", "横井"), http.StatusConflict, "locked"},
		{"unknown person", togglePath("2026-02-03", "誰か"), http.StatusBadRequest, "invalid"},
		{"bad date", togglePath("2026-02-30", "横井"), http.StatusBadRequest, "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, "")
			before := ts.store.Revisions()

			rec := ts.do(t, http.MethodPost, tt.path, "")

			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[api.ErrorResponse](t, rec).Code)
			assert.Equal(t, before, ts.store.Revisions())
		})
	}
}

func TestToggle_HolidayDetails(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodPost, togglePath("2026-02-11", "横井"), "")

	resp := decode[map[string]any](t, rec)
	details := resp["details"].(map[string]any)
	assert.Equal(t, "holiday", details["reason"])
	assert.Equal(t, holiday.FoundationDay, details["holiday"])
}

func TestBulkSet(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodPost, apiPath("/sheet/bulk"), `{"person":"横井","mark":"circle"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 9, decode[api.BulkResponse](t, rec).Written)

	rec = ts.do(t, http.MethodPost, apiPath("/sheet/bulk"), `{"person":"横井","mark":"special"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "capability", decode[api.ErrorResponse](t, rec).Code)

	rec = ts.do(t, http.MethodPost, apiPath("/sheet/bulk"), `{"person":"克也","mark":"special"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodPost, apiPath("/sheet/bulk"), `{"person":"横井","mark":"triangle"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "mark", decode[api.ErrorResponse](t, rec).Field)

	sheetDTO := decode[api.SheetDTO](t, ts.do(t, http.MethodGet, apiPath("/sheet"), ""))
	assert.Equal(t, 9, sheetDTO.Grand.Affirmative)
	assert.Equal(t, 9, sheetDTO.Grand.Special)
	assert.Equal(t, int64(9*480+9*500), sheetDTO.Grand.Total)
}

func TestSetPeriod(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodPut, apiPath("/sheet/period"), `{"period":"2026-03"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	dto := decode[api.SheetDTO](t, ts.do(t, http.MethodGet, apiPath("/sheet"), ""))
	assert.Equal(t, "2026-02-16", dto.Start)

	rec = ts.do(t, http.MethodPut, apiPath("/sheet/period"), `{"period":"2026-3"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "period", decode[api.ErrorResponse](t, rec).Field)
}

func TestGetDocument(t *testing.T) {
	ts := newTestServer(t, "")
	ts.do(t, http.MethodPost, togglePath("2026-02-03", "横井"), "")

	rec := ts.do(t, http.MethodGet, apiPath("/sheet/document"), "")

	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[orders.Document](t, rec)
	assert.Len(t, doc.Employees, 15)
	assert.Equal(t, "克也", doc.SpecialHolder)
	assert.Equal(t, "2026-02", doc.CurrentMonth)
	assert.Equal(t, map[string]string{"横井": "circle"}, doc.Orders["2026-02-03"])
}

func TestSetRates(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodPut, apiPath("/sheet/rates"), `{"primary":{"company":"300","personal":200.0}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	dto := decode[api.SheetDTO](t, ts.do(t, http.MethodGet, apiPath("/sheet"), ""))
	assert.Equal(t, int64(500), dto.Rates.Primary.Unit)
	assert.Equal(t, int64(500), dto.Rates.Special.Unit, "missing pair is kept")

	rec = ts.do(t, http.MethodPut, apiPath("/sheet/rates"), `{"primary":{"company":280.5,"personal":200}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "primary.company", decode[api.ErrorResponse](t, rec).Field)

	rec = ts.do(t, http.MethodPut, apiPath("/sheet/rates"), `{"special":{"company":280,"personal":-1}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, apiPath("/sheet/rates"), `{"special":{"company":"18446744073709551896","personal":220}}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "special.company", decode[api.ErrorResponse](t, rec).Field)

	rec = ts.do(t, http.MethodPut, apiPath("/sheet/rates"), `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// PEOPLE
// =============================================================================

func TestPeople(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodPost, apiPath("/people"), `{"names":["新人"," 研修生 "]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"新人", "研修生"}, decode[api.AddPeopleResponse](t, rec).Added)

	rec = ts.do(t, http.MethodPost, apiPath("/people"), `{"names":["横井"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, apiPath("/people/0"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "横井", decode[api.DeletePersonResponse](t, rec).Removed.Name)

	rec = ts.do(t, http.MethodDelete, apiPath("/people/99"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ts.do(t, http.MethodDelete, apiPath("/people/x"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 克也 holds the special capability and moved to index 1
	rec = ts.do(t, http.MethodDelete, apiPath("/people/1"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "index", decode[api.ErrorResponse](t, rec).Field)
	rec = ts.do(t, http.MethodPut, apiPath("/people/special"), `{"name":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPut, apiPath("/people/special"), `{"name":"新人"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	dto := decode[api.SheetDTO](t, ts.do(t, http.MethodGet, apiPath("/sheet"), ""))
	assert.Len(t, dto.People, 16)
	for _, p := range dto.People {
		assert.Equal(t, p.Name == "新人", p.Special, p.Name)
	}
}

// =============================================================================
// ADMIN AND CALENDAR
// =============================================================================

func TestPurge_NothingOld(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodPost, apiPath("/admin/purge"), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[api.PurgeResponse](t, rec)
	assert.Equal(t, 2025, resp.Through)
	assert.Zero(t, resp.Removed)

	rec = ts.do(t, http.MethodPost, apiPath("/admin/purge"), `{"year":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, apiPath("/admin/purge"), `{"year":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPurge_EmptyBodyOfUnknownLength(t *testing.T) {
	ts := newTestServer(t, "")
	req := httptest.NewRequest(http.MethodPost, apiPath("/admin/purge"), io.NopCloser(strings.NewReader("")))
	require.Equal(t, int64(-1), req.ContentLength)
	rec := httptest.NewRecorder()

	ts.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2025, decode[api.PurgeResponse](t, rec).Through)
}

func TestListHolidays(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, apiPath("/holidays?year=2026"), "")
	require.Equal(t, http.StatusOK, rec.Code)
	holidays := decode[[]api.HolidayDTO](t, rec)
	assert.Len(t, holidays, 17)
	assert.Equal(t, api.HolidayDTO{Date: "2026-01-01", Name: holiday.NewYearsDay}, holidays[0])

	rec = ts.do(t, http.MethodGet, apiPath("/holidays"), "")
	assert.Len(t, decode[[]api.HolidayDTO](t, rec), 17, "defaults to this year")

	rec = ts.do(t, http.MethodGet, apiPath("/holidays?year=abc"), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// ACCESS AND OPERATIONS
// =============================================================================

func TestSecretGuard(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	require.NoError(t, err)
	ts := newTestServer(t, string(hash))

	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, apiPath("/sheet"), "").Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, apiPath("/sheet"), "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/s/wrong/api/sheet", "").Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/s/wrong/api/sheet/bulk", `{}`).Code)
}

func TestSecretGuard_DisabledWithoutHash(t *testing.T) {
	g := api.NewSecretGuard("")
	assert.True(t, g.Allow("anything"))
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, "")
	ts.do(t, http.MethodPost, togglePath("2026-02-03", "横井"), "")

	rec := ts.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "order_sheet_http_request_duration_seconds")
	assert.Contains(t, body, `order_sheet_mutations_total{op="toggle",result="ok"} 1`)
	assert.NotContains(t, body, secret)
}

type failingPinger struct{ err error }

func (p failingPinger) Ping(context.Context) error { return p.err }

func TestHealth_StoreUnreachable(t *testing.T) {
	ts := newTestServer(t, "")
	ts.handler.Store = failingPinger{err: errors.New("database is closed")}

	rec := ts.do(t, http.MethodGet, "/healthz", "")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "database is closed")

	ts.handler.Store = failingPinger{}
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/healthz", "").Code)
}

func TestStaticFallback(t *testing.T) {
	ts := newTestServer(t, "")

	rec := ts.do(t, http.MethodGet, "/s/"+secret+"/", "")

	assert.Equal(t, http.StatusNotFound, rec.Code, "empty static dir has no index.html")
}
