package sheet_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/order-sheet/generic"
	"github.com/warp/order-sheet/holiday"
	"github.com/warp/order-sheet/orders"
	"github.com/warp/order-sheet/sheet"
	"github.com/warp/order-sheet/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fakeReplicator struct {
	mu   sync.Mutex
	sent []sheet.Snapshot
	err  error
}

func (f *fakeReplicator) Replicate(_ context.Context, snap sheet.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, snap)
	return nil
}

type fakeArchiver struct {
	years []int
	snaps []sheet.Snapshot
	err   error
}

func (f *fakeArchiver) Archive(_ context.Context, year int, snap sheet.Snapshot) error {
	if f.err != nil {
		return f.err
	}
	f.years = append(f.years, year)
	f.snaps = append(f.snaps, snap)
	return nil
}

// fixedNow is Monday 2026-02-02 09:00 JST.
func fixedNow() time.Time {
	jst := time.FixedZone("JST", 9*60*60)
	return time.Date(2026, time.February, 2, 9, 0, 0, 0, jst)
}

type fixture struct {
	svc      *sheet.Service
	store    *store.Memory
	replica  *fakeReplicator
	archiver *fakeArchiver
	metrics  *sheet.Metrics
}

func newFixture(t *testing.T, opts sheet.Options) fixture {
	t.Helper()
	f := fixture{
		store:    store.NewMemory(),
		replica:  &fakeReplicator{},
		archiver: &fakeArchiver{},
		metrics:  sheet.NewMetrics(prometheus.NewRegistry()),
	}
	opts.Calendar = holiday.New()
	opts.Location = time.FixedZone("JST", 9*60*60)
	opts.Now = fixedNow
	opts.Replicator = f.replica
	opts.Archiver = f.archiver
	opts.Metrics = f.metrics
	f.svc = sheet.New(f.store, opts)
	require.NoError(t, f.svc.Open(context.Background()))
	return f
}

func loadStored(t *testing.T, m *store.Memory) *orders.State {
	t.Helper()
	snap, err := m.Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	s, err := orders.LoadState(snap.Data, generic.NewDate(2026, time.February, 2))
	require.NoError(t, err)
	return s
}

func date(s string) generic.Date { return generic.MustParseDate(s) }

// =============================================================================
// OPEN
// =============================================================================

func TestOpen_FreshStoreSavesDefaults(t *testing.T) {
	f := newFixture(t, sheet.Options{})

	require.Len(t, f.store.Revisions(), 1)
	stored := loadStored(t, f.store)
	assert.Equal(t, orders.DefaultRoster, stored.Roster.Names())
	assert.Equal(t, generic.PeriodKey{Year: 2026, Month: 2}, stored.Period)
	assert.Empty(t, f.replica.sent, "opening does not replicate")
}

func TestOpen_MigratesAndAppliesSpecialHolder(t *testing.T) {
	// GIVEN: A stored sheet with the legacy name and no special holder
	// WHEN: Opening with a configured holder
	// THEN: The roster is repaired, the holder is set and the result is saved
	m := store.NewMemory()
	require.NoError(t, m.Save(context.Background(), sheet.Snapshot{
		Revision: "01OLD",
		Data:     []byte(`{"employees":["横井","荒野"],"orders":{"2026-02-03":{"荒野":"circle"}}}`),
	}))

	svc := sheet.New(m, sheet.Options{Now: fixedNow, SpecialHolder: "横井"})
	require.NoError(t, svc.Open(context.Background()))

	stored := loadStored(t, m)
	assert.Equal(t, []string{"横井", "荒井"}, stored.Roster.Names())
	holder, ok := stored.Roster.SpecialHolder()
	assert.True(t, ok)
	assert.Equal(t, "横井", holder)
	assert.Equal(t, orders.MarkAffirmative, stored.Ledger.Get(date("2026-02-03"), "荒井"))
	assert.Len(t, m.Revisions(), 2)
}

func TestOpen_UnchangedStoreIsNotRewritten(t *testing.T) {
	m := store.NewMemory()
	require.NoError(t, m.Save(context.Background(), sheet.Snapshot{
		Revision: "01OLD",
		Data:     []byte(`{"employees":["A"],"currentMonth":"2026-02"}`),
	}))

	svc := sheet.New(m, sheet.Options{Now: fixedNow})
	require.NoError(t, svc.Open(context.Background()))

	assert.Equal(t, []string{"01OLD"}, m.Revisions())
	assert.Equal(t, "01OLD", svc.LastStatus().Revision)
}

func TestOperationsBeforeOpen(t *testing.T) {
	svc := sheet.New(store.NewMemory(), sheet.Options{})

	_, err := svc.View(context.Background())
	assert.ErrorIs(t, err, sheet.ErrNotLoaded)
	_, _, err = svc.Toggle(context.Background(), date("2026-02-02"), "A")
	assert.ErrorIs(t, err, sheet.ErrNotLoaded)
}

// =============================================================================
// MUTATIONS
// =============================================================================

func TestToggle_PersistsAndReplicates(t *testing.T) {
	f := newFixture(t, sheet.Options{})
	ctx := context.Background()

	mark, status, err := f.svc.Toggle(ctx, date("2026-02-03"), "横井")

	require.NoError(t, err)
	assert.Equal(t, orders.MarkAffirmative, mark)
	assert.True(t, status.Persisted)
	assert.True(t, status.Replicated)
	assert.Empty(t, status.Error)
	assert.NotEmpty(t, status.Revision)

	require.Len(t, f.replica.sent, 1)
	assert.Equal(t, status.Revision, f.replica.sent[0].Revision)
	assert.Equal(t, f.svc.Origin(), f.replica.sent[0].Origin)
	assert.Equal(t, orders.MarkAffirmative, loadStored(t, f.store).Ledger.Get(date("2026-02-03"), "横井"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Mutations.WithLabelValues("toggle", "ok")))
}

func TestToggle_RejectedChangesNothing(t *testing.T) {
	f := newFixture(t, sheet.Options{})
	before := f.store.Revisions()

	_, _, err := f.svc.Toggle(context.Background(), date("2026-02-11"), "横井")

	assert.ErrorIs(t, err, orders.ErrIneligibleDate)
	assert.Equal(t, before, f.store.Revisions())
	assert.Empty(t, f.replica.sent)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Mutations.WithLabelValues("toggle", "rejected")))
}

func TestSaveFailure_KeepsLocalState(t *testing.T) {
	// GIVEN: A store that fails every save
	// WHEN: Toggling a cell
	// THEN: The mark is applied in memory and the status reports the failure
	f := newFixture(t, sheet.Options{})
	f.store.FailWith(errors.New("disk full"))
	ctx := context.Background()

	_, status, err := f.svc.Toggle(ctx, date("2026-02-03"), "横井")

	require.NoError(t, err)
	assert.False(t, status.Persisted)
	assert.True(t, status.Replicated)
	assert.Contains(t, status.Error, "disk full")

	view, err := f.svc.View(ctx)
	require.NoError(t, err)
	for _, row := range view.Days {
		if row.Date == date("2026-02-03") {
			assert.Equal(t, orders.MarkAffirmative, row.Marks["横井"])
		}
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Saves.WithLabelValues("store", "error")))
}

func TestReplicationFailure_IsReported(t *testing.T) {
	f := newFixture(t, sheet.Options{})
	f.replica.err = errors.New("broker down")

	_, status, err := f.svc.BulkSet(context.Background(), "横井", orders.MarkAffirmative)

	require.NoError(t, err)
	assert.True(t, status.Persisted)
	assert.False(t, status.Replicated)
	assert.Contains(t, status.Error, "broker down")
}

func TestBulkSet_CapabilityRejected(t *testing.T) {
	f := newFixture(t, sheet.Options{SpecialHolder: "克也"})

	_, _, err := f.svc.BulkSet(context.Background(), "横井", orders.MarkSpecial)
	assert.ErrorIs(t, err, orders.ErrCapability)

	n, _, err := f.svc.BulkSet(context.Background(), "克也", orders.MarkSpecial)
	require.NoError(t, err)
	assert.Equal(t, 9, n)
}

func TestRosterAndSettings(t *testing.T) {
	f := newFixture(t, sheet.Options{})
	ctx := context.Background()

	added, _, err := f.svc.AddPeople(ctx, []string{"新人"})
	require.NoError(t, err)
	assert.Equal(t, []string{"新人"}, added)

	removed, _, err := f.svc.DeletePerson(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "横井", removed.Name)

	_, err = f.svc.SetSpecialHolder(ctx, "新人")
	require.NoError(t, err)
	_, err = f.svc.SetPeriod(ctx, generic.PeriodKey{Year: 2026, Month: 3})
	require.NoError(t, err)
	_, err = f.svc.UpdateRates(ctx,
		&orders.Rates{Company: 300, Personal: 200},
		&orders.Rates{Company: 300, Personal: 250})
	require.NoError(t, err)

	stored := loadStored(t, f.store)
	assert.Equal(t, "新人", stored.Roster.Names()[stored.Roster.Len()-1])
	assert.False(t, stored.Roster.Contains("横井"))
	holder, _ := stored.Roster.SpecialHolder()
	assert.Equal(t, "新人", holder)
	assert.Equal(t, generic.PeriodKey{Year: 2026, Month: 3}, stored.Period)
	assert.Equal(t, orders.Yen(550), stored.Rates.Special.Unit())
}

// =============================================================================
// PURGE
// =============================================================================

func seedOldYear(t *testing.T) *store.Memory {
	t.Helper()
	m := store.NewMemory()
	require.NoError(t, m.Save(context.Background(), sheet.Snapshot{
		Revision: "01OLD",
		Data: []byte(`{"employees":["A"],"currentMonth":"2026-02",` +
			`"orders":{"2025-12-01":{"A":"circle"},"2025-12-02":{"A":"cross"},"2026-01-20":{"A":"circle"}}}`),
	}))
	return m
}

func TestPurge_ArchivesThenRemoves(t *testing.T) {
	m := seedOldYear(t)
	archiver := &fakeArchiver{}
	svc := sheet.New(m, sheet.Options{Now: fixedNow, Archiver: archiver})
	require.NoError(t, svc.Open(context.Background()))

	removed, status, err := svc.Purge(context.Background(), svc.DefaultPurgeYear())

	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.True(t, status.Persisted)
	assert.Equal(t, []int{2025}, archiver.years)
	assert.Contains(t, string(archiver.snaps[0].Data), "2025-12-01")

	stored := loadStored(t, m)
	assert.Equal(t, []generic.Date{date("2026-01-20")}, stored.Ledger.Dates())
}

func TestPurge_ArchiveFailureAborts(t *testing.T) {
	m := seedOldYear(t)
	svc := sheet.New(m, sheet.Options{Now: fixedNow, Archiver: &fakeArchiver{err: errors.New("s3 down")}})
	require.NoError(t, svc.Open(context.Background()))

	_, _, err := svc.Purge(context.Background(), 2025)

	require.Error(t, err)
	assert.Len(t, loadStored(t, m).Ledger.Dates(), 3)
}

func TestPurge_NothingToRemove(t *testing.T) {
	f := newFixture(t, sheet.Options{})
	before := f.store.Revisions()

	removed, _, err := f.svc.Purge(context.Background(), 2025)

	require.NoError(t, err)
	assert.Zero(t, removed)
	assert.Equal(t, before, f.store.Revisions())
	assert.Empty(t, f.archiver.years)

	_, _, err = f.svc.Purge(context.Background(), 0)
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestRetentionScheduler_RunNow(t *testing.T) {
	m := seedOldYear(t)
	svc := sheet.New(m, sheet.Options{Now: fixedNow})
	require.NoError(t, svc.Open(context.Background()))

	rs := sheet.NewRetentionScheduler(svc, time.Hour)

	assert.True(t, rs.Enabled)
	assert.Equal(t, 2, rs.RunNow(context.Background()))
	assert.Equal(t, 0, rs.RunNow(context.Background()))
	assert.False(t, sheet.NewRetentionScheduler(svc, 0).Enabled)
}

func TestRetentionScheduler_CanceledContextPurgesNothing(t *testing.T) {
	m := seedOldYear(t)
	svc := sheet.New(m, sheet.Options{Now: fixedNow})
	require.NoError(t, svc.Open(context.Background()))
	rs := sheet.NewRetentionScheduler(svc, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, 0, rs.RunNow(ctx))
	assert.Len(t, loadStored(t, m).Ledger.Dates(), 3)
}

func TestRetentionScheduler_RestartAfterStop(t *testing.T) {
	m := seedOldYear(t)
	svc := sheet.New(m, sheet.Options{Now: fixedNow})
	require.NoError(t, svc.Open(context.Background()))
	rs := sheet.NewRetentionScheduler(svc, time.Hour)

	assert.NotPanics(t, func() {
		rs.Start()
		rs.Stop()
		rs.Start()
		rs.Stop()
		rs.Stop()
	})
}

func TestRetentionScheduler_StartStop(t *testing.T) {
	m := seedOldYear(t)
	svc := sheet.New(m, sheet.Options{Now: fixedNow})
	require.NoError(t, svc.Open(context.Background()))
	rs := sheet.NewRetentionScheduler(svc, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rs.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(m.Revisions()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
	assert.Equal(t, []generic.Date{date("2026-01-20")}, loadStored(t, m).Ledger.Dates())
}

// =============================================================================
// REMOTE CHANGES
// =============================================================================

func TestApplyRemote_ReplacesWholeState(t *testing.T) {
	f := newFixture(t, sheet.Options{})
	ctx := context.Background()
	_, _, err := f.svc.Toggle(ctx, date("2026-02-03"), "横井")
	require.NoError(t, err)
	sentBefore := len(f.replica.sent)

	err = f.svc.ApplyRemote(ctx, sheet.Snapshot{
		Revision: "01REMOTE",
		Origin:   "other-session",
		Data:     []byte(`{"employees":["X","荒野"],"currentMonth":"2026-02","orders":{"2026-02-04":{"X":"cross"}}}`),
	})
	require.NoError(t, err)

	view, err := f.svc.View(ctx)
	require.NoError(t, err)
	names := make([]string, 0, len(view.People))
	for _, p := range view.People {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"X", "荒井"}, names)
	assert.Equal(t, 0, view.Summary.Grand.Affirmative)

	assert.Equal(t, "01REMOTE", f.svc.LastStatus().Revision)
	assert.Equal(t, "01REMOTE", f.store.Revisions()[len(f.store.Revisions())-1])
	assert.Len(t, f.replica.sent, sentBefore, "remote snapshots are not sent back")
}

func TestApplyRemote_KeepsConfiguredHolder(t *testing.T) {
	f := newFixture(t, sheet.Options{SpecialHolder: "X"})
	ctx := context.Background()

	err := f.svc.ApplyRemote(ctx, sheet.Snapshot{
		Revision: "01REMOTE",
		Origin:   "other-session",
		Data:     []byte(`{"employees":["X","Y"],"currentMonth":"2026-02"}`),
	})
	require.NoError(t, err)

	view, err := f.svc.View(ctx)
	require.NoError(t, err)
	require.Len(t, view.People, 2)
	assert.True(t, view.People[0].Special)
	assert.False(t, view.People[1].Special)

	holder, _ := loadStored(t, f.store).Roster.SpecialHolder()
	assert.Equal(t, "X", holder)
}

func TestUpdateRates_MergesIntoCurrentState(t *testing.T) {
	f := newFixture(t, sheet.Options{})
	ctx := context.Background()

	// GIVEN: another session changed the special rates
	require.NoError(t, f.svc.ApplyRemote(ctx, sheet.Snapshot{
		Revision: "01REMOTE",
		Origin:   "other-session",
		Data:     []byte(`{"employees":["A"],"specialCompanyShare":300,"specialPersonalShare":300}`),
	}))

	// WHEN: this session only sends the primary pair
	_, err := f.svc.UpdateRates(ctx, &orders.Rates{Company: 250, Personal: 250}, nil)
	require.NoError(t, err)

	// THEN: the remote special pair survives
	stored := loadStored(t, f.store)
	assert.Equal(t, orders.Rates{Company: 250, Personal: 250}, stored.Rates.Primary)
	assert.Equal(t, orders.Rates{Company: 300, Personal: 300}, stored.Rates.Special)

	_, err = f.svc.UpdateRates(ctx, nil, &orders.Rates{Company: orders.MaxRate + 1})
	assert.ErrorIs(t, err, generic.ErrValidation)
	assert.Equal(t, orders.Rates{Company: 300, Personal: 300}, loadStored(t, f.store).Rates.Special)
}

func TestApplyRemote_IgnoresOwnOrigin(t *testing.T) {
	f := newFixture(t, sheet.Options{})
	before := f.store.Revisions()

	err := f.svc.ApplyRemote(context.Background(), sheet.Snapshot{
		Revision: "01ECHO",
		Origin:   f.svc.Origin(),
		Data:     []byte(`{"employees":[]}`),
	})

	require.NoError(t, err)
	assert.Equal(t, before, f.store.Revisions())
}

func TestApplyRemote_BadDocument(t *testing.T) {
	f := newFixture(t, sheet.Options{})

	err := f.svc.ApplyRemote(context.Background(), sheet.Snapshot{Origin: "x", Data: []byte(`{`)})

	assert.Error(t, err)
	view, verr := f.svc.View(context.Background())
	require.NoError(t, verr)
	assert.Len(t, view.People, len(orders.DefaultRoster))
}
