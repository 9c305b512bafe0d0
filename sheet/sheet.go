/*
sheet.go - Single-writer owner of the sheet state

PURPOSE:
  Service holds the one live State reference and serializes every operation
  on it. After each accepted mutation it serializes the whole state, saves it
  to the durable store and, when configured, replicates it to other sessions.

FLOW (every mutation):
  1. Validate and apply through orders.State (rejections change nothing)
  2. Serialize the whole state
  3. Persist to the local store
  4. Replicate (optional)
  A failed save or replicate does not roll the state back. The failure is
  reported in SaveStatus and the next successful save carries the change.

REMOTE CHANGES:
  A snapshot from another session replaces the whole state (last writer
  wins). Snapshots carrying this process's own origin are ignored.

SEE ALSO:
  - orders/state.go: the operations themselves
  - scheduler.go: periodic purge of old years
  - replica/: RabbitMQ replicator and subscriber
*/
package sheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/warp/order-sheet/generic"
	"github.com/warp/order-sheet/orders"
)

// ErrNotLoaded is returned by operations called before Open.
var ErrNotLoaded = errors.New("sheet not loaded")

// Snapshot is one serialized version of the whole state.
type Snapshot struct {
	Revision string    `json:"revision"`
	Origin   string    `json:"origin"`
	SavedAt  time.Time `json:"savedAt"`
	Data     []byte    `json:"-"`
}

// Persister is the durable local store. Load returns nil when nothing has
// been saved yet.
type Persister interface {
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

// Replicator pushes snapshots to other sessions.
type Replicator interface {
	Replicate(ctx context.Context, snap Snapshot) error
}

// Archiver keeps a copy of the state before old years are purged.
type Archiver interface {
	Archive(ctx context.Context, year int, snap Snapshot) error
}

// SaveStatus reports what happened to the state after a mutation.
type SaveStatus struct {
	Revision   string `json:"revision"`
	Persisted  bool   `json:"persisted"`
	Replicated bool   `json:"replicated"`
	Error      string `json:"error,omitempty"`
}

// Options configure a Service. Zero values are usable.
type Options struct {
	Calendar      generic.HolidayCalendar
	Location      *time.Location
	Now           func() time.Time
	Replicator    Replicator
	Archiver      Archiver
	SpecialHolder string // applied on Open when the stored state names no holder
	Metrics       *Metrics
	Logger        *slog.Logger
}

// Service applies sheet operations one at a time.
type Service struct {
	mu    sync.Mutex
	state *orders.State

	rules      orders.Rules
	store      Persister
	replicator Replicator
	archiver   Archiver
	holder     string
	loc        *time.Location
	now        func() time.Time
	origin     string
	metrics    *Metrics
	log        *slog.Logger
	last       SaveStatus
}

// New creates a Service backed by store. Call Open before anything else.
func New(store Persister, opts Options) *Service {
	s := &Service{
		rules:      orders.NewRules(opts.Calendar),
		store:      store,
		replicator: opts.Replicator,
		archiver:   opts.Archiver,
		holder:     opts.SpecialHolder,
		loc:        opts.Location,
		now:        opts.Now,
		origin:     uuid.NewString(),
		metrics:    opts.Metrics,
		log:        opts.Logger,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Origin identifies this process in replicated snapshots.
func (s *Service) Origin() string { return s.origin }

// Today is the current date in the sheet's time zone.
func (s *Service) Today() generic.Date {
	return generic.Today(s.now(), s.loc)
}

// Rules returns the eligibility rules in use.
func (s *Service) Rules() orders.Rules { return s.rules }

// LastStatus returns the status of the most recent save.
func (s *Service) LastStatus() SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Open loads the stored state, repairs legacy names and applies the
// configured special holder. The repaired state is saved locally when
// anything changed.
func (s *Service) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load sheet: %w", err)
	}

	var data []byte
	if snap != nil {
		data = snap.Data
		s.last = SaveStatus{Revision: snap.Revision, Persisted: true}
	}
	state, err := orders.LoadState(data, s.Today())
	if err != nil {
		return err
	}

	changed := snap == nil
	if orders.Migrate(state) {
		s.log.InfoContext(ctx, "migrated legacy roster names")
		changed = true
	}
	if s.applyDefaultHolder(ctx, state) {
		changed = true
	}

	s.state = state
	s.metrics.observeLedger(state)
	if changed {
		s.persist(ctx)
	}

	s.log.InfoContext(ctx, "sheet opened",
		"people", state.Roster.Len(),
		"entries", state.Ledger.Len(),
		"period", state.Period.String(),
		"revision", s.last.Revision)
	return nil
}

// =============================================================================
// READS
// =============================================================================

// View returns the projection of the selected period.
func (s *Service) View(ctx context.Context) (orders.View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return orders.View{}, ErrNotLoaded
	}
	return orders.BuildView(s.state, s.rules, s.Today()), nil
}

// Document returns the serialized form of the current state.
func (s *Service) Document(ctx context.Context) (orders.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return orders.Document{}, ErrNotLoaded
	}
	return s.state.Document(), nil
}

// =============================================================================
// MUTATIONS
// =============================================================================

// Toggle advances the mark of person on date.
func (s *Service) Toggle(ctx context.Context, date generic.Date, person string) (orders.Mark, SaveStatus, error) {
	var mark orders.Mark
	status, err := s.mutate(ctx, "toggle", func(st *orders.State, today generic.Date) error {
		var err error
		mark, err = st.Toggle(s.rules, date, person, today)
		return err
	})
	return mark, status, err
}

// BulkSet sets mark for person on every editable day of the selected period.
func (s *Service) BulkSet(ctx context.Context, person string, mark orders.Mark) (int, SaveStatus, error) {
	var n int
	status, err := s.mutate(ctx, "bulk_set", func(st *orders.State, today generic.Date) error {
		var err error
		n, err = st.BulkSet(s.rules, person, mark, today)
		return err
	})
	return n, status, err
}

// AddPeople appends names to the roster.
func (s *Service) AddPeople(ctx context.Context, names []string) ([]string, SaveStatus, error) {
	var added []string
	status, err := s.mutate(ctx, "add_people", func(st *orders.State, _ generic.Date) error {
		var err error
		added, err = st.AddPeople(names...)
		return err
	})
	return added, status, err
}

// DeletePerson removes the roster entry at index.
func (s *Service) DeletePerson(ctx context.Context, index int) (orders.Person, SaveStatus, error) {
	var removed orders.Person
	status, err := s.mutate(ctx, "delete_person", func(st *orders.State, _ generic.Date) error {
		var err error
		removed, err = st.DeletePerson(index)
		return err
	})
	return removed, status, err
}

// SetSpecialHolder moves the special capability to name.
func (s *Service) SetSpecialHolder(ctx context.Context, name string) (SaveStatus, error) {
	return s.mutate(ctx, "set_special_holder", func(st *orders.State, _ generic.Date) error {
		return st.SetSpecialHolder(name)
	})
}

// SetPeriod selects the billing period.
func (s *Service) SetPeriod(ctx context.Context, key generic.PeriodKey) (SaveStatus, error) {
	return s.mutate(ctx, "set_period", func(st *orders.State, _ generic.Date) error {
		return st.SetPeriod(key)
	})
}

// UpdateRates replaces the given pairs and keeps the current value of a nil
// pair. The merge happens under the write lock, so a remote snapshot applied
// meanwhile is never overwritten with stale rates.
func (s *Service) UpdateRates(ctx context.Context, primary, special *orders.Rates) (SaveStatus, error) {
	return s.mutate(ctx, "set_rates", func(st *orders.State, _ generic.Date) error {
		rates := st.Rates
		if primary != nil {
			rates.Primary = *primary
		}
		if special != nil {
			rates.Special = *special
		}
		return st.SetRates(rates)
	})
}

// DefaultPurgeYear is the last year removed by a purge without an explicit
// year: everything before the current year.
func (s *Service) DefaultPurgeYear() int {
	return s.Today().Year() - 1
}

// Purge removes every ledger date in year or earlier. When an archiver is
// configured the state is archived first and a failed archive aborts the
// purge. Nothing is saved when no date matches.
func (s *Service) Purge(ctx context.Context, year int) (int, SaveStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return 0, SaveStatus{}, ErrNotLoaded
	}
	if err := ctx.Err(); err != nil {
		return 0, SaveStatus{}, err
	}

	purged := s.state.Clone()
	removed, err := purged.PurgeThrough(year)
	if err != nil {
		s.metrics.mutation("purge", err)
		return 0, SaveStatus{}, err
	}
	if removed == 0 {
		return 0, s.last, nil
	}

	if s.archiver != nil {
		snap, err := s.snapshot(s.state)
		if err != nil {
			return 0, SaveStatus{}, err
		}
		if err := s.archiver.Archive(ctx, year, snap); err != nil {
			s.metrics.mutation("purge", err)
			return 0, SaveStatus{}, fmt.Errorf("archive before purge: %w", err)
		}
		s.log.InfoContext(ctx, "archived sheet before purge", "year", year, "revision", snap.Revision)
	}

	s.state = purged
	s.metrics.mutation("purge", nil)
	s.log.InfoContext(ctx, "purged old ledger dates", "through", year, "dates", removed)
	return removed, s.commit(ctx), nil
}

// ApplyRemote replaces the whole state with a snapshot from another session
// and saves it locally. It is not replicated again.
func (s *Service) ApplyRemote(ctx context.Context, snap Snapshot) error {
	if snap.Origin == s.origin {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := orders.LoadState(snap.Data, s.Today())
	if err != nil {
		return fmt.Errorf("apply remote snapshot %s: %w", snap.Revision, err)
	}
	orders.Migrate(state)
	s.applyDefaultHolder(ctx, state)

	s.state = state
	s.metrics.remoteApplied()
	s.metrics.observeLedger(state)

	status := SaveStatus{Revision: snap.Revision}
	snap.Data, err = orders.Serialize(state)
	if err == nil {
		err = s.store.Save(ctx, snap)
	}
	s.metrics.save("store", err)
	if err != nil {
		status.Error = err.Error()
		s.log.ErrorContext(ctx, "failed to save remote snapshot", "revision", snap.Revision, "error", err)
	} else {
		status.Persisted = true
	}
	s.last = status

	s.log.InfoContext(ctx, "applied remote snapshot", "revision", snap.Revision, "origin", snap.Origin)
	return nil
}

// =============================================================================
// INTERNALS
// =============================================================================

// applyDefaultHolder gives the configured holder the special capability when
// state names none.
func (s *Service) applyDefaultHolder(ctx context.Context, state *orders.State) bool {
	if _, ok := state.Roster.SpecialHolder(); ok || s.holder == "" {
		return false
	}
	if err := state.SetSpecialHolder(s.holder); err != nil {
		s.log.WarnContext(ctx, "configured special holder not on roster", "name", s.holder)
		return false
	}
	return true
}

func (s *Service) mutate(ctx context.Context, op string, apply func(*orders.State, generic.Date) error) (SaveStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return SaveStatus{}, ErrNotLoaded
	}

	if err := apply(s.state, s.Today()); err != nil {
		s.metrics.mutation(op, err)
		s.log.DebugContext(ctx, "operation rejected", "op", op, "error", err)
		return SaveStatus{}, err
	}
	s.metrics.mutation(op, nil)
	return s.commit(ctx), nil
}

func (s *Service) snapshot(state *orders.State) (Snapshot, error) {
	data, err := orders.Serialize(state)
	if err != nil {
		return Snapshot{}, err
	}
	return Snapshot{
		Revision: ulid.Make().String(),
		Origin:   s.origin,
		SavedAt:  s.now().UTC(),
		Data:     data,
	}, nil
}

// persist saves the current state locally without replicating it.
func (s *Service) persist(ctx context.Context) SaveStatus {
	snap, err := s.snapshot(s.state)
	if err != nil {
		s.last = SaveStatus{Error: err.Error()}
		return s.last
	}
	status := SaveStatus{Revision: snap.Revision}
	err = s.store.Save(ctx, snap)
	s.metrics.save("store", err)
	if err != nil {
		status.Error = err.Error()
		s.log.ErrorContext(ctx, "failed to save sheet", "revision", snap.Revision, "error", err)
	} else {
		status.Persisted = true
	}
	s.last = status
	return status
}

// commit persists and replicates the current state.
func (s *Service) commit(ctx context.Context) SaveStatus {
	s.metrics.observeLedger(s.state)

	snap, err := s.snapshot(s.state)
	if err != nil {
		s.last = SaveStatus{Error: err.Error()}
		return s.last
	}

	status := SaveStatus{Revision: snap.Revision}
	var errs []error

	err = s.store.Save(ctx, snap)
	s.metrics.save("store", err)
	if err != nil {
		errs = append(errs, fmt.Errorf("persist: %w", err))
		s.log.ErrorContext(ctx, "failed to save sheet", "revision", snap.Revision, "error", err)
	} else {
		status.Persisted = true
	}

	if s.replicator != nil {
		err = s.replicator.Replicate(ctx, snap)
		s.metrics.save("replica", err)
		if err != nil {
			errs = append(errs, fmt.Errorf("replicate: %w", err))
			s.log.WarnContext(ctx, "failed to replicate sheet", "revision", snap.Revision, "error", err)
		} else {
			status.Replicated = true
		}
	}

	if err := errors.Join(errs...); err != nil {
		status.Error = err.Error()
	}
	s.last = status
	return status
}
