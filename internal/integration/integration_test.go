package integration

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/foodflow/foodflow/internal/detect"
	"github.com/foodflow/foodflow/internal/events"
	"github.com/foodflow/foodflow/internal/inventory"
	"github.com/foodflow/foodflow/internal/policy"
)

type fixedSales struct {
	sold map[string]float64
}

func (s *fixedSales) UnitsSold(ctx context.Context, since time.Time) (map[string]float64, error) {
	return s.sold, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRepo(t *testing.T) *inventory.MemoryRepository {
	t.Helper()
	expiry := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	repo, err := inventory.NewMemoryRepository([]inventory.Lot{
		{
			Product:  "FF101",
			Name:     "Organic Strawberries",
			Category: "Produce",
			Lot:      "LOT-A",
			Expiry:   &expiry,
			Quantities: map[inventory.Location]float64{
				inventory.LocationBackroom:   80,
				inventory.LocationSalesFloor: 20,
			},
		},
		{
			Product:  "FF102",
			Name:     "Whole Milk",
			Category: "Dairy",
			Lot:      "LOT-B",
			Quantities: map[inventory.Location]float64{
				inventory.LocationSalesFloor: 5,
				inventory.LocationQuarantine: 3,
			},
		},
	})
	require.NoError(t, err)
	return repo
}

func testScheduler(t *testing.T, repo inventory.RepositoryPort, cache *redis.Client, dir string) (*Scheduler, *FlaggedStore) {
	t.Helper()
	store := NewFlaggedStore(filepath.Join(dir, "flagged.json"), cache, testLogger())
	detector := detect.NewDetector(detect.DefaultConfig(), &fixedSales{sold: map[string]float64{}}, nil, testLogger())
	sched := NewScheduler(SchedulerConfig{
		Repo:     repo,
		Detector: detector,
		Engine:   policy.NewEngine(policy.DefaultRuleTable(), testLogger()),
		Store:    store,
		Interval: time.Minute,
		Logger:   testLogger(),
	})
	return sched, store
}

func TestCyclePublishesEnrichedArtifact(t *testing.T) {
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })

	sched, store := testScheduler(t, testRepo(t), cache, t.TempDir())
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, sched.RunCycle(context.Background(), now))

	artifact, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, now, artifact.GeneratedAt.UTC())
	require.Len(t, artifact.Decisions, 2)

	straw := artifact.Decisions[0]
	require.Equal(t, "FF101", straw.DefaultCode)
	require.Equal(t, "Organic Strawberries", straw.ProductName)
	require.Equal(t, "Produce", straw.Category)
	require.Equal(t, []string{"backroom", "sales_floor"}, straw.Stores)
	require.InDelta(t, 100.0, straw.Qty, 0.0001)
	// Zero sales on an expiring lot: markdown wins over donate.
	require.Equal(t, policy.OutcomeMarkdown, straw.Outcome)

	// Quarantined milk stock is excluded from qty and stores.
	milk := artifact.Decisions[1]
	require.Equal(t, "FF102", milk.DefaultCode)
	require.InDelta(t, 5.0, milk.Qty, 0.0001)
	require.Equal(t, []string{"sales_floor"}, milk.Stores)

	require.Equal(t, now, store.LastSync().UTC())

	// Redis mirror carries the same payload.
	mirrored, err := cache.Get(context.Background(), flaggedKey).Result()
	require.NoError(t, err)
	require.Contains(t, mirrored, "FF101")
	syncedAt, err := cache.Get(context.Background(), lastSyncKey).Result()
	require.NoError(t, err)
	require.Equal(t, now.Format(time.RFC3339Nano), syncedAt)
}

type downRepo struct{}

func (downRepo) GetSnapshot(ctx context.Context) (*inventory.Snapshot, error) {
	return nil, errors.New("erp unreachable")
}

func (downRepo) ApplyDelta(ctx context.Context, product, lot string, loc inventory.Location, delta float64) (float64, error) {
	return 0, errors.New("erp unreachable")
}

func (downRepo) ApplyDeltas(ctx context.Context, movements []inventory.Movement) error {
	return errors.New("erp unreachable")
}

func TestFailedCyclePreservesArtifact(t *testing.T) {
	dir := t.TempDir()
	sched, store := testScheduler(t, testRepo(t), nil, dir)
	first := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, sched.RunCycle(context.Background(), first))

	published, err := store.Load()
	require.NoError(t, err)

	// Upstream goes down: the cycle fails, the artifact and last-sync stay.
	failing, _ := testScheduler(t, downRepo{}, nil, dir)
	failing.store = store
	later := first.Add(time.Hour)
	require.Error(t, failing.RunCycle(context.Background(), later))

	unchanged, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, published, unchanged)
	require.Equal(t, first, store.LastSync().UTC())

	// The next successful cycle replaces both.
	sched.store = store
	require.NoError(t, sched.RunCycle(context.Background(), later))
	require.Equal(t, later, store.LastSync().UTC())
}

func TestStoreRecoversLastSyncFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flagged.json")
	store := NewFlaggedStore(path, nil, testLogger())
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, store.Publish(context.Background(), Artifact{GeneratedAt: now}))

	reopened := NewFlaggedStore(path, nil, testLogger())
	require.Equal(t, now, reopened.LastSync().UTC())
}

func TestStoreLoadWithoutArtifact(t *testing.T) {
	store := NewFlaggedStore(filepath.Join(t.TempDir(), "flagged.json"), nil, testLogger())
	_, err := store.Load()
	require.ErrorIs(t, err, ErrNoArtifact)
	require.True(t, store.LastSync().IsZero())
}

type stubRecorder struct {
	recorded []policy.Decision
	err      error
}

func (r *stubRecorder) Record(ctx context.Context, at time.Time, decisions []policy.Decision) error {
	r.recorded = append(r.recorded, decisions...)
	return r.err
}

func TestRecorderFailureDoesNotFailCycle(t *testing.T) {
	sched, _ := testScheduler(t, testRepo(t), nil, t.TempDir())
	recorder := &stubRecorder{err: errors.New("csv locked")}
	sched.recorder = recorder

	require.NoError(t, sched.RunCycle(context.Background(), time.Now()))
	require.NotEmpty(t, recorder.recorded)
}

type appendSink struct {
	appended []events.Event
}

func (s *appendSink) Append(ctx context.Context, evts ...events.Event) error {
	s.appended = append(s.appended, evts...)
	return nil
}

func (s *appendSink) Query(ctx context.Context, filter events.Filter) ([]events.Event, error) {
	var out []events.Event
	for _, e := range s.appended {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestRecallDecisionQuarantinesStock(t *testing.T) {
	repo := testRepo(t)
	sched, store := testScheduler(t, repo, nil, t.TempDir())

	table := policy.RuleTable{Rules: []policy.Rule{
		{Reason: detect.ReasonNearExpiry, Category: "Produce", Outcome: policy.OutcomeRecallQuarantine, QtyFraction: 1},
	}}
	require.NoError(t, table.Validate())
	sched.engine = policy.NewEngine(table, testLogger())

	sink := &appendSink{}
	sched.quarantiner = inventory.NewService(repo, sink, testLogger())

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, sched.RunCycle(context.Background(), now))

	artifact, err := store.Load()
	require.NoError(t, err)
	require.Equal(t, policy.OutcomeRecallQuarantine, artifact.Decisions[0].Outcome)

	// All sellable strawberry stock moved to quarantine after the publish.
	snapshot, err := repo.GetSnapshot(context.Background())
	require.NoError(t, err)
	lot, ok := snapshot.Get("FF101", "LOT-A")
	require.True(t, ok)
	require.InDelta(t, 0.0, lot.SellableQty(), 0.0001)
	require.InDelta(t, 100.0, lot.Qty(inventory.LocationQuarantine), 0.0001)

	require.Len(t, sink.appended, 1)
	require.Equal(t, events.TypeRecallQuarantine, sink.appended[0].Type)
}

func TestHandlerEndpoints(t *testing.T) {
	sched, store := testScheduler(t, testRepo(t), nil, t.TempDir())
	r := chi.NewRouter()
	NewHandler(store).MountRoutes(r)

	// Before any cycle: 404 on both.
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/flagged", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/last-sync", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	require.NoError(t, sched.RunCycle(context.Background(), now))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/flagged", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "FF101")

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/last-sync", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "2026-03-01T09:00:00Z")
}
