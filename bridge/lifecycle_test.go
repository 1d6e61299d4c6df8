package bridge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ESD-II/tracker-website/models"
)

type finalizeCall struct {
	PointID  int
	Snapshot models.ScoreSnapshot
	EndTime  time.Time
}

type appendCall struct {
	PointID  int
	OffsetMS int
	X, Y, Z  float64
}

// fakeStore records every store call and can be primed with per-call errors.
type fakeStore struct {
	mu sync.Mutex

	nextID        int
	createErrs    []error // popped one per Create call
	appendErr     error
	finalizeErr   error
	createCalls   []models.ScoreSnapshot
	appendCalls   []appendCall
	finalizeCalls []finalizeCall
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 100}
}

func (f *fakeStore) Create(_ context.Context, start models.ScoreSnapshot) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls = append(f.createCalls, start)
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return 0, err
		}
	}
	f.nextID++
	return f.nextID, nil
}

func (f *fakeStore) Finalize(_ context.Context, id int, end models.ScoreSnapshot, endTime time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finalizeErr != nil {
		return f.finalizeErr
	}
	f.finalizeCalls = append(f.finalizeCalls, finalizeCall{PointID: id, Snapshot: end, EndTime: endTime})
	return nil
}

func (f *fakeStore) AppendCoordinate(_ context.Context, pointID int, relativeMS int, x, y, z float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appendCalls = append(f.appendCalls, appendCall{PointID: pointID, OffsetMS: relativeMS, X: x, Y: y, Z: z})
	if f.appendErr != nil {
		return f.appendErr
	}
	return nil
}

func (f *fakeStore) snapshot() (creates []models.ScoreSnapshot, appends []appendCall, finalizes []finalizeCall) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.ScoreSnapshot(nil), f.createCalls...),
		append([]appendCall(nil), f.appendCalls...),
		append([]finalizeCall(nil), f.finalizeCalls...)
}

func newTestTracker(store PointStore) *PointTracker {
	tracker := NewPointTracker(store, slog.New(slog.NewTextHandler(io.Discard, nil)), nil, TrackerConfig{
		QueueSize:        16,
		WriteTimeout:     time.Second,
		MaxWriteAttempts: 3,
	})
	go tracker.Run()
	return tracker
}

func drain(t *testing.T, tracker *PointTracker, snap models.ScoreSnapshot) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	tracker.Shutdown(ctx, snap)
}

func score(t1, t2 string) models.ScoreSnapshot {
	return models.ScoreSnapshot{Team1Points: t1, Team2Points: t2, SetNumber: 1}
}

func TestCoordinatesWhileIdleAreNotPersisted(t *testing.T) {
	store := newFakeStore()
	tracker := newTestTracker(store)

	for i := 0; i < 10; i++ {
		tracker.Handle(CoordinateSample{X: float64(i), Y: 1, Z: 2}, score("0", "0"))
	}
	drain(t, tracker, score("0", "0"))

	_, appends, _ := store.snapshot()
	assert.Empty(t, appends)
}

func TestCoordinateOffsetsNonDecreasing(t *testing.T) {
	store := newFakeStore()
	tracker := newTestTracker(store)

	tracker.Handle(StartClock{}, score("0", "0"))
	for i := 0; i < 5; i++ {
		tracker.Handle(CoordinateSample{X: float64(i)}, score("0", "0"))
		time.Sleep(2 * time.Millisecond)
	}
	tracker.Handle(StopClock{}, score("15", "0"))
	drain(t, tracker, score("15", "0"))

	_, appends, _ := store.snapshot()
	require.Len(t, appends, 5)
	prev := -1
	for _, call := range appends {
		assert.GreaterOrEqual(t, call.OffsetMS, 0)
		assert.GreaterOrEqual(t, call.OffsetMS, prev)
		prev = call.OffsetMS
	}
}

func TestStartStopRoundTrip(t *testing.T) {
	store := newFakeStore()
	tracker := newTestTracker(store)

	before := time.Now()
	tracker.Handle(StartClock{}, score("30", "15"))
	tracker.Handle(StopClock{}, score("40", "15"))
	drain(t, tracker, score("40", "15"))

	creates, appends, finalizes := store.snapshot()
	require.Len(t, creates, 1)
	assert.Equal(t, "30", creates[0].Team1Points)
	assert.Empty(t, appends)

	require.Len(t, finalizes, 1)
	assert.Equal(t, "40", finalizes[0].Snapshot.Team1Points)
	// Immediate stop: duration is effectively zero.
	assert.WithinDuration(t, before, finalizes[0].EndTime, time.Second)
	assert.False(t, tracker.Active())
}

func TestDoubleStartFinalizesStalePoint(t *testing.T) {
	store := newFakeStore()
	tracker := newTestTracker(store)

	tracker.Handle(StartClock{}, score("0", "0"))
	// Score moved on before the second (anomalous) start arrived.
	tracker.Handle(StartClock{}, score("15", "0"))
	tracker.Handle(StopClock{}, score("30", "0"))
	drain(t, tracker, score("30", "0"))

	creates, _, finalizes := store.snapshot()
	require.Len(t, creates, 2)
	require.Len(t, finalizes, 2)

	// The stale point was closed with the session state as of the second
	// start, not the state it opened with.
	assert.Equal(t, "15", finalizes[0].Snapshot.Team1Points)
	assert.Equal(t, "30", finalizes[1].Snapshot.Team1Points)
	assert.Equal(t, creates[0], score("0", "0"))
}

func TestStopWhileIdleIsANoOp(t *testing.T) {
	store := newFakeStore()
	tracker := newTestTracker(store)

	tracker.Handle(StopClock{}, score("0", "0"))
	tracker.Handle(OutOfBounds{}, score("0", "0"))
	drain(t, tracker, score("0", "0"))

	creates, _, finalizes := store.snapshot()
	assert.Empty(t, creates)
	assert.Empty(t, finalizes)
}

func TestOutOfBoundsFinalizesLikeStop(t *testing.T) {
	store := newFakeStore()
	tracker := newTestTracker(store)

	tracker.Handle(StartClock{}, score("0", "0"))
	tracker.Handle(OutOfBounds{}, score("0", "15"))
	drain(t, tracker, score("0", "15"))

	_, _, finalizes := store.snapshot()
	require.Len(t, finalizes, 1)
	assert.Equal(t, "15", finalizes[0].Snapshot.Team2Points)
}

func TestShutdownFinalizesOpenPointExactlyOnce(t *testing.T) {
	store := newFakeStore()
	tracker := newTestTracker(store)

	tracker.Handle(StartClock{}, score("40", "40"))

	ctx := context.Background()
	tracker.Shutdown(ctx, score("AD", "40"))
	tracker.Shutdown(ctx, score("AD", "40")) // second invocation must be a no-op

	_, _, finalizes := store.snapshot()
	require.Len(t, finalizes, 1)
	assert.Equal(t, "AD", finalizes[0].Snapshot.Team1Points)
}

func TestTransientCreateErrorIsRetried(t *testing.T) {
	store := newFakeStore()
	store.createErrs = []error{context.DeadlineExceeded} // transient, then success
	tracker := newTestTracker(store)

	tracker.Handle(StartClock{}, score("0", "0"))
	tracker.Handle(CoordinateSample{X: 1, Y: 2, Z: 3}, score("0", "0"))
	tracker.Handle(StopClock{}, score("15", "0"))
	drain(t, tracker, score("15", "0"))

	creates, appends, finalizes := store.snapshot()
	assert.Len(t, creates, 2)
	require.Len(t, appends, 1)
	assert.Equal(t, 1.0, appends[0].X)
	assert.Len(t, finalizes, 1)
}

func TestPermanentCreateErrorIsNotRetried(t *testing.T) {
	store := newFakeStore()
	permanent := errors.New("relation points does not exist")
	store.createErrs = []error{permanent, permanent, permanent}
	tracker := newTestTracker(store)

	tracker.Handle(StartClock{}, score("0", "0"))
	tracker.Handle(CoordinateSample{X: 1}, score("0", "0"))
	tracker.Handle(StopClock{}, score("0", "15"))
	drain(t, tracker, score("0", "15"))

	creates, appends, finalizes := store.snapshot()
	// One attempt only: the error is permanent.
	assert.Len(t, creates, 1)
	// Without a store identity nothing downstream can be written.
	assert.Empty(t, appends)
	assert.Empty(t, finalizes)
}

func TestAppendFailureIsDroppedNotRetried(t *testing.T) {
	store := newFakeStore()
	store.appendErr = errors.New("insert failed")
	tracker := newTestTracker(store)

	tracker.Handle(StartClock{}, score("0", "0"))
	tracker.Handle(CoordinateSample{X: 1}, score("0", "0"))
	tracker.Handle(CoordinateSample{X: 2}, score("0", "0"))
	tracker.Handle(StopClock{}, score("15", "0"))
	drain(t, tracker, score("15", "0"))

	_, appends, finalizes := store.snapshot()
	// Single attempt per sample, and the pipeline keeps going.
	assert.Len(t, appends, 2)
	assert.Len(t, finalizes, 1)
}

func TestCoordinatesAttachToActivePointID(t *testing.T) {
	store := newFakeStore()
	tracker := newTestTracker(store)

	tracker.Handle(StartClock{}, score("0", "0"))
	tracker.Handle(CoordinateSample{X: 1.23, Y: 4.56, Z: -0.10}, score("0", "0"))
	tracker.Handle(StopClock{}, score("0", "0"))

	tracker.Handle(StartClock{}, score("0", "15"))
	tracker.Handle(CoordinateSample{X: 9}, score("0", "15"))
	tracker.Handle(StopClock{}, score("0", "30"))
	drain(t, tracker, score("0", "30"))

	_, appends, finalizes := store.snapshot()
	require.Len(t, appends, 2)
	require.Len(t, finalizes, 2)

	assert.Equal(t, finalizes[0].PointID, appends[0].PointID)
	assert.Equal(t, finalizes[1].PointID, appends[1].PointID)
	assert.NotEqual(t, appends[0].PointID, appends[1].PointID)

	assert.Equal(t, 1.23, appends[0].X)
	assert.Equal(t, 4.56, appends[0].Y)
	assert.Equal(t, -0.10, appends[0].Z)
}
