package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/ESD-II/tracker-website/metrics"
	"github.com/ESD-II/tracker-website/models"
	"github.com/ESD-II/tracker-website/repositories"
)

// PointStore is the append/update slice of the store this controller needs.
// The postgres repository satisfies it; tests use an in-memory fake.
type PointStore interface {
	Create(ctx context.Context, start models.ScoreSnapshot) (int, error)
	Finalize(ctx context.Context, id int, end models.ScoreSnapshot, endTime time.Time) error
	AppendCoordinate(ctx context.Context, pointID int, relativeMS int, x, y, z float64) error
}

// TrackerConfig tunes the persistence path. Zero values fall back to the
// defaults below.
type TrackerConfig struct {
	// QueueSize bounds the sequential write queue. Coordinate appends are
	// dropped when the queue is full; create/finalize always get through.
	QueueSize int
	// WriteTimeout is the per-call store timeout. A timed-out write counts
	// as a transient failure.
	WriteTimeout time.Duration
	// MaxWriteAttempts bounds create/finalize retries. Appends are never
	// retried.
	MaxWriteAttempts uint
}

const (
	defaultQueueSize        = 256
	defaultWriteTimeout     = 3 * time.Second
	defaultMaxWriteAttempts = 4
)

// pointHandle carries a point's store identity across the async boundary
// between the event loop and the write queue. After construction its fields
// are touched only by the queue worker, and the queue guarantees the create
// task runs before any append or finalize task for the same handle.
type pointHandle struct {
	id        int
	createErr error
	finalized bool
}

// PointTracker is the state machine over {idle, point-active}. Events arrive
// from the driver's single event loop; persistence happens on a worker
// goroutine fed through a bounded queue, which preserves per-point write
// order (create before appends before finalize) without a global lock.
//
// Every queue send and the queue close happen under mu. The worker never
// takes mu, so holding it across a blocking send cannot deadlock, and a
// send can never race the close.
type PointTracker struct {
	store   PointStore
	logger  *slog.Logger
	metrics *metrics.Metrics

	queue   chan func()
	drained chan struct{}

	writeTimeout     time.Duration
	maxWriteAttempts uint

	mu        sync.Mutex
	active    *pointHandle
	startMono time.Time
	closing   bool
}

func NewPointTracker(store PointStore, logger *slog.Logger, m *metrics.Metrics, cfg TrackerConfig) *PointTracker {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.MaxWriteAttempts == 0 {
		cfg.MaxWriteAttempts = defaultMaxWriteAttempts
	}
	return &PointTracker{
		store:            store,
		logger:           logger,
		metrics:          m,
		queue:            make(chan func(), cfg.QueueSize),
		drained:          make(chan struct{}),
		writeTimeout:     cfg.WriteTimeout,
		maxWriteAttempts: cfg.MaxWriteAttempts,
	}
}

// Run drains the write queue until Shutdown closes it. Start with
// `go tracker.Run()` before feeding events.
func (t *PointTracker) Run() {
	for task := range t.queue {
		task()
	}
	close(t.drained)
}

// Active reports whether a point is currently open.
func (t *PointTracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active != nil
}

// Handle advances the state machine for one event. The snapshot is the
// session state as of this event; it is only consulted on open/close
// transitions.
func (t *PointTracker) Handle(ev Event, snapshot models.ScoreSnapshot) {
	switch e := ev.(type) {
	case StartClock:
		t.handleStart(snapshot)
	case StopClock:
		t.handleStop(snapshot, "stop_clock")
	case OutOfBounds:
		t.handleStop(snapshot, "ball_crossed_line")
	case CoordinateSample:
		t.handleCoordinate(e)
	default:
		// Score and clock events feed SessionState only; the next
		// open/close transition picks them up through its snapshot.
	}
}

func (t *PointTracker) handleStart(snapshot models.ScoreSnapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closing {
		t.logger.Warn("start signal ignored, tracker is shutting down")
		return
	}
	if t.active != nil {
		// Upstream sent two starts without a stop. Recover by finalizing
		// the stale point with the current session context, then open the
		// new one.
		t.logger.Warn("start signal while a point was active, finalizing previous point")
		t.queue <- t.finalizeTask(t.active, snapshot, time.Now())
	}

	handle := &pointHandle{}
	t.active = handle
	t.startMono = time.Now()
	t.queue <- t.createTask(handle, snapshot)
}

func (t *PointTracker) handleStop(snapshot models.ScoreSnapshot, signal string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil {
		t.logger.Warn("stop signal with no active point", slog.String("signal", signal))
		return
	}
	if t.closing {
		return
	}
	t.queue <- t.finalizeTask(t.active, snapshot, time.Now())
	t.active = nil
	t.startMono = time.Time{}
}

func (t *PointTracker) handleCoordinate(sample CoordinateSample) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active == nil || t.closing {
		// Steady-state between points. Deliberately not logged: coordinates
		// arrive at high frequency while idle.
		if t.metrics != nil {
			t.metrics.RecordCoordinateDropped()
		}
		return
	}

	handle := t.active
	offsetMS := int(time.Since(t.startMono).Milliseconds())

	select {
	case t.queue <- t.appendTask(handle, offsetMS, sample):
	default:
		if t.metrics != nil {
			t.metrics.RecordCoordinateDropped()
		}
		t.logger.Error("write queue full, coordinate sample dropped")
	}
}

func (t *PointTracker) createTask(handle *pointHandle, snapshot models.ScoreSnapshot) func() {
	return func() {
		id, err := t.createWithRetry(snapshot)
		if err != nil {
			handle.createErr = err
			t.logger.Error("failed to create point record", slog.Any("error", err))
			return
		}
		handle.id = id
		if t.metrics != nil {
			t.metrics.RecordPointCreated()
		}
		t.logger.Info("point opened",
			slog.Int("point_id", id),
			slog.String("score", snapshot.Team1Points+"-"+snapshot.Team2Points),
			slog.Int("set", snapshot.SetNumber),
		)
	}
}

func (t *PointTracker) appendTask(handle *pointHandle, offsetMS int, sample CoordinateSample) func() {
	return func() {
		if handle.createErr != nil || handle.id == 0 {
			if t.metrics != nil {
				t.metrics.RecordCoordinateDropped()
			}
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), t.writeTimeout)
		defer cancel()
		// One attempt only. Losing a sample is acceptable; stalling the
		// high-frequency write path is not.
		if err := t.store.AppendCoordinate(ctx, handle.id, offsetMS, sample.X, sample.Y, sample.Z); err != nil {
			if t.metrics != nil {
				t.metrics.RecordCoordinateDropped()
			}
			t.logger.Error("failed to append coordinate, sample dropped",
				slog.Int("point_id", handle.id),
				slog.Int("offset_ms", offsetMS),
				slog.Any("error", err),
			)
			return
		}
		if t.metrics != nil {
			t.metrics.RecordCoordinatePersisted()
		}
	}
}

// finalizeTask closes a point in the store. The finalized flag is read and
// set on the queue worker only, so a second finalize task for the same
// handle (shutdown racing a stop signal) becomes a no-op before it ever
// reaches the store; the store's end_time check backs this up across
// process restarts.
func (t *PointTracker) finalizeTask(handle *pointHandle, snapshot models.ScoreSnapshot, endTime time.Time) func() {
	return func() {
		if handle.finalized || handle.createErr != nil || handle.id == 0 {
			return
		}
		handle.finalized = true

		err := t.finalizeWithRetry(handle.id, snapshot, endTime)
		if errors.Is(err, repositories.ErrPointAlreadyFinalized) {
			t.logger.Warn("point was already finalized in store", slog.Int("point_id", handle.id))
			return
		}
		if err != nil {
			t.logger.Error("failed to finalize point record",
				slog.Int("point_id", handle.id),
				slog.Any("error", err),
			)
			return
		}
		if t.metrics != nil {
			t.metrics.RecordPointFinalized()
		}
		t.logger.Info("point finalized",
			slog.Int("point_id", handle.id),
			slog.String("score", snapshot.Team1Points+"-"+snapshot.Team2Points),
		)
	}
}

func (t *PointTracker) createWithRetry(snapshot models.ScoreSnapshot) (int, error) {
	operation := func() (int, error) {
		ctx, cancel := context.WithTimeout(context.Background(), t.writeTimeout)
		defer cancel()

		id, err := t.store.Create(ctx, snapshot)
		if err != nil {
			if !repositories.IsTransient(err) {
				return 0, backoff.Permanent(err)
			}
			if t.metrics != nil {
				t.metrics.RecordStoreRetry()
			}
			return 0, err
		}
		return id, nil
	}
	return backoff.Retry(context.Background(), operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(t.maxWriteAttempts),
	)
}

func (t *PointTracker) finalizeWithRetry(id int, snapshot models.ScoreSnapshot, endTime time.Time) error {
	operation := func() (struct{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), t.writeTimeout)
		defer cancel()

		err := t.store.Finalize(ctx, id, snapshot, endTime)
		if err != nil {
			if !repositories.IsTransient(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			if t.metrics != nil {
				t.metrics.RecordStoreRetry()
			}
			return struct{}{}, err
		}
		return struct{}{}, nil
	}
	_, err := backoff.Retry(context.Background(), operation,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(t.maxWriteAttempts),
	)
	return err
}

// Shutdown finalizes any open point with the last known session state,
// closes the write queue, and waits for it to drain or for ctx to expire.
// Safe to call more than once; only the first call finalizes and closes.
func (t *PointTracker) Shutdown(ctx context.Context, snapshot models.ScoreSnapshot) {
	t.mu.Lock()
	if !t.closing {
		if t.active != nil {
			t.logger.Info("finalizing active point on shutdown")
			t.queue <- t.finalizeTask(t.active, snapshot, time.Now())
			t.active = nil
		}
		t.closing = true
		close(t.queue)
	}
	t.mu.Unlock()

	select {
	case <-t.drained:
	case <-ctx.Done():
		t.logger.Warn("write queue did not drain before shutdown deadline")
	}
}
