// Package syncer runs the connector's sync loop: acquire session,
// fetch archive, decrypt, parse, dispatch, submit, sleep. One cycle is
// ever in flight; manual triggers coalesce with the scheduled loop.
package syncer

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"pumpsync/internal/archive"
	"pumpsync/internal/cloud"
	"pumpsync/internal/dedup"
	"pumpsync/internal/errs"
	"pumpsync/internal/model"
	"pumpsync/internal/processor"
)

// State is the orchestrator's position in the cycle state machine.
type State int

const (
	StateIdle State = iota
	StateAuthenticating
	StateFetching
	StateDecrypting
	StateParsing
	StateDispatching
	StateSubmitting
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAuthenticating:
		return "authenticating"
	case StateFetching:
		return "fetching"
	case StateDecrypting:
		return "decrypting"
	case StateParsing:
		return "parsing"
	case StateDispatching:
		return "dispatching"
	case StateSubmitting:
		return "submitting"
	case StateBackoff:
		return "backoff"
	default:
		return "unknown"
	}
}

// Status is a snapshot for the admin surface.
type Status struct {
	State        string          `json:"state"`
	LastSyncTime time.Time       `json:"last_sync_time"`
	LastError    string          `json:"last_error,omitempty"`
	LastStats    processor.Stats `json:"last_stats"`
}

// Sessions is the session provider surface the orchestrator needs.
type Sessions interface {
	GetValidSession(ctx context.Context) (model.Session, error)
	Invalidate()
}

// ArchiveAPI fetches the encrypted archive for a window.
type ArchiveAPI interface {
	FetchArchive(ctx context.Context, session model.Session, serial string, w model.Window) (model.RawArchiveBlob, error)
}

// EventProcessor maps parsed events to treatment records.
type EventProcessor interface {
	Process(ctx context.Context, events []model.DeviceEvent) ([]model.TreatmentRecord, processor.Stats)
}

// Submitter delivers records to the downstream store.
type Submitter interface {
	SubmitTreatments(ctx context.Context, records []model.TreatmentRecord) error
}

// Config bounds the loop's scheduling behaviour.
type Config struct {
	Serial          string
	Key             []byte // archive decryption key
	Interval        time.Duration
	Overlap         time.Duration // consecutive windows overlap by this much
	InitialLookback time.Duration // first window size after a cold start
	BackoffBase     time.Duration
	BackoffMax      time.Duration
	DedupWindow     time.Duration
}

// Orchestrator drives the pipeline. All cross-cycle state is the
// session cache (owned by Sessions), the dedup store, and the window
// high-water mark below.
type Orchestrator struct {
	cfg      Config
	sessions Sessions
	api      ArchiveAPI
	proc     EventProcessor
	sink     Submitter
	store    dedup.Store
	log      *zap.Logger

	sf singleflight.Group

	mu     sync.Mutex
	state  State
	status Status
	lastTo time.Time
}

// New wires the orchestrator.
func New(cfg Config, sessions Sessions, api ArchiveAPI, proc EventProcessor, sink Submitter, store dedup.Store, log *zap.Logger) *Orchestrator {
	if cfg.InitialLookback <= 0 {
		cfg.InitialLookback = 24 * time.Hour
	}
	return &Orchestrator{
		cfg:      cfg,
		sessions: sessions,
		api:      api,
		proc:     proc,
		sink:     sink,
		store:    store,
		log:      log,
		state:    StateIdle,
		status:   Status{State: StateIdle.String()},
	}
}

// Run executes the periodic loop until ctx is cancelled. Rejected
// credentials are fatal: the loop logs and returns instead of hammering
// the vendor login endpoint. Every other failure backs off with capped
// exponential delay; a fully successful cycle resets the backoff.
func (o *Orchestrator) Run(ctx context.Context) error {
	backoff := o.newBackoff()
	for {
		err := o.SyncNow(ctx)

		var wait time.Duration
		switch {
		case ctx.Err() != nil:
			return nil
		case err == nil:
			backoff = o.newBackoff()
			wait = o.cfg.Interval
			o.setState(StateIdle)
		case !errs.Retryable(err):
			o.log.Error("vendor rejected credentials, stopping connector")
			return err
		default:
			wait, _ = backoff.Next()
			o.setState(StateBackoff)
			o.log.Warn("sync cycle failed, backing off",
				zap.Duration("wait", wait), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// SyncNow runs one cycle, coalescing with any cycle already in flight:
// concurrent callers (the scheduled loop, the admin trigger) share a
// single archive download and its result.
func (o *Orchestrator) SyncNow(ctx context.Context) error {
	_, err, _ := o.sf.Do("cycle", func() (any, error) {
		return nil, o.runCycle(ctx)
	})
	return err
}

// Status reports the current snapshot for the admin surface.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	s := o.status
	s.State = o.state.String()
	return s
}

func (o *Orchestrator) runCycle(ctx context.Context) (err error) {
	defer func() {
		o.mu.Lock()
		if err != nil {
			o.status.LastError = err.Error()
		} else {
			o.status.LastError = ""
		}
		o.mu.Unlock()
	}()

	o.setState(StateAuthenticating)
	session, err := o.sessions.GetValidSession(ctx)
	if err != nil {
		return err
	}

	o.setState(StateFetching)
	now := time.Now()
	window := o.nextWindow(now)
	blob, err := o.api.FetchArchive(ctx, session, o.cfg.Serial, window)
	if err != nil {
		if errors.Is(err, cloud.ErrTokenRejected) {
			// Locally valid, remotely rejected: never retry it blindly.
			o.sessions.Invalidate()
		}
		return err
	}

	o.setState(StateDecrypting)
	payload, err := archive.Decrypt(blob, o.cfg.Key)
	if err != nil {
		// Non-retryable for this blob; the poll is skipped and no cache
		// has been touched yet.
		return err
	}

	o.setState(StateParsing)
	events, err := o.parse(payload)
	if err != nil {
		return err
	}

	o.setState(StateDispatching)
	records, stats := o.proc.Process(ctx, events)

	o.setState(StateSubmitting)
	if err := o.sink.SubmitTreatments(ctx, records); err != nil {
		// Events handled before the failure stay marked seen; the
		// rejected batch is not resent.
		return err
	}

	if n, err := o.store.Sweep(ctx, now.Add(-o.cfg.DedupWindow)); err != nil {
		o.log.Warn("dedup sweep failed", zap.Error(err))
	} else if n > 0 {
		o.log.Debug("dedup sweep", zap.Int("evicted", n))
	}

	o.mu.Lock()
	o.lastTo = window.To
	o.status.LastSyncTime = now
	o.status.LastStats = stats
	o.mu.Unlock()

	o.log.Info("sync cycle complete",
		zap.Time("window_from", window.From),
		zap.Time("window_to", window.To),
		zap.Int("events", stats.Events),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Int("records", stats.Records),
	)
	o.setState(StateIdle)
	return nil
}

// parse drains the archive reader into memory: dispatch must not start
// before the whole payload parsed, and the reader is single-pass.
func (o *Orchestrator) parse(payload []byte) ([]model.DeviceEvent, error) {
	r := archive.NewReader(payload, o.log)
	var events []model.DeviceEvent
	for {
		e, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if n := r.Skipped(); n > 0 {
		o.log.Warn("archive contained malformed records", zap.Int("skipped", n))
	}
	return events, nil
}

// nextWindow overlaps the previous window by the configured amount so
// events straddling a poll boundary are fetched twice and deduplicated
// rather than missed.
func (o *Orchestrator) nextWindow(now time.Time) model.Window {
	o.mu.Lock()
	defer o.mu.Unlock()
	from := now.Add(-o.cfg.InitialLookback)
	if !o.lastTo.IsZero() {
		from = o.lastTo.Add(-o.cfg.Overlap)
	}
	return model.Window{From: from, To: now}
}

func (o *Orchestrator) newBackoff() retry.Backoff {
	return retry.WithCappedDuration(o.cfg.BackoffMax, retry.NewExponential(o.cfg.BackoffBase))
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}
