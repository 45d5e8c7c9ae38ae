package processor

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"pumpsync/internal/dedup"
	"pumpsync/internal/handler"
	"pumpsync/internal/model"
)

// flakyStore wraps a Store and injects errors.
type flakyStore struct {
	dedup.Store
	seenErr error
	markErr error
}

func (f *flakyStore) Seen(ctx context.Context, id model.EventIdentity) (bool, error) {
	if f.seenErr != nil {
		return false, f.seenErr
	}
	return f.Store.Seen(ctx, id)
}

func (f *flakyStore) MarkSeen(ctx context.Context, id model.EventIdentity, ts time.Time) error {
	if f.markErr != nil {
		return f.markErr
	}
	return f.Store.MarkSeen(ctx, id, ts)
}

// countingHandler records how often it is invoked.
type countingHandler struct {
	calls *int
}

func (countingHandler) CanHandle(model.DeviceEvent) bool { return true }

func (h countingHandler) Handle(e model.DeviceEvent, pc *handler.Context) ([]model.TreatmentRecord, error) {
	*h.calls++
	return handler.Generic{}.Handle(e, pc)
}

func events(n int) []model.DeviceEvent {
	// Timestamps must sit inside the dedup cache window (relative to
	// the wall clock), so base them on now rather than a fixed date.
	base := time.Now().UTC().Truncate(time.Minute).Add(-time.Duration(n) * time.Minute)
	out := make([]model.DeviceEvent, n)
	for i := range out {
		out[i] = model.DeviceEvent{
			Seq:       int64(i + 1),
			TypeID:    handler.TypeIndication,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			RawInfo:   `{"Key":"IndicationUnknown"}`,
		}
	}
	return out
}

func newProcessor(t *testing.T, store dedup.Store, table handler.Table) *Processor {
	t.Helper()
	return New("PMP-1234", store, table, zaptest.NewLogger(t))
}

func TestProcess_Deterministic(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	evs := events(5)

	run := func() []model.TreatmentRecord {
		p := newProcessor(t, dedup.NewCache(time.Hour, 100), handler.DefaultTable())
		recs, st := p.Process(ctx, evs)
		if st.Records != len(recs) {
			t.Fatalf("stats mismatch: %+v vs %d records", st, len(recs))
		}
		return recs
	}

	a, b := run(), run()
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("two runs over the same input differ:\n%+v\n%+v", a, b)
	}
}

func TestProcess_SeenEventsSkipHandlers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := dedup.NewCache(time.Hour, 100)
	evs := events(3)

	// Pre-mark the second event.
	_ = store.MarkSeen(ctx, model.Identity("PMP-1234", evs[1]), evs[1].Timestamp)

	calls := 0
	p := newProcessor(t, store, handler.NewTable(countingHandler{calls: &calls}))
	recs, st := p.Process(ctx, evs)

	if calls != 2 {
		t.Fatalf("handler invoked %d times, want 2 (seen event must not dispatch)", calls)
	}
	if st.Skipped != 1 || len(recs) != 2 {
		t.Fatalf("stats=%+v records=%d", st, len(recs))
	}
}

func TestProcess_RepeatedRunEmitsNothingNew(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := dedup.NewCache(time.Hour, 100)
	evs := events(4)

	p := newProcessor(t, store, handler.DefaultTable())
	first, _ := p.Process(ctx, evs)
	second, st := p.Process(ctx, evs)

	if len(first) != 4 {
		t.Fatalf("first run produced %d records, want 4", len(first))
	}
	if len(second) != 0 || st.Skipped != 4 {
		t.Fatalf("second run: records=%d stats=%+v", len(second), st)
	}
}

func TestProcess_HandlerErrorNotMarkedSeen(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := dedup.NewCache(time.Hour, 100)

	// Profile-change key without the profile parameter makes the
	// indication handler fail.
	bad := model.DeviceEvent{
		Seq:       1,
		TypeID:    handler.TypeIndication,
		Timestamp: time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		RawInfo:   `{"Key":"IndicationBasalProfileXChanged"}`,
	}

	p := newProcessor(t, store, handler.DefaultTable())
	recs, st := p.Process(ctx, []model.DeviceEvent{bad})

	if len(recs) != 0 || st.Failed != 1 {
		t.Fatalf("records=%d stats=%+v", len(recs), st)
	}
	if seen, _ := store.Seen(ctx, model.Identity("PMP-1234", bad)); seen {
		t.Fatalf("failed event must not be marked seen")
	}
}

func TestProcess_StoreErrorsDegradeGracefully(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := &flakyStore{
		Store:   dedup.NewCache(time.Hour, 100),
		seenErr: errors.New("db down"),
		markErr: errors.New("db down"),
	}

	p := newProcessor(t, store, handler.DefaultTable())
	recs, st := p.Process(ctx, events(2))

	// Lookup failures degrade to "not seen": both events processed.
	if len(recs) != 2 || st.Failed != 0 {
		t.Fatalf("records=%d stats=%+v", len(recs), st)
	}
}
