// Package processor runs the per-cycle event pipeline stage: dedup
// filtering, handler dispatch, and mark-seen bookkeeping.
package processor

import (
	"context"

	"go.uber.org/zap"

	"pumpsync/internal/dedup"
	"pumpsync/internal/handler"
	"pumpsync/internal/model"
)

// Stats summarizes one processing pass for logging and the admin
// status endpoint.
type Stats struct {
	Events  int // events examined
	Skipped int // dedup hits, no handler invoked
	Failed  int // handler errors, retried next poll
	Records int // treatment records produced
}

// Processor is stateless across cycles; all cross-cycle state lives in
// the dedup store.
type Processor struct {
	serial string
	store  dedup.Store
	table  handler.Table
	pctx   *handler.Context
	log    *zap.Logger
}

// New constructs a processor for one device.
func New(serial string, store dedup.Store, table handler.Table, log *zap.Logger) *Processor {
	return &Processor{
		serial: serial,
		store:  store,
		table:  table,
		pctx:   handler.NewContext(serial),
		log:    log,
	}
}

// Process maps new events to treatment records. Events already seen are
// skipped without invoking any handler. A handler error skips the event
// without marking it seen, so the event is retried on the next poll;
// record IDs are idempotent, so retries are cheap. Dedup store read failures
// degrade to "not seen" for the same reason; they are logged, never
// fatal.
func (p *Processor) Process(ctx context.Context, events []model.DeviceEvent) ([]model.TreatmentRecord, Stats) {
	var out []model.TreatmentRecord
	var st Stats

	for _, e := range events {
		if ctx.Err() != nil {
			break
		}
		st.Events++
		id := model.Identity(p.serial, e)

		seen, err := p.store.Seen(ctx, id)
		if err != nil {
			p.log.Warn("dedup lookup failed, treating event as new",
				zap.String("identity", string(id)), zap.Error(err))
		}
		if seen {
			st.Skipped++
			continue
		}

		recs, err := p.table.Dispatch(e, p.pctx)
		if err != nil {
			st.Failed++
			p.log.Warn("event handling failed, will retry next poll",
				zap.Int("type", e.TypeID),
				zap.Int64("seq", e.Seq),
				zap.Time("event_time", e.Timestamp),
				zap.Error(err))
			continue
		}
		out = append(out, recs...)
		st.Records += len(recs)

		if err := p.store.MarkSeen(ctx, id, e.Timestamp); err != nil {
			p.log.Warn("dedup mark failed",
				zap.String("identity", string(id)), zap.Error(err))
		}
	}
	return out, st
}
