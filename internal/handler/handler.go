// Package handler maps raw device events to normalized treatment records.
//
// Dispatch walks an explicitly ordered handler table top-down and invokes
// the first handler whose predicate matches the event's type code:
// first match wins, no fallthrough. The terminal entry is the generic
// handler, whose predicate always matches, so every event type produces
// at least a best-effort record.
package handler

import (
	"fmt"

	"pumpsync/internal/model"
)

// Vendor event type codes as they appear in the decrypted archive.
const (
	TypeIndication       = 3
	TypeAlarm            = 4
	TypeBatteryRemoved   = 8
	TypeCartridgeChanged = 13
	TypeCannulaFilled    = 17
)

// Handler maps one family of device events to treatment records.
// Implementations must be pure: no cross-event state, no side effects.
type Handler interface {
	// CanHandle reports whether this handler owns the event's type code.
	CanHandle(e model.DeviceEvent) bool
	// Handle maps the event to zero or more treatment records. An error
	// means the embedded payload was malformed; the caller skips the
	// event without marking it seen so it is retried on the next poll.
	Handle(e model.DeviceEvent, pc *Context) ([]model.TreatmentRecord, error)
}

// Context is the immutable shared parsing context handed to every
// handler. Built once at startup.
type Context struct {
	Serial      string
	EnteredBy   string
	Indications []IndicationRoute
}

// NewContext builds the default parsing context for a device.
func NewContext(serial string) *Context {
	return &Context{
		Serial:      serial,
		EnteredBy:   "pumpsync",
		Indications: DefaultIndicationRoutes(),
	}
}

// record builds a treatment record with the deterministic ID derived
// from the event's identity plus the type-specific suffix.
func (pc *Context) record(e model.DeviceEvent, suffix string, typ model.TreatmentType, notes string) model.TreatmentRecord {
	return model.TreatmentRecord{
		ID:        model.TreatmentID(model.Identity(pc.Serial, e), suffix),
		Type:      typ,
		Time:      e.Timestamp,
		Notes:     notes,
		EnteredBy: pc.EnteredBy,
	}
}

// Table is the ordered handler list. Construct with NewTable; the
// generic handler is always appended as the terminal entry.
type Table struct {
	handlers []Handler
}

// NewTable builds the dispatch table. Order matters: handlers are tried
// top-down and the first match wins.
func NewTable(hs ...Handler) Table {
	return Table{handlers: append(append([]Handler{}, hs...), Generic{})}
}

// DefaultTable returns the standard handler ordering for this connector.
func DefaultTable() Table {
	return NewTable(
		Indication{},
		Alarm{},
		BatteryRemoved{},
		CartridgeChanged{},
		CannulaFilled{},
	)
}

// Dispatch invokes the first matching handler exclusively.
func (t Table) Dispatch(e model.DeviceEvent, pc *Context) ([]model.TreatmentRecord, error) {
	for _, h := range t.handlers {
		if h.CanHandle(e) {
			return h.Handle(e, pc)
		}
	}
	// Unreachable with the terminal generic handler in place.
	return nil, fmt.Errorf("no handler for event type %d", e.TypeID)
}
