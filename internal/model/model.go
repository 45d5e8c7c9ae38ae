// Package model defines domain values flowing through the sync pipeline.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Session is an authenticated vendor-cloud session. Owned exclusively by
// the session provider; everyone else treats it as an opaque value.
type Session struct {
	Token     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Valid reports whether the session still has at least margin left
// before expiry.
func (s Session) Valid(now time.Time, margin time.Duration) bool {
	return s.Token != "" && now.Add(margin).Before(s.ExpiresAt)
}

// Window is the time range of one archive fetch. Consecutive windows
// overlap to tolerate device clock skew and partial failures.
type Window struct {
	From time.Time
	To   time.Time
}

// RawArchiveBlob is the encrypted archive as fetched from the vendor,
// with its declared format version. Transient; consumed by the decryptor
// within the same cycle.
type RawArchiveBlob struct {
	Version string
	Data    []byte
}

// DeviceEvent is one discrete, timestamped occurrence recorded by the
// pump. Immutable after parse.
type DeviceEvent struct {
	Seq       int64     // position in the source archive
	TypeID    int       // vendor event type code
	Timestamp time.Time // device-local timestamp, normalized to UTC
	RawInfo   string    // embedded payload, typically JSON key/value pairs
}

// EventIdentity is the deterministic dedup fingerprint of a device event.
// Two events with equal identity are the same occurrence even when
// fetched on different polls.
type EventIdentity string

// Identity derives the dedup fingerprint for an event recorded by the
// pump with the given serial.
func Identity(serial string, e DeviceEvent) EventIdentity {
	h := sha256.New()
	fmt.Fprintf(h, "%s\n%d\n%s\n%s", serial, e.TypeID, e.Timestamp.UTC().Format(time.RFC3339Nano), e.RawInfo)
	return EventIdentity(hex.EncodeToString(h.Sum(nil)))
}

// TreatmentType enumerates the normalized treatment categories this
// connector emits.
type TreatmentType int

const (
	TreatmentNote TreatmentType = iota
	TreatmentIndication
	TreatmentProfileSwitch
	TreatmentPumpBatteryChange
	TreatmentInsulinChange
	TreatmentSiteChange
	TreatmentAlarm
)

// String returns the Nightscout eventType wire name.
func (t TreatmentType) String() string {
	switch t {
	case TreatmentIndication, TreatmentAlarm:
		return "Announcement"
	case TreatmentProfileSwitch:
		return "Profile Switch"
	case TreatmentPumpBatteryChange:
		return "Pump Battery Change"
	case TreatmentInsulinChange:
		return "Insulin Change"
	case TreatmentSiteChange:
		return "Site Change"
	default:
		return "Note"
	}
}

// treatmentNS is the fixed namespace for name-based treatment IDs.
var treatmentNS = uuid.Must(uuid.FromString("5ba3771e-6a32-4b72-9c85-0d8394f86f1f"))

// TreatmentRecord is the normalized, storage-ready representation of a
// clinically relevant action derived from one device event.
type TreatmentRecord struct {
	ID        string
	Type      TreatmentType
	Time      time.Time
	Notes     string
	Profile   string  // set for profile switches
	Duration  float64 // minutes, where applicable
	EnteredBy string
}

// TreatmentID derives the deterministic record ID from the source
// event's identity plus a type-specific suffix. Reprocessing the same
// event always yields the same ID, so downstream storage upserts
// instead of duplicating.
func TreatmentID(id EventIdentity, suffix string) string {
	return uuid.NewV5(treatmentNS, string(id)+"/"+suffix).String()
}
