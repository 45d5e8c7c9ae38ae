package handler

import (
	"fmt"

	"pumpsync/internal/model"
)

// Alarm handles pump alarm events (type 4). The alarm code and display
// text come from the embedded payload when present.
type Alarm struct{}

func (Alarm) CanHandle(e model.DeviceEvent) bool { return e.TypeID == TypeAlarm }

func (Alarm) Handle(e model.DeviceEvent, pc *Context) ([]model.TreatmentRecord, error) {
	info := ParseInfo(e.RawInfo)
	notes := e.RawInfo
	if key, ok := info.String("Key"); ok {
		notes = "Alarm: " + key
		if text, ok := info.Parameter(0); ok {
			notes += " (" + text + ")"
		}
	}
	return []model.TreatmentRecord{pc.record(e, "alarm", model.TreatmentAlarm, notes)}, nil
}

// BatteryRemoved handles the dedicated battery-removed event (type 8),
// distinct from the battery-removed signal embedded in indications.
type BatteryRemoved struct{}

func (BatteryRemoved) CanHandle(e model.DeviceEvent) bool { return e.TypeID == TypeBatteryRemoved }

func (BatteryRemoved) Handle(e model.DeviceEvent, pc *Context) ([]model.TreatmentRecord, error) {
	return []model.TreatmentRecord{pc.record(e, "battery", model.TreatmentPumpBatteryChange, "")}, nil
}

// CartridgeChanged handles insulin cartridge replacement (type 13).
type CartridgeChanged struct{}

func (CartridgeChanged) CanHandle(e model.DeviceEvent) bool { return e.TypeID == TypeCartridgeChanged }

func (CartridgeChanged) Handle(e model.DeviceEvent, pc *Context) ([]model.TreatmentRecord, error) {
	return []model.TreatmentRecord{pc.record(e, "cartridge", model.TreatmentInsulinChange, "")}, nil
}

// CannulaFilled handles cannula fill / site change (type 17).
type CannulaFilled struct{}

func (CannulaFilled) CanHandle(e model.DeviceEvent) bool { return e.TypeID == TypeCannulaFilled }

func (CannulaFilled) Handle(e model.DeviceEvent, pc *Context) ([]model.TreatmentRecord, error) {
	return []model.TreatmentRecord{pc.record(e, "cannula", model.TreatmentSiteChange, "")}, nil
}

// Generic is the mandatory terminal handler: it accepts every event and
// emits a best-effort note so no event type is dropped silently.
type Generic struct{}

func (Generic) CanHandle(model.DeviceEvent) bool { return true }

func (Generic) Handle(e model.DeviceEvent, pc *Context) ([]model.TreatmentRecord, error) {
	notes := fmt.Sprintf("pump event type %d", e.TypeID)
	if e.RawInfo != "" {
		notes += ": " + e.RawInfo
	}
	return []model.TreatmentRecord{pc.record(e, "generic", model.TreatmentNote, notes)}, nil
}
