package handler

import (
	"fmt"
	"strings"

	"pumpsync/internal/model"
)

// IndicationRoute is one sub-case of the indication event family. The
// embedded payload's Key field selects the route; parameter positions
// are remapped per route (ProfileParam names which ParameterN carries
// the profile name, -1 when the route has none).
type IndicationRoute struct {
	Name         string // diagnostic label
	Matches      func(key string) bool
	Type         model.TreatmentType
	Suffix       string
	ProfileParam int
}

// DefaultIndicationRoutes is the fixed routing table for indication
// events. Order matters; evaluated top-down.
func DefaultIndicationRoutes() []IndicationRoute {
	return []IndicationRoute{
		{
			// IndicationBasalProfile<slot>Changed, e.g. "IndicationBasalProfileXChanged".
			Name: "basal profile changed",
			Matches: func(key string) bool {
				return strings.HasPrefix(key, "IndicationBasalProfile") && strings.HasSuffix(key, "Changed")
			},
			Type:         model.TreatmentProfileSwitch,
			Suffix:       "profile-switch",
			ProfileParam: 0,
		},
		{
			Name:         "battery removed",
			Matches:      func(key string) bool { return key == "IndicationBatteryRemoved" },
			Type:         model.TreatmentPumpBatteryChange,
			Suffix:       "battery",
			ProfileParam: -1,
		},
	}
}

// Indication handles the indication event family (type 3). The embedded
// Key field decides between a basal-profile switch, a battery-removed
// signal, and the generic indication fallback. An absent, non-string,
// or unrecognized key falls through to the generic output.
type Indication struct{}

func (Indication) CanHandle(e model.DeviceEvent) bool { return e.TypeID == TypeIndication }

func (Indication) Handle(e model.DeviceEvent, pc *Context) ([]model.TreatmentRecord, error) {
	info := ParseInfo(e.RawInfo)
	key, ok := info.String("Key")
	if ok {
		for _, route := range pc.Indications {
			if !route.Matches(key) {
				continue
			}
			rec := pc.record(e, route.Suffix, route.Type, key)
			if route.Type == model.TreatmentProfileSwitch {
				profile, ok := info.Parameter(route.ProfileParam)
				if !ok {
					return nil, fmt.Errorf("indication %q: profile name missing in Parameter%d", key, route.ProfileParam)
				}
				rec.Profile = profile
				rec.Notes = ""
			}
			return []model.TreatmentRecord{rec}, nil
		}
	}
	// Generic indication: carry the raw embedded payload as notes.
	return []model.TreatmentRecord{pc.record(e, "indication", model.TreatmentIndication, e.RawInfo)}, nil
}
