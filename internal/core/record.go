package core

import (
	"fmt"
	"strings"
)

// Record is one assembled logbook entry: a flight plus the participants
// named in the input. A nil participant is not applicable to the flight; a
// participant with ID 0 is named but not yet resolved against storage.
//
// Records are transient. Only the Flight is persisted.
type Record struct {
	Flight       Flight
	Pilot        *Pilot
	Copilot      *Pilot
	Plane        *Airplane
	Towplane     *Airplane
	Towpilot     *Pilot
	LaunchMethod *LaunchMethod

	// Line is the input line the record was read from, 0 if unknown.
	Line int
}

// Normalize infers the airtow launch type and the launch method's tow-plane
// registration from the record's tow participants.
func (r *Record) Normalize() {
	lm := r.LaunchMethod
	if lm == nil {
		return
	}

	if lm.Type == "" {
		hasTowplane := r.Towplane != nil && r.Towplane.Registration != ""
		hasTowpilot := r.Towpilot != nil && r.Towpilot.Complete()
		if hasTowplane || hasTowpilot || lm.TowplaneRegistration != "" {
			lm.Type = LaunchAirtow
		}
	}

	if lm.Type == LaunchAirtow && lm.TowplaneRegistration == "" && r.Towplane != nil {
		lm.TowplaneRegistration = r.Towplane.Registration
	}
}

// IsAirtow reports whether the record was launched by aerotow.
func (r *Record) IsAirtow() bool {
	return r.LaunchMethod != nil && r.LaunchMethod.Type == LaunchAirtow
}

// UpdateFlight copies the resolved participant ids into the flight and
// recomputes its derived fields.
//
// Pilot, plane and, unless the flight is inbound, the launch method are
// critical: if one of them is unresolved a *RecordError is returned and the
// flight is left partially updated. Unresolved copilot, tow-plane and
// tow-pilot are reported as warnings and their ids are left at 0.
func (r *Record) UpdateFlight() ([]string, error) {
	f := &r.Flight
	var warnings []string

	if r.Pilot == nil || r.Pilot.ID == 0 {
		return nil, &RecordError{Param: "pilot", Value: stubName(r.Pilot)}
	}
	f.PilotID = r.Pilot.ID

	if r.Plane == nil || r.Plane.ID == 0 {
		return nil, &RecordError{Param: "plane", Value: stubName(r.Plane)}
	}
	f.PlaneID = r.Plane.ID

	if f.Mode == ModeInbound {
		f.LaunchMethodID = 0
	} else {
		if r.LaunchMethod == nil || r.LaunchMethod.ID == 0 {
			return nil, &RecordError{Param: "launch method", Value: stubName(r.LaunchMethod)}
		}
		f.LaunchMethodID = r.LaunchMethod.ID
	}

	f.TowplaneID, f.TowpilotID = 0, 0
	if r.IsAirtow() {
		if r.Towplane != nil {
			if r.Towplane.ID == 0 {
				warnings = append(warnings, fmt.Sprintf("Unknown towplane: '%s'", r.Towplane))
			}
			f.TowplaneID = r.Towplane.ID
		}
		if r.Towpilot != nil {
			if r.Towpilot.ID == 0 {
				warnings = append(warnings, fmt.Sprintf("Unknown towpilot: '%s'", r.Towpilot))
			}
			f.TowpilotID = r.Towpilot.ID
		}
	}

	f.CopilotID = 0
	if r.Copilot != nil && r.Copilot.Complete() {
		if r.Copilot.ID == 0 {
			warnings = append(warnings, fmt.Sprintf("Unknown copilot: '%s'", r.Copilot))
		}
		f.CopilotID = r.Copilot.ID
	}

	f.Update()
	return warnings, nil
}

// InClub reports whether the pilot, the copilot or the plane belongs to club.
func (r *Record) InClub(club string) bool {
	if r.Pilot != nil && SameClub(r.Pilot.Club, club) {
		return true
	}
	if r.Copilot != nil && SameClub(r.Copilot.Club, club) {
		return true
	}
	return r.Plane != nil && SameClub(r.Plane.Club, club)
}

// String renders the record on one line for operator dialogs and logs.
func (r *Record) String() string {
	f := r.Flight
	parts := []string{
		FormatTime(f.DepartureTime),
		FormatTime(f.LandingTime),
	}
	if r.Plane != nil {
		parts = append(parts, r.Plane.Registration)
	} else {
		parts = append(parts, "-")
	}
	parts = append(parts, pilotName(r.Pilot), pilotName(r.Copilot))
	if r.LaunchMethod != nil {
		parts = append(parts, r.LaunchMethod.Name)
	}
	parts = append(parts, string(f.Mode), f.DepartureLocation+" -> "+f.LandingLocation)
	if f.ID != 0 {
		parts = append(parts, fmt.Sprintf("#%d", f.ID))
	}
	return strings.Join(parts, " | ")
}

func pilotName(p *Pilot) string {
	if p == nil {
		return "-"
	}
	return p.ShortName()
}
