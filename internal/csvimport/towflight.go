package csvimport

import (
	"fmt"

	"github.com/JonMunkholm/flightlog/internal/core"
)

// MergeError reports a towflight line that could not be attached to its
// glider flight. Both lines stay in the record list.
type MergeError struct {
	Line     int    `json:"line"`
	FlightID int64  `json:"flight_id"`
	Reason   string `json:"reason"`
}

func (e MergeError) Error() string {
	return fmt.Sprintf("line %d: towflight %d: %s", e.Line, e.FlightID, e.Reason)
}

// IsTowflight reports whether rec is a separately logged towflight line.
func IsTowflight(rec *core.Record) bool {
	return rec.Flight.Type == core.TypeTowflight
}

// MergeTowflights attaches every towflight line to the glider flight with the
// same flight id and returns the records without the merged towflight lines.
// Input order is preserved. Merged parents are modified, and towflight lines
// that stay unmerged lose their flight id so they are stored as flights of
// their own instead of overwriting the glider flight.
func MergeTowflights(records []*core.Record) ([]*core.Record, []MergeError) {
	parents := make(map[int64][]*core.Record)
	for _, rec := range records {
		if !IsTowflight(rec) && rec.Flight.ID != 0 {
			parents[rec.Flight.ID] = append(parents[rec.Flight.ID], rec)
		}
	}

	var errs []MergeError
	merged := make(map[*core.Record]bool)
	towed := make(map[*core.Record]bool)

	for _, tow := range records {
		if !IsTowflight(tow) {
			continue
		}
		fail := func(reason string) {
			errs = append(errs, MergeError{Line: tow.Line, FlightID: tow.Flight.ID, Reason: reason})
			tow.Flight.ID = 0
		}

		candidates := parents[tow.Flight.ID]
		switch {
		case tow.Flight.ID == 0 || len(candidates) == 0:
			fail("no matching flight")
			continue
		case len(candidates) > 1:
			fail("more than one matching flight")
			continue
		}

		parent := candidates[0]
		if towed[parent] {
			fail("flight already has a towflight")
			continue
		}
		if !tow.Flight.DepartureTime.Equal(parent.Flight.DepartureTime) {
			fail("departure time mismatch")
			continue
		}
		if tow.Flight.DepartureLocation != parent.Flight.DepartureLocation {
			fail("departure location mismatch")
			continue
		}

		attachTowflight(parent, tow)
		towed[parent] = true
		merged[tow] = true
	}

	out := make([]*core.Record, 0, len(records)-len(merged))
	for _, rec := range records {
		if !merged[rec] {
			out = append(out, rec)
		}
	}
	return out, errs
}

// DetachTowflights clears the flight id of every towflight line. Used when
// towflights are imported as separate flights, since the id they carry is
// the one of their glider flight.
func DetachTowflights(records []*core.Record) {
	for _, rec := range records {
		if IsTowflight(rec) {
			rec.Flight.ID = 0
		}
	}
}

func attachTowflight(parent, tow *core.Record) {
	p := &parent.Flight
	p.TowflightMode = tow.Flight.Mode
	p.TowflightLandingLocation = tow.Flight.LandingLocation
	p.TowflightLandingTime = tow.Flight.LandingTime
	parent.Towplane = tow.Plane
	parent.Towpilot = tow.Pilot
	parent.Normalize()
}
