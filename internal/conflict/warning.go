package conflict

import (
	"fmt"
	"sort"
	"strings"

	"github.com/JonMunkholm/flightlog/internal/core"
)

// Warning is a completeness check on a candidate flight.
type Warning int

const (
	MissingDepartureTime Warning = iota + 1
	MissingLandingTime
	MissingDepartureLocation
	MissingLandingLocation
	MissingLaunchMethod
	MissingPilot
	MissingPlane
)

var warningMessages = map[Warning]string{
	MissingDepartureTime:     "missing departure time",
	MissingLandingTime:       "missing landing time",
	MissingDepartureLocation: "missing departure location",
	MissingLandingLocation:   "missing landing location",
	MissingLaunchMethod:      "missing launch method",
	MissingPilot:             "missing pilot",
	MissingPlane:             "missing plane",
}

// String returns the operator message, e.g. "missing landing time".
func (w Warning) String() string {
	if msg, ok := warningMessages[w]; ok {
		return msg
	}
	return fmt.Sprintf("warning(%d)", int(w))
}

// Name returns the configuration name, e.g. "missing-landing-time".
func (w Warning) Name() string {
	return strings.ReplaceAll(w.String(), " ", "-")
}

// AllWarnings returns every warning in declaration order.
func AllWarnings() []Warning {
	return []Warning{
		MissingDepartureTime, MissingLandingTime, MissingDepartureLocation,
		MissingLandingLocation, MissingLaunchMethod, MissingPilot, MissingPlane,
	}
}

// ParseWarning accepts a configuration name ("missing-pilot") or the
// message form ("missing pilot"), case-insensitively.
func ParseWarning(s string) (Warning, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for _, w := range AllWarnings() {
		if key == w.Name() || key == w.String() {
			return w, nil
		}
	}
	return 0, fmt.Errorf("unknown warning %q", s)
}

// WarningSet is a set of warnings.
type WarningSet map[Warning]bool

// NewWarningSet returns a set holding ws.
func NewWarningSet(ws ...Warning) WarningSet {
	s := make(WarningSet, len(ws))
	for _, w := range ws {
		s[w] = true
	}
	return s
}

// AllEnabled returns a set holding every warning.
func AllEnabled() WarningSet {
	return NewWarningSet(AllWarnings()...)
}

// Has reports whether w is in the set.
func (s WarningSet) Has(w Warning) bool {
	return s[w]
}

// Intersect returns the warnings present in both sets.
func (s WarningSet) Intersect(other WarningSet) WarningSet {
	out := make(WarningSet)
	for w := range s {
		if other[w] {
			out[w] = true
		}
	}
	return out
}

// Sorted returns the warnings in declaration order.
func (s WarningSet) Sorted() []Warning {
	out := make([]Warning, 0, len(s))
	for w := range s {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Messages returns the operator messages in declaration order.
func (s WarningSet) Messages() []string {
	ws := s.Sorted()
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.String()
	}
	return out
}

// Check raises the warnings that apply to f. Departure time is not required
// for inbound flights, landing time not for outbound flights, and the launch
// method not for inbound flights.
func Check(f core.Flight) WarningSet {
	s := make(WarningSet)

	if f.DepartureLocation == "" {
		s[MissingDepartureLocation] = true
	}
	if f.LandingLocation == "" {
		s[MissingLandingLocation] = true
	}
	if f.Mode != core.ModeInbound && f.DepartureTime.IsZero() {
		s[MissingDepartureTime] = true
	}
	if f.Mode != core.ModeOutbound && f.LandingTime.IsZero() {
		s[MissingLandingTime] = true
	}
	if f.PilotID == 0 {
		s[MissingPilot] = true
	}
	if f.PlaneID == 0 {
		s[MissingPlane] = true
	}
	if f.Mode != core.ModeInbound && f.LaunchMethodID == 0 {
		s[MissingLaunchMethod] = true
	}

	return s
}
