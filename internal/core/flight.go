package core

import (
	"fmt"
	"strings"
	"time"
)

// DisplayTimeFormat is the layout used when flights are shown to an operator.
const DisplayTimeFormat = "2006-01-02 15:04"

// FlightMode tells whether a flight started and ended at the home field.
type FlightMode string

const (
	ModeLocal    FlightMode = "local"
	ModeInbound  FlightMode = "inbound"
	ModeOutbound FlightMode = "outbound"
)

// Valid reports whether m is one of the known modes. The empty mode is not valid.
func (m FlightMode) Valid() bool {
	switch m {
	case ModeLocal, ModeInbound, ModeOutbound:
		return true
	}
	return false
}

// FlightType classifies a flight for accounting and training records.
type FlightType string

const (
	TypeNormal        FlightType = "normal"
	TypeTraining1     FlightType = "training_1"
	TypeTraining2     FlightType = "training_2"
	TypeGuestExternal FlightType = "guest_external"
	TypeGuestPrivate  FlightType = "guest_private"
	TypeTowflight     FlightType = "towflight"
)

// Valid reports whether t is one of the known flight types.
func (t FlightType) Valid() bool {
	switch t {
	case TypeNormal, TypeTraining1, TypeTraining2, TypeGuestExternal, TypeGuestPrivate, TypeTowflight:
		return true
	}
	return false
}

// Flight is a single row of the logbook.
//
// Ids are 0 when unset. Times are the zero time.Time when absent, which is
// legitimate for the departure of inbound and the landing of outbound flights.
type Flight struct {
	ID             int64
	PlaneID        int64
	PilotID        int64
	CopilotID      int64
	TowplaneID     int64
	TowpilotID     int64
	LaunchMethodID int64

	Type FlightType
	Mode FlightMode

	DepartureTime     time.Time
	LandingTime       time.Time
	DepartureLocation string
	LandingLocation   string
	NumLandings       int

	TowflightMode            FlightMode
	TowflightLandingTime     time.Time
	TowflightLandingLocation string

	// Derived by Update; never read from input.
	Departed        bool
	Landed          bool
	TowflightLanded bool

	Comments        string
	AccountingNotes string
}

// Update recomputes Departed, Landed and TowflightLanded from the times.
func (f *Flight) Update() {
	f.Departed = !f.DepartureTime.IsZero()
	f.Landed = !f.LandingTime.IsZero()
	f.TowflightLanded = !f.TowflightLandingTime.IsZero()
}

// PIC returns the id of the pilot in command. On two-seated training flights
// the instructor is logged as copilot.
func (f Flight) PIC() int64 {
	if f.Type == TypeTraining2 {
		return f.CopilotID
	}
	return f.PilotID
}

// Duration returns the flight time, or 0 if either time is missing.
func (f Flight) Duration() time.Duration {
	if f.DepartureTime.IsZero() || f.LandingTime.IsZero() {
		return 0
	}
	return f.LandingTime.Sub(f.DepartureTime)
}

// Span returns the time range the flight occupies. A missing departure or
// landing is replaced by the known one; ok is false if both are missing.
func (f Flight) Span() (start, end time.Time, ok bool) {
	start, end = f.DepartureTime, f.LandingTime
	switch {
	case start.IsZero() && end.IsZero():
		return start, end, false
	case start.IsZero():
		start = end
	case end.IsZero():
		end = start
	}
	return start, end, true
}

// String returns "departure_time departure_location".
func (f Flight) String() string {
	return fmt.Sprintf("%s %s", FormatTime(f.DepartureTime), f.DepartureLocation)
}

// FormatTime formats t with DisplayTimeFormat, or "" for the zero time.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DisplayTimeFormat)
}

// Pilot is an entry of the people table.
type Pilot struct {
	ID                   int64
	LastName             string
	FirstName            string
	Club                 string
	Nickname             string
	Comments             string
	MedicalValidity      time.Time
	CheckMedicalValidity bool
}

// String returns "last, first", which is also the pilot's natural key.
func (p Pilot) String() string {
	return p.LastName + ", " + p.FirstName
}

// Key returns the natural key used for lookups, aliases and reports.
func (p Pilot) Key() string {
	return p.String()
}

// Complete reports whether both names are set.
func (p Pilot) Complete() bool {
	return p.LastName != "" && p.FirstName != ""
}

// ShortName returns "last,first" as shown in conflict listings.
func (p Pilot) ShortName() string {
	return p.LastName + "," + p.FirstName
}

// Airplane is an entry of the planes table.
type Airplane struct {
	ID           int64
	Registration string
	Club         string
	NumSeats     int
	Type         string
	Category     string
	Callsign     string
	Comments     string
}

func (a Airplane) String() string {
	return a.Registration
}

// LaunchType is the kind of a launch method.
type LaunchType string

const (
	LaunchAirtow LaunchType = "airtow"
	LaunchWinch  LaunchType = "winch"
	LaunchSelf   LaunchType = "self"
	LaunchOther  LaunchType = "other"
)

// Names of the generic launch methods used when a specific one is unknown.
const (
	GenericAirtowName = "Airtow (other)"
	GenericSelfName   = "Self launch"
)

// LaunchMethod is an entry of the launch_methods table.
type LaunchMethod struct {
	ID                   int64
	Name                 string
	ShortName            string
	LogString            string
	KeyboardShortcut     string
	Type                 LaunchType
	TowplaneRegistration string
	PersonRequired       bool
	Comments             string
}

func (l LaunchMethod) String() string {
	return l.Name
}

// SameClub reports whether club names match, ignoring case and surrounding space.
func SameClub(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
