// Package schema names the canonical import fields that every CSV format
// maps its columns onto.
package schema

import "sort"

// Field is a canonical import field name.
type Field string

const (
	Date                     Field = "date"
	FlightID                 Field = "flight_id"
	FlightType               Field = "flight_type"
	FlightMode               Field = "flight_mode"
	NumLandings              Field = "num_landings"
	DepartureTime            Field = "departure_time"
	LandingTime              Field = "landing_time"
	DepartureLocation        Field = "departure_location"
	LandingLocation          Field = "landing_location"
	PlaneRegistration        Field = "plane_registration"
	PilotFirstName           Field = "pilot_first_name"
	PilotLastName            Field = "pilot_last_name"
	CopilotFirstName         Field = "copilot_first_name"
	CopilotLastName          Field = "copilot_last_name"
	LaunchMethod             Field = "launch_method"
	TowplaneRegistration     Field = "towplane_registration"
	TowpilotFirstName        Field = "towpilot_first_name"
	TowpilotLastName         Field = "towpilot_last_name"
	TowflightMode            Field = "towflight_mode"
	TowflightLandingTime     Field = "towflight_landing_time"
	TowflightLandingLocation Field = "towflight_landing_location"
	Comments                 Field = "comments"
	AccountingNotes          Field = "accounting_notes"
)

// mandatory fields must be present in the header before they are read.
// Absence is only an error on first access.
var mandatory = map[Field]bool{
	Date:              true,
	PlaneRegistration: true,
	PilotFirstName:    true,
	CopilotFirstName:  true,
	CopilotLastName:   true,
	FlightType:        true,
	NumLandings:       true,
	FlightMode:        true,
	DepartureTime:     true,
	LandingTime:       true,
	LaunchMethod:      true,
	DepartureLocation: true,
	LandingLocation:   true,
	Comments:          true,
	AccountingNotes:   true,
}

// optional fields read as "" when the header lacks them.
var optional = map[Field]bool{
	FlightID:                 true,
	PilotLastName:            true,
	TowplaneRegistration:     true,
	TowpilotFirstName:        true,
	TowpilotLastName:         true,
	TowflightMode:            true,
	TowflightLandingTime:     true,
	TowflightLandingLocation: true,
}

// IsMandatory reports whether f must be present in the input header.
func IsMandatory(f Field) bool {
	return mandatory[f]
}

// Known reports whether f is a canonical field.
func Known(f Field) bool {
	return mandatory[f] || optional[f]
}

// Mandatory returns the mandatory fields in name order.
func Mandatory() []Field {
	return sorted(mandatory)
}

// All returns every canonical field in name order.
func All() []Field {
	all := make(map[Field]bool, len(mandatory)+len(optional))
	for f := range mandatory {
		all[f] = true
	}
	for f := range optional {
		all[f] = true
	}
	return sorted(all)
}

func sorted(set map[Field]bool) []Field {
	out := make([]Field, 0, len(set))
	for f := range set {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
