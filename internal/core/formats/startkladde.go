// Package formats registers the built-in CSV formats with the core registry
// and loads additional formats from YAML files.
// Import this package to ensure the built-in formats are registered.
package formats

import (
	"github.com/JonMunkholm/flightlog/internal/core"
	"github.com/JonMunkholm/flightlog/internal/schema"
)

func init() {
	core.Register(StartkladdeDE)
	core.Register(StartkladdeEN)
}

// StartkladdeDE is the German flight list export of Startkladde.
var StartkladdeDE = core.Format{
	Key:         "startkladde-de",
	Label:       "Startkladde (Deutsch)",
	Description: "Flugliste exported by Startkladde with German headers",
	Columns: map[string]schema.Field{
		"datum":                       schema.Date,
		"kennzeichen":                 schema.PlaneRegistration,
		"pilot vorname":               schema.PilotFirstName,
		"pilot nachname":              schema.PilotLastName,
		"begleiter vorname":           schema.CopilotFirstName,
		"begleiter nachname":          schema.CopilotLastName,
		"flugtyp":                     schema.FlightType,
		"anzahl landungen":            schema.NumLandings,
		"modus":                       schema.FlightMode,
		"startzeit":                   schema.DepartureTime,
		"landezeit":                   schema.LandingTime,
		"startart":                    schema.LaunchMethod,
		"kennzeichen schleppflugzeug": schema.TowplaneRegistration,
		"schlepppilot vorname":        schema.TowpilotFirstName,
		"schlepppilot nachname":       schema.TowpilotLastName,
		"modus schleppflugzeug":       schema.TowflightMode,
		"landung schleppflugzeug":     schema.TowflightLandingTime,
		"startort":                    schema.DepartureLocation,
		"zielort":                     schema.LandingLocation,
		"zielort schleppflugzeug":     schema.TowflightLandingLocation,
		"bemerkungen":                 schema.Comments,
		"abrechnungshinweis":          schema.AccountingNotes,
		"dbid":                        schema.FlightID,
	},
	FlightTypes: map[string]core.FlightType{
		"normalflug":   core.TypeNormal,
		"schulung (1)": core.TypeTraining1,
		"schulung (2)": core.TypeTraining2,
		"gastflug":     core.TypeGuestExternal,
		"gastflug (e)": core.TypeGuestExternal,
		"gastflug (p)": core.TypeGuestPrivate,
		"schlepp":      core.TypeTowflight,
	},
	FlightModes: map[string]core.FlightMode{
		"lokal": core.ModeLocal,
		"kommt": core.ModeInbound,
		"geht":  core.ModeOutbound,
	},
}

// StartkladdeEN uses the canonical field names as headers and values. It is
// what `flightlog` documents for hand-written files.
var StartkladdeEN = core.Format{
	Key:         "startkladde-en",
	Label:       "Canonical (English)",
	Description: "Headers and values named after the logbook columns",
	Columns:     canonicalColumns(),
	FlightTypes: map[string]core.FlightType{
		"normal":         core.TypeNormal,
		"training_1":     core.TypeTraining1,
		"training_2":     core.TypeTraining2,
		"guest_external": core.TypeGuestExternal,
		"guest_private":  core.TypeGuestPrivate,
		"towflight":      core.TypeTowflight,
	},
	FlightModes: map[string]core.FlightMode{
		"local":    core.ModeLocal,
		"inbound":  core.ModeInbound,
		"outbound": core.ModeOutbound,
	},
}

func canonicalColumns() map[string]schema.Field {
	cols := make(map[string]schema.Field)
	for _, f := range schema.All() {
		cols[string(f)] = f
	}
	return cols
}
