package csvimport

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/JonMunkholm/flightlog/internal/core"
	"github.com/JonMunkholm/flightlog/internal/schema"
)

// assembler builds one record per data row.
type assembler struct {
	format core.Format
	parser *core.DateTimeParser
}

// cells reads fields of one row and keeps the first error.
type cells struct {
	row Row
	err error
}

func (c *cells) get(f schema.Field) string {
	if c.err != nil {
		return ""
	}
	v, err := c.row.Get(f)
	if err != nil {
		c.err = err
	}
	return v
}

func (a *assembler) assemble(row Row) (*core.Record, error) {
	c := &cells{row: row}

	date := c.get(schema.Date)
	f := core.Flight{
		DepartureLocation:        c.get(schema.DepartureLocation),
		LandingLocation:          c.get(schema.LandingLocation),
		TowflightLandingLocation: c.get(schema.TowflightLandingLocation),
		Comments:                 c.get(schema.Comments),
		AccountingNotes:          c.get(schema.AccountingNotes),
	}
	id := c.get(schema.FlightID)
	typ := c.get(schema.FlightType)
	mode := c.get(schema.FlightMode)
	towMode := c.get(schema.TowflightMode)
	landings := c.get(schema.NumLandings)
	dep := c.get(schema.DepartureTime)
	land := c.get(schema.LandingTime)
	towLand := c.get(schema.TowflightLandingTime)
	if c.err != nil {
		return nil, c.err
	}

	var err error
	if f.ID, err = parseID(id); err != nil {
		return nil, err
	}
	if f.Type, err = a.flightType(typ); err != nil {
		return nil, err
	}
	if f.Mode, err = a.flightMode(mode); err != nil {
		return nil, err
	}
	if f.TowflightMode, err = a.flightMode(towMode); err != nil {
		return nil, err
	}
	if f.NumLandings, err = core.ParseCount(landings); err != nil {
		return nil, err
	}
	if f.DepartureTime, err = a.parser.Parse(date, dep); err != nil {
		return nil, err
	}
	if f.LandingTime, err = a.parser.Parse(date, land); err != nil {
		return nil, err
	}
	if f.TowflightLandingTime, err = a.parser.Parse(date, towLand); err != nil {
		return nil, err
	}

	rec := &core.Record{
		Flight:       f,
		Plane:        airplane(c.get(schema.PlaneRegistration)),
		Pilot:        pilot(c.get(schema.PilotFirstName), c.get(schema.PilotLastName)),
		Copilot:      pilot(c.get(schema.CopilotFirstName), c.get(schema.CopilotLastName)),
		Towplane:     airplane(c.get(schema.TowplaneRegistration)),
		Towpilot:     pilot(c.get(schema.TowpilotFirstName), c.get(schema.TowpilotLastName)),
		LaunchMethod: launchMethod(c.get(schema.LaunchMethod)),
		Line:         row.Line,
	}
	if c.err != nil {
		return nil, c.err
	}

	rec.Normalize()
	return rec, nil
}

func (a *assembler) flightType(s string) (core.FlightType, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", nil
	}
	t, ok := a.format.FlightTypes[key]
	if !ok {
		return "", &core.LookupError{Table: "flight type", Value: s}
	}
	return t, nil
}

func (a *assembler) flightMode(s string) (core.FlightMode, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if key == "" {
		return "", nil
	}
	m, ok := a.format.FlightModes[key]
	if !ok {
		return "", &core.LookupError{Table: "flight mode", Value: s}
	}
	return m, nil
}

func parseID(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid number %q for %s", s, schema.FlightID)
	}
	return id, nil
}

func airplane(registration string) *core.Airplane {
	if registration == "" {
		return nil
	}
	return &core.Airplane{Registration: registration}
}

func pilot(first, last string) *core.Pilot {
	if first == "" && last == "" {
		return nil
	}
	return &core.Pilot{FirstName: first, LastName: last}
}

func launchMethod(name string) *core.LaunchMethod {
	if name == "" {
		return nil
	}
	return &core.LaunchMethod{Name: name}
}
