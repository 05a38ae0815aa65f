package formats

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/flightlog/internal/core"
	"github.com/JonMunkholm/flightlog/internal/schema"
)

// fileFormat is the YAML shape of one format definition:
//
//	formats:
//	  - key: vereinsflieger
//	    label: Vereinsflieger
//	    delimiter: ";"
//	    columns:
//	      Datum: date
//	      Luftfahrzeug: plane_registration
//	    flight_types:
//	      N: normal
//	    flight_modes:
//	      L: local
type fileFormat struct {
	Key         string            `yaml:"key"`
	Label       string            `yaml:"label"`
	Description string            `yaml:"description"`
	Delimiter   string            `yaml:"delimiter"`
	Columns     map[string]string `yaml:"columns"`
	FlightTypes map[string]string `yaml:"flight_types"`
	FlightModes map[string]string `yaml:"flight_modes"`
}

type file struct {
	Formats []fileFormat `yaml:"formats"`
}

// Parse decodes format definitions from YAML.
func Parse(data []byte) ([]core.Format, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse format file: %w", err)
	}

	out := make([]core.Format, 0, len(f.Formats))
	for i, ff := range f.Formats {
		cf, err := ff.toFormat()
		if err != nil {
			return nil, fmt.Errorf("format #%d: %w", i+1, err)
		}
		out = append(out, cf)
	}
	return out, nil
}

func (ff fileFormat) toFormat() (core.Format, error) {
	cf := core.Format{
		Key:         ff.Key,
		Label:       ff.Label,
		Description: ff.Description,
		Columns:     make(map[string]schema.Field, len(ff.Columns)),
		FlightTypes: make(map[string]core.FlightType, len(ff.FlightTypes)),
		FlightModes: make(map[string]core.FlightMode, len(ff.FlightModes)),
	}
	if cf.Label == "" {
		cf.Label = ff.Key
	}

	switch r := []rune(ff.Delimiter); len(r) {
	case 0:
	case 1:
		cf.Delimiter = r[0]
	default:
		return cf, fmt.Errorf("delimiter %q must be a single character", ff.Delimiter)
	}

	for header, field := range ff.Columns {
		cf.Columns[header] = schema.Field(field)
	}
	for k, v := range ff.FlightTypes {
		cf.FlightTypes[k] = core.FlightType(v)
	}
	for k, v := range ff.FlightModes {
		cf.FlightModes[k] = core.FlightMode(v)
	}
	return cf, nil
}

// LoadFile reads format definitions from path and registers them.
// It returns the keys of the registered formats.
func LoadFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read format file: %w", err)
	}

	defs, err := Parse(data)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(defs))
	for _, def := range defs {
		if err := core.TryRegister(def); err != nil {
			return keys, fmt.Errorf("%s: %w", path, err)
		}
		keys = append(keys, def.Key)
	}
	return keys, nil
}
