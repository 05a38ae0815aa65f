package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/JonMunkholm/flightlog/internal/schema"
)

var (
	registry   = make(map[string]Format)
	registryMu sync.RWMutex
)

// Register adds a built-in format to the registry.
// Panics if the format is invalid or its key is already registered.
func Register(f Format) {
	if err := TryRegister(f); err != nil {
		panic(err)
	}
}

// TryRegister adds a format loaded at runtime. Unlike Register it reports
// problems as errors.
func TryRegister(f Format) error {
	f, err := normalizeFormat(f)
	if err != nil {
		return err
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[f.Key]; exists {
		return fmt.Errorf("format already registered: %s", f.Key)
	}
	registry[f.Key] = f
	return nil
}

// normalizeFormat validates f and lowercases its lookup keys.
func normalizeFormat(f Format) (Format, error) {
	if f.Key == "" {
		return f, fmt.Errorf("format key must not be empty")
	}
	if len(f.Columns) == 0 {
		return f, fmt.Errorf("format %s: no columns", f.Key)
	}

	columns := make(map[string]schema.Field, len(f.Columns))
	for header, field := range f.Columns {
		if !schema.Known(field) {
			return f, fmt.Errorf("format %s: column %q maps to unknown field %q", f.Key, header, field)
		}
		columns[NormalizeHeader(header)] = field
	}
	f.Columns = columns

	types := make(map[string]FlightType, len(f.FlightTypes))
	for k, v := range f.FlightTypes {
		if !v.Valid() {
			return f, fmt.Errorf("format %s: flight type %q maps to unknown type %q", f.Key, k, v)
		}
		types[strings.ToLower(strings.TrimSpace(k))] = v
	}
	f.FlightTypes = types

	modes := make(map[string]FlightMode, len(f.FlightModes))
	for k, v := range f.FlightModes {
		if !v.Valid() {
			return f, fmt.Errorf("format %s: flight mode %q maps to unknown mode %q", f.Key, k, v)
		}
		modes[strings.ToLower(strings.TrimSpace(k))] = v
	}
	f.FlightModes = modes

	return f, nil
}

// GetFormat returns a format by key.
func GetFormat(key string) (Format, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	f, ok := registry[key]
	if !ok {
		return Format{}, fmt.Errorf("%w: %q", ErrUnknownFormat, key)
	}
	return f, nil
}

// Formats returns all registered formats sorted by key.
func Formats() []Format {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Format, 0, len(registry))
	for _, f := range registry {
		result = append(result, f)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// Unregister removes a format. Primarily useful for testing.
func Unregister(key string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, key)
}
