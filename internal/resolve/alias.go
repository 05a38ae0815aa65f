package resolve

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/JonMunkholm/flightlog/internal/core"
)

// Alias file categories.
const (
	CategoryPilots        = "pilots"
	CategoryPlanes        = "planes"
	CategoryLaunchMethods = "launch methods"
)

// Name is a pilot's natural key.
type Name struct {
	Last  string
	First string
}

func (n Name) String() string {
	return n.Last + ", " + n.First
}

// Aliases remaps natural keys found in input files to the keys stored in the
// logbook, e.g. a misspelled pilot or a registration without hyphen.
type Aliases struct {
	Pilots        map[Name]Name
	Planes        map[string]string
	LaunchMethods map[string]string
}

// NewAliases returns an empty alias table.
func NewAliases() *Aliases {
	return &Aliases{
		Pilots:        make(map[Name]Name),
		Planes:        make(map[string]string),
		LaunchMethods: make(map[string]string),
	}
}

// Len returns the number of aliases over all categories.
func (a *Aliases) Len() int {
	if a == nil {
		return 0
	}
	return len(a.Pilots) + len(a.Planes) + len(a.LaunchMethods)
}

// LoadAliases reads an alias file in the given encoding.
func LoadAliases(path, encoding string) (*Aliases, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("alias file: %w", err)
	}
	defer f.Close()

	r, err := core.DecodeReader(f, encoding)
	if err != nil {
		return nil, err
	}
	return ParseAliases(r)
}

// ParseAliases reads alias definitions:
//
//	# comment
//	[pilots]
//	Doe, Jon: Doe, John
//	[planes]
//	D1234: D-1234
//	[launch methods]
//	Winde: Seilwinde
//
// Pilot keys and values are "last, first". Blank lines and lines starting
// with '#' are skipped.
func ParseAliases(r io.Reader) (*Aliases, error) {
	a := NewAliases()
	category := ""
	lineNumber := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			category = strings.ToLower(strings.TrimSpace(line[1 : len(line)-1]))
			if !validCategory(category) {
				return nil, fmt.Errorf("alias file line %d: unknown category %q, use one of: %s",
					lineNumber, category, strings.Join(categories(), ", "))
			}
			continue
		}

		if category == "" {
			return nil, fmt.Errorf("alias file line %d: missing category, use one of: %s",
				lineNumber, strings.Join(categories(), ", "))
		}

		cols := strings.Split(line, ":")
		if len(cols) != 2 {
			return nil, fmt.Errorf("alias file line %d: found %d columns, expected 2", lineNumber, len(cols))
		}
		key, value := strings.TrimSpace(cols[0]), strings.TrimSpace(cols[1])

		switch category {
		case CategoryPilots:
			k, err := parseName(key)
			if err != nil {
				return nil, fmt.Errorf("alias file line %d: key %w", lineNumber, err)
			}
			v, err := parseName(value)
			if err != nil {
				return nil, fmt.Errorf("alias file line %d: value %w", lineNumber, err)
			}
			a.Pilots[k] = v
		case CategoryPlanes:
			a.Planes[key] = value
		case CategoryLaunchMethods:
			a.LaunchMethods[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("alias file: %w", err)
	}

	return a, nil
}

func parseName(s string) (Name, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Name{}, fmt.Errorf("contains %d fields, expected 2", len(parts))
	}
	return Name{Last: strings.TrimSpace(parts[0]), First: strings.TrimSpace(parts[1])}, nil
}

func validCategory(c string) bool {
	switch c {
	case CategoryPilots, CategoryPlanes, CategoryLaunchMethods:
		return true
	}
	return false
}

func categories() []string {
	c := []string{CategoryPilots, CategoryPlanes, CategoryLaunchMethods}
	sort.Strings(c)
	return c
}
