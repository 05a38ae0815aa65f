package core

// convert.go turns raw CSV cells into domain values.
//
// Date and time formats are configured in strftime notation ("%Y-%m-%d",
// "%d.%m.%Y", "%H:%M") because that is what logbook exports document. They
// are translated to Go layouts once per import. The translated layouts use
// the non-padded Go tokens, so "9:05" and "09:05" both parse with "%H:%M".

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// strftimeTokens maps strftime directives to Go layout elements.
var strftimeTokens = map[byte]string{
	'Y': "2006",
	'y': "06",
	'm': "1",
	'd': "2",
	'e': "_2",
	'b': "Jan",
	'h': "Jan",
	'B': "January",
	'a': "Mon",
	'A': "Monday",
	'H': "15",
	'I': "3",
	'M': "4",
	'S': "5",
	'p': "PM",
	'z': "-0700",
	'Z': "MST",
	'j': "__2",
	'%': "%",
}

// StrftimeLayout translates a strftime format into a Go time layout.
// Unsupported directives are an error.
func StrftimeLayout(format string) (string, error) {
	var b strings.Builder
	for i := 0; i < len(format); i++ {
		c := format[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(format) {
			return "", fmt.Errorf("invalid date format %q: trailing %%", format)
		}
		i++
		tok, ok := strftimeTokens[format[i]]
		if !ok {
			return "", fmt.Errorf("invalid date format %q: unsupported directive %%%c", format, format[i])
		}
		b.WriteString(tok)
	}
	return b.String(), nil
}

// DateTimeParser parses a date cell and a time cell into one instant.
type DateTimeParser struct {
	layout   string
	location *time.Location
}

// NewDateTimeParser builds a parser for dateFormat and timeFormat (strftime
// notation). Times are interpreted in loc; nil means UTC.
func NewDateTimeParser(dateFormat, timeFormat string, loc *time.Location) (*DateTimeParser, error) {
	dl, err := StrftimeLayout(dateFormat)
	if err != nil {
		return nil, err
	}
	tl, err := StrftimeLayout(timeFormat)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return &DateTimeParser{layout: dl + "T" + tl, location: loc}, nil
}

// Parse combines date and clock as "dateTclock". A missing date or clock
// yields the zero time and no error.
func (p *DateTimeParser) Parse(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" || clock == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(p.layout, date+"T"+clock, p.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q %q: %w", date, clock, err)
	}
	return t, nil
}

// ParseCount parses a non-negative count such as the number of landings.
// An empty cell is 0.
func ParseCount(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return n, nil
}

// NormalizeHeader cleans and lowercases a header cell and collapses inner
// whitespace, so "Pilot  Nachname " matches "pilot nachname".
func NormalizeHeader(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(CleanCell(s))), " ")
}

// CleanCell removes common CSV artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
// - Removes surrounding quotes
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	// Remove leading '='
	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	// Remove any surrounding quotes
	s = strings.Trim(s, `"'`)

	return strings.TrimSpace(s)
}
