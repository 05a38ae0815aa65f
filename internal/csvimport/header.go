package csvimport

import (
	"github.com/JonMunkholm/flightlog/internal/core"
	"github.com/JonMunkholm/flightlog/internal/schema"
)

// HeaderIndex maps canonical fields to column positions of one input file.
type HeaderIndex map[schema.Field]int

// MakeHeaderIndex resolves a header row against the format's column map.
// Cells the format does not know are ignored. Missing mandatory fields are
// not reported here; see Row.Get.
func MakeHeaderIndex(header []string, format core.Format) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		field, ok := format.Columns[core.NormalizeHeader(h)]
		if !ok {
			continue
		}
		// First occurrence wins on duplicated headers.
		if _, seen := idx[field]; !seen {
			idx[field] = i
		}
	}
	return idx
}

// Has reports whether the header provides f.
func (h HeaderIndex) Has(f schema.Field) bool {
	_, ok := h[f]
	return ok
}

// Missing returns the mandatory fields the header does not provide.
func (h HeaderIndex) Missing() []schema.Field {
	var out []schema.Field
	for _, f := range schema.Mandatory() {
		if !h.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

// Row is one data row bound to its header.
type Row struct {
	Line  int
	Cells []string
	index HeaderIndex
}

// Get returns the cleaned value of f. A mandatory field the header lacks is
// a *core.MissingFieldError; an optional one reads as "".
func (r Row) Get(f schema.Field) (string, error) {
	i, ok := r.index[f]
	if !ok {
		if schema.IsMandatory(f) {
			return "", &core.MissingFieldError{Field: string(f)}
		}
		return "", nil
	}
	if i >= len(r.Cells) {
		return "", nil
	}
	return core.CleanCell(r.Cells[i]), nil
}

// Empty reports whether every cell is blank.
func (r Row) Empty() bool {
	for _, c := range r.Cells {
		if core.CleanCell(c) != "" {
			return false
		}
	}
	return true
}
