package csvimport

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteFailedRows writes rejected rows as CSV: a "Status" column with the
// reason followed by the original cells, under the original header.
func WriteFailedRows(w io.Writer, header []string, failed []RowError) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(append([]string{"Status"}, header...)); err != nil {
		return fmt.Errorf("write failed rows header: %w", err)
	}
	for _, re := range failed {
		if err := cw.Write(rowFailed(re.Error(), re.Row)); err != nil {
			return fmt.Errorf("write failed row %d: %w", re.Line, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

func rowFailed(reason string, row []string) []string {
	return append([]string{reason}, row...)
}
