package format

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"

	"github.com/resttable/resttable/core"
)

var _ core.Formatter = (*CSV)(nil)

// CSV writes the header followed by one line per row.
// Nested JSON values are written as compact JSON text.
type CSV struct{}

func NewCSV() *CSV {
	return &CSV{}
}

func (*CSV) Format(header core.Header, rows []core.Row, _ *core.FormatterOptions) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("w.Write: %w", err)
	}

	record := make([]string, len(header))
	for _, row := range rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = csvCell(row[i])
			}
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("w.Write: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("w.Flush: %w", err)
	}

	return buf.Bytes(), nil
}

func csvCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	default:
		return fmt.Sprint(val)
	}
}
