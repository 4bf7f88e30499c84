package format

import (
	"encoding/json"
	"fmt"

	"github.com/resttable/resttable/core"
)

var _ core.Formatter = (*JSON)(nil)

// JSON renders rows as an indented array of records keyed by column name.
// Records of schemaless results (native commands) omit nil values, since
// their header is the union of keys of all returned objects.
type JSON struct {
	indent string
}

func NewJSON() *JSON {
	return &JSON{indent: "  "}
}

func (jf *JSON) Format(header core.Header, rows []core.Row, opts *core.FormatterOptions) ([]byte, error) {
	data := records(header, rows, opts != nil && opts.SchemaType == core.SchemaLess)

	out, err := json.MarshalIndent(data, "", jf.indent)
	if err != nil {
		return nil, fmt.Errorf("json.MarshalIndent: %w", err)
	}

	return out, nil
}

func records(header core.Header, rows []core.Row, omitNil bool) []map[string]any {
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]any, len(header))
		for i, name := range header {
			var v any
			if i < len(row) {
				v = row[i]
			}
			if v == nil && omitNil {
				continue
			}
			rec[name] = v
		}
		out = append(out, rec)
	}
	return out
}
