package adapters

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/resttable/resttable/core"
	"github.com/resttable/resttable/rest"
)

var errUnexpectedShape = errors.New("unexpected response shape")

func decodeAny(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

func decodeObject(data []byte) (map[string]any, error) {
	v, err := decodeAny(data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errUnexpectedShape
	}
	return obj, nil
}

func shapeError(op string, resp *rest.Response, err error) error {
	return &core.Error{
		Kind:       core.ErrRemote,
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
		Err:        err,
	}
}

// lookup follows a dotted path through nested objects.
func lookup(obj map[string]any, path string) (any, bool) {
	var cur any = obj
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func toObjects(v any) ([]map[string]any, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}

	items := make([]map[string]any, 0, len(arr))
	for _, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			obj = map[string]any{"value": el}
		}
		items = append(items, obj)
	}
	return items, true
}

// itemsAt extracts a list of objects from a top-level array or from the
// first of the dotted paths that holds one.
func itemsAt(resp *rest.Response, paths ...string) ([]map[string]any, error) {
	v, err := decodeAny(resp.Body)
	if err != nil {
		return nil, shapeError("decode items", resp, err)
	}
	if v == nil {
		return []map[string]any{}, nil
	}

	if items, ok := toObjects(v); ok {
		return items, nil
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, shapeError("decode items", resp, errUnexpectedShape)
	}
	for _, p := range paths {
		raw, ok := lookup(obj, p)
		if !ok || raw == nil {
			continue
		}
		if items, ok := toObjects(raw); ok {
			return items, nil
		}
	}

	return nil, shapeError("decode items", resp, fmt.Errorf("%w: no list under %s", errUnexpectedShape, strings.Join(paths, ", ")))
}

// objectAt returns the object under the first matching path, or the
// response object itself.
func objectAt(resp *rest.Response, paths ...string) (map[string]any, error) {
	obj, err := decodeObject(resp.Body)
	if err != nil {
		return nil, shapeError("decode object", resp, err)
	}
	for _, p := range paths {
		raw, ok := lookup(obj, p)
		if !ok {
			continue
		}
		if inner, ok := raw.(map[string]any); ok {
			return inner, nil
		}
	}
	return obj, nil
}

// mapRow aligns an api object to the declared columns. Unknown keys are
// dropped, missing ones are nil, nested values stay as they are.
func mapRow(obj map[string]any, columns []*Column) core.Row {
	row := make(core.Row, len(columns))
	for i, c := range columns {
		v, ok := lookup(obj, c.path())
		if !ok {
			continue
		}
		row[i] = v
	}
	return row
}

// projector returns the header and a function that cuts rows to the projection.
func projector(t *Table, projection []string) (core.Header, func(core.Row) core.Row, error) {
	if len(projection) == 0 {
		return t.header(), func(r core.Row) core.Row { return r }, nil
	}

	indexes := make([]int, len(projection))
	for i, name := range projection {
		idx := -1
		for j, c := range t.Columns {
			if c.Name == name {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, nil, core.Errorf(core.ErrValidation, "projection", "unknown column %q in table %q", name, t.Name)
		}
		indexes[i] = idx
	}

	project := func(r core.Row) core.Row {
		out := make(core.Row, len(indexes))
		for i, idx := range indexes {
			out[i] = r[idx]
		}
		return out
	}

	return core.Header(projection), project, nil
}

// residualFilter evaluates client side predicates against mapped rows.
type residualFilter struct {
	checks []residualCheck
}

type residualCheck struct {
	index int
	pred  core.Predicate
	like  *regexp.Regexp
}

func newResidualFilter(t *Table, preds []core.Predicate) (*residualFilter, error) {
	f := &residualFilter{}
	for _, p := range preds {
		idx := -1
		for j, c := range t.Columns {
			if c.Name == p.Field {
				idx = j
				break
			}
		}
		if idx < 0 {
			return nil, core.Errorf(core.ErrValidation, "filter", "unknown column %q in table %q", p.Field, t.Name)
		}

		check := residualCheck{index: idx, pred: p}
		if p.Operator == core.OpLike {
			re, err := likePattern(fmtValue(p.Value))
			if err != nil {
				return nil, core.NewError(core.ErrValidation, "filter", err)
			}
			check.like = re
		}
		f.checks = append(f.checks, check)
	}
	return f, nil
}

func (f *residualFilter) empty() bool {
	return len(f.checks) == 0
}

func (f *residualFilter) match(row core.Row) bool {
	for _, c := range f.checks {
		if !c.match(row[c.index]) {
			return false
		}
	}
	return true
}

func (c *residualCheck) match(v any) bool {
	// null never compares
	if v == nil {
		return false
	}

	switch c.pred.Operator {
	case core.OpEqual:
		return compare(v, c.pred.Value) == 0
	case core.OpNotEqual:
		return compare(v, c.pred.Value) != 0
	case core.OpLess:
		return compare(v, c.pred.Value) < 0
	case core.OpLessEqual:
		return compare(v, c.pred.Value) <= 0
	case core.OpGreater:
		return compare(v, c.pred.Value) > 0
	case core.OpGreaterEqual:
		return compare(v, c.pred.Value) >= 0
	case core.OpIn:
		for _, want := range inValues(c.pred.Value) {
			if compare(v, want) == 0 {
				return true
			}
		}
		return false
	case core.OpLike:
		return c.like.MatchString(fmtValue(v))
	}
	return false
}

// compare orders numbers numerically and everything else as strings.
func compare(a, b any) int {
	fa, errA := numeric(a)
	fb, errB := numeric(b)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		}
		return 0
	}

	return strings.Compare(fmtValue(a), fmtValue(b))
}

func numeric(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	case bool:
		return 0, errors.New("bool")
	}
	return 0, fmt.Errorf("not a number: %v", v)
}

func inValues(v any) []any {
	switch vals := v.(type) {
	case []any:
		return vals
	case []string:
		out := make([]any, len(vals))
		for i, s := range vals {
			out[i] = s
		}
		return out
	case string:
		var out []any
		for _, s := range strings.Split(vals, ",") {
			out = append(out, strings.TrimSpace(s))
		}
		return out
	}
	return []any{v}
}

// likePattern converts a sql LIKE pattern to an anchored regexp.
func likePattern(pattern string) (*regexp.Regexp, error) {
	var sb strings.Builder
	sb.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			sb.WriteString(".*")
		case '_':
			sb.WriteString(".")
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	sb.WriteString("$")
	return regexp.Compile(sb.String())
}
