package adapters

import (
	"context"
	"maps"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/resttable/resttable/core"
	"github.com/resttable/resttable/core/builders"
	"github.com/resttable/resttable/rest"
)

// runNative executes a native command. Arguments are checked before any
// request and the request is never retried.
func (d *restDriver) runNative(ctx context.Context, name string, args []string) (core.ResultStream, error) {
	cmd, err := findCommand(d.backend.Commands, name)
	if err != nil {
		return nil, err
	}

	named, err := cmd.bind(args)
	if err != nil {
		return nil, err
	}

	req := &rest.Request{
		Op:         "native " + cmd.Name,
		Method:     cmd.Method,
		Path:       cmd.Path,
		PathParams: make(map[string]string),
	}
	if cmd.Query != nil {
		req.Query = cmd.Query(named)
	}
	if cmd.Body != nil {
		req.Body, err = cmd.Body(named)
		if err != nil {
			return nil, err
		}
	}

	catalog, err := d.getCatalog(ctx)
	if err != nil {
		return nil, err
	}
	maps.Copy(req.PathParams, catalog.Params)
	maps.Copy(req.PathParams, named)

	d.log.WithFields(logrus.Fields{
		"op":      "native",
		"command": cmd.Name,
	}).Debug("running native command")

	resp, err := d.client.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	var items []map[string]any
	if cmd.Items != nil {
		items, err = cmd.Items(resp)
	} else {
		items, err = genericItems(resp)
	}
	if err != nil {
		return nil, err
	}

	header, rows := rowsFromObjects(items)
	return builders.FromRows(header, rows, &core.Meta{SchemaType: core.SchemaLess}), nil
}

// genericItems extracts rows from common response envelopes.
func genericItems(resp *rest.Response) ([]map[string]any, error) {
	v, err := decodeAny(resp.Body)
	if err != nil {
		return nil, shapeError("decode native result", resp, err)
	}

	switch val := v.(type) {
	case nil:
		return []map[string]any{}, nil
	case []any:
		items, _ := toObjects(val)
		return items, nil
	case map[string]any:
		for _, p := range []string{"value", "items", "data", "result.items"} {
			if raw, ok := lookup(val, p); ok {
				if items, ok := toObjects(raw); ok {
					return items, nil
				}
			}
		}
		if inner, ok := val["result"]; ok {
			if obj, ok := inner.(map[string]any); ok {
				return []map[string]any{obj}, nil
			}
			return []map[string]any{{"result": inner}}, nil
		}
		return []map[string]any{val}, nil
	}

	return []map[string]any{{"result": v}}, nil
}

// rowsFromObjects builds a schema from the sorted union of keys.
// Keys missing from an object are nil in its row.
func rowsFromObjects(items []map[string]any) (core.Header, []core.Row) {
	keys := make(map[string]struct{})
	for _, it := range items {
		for k := range it {
			keys[k] = struct{}{}
		}
	}

	header := make(core.Header, 0, len(keys))
	for k := range keys {
		header = append(header, k)
	}
	sort.Strings(header)

	rows := make([]core.Row, len(items))
	for i, it := range items {
		row := make(core.Row, len(header))
		for j, k := range header {
			row[j] = it[k]
		}
		rows[i] = row
	}
	return header, rows
}
