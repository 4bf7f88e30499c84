package adapters

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/resttable/resttable/core"
)

// Insert submits rows one by one. A failing row never aborts the others.
func (d *restDriver) Insert(ctx context.Context, table string, rows []map[string]any) ([]core.InsertStatus, error) {
	catalog, err := d.getCatalog(ctx)
	if err != nil {
		return nil, err
	}
	t, err := catalog.table(table)
	if err != nil {
		return nil, err
	}
	if t.Create == nil {
		return nil, core.Errorf(core.ErrUnsupportedOperation, "insert", "table %q is read-only", t.Name)
	}

	log := d.log.WithFields(logrus.Fields{
		"op":    "insert",
		"table": t.Name,
	})

	params := make(map[string]string, len(catalog.Params))
	maps.Copy(params, catalog.Params)

	statuses := make([]core.InsertStatus, len(rows))
	for i, row := range rows {
		statuses[i] = d.insertRow(ctx, t, i, row, params)
		if !statuses[i].OK {
			log.WithError(statuses[i].Err).WithField("row", i).Warn("row rejected")
		}
	}

	return statuses, nil
}

func (d *restDriver) insertRow(ctx context.Context, t *Table, index int, row map[string]any, params map[string]string) core.InsertStatus {
	status := core.InsertStatus{Index: index}

	var missing []string
	for _, f := range t.Required {
		if v, ok := row[f]; !ok || v == nil || v == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		status.Err = core.Errorf(core.ErrValidation, "insert", "row %d: missing required fields: %s", index, strings.Join(missing, ", "))
		return status
	}

	// writes are never retried
	req := t.Create(row, params)
	req.Retry = false

	resp, err := d.client.Do(ctx, req)
	if err != nil {
		status.Err = err
		return status
	}

	status.OK = true
	if t.CreatedID != nil {
		status.ID = t.CreatedID(resp)
	}
	return status
}

// insertResult renders insert statuses as rows of row, status, id, error.
func insertResult(table string, statuses []core.InsertStatus) core.ResultStream {
	rows := make([]core.Row, len(statuses))
	for i, s := range statuses {
		state := "ok"
		var errMsg any
		if !s.OK {
			state = "failed"
			errMsg = fmt.Sprint(s.Err)
		}
		var id any
		if s.ID != "" {
			id = s.ID
		}
		rows[i] = core.Row{s.Index, state, id, errMsg}
	}

	return resultStream(table, core.Header{"row", "status", "id", "error"}, rows)
}

// createdID reads an id from the created object under the first path that has one.
func createdID(obj map[string]any, paths ...string) string {
	for _, p := range paths {
		if v, ok := lookup(obj, p); ok && v != nil {
			return fmtValue(v)
		}
	}
	return ""
}
