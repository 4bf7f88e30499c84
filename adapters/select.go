package adapters

import (
	"context"
	"maps"

	"github.com/sirupsen/logrus"

	"github.com/resttable/resttable/core"
)

// scanFactor bounds the raw rows scanned for client side filtering
// to a multiple of the row cap.
const scanFactor = 10

func (d *restDriver) selectRows(ctx context.Context, query *core.Query) (core.ResultStream, error) {
	catalog, err := d.getCatalog(ctx)
	if err != nil {
		return nil, err
	}
	t, err := catalog.table(query.Table)
	if err != nil {
		return nil, err
	}

	search, err := query.SearchParams(d.config.MaxRows)
	if err != nil {
		return nil, err
	}
	if search.NumberOfResults < 1 {
		return nil, core.Errorf(core.ErrValidation, "select", "row limit must be positive, got %d", search.NumberOfResults)
	}

	projection := make([]string, len(query.Projection))
	for i, name := range query.Projection {
		projection[i] = t.fieldName(name)
	}
	header, project, err := projector(t, projection)
	if err != nil {
		return nil, err
	}

	params := make(map[string]string, len(catalog.Params))
	maps.Copy(params, catalog.Params)

	var (
		pushed   []core.Predicate
		residual []core.Predicate
		id       string
		hasID    bool
	)
	for _, p := range query.Predicates {
		if !core.IsReserved(p.Field) && t.PathPredicates[p.Field] == "" {
			p.Field = t.fieldName(p.Field)
		}

		switch {
		case p.Field == core.FieldQuery || p.Field == core.FieldThreshold:
			if !t.Search {
				return nil, core.Errorf(core.ErrValidation, "select", "table %q does not support the %q predicate", t.Name, p.Field)
			}
		case p.Field == core.FieldNumberOfResults:
			// consumed by search params
		case t.PathPredicates[p.Field] != "":
			if p.Operator != core.OpEqual {
				return nil, core.Errorf(core.ErrValidation, "select", "%q supports only equality", p.Field)
			}
			params[t.PathPredicates[p.Field]] = fmtValue(p.Value)
		case !hasID && t.Get != nil && p.Field == t.idField() && p.Operator == core.OpEqual:
			id = fmtValue(p.Value)
			hasID = true
		case t.pushable(p):
			pushed = append(pushed, p)
		default:
			residual = append(residual, p)
		}
	}
	if t.RequireQuery && !search.HasQuery {
		return nil, core.Errorf(core.ErrValidation, "select", "table %q requires a %q predicate", t.Name, core.FieldQuery)
	}

	// validation happens here, before any request
	filter, err := newResidualFilter(t, residual)
	if err != nil {
		return nil, err
	}

	log := d.log.WithFields(logrus.Fields{
		"op":    "select",
		"table": t.Name,
	})

	var rows []core.Row
	if hasID {
		rows, err = d.fetchOne(ctx, t, id, params, filter)
	} else {
		rows, err = d.fetchPages(ctx, t, &ListState{
			Pushed: pushed,
			Search: search,
			Params: params,
		}, filter, search.NumberOfResults, log)
	}
	if err != nil {
		return nil, err
	}

	if len(rows) > search.NumberOfResults {
		rows = rows[:search.NumberOfResults]
	}
	for i := range rows {
		rows[i] = project(rows[i])
	}

	log.WithField("rows", len(rows)).Debug("select done")

	return resultStream(t.Name, header, rows), nil
}

// fetchOne reads a single resource. A missing resource is an empty result.
func (d *restDriver) fetchOne(ctx context.Context, t *Table, id string, params map[string]string, filter *residualFilter) ([]core.Row, error) {
	req := t.Get(id, params)
	req.Retry = true

	resp, err := d.client.Do(ctx, req)
	if isNotFound(err) {
		return []core.Row{}, nil
	}
	if err != nil {
		return nil, err
	}

	obj, err := t.GetItem(resp)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return []core.Row{}, nil
	}

	row := mapRow(obj, t.Columns)
	if !filter.match(row) {
		return []core.Row{}, nil
	}
	return []core.Row{row}, nil
}

// fetchPages follows the table's pagination sequentially until limit rows
// matched, the api has no more pages or the scan bound is hit.
func (d *restDriver) fetchPages(ctx context.Context, t *Table, state *ListState, filter *residualFilter, limit int, log logrus.FieldLogger) ([]core.Row, error) {
	rows := []core.Row{}
	scanned := 0
	maxScanned := d.config.MaxRows * scanFactor

	state.Page = 1
	for pages := 1; ; pages++ {
		state.PageSize = d.config.PageSize
		// without client side filtering there is no point in asking for more
		if remaining := limit - len(rows); filter.empty() && remaining < state.PageSize {
			state.PageSize = remaining
		}

		req := t.List(state)
		req.Retry = true

		resp, err := d.client.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		page, err := t.Items(resp)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			row := mapRow(item, t.Columns)
			if !filter.match(row) {
				continue
			}
			rows = append(rows, row)
			if len(rows) >= limit {
				break
			}
		}
		scanned += len(page.Items)

		log.WithFields(logrus.Fields{
			"page":  pages,
			"items": len(page.Items),
			"rows":  len(rows),
		}).Debug("fetched page")

		if len(rows) >= limit || !hasMore(t.Paging, state, page) {
			return rows, nil
		}
		if scanned >= maxScanned {
			log.WithField("scanned", scanned).Warn("scan bound reached, result may be incomplete")
			return rows, nil
		}

		state.Offset += len(page.Items)
		state.Page++
		state.Token = page.Next

		// honour rate limit hints before the next page
		if err := d.client.Sleep(ctx, resp.RetryAfter()); err != nil {
			return nil, core.NewError(core.ErrNetwork, "select", err)
		}
	}
}

func hasMore(kind PagingKind, state *ListState, page *Page) bool {
	if len(page.Items) == 0 {
		return false
	}

	switch kind {
	case PagingOffset, PagingPage:
		// a short page is not the end: servers may cap the page size below
		// the requested one
		return page.Total <= 0 || state.Offset+len(page.Items) < page.Total
	case PagingToken:
		return page.Next != ""
	}

	return false
}
