package adapters

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/resttable/resttable/core"
	"github.com/resttable/resttable/core/builders"
	"github.com/resttable/resttable/rest"
)

var _ core.Driver = (*restDriver)(nil)

// restDriver serves every backend through its definition table.
type restDriver struct {
	backend *Backend
	config  *core.ConnectionConfig
	client  *rest.Client
	log     logrus.FieldLogger

	mu      sync.Mutex
	catalog *Catalog
}

// getCatalog returns the table catalog, discovering it on first use.
func (d *restDriver) getCatalog(ctx context.Context) (*Catalog, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.catalog != nil {
		return d.catalog, nil
	}

	if d.backend.Discover == nil {
		d.catalog = &Catalog{Tables: d.backend.Tables}
		return d.catalog, nil
	}

	catalog, err := d.backend.Discover(ctx, d.client, d.config)
	if err != nil {
		return nil, fmt.Errorf("discover %s tables: %w", d.backend.Name, err)
	}
	d.log.WithField("tables", len(catalog.Tables)).Debug("discovered tables")
	d.catalog = catalog

	return d.catalog, nil
}

func (d *restDriver) Query(ctx context.Context, query *core.Query) (core.ResultStream, error) {
	switch query.Operation.Type {
	case core.OperationSelect:
		return d.selectRows(ctx, query)
	case core.OperationInsert:
		statuses, err := d.Insert(ctx, query.Table, query.Rows)
		if err != nil {
			return nil, err
		}
		return insertResult(query.Table, statuses), nil
	case core.OperationNative:
		return d.runNative(ctx, query.Operation.Command, query.Args)
	}

	return nil, core.Errorf(core.ErrUnsupportedOperation, "query", "unsupported operation: %s", query.Operation)
}

func (d *restDriver) Structure(ctx context.Context) ([]*core.Structure, error) {
	catalog, err := d.getCatalog(ctx)
	if err != nil {
		return nil, err
	}

	var structure []*core.Structure
	for _, t := range catalog.Tables {
		structure = append(structure, &core.Structure{
			Name:        t.Name,
			Description: t.Description,
			Type:        core.StructureTypeTable,
		})
	}

	if len(d.backend.Commands) > 0 {
		commands := &core.Structure{
			Name: "commands",
			Type: core.StructureTypeNone,
		}
		for _, c := range d.backend.Commands {
			commands.Children = append(commands.Children, &core.Structure{
				Name:        c.usage(),
				Description: c.Description,
				Type:        core.StructureTypeCommand,
			})
		}
		structure = append(structure, commands)
	}

	return structure, nil
}

func (d *restDriver) Columns(ctx context.Context, table string) ([]*core.Column, error) {
	catalog, err := d.getCatalog(ctx)
	if err != nil {
		return nil, err
	}
	t, err := catalog.table(table)
	if err != nil {
		return nil, err
	}

	columns := make([]*core.Column, len(t.Columns))
	for i, c := range t.Columns {
		columns[i] = &core.Column{
			Name:        c.Name,
			Type:        c.Type,
			Description: c.Description,
		}
	}
	return columns, nil
}

// Ping issues exactly one read. Business errors report an unhealthy
// connection without failing.
func (d *restDriver) Ping(ctx context.Context) (bool, error) {
	req := d.backend.Health(d.config)
	req.Retry = false
	if req.Op == "" {
		req.Op = "health check"
	}

	_, err := d.client.Do(ctx, req)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, core.ErrRemote) {
		d.log.WithFields(logrus.Fields{
			"status": core.StatusCode(err),
			"body":   rest.Mask(string(core.Body(err))),
		}).Warn("health check returned an error")
		return false, nil
	}

	return false, err
}

func (d *restDriver) Close() {}

// resultStream wraps rows of a fully fetched result.
func resultStream(table string, header core.Header, rows []core.Row) core.ResultStream {
	return builders.FromRows(header, rows, &core.Meta{
		SchemaType: core.SchemaFul,
		Table:      table,
	})
}

// isNotFound reports a 404 from the api.
func isNotFound(err error) bool {
	return errors.Is(err, core.ErrRemote) && core.StatusCode(err) == http.StatusNotFound
}
