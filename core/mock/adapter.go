package mock

import (
	"context"
	"fmt"

	"github.com/resttable/resttable/core"
)

var _ core.Driver = (*driver)(nil)

type driver struct {
	data   []core.Row
	config *adapterConfig
}

func (d *driver) Query(ctx context.Context, query *core.Query) (core.ResultStream, error) {
	eff, ok := d.config.querySideEffects[query.Table]
	if ok {
		err := eff(ctx)
		if err != nil {
			return nil, fmt.Errorf("side effect error: %w", err)
		}
	}

	return NewResultStream(query.Table, d.data, d.config.resultStreamOptions...), nil
}

func (d *driver) Insert(_ context.Context, table string, rows []map[string]any) ([]core.InsertStatus, error) {
	if _, ok := d.config.tableColumns[table]; !ok {
		return nil, core.Errorf(core.ErrValidation, "insert", "unknown table: %s", table)
	}

	statuses := make([]core.InsertStatus, len(rows))
	for i := range rows {
		statuses[i] = core.InsertStatus{Index: i, OK: true, ID: fmt.Sprintf("%s_%d", table, i)}
	}
	return statuses, nil
}

func (d *driver) Structure(context.Context) ([]*core.Structure, error) {
	var structure []*core.Structure

	for table := range d.config.tableColumns {
		structure = append(structure, &core.Structure{
			Name: table,
			Type: core.StructureTypeTable,
		})
	}

	return structure, nil
}

func (d *driver) Columns(_ context.Context, table string) ([]*core.Column, error) {
	columns, ok := d.config.tableColumns[table]
	if !ok {
		return nil, fmt.Errorf("unknown table: %s", table)
	}

	return columns, nil
}

func (d *driver) Ping(context.Context) (bool, error) {
	return d.config.pingErr == nil, d.config.pingErr
}

func (d *driver) Close() {}

var _ core.Adapter = (*Adapter)(nil)

type Adapter struct {
	data   []core.Row
	config *adapterConfig
}

func NewAdapter(data []core.Row, opts ...AdapterOption) *Adapter {
	config := &adapterConfig{
		querySideEffects: make(map[string]func(context.Context) error),
		tableColumns:     make(map[string][]*core.Column),

		resultStreamOptions: []ResultStreamOption{},
	}
	for _, opt := range opts {
		opt(config)
	}

	return &Adapter{
		data:   data,
		config: config,
	}
}

func (a *Adapter) Validate(*core.ConnectionConfig) error {
	return a.config.validateErr
}

func (a *Adapter) Connect(*core.ConnectionConfig) (core.Driver, error) {
	if a.config.connectErr != nil {
		return nil, a.config.connectErr
	}

	return &driver{
		data:   a.data,
		config: a.config,
	}, nil
}
