package mock

import (
	"fmt"
	"time"

	"github.com/resttable/resttable/core"
	"github.com/resttable/resttable/core/builders"
)

// ResultStreamOption tweaks streams returned by the mocked driver.
type ResultStreamOption func(*streamConfig)

type streamConfig struct {
	rowDelay time.Duration
	header   core.Header
}

// ResultStreamWithNextSleep delays every row, simulating a slow page fetch.
func ResultStreamWithNextSleep(d time.Duration) ResultStreamOption {
	return func(c *streamConfig) { c.rowDelay = d }
}

// ResultStreamWithHeader overrides the default "id", "name" header.
func ResultStreamWithHeader(header core.Header) ResultStreamOption {
	return func(c *streamConfig) { c.header = header }
}

// NewResultStream returns a stream over rows of the given table.
func NewResultStream(table string, rows []core.Row, opts ...ResultStreamOption) core.ResultStream {
	config := &streamConfig{header: core.Header{"id", "name"}}
	for _, opt := range opts {
		opt(config)
	}

	next, hasNext := builders.NextSlice(rows, func(row core.Row) core.Row {
		time.Sleep(config.rowDelay)
		return row
	})

	return builders.NewResultStreamBuilder().
		WithNextFunc(next, hasNext).
		WithHeader(config.header).
		WithMeta(&core.Meta{Table: table}).
		Build()
}

// NewRows returns rows of the form {<index>, "record_<index>"} for
// indexes in [from, to).
func NewRows(from, to int) []core.Row {
	rows := make([]core.Row, 0, max(0, to-from))
	for i := from; i < to; i++ {
		rows = append(rows, core.Row{i, fmt.Sprintf("record_%d", i)})
	}
	return rows
}
