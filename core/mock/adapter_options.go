package mock

import (
	"context"

	"github.com/resttable/resttable/core"
)

type adapterConfig struct {
	querySideEffects map[string]func(context.Context) error
	tableColumns     map[string][]*core.Column

	validateErr error
	connectErr  error
	pingErr     error

	resultStreamOptions []ResultStreamOption
}

type AdapterOption func(*adapterConfig)

// AdapterWithQuerySideEffect runs sideEffect before every query of the table.
func AdapterWithQuerySideEffect(table string, sideEffect func(context.Context) error) AdapterOption {
	return func(c *adapterConfig) {
		_, ok := c.querySideEffects[table]
		if ok {
			panic("side effect already registered for table: " + table)
		}

		c.querySideEffects[table] = sideEffect
	}
}

func AdapterWithTableDefinition(table string, columns []*core.Column) AdapterOption {
	return func(c *adapterConfig) {
		_, ok := c.tableColumns[table]
		if ok {
			panic("columns already registered for table: " + table)
		}

		c.tableColumns[table] = columns
	}
}

func AdapterWithValidateError(err error) AdapterOption {
	return func(c *adapterConfig) {
		c.validateErr = err
	}
}

func AdapterWithConnectError(err error) AdapterOption {
	return func(c *adapterConfig) {
		c.connectErr = err
	}
}

func AdapterWithPingError(err error) AdapterOption {
	return func(c *adapterConfig) {
		c.pingErr = err
	}
}

func AdapterWithResultStreamOpts(opts ...ResultStreamOption) AdapterOption {
	return func(c *adapterConfig) {
		c.resultStreamOptions = append(c.resultStreamOptions, opts...)
	}
}
