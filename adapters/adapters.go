package adapters

import (
	"errors"
	"fmt"
	"sort"

	"github.com/resttable/resttable/core"
)

var (
	errNoValidTypeAliases   = errors.New("no valid type aliases provided")
	ErrUnsupportedTypeAlias = errors.New("no backend registered for provided type alias")
)

// registeredAdapters holds implemented backends - specific backends register themselves in their init functions.
var registeredAdapters = make(map[string]core.Adapter)

// register registers a new adapter for a specific backend
func register(adapter core.Adapter, aliases ...string) error {
	if len(aliases) < 1 {
		return errNoValidTypeAliases
	}

	invalidCount := 0
	for _, alias := range aliases {
		if alias == "" {
			invalidCount++
			continue
		}
		registeredAdapters[alias] = adapter
	}

	if invalidCount == len(aliases) {
		return errNoValidTypeAliases
	}

	return nil
}

// Mux is an interface to all internal adapters.
type Mux struct{}

func (*Mux) GetAdapter(typ string) (core.Adapter, error) {
	value, ok := registeredAdapters[typ]
	if !ok {
		return nil, core.NewError(core.ErrConfiguration, "get adapter", fmt.Errorf("%w: %q", ErrUnsupportedTypeAlias, typ))
	}

	return value, nil
}

func (*Mux) AddAdapter(typ string, adapter core.Adapter) error {
	return register(adapter, typ)
}

// Types lists all registered type aliases.
func (*Mux) Types() []string {
	types := make([]string, 0, len(registeredAdapters))
	for typ := range registeredAdapters {
		types = append(types, typ)
	}
	sort.Strings(types)
	return types
}

// NewConnection is a wrapper around core.NewConnection that uses the internal mux for
// adapter registration.
func NewConnection(cfg *core.ConnectionConfig, opts ...core.ConnectionOption) (*core.Connection, error) {
	expanded, err := cfg.Expand()
	if err != nil {
		return nil, err
	}

	adapter, err := new(Mux).GetAdapter(expanded.Type)
	if err != nil {
		return nil, fmt.Errorf("Mux.GetAdapter: %w", err)
	}

	c, err := core.NewConnection(cfg, adapter, opts...)
	if err != nil {
		return nil, fmt.Errorf("core.NewConnection: %w", err)
	}

	return c, nil
}
