package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type (
	// Adapter knows how to validate a configuration for one backend and
	// how to build a driver from it.
	Adapter interface {
		// Validate checks the configuration without any network calls.
		Validate(cfg *ConnectionConfig) error
		Connect(cfg *ConnectionConfig) (Driver, error)
	}

	// Driver is an interface for a specific backend.
	Driver interface {
		// Query executes select, insert and native operations.
		Query(context.Context, *Query) (ResultStream, error)
		// Insert submits rows one by one and reports a status per row.
		Insert(ctx context.Context, table string, rows []map[string]any) ([]InsertStatus, error)
		Structure(context.Context) ([]*Structure, error)
		Columns(ctx context.Context, table string) ([]*Column, error)
		// Ping performs a single lightweight read.
		Ping(context.Context) (bool, error)
		Close()
	}
)

type Connection struct {
	config           *ConnectionConfig
	unexpandedConfig *ConnectionConfig
	adapter          Adapter
	log              logrus.FieldLogger

	mu        sync.Mutex
	driver    Driver
	driverErr error
}

type ConnectionOption func(*Connection)

func ConnectionWithLogger(log logrus.FieldLogger) ConnectionOption {
	return func(c *Connection) {
		c.log = log
	}
}

func (c *Connection) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.config)
}

// NewConnection validates the config. The driver is created lazily on first use.
func NewConnection(cfg *ConnectionConfig, adapter Adapter, opts ...ConnectionOption) (*Connection, error) {
	expanded, err := cfg.Expand()
	if err != nil {
		return nil, err
	}

	if expanded.ID == "" {
		expanded.ID = ConnectionID(uuid.New().String())
	}

	err = adapter.Validate(expanded)
	if err != nil {
		return nil, fmt.Errorf("adapter.Validate: %w", err)
	}

	c := &Connection{
		config:           expanded,
		unexpandedConfig: cfg,
		adapter:          adapter,
		log:              logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.log = c.log.WithFields(logrus.Fields{
		"connection": expanded.Name,
		"backend":    expanded.Type,
	})

	return c, nil
}

func (c *Connection) GetID() ConnectionID {
	return c.config.ID
}

func (c *Connection) GetName() string {
	return c.config.Name
}

func (c *Connection) GetType() string {
	return c.config.Type
}

// GetConfig returns the original source for this connection
func (c *Connection) GetConfig() *ConnectionConfig {
	return c.unexpandedConfig
}

// getDriver connects on first use. A failed connect is terminal.
func (c *Connection) getDriver() (Driver, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.driver != nil || c.driverErr != nil {
		return c.driver, c.driverErr
	}

	driver, err := c.adapter.Connect(c.config)
	if err != nil {
		c.driverErr = fmt.Errorf("adapter.Connect: %w", err)
		c.log.WithError(err).Error("connect failed")
		return nil, c.driverErr
	}
	c.driver = driver

	return c.driver, nil
}

// CheckConnection confirms reachability and auth validity.
func (c *Connection) CheckConnection(ctx context.Context) (bool, error) {
	driver, err := c.getDriver()
	if err != nil {
		return false, err
	}

	ok, err := driver.Ping(ctx)
	if err != nil {
		return false, fmt.Errorf("driver.Ping: %w", err)
	}
	if !ok {
		c.log.Warn("connection check failed")
	}

	return ok, nil
}

// Run executes the query synchronously.
func (c *Connection) Run(ctx context.Context, query *Query) (ResultStream, error) {
	driver, err := c.getDriver()
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"op":    query.Operation.String(),
		"table": query.Table,
	}).Debug("executing query")

	return driver.Query(ctx, query)
}

// Execute runs the query in the background and reports state changes.
func (c *Connection) Execute(query *Query, onEvent func(CallState, *Call)) *Call {
	exec := func(ctx context.Context) (ResultStream, error) {
		return c.Run(ctx, query)
	}

	return newCallFromExecutor(exec, query, onEvent)
}

// Insert submits rows and returns a status per row.
func (c *Connection) Insert(ctx context.Context, table string, rows []map[string]any) ([]InsertStatus, error) {
	driver, err := c.getDriver()
	if err != nil {
		return nil, err
	}

	return driver.Insert(ctx, table, rows)
}

func (c *Connection) GetStructure(ctx context.Context) ([]*Structure, error) {
	driver, err := c.getDriver()
	if err != nil {
		return nil, err
	}

	structure, err := driver.Structure(ctx)
	if err != nil {
		return nil, err
	}

	// fallback to not confuse users
	if len(structure) < 1 {
		structure = []*Structure{
			{
				Name: "no tables to show",
				Type: StructureTypeNone,
			},
		}
	}
	return structure, nil
}

func (c *Connection) GetColumns(ctx context.Context, table string) ([]*Column, error) {
	driver, err := c.getDriver()
	if err != nil {
		return nil, err
	}

	return driver.Columns(ctx, table)
}

func (c *Connection) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.driver != nil {
		c.driver.Close()
	}
}
