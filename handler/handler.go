package handler

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/resttable/resttable/adapters"
	"github.com/resttable/resttable/core"
	"github.com/resttable/resttable/core/format"
)

// maxConcurrentChecks bounds the health checks running at once.
const maxConcurrentChecks = 4

// Handler keeps track of registered connections and their calls.
type Handler struct {
	log    logrus.FieldLogger
	events *eventBus

	callLogPath string

	mu                   sync.Mutex
	lookupConnection     map[core.ConnectionID]*core.Connection
	lookupCall           map[core.CallID]*core.Call
	lookupConnectionCall map[core.ConnectionID][]core.CallID

	currentConnectionID core.ConnectionID
}

type Option func(*Handler)

func WithLogger(log logrus.FieldLogger) Option {
	return func(h *Handler) {
		h.log = log
	}
}

// WithCallLog stores the call history to path when the handler closes.
func WithCallLog(path string) Option {
	return func(h *Handler) {
		h.callLogPath = path
	}
}

// WithEventListener registers a listener for handler events.
func WithEventListener(fn func(*Event)) Option {
	return func(h *Handler) {
		h.events.listeners = append(h.events.listeners, fn)
	}
}

func New(opts ...Option) *Handler {
	h := &Handler{
		log:    logrus.StandardLogger(),
		events: &eventBus{},

		lookupConnection:     make(map[core.ConnectionID]*core.Connection),
		lookupCall:           make(map[core.CallID]*core.Call),
		lookupConnectionCall: make(map[core.ConnectionID][]core.CallID),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.events.log = h.log

	return h
}

func (h *Handler) Close() {
	h.mu.Lock()
	calls := make([]*core.Call, 0, len(h.lookupCall))
	for _, c := range h.lookupCall {
		calls = append(calls, c)
	}
	h.mu.Unlock()

	// wait for unfinished calls
	for _, c := range calls {
		select {
		case <-c.Done():
		case <-time.After(10 * time.Second):
		}
	}

	if h.callLogPath != "" {
		if err := h.storeCallLog(h.callLogPath); err != nil {
			h.log.WithError(err).Warn("storing call log failed")
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.lookupConnection {
		c.Close()
	}
}

// CreateConnection validates and registers the connection. It does not
// touch the network.
func (h *Handler) CreateConnection(cfg *core.ConnectionConfig) (core.ConnectionID, error) {
	c, err := adapters.NewConnection(cfg, core.ConnectionWithLogger(h.log))
	if err != nil {
		return "", fmt.Errorf("adapters.NewConnection: %w", err)
	}

	h.mu.Lock()
	old, ok := h.lookupConnection[c.GetID()]
	h.lookupConnection[c.GetID()] = c
	h.mu.Unlock()

	if ok {
		go old.Close()
	}
	_ = h.SetCurrentConnection(c.GetID())

	return c.GetID(), nil
}

// GetConnections returns the connections with the given ids (all if none)
// ordered by name.
func (h *Handler) GetConnections(ids []core.ConnectionID) []*core.Connection {
	h.mu.Lock()
	defer h.mu.Unlock()

	var conns []*core.Connection
	for _, c := range h.lookupConnection {
		if len(ids) > 0 && !slices.Contains(ids, c.GetID()) {
			continue
		}
		conns = append(conns, c)
	}
	sort.Slice(conns, func(i, j int) bool {
		return conns[i].GetName() < conns[j].GetName()
	})

	return conns
}

func (h *Handler) connection(connID core.ConnectionID) (*core.Connection, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.lookupConnection[connID]
	if !ok {
		return nil, fmt.Errorf("unknown connection with id: %q", connID)
	}
	return c, nil
}

func (h *Handler) call(callID core.CallID) (*core.Call, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.lookupCall[callID]
	if !ok {
		return nil, fmt.Errorf("unknown call with id: %q", callID)
	}
	return c, nil
}

func (h *Handler) GetCurrentConnection() (*core.Connection, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, ok := h.lookupConnection[h.currentConnectionID]
	if !ok {
		return nil, fmt.Errorf("current connection has not been set yet")
	}
	return c, nil
}

func (h *Handler) SetCurrentConnection(connID core.ConnectionID) error {
	h.mu.Lock()
	_, ok := h.lookupConnection[connID]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("unknown connection with id: %q", connID)
	}
	if h.currentConnectionID == connID {
		h.mu.Unlock()
		return nil
	}
	h.currentConnectionID = connID
	h.mu.Unlock()

	h.events.CurrentConnectionChanged(connID)
	return nil
}

// ConnectionExecute runs the query in the background.
func (h *Handler) ConnectionExecute(connID core.ConnectionID, query *core.Query) (*core.Call, error) {
	c, err := h.connection(connID)
	if err != nil {
		return nil, err
	}

	call := c.Execute(query, func(state core.CallState, cl *core.Call) {
		if err := cl.Err(); err != nil && state.IsFinal() {
			h.log.WithError(err).WithField("call", cl.GetID()).Error("call failed")
		}

		h.events.CallStateChanged(connID, cl)
	})

	h.mu.Lock()
	h.lookupCall[call.GetID()] = call
	h.lookupConnectionCall[connID] = append(h.lookupConnectionCall[connID], call.GetID())
	h.mu.Unlock()

	_ = h.SetCurrentConnection(connID)

	return call, nil
}

func (h *Handler) ConnectionGetCalls(connID core.ConnectionID) ([]*core.Call, error) {
	if _, err := h.connection(connID); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var calls []*core.Call
	for _, cID := range h.lookupConnectionCall[connID] {
		c, ok := h.lookupCall[cID]
		if !ok {
			continue
		}
		calls = append(calls, c)
	}

	return calls, nil
}

func (h *Handler) ConnectionGetConfig(connID core.ConnectionID) (*core.ConnectionConfig, error) {
	c, err := h.connection(connID)
	if err != nil {
		return nil, err
	}

	return c.GetConfig(), nil
}

func (h *Handler) ConnectionGetStructure(ctx context.Context, connID core.ConnectionID) ([]*core.Structure, error) {
	c, err := h.connection(connID)
	if err != nil {
		return nil, err
	}

	layout, err := c.GetStructure(ctx)
	if err != nil {
		return nil, fmt.Errorf("c.GetStructure: %w", err)
	}

	return layout, nil
}

func (h *Handler) ConnectionGetColumns(ctx context.Context, connID core.ConnectionID, table string) ([]*core.Column, error) {
	c, err := h.connection(connID)
	if err != nil {
		return nil, err
	}

	return c.GetColumns(ctx, table)
}

// HealthStatus is the outcome of checking a single connection.
type HealthStatus struct {
	ID   core.ConnectionID
	Name string
	OK   bool
	Err  error
}

// CheckConnections checks the given connections (all if none) concurrently.
// A failing check is reported in its status and never cancels the others.
func (h *Handler) CheckConnections(ctx context.Context, ids []core.ConnectionID) []*HealthStatus {
	conns := h.GetConnections(ids)
	statuses := make([]*HealthStatus, len(conns))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentChecks)
	for i, c := range conns {
		g.Go(func() error {
			ok, err := c.CheckConnection(ctx)
			statuses[i] = &HealthStatus{
				ID:   c.GetID(),
				Name: c.GetName(),
				OK:   ok,
				Err:  err,
			}
			h.events.ConnectionChecked(statuses[i])
			return nil
		})
	}
	_ = g.Wait()

	return statuses
}

func (h *Handler) CallCancel(callID core.CallID) error {
	call, err := h.call(callID)
	if err != nil {
		return err
	}

	call.Cancel()
	return nil
}

// Formatter returns the result formatter registered under name.
func Formatter(name string) (core.Formatter, error) {
	switch name {
	case "json":
		return format.NewJSON(), nil
	case "csv":
		return format.NewCSV(), nil
	case "table", "":
		return format.NewTable(), nil
	}
	return nil, fmt.Errorf("output format %q is not supported", name)
}

// CallStoreResult formats rows [from, to) of the call result into w.
func (h *Handler) CallStoreResult(callID core.CallID, fmat string, w io.Writer, from, to int) error {
	formatter, err := Formatter(fmat)
	if err != nil {
		return err
	}

	call, err := h.call(callID)
	if err != nil {
		return err
	}

	res, err := call.GetResult()
	if err != nil {
		return fmt.Errorf("call.GetResult: %w", err)
	}

	text, err := res.Format(formatter, from, to)
	if err != nil {
		return fmt.Errorf("res.Format: %w", err)
	}

	_, err = w.Write(text)
	if err != nil {
		return fmt.Errorf("w.Write: %w", err)
	}

	return nil
}
