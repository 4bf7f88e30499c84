package adapters

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/resttable/resttable/core"
	"github.com/resttable/resttable/rest"
)

// Backend is the definition table of a single REST API. One generic
// driver serves every backend, the differences live in these values.
type Backend struct {
	Name        string
	Description string

	// Defaults fill unset config fields before validation.
	Defaults func(cfg *core.ConnectionConfig)
	// Required config keys (canonical names).
	Required []string
	// AuthModes the backend accepts.
	AuthModes []core.AuthMode
	// Auth builds the authenticator for a validated config.
	Auth func(cfg *core.ConnectionConfig, mode core.AuthMode) rest.Authenticator

	// Tables is the static table catalog. Ignored when Discover is set.
	Tables []*Table
	// Discover builds the catalog from the remote API on first use.
	Discover func(ctx context.Context, c *rest.Client, cfg *core.ConnectionConfig) (*Catalog, error)

	Commands []*Command

	// Health is the single lightweight read of a connection check.
	Health func(cfg *core.ConnectionConfig) *rest.Request
}

// Catalog is the set of tables known to a connection plus any path
// parameters discovered along with them.
type Catalog struct {
	Tables []*Table
	Params map[string]string
}

func (c *Catalog) table(name string) (*Table, error) {
	for _, t := range c.Tables {
		if t.Name == name {
			return t, nil
		}
	}
	return nil, core.Errorf(core.ErrValidation, "lookup table", "unknown table: %q", name)
}

// Column is a declared output column.
type Column struct {
	Name string
	Type string
	// Path is a dotted path into the response object, defaults to Name.
	Path        string
	Description string
}

func (c *Column) path() string {
	if c.Path != "" {
		return c.Path
	}
	return c.Name
}

// PagingKind is the pagination convention of a list endpoint.
type PagingKind int

const (
	// PagingNone means the endpoint returns everything in one response.
	PagingNone PagingKind = iota
	// PagingOffset advances an offset (skip) by the number of items received.
	PagingOffset
	// PagingPage advances a 1-based page number.
	PagingPage
	// PagingToken follows a continuation token returned by the API.
	PagingToken
)

// ListState is everything a table needs to build one page request.
type ListState struct {
	Pushed   []core.Predicate
	Search   *core.SearchParams
	Params   map[string]string
	Offset   int
	Page     int
	PageSize int
	Token    string
}

// Predicate returns the first pushed predicate for the field.
func (s *ListState) Predicate(field string) (core.Predicate, bool) {
	for _, p := range s.Pushed {
		if p.Field == field {
			return p, true
		}
	}
	return core.Predicate{}, false
}

// Page is a decoded page of a list response.
type Page struct {
	Items []map[string]any
	// Next is the continuation token, empty when there are no more pages.
	Next string
	// Total number of matching items if the api reports it, 0 otherwise.
	Total int
}

// Table is a virtual table backed by REST endpoints.
type Table struct {
	Name        string
	Description string
	Columns     []*Column

	// IDField is the column that isolates a single resource, defaults to "id".
	IDField string
	// Pushable maps fields the list endpoint filters on to the operators it supports.
	Pushable map[string][]core.Operator
	// PathPredicates maps equality predicates to path parameters (e.g. schema -> schema_id).
	PathPredicates map[string]string
	// Search enables the reserved query and threshold predicates.
	Search bool
	// RequireQuery rejects searches without a query predicate.
	RequireQuery bool

	Paging PagingKind
	List   func(s *ListState) *rest.Request
	Items  func(resp *rest.Response) (*Page, error)

	// Get fetches a single resource by id. Nil when there is no such endpoint.
	Get     func(id string, params map[string]string) *rest.Request
	GetItem func(resp *rest.Response) (map[string]any, error)

	// Create submits one row. Nil for read-only tables.
	Create    func(row map[string]any, params map[string]string) *rest.Request
	CreatedID func(resp *rest.Response) string
	// Required fields of an insert.
	Required []string
}

func (t *Table) idField() string {
	if t.IDField != "" {
		return t.IDField
	}
	return core.FieldID
}

func (t *Table) column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// fieldName resolves a predicate or projection name to the declared column
// or id field. Without an exact match case is ignored, so "id" finds "Id".
func (t *Table) fieldName(name string) string {
	if _, ok := t.column(name); ok || name == t.idField() {
		return name
	}
	if strings.EqualFold(name, t.idField()) {
		return t.idField()
	}
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c.Name
		}
	}
	return name
}

func (t *Table) header() core.Header {
	header := make(core.Header, len(t.Columns))
	for i, c := range t.Columns {
		header[i] = c.Name
	}
	return header
}

func (t *Table) pushable(p core.Predicate) bool {
	for _, op := range t.Pushable[p.Field] {
		if op == p.Operator {
			return true
		}
	}
	return false
}

// Command is a native administrative operation.
type Command struct {
	Name        string
	Description string
	Method      string
	// Path template, placeholders are filled from args, then discovered
	// params, then connection defaults.
	Path     string
	Args     []string
	Optional []string
	// Query builds query parameters from named args.
	Query func(args map[string]string) url.Values
	// Body builds the request body from named args.
	Body func(args map[string]string) (any, error)
	// Items extracts result rows, defaults to generic extraction.
	Items func(resp *rest.Response) ([]map[string]any, error)
}

func (c *Command) usage() string {
	parts := []string{c.Name}
	for _, a := range c.Args {
		parts = append(parts, "<"+a+">")
	}
	for _, a := range c.Optional {
		parts = append(parts, "["+a+"]")
	}
	return strings.Join(parts, " ")
}

// bind maps positional args to names.
func (c *Command) bind(args []string) (map[string]string, error) {
	if len(args) < len(c.Args) || len(args) > len(c.Args)+len(c.Optional) {
		return nil, core.Errorf(core.ErrValidation, "native "+c.Name,
			"expected %d to %d arguments, got %d (usage: %s)", len(c.Args), len(c.Args)+len(c.Optional), len(args), c.usage())
	}

	named := make(map[string]string, len(args))
	names := append(append([]string{}, c.Args...), c.Optional...)
	for i, a := range args {
		named[names[i]] = a
	}
	return named, nil
}

func findCommand(commands []*Command, name string) (*Command, error) {
	for _, c := range commands {
		if c.Name == name {
			return c, nil
		}
	}
	return nil, core.Errorf(core.ErrUnsupportedOperation, "native", "unknown command: %q", name)
}

// jsonArg decodes a json object argument of a native command.
func jsonArg(args map[string]string, name string) (map[string]any, error) {
	raw, ok := args[name]
	if !ok {
		return nil, nil
	}

	obj, err := decodeObject([]byte(raw))
	if err != nil {
		return nil, core.Errorf(core.ErrValidation, "parse argument", "%s must be a json object: %s", name, err)
	}
	return obj, nil
}

func fmtValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
