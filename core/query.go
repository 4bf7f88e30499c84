package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Reserved predicate fields.
const (
	FieldQuery           = "query"
	FieldThreshold       = "threshold"
	FieldNumberOfResults = "number_of_results"
	FieldID              = "id"
)

type OperationType int

const (
	OperationSelect OperationType = iota
	OperationInsert
	OperationNative
)

func (o OperationType) String() string {
	switch o {
	case OperationSelect:
		return "select"
	case OperationInsert:
		return "insert"
	case OperationNative:
		return "native"
	default:
		return "unknown"
	}
}

// Operation is the discriminator of a query: select, insert or native:<command>.
type Operation struct {
	Type    OperationType
	Command string
}

func (o Operation) String() string {
	if o.Type == OperationNative {
		return "native:" + o.Command
	}
	return o.Type.String()
}

// ParseOperation parses the operation discriminator.
func ParseOperation(s string) (Operation, error) {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "", "select":
		return Operation{Type: OperationSelect}, nil
	case "insert":
		return Operation{Type: OperationInsert}, nil
	}

	cmd, ok := strings.CutPrefix(s, "native:")
	if !ok || cmd == "" {
		return Operation{}, Errorf(ErrUnsupportedOperation, "parse operation", "unknown operation %q", s)
	}

	return Operation{Type: OperationNative, Command: cmd}, nil
}

type Operator string

const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpIn           Operator = "in"
	OpLike         Operator = "like"
)

// ParseOperator normalizes a comparison operator.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "=", "==":
		return OpEqual, nil
	case "!=", "<>":
		return OpNotEqual, nil
	case "<":
		return OpLess, nil
	case "<=":
		return OpLessEqual, nil
	case ">":
		return OpGreater, nil
	case ">=":
		return OpGreaterEqual, nil
	case "in":
		return OpIn, nil
	case "like":
		return OpLike, nil
	}
	return "", Errorf(ErrValidation, "parse operator", "unsupported operator %q", s)
}

// IsRange reports whether the operator compares order.
func (o Operator) IsRange() bool {
	switch o {
	case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
		return true
	}
	return false
}

// Predicate is a single filter condition.
type Predicate struct {
	Field    string
	Operator Operator
	Value    any
}

func (p Predicate) String() string {
	return fmt.Sprintf("%s %s %v", p.Field, p.Operator, p.Value)
}

// Query describes a single request from the host engine.
type Query struct {
	Operation  Operation
	Table      string
	Predicates []Predicate
	// Projection is an optional subset of declared columns.
	Projection []string
	// Limit of returned rows, 0 means unset.
	Limit int
	// Rows to insert.
	Rows []map[string]any
	// Args of a native command.
	Args []string
}

// String renders the query on a single line, e.g.
//
//	select name, type from contexts where type = text limit 10
func (q *Query) String() string {
	var b strings.Builder

	switch q.Operation.Type {
	case OperationNative:
		b.WriteString(q.Operation.String())
		for _, a := range q.Args {
			b.WriteByte(' ')
			if a == "" || strings.ContainsAny(a, " \t\"'") {
				a = strconv.Quote(a)
			}
			b.WriteString(a)
		}
		return b.String()

	case OperationInsert:
		fmt.Fprintf(&b, "insert into %s (%d rows)", q.Table, len(q.Rows))
		return b.String()
	}

	b.WriteString("select ")
	if len(q.Projection) > 0 {
		b.WriteString(strings.Join(q.Projection, ", "))
	} else {
		b.WriteByte('*')
	}
	b.WriteString(" from ")
	b.WriteString(q.Table)
	for i, p := range q.Predicates {
		if i == 0 {
			b.WriteString(" where ")
		} else {
			b.WriteString(" and ")
		}
		b.WriteString(p.String())
	}
	if q.Limit > 0 {
		fmt.Fprintf(&b, " limit %d", q.Limit)
	}
	return b.String()
}

// NewNativeQuery creates a native query from a command line.
func NewNativeQuery(line string) (*Query, error) {
	fields, err := SplitCommand(line)
	if err != nil {
		return nil, NewError(ErrValidation, "parse native command", err)
	}
	if len(fields) < 1 {
		return nil, Errorf(ErrValidation, "parse native command", "empty command")
	}

	return &Query{
		Operation: Operation{Type: OperationNative, Command: fields[0]},
		Args:      fields[1:],
	}, nil
}

// SearchParams are the reserved predicates of a query.
type SearchParams struct {
	Query           string
	HasQuery        bool
	Threshold       float64
	NumberOfResults int
}

// SearchParams extracts reserved predicates and validates them.
// The number of results defaults to limit (capped by maxRows).
func (q *Query) SearchParams(maxRows int) (*SearchParams, error) {
	params := &SearchParams{
		NumberOfResults: maxRows,
	}
	if q.Limit > 0 && (maxRows <= 0 || q.Limit < maxRows) {
		params.NumberOfResults = q.Limit
	}

	for _, p := range q.Predicates {
		switch p.Field {
		case FieldQuery:
			if params.HasQuery {
				return nil, Errorf(ErrValidation, "search params", "at most one %q predicate allowed", FieldQuery)
			}
			if p.Operator != OpEqual {
				return nil, Errorf(ErrValidation, "search params", "%q supports only equality", FieldQuery)
			}
			params.Query = fmt.Sprint(p.Value)
			params.HasQuery = true

		case FieldThreshold:
			f, err := toFloat(p.Value)
			if err != nil || p.Operator != OpEqual || !isFinite(f) {
				return nil, Errorf(ErrValidation, "search params", "invalid %s predicate: %s", FieldThreshold, p)
			}
			if f < 0 || f > 1 {
				return nil, Errorf(ErrValidation, "search params", "%s out of range [0, 1]: %v", FieldThreshold, f)
			}
			params.Threshold = f

		case FieldNumberOfResults:
			f, err := toFloat(p.Value)
			if err != nil || p.Operator != OpEqual || !isFinite(f) || f < 1 {
				return nil, Errorf(ErrValidation, "search params", "invalid %s predicate: %s", FieldNumberOfResults, p)
			}
			// both LIMIT and the cap still apply; clamp before converting
			if params.NumberOfResults > 0 {
				f = min(f, float64(params.NumberOfResults))
			}
			params.NumberOfResults = int(min(f, math.MaxInt32))
		}
	}

	return params, nil
}

// IsReserved reports whether the field is one of the reserved search predicates.
func IsReserved(field string) bool {
	switch field {
	case FieldQuery, FieldThreshold, FieldNumberOfResults:
		return true
	}
	return false
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	}
	return 0, fmt.Errorf("not a number: %v", v)
}
