package builders

import (
	"errors"

	"github.com/resttable/resttable/core"
)

// ErrNoNextRow is returned when a drained iterator is asked for another row.
var ErrNoNextRow = errors.New("no next row")

// NextSlice creates next and hasNext functions over values.
// toRow converts a single value to a row.
func NextSlice[T any](values []T, toRow func(T) core.Row) (func() (core.Row, error), func() bool) {
	index := 0

	hasNext := func() bool {
		return index < len(values)
	}

	next := func() (core.Row, error) {
		if !hasNext() {
			return nil, ErrNoNextRow
		}
		row := toRow(values[index])
		index++
		return row, nil
	}

	return next, hasNext
}
