package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// rowWaitTimeout bounds how long a reader waits for rows that are still being fetched.
const rowWaitTimeout = 5 * time.Minute

// Result buffers the rows of a drained ResultStream so that a call can be
// formatted many times, also while the stream is still being read.
type Result struct {
	// fillMu is held for the whole duration of a Fill.
	fillMu sync.Mutex

	mu   sync.Mutex
	cond *sync.Cond

	header Header
	meta   *Meta
	rows   []Row

	// filling is true between Fill start and the end of the stream.
	filling bool
	// ready is true once Fill started and did not fail.
	ready bool
}

func (r *Result) init() {
	if r.cond == nil {
		r.cond = sync.NewCond(&r.mu)
	}
}

// Fill drains the stream into the buffer and closes it.
// onStart is called once the header is known.
func (r *Result) Fill(stream ResultStream, onStart func()) error {
	r.fillMu.Lock()
	defer r.fillMu.Unlock()
	defer stream.Close()

	r.mu.Lock()
	r.init()
	r.header = stream.Header()
	r.meta = stream.Meta()
	if r.meta == nil {
		r.meta = &Meta{}
	}
	r.rows = r.rows[:0]
	r.filling = true
	r.ready = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.filling = false
		r.cond.Broadcast()
		r.mu.Unlock()
	}()

	if onStart != nil {
		onStart()
	}

	for stream.HasNext() {
		row, err := stream.Next()
		if err != nil {
			r.mu.Lock()
			r.ready = false
			r.mu.Unlock()
			return err
		}

		r.mu.Lock()
		r.rows = append(r.rows, row)
		r.cond.Broadcast()
		r.mu.Unlock()
	}

	return nil
}

// Reset drops everything buffered so far. It waits for a running Fill.
func (r *Result) Reset() {
	r.fillMu.Lock()
	defer r.fillMu.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.init()

	r.header = Header{}
	r.meta = &Meta{}
	r.rows = nil
	r.filling = false
	r.ready = false
}

// Ready reports whether the result holds (or is receiving) rows.
func (r *Result) Ready() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ready
}

func (r *Result) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func (r *Result) Header() Header {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.header
}

func (r *Result) Meta() *Meta {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.meta
}

// Format renders the rows between from and to.
func (r *Result) Format(formatter Formatter, from, to int) ([]byte, error) {
	rows, start, err := r.window(from, to)
	if err != nil {
		return nil, fmt.Errorf("r.window: %w", err)
	}

	out, err := formatter.Format(r.Header(), rows, &FormatterOptions{
		SchemaType: r.Meta().SchemaType,
		ChunkStart: start,
	})
	if err != nil {
		return nil, fmt.Errorf("formatter.Format: %w", err)
	}

	return out, nil
}

// Records returns all rows keyed by header names.
func (r *Result) Records() ([]map[string]any, error) {
	rows, err := r.Rows(0, -1)
	if err != nil {
		return nil, err
	}

	header := r.Header()
	records := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		rec := make(map[string]any, len(header))
		for i, h := range header {
			if i < len(row) {
				rec[h] = row[i]
			} else {
				rec[h] = nil
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Rows returns the rows between from (inclusive) and to (exclusive).
// Negative indexes count from the end: -1 is one past the last row.
func (r *Result) Rows(from, to int) ([]Row, error) {
	rows, _, err := r.window(from, to)
	return rows, err
}

func rangeError(from, to int) error {
	return Errorf(ErrValidation, "rows", "invalid selection range: %d ... %d", from, to)
}

// window waits until the requested rows are available and returns them
// together with the resolved start index.
func (r *Result) window(from, to int) ([]Row, int, error) {
	switch {
	case from < 0 && to >= 0:
		return nil, 0, rangeError(from, to)
	case (from < 0) == (to < 0) && from > to:
		return nil, 0, rangeError(from, to)
	}

	ctx, cancel := context.WithTimeout(context.Background(), rowWaitTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.cond != nil {
			r.cond.Broadcast()
		}
	})
	defer stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.init()

	for r.filling && (to < 0 || to > len(r.rows)) {
		if err := ctx.Err(); err != nil {
			return nil, 0, fmt.Errorf("waiting for rows: %w", err)
		}
		r.cond.Wait()
	}

	n := len(r.rows)
	from = resolveIndex(from, n)
	to = resolveIndex(to, n)

	out := make([]Row, to-from)
	copy(out, r.rows[from:to])
	return out, from, nil
}

func resolveIndex(i, n int) int {
	if i < 0 {
		i += n + 1
	}
	return max(0, min(i, n))
}
