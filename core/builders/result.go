package builders

import (
	"sync"

	"github.com/resttable/resttable/core"
)

var _ core.ResultStream = (*ResultStream)(nil)

// ResultStream implements core.ResultStream on top of iterator functions.
type ResultStream struct {
	next    func() (core.Row, error)
	hasNext func() bool
	onClose func()
	meta    *core.Meta
	header  core.Header

	closed   bool
	closeOne sync.Once
}

func (r *ResultStream) Meta() *core.Meta {
	return r.meta
}

func (r *ResultStream) Header() core.Header {
	return r.header
}

func (r *ResultStream) HasNext() bool {
	return !r.closed && r.hasNext()
}

func (r *ResultStream) Next() (core.Row, error) {
	if r.closed {
		return nil, ErrNoNextRow
	}
	row, err := r.next()
	if err != nil {
		r.Close()
		return nil, err
	}
	return row, nil
}

// Close stops the iteration. The close callback runs once.
func (r *ResultStream) Close() {
	r.closed = true
	r.closeOne.Do(r.onClose)
}

// ResultStreamBuilder builds a ResultStream.
type ResultStreamBuilder struct {
	stream *ResultStream
}

func NewResultStreamBuilder() *ResultStreamBuilder {
	return &ResultStreamBuilder{
		stream: &ResultStream{
			next:    func() (core.Row, error) { return nil, ErrNoNextRow },
			hasNext: func() bool { return false },
			onClose: func() {},
			meta:    &core.Meta{},
			header:  core.Header{},
		},
	}
}

func (b *ResultStreamBuilder) WithNextFunc(next func() (core.Row, error), hasNext func() bool) *ResultStreamBuilder {
	b.stream.next = next
	b.stream.hasNext = hasNext
	return b
}

func (b *ResultStreamBuilder) WithHeader(header core.Header) *ResultStreamBuilder {
	b.stream.header = header
	return b
}

func (b *ResultStreamBuilder) WithMeta(meta *core.Meta) *ResultStreamBuilder {
	if meta != nil {
		b.stream.meta = meta
	}
	return b
}

func (b *ResultStreamBuilder) WithCloseFunc(fn func()) *ResultStreamBuilder {
	b.stream.onClose = fn
	return b
}

func (b *ResultStreamBuilder) Build() *ResultStream {
	return b.stream
}

// FromRows wraps rows that were already fetched.
func FromRows(header core.Header, rows []core.Row, meta *core.Meta) *ResultStream {
	next, hasNext := NextSlice(rows, func(r core.Row) core.Row { return r })

	return NewResultStreamBuilder().
		WithNextFunc(next, hasNext).
		WithHeader(header).
		WithMeta(meta).
		Build()
}
