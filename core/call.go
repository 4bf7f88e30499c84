package core

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type (
	CallID string

	Call struct {
		id        CallID
		query     *Query
		timeTaken time.Duration
		timestamp time.Time

		mu    sync.RWMutex
		state CallState

		result     *Result
		cancelFunc func()

		// any error that might occur during execution
		err  error
		done chan struct{}
	}
)

// callPersistent is used for marshaling the call
type callPersistent struct {
	ID        string `json:"id"`
	Operation string `json:"operation"`
	Table     string `json:"table,omitempty"`
	State     string `json:"state"`
	TimeTaken int64  `json:"time_taken_us"`
	Timestamp int64  `json:"timestamp_us"`
	Error     string `json:"error,omitempty"`
}

func (c *Call) MarshalJSON() ([]byte, error) {
	errMsg := ""
	if err := c.Err(); err != nil {
		errMsg = err.Error()
	}

	return json.Marshal(&callPersistent{
		ID:        string(c.id),
		Operation: c.query.Operation.String(),
		Table:     c.query.Table,
		State:     c.GetState().String(),
		TimeTaken: c.GetTimeTaken().Microseconds(),
		Timestamp: c.timestamp.UnixMicro(),
		Error:     errMsg,
	})
}

var errCallCanceled = errors.New("call canceled")

func newCallFromExecutor(executor func(context.Context) (ResultStream, error), query *Query, onEvent func(CallState, *Call)) *Call {
	c := &Call{
		id:    CallID(uuid.New().String()),
		query: query,
		state: CallStateUnknown,

		result: new(Result),

		done: make(chan struct{}),
	}

	eventsCh := make(chan CallState, 10)

	ctx, cancel := context.WithCancel(context.Background())
	c.timestamp = time.Now()

	// events are never sent after the channel is closed
	var eventsMu sync.Mutex
	eventsClosed := false
	emit := func(state CallState) {
		eventsMu.Lock()
		defer eventsMu.Unlock()
		if eventsClosed {
			return
		}
		eventsCh <- state
	}

	var finishOnce sync.Once
	finish := func(state CallState, err error) {
		finishOnce.Do(func() {
			c.mu.Lock()
			c.timeTaken = time.Since(c.timestamp)
			c.err = err
			c.mu.Unlock()

			eventsMu.Lock()
			eventsCh <- state
			eventsClosed = true
			close(eventsCh)
			eventsMu.Unlock()
		})
	}

	c.cancelFunc = func() {
		cancel()
		finish(CallStateCanceled, errCallCanceled)
	}

	// event function handler, done is closed after the last callback
	go func() {
		defer close(c.done)
		for state := range eventsCh {
			c.mu.Lock()
			if c.state.IsFinal() {
				c.mu.Unlock()
				continue
			}
			c.state = state
			c.mu.Unlock()

			// trigger event callback
			if onEvent != nil {
				onEvent(state, c)
			}
		}
	}()

	go func() {
		defer cancel()

		// execute the function
		emit(CallStateExecuting)

		iter, err := executor(ctx)
		if err != nil {
			finish(CallStateExecutingFailed, err)
			return
		}

		// set iterator to result
		err = c.result.Fill(iter, func() { emit(CallStateRetrieving) })
		if err != nil {
			finish(CallStateRetrievingFailed, err)
			return
		}

		finish(CallStateSucceeded, nil)
	}()

	return c
}

func (c *Call) GetID() CallID {
	return c.id
}

func (c *Call) GetQuery() *Query {
	return c.query
}

func (c *Call) GetState() CallState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Call) GetTimeTaken() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timeTaken
}

func (c *Call) GetTimestamp() time.Time {
	return c.timestamp
}

func (c *Call) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Done returns a non-buffered channel that is closed when
// call finishes.
func (c *Call) Done() chan struct{} {
	return c.done
}

// Wait blocks until the call finishes or ctx is done.
func (c *Call) Wait(ctx context.Context) error {
	select {
	case <-c.done:
		return c.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Call) Cancel() {
	if c.GetState() > CallStateExecuting {
		return
	}
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

func (c *Call) GetResult() (*Result, error) {
	if !c.result.Ready() {
		if err := c.Err(); err != nil {
			return nil, err
		}
		return nil, errors.New("call has no result yet")
	}

	return c.result, nil
}
