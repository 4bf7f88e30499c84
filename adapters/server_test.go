package adapters

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/resttable/resttable/core"
	"github.com/resttable/resttable/rest"
)

// recordedRequest is a request seen by a fake api.
type recordedRequest struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   map[string]any
}

// fakeAPI records every request before passing it to the handler.
type fakeAPI struct {
	t   *testing.T
	srv *httptest.Server

	mu       sync.Mutex
	requests []*recordedRequest
}

func newFakeAPI(t *testing.T, handler http.Handler) *fakeAPI {
	t.Helper()

	f := &fakeAPI{t: t}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
		}
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&rec.Body)
		}

		f.mu.Lock()
		f.requests = append(f.requests, rec)
		f.mu.Unlock()

		handler.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), recordedKey{}, rec)))
	}))
	t.Cleanup(f.srv.Close)

	return f
}

type recordedKey struct{}

// recorded returns the recorded request of a handled request.
func recorded(r *http.Request) *recordedRequest {
	rec, _ := r.Context().Value(recordedKey{}).(*recordedRequest)
	return rec
}

func (f *fakeAPI) URL() string {
	return f.srv.URL
}

func (f *fakeAPI) Requests() []*recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*recordedRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// Paths returns "METHOD path" of every recorded request.
func (f *fakeAPI) Paths() []string {
	var paths []string
	for _, r := range f.Requests() {
		paths = append(paths, r.Method+" "+r.Path)
	}
	return paths
}

func (f *fakeAPI) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requireAuth rejects requests without one of the accepted authorization values.
func requireAuth(next http.Handler, accepted ...string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := r.Header.Get("Authorization")
		for _, a := range accepted {
			if got == a {
				next.ServeHTTP(w, r)
				return
			}
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "unauthorized"})
	})
}

// sleepRecorder replaces the client's sleep.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return nil
}

func (s *sleepRecorder) Sleeps() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration{}, s.sleeps...)
}

// newTestConnection connects a backend through a real connection.
func newTestConnection(t *testing.T, b *Backend, params map[string]string) (*core.Connection, *sleepRecorder) {
	t.Helper()

	cfg, err := core.ConfigFromMap(params)
	require.NoError(t, err)

	sleeper := &sleepRecorder{}
	adapter := &restAdapter{
		backend:    b,
		clientOpts: []rest.Option{rest.WithSleepFunc(sleeper.sleep)},
	}

	conn, err := core.NewConnection(cfg, adapter)
	require.NoError(t, err)
	t.Cleanup(conn.Close)

	return conn, sleeper
}

// collect drains a result stream.
func collect(t *testing.T, stream core.ResultStream) (core.Header, []core.Row) {
	t.Helper()
	defer stream.Close()

	rows := []core.Row{}
	for stream.HasNext() {
		row, err := stream.Next()
		require.NoError(t, err)
		rows = append(rows, row)
	}
	return stream.Header(), rows
}

// column returns the values of one column.
func column(header core.Header, rows []core.Row, name string) []any {
	idx := -1
	for i, h := range header {
		if strings.EqualFold(h, name) {
			idx = i
		}
	}
	if idx < 0 {
		return nil
	}

	values := make([]any, len(rows))
	for i, r := range rows {
		values[i] = r[idx]
	}
	return values
}
