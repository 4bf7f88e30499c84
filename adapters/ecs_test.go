package adapters

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resttable/resttable/core"
)

// ecsServer mimics the context service: the legacy context api, the v2
// index api and the login exchange.
type ecsServer struct {
	*fakeAPI

	mu         sync.Mutex
	contexts   []map[string]any
	indexes    []map[string]any
	docs       []map[string]any
	retryAfter string
	// pageCap limits search pages regardless of the requested size
	pageCap int
}

func newECSServer(t *testing.T, docs int) *ecsServer {
	s := &ecsServer{
		contexts: []map[string]any{
			{"id": "1", "name": "Doc One", "type": "text", "value": "first", "isDeleted": false},
			{"id": "2", "name": "Policy", "type": "file", "value": "policy.pdf", "isDeleted": false},
		},
		indexes: []map[string]any{
			{"id": "idx-1", "name": "invoices", "status": "ready"},
			{"id": "idx-2", "name": "contracts", "status": "ready"},
		},
	}
	for i := 0; i < docs; i++ {
		s.docs = append(s.docs, map[string]any{
			"id":        fmt.Sprintf("doc-%d", i),
			"content":   fmt.Sprintf("content %d", i),
			"source":    "invoices.pdf",
			"score":     0.9,
			"page":      i,
			"reference": map[string]any{"uri": fmt.Sprintf("https://docs.example.com/doc-%d", i)},
		})
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/services/app/Context/GetContexts", s.getContexts)
	mux.HandleFunc("GET /api/services/app/Context/GetContext", s.getContext)
	mux.HandleFunc("POST /api/services/app/Context/CreateContext", s.createContext)
	mux.HandleFunc("DELETE /api/services/app/Context/DeleteContext", s.deleteContext)
	mux.HandleFunc("GET /{account}/{tenant}/ecs_/v2/indexes", s.listIndexes)
	mux.HandleFunc("GET /{account}/{tenant}/ecs_/v2/indexes/{id}", s.getIndex)
	mux.HandleFunc("POST /{account}/{tenant}/ecs_/v2/indexes/{id}/search", s.search)

	root := http.NewServeMux()
	root.HandleFunc("POST /api/account/authenticate", s.authenticate)
	root.Handle("/", requireAuth(mux, "Bearer test-token", "Bearer mock_token"))

	s.fakeAPI = newFakeAPI(t, root)
	return s
}

func (s *ecsServer) authenticate(w http.ResponseWriter, r *http.Request) {
	body := recorded(r).Body
	if body["tenancyName"] == "test_tenant" && body["usernameOrEmailAddress"] == "test_user" && body["password"] == "test_password" {
		writeJSON(w, http.StatusOK, map[string]any{
			"result": map[string]any{"accessToken": "mock_token", "expireInSeconds": 3600},
		})
		return
	}
	writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Invalid credentials"})
}

func (s *ecsServer) getContexts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var filtered []map[string]any
	for _, c := range s.contexts {
		if typ := r.URL.Query().Get("type"); typ != "" && c["type"] != typ {
			continue
		}
		filtered = append(filtered, c)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"result": map[string]any{
			"items":      window(filtered, r.URL.Query().Get("skipCount"), r.URL.Query().Get("maxResultCount")),
			"totalCount": len(filtered),
		},
	})
}

func (s *ecsServer) getContext(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.contexts {
		if c["id"] == r.URL.Query().Get("id") {
			writeJSON(w, http.StatusOK, map[string]any{"result": c})
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "Context not found"})
}

func (s *ecsServer) createContext(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body := recorded(r).Body
	if body["name"] == "reject" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "name is reserved"})
		return
	}

	created := map[string]any{
		"id":        strconv.Itoa(len(s.contexts) + 1),
		"name":      body["name"],
		"type":      body["type"],
		"value":     body["value"],
		"isDeleted": false,
	}
	s.contexts = append(s.contexts, created)
	writeJSON(w, http.StatusOK, map[string]any{"result": created})
}

func (s *ecsServer) deleteContext(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.contexts = slices.DeleteFunc(s.contexts, func(c map[string]any) bool {
		return c["id"] == r.URL.Query().Get("id")
	})
	writeJSON(w, http.StatusOK, map[string]any{"result": true})
}

func (s *ecsServer) listIndexes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"value": window(s.indexes, r.URL.Query().Get("$skip"), r.URL.Query().Get("$top")),
	})
}

func (s *ecsServer) getIndex(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, idx := range s.indexes {
		if idx["id"] == r.PathValue("id") {
			writeJSON(w, http.StatusOK, idx)
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"error": "index not found"})
}

func (s *ecsServer) search(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body := recorded(r).Body
	skip, _ := body["skip"].(float64)
	n, _ := body["numberOfResults"].(float64)
	if s.pageCap > 0 {
		n = min(n, float64(s.pageCap))
	}

	if s.retryAfter != "" {
		w.Header().Set("Retry-After", s.retryAfter)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"value": window(s.docs, strconv.Itoa(int(skip)), strconv.Itoa(int(n))),
	})
}

// window returns items[skip:skip+top] with bounds applied.
func window(items []map[string]any, skip, top string) []map[string]any {
	from, _ := strconv.Atoi(skip)
	n, err := strconv.Atoi(top)
	if err != nil {
		n = len(items)
	}

	from = min(max(from, 0), len(items))
	to := min(from+n, len(items))
	out := append([]map[string]any{}, items[from:to]...)
	return out
}

func ecsParams(url string, extra ...string) map[string]string {
	params := map[string]string{
		"name":       "ecs-test",
		"type":       "ecs",
		"base_url":   url,
		"account_id": "acc",
		"tenant_id":  "ten",
		"schema_id":  "idx-1",
		"token":      "test-token",
	}
	for i := 0; i+1 < len(extra); i += 2 {
		params[extra[i]] = extra[i+1]
		if extra[i+1] == "" {
			delete(params, extra[i])
		}
	}
	return params
}

func searchQuery(n int) *core.Query {
	return &core.Query{
		Operation: core.Operation{Type: core.OperationSelect},
		Table:     "search",
		Predicates: []core.Predicate{
			{Field: core.FieldQuery, Operator: core.OpEqual, Value: "invoice total"},
			{Field: core.FieldNumberOfResults, Operator: core.OpEqual, Value: n},
		},
	}
}

func TestECS_Validate(t *testing.T) {
	srv := newECSServer(t, 0)

	tests := []struct {
		name   string
		params map[string]string
	}{
		{
			name:   "missing tenant",
			params: ecsParams(srv.URL(), "tenant_id", ""),
		},
		{
			name:   "invalid base url",
			params: ecsParams("ftp://example.com"),
		},
		{
			name:   "ambiguous auth",
			params: ecsParams(srv.URL(), "username", "test_user", "password", "test_password"),
		},
		{
			name:   "incomplete basic auth",
			params: ecsParams(srv.URL(), "token", "", "username", "test_user"),
		},
		{
			name:   "no auth",
			params: ecsParams(srv.URL(), "token", ""),
		},
		{
			name:   "token template does not parse",
			params: ecsParams(srv.URL(), "token", "{{ env `ECS_TOKEN` "),
		},
		{
			name:   "token command fails",
			params: ecsParams(srv.URL(), "token", "{{ exec `false` }}"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := core.ConfigFromMap(tt.params)
			require.NoError(t, err)

			_, err = NewConnection(cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrConfiguration)
		})
	}

	assert.Empty(t, srv.Requests(), "validation must not touch the network")
}

func TestECS_CheckConnection(t *testing.T) {
	t.Run("token", func(t *testing.T) {
		srv := newECSServer(t, 0)
		conn, _ := newTestConnection(t, ecsBackend(), ecsParams(srv.URL()))
		assert.Empty(t, srv.Requests())

		ok, err := conn.CheckConnection(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)

		requests := srv.Requests()
		require.Len(t, requests, 1)
		assert.Equal(t, "GET", requests[0].Method)
		assert.Equal(t, "/acc/ten/ecs_/v2/indexes", requests[0].Path)
		assert.Equal(t, []string{"1"}, requests[0].Query["$top"])
	})

	t.Run("login", func(t *testing.T) {
		srv := newECSServer(t, 0)
		conn, _ := newTestConnection(t, ecsBackend(), ecsParams(srv.URL(),
			"account_id", "",
			"tenant_id", "test_tenant",
			"token", "",
			"username", "test_user",
			"password", "test_password",
		))

		ok, err := conn.CheckConnection(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)

		// one login exchange, then the single health read
		require.Len(t, srv.Requests(), 2)
		assert.Equal(t, []string{
			"POST /api/account/authenticate",
			"GET /api/services/app/Context/GetContexts",
		}, srv.Paths())
		assert.Equal(t, "Bearer mock_token", srv.Requests()[1].Header.Get("Authorization"))

		// the token is cached, a second check is a single read
		srv.Reset()
		ok, err = conn.CheckConnection(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []string{"GET /api/services/app/Context/GetContexts"}, srv.Paths())
	})

	t.Run("rejected login", func(t *testing.T) {
		srv := newECSServer(t, 0)
		conn, _ := newTestConnection(t, ecsBackend(), ecsParams(srv.URL(),
			"tenant_id", "test_tenant",
			"token", "",
			"username", "test_user",
			"password", "wrong",
		))

		ok, err := conn.CheckConnection(context.Background())
		require.Error(t, err)
		assert.False(t, ok)
		assert.ErrorIs(t, err, core.ErrAuthentication)
		assert.Equal(t, []string{"POST /api/account/authenticate"}, srv.Paths())
	})

	t.Run("bad token", func(t *testing.T) {
		srv := newECSServer(t, 0)
		conn, _ := newTestConnection(t, ecsBackend(), ecsParams(srv.URL(), "token", "expired"))

		ok, err := conn.CheckConnection(context.Background())
		require.Error(t, err)
		assert.False(t, ok)
		assert.ErrorIs(t, err, core.ErrAuthentication)
		assert.Equal(t, 401, core.StatusCode(err))
		assert.Len(t, srv.Requests(), 1)
	})
}

func TestECS_SearchPagination(t *testing.T) {
	tests := []struct {
		name         string
		docs         int
		pageCap      int
		n            int
		expectedRows int
		expectedSent []float64
		expectedSkip []float64
	}{
		{
			name:         "first page is enough",
			docs:         12,
			n:            5,
			expectedRows: 5,
			expectedSent: []float64{5},
			expectedSkip: []float64{0},
		},
		{
			name:         "two pages, short last page",
			docs:         12,
			n:            15,
			expectedRows: 12,
			// the short page is not trusted as the last one, only an empty page ends the scan
			expectedSent: []float64{10, 5, 3},
			expectedSkip: []float64{0, 10, 12},
		},
		{
			name:         "exact pages",
			docs:         30,
			n:            20,
			expectedRows: 20,
			expectedSent: []float64{10, 10},
			expectedSkip: []float64{0, 10},
		},
		{
			name:         "empty index",
			docs:         0,
			n:            5,
			expectedRows: 0,
			expectedSent: []float64{5},
			expectedSkip: []float64{0},
		},
		{
			name:         "server caps the page size",
			docs:         12,
			pageCap:      4,
			n:            10,
			expectedRows: 10,
			expectedSent: []float64{10, 6, 2},
			expectedSkip: []float64{0, 4, 8},
		},
		{
			name:         "server cap with exhausted index",
			docs:         6,
			pageCap:      4,
			n:            10,
			expectedRows: 6,
			expectedSent: []float64{10, 6, 4},
			expectedSkip: []float64{0, 4, 6},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := require.New(t)

			srv := newECSServer(t, tt.docs)
			srv.pageCap = tt.pageCap
			conn, _ := newTestConnection(t, ecsBackend(), ecsParams(srv.URL(), "page_size", "10"))

			stream, err := conn.Run(context.Background(), searchQuery(tt.n))
			r.NoError(err)
			header, rows := collect(t, stream)

			r.Len(rows, tt.expectedRows)
			r.Equal(core.Header{"id", "content", "source", "score", "page", "metadata", "reference", "reference_uri"}, header)

			var sent, skipped []float64
			for _, req := range srv.Requests() {
				r.Equal("/acc/ten/ecs_/v2/indexes/idx-1/search", req.Path)
				r.Equal("invoice total", req.Body["query"])
				sent = append(sent, req.Body["numberOfResults"].(float64))
				skipped = append(skipped, req.Body["skip"].(float64))
			}
			r.Equal(tt.expectedSent, sent)
			r.Equal(tt.expectedSkip, skipped)

			for i, id := range column(header, rows, "id") {
				r.Equal(fmt.Sprintf("doc-%d", i), id)
			}
		})
	}
}

func TestECS_SearchRowLimit(t *testing.T) {
	srv := newECSServer(t, 30)
	conn, _ := newTestConnection(t, ecsBackend(), ecsParams(srv.URL(), "page_size", "10", "max_rows", "25"))

	tests := []struct {
		name         string
		value        any
		expectedRows int
	}{
		{
			name:         "beyond the int range",
			value:        1e20,
			expectedRows: 25,
		},
		{
			name:         "numeric string beyond the int range",
			value:        "1e20",
			expectedRows: 25,
		},
		{
			name:         "below the cap",
			value:        7.0,
			expectedRows: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := require.New(t)
			srv.Reset()

			q := searchQuery(0)
			q.Predicates[1].Value = tt.value

			stream, err := conn.Run(context.Background(), q)
			r.NoError(err)
			_, rows := collect(t, stream)
			r.Len(rows, tt.expectedRows)

			for _, req := range srv.Requests() {
				r.LessOrEqual(req.Body["numberOfResults"].(float64), 10.0)
			}
		})
	}
}

func TestECS_SearchRetryAfter(t *testing.T) {
	r := require.New(t)

	srv := newECSServer(t, 12)
	srv.retryAfter = "2"
	conn, sleeper := newTestConnection(t, ecsBackend(), ecsParams(srv.URL(), "page_size", "10"))

	stream, err := conn.Run(context.Background(), searchQuery(15))
	r.NoError(err)
	_, rows := collect(t, stream)

	r.Len(rows, 12)
	// the third page is empty and ends the scan
	r.Len(srv.Requests(), 3)
	// only between pages, not after the last one
	r.Equal([]time.Duration{2 * time.Second, 2 * time.Second}, sleeper.Sleeps())
}

func TestECS_SearchValidation(t *testing.T) {
	srv := newECSServer(t, 12)
	conn, _ := newTestConnection(t, ecsBackend(), ecsParams(srv.URL()))

	tests := []struct {
		name  string
		query *core.Query
	}{
		{
			name:  "missing query",
			query: &core.Query{Table: "search"},
		},
		{
			name: "threshold out of range",
			query: &core.Query{
				Table: "search",
				Predicates: []core.Predicate{
					{Field: core.FieldQuery, Operator: core.OpEqual, Value: "x"},
					{Field: core.FieldThreshold, Operator: core.OpEqual, Value: 1.5},
				},
			},
		},
		{
			name: "zero results",
			query: &core.Query{
				Table: "search",
				Predicates: []core.Predicate{
					{Field: core.FieldQuery, Operator: core.OpEqual, Value: "x"},
					{Field: core.FieldNumberOfResults, Operator: core.OpEqual, Value: 0},
				},
			},
		},
		{
			name: "not a number of results",
			query: &core.Query{
				Table: "search",
				Predicates: []core.Predicate{
					{Field: core.FieldQuery, Operator: core.OpEqual, Value: "x"},
					{Field: core.FieldNumberOfResults, Operator: core.OpEqual, Value: math.NaN()},
				},
			},
		},
		{
			name: "infinite number of results",
			query: &core.Query{
				Table: "search",
				Predicates: []core.Predicate{
					{Field: core.FieldQuery, Operator: core.OpEqual, Value: "x"},
					{Field: core.FieldNumberOfResults, Operator: core.OpEqual, Value: math.Inf(1)},
				},
			},
		},
		{
			name: "query on a plain table",
			query: &core.Query{
				Table: "indexes",
				Predicates: []core.Predicate{
					{Field: core.FieldQuery, Operator: core.OpEqual, Value: "x"},
				},
			},
		},
		{
			name: "unknown filter column",
			query: &core.Query{
				Table: "contexts",
				Predicates: []core.Predicate{
					{Field: "color", Operator: core.OpEqual, Value: "red"},
				},
			},
		},
		{
			name: "unknown projection column",
			query: &core.Query{
				Table:      "contexts",
				Projection: []string{"name", "color"},
			},
		},
		{
			name:  "unknown table",
			query: &core.Query{Table: "nope"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := conn.Run(context.Background(), tt.query)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrValidation)
		})
	}

	assert.Empty(t, srv.Requests())
}

func TestECS_SelectByID(t *testing.T) {
	r := require.New(t)

	srv := newECSServer(t, 0)
	conn, _ := newTestConnection(t, ecsBackend(), ecsParams(srv.URL()))

	query := &core.Query{
		Table: "indexes",
		Predicates: []core.Predicate{
			{Field: "id", Operator: core.OpEqual, Value: "idx-2"},
		},
	}
	stream, err := conn.Run(context.Background(), query)
	r.NoError(err)
	header, rows := collect(t, stream)

	r.Len(rows, 1)
	r.Equal([]any{"contracts"}, column(header, rows, "name"))
	r.Equal([]string{"GET /acc/ten/ecs_/v2/indexes/idx-2"}, srv.Paths())

	// missing resource is an empty result
	srv.Reset()
	query.Predicates[0].Value = "idx-404"
	stream, err = conn.Run(context.Background(), query)
	r.NoError(err)
	_, rows = collect(t, stream)
	r.Empty(rows)
	r.Len(srv.Requests(), 1)
}

func TestECS_ContextsFilters(t *testing.T) {
	r := require.New(t)

	srv := newECSServer(t, 0)
	conn, _ := newTestConnection(t, ecsBackend(), ecsParams(srv.URL()))

	// type is pushed down, name is filtered locally
	stream, err := conn.Run(context.Background(), &core.Query{
		Table: "contexts",
		Predicates: []core.Predicate{
			{Field: "type", Operator: core.OpEqual, Value: "text"},
			{Field: "name", Operator: core.OpLike, Value: "doc%"},
		},
		Projection: []string{"name", "type"},
	})
	r.NoError(err)
	header, rows := collect(t, stream)

	r.Equal(core.Header{"name", "type"}, header)
	r.Equal([]core.Row{{"Doc One", "text"}}, rows)

	requests := srv.Requests()
	r.Len(requests, 1)
	r.Equal([]string{"text"}, requests[0].Query["type"])
	r.NotContains(requests[0].Query, "name")

	// residual filter without matches
	stream, err = conn.Run(context.Background(), &core.Query{
		Table: "contexts",
		Predicates: []core.Predicate{
			{Field: "name", Operator: core.OpIn, Value: []any{"Policy", "Other"}},
		},
	})
	r.NoError(err)
	header, rows = collect(t, stream)
	r.Equal([]any{"2"}, column(header, rows, "id"))
}

func TestECS_InsertThenSelect(t *testing.T) {
	r := require.New(t)

	srv := newECSServer(t, 0)
	conn, _ := newTestConnection(t, ecsBackend(), ecsParams(srv.URL()))

	statuses, err := conn.Insert(context.Background(), "contexts", []map[string]any{
		{"name": "Invoices", "type": "text", "value": "all invoices of 2024"},
	})
	r.NoError(err)
	r.Len(statuses, 1)
	r.True(statuses[0].OK)
	r.Equal("3", statuses[0].ID)

	stream, err := conn.Run(context.Background(), &core.Query{
		Table: "contexts",
		Predicates: []core.Predicate{
			{Field: "id", Operator: core.OpEqual, Value: statuses[0].ID},
		},
	})
	r.NoError(err)
	header, rows := collect(t, stream)

	r.Equal([]any{"Invoices"}, column(header, rows, "name"))
	r.Equal([]any{"all invoices of 2024"}, column(header, rows, "value"))
}

func TestECS_InsertPartialFailure(t *testing.T) {
	r := require.New(t)

	srv := newECSServer(t, 0)
	conn, _ := newTestConnection(t, ecsBackend(), ecsParams(srv.URL()))

	stream, err := conn.Run(context.Background(), &core.Query{
		Operation: core.Operation{Type: core.OperationInsert},
		Table:     "contexts",
		Rows: []map[string]any{
			{"name": "first", "type": "text", "value": "a"},
			{"name": "reject", "type": "text", "value": "b"},
			{"name": "third", "type": "text", "value": "c"},
		},
	})
	r.NoError(err)
	header, rows := collect(t, stream)

	r.Equal(core.Header{"row", "status", "id", "error"}, header)
	r.Equal([]any{"ok", "failed", "ok"}, column(header, rows, "status"))
	r.Equal([]any{"3", nil, "4"}, column(header, rows, "id"))
	r.Contains(rows[1][3], "HTTP 400")

	// every row is submitted, the failure does not abort the batch
	r.Len(srv.Requests(), 3)
}

func TestECS_InsertValidation(t *testing.T) {
	r := require.New(t)

	srv := newECSServer(t, 0)
	conn, _ := newTestConnection(t, ecsBackend(), ecsParams(srv.URL()))

	statuses, err := conn.Insert(context.Background(), "contexts", []map[string]any{
		{"name": "ok", "type": "text", "value": "a"},
		{"name": "missing value", "type": "text"},
	})
	r.NoError(err)
	r.True(statuses[0].OK)
	r.False(statuses[1].OK)
	r.ErrorIs(statuses[1].Err, core.ErrValidation)
	r.Len(srv.Requests(), 1)

	_, err = conn.Insert(context.Background(), "search", []map[string]any{{"query": "x"}})
	r.ErrorIs(err, core.ErrUnsupportedOperation)
}

func TestECS_Native(t *testing.T) {
	srv := newECSServer(t, 0)
	conn, _ := newTestConnection(t, ecsBackend(), ecsParams(srv.URL()))

	t.Run("get-context", func(t *testing.T) {
		srv.Reset()

		q, err := core.NewNativeQuery("get-context 2")
		require.NoError(t, err)

		stream, err := conn.Run(context.Background(), q)
		require.NoError(t, err)
		header, rows := collect(t, stream)

		assert.Equal(t, []any{"Policy"}, column(header, rows, "name"))
		assert.Equal(t, []string{"GET /api/services/app/Context/GetContext"}, srv.Paths())
	})

	t.Run("create-context with quoted args", func(t *testing.T) {
		srv.Reset()

		q, err := core.NewNativeQuery(`create-context "Release notes" text "notes of the release"`)
		require.NoError(t, err)

		stream, err := conn.Run(context.Background(), q)
		require.NoError(t, err)
		header, rows := collect(t, stream)

		assert.Equal(t, []any{"Release notes"}, column(header, rows, "name"))
		requests := srv.Requests()
		require.Len(t, requests, 1)
		assert.Equal(t, "notes of the release", requests[0].Body["value"])
	})

	t.Run("list-indexes", func(t *testing.T) {
		srv.Reset()

		q, err := core.NewNativeQuery("list-indexes")
		require.NoError(t, err)

		stream, err := conn.Run(context.Background(), q)
		require.NoError(t, err)
		header, rows := collect(t, stream)

		assert.Equal(t, core.Header{"id", "name", "status"}, header)
		assert.Len(t, rows, 2)
	})

	t.Run("invalid", func(t *testing.T) {
		srv.Reset()

		for line, kind := range map[string]error{
			"drop-everything":            core.ErrUnsupportedOperation,
			"get-context":                core.ErrValidation,
			"get-context 1 2":            core.ErrValidation,
			`update-index idx-1 '{"a":'`: core.ErrValidation,
			`update-index idx-1 '[1]'`:   core.ErrValidation,
			"create-context only-name":   core.ErrValidation,
		} {
			q, err := core.NewNativeQuery(line)
			require.NoError(t, err)

			_, err = conn.Run(context.Background(), q)
			assert.ErrorIs(t, err, kind, line)
		}
		assert.Empty(t, srv.Requests())
	})
}

func TestECS_Structure(t *testing.T) {
	r := require.New(t)

	srv := newECSServer(t, 0)
	conn, _ := newTestConnection(t, ecsBackend(), ecsParams(srv.URL()))

	structure, err := conn.GetStructure(context.Background())
	r.NoError(err)

	var names []string
	for _, s := range structure {
		names = append(names, s.Name)
	}
	r.Equal([]string{"search", "indexes", "contexts", "commands"}, names)
	r.Len(structure[3].Children, 11)
	r.Equal("get-index <id>", structure[3].Children[1].Name)

	columns, err := conn.GetColumns(context.Background(), "search")
	r.NoError(err)
	r.Equal("reference_uri", columns[len(columns)-1].Name)

	// static tables need no discovery
	r.Empty(srv.Requests())
}

func TestECS_NestedColumns(t *testing.T) {
	r := require.New(t)

	srv := newECSServer(t, 3)
	conn, _ := newTestConnection(t, ecsBackend(), ecsParams(srv.URL()))

	q := searchQuery(3)
	q.Projection = []string{"reference_uri", "reference"}
	stream, err := conn.Run(context.Background(), q)
	r.NoError(err)
	_, rows := collect(t, stream)

	r.Len(rows, 3)
	r.Equal("https://docs.example.com/doc-0", rows[0][0])
	r.Equal(map[string]any{"uri": "https://docs.example.com/doc-0"}, rows[0][1])
}
