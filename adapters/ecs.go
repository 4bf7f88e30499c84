package adapters

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/resttable/resttable/core"
	"github.com/resttable/resttable/rest"
)

// Register backend
func init() {
	registerBackend(ecsBackend(), "uipath_ecs", "context_service")
}

const (
	ecsPrefix     = "{account_id}/{tenant_id}/ecs_/v2"
	ecsContextAPI = "api/services/app/Context"
	ecsLoginPath  = "api/account/authenticate"
)

func ecsBackend() *Backend {
	return &Backend{
		Name:        "ecs",
		Description: "UiPath Enterprise Context Service",
		Required:    []string{"base_url", "tenant_id"},
		AuthModes:   []core.AuthMode{core.AuthModeToken, core.AuthModeBasic},
		Auth: func(cfg *core.ConnectionConfig, mode core.AuthMode) rest.Authenticator {
			if mode == core.AuthModeBasic {
				return &rest.LoginAuth{
					Path:     ecsLoginPath,
					Tenant:   cfg.Tenant,
					Username: cfg.Username,
					Password: cfg.Password,
				}
			}
			return rest.BearerAuth{Token: cfg.Token}
		},
		Tables: []*Table{
			ecsSearchTable(),
			ecsIndexesTable(),
			ecsContextsTable(),
		},
		Commands: ecsCommands(),
		Health: func(cfg *core.ConnectionConfig) *rest.Request {
			// the legacy context api does not need an account
			if cfg.Account == "" {
				return &rest.Request{
					Method: http.MethodGet,
					Path:   ecsContextAPI + "/GetContexts",
					Query:  url.Values{"maxResultCount": {"1"}},
				}
			}
			return &rest.Request{
				Method: http.MethodGet,
				Path:   ecsPrefix + "/indexes",
				Query:  url.Values{"$top": {"1"}},
			}
		},
	}
}

func ecsSearchTable() *Table {
	return &Table{
		Name:        "search",
		Description: "semantic search over an index",
		Columns: []*Column{
			{Name: "id", Type: "string"},
			{Name: "content", Type: "string"},
			{Name: "source", Type: "string"},
			{Name: "score", Type: "float"},
			{Name: "page", Type: "integer"},
			{Name: "metadata", Type: "json"},
			{Name: "reference", Type: "json"},
			{Name: "reference_uri", Type: "string", Path: "reference.uri"},
		},
		Search:         true,
		RequireQuery:   true,
		PathPredicates: map[string]string{"schema": "schema_id"},
		Paging:         PagingOffset,
		List: func(s *ListState) *rest.Request {
			return &rest.Request{
				Op:         "search",
				Method:     http.MethodPost,
				Path:       ecsPrefix + "/indexes/{schema_id}/search",
				PathParams: s.Params,
				Body: map[string]any{
					"query":           s.Search.Query,
					"numberOfResults": s.PageSize,
					"threshold":       s.Search.Threshold,
					"skip":            s.Offset,
				},
			}
		},
		Items: func(resp *rest.Response) (*Page, error) {
			items, err := itemsAt(resp, "value", "results", "documents", "items")
			if err != nil {
				return nil, err
			}
			return &Page{Items: items}, nil
		},
	}
}

func ecsIndexesTable() *Table {
	return &Table{
		Name:        "indexes",
		Description: "context grounding indexes",
		Columns: []*Column{
			{Name: "id", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "description", Type: "string"},
			{Name: "status", Type: "string"},
			{Name: "dataSource", Type: "json"},
			{Name: "createdAt", Type: "datetime"},
			{Name: "updatedAt", Type: "datetime"},
		},
		Paging: PagingOffset,
		List: func(s *ListState) *rest.Request {
			return &rest.Request{
				Op:         "list indexes",
				Method:     http.MethodGet,
				Path:       ecsPrefix + "/indexes",
				PathParams: s.Params,
				Query: url.Values{
					"$top":  {strconv.Itoa(s.PageSize)},
					"$skip": {strconv.Itoa(s.Offset)},
				},
			}
		},
		Items: func(resp *rest.Response) (*Page, error) {
			items, err := itemsAt(resp, "value", "items")
			if err != nil {
				return nil, err
			}
			return &Page{Items: items}, nil
		},
		Get: func(id string, params map[string]string) *rest.Request {
			return &rest.Request{
				Op:         "get index",
				Method:     http.MethodGet,
				Path:       ecsPrefix + "/indexes/{id}",
				PathParams: withParam(params, "id", id),
			}
		},
		GetItem: func(resp *rest.Response) (map[string]any, error) {
			return objectAt(resp)
		},
		Create: func(row map[string]any, params map[string]string) *rest.Request {
			return &rest.Request{
				Op:         "create index",
				Method:     http.MethodPost,
				Path:       ecsPrefix + "/indexes",
				PathParams: params,
				Body:       row,
			}
		},
		CreatedID: func(resp *rest.Response) string {
			obj, err := objectAt(resp)
			if err != nil {
				return ""
			}
			return createdID(obj, "id")
		},
		Required: []string{"name"},
	}
}

func ecsContextsTable() *Table {
	eq := []core.Operator{core.OpEqual}

	return &Table{
		Name:        "contexts",
		Description: "contexts of the legacy context api",
		Columns: []*Column{
			{Name: "id", Type: "string"},
			{Name: "name", Type: "string"},
			{Name: "description", Type: "string"},
			{Name: "type", Type: "string"},
			{Name: "value", Type: "string"},
			{Name: "createdAt", Type: "datetime"},
			{Name: "updatedAt", Type: "datetime"},
			{Name: "createdBy", Type: "string"},
			{Name: "updatedBy", Type: "string"},
			{Name: "organizationUnitId", Type: "string"},
			{Name: "isDeleted", Type: "boolean"},
		},
		Pushable: map[string][]core.Operator{
			"type":      eq,
			"isDeleted": eq,
		},
		Paging: PagingOffset,
		List: func(s *ListState) *rest.Request {
			query := url.Values{
				"maxResultCount": {strconv.Itoa(s.PageSize)},
				"skipCount":      {strconv.Itoa(s.Offset)},
			}
			for _, p := range s.Pushed {
				query.Set(p.Field, fmtValue(p.Value))
			}

			return &rest.Request{
				Op:     "list contexts",
				Method: http.MethodGet,
				Path:   ecsContextAPI + "/GetContexts",
				Query:  query,
			}
		},
		Items: func(resp *rest.Response) (*Page, error) {
			items, err := itemsAt(resp, "result.items", "items")
			if err != nil {
				return nil, err
			}
			page := &Page{Items: items}

			if obj, err := decodeObject(resp.Body); err == nil {
				if total, ok := lookup(obj, "result.totalCount"); ok {
					if n, err := numeric(total); err == nil {
						page.Total = int(n)
					}
				}
			}
			return page, nil
		},
		Get: func(id string, _ map[string]string) *rest.Request {
			return &rest.Request{
				Op:     "get context",
				Method: http.MethodGet,
				Path:   ecsContextAPI + "/GetContext",
				Query:  url.Values{"id": {id}},
			}
		},
		GetItem: func(resp *rest.Response) (map[string]any, error) {
			return objectAt(resp, "result")
		},
		Create: func(row map[string]any, _ map[string]string) *rest.Request {
			return &rest.Request{
				Op:     "create context",
				Method: http.MethodPost,
				Path:   ecsContextAPI + "/CreateContext",
				Body:   row,
			}
		},
		CreatedID: func(resp *rest.Response) string {
			obj, err := decodeObject(resp.Body)
			if err != nil {
				return ""
			}
			return createdID(obj, "result.id", "id")
		},
		Required: []string{"name", "type", "value"},
	}
}

func ecsCommands() []*Command {
	byID := func(args map[string]string) url.Values {
		return url.Values{"id": {args["id"]}}
	}
	jsonBody := func(args map[string]string) (any, error) {
		return jsonArg(args, "json")
	}

	return []*Command{
		{
			Name:        "list-indexes",
			Description: "list all indexes",
			Method:      http.MethodGet,
			Path:        ecsPrefix + "/indexes",
		},
		{
			Name:        "get-index",
			Description: "get a single index",
			Method:      http.MethodGet,
			Path:        ecsPrefix + "/indexes/{id}",
			Args:        []string{"id"},
		},
		{
			Name:        "create-index",
			Description: "create an index",
			Method:      http.MethodPost,
			Path:        ecsPrefix + "/indexes",
			Args:        []string{"name"},
			Optional:    []string{"description"},
			Body: func(args map[string]string) (any, error) {
				return map[string]any{
					"name":        args["name"],
					"description": args["description"],
				}, nil
			},
		},
		{
			Name:        "update-index",
			Description: "update an index from a json object",
			Method:      http.MethodPut,
			Path:        ecsPrefix + "/indexes/{id}",
			Args:        []string{"id", "json"},
			Body:        jsonBody,
		},
		{
			Name:        "delete-index",
			Description: "delete an index",
			Method:      http.MethodDelete,
			Path:        ecsPrefix + "/indexes/{id}",
			Args:        []string{"id"},
		},
		{
			Name:        "ingest",
			Description: "ingest a json document into an index",
			Method:      http.MethodPost,
			Path:        ecsPrefix + "/indexes/{index}/ingest",
			Args:        []string{"index", "json"},
			Body:        jsonBody,
		},
		{
			Name:        "list-contexts",
			Description: "list all contexts",
			Method:      http.MethodGet,
			Path:        ecsContextAPI + "/GetContexts",
		},
		{
			Name:        "get-context",
			Description: "get a single context",
			Method:      http.MethodGet,
			Path:        ecsContextAPI + "/GetContext",
			Args:        []string{"id"},
			Query:       byID,
		},
		{
			Name:        "create-context",
			Description: "create a context",
			Method:      http.MethodPost,
			Path:        ecsContextAPI + "/CreateContext",
			Args:        []string{"name", "type", "value"},
			Optional:    []string{"description"},
			Body: func(args map[string]string) (any, error) {
				return map[string]any{
					"name":        args["name"],
					"type":        args["type"],
					"value":       args["value"],
					"description": args["description"],
				}, nil
			},
		},
		{
			Name:        "update-context",
			Description: "update a context from a json object",
			Method:      http.MethodPut,
			Path:        ecsContextAPI + "/UpdateContext",
			Args:        []string{"id", "json"},
			Body: func(args map[string]string) (any, error) {
				obj, err := jsonArg(args, "json")
				if err != nil {
					return nil, err
				}
				obj["id"] = args["id"]
				return obj, nil
			},
		},
		{
			Name:        "delete-context",
			Description: "delete a context",
			Method:      http.MethodDelete,
			Path:        ecsContextAPI + "/DeleteContext",
			Args:        []string{"id"},
			Query:       byID,
		},
	}
}

// withParam returns a copy of params with one more value.
func withParam(params map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out[key] = value
	return out
}
