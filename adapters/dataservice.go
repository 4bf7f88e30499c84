package adapters

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/resttable/resttable/core"
	"github.com/resttable/resttable/rest"
)

// Register backend
func init() {
	registerBackend(dataServiceBackend(), "uipath")
}

const (
	dataServiceBaseURL = "https://platform.uipath.com"
	dataServicePrefix  = "{account_id}/{tenant_id}/{service_name}_/api"
)

const (
	// dataServiceAnd is the "and" logical operator of a filter group.
	dataServiceAnd = 0
	// dataServiceFilterType is the typeName of every query filter, values
	// are always sent as strings.
	dataServiceFilterType = "text"
)

func dataServiceBackend() *Backend {
	return &Backend{
		Name:        "dataservice",
		Description: "UiPath Data Service entities",
		Defaults: func(cfg *core.ConnectionConfig) {
			if cfg.BaseURL == "" {
				cfg.BaseURL = dataServiceBaseURL
			}
			if cfg.Tenant == "" {
				cfg.Tenant = "DefaultTenant"
			}
			if cfg.ServiceName == "" {
				cfg.ServiceName = "dataservice"
			}
		},
		Required:  []string{"base_url", "account_id", "tenant_id", "service_name"},
		AuthModes: []core.AuthMode{core.AuthModeToken},
		Auth: func(cfg *core.ConnectionConfig, _ core.AuthMode) rest.Authenticator {
			return rest.BearerAuth{Token: cfg.Token}
		},
		Discover: discoverEntities,
		Commands: []*Command{
			{
				Name:        "list-entities",
				Description: "list all entities",
				Method:      http.MethodGet,
				Path:        dataServicePrefix + "/Entity",
			},
			{
				Name:        "get-record",
				Description: "read a single record of an entity",
				Method:      http.MethodGet,
				Path:        dataServicePrefix + "/EntityService/{entity}/read/{id}",
				Args:        []string{"entity", "id"},
			},
			{
				Name:        "delete-record",
				Description: "delete a single record of an entity",
				Method:      http.MethodPost,
				Path:        dataServicePrefix + "/EntityService/{entity}/delete/{id}",
				Args:        []string{"entity", "id"},
			},
		},
		Health: func(*core.ConnectionConfig) *rest.Request {
			return &rest.Request{
				Method: http.MethodGet,
				Path:   dataServicePrefix + "/Entity",
			}
		},
	}
}

type dataServiceEntity struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
	Fields      []struct {
		Name          string `json:"name"`
		DisplayName   string `json:"displayName"`
		Description   string `json:"description"`
		IsRequired    bool   `json:"isRequired"`
		IsSystemField bool   `json:"isSystemField"`
		FieldDataType struct {
			Name string `json:"name"`
		} `json:"fieldDataType"`
	} `json:"fields"`
}

// discoverEntities turns every entity into a table.
func discoverEntities(ctx context.Context, c *rest.Client, _ *core.ConnectionConfig) (*Catalog, error) {
	resp, err := c.Do(ctx, &rest.Request{
		Op:     "list entities",
		Method: http.MethodGet,
		Path:   dataServicePrefix + "/Entity",
		Retry:  true,
	})
	if err != nil {
		return nil, err
	}

	var entities []dataServiceEntity
	if err := json.Unmarshal(resp.Body, &entities); err != nil {
		// some deployments wrap the list
		var wrapped struct {
			Value []dataServiceEntity `json:"value"`
		}
		if err2 := json.Unmarshal(resp.Body, &wrapped); err2 != nil {
			return nil, shapeError("list entities", resp, err)
		}
		entities = wrapped.Value
	}

	catalog := &Catalog{}
	for _, e := range entities {
		if e.Name == "" {
			continue
		}
		catalog.Tables = append(catalog.Tables, dataServiceTable(&e))
	}
	return catalog, nil
}

func dataServiceTable(e *dataServiceEntity) *Table {
	pushOps := []core.Operator{
		core.OpEqual, core.OpNotEqual,
		core.OpLess, core.OpLessEqual,
		core.OpGreater, core.OpGreaterEqual,
	}

	t := &Table{
		Name:        e.Name,
		Description: e.Description,
		IDField:     "Id",
		Pushable:    make(map[string][]core.Operator),
		Paging:      PagingOffset,
	}
	if t.Description == "" {
		t.Description = e.DisplayName
	}

	for _, f := range e.Fields {
		t.Columns = append(t.Columns, &Column{
			Name:        f.Name,
			Type:        f.FieldDataType.Name,
			Description: f.Description,
		})
		t.Pushable[f.Name] = pushOps
		if f.IsRequired && !f.IsSystemField {
			t.Required = append(t.Required, f.Name)
		}
	}

	entity := e.Name
	t.List = func(s *ListState) *rest.Request {
		body := map[string]any{
			"start": s.Offset,
			"limit": s.PageSize,
		}
		if len(s.Pushed) > 0 {
			filters := make([]map[string]any, len(s.Pushed))
			for i, p := range s.Pushed {
				filters[i] = map[string]any{
					"fieldName": p.Field,
					"operator":  string(p.Operator),
					"value":     fmtValue(p.Value),
					"typeName":  dataServiceFilterType,
				}
			}
			body["filterGroup"] = map[string]any{
				"logicalOperator": dataServiceAnd,
				"queryFilters":    filters,
			}
		}

		return &rest.Request{
			Op:         "query " + entity,
			Method:     http.MethodPost,
			Path:       dataServicePrefix + "/EntityService/{entity}/query_expansion",
			PathParams: withParam(s.Params, "entity", entity),
			Body:       body,
		}
	}
	t.Items = dataServiceItems
	t.Get = func(id string, params map[string]string) *rest.Request {
		params = withParam(params, "entity", entity)
		return &rest.Request{
			Op:         "read " + entity,
			Method:     http.MethodGet,
			Path:       dataServicePrefix + "/EntityService/{entity}/read/{id}",
			PathParams: withParam(params, "id", id),
		}
	}
	t.GetItem = func(resp *rest.Response) (map[string]any, error) {
		return objectAt(resp)
	}
	t.Create = func(row map[string]any, params map[string]string) *rest.Request {
		return &rest.Request{
			Op:         "insert " + entity,
			Method:     http.MethodPost,
			Path:       dataServicePrefix + "/EntityService/{entity}/insert",
			PathParams: withParam(params, "entity", entity),
			Body:       row,
		}
	}
	t.CreatedID = func(resp *rest.Response) string {
		obj, err := decodeObject(resp.Body)
		if err != nil {
			return ""
		}
		return createdID(obj, "Id", "id")
	}

	return t
}

// dataServiceItems reads rows from the jsonValue string or the value array.
func dataServiceItems(resp *rest.Response) (*Page, error) {
	var out struct {
		JSONValue        *string          `json:"jsonValue"`
		Value            []map[string]any `json:"value"`
		TotalRecordCount int              `json:"totalRecordCount"`
	}
	if err := resp.Decode(&out); err != nil {
		return nil, err
	}

	page := &Page{Items: out.Value, Total: out.TotalRecordCount}
	if out.JSONValue != nil && *out.JSONValue != "" {
		if err := json.Unmarshal([]byte(*out.JSONValue), &page.Items); err != nil {
			return nil, shapeError("decode jsonValue", resp, err)
		}
	}
	if page.Items == nil {
		page.Items = []map[string]any{}
	}

	return page, nil
}
