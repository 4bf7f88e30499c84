package adapters

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/resttable/resttable/core"
	"github.com/resttable/resttable/rest"
)

// Register backend
func init() {
	registerBackend(integrationBackend(), "uipath_is")
}

const (
	integrationBaseURL       = "https://staging.uipath.com"
	integrationConnection    = "{account_id}/{tenant_id}/connections_/api/v1/Connections/{connection_id}"
	integrationElements      = "{account_id}/{tenant_id}/elements_/v3/element/instances/{instance}"
	integrationNextPageToken = "elements-next-page-token"
)

// integrationConnectors lists the tables each connector type exposes.
var integrationConnectors = map[string][]*integrationObject{
	"stripe": {
		{
			name:        "customers",
			description: "stripe customers",
			columns: []*Column{
				{Name: "id", Type: "string"},
				{Name: "name", Type: "string"},
				{Name: "email", Type: "string"},
				{Name: "phone", Type: "string"},
				{Name: "description", Type: "string"},
				{Name: "currency", Type: "string"},
				{Name: "balance", Type: "integer"},
				{Name: "delinquent", Type: "boolean"},
				{Name: "created", Type: "integer"},
				{Name: "address", Type: "json"},
				{Name: "city", Type: "string", Path: "address.city"},
				{Name: "country", Type: "string", Path: "address.country"},
			},
			required: []string{"email"},
		},
		{
			name:        "products",
			description: "stripe products",
			columns: []*Column{
				{Name: "id", Type: "string"},
				{Name: "name", Type: "string"},
				{Name: "description", Type: "string"},
				{Name: "active", Type: "boolean"},
				{Name: "default_price", Type: "string"},
				{Name: "url", Type: "string"},
				{Name: "created", Type: "integer"},
				{Name: "updated", Type: "integer"},
				{Name: "metadata", Type: "json"},
			},
			required: []string{"name"},
		},
	},
	"sap_c4c": {
		{
			name:        "LeadCollection",
			description: "sap cloud for customer leads",
			columns: []*Column{
				{Name: "ObjectID", Type: "string"},
				{Name: "ID", Type: "string"},
				{Name: "Name", Type: "string"},
				{Name: "StatusCode", Type: "string"},
				{Name: "QualificationLevelCode", Type: "string"},
				{Name: "OriginTypeCode", Type: "string"},
				{Name: "AccountPartyID", Type: "string"},
				{Name: "ContactFirstName", Type: "string"},
				{Name: "ContactLastName", Type: "string"},
				{Name: "CreationDateTime", Type: "datetime"},
				{Name: "LastChangeDateTime", Type: "datetime"},
			},
			idField:  "ObjectID",
			required: []string{"Name"},
		},
	},
}

type integrationObject struct {
	name        string
	description string
	columns     []*Column
	idField     string
	required    []string
}

func integrationBackend() *Backend {
	return &Backend{
		Name:        "integration_service",
		Description: "UiPath Integration Service connections",
		Defaults: func(cfg *core.ConnectionConfig) {
			if cfg.BaseURL == "" {
				cfg.BaseURL = integrationBaseURL
			}
			if cfg.Tenant == "" {
				cfg.Tenant = "DefaultTenant"
			}
		},
		Required:  []string{"base_url", "account_id", "tenant_id", "connection_id", "connector_type"},
		AuthModes: []core.AuthMode{core.AuthModeToken},
		Auth: func(cfg *core.ConnectionConfig, _ core.AuthMode) rest.Authenticator {
			return rest.RawTokenAuth{Token: cfg.Token}
		},
		Discover: discoverIntegration,
		Commands: []*Command{
			{
				Name:        "get-connection",
				Description: "show the connection details",
				Method:      http.MethodGet,
				Path:        integrationConnection,
			},
			{
				Name:        "list-objects",
				Description: "list the objects of the connected element",
				Method:      http.MethodGet,
				Path:        integrationElements + "/objects",
			},
		},
		Health: func(*core.ConnectionConfig) *rest.Request {
			return &rest.Request{
				Method: http.MethodGet,
				Path:   integrationConnection,
			}
		},
	}
}

// discoverIntegration resolves the element instance of the connection and
// exposes the tables of its connector type.
func discoverIntegration(ctx context.Context, c *rest.Client, cfg *core.ConnectionConfig) (*Catalog, error) {
	objects, ok := integrationConnectors[cfg.ConnectorType]
	if !ok {
		return nil, core.Errorf(core.ErrConfiguration, "discover", "unsupported connector type %q", cfg.ConnectorType)
	}

	resp, err := c.Do(ctx, &rest.Request{
		Op:     "get connection",
		Method: http.MethodGet,
		Path:   integrationConnection,
		Retry:  true,
	})
	if err != nil {
		return nil, err
	}

	conn, err := decodeObject(resp.Body)
	if err != nil {
		return nil, shapeError("get connection", resp, err)
	}
	instance, ok := lookup(conn, "elementInstanceId")
	if !ok || instance == nil {
		return nil, shapeError("get connection", resp, errUnexpectedShape)
	}

	catalog := &Catalog{
		Params: map[string]string{"instance": fmtValue(instance)},
	}
	for _, o := range objects {
		catalog.Tables = append(catalog.Tables, integrationTable(o))
	}
	return catalog, nil
}

func integrationTable(o *integrationObject) *Table {
	object := o.name

	return &Table{
		Name:        o.name,
		Description: o.description,
		Columns:     o.columns,
		IDField:     o.idField,
		Paging:      PagingToken,
		List: func(s *ListState) *rest.Request {
			query := url.Values{"pageSize": {strconv.Itoa(s.PageSize)}}
			if s.Token != "" {
				query.Set("nextPage", s.Token)
			}
			return &rest.Request{
				Op:         "list " + object,
				Method:     http.MethodGet,
				Path:       integrationElements + "/{object}",
				PathParams: withParam(s.Params, "object", object),
				Query:      query,
			}
		},
		Items: func(resp *rest.Response) (*Page, error) {
			items, err := itemsAt(resp, "data", "items")
			if err != nil {
				return nil, err
			}
			return &Page{
				Items: items,
				Next:  resp.Header.Get(integrationNextPageToken),
			}, nil
		},
		Get: func(id string, params map[string]string) *rest.Request {
			params = withParam(params, "object", object)
			return &rest.Request{
				Op:         "get " + object,
				Method:     http.MethodGet,
				Path:       integrationElements + "/{object}/{id}",
				PathParams: withParam(params, "id", id),
			}
		},
		GetItem: func(resp *rest.Response) (map[string]any, error) {
			return objectAt(resp, "data")
		},
		Create: func(row map[string]any, params map[string]string) *rest.Request {
			return &rest.Request{
				Op:         "create " + object,
				Method:     http.MethodPost,
				Path:       integrationElements + "/{object}",
				PathParams: withParam(params, "object", object),
				Body:       row,
			}
		},
		CreatedID: func(resp *rest.Response) string {
			obj, err := objectAt(resp, "data")
			if err != nil {
				return ""
			}
			return createdID(obj, "id", "ObjectID")
		},
		Required: o.required,
	}
}
