package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxRows  = 1000
	DefaultPageSize = 100
)

type AuthMode int

const (
	AuthModeNone AuthMode = iota
	AuthModeToken
	AuthModeBasic
)

func (m AuthMode) String() string {
	switch m {
	case AuthModeToken:
		return "token"
	case AuthModeBasic:
		return "basic"
	default:
		return "none"
	}
}

type ConnectionID string

// ConnectionConfig is the resolved configuration of a single registered connection.
type ConnectionConfig struct {
	ID   ConnectionID
	Name string
	// Type is the backend identifier.
	Type    string
	BaseURL string

	Account string
	Tenant  string

	Token    string
	Username string
	Password string

	Schema           string
	ConnectionID     string
	ConnectorType    string
	ServiceName      string
	OrganizationUnit string

	// AWS backends sign requests with static credentials.
	AccessKey    string
	SecretKey    string
	SessionToken string
	Region       string
	Cluster      string

	Timeout  time.Duration
	MaxRows  int
	PageSize int
}

// configKeys maps every recognized key (and its aliases) to a setter.
var configKeys = map[string]func(c *ConnectionConfig, v string) error{
	"id":   func(c *ConnectionConfig, v string) error { c.ID = ConnectionID(v); return nil },
	"name": func(c *ConnectionConfig, v string) error { c.Name = v; return nil },

	"type":   func(c *ConnectionConfig, v string) error { c.Type = v; return nil },
	"engine": func(c *ConnectionConfig, v string) error { c.Type = v; return nil },

	"base_url": func(c *ConnectionConfig, v string) error { c.BaseURL = v; return nil },
	"url":      func(c *ConnectionConfig, v string) error { c.BaseURL = v; return nil },
	"api_base": func(c *ConnectionConfig, v string) error { c.BaseURL = v; return nil },

	"account_id":   func(c *ConnectionConfig, v string) error { c.Account = v; return nil },
	"account":      func(c *ConnectionConfig, v string) error { c.Account = v; return nil },
	"organization": func(c *ConnectionConfig, v string) error { c.Account = v; return nil },

	"tenant_id": func(c *ConnectionConfig, v string) error { c.Tenant = v; return nil },
	"tenant":    func(c *ConnectionConfig, v string) error { c.Tenant = v; return nil },

	"bearer_token": func(c *ConnectionConfig, v string) error { c.Token = v; return nil },
	"token":        func(c *ConnectionConfig, v string) error { c.Token = v; return nil },
	"username":     func(c *ConnectionConfig, v string) error { c.Username = v; return nil },
	"password":     func(c *ConnectionConfig, v string) error { c.Password = v; return nil },

	"schema_id": func(c *ConnectionConfig, v string) error { c.Schema = v; return nil },
	"schema":    func(c *ConnectionConfig, v string) error { c.Schema = v; return nil },
	"index":     func(c *ConnectionConfig, v string) error { c.Schema = v; return nil },

	"connection_id":     func(c *ConnectionConfig, v string) error { c.ConnectionID = v; return nil },
	"connector_type":    func(c *ConnectionConfig, v string) error { c.ConnectorType = v; return nil },
	"service_name":      func(c *ConnectionConfig, v string) error { c.ServiceName = v; return nil },
	"organization_unit": func(c *ConnectionConfig, v string) error { c.OrganizationUnit = v; return nil },

	"endpoint_url":          func(c *ConnectionConfig, v string) error { c.BaseURL = v; return nil },
	"access_key":            func(c *ConnectionConfig, v string) error { c.AccessKey = v; return nil },
	"aws_access_key_id":     func(c *ConnectionConfig, v string) error { c.AccessKey = v; return nil },
	"secret_key":            func(c *ConnectionConfig, v string) error { c.SecretKey = v; return nil },
	"aws_secret_access_key": func(c *ConnectionConfig, v string) error { c.SecretKey = v; return nil },
	"session_token":         func(c *ConnectionConfig, v string) error { c.SessionToken = v; return nil },
	"region":                func(c *ConnectionConfig, v string) error { c.Region = v; return nil },
	"region_name":           func(c *ConnectionConfig, v string) error { c.Region = v; return nil },
	"cluster":               func(c *ConnectionConfig, v string) error { c.Cluster = v; return nil },

	"timeout": func(c *ConnectionConfig, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		c.Timeout = d
		return nil
	},
	"max_rows": func(c *ConnectionConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.MaxRows = n
		return nil
	},
	"page_size": func(c *ConnectionConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		c.PageSize = n
		return nil
	},
}

// ConfigFromMap builds a config from a string-keyed parameter map.
// Unrecognized keys are rejected.
func ConfigFromMap(params map[string]string) (*ConnectionConfig, error) {
	cfg := &ConnectionConfig{}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var unknown []string
	for _, k := range keys {
		set, ok := configKeys[strings.ToLower(k)]
		if !ok {
			unknown = append(unknown, k)
			continue
		}
		if err := set(cfg, params[k]); err != nil {
			return nil, Errorf(ErrConfiguration, "config from map", "invalid value for %q: %s", k, err)
		}
	}
	if len(unknown) > 0 {
		return nil, Errorf(ErrConfiguration, "config from map", "unrecognized parameters: %s", strings.Join(unknown, ", "))
	}

	return cfg, nil
}

// Expand returns a copy of the config with template-expanded string fields
// and defaults applied. A value that fails to expand is a configuration error.
func (c *ConnectionConfig) Expand() (*ConnectionConfig, error) {
	out := *c
	id := string(c.ID)
	for _, field := range []struct {
		key string
		ptr *string
	}{
		{"id", &id}, {"name", &out.Name}, {"type", &out.Type}, {"base_url", &out.BaseURL},
		{"account_id", &out.Account}, {"tenant_id", &out.Tenant}, {"token", &out.Token},
		{"username", &out.Username}, {"password", &out.Password}, {"schema_id", &out.Schema},
		{"connection_id", &out.ConnectionID}, {"connector_type", &out.ConnectorType},
		{"service_name", &out.ServiceName}, {"organization_unit", &out.OrganizationUnit},
		{"access_key", &out.AccessKey}, {"secret_key", &out.SecretKey}, {"session_token", &out.SessionToken},
		{"region", &out.Region}, {"cluster", &out.Cluster},
	} {
		v, err := expand(*field.ptr)
		if err != nil {
			// name the key, not the value
			return nil, Errorf(ErrConfiguration, "expand config", "expanding %q: %s", field.key, err)
		}
		*field.ptr = v
	}
	out.ID = ConnectionID(id)
	out.BaseURL = strings.TrimRight(out.BaseURL, "/")

	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.MaxRows <= 0 {
		out.MaxRows = DefaultMaxRows
	}
	if out.PageSize <= 0 {
		out.PageSize = DefaultPageSize
	}

	return &out, nil
}

// AuthMode returns the single complete auth mode or a configuration error.
func (c *ConnectionConfig) AuthMode() (AuthMode, error) {
	hasToken := c.Token != ""
	hasBasic := c.Username != "" || c.Password != ""

	switch {
	case hasToken && hasBasic:
		return AuthModeNone, Errorf(ErrConfiguration, "auth mode", "ambiguous auth: both token and username/password supplied")
	case hasToken:
		return AuthModeToken, nil
	case hasBasic:
		if c.Username == "" || c.Password == "" {
			return AuthModeNone, Errorf(ErrConfiguration, "auth mode", "incomplete auth: username and password are both required")
		}
		return AuthModeBasic, nil
	}

	return AuthModeNone, Errorf(ErrConfiguration, "auth mode", "no auth: token or username/password required")
}

// Require returns a configuration error listing all empty required fields.
func (c *ConnectionConfig) Require(fields ...string) error {
	var missing []string
	for _, f := range fields {
		if c.Get(f) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return Errorf(ErrConfiguration, "validate config", "missing required parameters: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Get returns a string field by its canonical key (used for path templates).
func (c *ConnectionConfig) Get(key string) string {
	switch key {
	case "type":
		return c.Type
	case "base_url":
		return c.BaseURL
	case "account_id":
		return c.Account
	case "tenant_id":
		return c.Tenant
	case "bearer_token":
		return c.Token
	case "username":
		return c.Username
	case "password":
		return c.Password
	case "schema_id":
		return c.Schema
	case "connection_id":
		return c.ConnectionID
	case "connector_type":
		return c.ConnectorType
	case "service_name":
		return c.ServiceName
	case "organization_unit":
		return c.OrganizationUnit
	case "access_key":
		return c.AccessKey
	case "secret_key":
		return c.SecretKey
	case "region":
		return c.Region
	case "cluster":
		return c.Cluster
	}
	return ""
}

// String never prints secrets.
func (c *ConnectionConfig) String() string {
	return fmt.Sprintf("%s(%s) %s", c.Name, c.Type, c.BaseURL)
}

func (c *ConnectionConfig) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Type    string `json:"type"`
		BaseURL string `json:"base_url"`
		Account string `json:"account_id,omitempty"`
		Tenant  string `json:"tenant_id,omitempty"`
		Schema  string `json:"schema_id,omitempty"`
		Region  string `json:"region,omitempty"`
		Cluster string `json:"cluster,omitempty"`
	}{
		ID:      string(c.ID),
		Name:    c.Name,
		Type:    c.Type,
		BaseURL: c.BaseURL,
		Account: c.Account,
		Tenant:  c.Tenant,
		Schema:  c.Schema,
		Region:  c.Region,
		Cluster: c.Cluster,
	})
}
