package adapters

import (
	"fmt"
	"net/url"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/resttable/resttable/core"
	"github.com/resttable/resttable/rest"
)

// OrganizationUnitHeader scopes requests to an orchestrator folder.
const OrganizationUnitHeader = "X-UIPATH-OrganizationUnitId"

var _ core.Adapter = (*restAdapter)(nil)

// restAdapter binds a backend definition to the core.Adapter interface.
type restAdapter struct {
	backend *Backend
	// clientOpts are appended to the options of every client.
	clientOpts []rest.Option
}

func newRestAdapter(b *Backend) *restAdapter {
	return &restAdapter{backend: b}
}

// Validate fills backend defaults into cfg and checks it. It never touches
// the network.
func (a *restAdapter) Validate(cfg *core.ConnectionConfig) error {
	if a.backend.Defaults != nil {
		a.backend.Defaults(cfg)
	}

	if err := cfg.Require(a.backend.Required...); err != nil {
		return err
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return core.Errorf(core.ErrConfiguration, "validate config", "invalid base_url %q", cfg.BaseURL)
	}

	mode, err := cfg.AuthMode()
	if err != nil {
		return err
	}
	if !slices.Contains(a.backend.AuthModes, mode) {
		return core.Errorf(core.ErrConfiguration, "validate config", "%s does not support %s auth", a.backend.Name, mode)
	}

	return nil
}

func (a *restAdapter) Connect(cfg *core.ConnectionConfig) (core.Driver, error) {
	if err := a.Validate(cfg); err != nil {
		return nil, err
	}

	mode, _ := cfg.AuthMode()

	log := logrus.StandardLogger().WithFields(logrus.Fields{
		"backend":    a.backend.Name,
		"connection": cfg.Name,
	})

	opts := []rest.Option{
		rest.WithAuth(a.backend.Auth(cfg, mode)),
		rest.WithTimeout(cfg.Timeout),
		rest.WithLogger(log),
		rest.WithHeader(OrganizationUnitHeader, cfg.OrganizationUnit),
		rest.WithPathParams(pathParams(cfg)),
	}
	client := rest.NewClient(cfg.BaseURL, append(opts, a.clientOpts...)...)

	return &restDriver{
		backend: a.backend,
		config:  cfg,
		client:  client,
		log:     log,
	}, nil
}

// pathParams are the connection defaults of path templates.
func pathParams(cfg *core.ConnectionConfig) map[string]string {
	params := make(map[string]string)
	for _, key := range []string{"account_id", "tenant_id", "schema_id", "connection_id", "connector_type", "service_name"} {
		if v := cfg.Get(key); v != "" {
			params[key] = v
		}
	}
	return params
}

// registerBackend registers the backend under its name and aliases.
func registerBackend(b *Backend, aliases ...string) {
	if err := register(newRestAdapter(b), append([]string{b.Name}, aliases...)...); err != nil {
		panic(fmt.Sprintf("register %s: %s", b.Name, err))
	}
}
