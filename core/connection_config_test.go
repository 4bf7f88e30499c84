package core_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/resttable/resttable/core"
)

func TestConfigFromMap(t *testing.T) {
	r := require.New(t)

	cfg, err := core.ConfigFromMap(map[string]string{
		"engine":       "ecs",
		"api_base":     "https://cloud.example.com/",
		"organization": "acme",
		"tenant":       "default",
		"token":        "secret",
		"index":        "idx-1",
		"timeout":      "5s",
		"max_rows":     "50",
	})
	r.NoError(err)

	r.Equal("ecs", cfg.Type)
	r.Equal("acme", cfg.Account)
	r.Equal("default", cfg.Tenant)
	r.Equal("secret", cfg.Token)
	r.Equal("idx-1", cfg.Schema)
	r.Equal(5*time.Second, cfg.Timeout)
	r.Equal(50, cfg.MaxRows)

	expanded, err := cfg.Expand()
	r.NoError(err)
	r.Equal("https://cloud.example.com", expanded.BaseURL)
	r.Equal(core.DefaultPageSize, expanded.PageSize)
	r.Equal(50, expanded.MaxRows)
}

func TestConfigFromMap_Errors(t *testing.T) {
	r := require.New(t)

	_, err := core.ConfigFromMap(map[string]string{
		"type":     "ecs",
		"zeta":     "1",
		"alpha":    "2",
		"base_url": "https://x",
	})
	r.ErrorIs(err, core.ErrConfiguration)
	r.Contains(err.Error(), "alpha, zeta")

	_, err = core.ConfigFromMap(map[string]string{"timeout": "soon"})
	r.ErrorIs(err, core.ErrConfiguration)

	_, err = core.ConfigFromMap(map[string]string{"page_size": "many"})
	r.ErrorIs(err, core.ErrConfiguration)
}

func TestConnectionConfig_Expand(t *testing.T) {
	r := require.New(t)

	t.Setenv("RESTTABLE_TEST_TOKEN", "from-env")

	cfg := &core.ConnectionConfig{
		Token:   "{{ env `RESTTABLE_TEST_TOKEN` }}",
		BaseURL: "https://api.example.com//",
	}
	expanded, err := cfg.Expand()
	r.NoError(err)

	r.Equal("from-env", expanded.Token)
	r.Equal("https://api.example.com", expanded.BaseURL)
	r.Equal(core.DefaultTimeout, expanded.Timeout)
	r.Equal(core.DefaultMaxRows, expanded.MaxRows)

	// original stays untouched
	r.Equal("{{ env `RESTTABLE_TEST_TOKEN` }}", cfg.Token)
}

func TestConnectionConfig_AuthMode(t *testing.T) {
	testCases := []struct {
		name     string
		cfg      *core.ConnectionConfig
		expected core.AuthMode
		err      bool
	}{
		{name: "token", cfg: &core.ConnectionConfig{Token: "t"}, expected: core.AuthModeToken},
		{name: "basic", cfg: &core.ConnectionConfig{Username: "u", Password: "p"}, expected: core.AuthModeBasic},
		{name: "both", cfg: &core.ConnectionConfig{Token: "t", Username: "u", Password: "p"}, err: true},
		{name: "username only", cfg: &core.ConnectionConfig{Username: "u"}, err: true},
		{name: "password only", cfg: &core.ConnectionConfig{Password: "p"}, err: true},
		{name: "none", cfg: &core.ConnectionConfig{}, err: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := require.New(t)

			mode, err := tc.cfg.AuthMode()
			if tc.err {
				r.ErrorIs(err, core.ErrConfiguration)
				return
			}
			r.NoError(err)
			r.Equal(tc.expected, mode)
		})
	}
}

func TestConnectionConfig_Require(t *testing.T) {
	r := require.New(t)

	cfg := &core.ConnectionConfig{BaseURL: "https://x", Account: "acme"}
	r.NoError(cfg.Require("base_url", "account_id"))

	err := cfg.Require("base_url", "tenant_id", "schema_id")
	r.ErrorIs(err, core.ErrConfiguration)
	r.Contains(err.Error(), "tenant_id, schema_id")
}

func TestConnectionConfig_NoSecretsLeak(t *testing.T) {
	r := require.New(t)

	cfg := &core.ConnectionConfig{
		Name:      "prod",
		Type:      "ecs",
		BaseURL:   "https://x",
		Token:     "super-secret",
		Password:  "hunter2",
		SecretKey: "aws-secret",
		Region:    "eu-west-1",
	}

	b, err := json.Marshal(cfg)
	r.NoError(err)
	r.NotContains(string(b), "super-secret")
	r.NotContains(string(b), "hunter2")
	r.NotContains(string(b), "aws-secret")
	r.Contains(string(b), "eu-west-1")
	r.NotContains(cfg.String(), "super-secret")
}
