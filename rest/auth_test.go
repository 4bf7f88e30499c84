package rest_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/resttable/resttable/core"
	"github.com/resttable/resttable/rest"
)

func TestAuth_Headers(t *testing.T) {
	testCases := []struct {
		name     string
		auth     rest.Authenticator
		validate func(r *require.Assertions, req *http.Request)
	}{
		{
			name: "bearer",
			auth: rest.BearerAuth{Token: "t1"},
			validate: func(r *require.Assertions, req *http.Request) {
				r.Equal("Bearer t1", req.Header.Get("Authorization"))
			},
		},
		{
			name: "raw",
			auth: rest.RawTokenAuth{Token: "t2"},
			validate: func(r *require.Assertions, req *http.Request) {
				r.Equal("t2", req.Header.Get("Authorization"))
			},
		},
		{
			name: "basic",
			auth: rest.BasicAuth{Username: "u", Password: "p"},
			validate: func(r *require.Assertions, req *http.Request) {
				user, pass, ok := req.BasicAuth()
				r.True(ok)
				r.Equal("u", user)
				r.Equal("p", pass)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			r := require.New(t)

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				tc.validate(r, req)
			}))
			defer srv.Close()

			_, err := rest.NewClient(srv.URL, rest.WithAuth(tc.auth)).
				Do(context.Background(), &rest.Request{Method: http.MethodGet})
			r.NoError(err)
		})
	}
}

func newLoginServer(t *testing.T, logins *int) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/api/account/authenticate":
			*logins++
			var body map[string]string
			require.NoError(t, json.NewDecoder(req.Body).Decode(&body))
			if body["tenancyName"] != "test_tenant" ||
				body["usernameOrEmailAddress"] != "test_user" ||
				body["password"] != "test_password" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"Invalid credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"result":{"accessToken":"mock_token","expireInSeconds":3600}}`))
		default:
			if req.Header.Get("Authorization") != "Bearer mock_token" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"result":{"items":[]}}`))
		}
	}))
}

func TestLoginAuth(t *testing.T) {
	r := require.New(t)

	logins := 0
	srv := newLoginServer(t, &logins)
	defer srv.Close()

	c := rest.NewClient(srv.URL, rest.WithAuth(&rest.LoginAuth{
		Path:     "api/account/authenticate",
		Tenant:   "test_tenant",
		Username: "test_user",
		Password: "test_password",
	}))

	for i := 0; i < 3; i++ {
		_, err := c.Do(context.Background(), &rest.Request{Method: http.MethodGet, Path: "api/services/app/Context/GetContexts"})
		r.NoError(err)
	}
	// token is exchanged once per client
	r.Equal(1, logins)
}

func TestLoginAuth_Rejected(t *testing.T) {
	r := require.New(t)

	logins := 0
	srv := newLoginServer(t, &logins)
	defer srv.Close()

	c := rest.NewClient(srv.URL, rest.WithAuth(&rest.LoginAuth{
		Path:     "api/account/authenticate",
		Tenant:   "test_tenant",
		Username: "test_user",
		Password: "wrong",
	}))

	_, err := c.Do(context.Background(), &rest.Request{Method: http.MethodGet, Path: "anything"})
	r.ErrorIs(err, core.ErrAuthentication)
	r.Equal(http.StatusUnauthorized, core.StatusCode(err))
	r.Contains(string(core.Body(err)), "Invalid credentials")
}
