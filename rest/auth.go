package rest

import (
	"context"
	"errors"
	"net/http"

	"github.com/resttable/resttable/core"
)

// Authenticator decorates outgoing requests with credentials.
type Authenticator interface {
	// Prepare runs before every request with the client lock held.
	Prepare(ctx context.Context, c *Client) error
	Apply(req *http.Request)
}

var (
	_ Authenticator = NoAuth{}
	_ Authenticator = BearerAuth{}
	_ Authenticator = RawTokenAuth{}
	_ Authenticator = BasicAuth{}
	_ Authenticator = (*LoginAuth)(nil)
)

type NoAuth struct{}

func (NoAuth) Prepare(context.Context, *Client) error { return nil }
func (NoAuth) Apply(*http.Request)                    {}

// BearerAuth sends "Authorization: Bearer <token>".
type BearerAuth struct {
	Token string
}

func (BearerAuth) Prepare(context.Context, *Client) error { return nil }

func (a BearerAuth) Apply(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+a.Token)
}

// RawTokenAuth sends the token as is in the Authorization header.
type RawTokenAuth struct {
	Token string
}

func (RawTokenAuth) Prepare(context.Context, *Client) error { return nil }

func (a RawTokenAuth) Apply(req *http.Request) {
	req.Header.Set("Authorization", a.Token)
}

type BasicAuth struct {
	Username string
	Password string
}

func (BasicAuth) Prepare(context.Context, *Client) error { return nil }

func (a BasicAuth) Apply(req *http.Request) {
	req.SetBasicAuth(a.Username, a.Password)
}

// LoginAuth trades username and password for an access token on the first
// request and sends it as a bearer token afterwards. The token is never
// refreshed: an expired token surfaces as an authentication error.
type LoginAuth struct {
	Path     string
	Tenant   string
	Username string
	Password string

	token string
}

func (a *LoginAuth) Prepare(ctx context.Context, c *Client) error {
	if a.token != "" {
		return nil
	}

	resp, err := c.do(ctx, &Request{
		Op:     "login",
		Method: http.MethodPost,
		Path:   a.Path,
		Body: map[string]string{
			"tenancyName":            a.Tenant,
			"usernameOrEmailAddress": a.Username,
			"password":               a.Password,
		},
	}, false)
	if err != nil {
		// any rejected login is an auth problem
		var e *core.Error
		if errors.As(err, &e) && e.StatusCode >= 400 && e.StatusCode < 500 {
			e.Kind = core.ErrAuthentication
		}
		return err
	}

	var out struct {
		Result struct {
			AccessToken string `json:"accessToken"`
		} `json:"result"`
	}
	if err := resp.Decode(&out); err != nil {
		return err
	}
	if out.Result.AccessToken == "" {
		return &core.Error{
			Kind:       core.ErrAuthentication,
			Op:         "login",
			StatusCode: resp.StatusCode,
			Body:       resp.Body,
			Err:        errors.New("no access token in response"),
		}
	}

	a.token = out.Result.AccessToken
	c.log.Debug("login exchange succeeded")

	return nil
}

func (a *LoginAuth) Apply(req *http.Request) {
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
}
