// Package auth provides the two reference credential-bearing HTTP clients
// a vendor subclass would inject into the provider façade (§1: "the
// per-vendor subclass that supplies a base URL and injects authentication
// headers (e.g. Basic, Bearer)" is an external collaborator; this package
// is the pair of concrete implementations of that seam used by tests and
// examples).
package auth

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
)

// Basic wraps an *http.Client, adding HTTP Basic authentication to every
// request.
type Basic struct {
	Username string
	Password string
	Client   *http.Client
}

// NewBasic builds a Basic doer over http.DefaultClient.
func NewBasic(username, password string) *Basic {
	return &Basic{Username: username, Password: password, Client: http.DefaultClient}
}

// Do implements rest.Doer.
func (b *Basic) Do(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(b.Username, b.Password)
	client := b.Client
	if client == nil {
		client = http.DefaultClient
	}
	return client.Do(req)
}

// Bearer wraps an oauth2.TokenSource, adding an "Authorization: Bearer
// <token>" header to every request — the reference implementation for
// vendors (e.g. a Sharepoint or OIDC-fronted Nextcloud deployment) that
// authenticate with OAuth2 rather than a static username/password.
type Bearer struct {
	client *http.Client
}

// NewBearer builds a Bearer doer from a static token. Use NewBearerSource
// for a token source that can refresh itself.
func NewBearer(ctx context.Context, token string) *Bearer {
	return NewBearerSource(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
}

// NewBearerSource builds a Bearer doer from an arbitrary oauth2.TokenSource.
func NewBearerSource(ctx context.Context, source oauth2.TokenSource) *Bearer {
	return &Bearer{client: oauth2.NewClient(ctx, source)}
}

// Do implements rest.Doer.
func (b *Bearer) Do(req *http.Request) (*http.Response, error) {
	return b.client.Do(req)
}
