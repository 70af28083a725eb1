// Package auth obtains and refreshes freesound.org OAuth2 access tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// Endpoint is the freesound OAuth2 endpoint.
var Endpoint = oauth2.Endpoint{
	AuthURL:   "https://freesound.org/apiv2/oauth2/authorize/",
	TokenURL:  "https://freesound.org/apiv2/oauth2/access_token/",
	AuthStyle: oauth2.AuthStyleInParams,
}

// ErrNoToken means no usable access token could be produced: the user has
// never authorized, or the stored token expired and could not be refreshed.
var ErrNoToken = errors.New("no access token available")

// TokenStore persists the token between runs. *appsettings.Manager
// satisfies it.
type TokenStore interface {
	Load(v any) (bool, error)
	Save(v any) error
	Remove() error
}

// Provider hands out access tokens, refreshing and persisting them as
// needed. Safe for concurrent use.
type Provider struct {
	cfg     *oauth2.Config
	store   TokenStore
	httpCtx context.Context //nolint:containedctx // oauth2 keeps it for refreshes
	src     oauth2.TokenSource
	last    *oauth2.Token
	mu      sync.Mutex
}

// Option configures a Provider.
type Option func(*Provider)

// WithEndpoint overrides the freesound endpoint.
func WithEndpoint(ep oauth2.Endpoint) Option {
	return func(p *Provider) { p.cfg.Endpoint = ep }
}

// WithHTTPClient sets the client used for code exchange and refreshes.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpCtx = context.WithValue(context.Background(), oauth2.HTTPClient, c)
	}
}

// NewProvider returns a Provider for the given API application credentials.
func NewProvider(clientID, clientSecret string, store TokenStore, opts ...Option) *Provider {
	p := &Provider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     Endpoint,
		},
		store:   store,
		httpCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AuthorizeParams returns the query parameters for the authorize page.
func (p *Provider) AuthorizeParams(state string) map[string]string {
	return map[string]string{
		"client_id":     p.cfg.ClientID,
		"response_type": "code",
		"state":         state,
	}
}

// AuthorizeURL returns the page the user must visit to grant access.
func (p *Provider) AuthorizeURL() string {
	return p.cfg.Endpoint.AuthURL
}

// AuthCodeURL returns the full authorize URL for state.
func (p *Provider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token and persists it.
func (p *Provider) Exchange(ctx context.Context, code string) error {
	if client, ok := p.httpCtx.Value(oauth2.HTTPClient).(*http.Client); ok {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	}
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.store.Save(tok); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	p.last = tok
	p.src = p.cfg.TokenSource(p.httpCtx, tok)
	slog.Info("[AUTH] Authorization stored", "expiry", tok.Expiry)
	return nil
}

// Token returns a valid access token, refreshing it if it has expired.
// It fails with ErrNoToken when no token can be produced.
func (p *Provider) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.src == nil {
		var stored oauth2.Token
		found, err := p.store.Load(&stored)
		if err != nil {
			return "", fmt.Errorf("load token: %w", err)
		}
		if !found || (stored.AccessToken == "" && stored.RefreshToken == "") {
			return "", ErrNoToken
		}
		p.last = &stored
		p.src = p.cfg.TokenSource(p.httpCtx, &stored)
	}

	tok, err := p.src.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoToken, err)
	}

	if p.last == nil || tok.AccessToken != p.last.AccessToken {
		slog.Debug("[AUTH] Access token refreshed", "expiry", tok.Expiry)
		if err := p.store.Save(tok); err != nil {
			slog.Warn("[AUTH] Failed to persist refreshed token", "error", err)
		}
		p.last = tok
	}
	return tok.AccessToken, nil
}

// Logout forgets the stored token.
func (p *Provider) Logout() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.src = nil
	p.last = nil
	return p.store.Remove()
}

const stateChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewState returns a random 8-12 character alphanumeric OAuth state value.
func NewState() string {
	n := 8 + rand.IntN(5) //nolint:gosec // state only needs to be unguessable per attempt
	b := make([]byte, n)
	for i := range b {
		b[i] = stateChars[rand.IntN(len(stateChars))] //nolint:gosec // see above
	}
	return string(b)
}
