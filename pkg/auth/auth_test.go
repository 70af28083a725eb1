package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode"

	"golang.org/x/oauth2"

	"github.com/codeGROOVE-dev/move-alarm/pkg/appsettings"
)

type memStore struct {
	tok   *oauth2.Token
	saves int
}

func (m *memStore) Load(v any) (bool, error) {
	if m.tok == nil {
		return false, nil
	}
	b, err := json.Marshal(m.tok)
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, v)
}

func (m *memStore) Save(v any) error {
	tok, ok := v.(*oauth2.Token)
	if !ok {
		return errors.New("unexpected type")
	}
	cp := *tok
	m.tok = &cp
	m.saves++
	return nil
}

func (m *memStore) Remove() error {
	m.tok = nil
	return nil
}

// tokenServer answers every token request with a fresh access token and
// records the last form it received.
func tokenServer(t *testing.T, access string) (*httptest.Server, *atomic.Value) {
	t.Helper()
	var lastForm atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		lastForm.Store(r.PostForm)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck // test server
			"access_token":  access,
			"token_type":    "Bearer",
			"refresh_token": "refresh-2",
			"expires_in":    86400,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &lastForm
}

func testEndpoint(srv *httptest.Server) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   srv.URL + "/authorize/",
		TokenURL:  srv.URL + "/access_token/",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

func TestToken_NothingStored(t *testing.T) {
	p := NewProvider("id", "secret", &memStore{})
	_, err := p.Token(context.Background())
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("Token() error = %v, want ErrNoToken", err)
	}
}

func TestToken_ValidStoredToken(t *testing.T) {
	store := &memStore{tok: &oauth2.Token{AccessToken: "abc", Expiry: time.Now().Add(time.Hour)}}
	p := NewProvider("id", "secret", store)

	got, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != "abc" {
		t.Errorf("Token() = %q, want abc", got)
	}
	if store.saves != 0 {
		t.Errorf("unchanged token should not be re-saved, saves = %d", store.saves)
	}
}

func TestToken_RefreshesExpiredToken(t *testing.T) {
	srv, lastForm := tokenServer(t, "fresh")
	store := &memStore{tok: &oauth2.Token{
		AccessToken:  "stale",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(-time.Hour),
	}}
	p := NewProvider("id", "secret", store, WithEndpoint(testEndpoint(srv)), WithHTTPClient(srv.Client()))

	got, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != "fresh" {
		t.Errorf("Token() = %q, want fresh", got)
	}

	form, ok := lastForm.Load().(url.Values)
	if !ok {
		t.Fatal("token server was not called")
	}
	if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "refresh-1" {
		t.Errorf("refresh form = %v", form)
	}
	if form.Get("client_id") != "id" || form.Get("client_secret") != "secret" {
		t.Errorf("credentials should be sent in params, form = %v", form)
	}
	if store.tok == nil || store.tok.AccessToken != "fresh" {
		t.Errorf("refreshed token not persisted: %+v", store.tok)
	}
}

func TestToken_ExpiredWithoutRefreshToken(t *testing.T) {
	store := &memStore{tok: &oauth2.Token{AccessToken: "stale", Expiry: time.Now().Add(-time.Hour)}}
	p := NewProvider("id", "secret", store)

	_, err := p.Token(context.Background())
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("Token() error = %v, want ErrNoToken", err)
	}
}

func TestToken_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := NewProvider("id", "secret", &memStore{})
	if _, err := p.Token(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Token() error = %v, want context.Canceled", err)
	}
}

func TestExchange_PersistsThroughAppSettings(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv("APPDATA", t.TempDir())

	srv, lastForm := tokenServer(t, "granted")
	store := appsettings.NewManager("move-alarm-test", "token.json")
	p := NewProvider("id", "secret", store, WithEndpoint(testEndpoint(srv)), WithHTTPClient(srv.Client()))

	if err := p.Exchange(context.Background(), "the-code"); err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	form, ok := lastForm.Load().(url.Values)
	if !ok || form.Get("code") != "the-code" || form.Get("grant_type") != "authorization_code" {
		t.Errorf("exchange form = %v", form)
	}

	// A second provider over the same store sees the persisted token.
	again := NewProvider("id", "secret", store)
	got, err := again.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if got != "granted" {
		t.Errorf("Token() = %q, want granted", got)
	}

	if err := again.Logout(); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if _, err := NewProvider("id", "secret", store).Token(context.Background()); !errors.Is(err, ErrNoToken) {
		t.Errorf("Token() after Logout error = %v, want ErrNoToken", err)
	}
}

func TestAuthorizeParams(t *testing.T) {
	p := NewProvider("client-1", "secret", &memStore{})
	params := p.AuthorizeParams("xyz12345")

	want := map[string]string{"client_id": "client-1", "response_type": "code", "state": "xyz12345"}
	for k, v := range want {
		if params[k] != v {
			t.Errorf("params[%q] = %q, want %q", k, params[k], v)
		}
	}
	if !strings.HasPrefix(p.AuthorizeURL(), "https://freesound.org/apiv2/oauth2/authorize/") {
		t.Errorf("AuthorizeURL() = %q", p.AuthorizeURL())
	}
	u, err := url.Parse(p.AuthCodeURL("xyz12345"))
	if err != nil {
		t.Fatalf("AuthCodeURL() unparsable: %v", err)
	}
	if u.Query().Get("state") != "xyz12345" || u.Query().Get("response_type") != "code" {
		t.Errorf("AuthCodeURL() query = %v", u.Query())
	}
}

func TestNewState(t *testing.T) {
	seen := make(map[string]bool)
	for range 200 {
		s := NewState()
		if len(s) < 8 || len(s) > 12 {
			t.Fatalf("NewState() = %q, length %d outside 8-12", s, len(s))
		}
		for _, r := range s {
			if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
				t.Fatalf("NewState() = %q contains %q", s, r)
			}
		}
		seen[s] = true
	}
	if len(seen) < 190 {
		t.Errorf("NewState() produced only %d distinct values in 200 calls", len(seen))
	}
}
