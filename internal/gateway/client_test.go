package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

type fakeTokens struct {
	mu          sync.Mutex
	token       string
	replaced    []string
	invalidated bool
}

func (f *fakeTokens) Token() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token
}

func (f *fakeTokens) ReplaceToken(token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	f.replaced = append(f.replaced, token)
	return nil
}

func (f *fakeTokens) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = true
	f.token = ""
}

func newTestClient(t *testing.T, srv *httptest.Server, tokens TokenSource) *Client {
	t.Helper()
	n := 0
	c, err := NewClient(Options{
		BaseURL: srv.URL,
		Tokens:  tokens,
		IDGen: func() string {
			n++
			return "idem-" + string(rune('a'+n-1))
		},
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestRefreshAndReplayOn401(t *testing.T) {
	t.Parallel()

	tokens := &fakeTokens{token: "stale"}
	var refreshCalls, assetCalls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			refreshCalls++
			json.NewEncoder(w).Encode(map[string]string{"token": "fresh"})
		case "/assets":
			assetCalls++
			if r.Header.Get("Authorization") != "Bearer fresh" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "token expired"})
				return
			}
			w.Write([]byte(`[{"ID":"a1","Name":"Crown"}]`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, tokens)
	assets, err := c.ListAssets(context.Background())
	if err != nil {
		t.Fatalf("ListAssets after refresh: %v", err)
	}
	if len(assets) != 1 || assets[0].ID != "a1" {
		t.Fatalf("unexpected assets: %v", assets)
	}
	if refreshCalls != 1 {
		t.Fatalf("refresh called %d times, want 1", refreshCalls)
	}
	if assetCalls != 2 {
		t.Fatalf("asset endpoint hit %d times, want original + one replay", assetCalls)
	}
	if len(tokens.replaced) != 1 || tokens.replaced[0] != "fresh" {
		t.Fatalf("token not replaced atomically: %v", tokens.replaced)
	}
}

func TestSecond401PropagatesWithoutLooping(t *testing.T) {
	t.Parallel()

	tokens := &fakeTokens{token: "stale"}
	var refreshCalls, assetCalls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			refreshCalls++
			json.NewEncoder(w).Encode(map[string]string{"token": "fresh"})
		case "/assets":
			assetCalls++
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "still no"})
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, tokens)
	_, err := c.ListAssets(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want unauthorized, got %v", err)
	}
	if refreshCalls != 1 {
		t.Fatalf("refresh called %d times, want exactly 1", refreshCalls)
	}
	if assetCalls != 2 {
		t.Fatalf("asset endpoint hit %d times, want 2 (no retry loop)", assetCalls)
	}
}

func TestRefreshFailureInvalidatesAndKeepsOriginalError(t *testing.T) {
	t.Parallel()

	tokens := &fakeTokens{token: "stale"}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "refresh cookie expired"})
		case "/assets":
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "token expired"})
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, tokens)
	_, err := c.ListAssets(context.Background())
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want unauthorized, got %v", err)
	}
	if got := ServerMessage(err); got != "token expired" {
		t.Fatalf("want the original request's error, got %q", got)
	}
	if !tokens.invalidated {
		t.Fatal("failed refresh must invalidate the token source")
	}
}

func TestBadCredentialsDoNotTriggerRefresh(t *testing.T) {
	t.Parallel()

	tokens := &fakeTokens{token: "stale-from-last-session"}
	var refreshCalls, loginCalls int

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/refresh":
			refreshCalls++
			json.NewEncoder(w).Encode(map[string]string{"token": "fresh"})
		case "/auth/login":
			loginCalls++
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "Invalid credentials"})
		}
	}))
	defer srv.Close()

	c := newTestClient(t, srv, tokens)
	_, err := c.Login(context.Background(), "alice", "wrong-pw", "Org1MSP")
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("want unauthorized, got %v", err)
	}
	if got := ServerMessage(err); got != "Invalid credentials" {
		t.Fatalf("want the login error, got %q", got)
	}
	if refreshCalls != 0 {
		t.Fatalf("refresh called %d times on a failed login, want 0", refreshCalls)
	}
	if loginCalls != 1 {
		t.Fatalf("login hit %d times, want no replay", loginCalls)
	}
}

func TestRegistrationDisabledMapsToSentinel(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
		json.NewEncoder(w).Encode(map[string]string{"error": "Self-service registration is disabled"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	err := c.Register(context.Background(), "alice", "pw", "a@example.org", "Org1MSP")
	if !errors.Is(err, ErrRegistrationDisabled) {
		t.Fatalf("want ErrRegistrationDisabled, got %v", err)
	}
	if got := ServerMessage(err); got != "Self-service registration is disabled" {
		t.Fatalf("server message lost: %q", got)
	}
}

func TestServerErrorMessageVerbatim(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Request-Id", "req-42")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]string{"error": "Provenance history is restricted to the owner, proposed owner, or administrators."})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	_, err := c.History(context.Background(), "art-1")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("want forbidden, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *APIError, got %T", err)
	}
	if apiErr.RequestID != "req-42" {
		t.Fatalf("request id not captured: %q", apiErr.RequestID)
	}
	if apiErr.Message == "" {
		t.Fatal("server message not captured")
	}
}

func TestIdempotencyKeyOnLedgerMutations(t *testing.T) {
	t.Parallel()

	keys := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keys[r.Method+" "+r.URL.Path] = r.Header.Get("Idempotency-Key")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv, nil)
	ctx := context.Background()
	if err := c.CreateAsset(ctx, CreateAssetRequest{ID: "art-1", Name: "Crown", View: "PUBLIC"}); err != nil {
		t.Fatalf("CreateAsset: %v", err)
	}
	if err := c.ProposeTransfer(ctx, "art-1", "bob"); err != nil {
		t.Fatalf("ProposeTransfer: %v", err)
	}
	if _, err := c.ListAssets(ctx); err != nil {
		t.Fatalf("ListAssets: %v", err)
	}

	if keys["POST /assets"] == "" {
		t.Fatal("create asset missing idempotency key")
	}
	if keys["POST /assets/art-1/transfer"] == "" {
		t.Fatal("propose transfer missing idempotency key")
	}
	if keys["POST /assets/art-1/transfer"] == keys["POST /assets"] {
		t.Fatal("idempotency keys must be unique per request")
	}
	if keys["GET /assets"] != "" {
		t.Fatal("reads must not send idempotency keys")
	}
}
