package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"registry-console/internal/gateway"
	"registry-console/internal/registry"
)

// ErrNotAuthenticated is returned by operations that need a signed-in session.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// State is the store's lifecycle position. The store starts in StateLoading
// until Restore has read (or failed to find) the state file.
type State int

const (
	StateLoading State = iota
	StateUnauthenticated
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Session is the signed-in identity. Role always comes from the gateway's
// login response, never from the token.
type Session struct {
	Username string `json:"username"`
	Org      string `json:"org"`
	Role     string `json:"role"`
	Token    string `json:"token"`
}

// IsAdmin reports whether the session may use the admin console.
func (s Session) IsAdmin() bool { return s.Role == registry.RoleAdmin }

// QualifiedID is the session's ledger identity ("Org1MSP::alice").
func (s Session) QualifiedID() string { return registry.QualifiedID(s.Org, s.Username) }

// Authenticator is the slice of the gateway client the store needs. Bound
// after construction because the client in turn reads tokens from the store.
type Authenticator interface {
	Login(ctx context.Context, username, password, org string) (gateway.Credentials, error)
	Logout(ctx context.Context) error
}

// Store holds the one operator session and persists it to a state file so a
// restart resumes signed in. It implements gateway.TokenSource.
type Store struct {
	mu       sync.Mutex
	path     string
	state    State
	sess     Session
	api      Authenticator
	watchers []func(State)
}

// NewStore creates a store persisting to path. It stays in StateLoading until
// Restore runs.
func NewStore(path string) *Store {
	return &Store{path: path, state: StateLoading}
}

// Bind attaches the authenticator. Must be called before Login or Logout.
func (st *Store) Bind(api Authenticator) {
	st.mu.Lock()
	st.api = api
	st.mu.Unlock()
}

// OnChange registers fn to run after every state transition. Callbacks run
// outside the store lock.
func (st *Store) OnChange(fn func(State)) {
	st.mu.Lock()
	st.watchers = append(st.watchers, fn)
	st.mu.Unlock()
}

// Restore loads the persisted session. A present token is trusted without a
// verification round-trip; the first failing call refreshes or clears it.
func (st *Store) Restore() error {
	st.mu.Lock()
	raw, err := os.ReadFile(st.path)
	if err != nil {
		st.state = StateUnauthenticated
		st.mu.Unlock()
		st.notify(StateUnauthenticated)
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("session: read state file: %w", err)
	}

	var sess Session
	if jsonErr := json.Unmarshal(raw, &sess); jsonErr != nil || sess.Token == "" {
		st.state = StateUnauthenticated
		st.mu.Unlock()
		st.notify(StateUnauthenticated)
		return nil
	}
	st.sess = sess
	st.state = StateAuthenticated
	st.mu.Unlock()
	st.notify(StateAuthenticated)
	return nil
}

// Login authenticates against the gateway and persists the session. On
// failure the store stays unauthenticated and the error goes back to the form.
func (st *Store) Login(ctx context.Context, username, password, org string) error {
	st.mu.Lock()
	api := st.api
	st.mu.Unlock()
	if api == nil {
		return errors.New("session: no authenticator bound")
	}

	creds, err := api.Login(ctx, username, password, org)
	if err != nil {
		return err
	}

	sess := Session{
		Username: creds.Username,
		Org:      creds.Org,
		Role:     creds.Role,
		Token:    creds.Token,
	}
	st.mu.Lock()
	st.sess = sess
	st.state = StateAuthenticated
	persistErr := st.persistLocked()
	st.mu.Unlock()
	st.notify(StateAuthenticated)
	return persistErr
}

// Logout revokes the session server-side on a best-effort basis, then clears
// memory and the state file unconditionally.
func (st *Store) Logout(ctx context.Context) error {
	st.mu.Lock()
	api := st.api
	st.mu.Unlock()

	var apiErr error
	if api != nil {
		apiErr = api.Logout(ctx)
	}

	st.mu.Lock()
	st.sess = Session{}
	st.state = StateUnauthenticated
	rmErr := os.Remove(st.path)
	st.mu.Unlock()
	st.notify(StateUnauthenticated)

	if rmErr != nil && !os.IsNotExist(rmErr) {
		return fmt.Errorf("session: clear state file: %w", rmErr)
	}
	return apiErr
}

// Current returns the session snapshot and state.
func (st *Store) Current() (Session, State) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sess, st.state
}

// Token implements gateway.TokenSource.
func (st *Store) Token() string {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sess.Token
}

// ReplaceToken swaps the access token in memory and on disk under one lock so
// a request queued behind a refresh never reads the stale token.
func (st *Store) ReplaceToken(token string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.state != StateAuthenticated {
		return ErrNotAuthenticated
	}
	st.sess.Token = token
	return st.persistLocked()
}

// Invalidate clears the session after a failed refresh. The next guarded page
// load redirects to the login form.
func (st *Store) Invalidate() {
	st.mu.Lock()
	st.sess = Session{}
	st.state = StateUnauthenticated
	os.Remove(st.path)
	st.mu.Unlock()
	st.notify(StateUnauthenticated)
}

// ExpiresAt reads the access token's exp claim without verifying the
// signature. Display only; claims never drive authorization.
func (st *Store) ExpiresAt() (time.Time, bool) {
	st.mu.Lock()
	tok := st.sess.Token
	st.mu.Unlock()
	if tok == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

func (st *Store) persistLocked() error {
	raw, err := json.MarshalIndent(st.sess, "", "  ")
	if err != nil {
		return fmt.Errorf("session: encode state: %w", err)
	}
	dir := filepath.Dir(st.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("session: create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("session: write state file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("session: write state file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(name)
		return fmt.Errorf("session: write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("session: write state file: %w", err)
	}
	if err := os.Rename(name, st.path); err != nil {
		os.Remove(name)
		return fmt.Errorf("session: write state file: %w", err)
	}
	return nil
}

func (st *Store) notify(s State) {
	st.mu.Lock()
	watchers := make([]func(State), len(st.watchers))
	copy(watchers, st.watchers)
	st.mu.Unlock()
	for _, fn := range watchers {
		fn(s)
	}
}
