package gateway

import (
	"context"
	"net/http"
)

// Credentials is the gateway's login response. Role and status come only from
// here; the console never derives them from the token.
type Credentials struct {
	Username string `json:"username"`
	Org      string `json:"org"`
	Role     string `json:"role"`
	Status   string `json:"status"`
	Token    string `json:"token"`
}

// Login exchanges a password for an access token. The refresh cookie set by
// the gateway lands in the client's jar.
func (c *Client) Login(ctx context.Context, username, password, org string) (Credentials, error) {
	req := struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Org      string `json:"org"`
	}{username, password, org}
	var creds Credentials
	if err := c.doJSON(ctx, http.MethodPost, "/auth/login", "/auth/login", req, &creds, false); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

// Register enrolls a new identity. Deployments that disable self-service
// enrollment answer 501, surfaced as ErrRegistrationDisabled.
func (c *Client) Register(ctx context.Context, username, password, email, org string) error {
	req := struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
		Org      string `json:"org"`
	}{username, password, email, org}
	return c.doJSON(ctx, http.MethodPost, "/auth/register", "/auth/register", req, nil, false)
}

// Logout revokes the refresh cookie server-side. Callers treat failures as
// best-effort and clear local state regardless.
func (c *Client) Logout(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodPost, "/auth/logout", "/auth/logout", nil, nil, false)
}

// DeleteAccount deactivates the signed-in identity. The gateway refuses while
// the identity still owns active artifacts; the server message explains.
func (c *Client) DeleteAccount(ctx context.Context) error {
	return c.doJSON(ctx, http.MethodDelete, "/auth/me", "/auth/me", nil, nil, false)
}
