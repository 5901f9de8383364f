package gateway

import (
	"context"
	"net/http"
	"net/url"

	"registry-console/internal/registry"
)

// AdminStats fetches the network overview counters.
func (c *Client) AdminStats(ctx context.Context) (registry.Stats, error) {
	var s registry.Stats
	err := c.doJSON(ctx, http.MethodGet, "/admin/stats", "/admin/stats", nil, &s, false)
	return s, err
}

// AdminIdentities lists every enrolled identity merged with its off-chain
// account record.
func (c *Client) AdminIdentities(ctx context.Context) ([]registry.Identity, error) {
	var out struct {
		Identities []registry.Identity `json:"identities"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/admin/users", "/admin/users", nil, &out, false); err != nil {
		return nil, err
	}
	return out.Identities, nil
}

// AdminAssets is the admin asset listing from the requested source.
type AdminAssets struct {
	Source string           `json:"source"`
	Note   string           `json:"note,omitempty"`
	Assets []registry.Asset `json:"assets"`
}

// AdminListAssets fetches the full asset collection from either the ledger
// ("blockchain") or the gateway's cache ("database").
func (c *Client) AdminListAssets(ctx context.Context, source string) (AdminAssets, error) {
	var out AdminAssets
	path := "/admin/assets?source=" + url.QueryEscape(source)
	err := c.doJSON(ctx, http.MethodGet, path, "/admin/assets", nil, &out, false)
	return out, err
}

// SyncResult reports a cache reconciliation run.
type SyncResult struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// Sync asks the gateway to reconcile its cache against the ledger.
func (c *Client) Sync(ctx context.Context) (SyncResult, error) {
	var out SyncResult
	err := c.doJSON(ctx, http.MethodPost, "/admin/sync", "/admin/sync", nil, &out, false)
	return out, err
}

// SetAssetStatus forces an asset's lifecycle status (freeze, unfreeze,
// delete). Admin only.
func (c *Client) SetAssetStatus(ctx context.Context, id, status string) error {
	req := struct {
		Status string `json:"status"`
	}{status}
	return c.doJSON(ctx, http.MethodPost, "/admin/assets/"+pathEscape(id)+"/status", "/admin/assets/:id/status", req, nil, false)
}

// SetIdentityStatus updates an identity's account status and role.
func (c *Client) SetIdentityStatus(ctx context.Context, username, status, role string) error {
	req := struct {
		Status string `json:"status"`
		Role   string `json:"role,omitempty"`
	}{status, role}
	return c.doJSON(ctx, http.MethodPost, "/admin/users/"+pathEscape(username)+"/status", "/admin/users/:username/status", req, nil, false)
}
