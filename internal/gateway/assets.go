package gateway

import (
	"context"
	"net/http"

	"registry-console/internal/registry"
)

// ListAssets fetches every asset visible to the signed-in identity. The
// gateway already scopes the collection; local filters only narrow it.
func (c *Client) ListAssets(ctx context.Context) ([]registry.Asset, error) {
	var assets []registry.Asset
	if err := c.doJSON(ctx, http.MethodGet, "/assets", "/assets", nil, &assets, false); err != nil {
		return nil, err
	}
	return assets, nil
}

// GetAsset fetches one asset record through the gateway's cached view.
func (c *Client) GetAsset(ctx context.Context, id string) (registry.Asset, error) {
	var a registry.Asset
	err := c.doJSON(ctx, http.MethodGet, "/assets/"+pathEscape(id), "/assets/:id", nil, &a, false)
	return a, err
}

// GetAssetFromLedger reads the asset straight from the ledger, bypassing the
// gateway cache. Used by the verification view on the detail page.
func (c *Client) GetAssetFromLedger(ctx context.Context, id string) (registry.Asset, error) {
	var a registry.Asset
	err := c.doJSON(ctx, http.MethodGet, "/assets/"+pathEscape(id)+"/blockchain", "/assets/:id/blockchain", nil, &a, false)
	return a, err
}

// CreateAssetRequest is the create-asset submission. Description marshals
// under "desc", matching the gateway's contract.
type CreateAssetRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"desc"`
	ImageURL    string `json:"image_url,omitempty"`
	ImageHash   string `json:"image_hash,omitempty"`
	View        string `json:"view"`
	FileName    string `json:"file_name,omitempty"`
	FileSize    int64  `json:"file_size,omitempty"`
	FileHash    string `json:"file_hash,omitempty"`
	IpfsCID     string `json:"ipfs_cid,omitempty"`
	StoragePath string `json:"storage_path,omitempty"`
	StorageType string `json:"storage_type,omitempty"`
}

// CreateAsset submits a new asset. Creates a ledger transaction, so the
// request carries an idempotency key.
func (c *Client) CreateAsset(ctx context.Context, req CreateAssetRequest) error {
	return c.doJSON(ctx, http.MethodPost, "/assets", "/assets", req, nil, true)
}

// DeleteAsset soft-deletes the asset on the ledger.
func (c *Client) DeleteAsset(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, "/assets/"+pathEscape(id), "/assets/:id", nil, nil, false)
}

// ProposeTransfer offers the asset to another user. The gateway resolves the
// bare username to a qualified identity and moves the asset to
// PENDING_TRANSFER. Idempotent by key since it submits a transaction.
func (c *Client) ProposeTransfer(ctx context.Context, id, targetUser string) error {
	req := struct {
		TargetUser string `json:"target_user"`
	}{targetUser}
	return c.doJSON(ctx, http.MethodPost, "/assets/"+pathEscape(id)+"/transfer", "/assets/:id/transfer", req, nil, true)
}

// AcceptTransfer completes a transfer proposed to the signed-in identity.
func (c *Client) AcceptTransfer(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodPost, "/assets/"+pathEscape(id)+"/accept", "/assets/:id/accept", nil, nil, true)
}

// SetAssetView toggles the asset between PUBLIC and PRIVATE.
func (c *Client) SetAssetView(ctx context.Context, id, view string) error {
	req := struct {
		View string `json:"view"`
	}{view}
	return c.doJSON(ctx, http.MethodPost, "/assets/"+pathEscape(id)+"/view", "/assets/:id/view", req, nil, false)
}

// History fetches the asset's provenance trail, newest first as the ledger
// returns it.
func (c *Client) History(ctx context.Context, id string) ([]registry.HistoryRecord, error) {
	var records []registry.HistoryRecord
	err := c.doJSON(ctx, http.MethodGet, "/assets/"+pathEscape(id)+"/history", "/assets/:id/history", nil, &records, false)
	if err != nil {
		return nil, err
	}
	return records, nil
}
