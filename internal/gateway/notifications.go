package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"registry-console/internal/registry"
)

// Notifications fetches the signed-in identity's notifications, newest first.
func (c *Client) Notifications(ctx context.Context) ([]registry.Notification, error) {
	var out []registry.Notification
	if err := c.doJSON(ctx, http.MethodGet, "/notifications", "/notifications", nil, &out, false); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkNotificationRead flips one notification's read flag. Callers treat
// failures as best-effort.
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.doJSON(ctx, http.MethodPost, "/notifications/"+itoa(id)+"/read", "/notifications/:id/read", nil, nil, false)
}

// UploadResult is the content-addressed location of an uploaded image.
type UploadResult struct {
	CID string `json:"cid"`
	URL string `json:"url"`
}

// UploadImage streams a file to the gateway's IPFS endpoint. The multipart
// body is buffered up front so a refresh-and-replay resends identical bytes.
func (c *Client) UploadImage(ctx context.Context, filename string, r io.Reader) (UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("gateway: build upload: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return UploadResult{}, fmt.Errorf("gateway: buffer upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("gateway: finish upload: %w", err)
	}

	var out UploadResult
	err = c.roundTrip(ctx, http.MethodPost, "/api/ipfs/upload", "/api/ipfs/upload", mw.FormDataContentType(), buf.Bytes(), &out, false)
	if err != nil {
		return UploadResult{}, err
	}
	return out, nil
}
