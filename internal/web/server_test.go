package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"registry-console/internal/gateway"
	"registry-console/internal/notify"
	"registry-console/internal/registry"
	"registry-console/internal/session"
	"registry-console/internal/stream"
)

// fakeAPI implements API from canned data and records every call.
type fakeAPI struct {
	mu      sync.Mutex
	calls   []string
	errs    map[string]error
	assets  []registry.Asset
	history map[string][]registry.HistoryRecord
	stats   registry.Stats
	idents  []registry.Identity
	notifs  []registry.Notification
	sync    gateway.SyncResult
	upload  gateway.UploadResult
	created []gateway.CreateAssetRequest
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		errs:    map[string]error{},
		history: map[string][]registry.HistoryRecord{},
	}
}

func (f *fakeAPI) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.errs[call]
}

func (f *fakeAPI) called(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeAPI) ListAssets(ctx context.Context) ([]registry.Asset, error) {
	if err := f.record("ListAssets"); err != nil {
		return nil, err
	}
	return f.assets, nil
}

func (f *fakeAPI) GetAsset(ctx context.Context, id string) (registry.Asset, error) {
	if err := f.record("GetAsset"); err != nil {
		return registry.Asset{}, err
	}
	for _, a := range f.assets {
		if a.ID == id {
			return a, nil
		}
	}
	return registry.Asset{}, &gateway.APIError{StatusCode: http.StatusNotFound, Message: "Asset not found"}
}

func (f *fakeAPI) GetAssetFromLedger(ctx context.Context, id string) (registry.Asset, error) {
	if err := f.record("GetAssetFromLedger"); err != nil {
		return registry.Asset{}, err
	}
	return f.GetAsset(ctx, id)
}

func (f *fakeAPI) CreateAsset(ctx context.Context, req gateway.CreateAssetRequest) error {
	f.mu.Lock()
	f.created = append(f.created, req)
	f.mu.Unlock()
	return f.record("CreateAsset")
}

func (f *fakeAPI) DeleteAsset(ctx context.Context, id string) error { return f.record("DeleteAsset") }

func (f *fakeAPI) ProposeTransfer(ctx context.Context, id, targetUser string) error {
	return f.record("ProposeTransfer")
}

func (f *fakeAPI) AcceptTransfer(ctx context.Context, id string) error {
	return f.record("AcceptTransfer")
}

func (f *fakeAPI) SetAssetView(ctx context.Context, id, view string) error {
	return f.record("SetAssetView " + view)
}

func (f *fakeAPI) History(ctx context.Context, id string) ([]registry.HistoryRecord, error) {
	if err := f.record("History"); err != nil {
		return nil, err
	}
	return f.history[id], nil
}

func (f *fakeAPI) Register(ctx context.Context, username, password, email, org string) error {
	return f.record("Register")
}

func (f *fakeAPI) DeleteAccount(ctx context.Context) error { return f.record("DeleteAccount") }

func (f *fakeAPI) UploadImage(ctx context.Context, filename string, r io.Reader) (gateway.UploadResult, error) {
	if err := f.record("UploadImage"); err != nil {
		return gateway.UploadResult{}, err
	}
	return f.upload, nil
}

func (f *fakeAPI) AdminStats(ctx context.Context) (registry.Stats, error) {
	if err := f.record("AdminStats"); err != nil {
		return registry.Stats{}, err
	}
	return f.stats, nil
}

func (f *fakeAPI) AdminIdentities(ctx context.Context) ([]registry.Identity, error) {
	if err := f.record("AdminIdentities"); err != nil {
		return nil, err
	}
	return f.idents, nil
}

func (f *fakeAPI) AdminListAssets(ctx context.Context, source string) (gateway.AdminAssets, error) {
	if err := f.record("AdminListAssets " + source); err != nil {
		return gateway.AdminAssets{}, err
	}
	return gateway.AdminAssets{Source: source, Assets: f.assets}, nil
}

func (f *fakeAPI) Sync(ctx context.Context) (gateway.SyncResult, error) {
	if err := f.record("Sync"); err != nil {
		return gateway.SyncResult{}, err
	}
	return f.sync, nil
}

func (f *fakeAPI) SetAssetStatus(ctx context.Context, id, status string) error {
	return f.record("SetAssetStatus " + status)
}

func (f *fakeAPI) SetIdentityStatus(ctx context.Context, username, status, role string) error {
	return f.record("SetIdentityStatus " + username + " " + status + " " + role)
}

type fakeNotifier struct{ list []registry.Notification }

func (f *fakeNotifier) Notifications(ctx context.Context) ([]registry.Notification, error) {
	return f.list, nil
}

func (f *fakeNotifier) MarkNotificationRead(ctx context.Context, id int64) error { return nil }

// testServer builds a Server around the fake API with a session persisted as
// the given role ("" means signed out, store restored empty).
func testServer(t *testing.T, api *fakeAPI, username, org, role string) (*Server, *session.Store) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "session.json")
	if username != "" {
		raw, _ := json.Marshal(session.Session{
			Username: username, Org: org, Role: role, Token: "test-token",
		})
		if err := os.WriteFile(path, raw, 0o600); err != nil {
			t.Fatal(err)
		}
	}

	store := session.NewStore(path)
	if err := store.Restore(); err != nil {
		t.Fatal(err)
	}

	st := stream.New()
	poller := notify.NewPoller(&fakeNotifier{list: api.notifs}, st, time.Hour)
	srv, err := NewServer(store, api, poller, st)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	if len(api.notifs) > 0 {
		poller.Start()
		t.Cleanup(poller.Stop)
		deadline := time.Now().Add(2 * time.Second)
		for {
			if list, _ := poller.Snapshot(); len(list) > 0 {
				break
			}
			if time.Now().After(deadline) {
				t.Fatal("poller never fetched the seeded notifications")
			}
			time.Sleep(5 * time.Millisecond)
		}
	}
	return srv, store
}
