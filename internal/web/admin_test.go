package web

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"registry-console/internal/gateway"
	"registry-console/internal/registry"
)

func seedIdentities(n int) []registry.Identity {
	out := make([]registry.Identity, n)
	for i := range out {
		out[i] = registry.Identity{
			Name:   fmt.Sprintf("user-%d", i+1),
			Org:    "Org1MSP",
			Role:   registry.RoleUser,
			Status: registry.IdentityActive,
			Email:  fmt.Sprintf("user-%d@example.org", i+1),
		}
	}
	return out
}

func TestAdminUsersPaginatesByEight(t *testing.T) {
	api := newFakeAPI()
	api.idents = seedIdentities(17)
	srv, _ := testServer(t, api, "root", "Org1MSP", "admin")

	req := httptest.NewRequest(http.MethodGet, "/admin/users?page=2", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	body := rr.Body.String()
	if !strings.Contains(body, "Page 2 of 3") {
		t.Fatalf("pagination header missing: %s", body)
	}
	// Page 2 of 17 at size 8 holds items 9 through 16.
	for i := 9; i <= 16; i++ {
		if !strings.Contains(body, fmt.Sprintf(">user-%d<", i)) {
			t.Fatalf("page 2 missing user-%d", i)
		}
	}
	for _, absent := range []string{">user-8<", ">user-17<"} {
		if strings.Contains(body, absent) {
			t.Fatalf("page 2 leaked %s", absent)
		}
	}
}

func TestAdminUsersClampsOutOfRangePage(t *testing.T) {
	api := newFakeAPI()
	api.idents = seedIdentities(3)
	srv, _ := testServer(t, api, "root", "Org1MSP", "admin")

	req := httptest.NewRequest(http.MethodGet, "/admin/users?page=99", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if !strings.Contains(rr.Body.String(), "Page 1 of 1") {
		t.Fatal("out-of-range page not clamped")
	}
}

func TestAdminUserActionsMapToStatusAndRole(t *testing.T) {
	cases := []struct {
		action string
		want   string
	}{
		{"approve", "SetIdentityStatus carol ACTIVE "},
		{"ban", "SetIdentityStatus carol BANNED "},
		{"reactivate", "SetIdentityStatus carol ACTIVE "},
		{"promote", "SetIdentityStatus carol ACTIVE admin"},
		{"demote", "SetIdentityStatus carol ACTIVE user"},
	}
	for _, tc := range cases {
		t.Run(tc.action, func(t *testing.T) {
			api := newFakeAPI()
			srv, _ := testServer(t, api, "root", "Org1MSP", "admin")

			form := url.Values{"action": {tc.action}}
			req := httptest.NewRequest(http.MethodPost, "/admin/users/carol/status", strings.NewReader(form.Encode()))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, req)

			if rr.Code != http.StatusSeeOther {
				t.Fatalf("status = %d", rr.Code)
			}
			if api.called(tc.want) != 1 {
				t.Fatalf("gateway call %q not made; calls: %v", tc.want, api.calls)
			}
		})
	}
}

func TestAdminAssetsSourceSwitch(t *testing.T) {
	api := newFakeAPI()
	api.assets = seedAssets()
	srv, _ := testServer(t, api, "root", "Org1MSP", "admin")

	req := httptest.NewRequest(http.MethodGet, "/admin/assets?source=database", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if api.called("AdminListAssets database") != 1 {
		t.Fatalf("database source not requested; calls: %v", api.calls)
	}
	if !strings.Contains(rr.Body.String(), "switch to blockchain") {
		t.Fatal("source switch link missing")
	}

	// Unknown sources fall back to the ledger view.
	req = httptest.NewRequest(http.MethodGet, "/admin/assets?source=bogus", nil)
	rr = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)
	if api.called("AdminListAssets blockchain") != 1 {
		t.Fatalf("unknown source must map to blockchain; calls: %v", api.calls)
	}
}

func TestAdminAssetFreezeAndDelete(t *testing.T) {
	api := newFakeAPI()
	srv, _ := testServer(t, api, "root", "Org1MSP", "admin")

	for action, want := range map[string]string{
		"freeze":   "SetAssetStatus FROZEN",
		"unfreeze": "SetAssetStatus ACTIVE",
		"delete":   "SetAssetStatus DELETED",
	} {
		form := url.Values{"action": {action}}
		req := httptest.NewRequest(http.MethodPost, "/admin/assets/art-1/status", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusSeeOther {
			t.Fatalf("%s: status = %d", action, rr.Code)
		}
		if api.called(want) != 1 {
			t.Fatalf("%s: gateway call %q not made", action, want)
		}
	}
}

func TestAdminSyncRedirectsWithResult(t *testing.T) {
	api := newFakeAPI()
	api.sync = gateway.SyncResult{Message: "Synced 12 assets from blockchain", Count: 12}
	srv, _ := testServer(t, api, "root", "Org1MSP", "admin")

	req := httptest.NewRequest(http.MethodPost, "/admin/sync", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	loc := rr.Header().Get("Location")
	if !strings.Contains(loc, url.QueryEscape("Synced 12 assets")) {
		t.Fatalf("sync result lost: %q", loc)
	}
}

func TestAdminSyncFailureSurfacesError(t *testing.T) {
	api := newFakeAPI()
	api.errs["Sync"] = &gateway.APIError{StatusCode: http.StatusBadGateway, Message: "Ledger unavailable"}
	srv, _ := testServer(t, api, "root", "Org1MSP", "admin")

	req := httptest.NewRequest(http.MethodPost, "/admin/sync", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	loc := rr.Header().Get("Location")
	if !strings.Contains(loc, "err=") || !strings.Contains(loc, url.QueryEscape("Ledger unavailable")) {
		t.Fatalf("error message lost: %q", loc)
	}
}
