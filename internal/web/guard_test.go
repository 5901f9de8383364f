package web

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"registry-console/internal/notify"
	"registry-console/internal/session"
	"registry-console/internal/stream"
)

func TestGuardRedirectsToLoginPreservingLocation(t *testing.T) {
	srv, _ := testServer(t, newFakeAPI(), "", "", "")
	h := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/assets/art-1?verify=1", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rr.Code)
	}
	loc := rr.Header().Get("Location")
	if !strings.HasPrefix(loc, "/login?next=") {
		t.Fatalf("Location = %q", loc)
	}
	if !strings.Contains(loc, "%2Fassets%2Fart-1") {
		t.Fatalf("attempted location not preserved: %q", loc)
	}
}

func TestGuardRendersPlaceholderWhileLoading(t *testing.T) {
	store := session.NewStore(filepath.Join(t.TempDir(), "session.json"))
	st := stream.New()
	poller := notify.NewPoller(&fakeNotifier{}, st, time.Hour)
	srv, err := NewServer(store, newFakeAPI(), poller, st)
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status while loading = %d, want 200 placeholder", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "Restoring your session") {
		t.Fatalf("expected loading placeholder, got: %s", rr.Body.String())
	}
}

func TestGuardAllowsAuthenticatedSession(t *testing.T) {
	srv, _ := testServer(t, newFakeAPI(), "alice", "Org1MSP", "user")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}

func TestAdminGuardBouncesNonAdmins(t *testing.T) {
	srv, _ := testServer(t, newFakeAPI(), "alice", "Org1MSP", "user")

	for _, path := range []string{"/admin", "/admin/users", "/admin/assets"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rr := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rr, req)

		if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/" {
			t.Fatalf("%s: status=%d location=%q, want 303 to /", path, rr.Code, rr.Header().Get("Location"))
		}
	}
}

func TestAdminGuardAdmitsAdmins(t *testing.T) {
	srv, _ := testServer(t, newFakeAPI(), "root", "Org1MSP", "admin")

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
}
