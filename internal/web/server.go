package web

import (
	"context"
	"html/template"
	"io"
	"net/http"

	"registry-console/internal/gateway"
	"registry-console/internal/notify"
	"registry-console/internal/obs"
	"registry-console/internal/registry"
	"registry-console/internal/session"
	"registry-console/internal/stream"
)

// API is the slice of the gateway client the handlers use. *gateway.Client
// satisfies it; tests substitute a fake.
type API interface {
	ListAssets(ctx context.Context) ([]registry.Asset, error)
	GetAsset(ctx context.Context, id string) (registry.Asset, error)
	GetAssetFromLedger(ctx context.Context, id string) (registry.Asset, error)
	CreateAsset(ctx context.Context, req gateway.CreateAssetRequest) error
	DeleteAsset(ctx context.Context, id string) error
	ProposeTransfer(ctx context.Context, id, targetUser string) error
	AcceptTransfer(ctx context.Context, id string) error
	SetAssetView(ctx context.Context, id, view string) error
	History(ctx context.Context, id string) ([]registry.HistoryRecord, error)

	Register(ctx context.Context, username, password, email, org string) error
	DeleteAccount(ctx context.Context) error
	UploadImage(ctx context.Context, filename string, r io.Reader) (gateway.UploadResult, error)

	AdminStats(ctx context.Context) (registry.Stats, error)
	AdminIdentities(ctx context.Context) ([]registry.Identity, error)
	AdminListAssets(ctx context.Context, source string) (gateway.AdminAssets, error)
	Sync(ctx context.Context) (gateway.SyncResult, error)
	SetAssetStatus(ctx context.Context, id, status string) error
	SetIdentityStatus(ctx context.Context, username, status, role string) error
}

// Server renders the console UI and proxies operator actions to the gateway.
type Server struct {
	store  *session.Store
	api    API
	poller *notify.Poller
	stream *stream.Stream
	tmpl   *template.Template
}

// NewServer wires the handler set. The poller and stream are shared with the
// session-driven lifecycle managed in main.
func NewServer(store *session.Store, api API, poller *notify.Poller, st *stream.Stream) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Server{store: store, api: api, poller: poller, stream: st, tmpl: tmpl}, nil
}

// Handler builds the routed, middleware-wrapped console handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", obs.Handler())
	mux.Handle("GET /static/", http.FileServerFS(staticFS))

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /register", s.handleRegisterPage)
	mux.HandleFunc("POST /register", s.handleRegister)
	mux.HandleFunc("POST /logout", s.requireSession(s.handleLogout))

	mux.HandleFunc("GET /{$}", s.requireSession(s.handleDashboard))
	mux.HandleFunc("GET /gallery", s.requireSession(s.handleGallery))
	mux.HandleFunc("GET /gallery/{id}", s.requireSession(s.handleGalleryDetail))

	mux.HandleFunc("GET /assets/new", s.requireSession(s.handleCreateAssetPage))
	mux.HandleFunc("POST /assets/new", s.requireSession(s.handleCreateAsset))
	mux.HandleFunc("GET /assets/{id}", s.requireSession(s.handleAssetDetail))
	mux.HandleFunc("POST /assets/{id}/transfer", s.requireSession(s.handleProposeTransfer))
	mux.HandleFunc("POST /assets/{id}/accept", s.requireSession(s.handleAcceptTransfer))
	mux.HandleFunc("POST /assets/{id}/view", s.requireSession(s.handleSetView))
	mux.HandleFunc("POST /assets/{id}/delete", s.requireSession(s.handleDeleteAsset))

	mux.HandleFunc("GET /settings", s.requireSession(s.handleSettings))
	mux.HandleFunc("POST /settings/delete", s.requireSession(s.handleDeleteAccount))

	mux.HandleFunc("GET /notifications", s.requireSession(s.handleNotifications))
	mux.HandleFunc("POST /notifications/{id}/read", s.requireSession(s.handleMarkRead))
	mux.HandleFunc("GET /notifications/stream", s.requireSession(s.handleNotificationStream))

	mux.HandleFunc("GET /admin", s.requireAdmin(s.handleAdminOverview))
	mux.HandleFunc("GET /admin/users", s.requireAdmin(s.handleAdminUsers))
	mux.HandleFunc("POST /admin/users/{username}/status", s.requireAdmin(s.handleAdminUserStatus))
	mux.HandleFunc("GET /admin/assets", s.requireAdmin(s.handleAdminAssets))
	mux.HandleFunc("POST /admin/assets/{id}/status", s.requireAdmin(s.handleAdminAssetStatus))
	mux.HandleFunc("POST /admin/sync", s.requireAdmin(s.handleAdminSync))

	var h http.Handler = mux
	h = obs.Instrument(h)
	h = RateLimit(h, 50, 25)
	h = MaxBodyBytes(h, 16<<20)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return h
}
