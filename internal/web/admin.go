package web

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"registry-console/internal/audit"
	"registry-console/internal/registry"
	"registry-console/internal/session"
)

type adminOverviewData struct {
	Stats     registry.Stats
	StatsErr  string
	Recent    []registry.Identity
	RecentErr string
}

// handleAdminOverview renders the stats cards and the most recent identities.
// The two fetches are independent and run concurrently; either can fail
// without blanking the other.
func (s *Server) handleAdminOverview(w http.ResponseWriter, r *http.Request, sess session.Session) {
	var (
		wg         sync.WaitGroup
		stats      registry.Stats
		statsErr   error
		identities []registry.Identity
		identErr   error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		stats, statsErr = s.api.AdminStats(r.Context())
	}()
	go func() {
		defer wg.Done()
		identities, identErr = s.api.AdminIdentities(r.Context())
	}()
	wg.Wait()

	data := adminOverviewData{Stats: stats}
	if statsErr != nil {
		data.StatsErr = gatewayMessage(statsErr, "Stats are unavailable.")
	}
	if identErr != nil {
		data.RecentErr = gatewayMessage(identErr, "Identities are unavailable.")
	} else {
		if len(identities) > 5 {
			identities = identities[:5]
		}
		data.Recent = identities
	}
	s.render(w, r, http.StatusOK, "admin.html", page{Title: "Admin", Data: data})
}

type adminUsersData struct {
	Identities []registry.Identity
	Page       int
	TotalPages int
	Query      string
}

func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, sess session.Session) {
	identities, err := s.api.AdminIdentities(r.Context())
	if err != nil {
		s.renderGatewayError(w, r, "Identities", err)
		return
	}

	if q := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q"))); q != "" {
		filtered := identities[:0:0]
		for _, id := range identities {
			if strings.Contains(strings.ToLower(id.Name), q) || strings.Contains(strings.ToLower(id.Email), q) {
				filtered = append(filtered, id)
			}
		}
		identities = filtered
	}

	pageNum, _ := strconv.Atoi(r.URL.Query().Get("page"))
	items, current, total := registry.Paginate(identities, pageNum, registry.PageSize)

	s.render(w, r, http.StatusOK, "admin_users.html", page{
		Title: "Identities",
		Data: adminUsersData{
			Identities: items,
			Page:       current,
			TotalPages: total,
			Query:      r.URL.Query().Get("q"),
		},
	})
}

// handleAdminUserStatus applies one of the identity actions: approve, ban,
// reactivate, promote, demote. Each maps to a status/role pair on the gateway.
func (s *Server) handleAdminUserStatus(w http.ResponseWriter, r *http.Request, sess session.Session) {
	username := r.PathValue("username")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	var status, role string
	action := r.PostFormValue("action")
	switch action {
	case "approve", "reactivate":
		status = registry.IdentityActive
	case "ban":
		status = registry.IdentityBanned
	case "promote":
		status, role = registry.IdentityActive, registry.RoleAdmin
	case "demote":
		status, role = registry.IdentityActive, registry.RoleUser
	default:
		redirectAdminUsers(w, r, "", "Unknown action.")
		return
	}

	if err := s.api.SetIdentityStatus(r.Context(), username, status, role); err != nil {
		redirectAdminUsers(w, r, "", gatewayMessage(err, "Updating the identity failed."))
		return
	}
	_ = audit.LogEvent(r.Context(), "console.identity_status_changed", map[string]any{
		"username": username, "action": action, "status": status, "role": role,
	})
	redirectAdminUsers(w, r, "Identity "+username+" updated.", "")
}

type adminAssetsData struct {
	Source     string
	Note       string
	Assets     []registry.Asset
	Page       int
	TotalPages int
}

func (s *Server) handleAdminAssets(w http.ResponseWriter, r *http.Request, sess session.Session) {
	source := r.URL.Query().Get("source")
	if source != "database" {
		source = "blockchain"
	}

	res, err := s.api.AdminListAssets(r.Context(), source)
	if err != nil {
		s.renderGatewayError(w, r, "All Assets", err)
		return
	}

	pageNum, _ := strconv.Atoi(r.URL.Query().Get("page"))
	items, current, total := registry.Paginate(res.Assets, pageNum, registry.PageSize)

	s.render(w, r, http.StatusOK, "admin_assets.html", page{
		Title: "All Assets",
		Data: adminAssetsData{
			Source:     res.Source,
			Note:       res.Note,
			Assets:     items,
			Page:       current,
			TotalPages: total,
		},
	})
}

// handleAdminAssetStatus forces an asset's lifecycle state: freeze, unfreeze,
// or delete.
func (s *Server) handleAdminAssetStatus(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id := r.PathValue("id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	var status string
	action := r.PostFormValue("action")
	switch action {
	case "freeze":
		status = registry.StatusFrozen
	case "unfreeze":
		status = registry.StatusActive
	case "delete":
		status = registry.StatusDeleted
	default:
		redirectAdminAssets(w, r, "", "Unknown action.")
		return
	}

	if err := s.api.SetAssetStatus(r.Context(), id, status); err != nil {
		redirectAdminAssets(w, r, "", gatewayMessage(err, "Updating the asset failed."))
		return
	}
	_ = audit.LogEvent(r.Context(), "console.asset_status_forced", map[string]any{
		"asset_id": id, "status": status,
	})
	redirectAdminAssets(w, r, "Asset "+id+" set to "+status+".", "")
}

// handleAdminSync kicks a cache reconciliation and reports the count synced.
func (s *Server) handleAdminSync(w http.ResponseWriter, r *http.Request, sess session.Session) {
	res, err := s.api.Sync(r.Context())
	if err != nil {
		redirectAdminAssets(w, r, "", gatewayMessage(err, "Sync failed."))
		return
	}
	_ = audit.LogEvent(r.Context(), "console.cache_synced", map[string]any{"count": res.Count})

	flash := res.Message
	if flash == "" {
		flash = "Sync complete (" + strconv.Itoa(res.Count) + " assets)."
	}
	redirectAdminAssets(w, r, flash, "")
}

func redirectAdminUsers(w http.ResponseWriter, r *http.Request, flash, errMsg string) {
	target := "/admin/users"
	if flash != "" {
		target += "?flash=" + url.QueryEscape(flash)
	} else if errMsg != "" {
		target += "?err=" + url.QueryEscape(errMsg)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func redirectAdminAssets(w http.ResponseWriter, r *http.Request, flash, errMsg string) {
	target := "/admin/assets"
	if flash != "" {
		target += "?flash=" + url.QueryEscape(flash)
	} else if errMsg != "" {
		target += "?err=" + url.QueryEscape(errMsg)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
