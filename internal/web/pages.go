package web

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"registry-console/internal/audit"
	"registry-console/internal/gateway"
	"registry-console/internal/registry"
	"registry-console/internal/session"
)

type assetListData struct {
	Assets  []registry.Asset
	Filter  registry.Filter
	Query   string
	Total   int
	Pending int
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, sess session.Session) {
	assets, err := s.api.ListAssets(r.Context())
	if err != nil {
		s.renderGatewayError(w, r, "My Assets", err)
		return
	}

	me := sess.QualifiedID()
	visible := registry.Visible(assets, me)
	filter := registry.ParseFilter(r.URL.Query().Get("filter"))
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	shown := registry.Search(registry.Apply(visible, me, filter), query)
	pending := len(registry.Apply(visible, me, registry.FilterPending))

	s.render(w, r, http.StatusOK, "dashboard.html", page{
		Title: "My Assets",
		Data: assetListData{
			Assets:  shown,
			Filter:  filter,
			Query:   query,
			Total:   len(visible),
			Pending: pending,
		},
	})
}

func (s *Server) handleGallery(w http.ResponseWriter, r *http.Request, sess session.Session) {
	assets, err := s.api.ListAssets(r.Context())
	if err != nil {
		s.renderGatewayError(w, r, "Gallery", err)
		return
	}

	me := sess.QualifiedID()
	visible := registry.Visible(assets, me)
	filter := registry.ParseFilter(r.URL.Query().Get("filter"))
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	shown := registry.Search(registry.Apply(visible, me, filter), query)

	s.render(w, r, http.StatusOK, "gallery.html", page{
		Title: "Gallery",
		Data: assetListData{
			Assets: shown,
			Filter: filter,
			Query:  query,
			Total:  len(visible),
		},
	})
}

type assetDetailData struct {
	Asset      registry.Asset
	History    []registry.HistoryRecord
	HistoryErr string
	Ledger     *registry.Asset
	LedgerErr  string
	Verified   bool
	CanPropose bool
	CanAccept  bool
	IsOwner    bool
	NotFound   bool
}

// handleAssetDetail renders one asset with its provenance trail. The record
// and its history load concurrently, and every mutation re-fetches both, so
// the page always reflects the gateway's state rather than a local merge.
func (s *Server) handleAssetDetail(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id := r.PathValue("id")
	verify := r.URL.Query().Get("verify") != ""

	var (
		wg         sync.WaitGroup
		asset      registry.Asset
		assetErr   error
		history    []registry.HistoryRecord
		historyErr error
		ledger     registry.Asset
		ledgerErr  error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		asset, assetErr = s.api.GetAsset(r.Context(), id)
	}()
	go func() {
		defer wg.Done()
		history, historyErr = s.api.History(r.Context(), id)
	}()
	if verify {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ledger, ledgerErr = s.api.GetAssetFromLedger(r.Context(), id)
		}()
	}
	wg.Wait()

	if assetErr != nil {
		if errors.Is(assetErr, gateway.ErrNotFound) || errors.Is(assetErr, gateway.ErrForbidden) {
			s.render(w, r, http.StatusNotFound, "asset.html", page{
				Title: "Asset", Data: assetDetailData{NotFound: true},
			})
			return
		}
		s.renderGatewayError(w, r, "Asset", assetErr)
		return
	}

	me := sess.QualifiedID()
	data := assetDetailData{
		Asset:      asset,
		History:    history,
		CanPropose: asset.CanPropose(me),
		CanAccept:  asset.CanAccept(me),
		IsOwner:    asset.OwnerID == me,
	}
	if historyErr != nil {
		data.HistoryErr = gatewayMessage(historyErr, "Provenance history is unavailable.")
	}
	if verify {
		if ledgerErr != nil {
			data.LedgerErr = gatewayMessage(ledgerErr, "Ledger verification failed.")
		} else {
			data.Ledger = &ledger
			data.Verified = ledger.ID == asset.ID && ledger.OwnerID == asset.OwnerID && ledger.Status == asset.Status
		}
	}

	s.render(w, r, http.StatusOK, "asset.html", page{Title: asset.Name, Data: data})
}

func (s *Server) handleGalleryDetail(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id := r.PathValue("id")

	asset, err := s.api.GetAsset(r.Context(), id)
	if err != nil {
		if errors.Is(err, gateway.ErrNotFound) || errors.Is(err, gateway.ErrForbidden) {
			s.render(w, r, http.StatusNotFound, "gallery_detail.html", page{
				Title: "Gallery", Data: assetDetailData{NotFound: true},
			})
			return
		}
		s.renderGatewayError(w, r, "Gallery", err)
		return
	}

	data := assetDetailData{Asset: asset}
	if history, histErr := s.api.History(r.Context(), id); histErr == nil {
		data.History = history
	} else {
		data.HistoryErr = gatewayMessage(histErr, "Provenance history is restricted.")
	}
	s.render(w, r, http.StatusOK, "gallery_detail.html", page{Title: asset.Name, Data: data})
}

func (s *Server) handleProposeTransfer(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id := r.PathValue("id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	target := strings.TrimSpace(r.PostFormValue("target_user"))
	if target == "" {
		redirectAsset(w, r, id, "", "Recipient username is required.")
		return
	}

	if err := s.api.ProposeTransfer(r.Context(), id, target); err != nil {
		redirectAsset(w, r, id, "", gatewayMessage(err, "Transfer proposal failed."))
		return
	}
	_ = audit.LogEvent(r.Context(), "console.transfer_proposed", map[string]any{
		"asset_id": id, "target_user": target,
	})
	redirectAsset(w, r, id, "Transfer proposed to "+target+".", "")
}

func (s *Server) handleAcceptTransfer(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id := r.PathValue("id")
	if err := s.api.AcceptTransfer(r.Context(), id); err != nil {
		redirectAsset(w, r, id, "", gatewayMessage(err, "Accepting the transfer failed."))
		return
	}
	_ = audit.LogEvent(r.Context(), "console.transfer_accepted", map[string]any{"asset_id": id})
	redirectAsset(w, r, id, "Transfer accepted. You now own this asset.", "")
}

func (s *Server) handleSetView(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id := r.PathValue("id")
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	view := strings.ToUpper(strings.TrimSpace(r.PostFormValue("view")))
	if view != registry.ViewPublic && view != registry.ViewPrivate {
		redirectAsset(w, r, id, "", "Visibility must be PUBLIC or PRIVATE.")
		return
	}

	if err := s.api.SetAssetView(r.Context(), id, view); err != nil {
		redirectAsset(w, r, id, "", gatewayMessage(err, "Updating visibility failed."))
		return
	}
	_ = audit.LogEvent(r.Context(), "console.view_changed", map[string]any{"asset_id": id, "view": view})
	redirectAsset(w, r, id, "Visibility set to "+view+".", "")
}

func (s *Server) handleDeleteAsset(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id := r.PathValue("id")
	if err := s.api.DeleteAsset(r.Context(), id); err != nil {
		redirectAsset(w, r, id, "", gatewayMessage(err, "Deleting the asset failed."))
		return
	}
	_ = audit.LogEvent(r.Context(), "console.asset_deleted", map[string]any{"asset_id": id})
	http.Redirect(w, r, "/?flash="+url.QueryEscape("Asset deleted."), http.StatusSeeOther)
}

type createAssetData struct {
	ID          string
	Name        string
	Description string
	ImageURL    string
	View        string
}

func (s *Server) handleCreateAssetPage(w http.ResponseWriter, r *http.Request, sess session.Session) {
	s.render(w, r, http.StatusOK, "create.html", page{
		Title: "Register Asset",
		Data:  createAssetData{ID: "art-" + uuid.NewString(), View: registry.ViewPublic},
	})
}

// handleCreateAsset registers a new asset. An attached image is uploaded to
// the gateway's IPFS endpoint first; its CID and content hash travel with the
// create call so the ledger records the binding.
func (s *Server) handleCreateAsset(w http.ResponseWriter, r *http.Request, sess session.Session) {
	if err := r.ParseMultipartForm(16 << 20); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	req := gateway.CreateAssetRequest{
		ID:          strings.TrimSpace(r.PostFormValue("id")),
		Name:        strings.TrimSpace(r.PostFormValue("name")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
		ImageURL:    strings.TrimSpace(r.PostFormValue("image_url")),
		View:        strings.ToUpper(strings.TrimSpace(r.PostFormValue("view"))),
	}
	data := createAssetData{
		ID: req.ID, Name: req.Name, Description: req.Description,
		ImageURL: req.ImageURL, View: req.View,
	}

	if req.ID == "" || req.Name == "" {
		s.render(w, r, http.StatusBadRequest, "create.html", page{
			Title: "Register Asset", Error: "ID and name are required.", Data: data,
		})
		return
	}
	if req.View != registry.ViewPublic && req.View != registry.ViewPrivate {
		req.View = registry.ViewPublic
	}

	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		content, readErr := io.ReadAll(file)
		if readErr != nil {
			s.render(w, r, http.StatusBadRequest, "create.html", page{
				Title: "Register Asset", Error: "Reading the image failed.", Data: data,
			})
			return
		}
		sum := sha256.Sum256(content)
		res, upErr := s.api.UploadImage(r.Context(), header.Filename, bytes.NewReader(content))
		if upErr != nil {
			s.render(w, r, http.StatusBadGateway, "create.html", page{
				Title: "Register Asset", Error: gatewayMessage(upErr, "Image upload failed."), Data: data,
			})
			return
		}
		req.ImageURL = res.URL
		req.ImageHash = hex.EncodeToString(sum[:])
		req.IpfsCID = res.CID
		req.FileName = header.Filename
		req.FileSize = int64(len(content))
		req.FileHash = req.ImageHash
		req.StorageType = "ipfs"
	}

	if err := s.api.CreateAsset(r.Context(), req); err != nil {
		s.render(w, r, http.StatusBadGateway, "create.html", page{
			Title: "Register Asset", Error: gatewayMessage(err, "Creating the asset failed."), Data: data,
		})
		return
	}
	_ = audit.LogEvent(r.Context(), "console.asset_created", map[string]any{"asset_id": req.ID})
	redirectAsset(w, r, req.ID, "Asset registered.", "")
}

func redirectAsset(w http.ResponseWriter, r *http.Request, id, flash, errMsg string) {
	target := "/assets/" + url.PathEscape(id)
	if flash != "" {
		target += "?flash=" + url.QueryEscape(flash)
	} else if errMsg != "" {
		target += "?err=" + url.QueryEscape(errMsg)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func gatewayMessage(err error, fallback string) string {
	if msg := gateway.ServerMessage(err); msg != "" {
		return msg
	}
	return fallback
}

func (s *Server) renderGatewayError(w http.ResponseWriter, r *http.Request, title string, err error) {
	if errors.Is(err, gateway.ErrUnauthorized) {
		// The silent refresh already failed; the session is gone.
		http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.Path), http.StatusSeeOther)
		return
	}
	logError(r, "gateway_request_failed", err)
	s.render(w, r, http.StatusBadGateway, "error.html", page{
		Title: title,
		Error: gatewayMessage(err, "The registry gateway is unavailable."),
	})
}
