package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"registry-console/internal/registry"
	"registry-console/internal/session"
)

type notificationsData struct {
	Notifications []registry.Notification
	Unread        int
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request, sess session.Session) {
	list, unread := s.poller.Snapshot()
	s.render(w, r, http.StatusOK, "notifications.html", page{
		Title:  "Notifications",
		Unread: unread,
		Data:   notificationsData{Notifications: list, Unread: unread},
	})
}

// handleMarkRead flips one notification optimistically and follows its link,
// so one click both clears the item and opens what it points at. Without a
// link it bounces back to the referring page. The gateway call happens in the
// background.
func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, sess session.Session) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "bad notification id", http.StatusBadRequest)
		return
	}

	link := ""
	list, _ := s.poller.Snapshot()
	for _, n := range list {
		if n.ID == id {
			link = n.Link
			break
		}
	}
	s.poller.MarkRead(id)

	back := "/notifications"
	if safeNext(link) != "" {
		back = link
	} else if ref := r.Referer(); ref != "" {
		if u, err := url.Parse(ref); err == nil && safeNext(u.RequestURI()) != "" {
			back = u.RequestURI()
		}
	}
	http.Redirect(w, r, back, http.StatusSeeOther)
}

// handleNotificationStream pushes snapshot events over SSE so an open
// notifications page updates without reloads. The subscription ends with the
// request context.
func (s *Server) handleNotificationStream(w http.ResponseWriter, r *http.Request, sess session.Session) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	events := s.stream.Subscribe(r.Context())

	fmt.Fprint(w, ": stream started\n\n")
	flusher.Flush()

	for evt := range events {
		data, err := json.Marshal(evt)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}
