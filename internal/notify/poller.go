package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"registry-console/internal/obs"
	"registry-console/internal/registry"
	"registry-console/internal/stream"
)

// Lister is the slice of the gateway client the poller needs.
type Lister interface {
	Notifications(ctx context.Context) ([]registry.Notification, error)
	MarkNotificationRead(ctx context.Context, id int64) error
}

// Poller fetches notifications on a fixed cadence while a session is
// authenticated and fans snapshots out to stream subscribers. Start and Stop
// are driven by session state changes.
type Poller struct {
	api      Lister
	stream   *stream.Stream
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	latest []registry.Notification
	unread int
}

// NewPoller builds a stopped poller publishing to st.
func NewPoller(api Lister, st *stream.Stream, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Poller{api: api, stream: st, interval: interval}
}

// Start begins polling: one immediate fetch, then one per interval. Calling
// Start on a running poller is a no-op.
func (p *Poller) Start() {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(ctx)
}

// Stop halts polling and clears the cached snapshot. Safe to call repeatedly.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.latest = nil
	p.unread = 0
	p.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	obs.SetUnreadNotifications(0)
}

func (p *Poller) run(ctx context.Context) {
	p.poll(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	list, err := p.api.Notifications(fetchCtx)
	if err != nil {
		obs.CountNotificationPoll("failure")
		obs.LogRequest(map[string]any{
			"ts":    time.Now().UTC().Format(time.RFC3339Nano),
			"level": "warn",
			"msg":   "notification_poll_failed",
			"error": err.Error(),
		})
		return
	}
	obs.CountNotificationPoll("success")

	sortUnreadFirst(list)
	unread := countUnread(list)

	p.mu.Lock()
	if p.cancel == nil {
		// Stopped while the fetch was in flight; drop the result.
		p.mu.Unlock()
		return
	}
	p.latest = list
	p.unread = unread
	p.mu.Unlock()

	obs.SetUnreadNotifications(unread)
	p.stream.Publish(stream.Event{Unread: unread, Notifications: list, AsOf: time.Now().UTC()})
}

// Snapshot returns the latest fetched notifications and the unread count.
func (p *Poller) Snapshot() ([]registry.Notification, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]registry.Notification, len(p.latest))
	copy(out, p.latest)
	return out, p.unread
}

// MarkRead flips the notification locally and publishes the updated snapshot
// right away, then tells the gateway in the background. A gateway failure is
// logged and otherwise ignored; the next poll reconciles.
func (p *Poller) MarkRead(id int64) {
	p.mu.Lock()
	for i := range p.latest {
		if p.latest[i].ID == id {
			p.latest[i].IsRead = true
		}
	}
	sortUnreadFirst(p.latest)
	p.unread = countUnread(p.latest)
	list := make([]registry.Notification, len(p.latest))
	copy(list, p.latest)
	unread := p.unread
	p.mu.Unlock()

	obs.SetUnreadNotifications(unread)
	p.stream.Publish(stream.Event{Unread: unread, Notifications: list, AsOf: time.Now().UTC()})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := p.api.MarkNotificationRead(ctx, id); err != nil {
			obs.LogRequest(map[string]any{
				"ts":              time.Now().UTC().Format(time.RFC3339Nano),
				"level":           "warn",
				"msg":             "mark_read_failed",
				"notification_id": id,
				"error":           err.Error(),
			})
		}
	}()
}

func sortUnreadFirst(list []registry.Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		return !list[i].IsRead && list[j].IsRead
	})
}

func countUnread(list []registry.Notification) int {
	n := 0
	for _, e := range list {
		if !e.IsRead {
			n++
		}
	}
	return n
}
