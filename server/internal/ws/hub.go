package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/motortwin/motortwin/pkg/types"
	"github.com/motortwin/motortwin/server/internal/api"
	"github.com/motortwin/motortwin/server/internal/store"
)

// Event names carried in Message.Event.
const (
	EventSnapshot = "snapshot"
	EventReading  = "reading"
)

// snapshotTimeout bounds the store reads behind one snapshot frame.
const snapshotTimeout = 5 * time.Second

// Message is the JSON envelope sent to subscribers. Data is an
// api.SnapshotResponse for EventSnapshot and a types.Reading for EventReading.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub fans out the dashboard snapshot on a fixed interval and pushes each
// newly ingested reading as it arrives. Subscribers pick the events they want
// with ?events=snapshot,reading; both are sent when the parameter is absent.
type Hub struct {
	store    store.Store
	cfg      api.Config
	interval time.Duration
	upgrader websocket.Upgrader
	// originOK decides the upgrade's Origin check; nil accepts every origin.
	originOK func(origin string) bool

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

// New returns a Hub that reads from st. cfg sizes the snapshot the same way
// GET /api/v1/snapshot does.
func New(st store.Store, cfg api.Config, interval time.Duration) *Hub {
	h := &Hub{
		store:    st,
		cfg:      cfg,
		interval: interval,
		subs:     make(map[*subscriber]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			return h.originOK == nil || h.originOK(r.Header.Get("Origin"))
		},
	}
	return h
}

// SetOriginPolicy makes upgrades from origins rejected by ok fail with 403.
// Browsers do not apply CORS to WebSocket handshakes, so the stream checks
// the allowlist itself. Call before serving.
func (h *Hub) SetOriginPolicy(ok func(origin string) bool) {
	h.originOK = ok
}

// Run publishes a snapshot every interval until ctx is cancelled, then
// disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) {
	tick := time.NewTicker(h.interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			h.dropAll()
			return
		case <-tick.C:
			frame, err := h.snapshotFrame()
			if err != nil {
				slog.Warn("ws: snapshot failed", "err", err)
				continue
			}
			h.publish(EventSnapshot, frame)
		}
	}
}

// ServeHTTP upgrades the request and blocks until the subscriber goes away.
// A snapshot is queued before the first tick so a new dashboard is never
// blank.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	events := parseEvents(r.URL.Query().Get("events"))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s := newSubscriber(conn, events)
	if s.wants(EventSnapshot) {
		if frame, err := h.snapshotFrame(); err == nil {
			s.offer(frame)
		}
	}
	h.add(s)
	defer h.remove(s)

	go s.writeLoop()
	s.readLoop()
}

// Observe implements the ingest observer hook.
func (h *Hub) Observe(r types.Reading) {
	frame, err := json.Marshal(Message{Event: EventReading, Data: r})
	if err != nil {
		return
	}
	h.publish(EventReading, frame)
}

// Count reports the number of connected subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.out)
	}
}

func (h *Hub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.out)
	}
}

// publish hands frame to every subscriber of event. A subscriber whose queue
// is full is disconnected rather than allowed to stall the others.
func (h *Hub) publish(event string, frame []byte) {
	h.mu.RLock()
	var slow []*subscriber
	for s := range h.subs {
		if s.wants(event) && !s.offer(frame) {
			slow = append(slow, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range slow {
		slog.Debug("ws: dropping slow subscriber", "event", event)
		h.remove(s)
	}
}

func (h *Hub) snapshotFrame() ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()

	snap, err := api.BuildSnapshot(ctx, h.store, h.cfg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: EventSnapshot, Data: snap})
}

// parseEvents turns "snapshot,reading" into a set. Unknown names are ignored;
// an empty or fully unknown list subscribes to everything.
func parseEvents(raw string) map[string]bool {
	set := make(map[string]bool, 2)
	for _, name := range strings.Split(raw, ",") {
		switch name = strings.TrimSpace(name); name {
		case EventSnapshot, EventReading:
			set[name] = true
		}
	}
	if len(set) == 0 {
		set[EventSnapshot] = true
		set[EventReading] = true
	}
	return set
}
