// Package hub streams discovery events to HTTP clients as Server-Sent Events.
//
// Each event becomes one frame carrying a sequence id, the event type as the SSE event
// name and the JSON-encoded event as data. Clients may pass ?org=<id> to receive only
// the events of one organization.
package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"fleetscope/internal/service"
)

// KeepAlive is the interval between comment frames on idle streams
var KeepAlive = 30 * time.Second

// subscriber is one open event stream
type subscriber struct {
	id   uint64
	org  string
	send chan []byte
}

func (s *subscriber) wants(org string) bool {
	return s.org == "" || org == "" || s.org == org
}

// frame is an encoded event waiting to be fanned out
type frame struct {
	org  string
	data []byte
}

// Hub fans discovery events out to every open stream
type Hub struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}

	join   chan *subscriber
	leave  chan *subscriber
	frames chan frame
	done   chan struct{}

	seqMu  sync.Mutex
	seq    uint64 // event ids
	nextID uint64 // stream ids

	logger *logrus.Logger
}

// New creates a hub; call Run to start it
func New(logger *logrus.Logger) *Hub {
	if logger == nil {
		logger = logrus.New()
	}
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		join:   make(chan *subscriber),
		leave:  make(chan *subscriber),
		frames: make(chan frame, 256),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run owns the subscriber set and returns when ctx is done. It must be called once.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for s := range h.subs {
				delete(h.subs, s)
				close(s.send)
			}
			h.mu.Unlock()
			return

		case s := <-h.join:
			h.mu.Lock()
			h.subs[s] = struct{}{}
			n := len(h.subs)
			h.mu.Unlock()
			h.logger.WithFields(logrus.Fields{"stream": s.id, "org_id": s.org}).Debugf("Event stream opened (open: %d)", n)

		case s := <-h.leave:
			h.mu.Lock()
			if _, ok := h.subs[s]; ok {
				delete(h.subs, s)
				close(s.send)
			}
			n := len(h.subs)
			h.mu.Unlock()
			h.logger.WithField("stream", s.id).Debugf("Event stream closed (open: %d)", n)

		case f := <-h.frames:
			h.mu.RLock()
			for s := range h.subs {
				if !s.wants(f.org) {
					continue
				}
				select {
				case s.send <- f.data:
				default:
					h.logger.WithField("stream", s.id).Debug("Event stream is slow, dropping frame")
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Forward relays every event published on bus until ctx is done
func (h *Hub) Forward(ctx context.Context, bus *service.EventBus) {
	ch := make(chan service.Event, 64)
	bus.Subscribe(ch)
	defer bus.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-ch:
			h.Broadcast(e)
		}
	}
}

// Broadcast queues event for every interested stream. Events are dropped when the queue is full.
func (h *Hub) Broadcast(event service.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to encode event")
		return
	}

	h.seqMu.Lock()
	h.seq++
	id := h.seq
	h.seqMu.Unlock()

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "id: %d\nevent: %s\ndata: %s\n\n", id, event.Type, data)

	select {
	case h.frames <- frame{org: event.OrgID(), data: buf.Bytes()}:
	default:
		h.logger.WithField("type", event.Type).Warn("Event queue full, dropping event")
	}
}

// ClientCount returns the number of open streams
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// ServeHTTP streams events until the client goes away or the hub stops
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	h.seqMu.Lock()
	h.nextID++
	s := &subscriber{id: h.nextID, org: r.URL.Query().Get("org"), send: make(chan []byte, 64)}
	h.seqMu.Unlock()

	select {
	case h.join <- s:
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	case <-r.Context().Done():
		return
	}
	defer func() {
		select {
		case h.leave <- s:
		case <-h.done:
		}
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Stream-Id", strconv.FormatUint(s.id, 10))

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	ticker := time.NewTicker(KeepAlive)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": keepalive\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
