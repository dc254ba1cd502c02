package httpapi

import (
	"net/http"
	"sync"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/corkandcandles/bookingsync/internal/syncer"
)

// StatusHub fans sync progress events out to WebSocket subscribers and
// remembers the most recent one for the status endpoint. Slow subscribers
// lose events rather than stalling the sync pass.
type StatusHub struct {
	mu          sync.Mutex
	subscribers map[chan syncer.Event]struct{}
	lastEvent   *syncer.Event
}

func NewStatusHub() *StatusHub {
	return &StatusHub{subscribers: map[chan syncer.Event]struct{}{}}
}

func (h *StatusHub) Publish(event syncer.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastEvent = &event
	for ch := range h.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *StatusHub) LastEvent() *syncer.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.lastEvent == nil {
		return nil
	}
	event := *h.lastEvent
	return &event
}

func (h *StatusHub) subscribe() (chan syncer.Event, func()) {
	ch := make(chan syncer.Event, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		h.mu.Unlock()
	}
}

func (s *Server) handleSyncStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusNotFound, "not_found", "status stream disabled", getCorrelationID(r))
		return
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	events, cancel := s.hub.subscribe()
	defer cancel()

	if last := s.hub.LastEvent(); last != nil {
		if err := wsjson.Write(ctx, conn, last); err != nil {
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case event := <-events:
			if err := wsjson.Write(ctx, conn, event); err != nil {
				return
			}
		}
	}
}
