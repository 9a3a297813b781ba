package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"jemuran-service/internal/store"
)

// RecordEvent is streamed to dashboard clients whenever a decision cycle
// persists a new history row.
type RecordEvent struct {
	Type         string              `json:"type"`
	Record       store.JemuranRecord `json:"record"`
	TSUnixMillis int64               `json:"ts"`
}

// EventHub is an in-memory pub/sub keyed by user ID. Slow subscribers are
// dropped rather than allowed to block a decision cycle.
type EventHub struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]map[chan RecordEvent]struct{}
}

func NewEventHub() *EventHub {
	return &EventHub{subs: map[uuid.UUID]map[chan RecordEvent]struct{}{}}
}

func (h *EventHub) Subscribe(userID uuid.UUID) (<-chan RecordEvent, func()) {
	ch := make(chan RecordEvent, 64)

	h.mu.Lock()
	if _, ok := h.subs[userID]; !ok {
		h.subs[userID] = map[chan RecordEvent]struct{}{}
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if m, ok := h.subs[userID]; ok {
			delete(m, ch)
			if len(m) == 0 {
				delete(h.subs, userID)
			}
		}
		h.mu.Unlock()
		close(ch)
	}
	return ch, cancel
}

func (h *EventHub) Publish(userID uuid.UUID, evt RecordEvent) {
	if evt.TSUnixMillis == 0 {
		evt.TSUnixMillis = time.Now().UTC().UnixMilli()
	}
	if evt.Type == "" {
		evt.Type = "record"
	}

	// Sends happen under the read lock so a concurrent cancel cannot close a
	// channel mid-publish.
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- evt:
		default:
			// Drop if subscriber is slow.
		}
	}
}
