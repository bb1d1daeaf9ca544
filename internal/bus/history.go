package bus

import (
	"sync"

	"sentinel/internal/events"
)

// history retains published events per topic so Replay can re-emit past
// events to current subscribers. Unbounded by design: replay is documented
// as a testing aid, not a production durability guarantee.
type history struct {
	mu   sync.RWMutex
	byTopic map[events.Topic][]events.Event
}

func newHistory() *history {
	return &history{byTopic: make(map[events.Topic][]events.Event)}
}

func (h *history) record(evt events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.byTopic[evt.EventType] = append(h.byTopic[evt.EventType], evt)
}

func (h *history) since(topic events.Topic, sinceUnixMilli int64) []events.Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	all := h.byTopic[topic]
	out := make([]events.Event, 0, len(all))
	for _, evt := range all {
		if evt.Timestamp.UnixMilli() >= sinceUnixMilli {
			out = append(out, evt)
		}
	}
	return out
}
