package bus

import (
	"bufio"
	"encoding/json"
	"os"
	"sync"
	"time"

	"sentinel/internal/events"
)

// DeadLetterEntry is one inspectable dead-lettered delivery, never
// automatically redelivered.
type DeadLetterEntry struct {
	Topic      events.Topic `json:"topic"`
	Event      events.Event `json:"event"`
	Subscriber string       `json:"subscriber"`
	Reason     string       `json:"reason"`
	DeadLetteredAt time.Time `json:"dead_lettered_at"`
}

// DeadLetterStore holds per-topic dead-lettered entries up to capacity, then
// evicts the oldest with a counter increment.
type DeadLetterStore struct {
	mu       sync.Mutex
	capacity int
	byTopic  map[events.Topic][]DeadLetterEntry
	evicted  map[events.Topic]int64
}

// NewDeadLetterStore constructs a store with the given per-topic capacity
// (spec default 10000).
func NewDeadLetterStore(capacity int) *DeadLetterStore {
	if capacity <= 0 {
		capacity = 10000
	}
	return &DeadLetterStore{
		capacity: capacity,
		byTopic:  make(map[events.Topic][]DeadLetterEntry),
		evicted:  make(map[events.Topic]int64),
	}
}

// Add records evt as dead-lettered for subscriber with reason. evt.Attempt
// must already be >= 3 by the time this is called from the worker's retry
// loop.
func (s *DeadLetterStore) Add(topic events.Topic, evt events.Event, subscriber, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := DeadLetterEntry{
		Topic:          topic,
		Event:          evt,
		Subscriber:     subscriber,
		Reason:         reason,
		DeadLetteredAt: time.Now().UTC(),
	}
	entries := s.byTopic[topic]
	if len(entries) >= s.capacity {
		entries = entries[1:]
		s.evicted[topic]++
	}
	s.byTopic[topic] = append(entries, entry)
}

// List returns a copy of all dead-letter entries for topic.
func (s *DeadLetterStore) List(topic events.Topic) []DeadLetterEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DeadLetterEntry, len(s.byTopic[topic]))
	copy(out, s.byTopic[topic])
	return out
}

// EvictedCount returns how many entries for topic were evicted after the
// store hit capacity.
func (s *DeadLetterStore) EvictedCount(topic events.Topic) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evicted[topic]
}

// PersistToFile writes every dead-letter entry, one JSON object per line,
// for post-mortem inspection after shutdown.
func (s *DeadLetterStore) PersistToFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, entries := range s.byTopic {
		for _, entry := range entries {
			if err := enc.Encode(entry); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}
