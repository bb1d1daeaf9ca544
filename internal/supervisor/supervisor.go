// Package supervisor implements the Pipeline Supervisor (C5): an
// observer-only tracker of per-correlation-id pipeline progress, built on
// the same bounded, TTL-evicted map shape as the reference repo's
// internal/llm token cache, generalized from token counts to stage sets.
package supervisor

import (
	"context"
	"sync"
	"time"

	"sentinel/internal/bus"
	"sentinel/internal/events"
)

// Stage is one milestone a correlation id's pipeline can pass through.
type Stage string

const (
	StageRiskEvaluated     Stage = "risk_evaluated"
	StageComplianceDecided Stage = "compliance_decided"
	StageActionApplied     Stage = "action_applied"
	StageNarrated          Stage = "narrated"
)

// stageForTopic maps an observed event to the stage it marks, per spec.md
// §4.5's stage-marker table. ops.alert only marks a stage when its channel
// is narrative; that refinement lives in observe, not this table.
var stageForTopic = map[events.Topic]Stage{
	events.TopicRiskFlagged:      StageRiskEvaluated,
	events.TopicComplianceAction: StageComplianceDecided,
	events.TopicOpsAction:        StageActionApplied,
}

// TransactionContext is the per-correlation-id record the supervisor owns
// exclusively. Status returns a copy so callers can never mutate supervisor
// state through a returned value.
type TransactionContext struct {
	CorrelationID string
	CreatedAt     time.Time
	LastEventAt   time.Time
	StagesSeen    map[Stage]bool
	Terminal      bool

	terminalAt time.Time
}

func (c TransactionContext) clone() TransactionContext {
	stages := make(map[Stage]bool, len(c.StagesSeen))
	for k, v := range c.StagesSeen {
		stages[k] = v
	}
	c.StagesSeen = stages
	return c
}

// Supervisor tracks TransactionContext records by subscribing to every
// topic on the bus. It never publishes and never mutates the events it
// observes (spec.md §4.5).
type Supervisor struct {
	idleTTL time.Duration
	grace   time.Duration
	maxSize int

	mu    sync.Mutex
	byCID map[string]*TransactionContext
	order []string // insertion order, oldest-first, for capacity eviction
}

// New constructs a Supervisor. idleTTL is the inactivity window after which
// a non-narrated context becomes terminal (spec default 10 minutes); grace
// is how long a terminal context survives before eviction (spec default 1
// minute); maxSize bounds the live context map (spec default 100000,
// oldest-evicted at capacity).
func New(idleTTL, grace time.Duration, maxSize int) *Supervisor {
	if maxSize <= 0 {
		maxSize = 100000
	}
	return &Supervisor{
		idleTTL: idleTTL,
		grace:   grace,
		maxSize: maxSize,
		byCID:   make(map[string]*TransactionContext),
	}
}

// Attach subscribes the supervisor to every topic in the closed vocabulary
// so it observes the full pipeline without participating in it, and starts
// the background sweep that advances contexts to terminal and evicts them
// after their grace window.
func (s *Supervisor) Attach(b *bus.Bus) error {
	for _, topic := range events.AllTopics() {
		if _, err := b.Subscribe(topic, "supervisor", s.observe); err != nil {
			return err
		}
	}
	go s.sweepLoop()
	return nil
}

// observe implements bus.Handler. It only ever reads evt; stage derivation
// is pure, and the context map mutation is local bookkeeping, never a
// publish.
func (s *Supervisor) observe(_ context.Context, evt events.Event) error {
	stage, marks := s.stageOf(evt)
	if evt.CorrelationID == "" {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byCID[evt.CorrelationID]
	if !ok {
		if len(s.order) >= s.maxSize {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.byCID, oldest)
		}
		c = &TransactionContext{
			CorrelationID: evt.CorrelationID,
			CreatedAt:     time.Now(),
			StagesSeen:    make(map[Stage]bool),
		}
		s.byCID[evt.CorrelationID] = c
		s.order = append(s.order, evt.CorrelationID)
	}

	c.LastEventAt = time.Now()
	if marks {
		c.StagesSeen[stage] = true
	}
	if stage == StageNarrated && !c.Terminal {
		c.Terminal = true
		c.terminalAt = time.Now()
	}
	return nil
}

func (s *Supervisor) stageOf(evt events.Event) (Stage, bool) {
	if evt.EventType == events.TopicOpsAlert {
		if alert, ok := evt.Payload.(events.OpsAlert); ok && alert.Channel == events.AlertChannelNarrative {
			return StageNarrated, true
		}
		return "", false
	}
	stage, ok := stageForTopic[evt.EventType]
	return stage, ok
}

// Status returns a copy of the TransactionContext for correlationID, or
// false if no context exists (either never created or already evicted).
func (s *Supervisor) Status(correlationID string) (TransactionContext, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.byCID[correlationID]
	if !ok {
		return TransactionContext{}, false
	}
	return c.clone(), true
}

// Pending returns the count of non-terminal contexts.
func (s *Supervisor) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, c := range s.byCID {
		if !c.Terminal {
			count++
		}
	}
	return count
}

func (s *Supervisor) sweepLoop() {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		s.sweep()
	}
}

// sweep advances idle non-terminal contexts to terminal, then evicts
// contexts that have sat terminal past the grace window.
func (s *Supervisor) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var toEvict []string
	for cid, c := range s.byCID {
		if !c.Terminal && now.Sub(c.LastEventAt) >= s.idleTTL {
			c.Terminal = true
			c.terminalAt = now
		}
		if c.Terminal && now.Sub(c.terminalAt) >= s.grace {
			toEvict = append(toEvict, cid)
		}
	}
	for _, cid := range toEvict {
		delete(s.byCID, cid)
	}
	if len(toEvict) > 0 {
		s.order = removeAll(s.order, toEvict)
	}
}

func removeAll(order []string, remove []string) []string {
	removeSet := make(map[string]bool, len(remove))
	for _, r := range remove {
		removeSet[r] = true
	}
	out := order[:0]
	for _, id := range order {
		if !removeSet[id] {
			out = append(out, id)
		}
	}
	return out
}
