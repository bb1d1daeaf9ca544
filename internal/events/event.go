// Package events defines the closed event-type vocabulary, the envelope
// every published message is wrapped in, and a tagged union of typed
// payloads keyed by event_type.
package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope the bus routes. Payload is kept as a typed value
// behind the Payload interface rather than an untyped map, so a schema
// mismatch for a given event_type fails at construction, not at some
// downstream type assertion.
type Event struct {
	EventType     Topic     `json:"event_type"`
	EventID       string    `json:"event_id"`
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
	Source        string    `json:"source"`
	Attempt       int       `json:"attempt"`
	Payload       Payload   `json:"payload"`
}

// Payload is implemented by every concrete event_type's payload struct. The
// EventType method lets New validate that a payload matches the topic it is
// being published under.
type Payload interface {
	EventType() Topic
}

// New stamps event_id (if absent) and timestamp, and validates event_type
// against the closed vocabulary and against the payload's own declared type.
func New(topic Topic, correlationID, source string, payload Payload) (Event, error) {
	if !topic.Valid() {
		return Event{}, ErrUnknownTopic
	}
	if payload != nil && payload.EventType() != topic {
		return Event{}, ErrUnknownTopic
	}
	return Event{
		EventType:     topic,
		EventID:       uuid.NewString(),
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Attempt:       1,
		Payload:       payload,
	}, nil
}

// WithAttempt returns a copy of e with Attempt set, used by the bus when
// redelivering after a failed handler invocation.
func (e Event) WithAttempt(attempt int) Event {
	e.Attempt = attempt
	return e
}

// wireEvent is the JSON-on-the-wire shape used for fallback/remote transport
// and dead-letter persistence, where Payload must round-trip through a
// concrete type selected by EventType.
type wireEvent struct {
	EventType     Topic           `json:"event_type"`
	EventID       string          `json:"event_id"`
	CorrelationID string          `json:"correlation_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Source        string          `json:"source"`
	Attempt       int             `json:"attempt"`
	Payload       json.RawMessage `json:"payload"`
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEvent{
		EventType:     e.EventType,
		EventID:       e.EventID,
		CorrelationID: e.CorrelationID,
		Timestamp:     e.Timestamp,
		Source:        e.Source,
		Attempt:       e.Attempt,
		Payload:       raw,
	})
}

// UnmarshalJSON implements json.Unmarshaler, dispatching Payload decode to
// the concrete type registered for EventType.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	payload, err := DecodePayload(w.EventType, w.Payload)
	if err != nil {
		return err
	}
	e.EventType = w.EventType
	e.EventID = w.EventID
	e.CorrelationID = w.CorrelationID
	e.Timestamp = w.Timestamp
	e.Source = w.Source
	e.Attempt = w.Attempt
	e.Payload = payload
	return nil
}

// DecodePayload unmarshals raw into the concrete Payload type registered for
// topic. Unknown topics return ErrUnknownTopic.
func DecodePayload(topic Topic, raw json.RawMessage) (Payload, error) {
	switch topic {
	case TopicTransactionCreated:
		var p TransactionCreated
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TopicRiskFlagged:
		var p RiskFlagged
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TopicComplianceAction:
		var p ComplianceAction
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TopicOpsAction:
		var p OpsAction
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TopicOpsAlert:
		var p OpsAlert
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TopicCustomerMessage:
		var p CustomerMessage
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TopicLogLine:
		var p LogLine
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TopicUserQuery:
		var p UserQuery
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TopicUserResponse:
		var p UserResponse
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	case TopicPrivacyViolation:
		var p PrivacyViolation
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, ErrUnknownTopic
	}
}
