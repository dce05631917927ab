// internal/events/events.go
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event types. The NATS subject is SubjectPrefix + "." + type.
const (
	SubjectPrefix = "trivia"

	PlayerReady     = "player.ready"
	SessionFinished = "session.finished"
	RoundCreated    = "round.created"
)

// Event is the envelope published for every domain event.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	Identity  uuid.UUID       `json:"identity,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// New builds an event with a fresh ID, marshalling payload to JSON.
func New(eventType string, identity uuid.UUID, payload any, at time.Time) (Event, error) {
	ev := Event{
		ID:        uuid.New(),
		Type:      eventType,
		Identity:  identity,
		Timestamp: at.UTC(),
	}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		ev.Payload = data
	}
	return ev, nil
}

// Subject returns the subject the event is published on.
func (e Event) Subject() string {
	return SubjectPrefix + "." + e.Type
}

// Publisher delivers events. Publishing is fire-and-forget from the game's point
// of view; callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// LogPublisher writes events to the logger. Used when no broker is configured.
type LogPublisher struct {
	log logrus.FieldLogger
}

func NewLogPublisher(logger logrus.FieldLogger) *LogPublisher {
	return &LogPublisher{log: logger.WithField("component", "events")}
}

func (p *LogPublisher) Publish(_ context.Context, ev Event) error {
	p.log.WithFields(logrus.Fields{
		"subject":  ev.Subject(),
		"event_id": ev.ID,
		"identity": ev.Identity,
		"payload":  string(ev.Payload),
	}).Debug("event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// Recorder keeps every published event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns the recorded events, optionally filtered by type.
func (r *Recorder) Events(eventType string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if eventType == "" || ev.Type == eventType {
			out = append(out, ev)
		}
	}
	return out
}

// Emit builds and publishes an event, logging instead of returning failures.
func Emit(ctx context.Context, pub Publisher, logger logrus.FieldLogger, eventType string, identity uuid.UUID, payload any, at time.Time) {
	if pub == nil {
		return
	}
	ev, err := New(eventType, identity, payload, at)
	if err == nil {
		err = pub.Publish(ctx, ev)
	}
	if err != nil {
		logger.WithError(err).WithField("type", eventType).Warn("failed to publish event")
	}
}
