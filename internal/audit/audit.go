// Package audit records confirmed admin status changes on a Redis stream.
// The auditor binary drains the stream into Postgres.
package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"accountdesk/portal/internal/models"
)

var ErrInvalidEvent = errors.New("audit: invalid event")

type Publisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewPublisher returns nil when client is nil; a nil Publisher drops events.
func NewPublisher(client *redis.Client, stream string, maxLen int64) *Publisher {
	if client == nil {
		return nil
	}
	return &Publisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *Publisher) Publish(ctx context.Context, event models.AuditEvent) error {
	if p == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: Encode(event),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}

// Trim caps the stream at its configured length.
func (p *Publisher) Trim(ctx context.Context) (int64, error) {
	if p == nil || p.maxLen <= 0 {
		return 0, nil
	}
	n, err := p.client.XTrimMaxLenApprox(ctx, p.stream, p.maxLen, 0).Result()
	if err != nil {
		return 0, fmt.Errorf("trim audit stream: %w", err)
	}
	return n, nil
}

func Encode(e models.AuditEvent) map[string]any {
	return map[string]any{
		"id":           e.ID,
		"actor_id":     e.ActorID,
		"actor_email":  e.ActorEmail,
		"target_id":    e.TargetID,
		"target_email": e.TargetEmail,
		"action":       string(e.Action),
		"outcome":      string(e.Outcome),
		"detail":       e.Detail,
		"request_id":   e.RequestID,
		"occurred_at":  e.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
}

// Decode reverses Encode for values read back from the stream.
func Decode(values map[string]any) (models.AuditEvent, error) {
	field := func(name string) string {
		s, _ := values[name].(string)
		return s
	}

	e := models.AuditEvent{
		ID:          field("id"),
		ActorID:     field("actor_id"),
		ActorEmail:  field("actor_email"),
		TargetID:    field("target_id"),
		TargetEmail: field("target_email"),
		Action:      models.AdminAction(field("action")),
		Outcome:     models.AuditOutcome(field("outcome")),
		Detail:      field("detail"),
		RequestID:   field("request_id"),
	}

	if e.ID == "" || e.ActorID == "" || e.TargetID == "" {
		return models.AuditEvent{}, fmt.Errorf("%w: missing id", ErrInvalidEvent)
	}
	if !e.Action.Valid() {
		return models.AuditEvent{}, fmt.Errorf("%w: action %q", ErrInvalidEvent, e.Action)
	}
	if e.Outcome != models.AuditOutcomeSucceeded && e.Outcome != models.AuditOutcomeFailed {
		return models.AuditEvent{}, fmt.Errorf("%w: outcome %q", ErrInvalidEvent, e.Outcome)
	}

	at, err := time.Parse(time.RFC3339Nano, field("occurred_at"))
	if err != nil {
		return models.AuditEvent{}, fmt.Errorf("%w: occurred_at: %v", ErrInvalidEvent, err)
	}
	e.OccurredAt = at
	return e, nil
}
