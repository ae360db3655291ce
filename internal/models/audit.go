package models

import "time"

type AuditOutcome string

const (
	AuditOutcomeSucceeded AuditOutcome = "succeeded"
	AuditOutcomeFailed    AuditOutcome = "failed"
)

type AuditEvent struct {
	ID          string       `json:"id"`
	ActorID     string       `json:"actorId"`
	ActorEmail  string       `json:"actorEmail"`
	TargetID    string       `json:"targetId"`
	TargetEmail string       `json:"targetEmail"`
	Action      AdminAction  `json:"action"`
	Outcome     AuditOutcome `json:"outcome"`
	Detail      string       `json:"detail"`
	RequestID   string       `json:"requestId"`
	OccurredAt  time.Time    `json:"occurredAt"`
}
