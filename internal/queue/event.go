// Package queue defines the domain events exchanged over the message broker,
// the publisher used by the API and the consumer run by cmd/audit-consumer.
package queue

import (
	"fmt"
	"strings"
	"time"
)

// DefaultQueue is the durable queue carrying club events.
const DefaultQueue = "club.events"

// EventKind names what happened.
type EventKind string

const (
	EventUserApproved    EventKind = "user.approved"
	EventUserRejected    EventKind = "user.rejected"
	EventUserDeleted     EventKind = "user.deleted"
	EventUserSelfDeleted EventKind = "user.self_deleted"
	EventRoleChanged     EventKind = "user.role_changed"
	EventChargeCreated   EventKind = "dues.charge_created"
	EventPaymentRecorded EventKind = "dues.payment_recorded"
)

// Event is published after the transaction that produced it has committed.
// It carries enough for downstream consumers to log or notify without
// querying the primary database.
type Event struct {
	Kind         EventKind `json:"kind"`
	ActorID      string    `json:"actor_id"`
	TargetUserID string    `json:"target_user_id,omitempty"`
	BeforeRole   string    `json:"before_role,omitempty"`
	AfterRole    string    `json:"after_role,omitempty"`
	Period       string    `json:"period,omitempty"`
	Amount       int64     `json:"amount,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// Line renders the event as a single human-friendly log line.
func (e Event) Line() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s | actor_id=%s", e.OccurredAt.UTC().Format(time.RFC3339), e.Kind, e.ActorID)
	if e.TargetUserID != "" {
		fmt.Fprintf(&b, " | target_user_id=%s", e.TargetUserID)
	}
	if e.BeforeRole != "" || e.AfterRole != "" {
		fmt.Fprintf(&b, " | role=%s->%s", e.BeforeRole, e.AfterRole)
	}
	if e.Period != "" {
		fmt.Fprintf(&b, " | period=%s", e.Period)
	}
	if e.Amount != 0 {
		fmt.Fprintf(&b, " | amount=%d", e.Amount)
	}
	b.WriteByte('\n')
	return b.String()
}
