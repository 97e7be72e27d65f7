// Package queue defines the domain events exchanged over the message broker
// and the consumer that turns them into user notifications.
package queue

import (
    "context"
    "time"
)

// Event types published by the services.
const (
    EmergencyCreated  = "emergency.created"
    ProposalSubmitted = "proposal.submitted"
    ProposalAccepted  = "proposal.accepted"
    ProposalRejected  = "proposal.rejected"
    ProjectUpdated    = "project.updated"
    ChatMessagePosted = "chat.message"
    PaymentRequested  = "payment.requested"
    PaymentCompleted  = "payment.completed"
    EmergencyClosed   = "emergency.closed"
)

// Event carries enough context for consumers to notify recipients without
// querying the primary database.
type Event struct {
    Type        string    `json:"type"`
    EmergencyID string    `json:"emergency_id,omitempty"`
    ProposalID  string    `json:"proposal_id,omitempty"`
    ProjectID   string    `json:"project_id,omitempty"`
    PaymentID   string    `json:"payment_id,omitempty"`
    ActorID     string    `json:"actor_id"`
    Recipients  []string  `json:"recipients"`
    Title       string    `json:"title"`
    Message     string    `json:"message"`
    Payload     any       `json:"payload,omitempty"`
    OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher delivers an event to downstream consumers.
type Publisher interface {
    Publish(ctx context.Context, ev Event) error
}

// Fanout publishes to every target and returns the first error after all
// targets were tried.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
    var first error
    for _, p := range f {
        if p == nil {
            continue
        }
        if err := p.Publish(ctx, ev); err != nil && first == nil {
            first = err
        }
    }
    return first
}
