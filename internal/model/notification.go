package model

import "time"

type NotificationType string

const (
    NotifyNewEmergency     NotificationType = "new_emergency"
    NotifyProposalReceived NotificationType = "proposal_received"
    NotifyProposalAccepted NotificationType = "proposal_accepted"
    NotifyProjectUpdate    NotificationType = "project_update"
    NotifyPaymentReceived  NotificationType = "payment_received"
)

// Notification is a per-user inbox item derived from a domain event.
type Notification struct {
    ID        string           `db:"id" json:"id"`
    UserID    string           `db:"user_id" json:"userId"`
    Type      NotificationType `db:"type" json:"type"`
    Title     string           `db:"title" json:"title"`
    Message   string           `db:"message" json:"message"`
    IsRead    bool             `db:"is_read" json:"isRead"`
    CreatedAt time.Time        `db:"created_at" json:"createdAt"`
    RelatedID string           `db:"related_id" json:"relatedId,omitempty"`
}
