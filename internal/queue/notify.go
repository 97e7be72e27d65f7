package queue

import (
    "time"

    "github.com/iliyamo/mano-pro/internal/model"
)

var notificationTypes = map[string]model.NotificationType{
    EmergencyCreated:  model.NotifyNewEmergency,
    ProposalSubmitted: model.NotifyProposalReceived,
    ProposalAccepted:  model.NotifyProposalAccepted,
    ProjectUpdated:    model.NotifyProjectUpdate,
    PaymentRequested:  model.NotifyProjectUpdate,
    PaymentCompleted:  model.NotifyPaymentReceived,
    EmergencyClosed:   model.NotifyProjectUpdate,
}

// NotificationsFor maps an event to one inbox item per recipient. Events
// with no inbox counterpart (chat messages, rejections) yield nothing; the
// actor never notifies themself.
func NotificationsFor(ev Event, newID func() string) []model.Notification {
    typ, ok := notificationTypes[ev.Type]
    if !ok {
        return nil
    }
    related := ev.ProjectID
    if related == "" {
        related = ev.EmergencyID
    }
    at := ev.OccurredAt
    if at.IsZero() {
        at = time.Now().UTC()
    }
    seen := map[string]bool{}
    var out []model.Notification
    for _, r := range ev.Recipients {
        if r == "" || r == ev.ActorID || seen[r] {
            continue
        }
        seen[r] = true
        out = append(out, model.Notification{
            ID:        newID(),
            UserID:    r,
            Type:      typ,
            Title:     ev.Title,
            Message:   ev.Message,
            CreatedAt: at,
            RelatedID: related,
        })
    }
    return out
}
