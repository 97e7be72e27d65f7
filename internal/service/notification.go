package service

import (
    "context"

    "github.com/iliyamo/mano-pro/internal/model"
)

// NotificationService exposes the inbox filled by the events consumer.
type NotificationService struct{ *base }

func (s *NotificationService) List(ctx context.Context, actor Actor) ([]model.Notification, error) {
    return s.store.Notifications.ListByUser(ctx, actor.ID)
}

func (s *NotificationService) MarkRead(ctx context.Context, actor Actor, id string) error {
    return s.store.Notifications.MarkRead(ctx, id, actor.ID)
}
