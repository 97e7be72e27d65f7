package service

import (
    "context"
    "strings"

    "github.com/iliyamo/mano-pro/internal/model"
    "github.com/iliyamo/mano-pro/internal/queue"
)

// ChatService is the append-only conversation attached to a project.
type ChatService struct{ *base }

func (s *ChatService) project(ctx context.Context, actor Actor, projectID string) (model.Project, error) {
    p, err := s.store.Projects.GetByID(ctx, projectID)
    if err != nil {
        return model.Project{}, err
    }
    if !p.IsParticipant(actor.ID) && !actor.IsAdmin() {
        return model.Project{}, ErrForbidden
    }
    return p, nil
}

// Send posts a message from one project party. Text or photos are required.
func (s *ChatService) Send(ctx context.Context, actor Actor, projectID, text string, photos []string) (m model.ChatMessage, err error) {
    ctx, end := s.span(ctx, "chat.send")
    defer func() { end(&err) }()

    text = strings.TrimSpace(text)
    if text == "" && len(photos) == 0 {
        return model.ChatMessage{}, invalid("message or photos required")
    }
    p, err := s.project(ctx, actor, projectID)
    if err != nil {
        return model.ChatMessage{}, err
    }
    if !p.IsParticipant(actor.ID) {
        return model.ChatMessage{}, ErrForbidden
    }
    m = model.ChatMessage{
        ID:         s.newID(),
        ProjectID:  p.ID,
        SenderID:   actor.ID,
        SenderName: s.displayName(ctx, actor.ID),
        Message:    text,
        Timestamp:  s.now(),
        Photos:     model.StringList(photos),
    }
    if m.Photos == nil {
        m.Photos = model.StringList{}
    }
    if err := s.store.Chat.Append(ctx, &m); err != nil {
        return model.ChatMessage{}, err
    }
    s.publish(ctx, queue.Event{
        Type:       queue.ChatMessagePosted,
        ProjectID:  p.ID,
        ActorID:    actor.ID,
        Recipients: []string{p.Counterpart(actor.ID)},
        Title:      m.SenderName,
        Message:    m.Message,
        Payload:    m,
    })
    return m, nil
}

// List returns the conversation oldest first.
func (s *ChatService) List(ctx context.Context, actor Actor, projectID string) ([]model.ChatMessage, error) {
    if _, err := s.project(ctx, actor, projectID); err != nil {
        return nil, err
    }
    return s.store.Chat.ListByProject(ctx, projectID)
}

// MarkRead marks every message sent by the other party as read.
func (s *ChatService) MarkRead(ctx context.Context, actor Actor, projectID string) (int64, error) {
    p, err := s.project(ctx, actor, projectID)
    if err != nil {
        return 0, err
    }
    if !p.IsParticipant(actor.ID) {
        return 0, ErrForbidden
    }
    return s.store.Chat.MarkRead(ctx, projectID, actor.ID)
}
