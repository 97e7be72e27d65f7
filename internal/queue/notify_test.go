package queue

import (
    "context"
    "errors"
    "fmt"
    "testing"
    "time"

    "github.com/stretchr/testify/require"

    "github.com/iliyamo/mano-pro/internal/model"
)

func counter() func() string {
    n := 0
    return func() string { n++; return fmt.Sprintf("n-%d", n) }
}

func TestNotificationsForSkipsActorAndDuplicates(t *testing.T) {
    at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
    ev := Event{
        Type:        ProposalAccepted,
        EmergencyID: "em-1",
        ProjectID:   "pr-1",
        ActorID:     "g-1",
        Recipients:  []string{"a-1", "g-1", "a-1", ""},
        Title:       "Proposal accepted",
        Message:     "Your proposal was accepted",
        OccurredAt:  at,
    }
    out := NotificationsFor(ev, counter())
    require.Len(t, out, 1)
    require.Equal(t, "a-1", out[0].UserID)
    require.Equal(t, model.NotifyProposalAccepted, out[0].Type)
    require.Equal(t, "pr-1", out[0].RelatedID)
    require.Equal(t, at, out[0].CreatedAt)
    require.False(t, out[0].IsRead)
}

func TestNotificationsForTypes(t *testing.T) {
    cases := map[string]model.NotificationType{
        EmergencyCreated:  model.NotifyNewEmergency,
        ProposalSubmitted: model.NotifyProposalReceived,
        ProjectUpdated:    model.NotifyProjectUpdate,
        PaymentCompleted:  model.NotifyPaymentReceived,
        EmergencyClosed:   model.NotifyProjectUpdate,
    }
    for typ, want := range cases {
        out := NotificationsFor(Event{Type: typ, EmergencyID: "em", Recipients: []string{"u"}}, counter())
        require.Len(t, out, 1, typ)
        require.Equal(t, want, out[0].Type, typ)
        require.Equal(t, "em", out[0].RelatedID)
    }
    require.Empty(t, NotificationsFor(Event{Type: ChatMessagePosted, Recipients: []string{"u"}}, counter()))
}

type recordingWriter struct {
    got  []model.Notification
    fail bool
}

func (w *recordingWriter) Create(_ context.Context, n *model.Notification) error {
    if w.fail {
        return errors.New("boom")
    }
    w.got = append(w.got, *n)
    return nil
}

func TestDirectPublisherWritesNotifications(t *testing.T) {
    w := &recordingWriter{}
    d := Direct{Writer: w, NewID: counter()}
    err := d.Publish(context.Background(), Event{Type: PaymentCompleted, ProjectID: "pr", Recipients: []string{"a", "b"}})
    require.NoError(t, err)
    require.Len(t, w.got, 2)
    require.Equal(t, "n-1", w.got[0].ID)

    w.fail = true
    require.Error(t, d.Publish(context.Background(), Event{Type: PaymentCompleted, Recipients: []string{"a"}}))
}

type stubPublisher struct {
    calls int
    err   error
}

func (s *stubPublisher) Publish(context.Context, Event) error { s.calls++; return s.err }

func TestFanoutTriesEveryTarget(t *testing.T) {
    a := &stubPublisher{err: errors.New("down")}
    b := &stubPublisher{}
    err := Fanout{a, nil, b}.Publish(context.Background(), Event{Type: ProjectUpdated})
    require.EqualError(t, err, "down")
    require.Equal(t, 1, a.calls)
    require.Equal(t, 1, b.calls)
}

func TestConsumerHandleRejectsBadJSON(t *testing.T) {
    c := &Consumer{Writer: &recordingWriter{}, NewID: counter()}
    require.Error(t, c.handle(context.Background(), []byte("{")))
    require.NoError(t, c.handle(context.Background(), []byte(`{"type":"proposal.submitted","recipients":["g"]}`)))
}
