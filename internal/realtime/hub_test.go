package realtime

import (
    "context"
    "testing"
    "time"

    "github.com/redis/go-redis/v9"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/mano-pro/internal/queue"
)

func TestPublishReachesProjectAndRecipientTopics(t *testing.T) {
    h := NewHub(nil)
    projectCh, unsubProject := h.Subscribe(ProjectTopic("pr-1"))
    defer unsubProject()
    userCh, unsubUser := h.Subscribe(UserTopic("a-1"))
    defer unsubUser()

    ev := queue.Event{Type: queue.ProjectUpdated, ProjectID: "pr-1", Recipients: []string{"a-1"}}
    require.NoError(t, h.Publish(context.Background(), ev))

    select {
    case m := <-projectCh:
        require.Equal(t, int64(1), m.ID)
        require.Equal(t, queue.ProjectUpdated, m.Type)
    case <-time.After(time.Second):
        t.Fatal("no project message")
    }
    select {
    case m := <-userCh:
        require.Equal(t, "pr-1", m.Event.ProjectID)
    case <-time.After(time.Second):
        t.Fatal("no user message")
    }
}

func TestReplayFromBacklog(t *testing.T) {
    h := NewHub(nil)
    ctx := context.Background()
    for i := 0; i < 3; i++ {
        require.NoError(t, h.Broadcast(ctx, "project:x", queue.Event{Type: queue.ChatMessagePosted}))
    }
    msgs, err := h.ReplayFrom(ctx, "project:x", 1)
    require.NoError(t, err)
    require.Len(t, msgs, 2)
    require.Equal(t, int64(2), msgs[0].ID)
    require.Equal(t, int64(3), msgs[1].ID)

    msgs, err = h.ReplayFrom(ctx, "project:other", 0)
    require.NoError(t, err)
    require.Empty(t, msgs)
}

func TestUnsubscribeClosesChannelOnce(t *testing.T) {
    h := NewHub(nil)
    ch, unsub := h.Subscribe("user:u")
    unsub()
    unsub()
    _, ok := <-ch
    require.False(t, ok)
    require.NoError(t, h.Broadcast(context.Background(), "user:u", queue.Event{Type: queue.ProjectUpdated}))
}

func TestBroadcastWithoutStreamDeliversNothing(t *testing.T) {
    rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
    defer rdb.Close()
    h := NewHub(rdb)
    ch, unsub := h.Subscribe("project:x")
    defer unsub()

    err := h.Broadcast(context.Background(), "project:x", queue.Event{Type: queue.ProjectUpdated})
    require.Error(t, err)
    select {
    case m := <-ch:
        t.Fatalf("unexpected message %d", m.ID)
    default:
    }
    require.Empty(t, h.backlog["project:x"])
    require.Zero(t, h.seq["project:x"])
}

func TestParseLastEventID(t *testing.T) {
    require.Equal(t, int64(0), ParseLastEventID(""))
    require.Equal(t, int64(0), ParseLastEventID("abc"))
    require.Equal(t, int64(0), ParseLastEventID("-4"))
    require.Equal(t, int64(42), ParseLastEventID("42"))
}
