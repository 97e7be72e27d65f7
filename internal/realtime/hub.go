// Package realtime fans domain events out to Server-Sent-Event subscribers.
package realtime

import (
    "context"
    "encoding/json"
    "fmt"
    "strconv"
    "sync"
    "time"

    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/mano-pro/internal/queue"
)

// Message is one frame of an event stream. ID increases per topic.
type Message struct {
    ID    int64       `json:"id"`
    Type  string      `json:"type"`
    Event queue.Event `json:"data"`
}

type subscriber struct {
    ch chan Message
}

// Hub keeps subscribers per topic. With Redis, every message is also appended
// to a per-topic list so reconnecting clients can replay what they missed;
// without it a bounded in-memory backlog serves the same purpose.
type Hub struct {
    mu          sync.RWMutex
    subscribers map[string][]*subscriber
    rdb         *redis.Client
    ttl         time.Duration

    seq     map[string]int64
    backlog map[string][]Message
    keep    int
}

func NewHub(rdb *redis.Client) *Hub {
    return &Hub{
        subscribers: make(map[string][]*subscriber),
        rdb:         rdb,
        ttl:         24 * time.Hour,
        seq:         make(map[string]int64),
        backlog:     make(map[string][]Message),
        keep:        200,
    }
}

func ProjectTopic(id string) string { return "project:" + id }
func UserTopic(id string) string    { return "user:" + id }

func streamKey(topic string) string { return "events:stream:" + topic }

func (h *Hub) Subscribe(topic string) (<-chan Message, func()) {
    h.mu.Lock()
    defer h.mu.Unlock()

    sub := &subscriber{ch: make(chan Message, 256)}
    h.subscribers[topic] = append(h.subscribers[topic], sub)

    var once sync.Once
    unsub := func() {
        once.Do(func() {
            h.mu.Lock()
            defer h.mu.Unlock()
            subs := h.subscribers[topic]
            for i, s := range subs {
                if s == sub {
                    h.subscribers[topic] = append(subs[:i], subs[i+1:]...)
                    close(sub.ch)
                    break
                }
            }
            if len(h.subscribers[topic]) == 0 {
                delete(h.subscribers, topic)
            }
        })
    }
    return sub.ch, unsub
}

// Publish implements queue.Publisher: the event goes to the project topic and
// to each recipient's user topic.
func (h *Hub) Publish(ctx context.Context, ev queue.Event) error {
    var topics []string
    if ev.ProjectID != "" {
        topics = append(topics, ProjectTopic(ev.ProjectID))
    }
    for _, r := range ev.Recipients {
        if r != "" {
            topics = append(topics, UserTopic(r))
        }
    }
    var first error
    for _, t := range topics {
        if err := h.Broadcast(ctx, t, ev); err != nil && first == nil {
            first = err
        }
    }
    return first
}

// Broadcast assigns the next id for topic and delivers to live subscribers.
// Slow subscribers drop messages rather than block the publisher. With Redis
// the id is the stream position; when the append fails nothing is delivered,
// since a locally numbered message would collide with stream ids on replay.
func (h *Hub) Broadcast(ctx context.Context, topic string, ev queue.Event) error {
    msg := Message{Type: ev.Type, Event: ev}
    if h.rdb != nil {
        data, err := json.Marshal(msg)
        if err != nil {
            return err
        }
        key := streamKey(topic)
        n, err := h.rdb.RPush(ctx, key, data).Result()
        if err != nil {
            return fmt.Errorf("append stream: %w", err)
        }
        msg.ID = n
        h.rdb.Expire(ctx, key, h.ttl)
    }

    h.mu.Lock()
    defer h.mu.Unlock()
    if h.rdb == nil {
        h.seq[topic]++
        msg.ID = h.seq[topic]
        b := append(h.backlog[topic], msg)
        if len(b) > h.keep {
            b = b[len(b)-h.keep:]
        }
        h.backlog[topic] = b
    }
    for _, sub := range h.subscribers[topic] {
        select {
        case sub.ch <- msg:
        default:
            // drop if full
        }
    }
    return nil
}

// ReplayFrom returns messages of topic with an id greater than lastID.
func (h *Hub) ReplayFrom(ctx context.Context, topic string, lastID int64) ([]Message, error) {
    if lastID < 0 {
        lastID = 0
    }
    if h.rdb != nil {
        items, err := h.rdb.LRange(ctx, streamKey(topic), lastID, -1).Result()
        if err != nil {
            return nil, err
        }
        out := make([]Message, 0, len(items))
        for i, item := range items {
            var m Message
            if err := json.Unmarshal([]byte(item), &m); err != nil {
                continue
            }
            m.ID = lastID + int64(i) + 1
            out = append(out, m)
        }
        return out, nil
    }

    h.mu.RLock()
    defer h.mu.RUnlock()
    var out []Message
    for _, m := range h.backlog[topic] {
        if m.ID > lastID {
            out = append(out, m)
        }
    }
    return out, nil
}

// ParseLastEventID reads the Last-Event-ID header; junk means "from start".
func ParseLastEventID(header string) int64 {
    if header == "" {
        return 0
    }
    id, err := strconv.ParseInt(header, 10, 64)
    if err != nil || id < 0 {
        return 0
    }
    return id
}
