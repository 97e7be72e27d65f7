package handler

import (
    "context"
    "encoding/json"
    "fmt"
    "log"
    "net/http"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/mano-pro/internal/middleware"
    "github.com/iliyamo/mano-pro/internal/realtime"
    "github.com/iliyamo/mano-pro/internal/service"
)

// Streams is what the SSE endpoints need from the realtime hub.
type Streams interface {
    Subscribe(topic string) (<-chan realtime.Message, func())
    ReplayFrom(ctx context.Context, topic string, lastID int64) ([]realtime.Message, error)
}

// EventsHandler streams realtime updates as Server-Sent Events.
type EventsHandler struct {
    Hub       Streams
    Projects  *service.ProjectService
    Heartbeat time.Duration
}

func NewEventsHandler(hub Streams, svc *service.Services) *EventsHandler {
    return &EventsHandler{Hub: hub, Projects: svc.Projects, Heartbeat: 25 * time.Second}
}

// Mine streams the caller's personal topic.
func (h *EventsHandler) Mine(c echo.Context) error {
    return h.stream(c, realtime.UserTopic(middleware.UserID(c)))
}

// Project streams a project's topic to its participants.
func (h *EventsHandler) Project(c echo.Context) error {
    ctx, cancel := reqCtx(c)
    _, err := h.Projects.Get(ctx, actorFrom(c), c.Param("id"))
    cancel()
    if err != nil {
        return respondError(c, err)
    }
    return h.stream(c, realtime.ProjectTopic(c.Param("id")))
}

// stream subscribes before replaying so nothing published in between is
// lost; replayed ids are skipped when they arrive live as well.
func (h *EventsHandler) stream(c echo.Context, topic string) error {
    ch, unsubscribe := h.Hub.Subscribe(topic)
    defer unsubscribe()

    ctx := c.Request().Context()
    last := realtime.ParseLastEventID(c.Request().Header.Get("Last-Event-ID"))
    backlog, err := h.Hub.ReplayFrom(ctx, topic, last)
    if err != nil {
        log.Printf("events: replay %s: %v", topic, err)
    }

    res := c.Response()
    res.Header().Set(echo.HeaderContentType, "text/event-stream")
    res.Header().Set(echo.HeaderCacheControl, "no-cache")
    res.Header().Set(echo.HeaderConnection, "keep-alive")
    res.Header().Set("X-Accel-Buffering", "no")
    res.WriteHeader(http.StatusOK)
    if _, err := fmt.Fprint(res, ": connected\n\n"); err != nil {
        return nil
    }
    res.Flush()

    for _, m := range backlog {
        if m.ID <= last {
            continue
        }
        if err := writeFrame(res, m); err != nil {
            return nil
        }
        last = m.ID
    }
    res.Flush()

    ticker := time.NewTicker(h.Heartbeat)
    defer ticker.Stop()
    for {
        select {
        case <-ctx.Done():
            return nil
        case <-ticker.C:
            if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
                return nil
            }
            res.Flush()
        case m, ok := <-ch:
            if !ok {
                return nil
            }
            if m.ID <= last {
                continue
            }
            if err := writeFrame(res, m); err != nil {
                return nil
            }
            last = m.ID
            res.Flush()
        }
    }
}

func writeFrame(w http.ResponseWriter, m realtime.Message) error {
    data, err := json.Marshal(m.Event)
    if err != nil {
        return err
    }
    _, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", m.ID, m.Type, data)
    return err
}
