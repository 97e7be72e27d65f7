package service

import (
    "context"
    "errors"
    "fmt"
    "strings"

    "github.com/iliyamo/mano-pro/internal/lifecycle"
    "github.com/iliyamo/mano-pro/internal/model"
    "github.com/iliyamo/mano-pro/internal/queue"
    "github.com/iliyamo/mano-pro/internal/repository"
)

// ProjectService runs a project from acceptance to completion.
type ProjectService struct{ *base }

// load fetches a project the actor takes part in.
func (s *ProjectService) load(ctx context.Context, actor Actor, id string) (model.Project, error) {
    p, err := s.store.Projects.GetByID(ctx, id)
    if err != nil {
        return model.Project{}, err
    }
    if !p.IsParticipant(actor.ID) && !actor.IsAdmin() {
        return model.Project{}, ErrForbidden
    }
    return p, nil
}

// Get returns the project with both parties' profiles and its timeline,
// oldest entry first.
func (s *ProjectService) Get(ctx context.Context, actor Actor, id string) (model.Project, error) {
    p, err := s.load(ctx, actor, id)
    if err != nil {
        return model.Project{}, err
    }
    if g, err := s.store.Users.GetByID(ctx, p.GestionnaireID); err == nil {
        p.Gestionnaire = &g
    } else if !errors.Is(err, repository.ErrNotFound) {
        return model.Project{}, err
    }
    if a, err := s.store.Users.GetByID(ctx, p.ArtisanID); err == nil {
        p.Artisan = &a
    } else if !errors.Is(err, repository.ErrNotFound) {
        return model.Project{}, err
    }
    p.Timeline, err = s.store.Timeline.ListByProject(ctx, p.ID)
    if err != nil {
        return model.Project{}, err
    }
    return p, nil
}

// List returns the actor's projects; admins see all of them.
func (s *ProjectService) List(ctx context.Context, actor Actor) ([]model.Project, error) {
    if actor.IsAdmin() {
        return s.store.Projects.ListAll(ctx)
    }
    return s.store.Projects.ListForUser(ctx, actor.ID)
}

// Timeline returns the project's entries, oldest first.
func (s *ProjectService) Timeline(ctx context.Context, actor Actor, id string) ([]model.TimelineEntry, error) {
    if _, err := s.load(ctx, actor, id); err != nil {
        return nil, err
    }
    return s.store.Timeline.ListByProject(ctx, id)
}

// UpdateStatus advances a project by one step and appends exactly one
// status_change entry. Completing a project stamps its completion date,
// marks the emergency completed and credits the artisan. The paid status is
// only reachable through payment processing.
func (s *ProjectService) UpdateStatus(ctx context.Context, actor Actor, id string, to model.ProjectStatus) (p model.Project, err error) {
    ctx, end := s.span(ctx, "projects.update_status")
    defer func() { end(&err) }()

    switch to {
    case model.ProjectInProgress, model.ProjectCompleted:
    case model.ProjectPaid:
        return model.Project{}, invalid("status paid is set by payment processing")
    default:
        return model.Project{}, invalid("unknown project status %q", to)
    }
    author := s.displayName(ctx, actor.ID)

    var entry model.TimelineEntry
    err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
        cur, err := s.load(ctx, actor, id)
        if err != nil {
            return err
        }
        now := s.now()
        p, entry, err = lifecycle.AdvanceProject(cur, to, author, now, s.newID())
        if err != nil {
            return err
        }
        if err := s.store.Projects.Update(ctx, &p); err != nil {
            return err
        }
        if err := s.store.Timeline.Append(ctx, &entry); err != nil {
            return err
        }
        if to != model.ProjectCompleted {
            return nil
        }
        em, err := s.store.Emergencies.GetByID(ctx, p.EmergencyID)
        if err != nil {
            return err
        }
        if em.Status == model.EmergencyInProgress {
            em.Status = model.EmergencyCompleted
            if err := s.store.Emergencies.Update(ctx, &em); err != nil {
                return err
            }
        }
        return s.store.Users.IncrementCompleted(ctx, p.ArtisanID)
    })
    if err != nil {
        return model.Project{}, err
    }
    s.publish(ctx, queue.Event{
        Type:        queue.ProjectUpdated,
        EmergencyID: p.EmergencyID,
        ProjectID:   p.ID,
        ActorID:     actor.ID,
        Recipients:  []string{p.GestionnaireID, p.ArtisanID},
        Title:       p.Title,
        Message:     entry.Message,
        Payload:     entry,
    })
    return p, nil
}

// AddPhotos appends photos to a phase and records a photo_upload entry.
func (s *ProjectService) AddPhotos(ctx context.Context, actor Actor, id string, phase model.PhotoPhase, urls []string) (p model.Project, err error) {
    if !phase.Valid() {
        return model.Project{}, invalid("phase must be before, during or after")
    }
    if len(urls) == 0 {
        return model.Project{}, invalid("photos are required")
    }
    author := s.displayName(ctx, actor.ID)

    var entry model.TimelineEntry
    err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
        var err error
        p, err = s.load(ctx, actor, id)
        if err != nil {
            return err
        }
        p.AddPhotos(phase, urls)
        if err := s.store.Projects.Update(ctx, &p); err != nil {
            return err
        }
        entry = model.TimelineEntry{
            ID:        s.newID(),
            ProjectID: p.ID,
            Type:      model.TimelinePhotoUpload,
            Message:   fmt.Sprintf("%d photo(s) added (%s)", len(urls), phase),
            Author:    author,
            Timestamp: s.now(),
            Photos:    model.StringList(urls),
        }
        return s.store.Timeline.Append(ctx, &entry)
    })
    if err != nil {
        return model.Project{}, err
    }
    s.publish(ctx, queue.Event{
        Type:       queue.ProjectUpdated,
        ProjectID:  p.ID,
        ActorID:    actor.ID,
        Recipients: []string{p.Counterpart(actor.ID)},
        Title:      p.Title,
        Message:    entry.Message,
        Payload:    entry,
    })
    return p, nil
}

// AddNote appends a free-form message entry to the timeline.
func (s *ProjectService) AddNote(ctx context.Context, actor Actor, id, message string) (model.TimelineEntry, error) {
    message = strings.TrimSpace(message)
    if message == "" {
        return model.TimelineEntry{}, invalid("message is required")
    }
    p, err := s.load(ctx, actor, id)
    if err != nil {
        return model.TimelineEntry{}, err
    }
    entry := model.TimelineEntry{
        ID:        s.newID(),
        ProjectID: p.ID,
        Type:      model.TimelineMessage,
        Message:   message,
        Author:    s.displayName(ctx, actor.ID),
        Timestamp: s.now(),
        Photos:    model.StringList{},
    }
    if err := s.store.Timeline.Append(ctx, &entry); err != nil {
        return model.TimelineEntry{}, err
    }
    s.publish(ctx, queue.Event{
        Type:       queue.ProjectUpdated,
        ProjectID:  p.ID,
        ActorID:    actor.ID,
        Recipients: []string{p.Counterpart(actor.ID)},
        Title:      p.Title,
        Message:    message,
        Payload:    entry,
    })
    return entry, nil
}

// Review lets the gestionnaire rate a finished project once. The artisan's
// rating becomes the mean of all their reviewed projects.
func (s *ProjectService) Review(ctx context.Context, actor Actor, id string, rating int, review string) (p model.Project, err error) {
    if rating < 1 || rating > 5 {
        return model.Project{}, invalid("rating must be between 1 and 5")
    }
    review = strings.TrimSpace(review)
    err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
        var err error
        p, err = s.store.Projects.GetByID(ctx, id)
        if err != nil {
            return err
        }
        if p.GestionnaireID != actor.ID {
            return ErrForbidden
        }
        if p.Status != model.ProjectCompleted && p.Status != model.ProjectPaid {
            return fmt.Errorf("%w: project is not finished", lifecycle.ErrInvalidTransition)
        }
        if p.Rating != nil {
            return fmt.Errorf("%w: project already reviewed", repository.ErrConflict)
        }
        p.Rating = &rating
        p.Review = &review
        if err := s.store.Projects.Update(ctx, &p); err != nil {
            return err
        }
        all, err := s.store.Projects.ListForUser(ctx, p.ArtisanID)
        if err != nil {
            return err
        }
        var sum, n int
        for _, x := range all {
            if x.ArtisanID == p.ArtisanID && x.Rating != nil {
                sum += *x.Rating
                n++
            }
        }
        if n == 0 {
            return nil
        }
        return s.store.Users.SetRating(ctx, p.ArtisanID, float64(sum)/float64(n))
    })
    if err != nil {
        return model.Project{}, err
    }
    return p, nil
}
