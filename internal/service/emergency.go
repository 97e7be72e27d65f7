package service

import (
    "context"
    "strings"

    "github.com/iliyamo/mano-pro/internal/lifecycle"
    "github.com/iliyamo/mano-pro/internal/model"
    "github.com/iliyamo/mano-pro/internal/queue"
)

// EmergencyService manages the requests gestionnaires post.
type EmergencyService struct{ *base }

type EmergencyInput struct {
    Title          string        `json:"title"`
    Description    string        `json:"description"`
    Address        string        `json:"address"`
    Arrondissement int           `json:"arrondissement"`
    Trade          string        `json:"trade"`
    MaxBudget      int64         `json:"maxBudget"`
    UrgencyLevel   model.Urgency `json:"urgencyLevel"`
    Photos         []string      `json:"photos"`
}

func (in *EmergencyInput) validate() error {
    in.Title = strings.TrimSpace(in.Title)
    in.Description = strings.TrimSpace(in.Description)
    in.Address = strings.TrimSpace(in.Address)
    switch {
    case in.Title == "" || in.Description == "" || in.Address == "":
        return invalid("title, description and address are required")
    case !model.ValidArrondissement(in.Arrondissement):
        return invalid("arrondissement must be between 1 and %d", len(model.Arrondissements))
    case !model.ValidTrade(in.Trade):
        return invalid("unknown trade %q", in.Trade)
    case in.MaxBudget <= 0:
        return invalid("maxBudget must be positive")
    case !in.UrgencyLevel.Valid():
        return invalid("urgencyLevel must be one of low, medium, high, critical")
    }
    return nil
}

func canPost(a Actor) bool { return a.Role == model.RoleGestionnaire || a.IsAdmin() }

// Create posts a new open emergency and notifies the artisans serving it.
func (s *EmergencyService) Create(ctx context.Context, actor Actor, in EmergencyInput) (e model.Emergency, err error) {
    ctx, end := s.span(ctx, "emergencies.create")
    defer func() { end(&err) }()

    if !canPost(actor) {
        return model.Emergency{}, ErrForbidden
    }
    if err := in.validate(); err != nil {
        return model.Emergency{}, err
    }
    e = model.Emergency{
        ID:             s.newID(),
        Title:          in.Title,
        Description:    in.Description,
        Address:        in.Address,
        Arrondissement: in.Arrondissement,
        Trade:          in.Trade,
        MaxBudget:      in.MaxBudget,
        Status:         model.EmergencyOpen,
        CreatedBy:      actor.ID,
        CreatedAt:      s.now(),
        Photos:         model.StringList(in.Photos),
        UrgencyLevel:   in.UrgencyLevel,
    }
    if e.Photos == nil {
        e.Photos = model.StringList{}
    }
    if err := s.store.Emergencies.Create(ctx, &e); err != nil {
        return model.Emergency{}, err
    }

    artisans, lerr := s.store.Users.ListByRole(ctx, model.RoleArtisan)
    if lerr == nil {
        var recipients []string
        for _, a := range artisans {
            if a.Serves(e) {
                recipients = append(recipients, a.ID)
            }
        }
        s.publish(ctx, queue.Event{
            Type:        queue.EmergencyCreated,
            EmergencyID: e.ID,
            ActorID:     actor.ID,
            Recipients:  recipients,
            Title:       "New emergency: " + e.Title,
            Message:     e.Trade + " in arrondissement " + model.Arrondissements[e.Arrondissement-1].Name,
        })
    }
    return e, nil
}

func (s *EmergencyService) Get(ctx context.Context, id string) (model.Emergency, error) {
    return s.store.Emergencies.GetByID(ctx, id)
}

// ListMine returns the actor's own emergencies, newest first.
func (s *EmergencyService) ListMine(ctx context.Context, actor Actor) ([]model.Emergency, error) {
    return s.store.Emergencies.ListByCreator(ctx, actor.ID)
}

// ListOpen returns every open emergency matching f, newest first.
func (s *EmergencyService) ListOpen(ctx context.Context, f model.EmergencyFilter) ([]model.Emergency, error) {
    if f.Urgency != "" && !f.Urgency.Valid() {
        return nil, invalid("unknown urgency %q", f.Urgency)
    }
    return s.store.Emergencies.ListOpen(ctx, f)
}

// ListOpportunities returns the open emergencies an artisan can bid on:
// the emergency's trade must be one of theirs and its arrondissement inside
// their service area. Urgency and search narrow the result further.
func (s *EmergencyService) ListOpportunities(ctx context.Context, actor Actor, f model.EmergencyFilter) ([]model.Emergency, error) {
    if actor.Role != model.RoleArtisan && !actor.IsAdmin() {
        return nil, ErrForbidden
    }
    if f.Urgency != "" && !f.Urgency.Valid() {
        return nil, invalid("unknown urgency %q", f.Urgency)
    }
    if actor.Role == model.RoleArtisan {
        u, err := s.store.Users.GetByID(ctx, actor.ID)
        if err != nil {
            return nil, err
        }
        f.Trades = u.Trades
        f.Arrondissements = u.Arrondissements
    }
    return s.store.Emergencies.ListOpen(ctx, f)
}

// Close lets the owner withdraw an open emergency or archive a completed
// one. Closing an open emergency rejects its pending proposals.
func (s *EmergencyService) Close(ctx context.Context, actor Actor, id string) (e model.Emergency, err error) {
    ctx, end := s.span(ctx, "emergencies.close")
    defer func() { end(&err) }()

    var rejected []model.Proposal
    err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
        cur, err := s.store.Emergencies.GetByID(ctx, id)
        if err != nil {
            return err
        }
        if cur.CreatedBy != actor.ID && !actor.IsAdmin() {
            return ErrForbidden
        }
        if err := lifecycle.EmergencyTransition(cur.Status, model.EmergencyClosed); err != nil {
            return err
        }
        if cur.Status == model.EmergencyOpen {
            props, err := s.store.Proposals.ListByEmergency(ctx, id)
            if err != nil {
                return err
            }
            for _, p := range props {
                if p.Status != model.ProposalPending {
                    continue
                }
                if err := s.store.Proposals.UpdateStatus(ctx, p.ID, model.ProposalRejected); err != nil {
                    return err
                }
                rejected = append(rejected, p)
            }
        }
        cur.Status = model.EmergencyClosed
        if err := s.store.Emergencies.Update(ctx, &cur); err != nil {
            return err
        }
        e = cur
        return nil
    })
    if err != nil {
        return model.Emergency{}, err
    }
    recipients := []string{e.CreatedBy}
    for _, p := range rejected {
        recipients = append(recipients, p.ArtisanID)
    }
    s.publish(ctx, queue.Event{
        Type:        queue.EmergencyClosed,
        EmergencyID: e.ID,
        ActorID:     actor.ID,
        Recipients:  recipients,
        Title:       "Emergency closed",
        Message:     e.Title + " was closed by its owner",
    })
    return e, nil
}

// AddPhotos appends uploaded photo URLs to the owner's emergency.
func (s *EmergencyService) AddPhotos(ctx context.Context, actor Actor, id string, urls []string) (e model.Emergency, err error) {
    if len(urls) == 0 {
        return model.Emergency{}, invalid("photos are required")
    }
    err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
        cur, err := s.store.Emergencies.GetByID(ctx, id)
        if err != nil {
            return err
        }
        if cur.CreatedBy != actor.ID && !actor.IsAdmin() {
            return ErrForbidden
        }
        cur.Photos = append(cur.Photos, urls...)
        if err := s.store.Emergencies.Update(ctx, &cur); err != nil {
            return err
        }
        e = cur
        return nil
    })
    return e, err
}
