package service

import (
    "context"
    "fmt"
    "strings"

    "github.com/iliyamo/mano-pro/internal/lifecycle"
    "github.com/iliyamo/mano-pro/internal/model"
    "github.com/iliyamo/mano-pro/internal/queue"
    "github.com/iliyamo/mano-pro/internal/repository"
)

// ProposalService handles bidding and the acceptance that starts a project.
type ProposalService struct{ *base }

type ProposalInput struct {
    Price             int64  `json:"price"`
    Description       string `json:"description"`
    EstimatedDuration string `json:"estimatedDuration"`
}

// Submit records an artisan's bid on an open emergency. An artisan bids at
// most once per emergency.
func (s *ProposalService) Submit(ctx context.Context, actor Actor, emergencyID string, in ProposalInput) (p model.Proposal, err error) {
    ctx, end := s.span(ctx, "proposals.submit")
    defer func() { end(&err) }()

    if actor.Role != model.RoleArtisan {
        return model.Proposal{}, ErrForbidden
    }
    in.Description = strings.TrimSpace(in.Description)
    in.EstimatedDuration = strings.TrimSpace(in.EstimatedDuration)
    if in.Price <= 0 {
        return model.Proposal{}, invalid("price must be positive")
    }
    if in.Description == "" || in.EstimatedDuration == "" {
        return model.Proposal{}, invalid("description and estimatedDuration are required")
    }
    artisan, err := s.store.Users.GetByID(ctx, actor.ID)
    if err != nil {
        return model.Proposal{}, err
    }

    var em model.Emergency
    err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
        var err error
        em, err = s.store.Emergencies.GetByID(ctx, emergencyID)
        if err != nil {
            return err
        }
        if em.Status != model.EmergencyOpen {
            return lifecycle.ErrEmergencyNotOpen
        }
        existing, err := s.store.Proposals.ListByEmergency(ctx, emergencyID)
        if err != nil {
            return err
        }
        for _, x := range existing {
            if x.ArtisanID == actor.ID {
                return fmt.Errorf("%w: proposal already submitted", repository.ErrConflict)
            }
        }
        p = model.Proposal{
            ID:                s.newID(),
            EmergencyID:       emergencyID,
            ArtisanID:         actor.ID,
            ArtisanName:       artisan.DisplayName(),
            ArtisanCompany:    artisan.Company,
            ArtisanRating:     artisan.Rating,
            Price:             in.Price,
            Description:       in.Description,
            EstimatedDuration: in.EstimatedDuration,
            Status:            model.ProposalPending,
            CreatedAt:         s.now(),
        }
        return s.store.Proposals.Create(ctx, &p)
    })
    if err != nil {
        return model.Proposal{}, err
    }
    s.publish(ctx, queue.Event{
        Type:        queue.ProposalSubmitted,
        EmergencyID: em.ID,
        ProposalID:  p.ID,
        ActorID:     actor.ID,
        Recipients:  []string{em.CreatedBy},
        Title:       "New proposal for " + em.Title,
        Message:     fmt.Sprintf("%s offers %s in %s", p.ArtisanName, formatCents(p.Price), p.EstimatedDuration),
    })
    return p, nil
}

// ListForEmergency shows the owner every bid; an artisan only sees theirs.
func (s *ProposalService) ListForEmergency(ctx context.Context, actor Actor, emergencyID string) ([]model.Proposal, error) {
    em, err := s.store.Emergencies.GetByID(ctx, emergencyID)
    if err != nil {
        return nil, err
    }
    all, err := s.store.Proposals.ListByEmergency(ctx, emergencyID)
    if err != nil {
        return nil, err
    }
    if em.CreatedBy == actor.ID || actor.IsAdmin() {
        return all, nil
    }
    if actor.Role != model.RoleArtisan {
        return nil, ErrForbidden
    }
    mine := []model.Proposal{}
    for _, p := range all {
        if p.ArtisanID == actor.ID {
            mine = append(mine, p)
        }
    }
    return mine, nil
}

func (s *ProposalService) ListMine(ctx context.Context, actor Actor) ([]model.Proposal, error) {
    return s.store.Proposals.ListByArtisan(ctx, actor.ID)
}

// Accept accepts one proposal of the actor's emergency. In a single
// transaction, with the emergency row locked, it rejects the sibling
// proposals, moves the emergency to in_progress and creates exactly one
// project with its first timeline entry. Accepting the already accepted
// proposal again returns its project and changes nothing.
func (s *ProposalService) Accept(ctx context.Context, actor Actor, proposalID string) (project model.Project, err error) {
    ctx, end := s.span(ctx, "proposals.accept")
    defer func() { end(&err) }()

    var acc lifecycle.Acceptance
    replayed := false
    err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
        target, err := s.store.Proposals.GetByID(ctx, proposalID)
        if err != nil {
            return err
        }
        em, err := s.store.Emergencies.GetByID(ctx, target.EmergencyID)
        if err != nil {
            return err
        }
        if em.CreatedBy != actor.ID && !actor.IsAdmin() {
            return ErrForbidden
        }
        props, err := s.store.Proposals.ListByEmergency(ctx, em.ID)
        if err != nil {
            return err
        }
        for _, p := range props {
            if p.ID == proposalID && p.Status == model.ProposalAccepted {
                acc.Project, err = s.store.Projects.GetByProposal(ctx, proposalID)
                replayed = err == nil
                return err
            }
        }
        acc, err = lifecycle.Accept(em, props, proposalID, s.now(), s.newID)
        if err != nil {
            return err
        }
        if err := s.store.Proposals.UpdateStatus(ctx, acc.Accepted.ID, model.ProposalAccepted); err != nil {
            return err
        }
        for _, r := range acc.Rejected {
            if err := s.store.Proposals.UpdateStatus(ctx, r.ID, model.ProposalRejected); err != nil {
                return err
            }
        }
        if err := s.store.Emergencies.Update(ctx, &acc.Emergency); err != nil {
            return err
        }
        if err := s.store.Projects.Create(ctx, &acc.Project); err != nil {
            return err
        }
        return s.store.Timeline.Append(ctx, &acc.Entry)
    })
    if err != nil {
        return model.Project{}, err
    }
    if replayed {
        return acc.Project, nil
    }

    s.publish(ctx, queue.Event{
        Type:        queue.ProposalAccepted,
        EmergencyID: acc.Emergency.ID,
        ProposalID:  acc.Accepted.ID,
        ProjectID:   acc.Project.ID,
        ActorID:     actor.ID,
        Recipients:  []string{acc.Accepted.ArtisanID},
        Title:       "Proposal accepted",
        Message:     "Your proposal for " + acc.Emergency.Title + " was accepted",
    })
    for _, r := range acc.Rejected {
        s.publish(ctx, queue.Event{
            Type:        queue.ProposalRejected,
            EmergencyID: acc.Emergency.ID,
            ProposalID:  r.ID,
            ActorID:     actor.ID,
            Recipients:  []string{r.ArtisanID},
            Title:       "Proposal not retained",
            Message:     "Another proposal was accepted for " + acc.Emergency.Title,
        })
    }
    return acc.Project, nil
}

// Reject declines a single pending proposal of the actor's emergency.
func (s *ProposalService) Reject(ctx context.Context, actor Actor, proposalID string) (p model.Proposal, err error) {
    var em model.Emergency
    err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
        var err error
        p, err = s.store.Proposals.GetByID(ctx, proposalID)
        if err != nil {
            return err
        }
        em, err = s.store.Emergencies.GetByID(ctx, p.EmergencyID)
        if err != nil {
            return err
        }
        if em.CreatedBy != actor.ID && !actor.IsAdmin() {
            return ErrForbidden
        }
        if err := lifecycle.ProposalTransition(p.Status, model.ProposalRejected); err != nil {
            return err
        }
        p.Status = model.ProposalRejected
        return s.store.Proposals.UpdateStatus(ctx, p.ID, p.Status)
    })
    if err != nil {
        return model.Proposal{}, err
    }
    s.publish(ctx, queue.Event{
        Type:        queue.ProposalRejected,
        EmergencyID: em.ID,
        ProposalID:  p.ID,
        ActorID:     actor.ID,
        Recipients:  []string{p.ArtisanID},
        Title:       "Proposal not retained",
        Message:     "Your proposal for " + em.Title + " was declined",
    })
    return p, nil
}

// formatCents renders an amount in cents as euros, e.g. 45000 -> "450.00 EUR".
func formatCents(c int64) string {
    sign := ""
    if c < 0 {
        sign, c = "-", -c
    }
    return fmt.Sprintf("%s%d.%02d EUR", sign, c/100, c%100)
}
