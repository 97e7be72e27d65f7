package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "strings"
    "time"

    "github.com/iliyamo/mano-pro/internal/lifecycle"
    "github.com/iliyamo/mano-pro/internal/model"
    "github.com/iliyamo/mano-pro/internal/queue"
    "github.com/iliyamo/mano-pro/internal/repository"
)

// Gateway settles a payment that is processing and reports the outcome,
// either completed or failed.
type Gateway interface {
    Settle(ctx context.Context, p model.Payment) (model.PaymentStatus, error)
}

// InstantGateway completes every payment immediately.
type InstantGateway struct{}

func (InstantGateway) Settle(context.Context, model.Payment) (model.PaymentStatus, error) {
    return model.PaymentCompleted, nil
}

// PaymentService moves money for completed projects and issues invoices.
type PaymentService struct{ *base }

type PaymentRequest struct {
    Amount      int64  `json:"amount"`
    Description string `json:"description"`
}

// Request opens a pending payment for a completed project. Only the
// project's artisan may ask, and only one payment per project may be
// pending, processing or completed at a time. A zero amount bills the
// agreed project price.
func (s *PaymentService) Request(ctx context.Context, actor Actor, projectID string, in PaymentRequest) (pay model.Payment, err error) {
    ctx, end := s.span(ctx, "payments.request")
    defer func() { end(&err) }()

    if in.Amount < 0 {
        return model.Payment{}, invalid("amount must be positive")
    }
    var project model.Project
    err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
        var err error
        project, err = s.store.Projects.GetByID(ctx, projectID)
        if err != nil {
            return err
        }
        if project.ArtisanID != actor.ID {
            return ErrForbidden
        }
        if project.Status != model.ProjectCompleted {
            return fmt.Errorf("%w: project is not completed", lifecycle.ErrInvalidTransition)
        }
        existing, err := s.store.Payments.ListByProject(ctx, projectID)
        if err != nil {
            return err
        }
        for _, x := range existing {
            if x.Status != model.PaymentFailed {
                return fmt.Errorf("%w: project already has a payment", repository.ErrConflict)
            }
        }
        amount := in.Amount
        if amount == 0 {
            amount = project.Price
        }
        desc := strings.TrimSpace(in.Description)
        if desc == "" {
            desc = "Payment for " + project.Title
        }
        pay = model.Payment{
            ID:             s.newID(),
            ProjectID:      project.ID,
            ArtisanID:      project.ArtisanID,
            GestionnaireID: project.GestionnaireID,
            Amount:         amount,
            Status:         model.PaymentPending,
            CreatedAt:      s.now(),
            Description:    desc,
        }
        return s.store.Payments.Create(ctx, &pay)
    })
    if err != nil {
        return model.Payment{}, err
    }
    s.publish(ctx, queue.Event{
        Type:       queue.PaymentRequested,
        ProjectID:  project.ID,
        PaymentID:  pay.ID,
        ActorID:    actor.ID,
        Recipients: []string{project.GestionnaireID},
        Title:      "Payment requested",
        Message:    fmt.Sprintf("%s requested for %s", formatCents(pay.Amount), project.Title),
    })
    return pay, nil
}

// SettleTimeout bounds the gateway call and the write of its outcome. Both
// ignore the caller's cancellation.
const SettleTimeout = 30 * time.Second

// Process runs a pending payment through the gateway. On completion, in one
// transaction, the payment is stamped, the project becomes paid with a
// payment timeline entry and the emergency is closed. A payment left in
// processing by an interrupted call is settled again.
func (s *PaymentService) Process(ctx context.Context, actor Actor, paymentID string) (pay model.Payment, err error) {
    ctx, end := s.span(ctx, "payments.process")
    defer func() { end(&err) }()

    err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
        cur, err := s.store.Payments.GetByID(ctx, paymentID)
        if err != nil {
            return err
        }
        if cur.GestionnaireID != actor.ID && !actor.IsAdmin() {
            return ErrForbidden
        }
        if cur.Status == model.PaymentProcessing {
            pay = cur
            return nil
        }
        pay, err = lifecycle.AdvancePayment(cur, model.PaymentProcessing, s.now())
        if err != nil {
            return err
        }
        return s.store.Payments.Update(ctx, &pay)
    })
    if err != nil {
        return model.Payment{}, err
    }

    ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), SettleTimeout)
    defer cancel()

    outcome, gerr := s.gateway.Settle(ctx, pay)
    if gerr != nil {
        log.Printf("payments: gateway failed for %s: %v", pay.ID, gerr)
        outcome = model.PaymentFailed
    }

    var project model.Project
    err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
        cur, err := s.store.Payments.GetByID(ctx, paymentID)
        if err != nil {
            return err
        }
        now := s.now()
        pay, err = lifecycle.AdvancePayment(cur, outcome, now)
        if err != nil {
            return err
        }
        if err := s.store.Payments.Update(ctx, &pay); err != nil {
            return err
        }
        if outcome != model.PaymentCompleted {
            return nil
        }
        p, err := s.store.Projects.GetByID(ctx, pay.ProjectID)
        if err != nil {
            return err
        }
        p, _, err = lifecycle.AdvanceProject(p, model.ProjectPaid, lifecycle.SystemAuthor, now, "")
        if err != nil {
            return err
        }
        if err := s.store.Projects.Update(ctx, &p); err != nil {
            return err
        }
        project = p
        entry := model.TimelineEntry{
            ID:        s.newID(),
            ProjectID: p.ID,
            Type:      model.TimelinePayment,
            Message:   fmt.Sprintf("Payment of %s completed", formatCents(pay.Amount)),
            Author:    lifecycle.SystemAuthor,
            Timestamp: now,
            Photos:    model.StringList{},
        }
        if err := s.store.Timeline.Append(ctx, &entry); err != nil {
            return err
        }
        em, err := s.store.Emergencies.GetByID(ctx, p.EmergencyID)
        if err != nil {
            return err
        }
        if em.Status != model.EmergencyCompleted {
            return nil
        }
        em.Status = model.EmergencyClosed
        return s.store.Emergencies.Update(ctx, &em)
    })
    if err != nil {
        return model.Payment{}, err
    }
    if pay.Status == model.PaymentCompleted {
        s.publish(ctx, queue.Event{
            Type:        queue.PaymentCompleted,
            EmergencyID: project.EmergencyID,
            ProjectID:   project.ID,
            PaymentID:   pay.ID,
            ActorID:     actor.ID,
            Recipients:  []string{pay.ArtisanID, pay.GestionnaireID},
            Title:       "Payment received",
            Message:     fmt.Sprintf("%s paid for %s", formatCents(pay.Amount), project.Title),
        })
    }
    return pay, nil
}

// List returns the payments the actor pays or receives.
func (s *PaymentService) List(ctx context.Context, actor Actor) ([]model.Payment, error) {
    return s.store.Payments.ListForUser(ctx, actor.ID)
}

// Summary aggregates the actor's payments for the dashboard.
func (s *PaymentService) Summary(ctx context.Context, actor Actor) (model.PaymentSummary, error) {
    ps, err := s.store.Payments.ListForUser(ctx, actor.ID)
    if err != nil {
        return model.PaymentSummary{}, err
    }
    return lifecycle.Summarize(ps), nil
}

// GenerateInvoice issues the invoice of a completed payment. Calling it
// again returns the existing invoice.
func (s *PaymentService) GenerateInvoice(ctx context.Context, actor Actor, paymentID string) (inv model.Invoice, err error) {
    ctx, end := s.span(ctx, "payments.generate_invoice")
    defer func() { end(&err) }()

    err = s.store.Tx.WithinTx(ctx, func(ctx context.Context) error {
        pay, err := s.store.Payments.GetByID(ctx, paymentID)
        if err != nil {
            return err
        }
        if !pay.IsParticipant(actor.ID) && !actor.IsAdmin() {
            return ErrForbidden
        }
        existing, err := s.store.Invoices.GetByPayment(ctx, paymentID)
        if err == nil {
            inv = existing
            return nil
        }
        if !errors.Is(err, repository.ErrNotFound) {
            return err
        }
        inv, err = lifecycle.NewInvoice(pay, s.newID(), s.now())
        if err != nil {
            return err
        }
        if err := s.store.Invoices.Create(ctx, &inv); err != nil {
            return err
        }
        url := "/v1/invoices/" + inv.ID
        pay.InvoiceURL = &url
        return s.store.Payments.Update(ctx, &pay)
    })
    if err != nil {
        return model.Invoice{}, err
    }
    return inv, nil
}

// GetInvoice returns an invoice to either party of its payment.
func (s *PaymentService) GetInvoice(ctx context.Context, actor Actor, id string) (model.Invoice, error) {
    inv, err := s.store.Invoices.GetByID(ctx, id)
    if err != nil {
        return model.Invoice{}, err
    }
    pay, err := s.store.Payments.GetByID(ctx, inv.PaymentID)
    if err != nil {
        return model.Invoice{}, err
    }
    if !pay.IsParticipant(actor.ID) && !actor.IsAdmin() {
        return model.Invoice{}, ErrForbidden
    }
    return inv, nil
}
