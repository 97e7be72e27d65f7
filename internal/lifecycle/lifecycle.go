// Package lifecycle holds the status rules of emergencies, proposals,
// projects and payments. Everything here is pure: callers load rows, apply a
// rule and persist the result inside their own transaction.
package lifecycle

import (
    "errors"
    "fmt"
    "strings"
    "time"

    "github.com/iliyamo/mano-pro/internal/model"
)

// ErrInvalidTransition is the root of every rejected status change.
var ErrInvalidTransition = errors.New("invalid status transition")

var (
    ErrEmergencyNotOpen    = fmt.Errorf("%w: emergency is not open", ErrInvalidTransition)
    ErrAlreadyAccepted     = fmt.Errorf("%w: emergency already has an accepted proposal", ErrInvalidTransition)
    ErrProposalNotPending  = fmt.Errorf("%w: proposal is not pending", ErrInvalidTransition)
    ErrPaymentNotCompleted = fmt.Errorf("%w: payment is not completed", ErrInvalidTransition)
)

// ErrUnknownProposal is returned by Accept when the proposal is not among
// the emergency's proposals.
var ErrUnknownProposal = errors.New("proposal does not belong to emergency")

// SystemAuthor signs timeline entries produced by the platform itself.
const SystemAuthor = "System"

var emergencyFlow = map[model.EmergencyStatus][]model.EmergencyStatus{
    model.EmergencyOpen:       {model.EmergencyInProgress, model.EmergencyClosed},
    model.EmergencyInProgress: {model.EmergencyCompleted},
    model.EmergencyCompleted:  {model.EmergencyClosed},
}

var proposalFlow = map[model.ProposalStatus][]model.ProposalStatus{
    model.ProposalPending: {model.ProposalAccepted, model.ProposalRejected},
}

var projectFlow = map[model.ProjectStatus][]model.ProjectStatus{
    model.ProjectAccepted:   {model.ProjectInProgress},
    model.ProjectInProgress: {model.ProjectCompleted},
    model.ProjectCompleted:  {model.ProjectPaid},
}

var paymentFlow = map[model.PaymentStatus][]model.PaymentStatus{
    model.PaymentPending:    {model.PaymentProcessing},
    model.PaymentProcessing: {model.PaymentCompleted, model.PaymentFailed},
}

func allowed[S comparable](flow map[S][]S, from, to S) bool {
    for _, next := range flow[from] {
        if next == to {
            return true
        }
    }
    return false
}

func check[S ~string](flow map[S][]S, kind string, from, to S) error {
    if allowed(flow, from, to) {
        return nil
    }
    return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, kind, from, to)
}

func EmergencyTransition(from, to model.EmergencyStatus) error {
    return check(emergencyFlow, "emergency", from, to)
}

func ProposalTransition(from, to model.ProposalStatus) error {
    if from != model.ProposalPending {
        return ErrProposalNotPending
    }
    return check(proposalFlow, "proposal", from, to)
}

func ProjectTransition(from, to model.ProjectStatus) error {
    return check(projectFlow, "project", from, to)
}

func PaymentTransition(from, to model.PaymentStatus) error {
    return check(paymentFlow, "payment", from, to)
}

// Acceptance is everything that changes when a proposal is accepted.
type Acceptance struct {
    Emergency model.Emergency
    Accepted  model.Proposal
    Rejected  []model.Proposal
    Project   model.Project
    Entry     model.TimelineEntry
}

// Accept applies the acceptance of proposalID to an emergency and the full
// list of its proposals. The emergency must be open and none of its
// proposals accepted yet. Every other pending proposal is rejected, the
// emergency moves to in_progress and exactly one project is built from the
// emergency and the accepted proposal.
func Accept(e model.Emergency, proposals []model.Proposal, proposalID string, now time.Time, newID func() string) (Acceptance, error) {
    if e.Status != model.EmergencyOpen {
        return Acceptance{}, ErrEmergencyNotOpen
    }
    target := -1
    for i, p := range proposals {
        if p.Status == model.ProposalAccepted {
            return Acceptance{}, ErrAlreadyAccepted
        }
        if p.ID == proposalID {
            target = i
        }
    }
    if target < 0 || proposals[target].EmergencyID != e.ID {
        return Acceptance{}, ErrUnknownProposal
    }
    accepted := proposals[target]
    if err := ProposalTransition(accepted.Status, model.ProposalAccepted); err != nil {
        return Acceptance{}, err
    }
    accepted.Status = model.ProposalAccepted

    var rejected []model.Proposal
    for i, p := range proposals {
        if i == target || p.Status != model.ProposalPending {
            continue
        }
        p.Status = model.ProposalRejected
        rejected = append(rejected, p)
    }

    e.Status = model.EmergencyInProgress
    e.AcceptedProposalID = &accepted.ID

    project := model.Project{
        ID:             newID(),
        EmergencyID:    e.ID,
        ProposalID:     accepted.ID,
        GestionnaireID: e.CreatedBy,
        ArtisanID:      accepted.ArtisanID,
        Title:          e.Title,
        Description:    e.Description,
        Address:        e.Address,
        Price:          accepted.Price,
        Status:         model.ProjectAccepted,
        PhotosBefore:   model.StringList{},
        PhotosDuring:   model.StringList{},
        PhotosAfter:    model.StringList{},
        CreatedAt:      now,
    }
    entry := model.TimelineEntry{
        ID:        newID(),
        ProjectID: project.ID,
        Type:      model.TimelineStatusChange,
        Message:   fmt.Sprintf("Proposal from %s accepted, project created", accepted.ArtisanName),
        Author:    SystemAuthor,
        Timestamp: now,
        Photos:    model.StringList{},
    }
    return Acceptance{Emergency: e, Accepted: accepted, Rejected: rejected, Project: project, Entry: entry}, nil
}

// AdvanceProject moves p to status to and returns the updated project with
// the single status_change entry recording it. Entering in_progress stamps
// StartDate; entering completed stamps CompletedDate with now.
func AdvanceProject(p model.Project, to model.ProjectStatus, author string, now time.Time, entryID string) (model.Project, model.TimelineEntry, error) {
    if err := ProjectTransition(p.Status, to); err != nil {
        return p, model.TimelineEntry{}, err
    }
    from := p.Status
    p.Status = to
    switch to {
    case model.ProjectInProgress:
        if p.StartDate == nil {
            t := now
            p.StartDate = &t
        }
    case model.ProjectCompleted:
        t := now
        p.CompletedDate = &t
    }
    entry := model.TimelineEntry{
        ID:        entryID,
        ProjectID: p.ID,
        Type:      model.TimelineStatusChange,
        Message:   fmt.Sprintf("Status changed from %s to %s", from, to),
        Author:    author,
        Timestamp: now,
        Photos:    model.StringList{},
    }
    return p, entry, nil
}

// AdvancePayment moves p to status to. Terminal states stamp ProcessedAt.
func AdvancePayment(p model.Payment, to model.PaymentStatus, now time.Time) (model.Payment, error) {
    if err := PaymentTransition(p.Status, to); err != nil {
        return p, err
    }
    p.Status = to
    if to == model.PaymentCompleted || to == model.PaymentFailed {
        t := now
        p.ProcessedAt = &t
    }
    return p, nil
}

// TaxRate is the VAT applied to invoices, in percent.
const TaxRate = 20

// InvoiceDueDays is the payment term printed on invoices.
const InvoiceDueDays = 30

// Tax returns amount*20% rounded half up, in integer cents.
func Tax(amount int64) int64 {
    return (amount*TaxRate*10/100 + 5) / 10
}

// NewInvoice builds the invoice for a completed payment.
func NewInvoice(p model.Payment, id string, now time.Time) (model.Invoice, error) {
    if p.Status != model.PaymentCompleted {
        return model.Invoice{}, ErrPaymentNotCompleted
    }
    tax := Tax(p.Amount)
    return model.Invoice{
        ID:            id,
        ProjectID:     p.ProjectID,
        PaymentID:     p.ID,
        InvoiceNumber: InvoiceNumber(id, now),
        Amount:        p.Amount,
        TaxAmount:     tax,
        TotalAmount:   p.Amount + tax,
        IssueDate:     now,
        DueDate:       now.AddDate(0, 0, InvoiceDueDays),
        Status:        model.InvoiceSent,
    }, nil
}

// InvoiceNumber formats INV-YYYYMMDD-XXXXXXXX using the first eight hex
// digits of the invoice id.
func InvoiceNumber(id string, now time.Time) string {
    suffix := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
    if len(suffix) > 8 {
        suffix = suffix[:8]
    }
    return fmt.Sprintf("INV-%s-%s", now.Format("20060102"), suffix)
}

// Summarize aggregates payments for the payment dashboard.
func Summarize(payments []model.Payment) model.PaymentSummary {
    var s model.PaymentSummary
    for _, p := range payments {
        switch p.Status {
        case model.PaymentPending, model.PaymentProcessing:
            s.PendingCount++
            s.PendingAmount += p.Amount
        case model.PaymentCompleted:
            s.CompletedCount++
            s.TotalEarned += p.Amount
        case model.PaymentFailed:
            s.FailedCount++
        }
    }
    return s
}
