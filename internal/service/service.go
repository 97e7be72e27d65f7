// Package service implements the marketplace operations on top of the
// repositories. Every multi-row change runs inside one transaction; events
// are published after commit and their failures never fail the request.
package service

import (
    "context"
    "errors"
    "fmt"
    "log"
    "time"

    "github.com/google/uuid"
    "go.opentelemetry.io/otel"
    "go.opentelemetry.io/otel/codes"
    "go.opentelemetry.io/otel/trace"

    "github.com/iliyamo/mano-pro/internal/model"
    "github.com/iliyamo/mano-pro/internal/queue"
)

var (
    // ErrValidation wraps every input problem; the message after the colon
    // is safe to show to clients.
    ErrValidation = errors.New("validation failed")
    // ErrForbidden means the actor may not touch the resource.
    ErrForbidden = errors.New("forbidden")
    // ErrInvalidCredentials is returned by Authenticate.
    ErrInvalidCredentials = errors.New("invalid credentials")
)

func invalid(format string, args ...any) error {
    return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Actor is the authenticated caller of an operation.
type Actor struct {
    ID   string
    Role model.Role
}

func (a Actor) IsAdmin() bool { return a.Role == model.RoleAdmin }

// TxRunner runs fn inside one transaction carried by ctx.
type TxRunner interface {
    WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserStore interface {
    Create(ctx context.Context, u *model.User) error
    GetByID(ctx context.Context, id string) (model.User, error)
    GetByEmail(ctx context.Context, email string) (model.User, error)
    ListByRole(ctx context.Context, role model.Role) ([]model.User, error)
    UpdateProfile(ctx context.Context, u *model.User) error
    SetVerification(ctx context.Context, id string, verified, certified bool) error
    IncrementCompleted(ctx context.Context, id string) error
    SetRating(ctx context.Context, id string, rating float64) error
}

type TokenStore interface {
    StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
    ValidateRefresh(ctx context.Context, tokenHash string) (string, error)
    RevokeByHash(ctx context.Context, tokenHash string) error
    RevokeAllForUser(ctx context.Context, userID string) error
}

type EmergencyStore interface {
    Create(ctx context.Context, e *model.Emergency) error
    GetByID(ctx context.Context, id string) (model.Emergency, error)
    ListByCreator(ctx context.Context, userID string) ([]model.Emergency, error)
    ListOpen(ctx context.Context, f model.EmergencyFilter) ([]model.Emergency, error)
    Update(ctx context.Context, e *model.Emergency) error
}

type ProposalStore interface {
    Create(ctx context.Context, p *model.Proposal) error
    GetByID(ctx context.Context, id string) (model.Proposal, error)
    ListByEmergency(ctx context.Context, emergencyID string) ([]model.Proposal, error)
    ListByArtisan(ctx context.Context, artisanID string) ([]model.Proposal, error)
    UpdateStatus(ctx context.Context, id string, status model.ProposalStatus) error
}

type ProjectStore interface {
    Create(ctx context.Context, p *model.Project) error
    GetByID(ctx context.Context, id string) (model.Project, error)
    GetByProposal(ctx context.Context, proposalID string) (model.Project, error)
    ListForUser(ctx context.Context, userID string) ([]model.Project, error)
    ListAll(ctx context.Context) ([]model.Project, error)
    Update(ctx context.Context, p *model.Project) error
}

type TimelineStore interface {
    Append(ctx context.Context, e *model.TimelineEntry) error
    ListByProject(ctx context.Context, projectID string) ([]model.TimelineEntry, error)
}

type ChatStore interface {
    Append(ctx context.Context, m *model.ChatMessage) error
    ListByProject(ctx context.Context, projectID string) ([]model.ChatMessage, error)
    MarkRead(ctx context.Context, projectID, readerID string) (int64, error)
}

type PaymentStore interface {
    Create(ctx context.Context, p *model.Payment) error
    GetByID(ctx context.Context, id string) (model.Payment, error)
    ListByProject(ctx context.Context, projectID string) ([]model.Payment, error)
    ListForUser(ctx context.Context, userID string) ([]model.Payment, error)
    Update(ctx context.Context, p *model.Payment) error
}

type InvoiceStore interface {
    Create(ctx context.Context, inv *model.Invoice) error
    GetByID(ctx context.Context, id string) (model.Invoice, error)
    GetByPayment(ctx context.Context, paymentID string) (model.Invoice, error)
}

type NotificationStore interface {
    Create(ctx context.Context, n *model.Notification) error
    ListByUser(ctx context.Context, userID string) ([]model.Notification, error)
    MarkRead(ctx context.Context, id, userID string) error
}

// Store bundles one implementation of every repository plus the
// transaction runner they share.
type Store struct {
    Tx            TxRunner
    Users         UserStore
    Tokens        TokenStore
    Emergencies   EmergencyStore
    Proposals     ProposalStore
    Projects      ProjectStore
    Timeline      TimelineStore
    Chat          ChatStore
    Payments      PaymentStore
    Invoices      InvoiceStore
    Notifications NotificationStore
}

// Option customises the services built by New.
type Option func(*base)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option { return func(b *base) { b.now = now } }

// WithIDs replaces the UUID generator.
func WithIDs(newID func() string) Option { return func(b *base) { b.newID = newID } }

// WithGateway sets the payment gateway; the default completes instantly.
func WithGateway(g Gateway) Option { return func(b *base) { b.gateway = g } }

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option { return func(b *base) { b.bcryptCost = cost } }

type base struct {
    store      Store
    pub        queue.Publisher
    gateway    Gateway
    now        func() time.Time
    newID      func() string
    bcryptCost int
}

var tracer trace.Tracer = otel.Tracer("github.com/iliyamo/mano-pro/internal/service")

// span starts a trace span; the returned func ends it and records *errp.
func (b *base) span(ctx context.Context, name string) (context.Context, func(errp *error)) {
    ctx, sp := tracer.Start(ctx, name, trace.WithSpanKind(trace.SpanKindInternal))
    return ctx, func(errp *error) {
        if errp != nil && *errp != nil {
            sp.RecordError(*errp)
            sp.SetStatus(codes.Error, (*errp).Error())
        }
        sp.End()
    }
}

// publish sends ev after the caller's transaction committed. Broker
// failures are logged only.
func (b *base) publish(ctx context.Context, ev queue.Event) {
    if b.pub == nil {
        return
    }
    if ev.OccurredAt.IsZero() {
        ev.OccurredAt = b.now()
    }
    ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
    defer cancel()
    if err := b.pub.Publish(ctx, ev); err != nil {
        log.Printf("events: publish %s failed: %v", ev.Type, err)
    }
}

func (b *base) displayName(ctx context.Context, userID string) string {
    u, err := b.store.Users.GetByID(ctx, userID)
    if err != nil {
        return userID
    }
    return u.DisplayName()
}

// Services groups every operation family.
type Services struct {
    Accounts      *AccountService
    Emergencies   *EmergencyService
    Proposals     *ProposalService
    Projects      *ProjectService
    Chat          *ChatService
    Payments      *PaymentService
    Notifications *NotificationService
}

// New wires the services over store. pub may be nil.
func New(store Store, pub queue.Publisher, opts ...Option) *Services {
    b := &base{
        store:      store,
        pub:        pub,
        gateway:    InstantGateway{},
        now:        func() time.Time { return time.Now().UTC() },
        newID:      uuid.NewString,
        bcryptCost: 10,
    }
    for _, o := range opts {
        o(b)
    }
    return &Services{
        Accounts:      &AccountService{b},
        Emergencies:   &EmergencyService{b},
        Proposals:     &ProposalService{b},
        Projects:      &ProjectService{b},
        Chat:          &ChatService{b},
        Payments:      &PaymentService{b},
        Notifications: &NotificationService{b},
    }
}
