// Package memory is an in-process implementation of every store, used by
// tests and by STORAGE_DRIVER=memory. It returns the same sentinel errors
// as the MySQL repositories and enforces the same unique keys.
package memory

import (
    "context"
    "slices"
    "sort"
    "sync"
    "time"

    "github.com/iliyamo/mano-pro/internal/model"
    "github.com/iliyamo/mano-pro/internal/repository"
    "github.com/iliyamo/mano-pro/internal/service"
)

type token struct {
    userID    string
    hash      string
    expiresAt time.Time
    revoked   bool
}

// tables holds every row in insertion order.
type tables struct {
    users         []model.User
    tokens        []token
    emergencies   []model.Emergency
    proposals     []model.Proposal
    projects      []model.Project
    timeline      []model.TimelineEntry
    chat          []model.ChatMessage
    payments      []model.Payment
    invoices      []model.Invoice
    notifications []model.Notification
}

func (t tables) clone() tables {
    return tables{
        users:         slices.Clone(t.users),
        tokens:        slices.Clone(t.tokens),
        emergencies:   slices.Clone(t.emergencies),
        proposals:     slices.Clone(t.proposals),
        projects:      slices.Clone(t.projects),
        timeline:      slices.Clone(t.timeline),
        chat:          slices.Clone(t.chat),
        payments:      slices.Clone(t.payments),
        invoices:      slices.Clone(t.invoices),
        notifications: slices.Clone(t.notifications),
    }
}

// Store keeps all data behind one mutex. Transactions are serialised by a
// second mutex and rolled back by restoring a snapshot.
type Store struct {
    txMu sync.Mutex
    mu   sync.Mutex
    t    tables
}

func New() *Store { return &Store{} }

// lock guards one statement. Outside a transaction it also waits for any
// running transaction so nothing observes or overwrites uncommitted rows.
func (s *Store) lock(ctx context.Context) func() {
    if ctx.Value(txKey{}) != nil {
        s.mu.Lock()
        return s.mu.Unlock
    }
    s.txMu.Lock()
    s.mu.Lock()
    return func() {
        s.mu.Unlock()
        s.txMu.Unlock()
    }
}

type txKey struct{}

// WithinTx runs fn with every other transaction excluded. Nested calls join
// the outer transaction. When fn fails every write it made is undone.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
    if ctx.Value(txKey{}) != nil {
        return fn(ctx)
    }
    s.txMu.Lock()
    defer s.txMu.Unlock()

    s.mu.Lock()
    snapshot := s.t.clone()
    s.mu.Unlock()

    if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
        s.mu.Lock()
        s.t = snapshot
        s.mu.Unlock()
        return err
    }
    return nil
}

// Bundle exposes the store through the interfaces the services consume.
func (s *Store) Bundle() service.Store {
    return service.Store{
        Tx:            s,
        Users:         (*Users)(s),
        Tokens:        (*Tokens)(s),
        Emergencies:   (*Emergencies)(s),
        Proposals:     (*Proposals)(s),
        Projects:      (*Projects)(s),
        Timeline:      (*Timeline)(s),
        Chat:          (*Chat)(s),
        Payments:      (*Payments)(s),
        Invoices:      (*Invoices)(s),
        Notifications: (*Notifications)(s),
    }
}

func find[T any](rows []T, match func(T) bool) int {
    for i, r := range rows {
        if match(r) {
            return i
        }
    }
    return -1
}

func filter[T any](rows []T, match func(T) bool) []T {
    out := []T{}
    for _, r := range rows {
        if match(r) {
            out = append(out, r)
        }
    }
    return out
}

// newestFirst orders rows by created time descending; ties keep the most
// recent insertion first.
func newestFirst[T any](rows []T, at func(T) time.Time) []T {
    slices.Reverse(rows)
    sort.SliceStable(rows, func(i, j int) bool { return at(rows[i]).After(at(rows[j])) })
    return rows
}

func oldestFirst[T any](rows []T, at func(T) time.Time) []T {
    sort.SliceStable(rows, func(i, j int) bool { return at(rows[i]).Before(at(rows[j])) })
    return rows
}

// Users implements service.UserStore.
type Users Store

func (r *Users) Create(ctx context.Context, u *model.User) error {
    s := (*Store)(r)
    defer s.lock(ctx)()
    if find(s.t.users, func(x model.User) bool { return x.Email == u.Email }) >= 0 {
        return repository.ErrEmailExists
    }
    s.t.users = append(s.t.users, *u)
    return nil
}

func (r *Users) get(ctx context.Context, match func(model.User) bool) (model.User, error) {
    s := (*Store)(r)
    defer s.lock(ctx)()
    i := find(s.t.users, match)
    if i < 0 {
        return model.User{}, repository.ErrNotFound
    }
    return s.t.users[i], nil
}

func (r *Users) GetByID(ctx context.Context, id string) (model.User, error) {
    return r.get(ctx, func(u model.User) bool { return u.ID == id })
}

func (r *Users) GetByEmail(ctx context.Context, email string) (model.User, error) {
    return r.get(ctx, func(u model.User) bool { return u.Email == email })
}

func (r *Users) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
    s := (*Store)(r)
    defer s.lock(ctx)()
    return filter(s.t.users, func(u model.User) bool { return u.Role == role }), nil
}

func (r *Users) update(ctx context.Context, id string, fn func(*model.User)) error {
    s := (*Store)(r)
    defer s.lock(ctx)()
    i := find(s.t.users, func(u model.User) bool { return u.ID == id })
    if i < 0 {
        return repository.ErrNotFound
    }
    fn(&s.t.users[i])
    return nil
}

func (r *Users) UpdateProfile(ctx context.Context, u *model.User) error {
    return r.update(ctx, u.ID, func(cur *model.User) {
        cur.FirstName, cur.LastName = u.FirstName, u.LastName
        cur.Phone, cur.Company, cur.Avatar = u.Phone, u.Company, u.Avatar
        cur.Trades = slices.Clone(u.Trades)
        cur.Arrondissements = slices.Clone(u.Arrondissements)
        cur.BankDetails = u.BankDetails
    })
}

func (r *Users) SetVerification(ctx context.Context, id string, verified, certified bool) error {
    return r.update(ctx, id, func(u *model.User) { u.IsVerified, u.IsCertified = verified, certified })
}

func (r *Users) IncrementCompleted(ctx context.Context, id string) error {
    return r.update(ctx, id, func(u *model.User) { u.CompletedProjects++ })
}

func (r *Users) SetRating(ctx context.Context, id string, rating float64) error {
    return r.update(ctx, id, func(u *model.User) { u.Rating = rating })
}

// Tokens implements service.TokenStore.
type Tokens Store

func (r *Tokens) StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error {
    s := (*Store)(r)
    defer s.lock(ctx)()
    s.t.tokens = append(s.t.tokens, token{userID: userID, hash: tokenHash, expiresAt: exp})
    return nil
}

func (r *Tokens) ValidateRefresh(ctx context.Context, tokenHash string) (string, error) {
    s := (*Store)(r)
    defer s.lock(ctx)()
    i := find(s.t.tokens, func(t token) bool { return t.hash == tokenHash })
    if i < 0 {
        return "", repository.ErrNotFound
    }
    t := s.t.tokens[i]
    if t.revoked || time.Now().UTC().After(t.expiresAt) {
        return "", repository.ErrNotFound
    }
    return t.userID, nil
}

// revoke returns how many active tokens it revoked.
func (r *Tokens) revoke(ctx context.Context, match func(token) bool) int {
    s := (*Store)(r)
    defer s.lock(ctx)()
    n := 0
    for i := range s.t.tokens {
        if !s.t.tokens[i].revoked && match(s.t.tokens[i]) {
            s.t.tokens[i].revoked = true
            n++
        }
    }
    return n
}

func (r *Tokens) RevokeByHash(ctx context.Context, tokenHash string) error {
    if r.revoke(ctx, func(t token) bool { return t.hash == tokenHash }) == 0 {
        return repository.ErrNotFound
    }
    return nil
}

func (r *Tokens) RevokeAllForUser(ctx context.Context, userID string) error {
    r.revoke(ctx, func(t token) bool { return t.userID == userID })
    return nil
}

// Emergencies implements service.EmergencyStore.
type Emergencies Store

func (r *Emergencies) Create(ctx context.Context, e *model.Emergency) error {
    s := (*Store)(r)
    defer s.lock(ctx)()
    row := *e
    row.Photos = slices.Clone(e.Photos)
    s.t.emergencies = append(s.t.emergencies, row)
    return nil
}

func (r *Emergencies) GetByID(ctx context.Context, id string) (model.Emergency, error) {
    s := (*Store)(r)
    defer s.lock(ctx)()
    i := find(s.t.emergencies, func(e model.Emergency) bool { return e.ID == id })
    if i < 0 {
        return model.Emergency{}, repository.ErrNotFound
    }
    return s.t.emergencies[i], nil
}

func (r *Emergencies) list(ctx context.Context, match func(model.Emergency) bool) []model.Emergency {
    s := (*Store)(r)
    defer s.lock(ctx)()
    return newestFirst(filter(s.t.emergencies, match), func(e model.Emergency) time.Time { return e.CreatedAt })
}

func (r *Emergencies) ListByCreator(ctx context.Context, userID string) ([]model.Emergency, error) {
    return r.list(ctx, func(e model.Emergency) bool { return e.CreatedBy == userID }), nil
}

func (r *Emergencies) ListOpen(ctx context.Context, f model.EmergencyFilter) ([]model.Emergency, error) {
    return r.list(ctx, f.Matches), nil
}

func (r *Emergencies) Update(ctx context.Context, e *model.Emergency) error {
    s := (*Store)(r)
    defer s.lock(ctx)()
    i := find(s.t.emergencies, func(x model.Emergency) bool { return x.ID == e.ID })
    if i < 0 {
        return repository.ErrNotFound
    }
    cur := &s.t.emergencies[i]
    cur.Status = e.Status
    cur.Photos = slices.Clone(e.Photos)
    cur.AcceptedProposalID = e.AcceptedProposalID
    return nil
}

// Proposals implements service.ProposalStore.
type Proposals Store

func (r *Proposals) Create(ctx context.Context, p *model.Proposal) error {
    s := (*Store)(r)
    defer s.lock(ctx)()
    dup := func(x model.Proposal) bool { return x.EmergencyID == p.EmergencyID && x.ArtisanID == p.ArtisanID }
    if find(s.t.proposals, dup) >= 0 {
        return repository.ErrConflict
    }
    s.t.proposals = append(s.t.proposals, *p)
    return nil
}

func (r *Proposals) GetByID(ctx context.Context, id string) (model.Proposal, error) {
    s := (*Store)(r)
    defer s.lock(ctx)()
    i := find(s.t.proposals, func(p model.Proposal) bool { return p.ID == id })
    if i < 0 {
        return model.Proposal{}, repository.ErrNotFound
    }
    return s.t.proposals[i], nil
}

func (r *Proposals) ListByEmergency(ctx context.Context, emergencyID string) ([]model.Proposal, error) {
    s := (*Store)(r)
    defer s.lock(ctx)()
    out := filter(s.t.proposals, func(p model.Proposal) bool { return p.EmergencyID == emergencyID })
    return oldestFirst(out, func(p model.Proposal) time.Time { return p.CreatedAt }), nil
}

func (r *Proposals) ListByArtisan(ctx context.Context, artisanID string) ([]model.Proposal, error) {
    s := (*Store)(r)
    defer s.lock(ctx)()
    out := filter(s.t.proposals, func(p model.Proposal) bool { return p.ArtisanID == artisanID })
    return newestFirst(out, func(p model.Proposal) time.Time { return p.CreatedAt }), nil
}

func (r *Proposals) UpdateStatus(ctx context.Context, id string, status model.ProposalStatus) error {
    s := (*Store)(r)
    defer s.lock(ctx)()
    i := find(s.t.proposals, func(p model.Proposal) bool { return p.ID == id })
    if i < 0 {
        return repository.ErrNotFound
    }
    s.t.proposals[i].Status = status
    return nil
}

// Projects implements service.ProjectStore.
type Projects Store

func storedProject(p *model.Project) model.Project {
    row := *p
    row.PhotosBefore = slices.Clone(p.PhotosBefore)
    row.PhotosDuring = slices.Clone(p.PhotosDuring)
    row.PhotosAfter = slices.Clone(p.PhotosAfter)
    row.Gestionnaire, row.Artisan, row.Timeline = nil, nil, nil
    return row
}

func (r *Projects) Create(ctx context.Context, p *model.Project) error {
    s := (*Store)(r)
    defer s.lock(ctx)()
    dup := func(x model.Project) bool { return x.EmergencyID == p.EmergencyID || x.ProposalID == p.ProposalID }
    if find(s.t.projects, dup) >= 0 {
        return repository.ErrConflict
    }
    s.t.projects = append(s.t.projects, storedProject(p))
    return nil
}

func (r *Projects) get(ctx context.Context, match func(model.Project) bool) (model.Project, error) {
    s := (*Store)(r)
    defer s.lock(ctx)()
    i := find(s.t.projects, match)
    if i < 0 {
        return model.Project{}, repository.ErrNotFound
    }
    return s.t.projects[i], nil
}

func (r *Projects) GetByID(ctx context.Context, id string) (model.Project, error) {
    return r.get(ctx, func(p model.Project) bool { return p.ID == id })
}

func (r *Projects) GetByProposal(ctx context.Context, proposalID string) (model.Project, error) {
    return r.get(ctx, func(p model.Project) bool { return p.ProposalID == proposalID })
}

func (r *Projects) list(ctx context.Context, match func(model.Project) bool) []model.Project {
    s := (*Store)(r)
    defer s.lock(ctx)()
    return newestFirst(filter(s.t.projects, match), func(p model.Project) time.Time { return p.CreatedAt })
}

func (r *Projects) ListForUser(ctx context.Context, userID string) ([]model.Project, error) {
    return r.list(ctx, func(p model.Project) bool { return p.IsParticipant(userID) }), nil
}

func (r *Projects) ListAll(ctx context.Context) ([]model.Project, error) {
    return r.list(ctx, func(model.Project) bool { return true }), nil
}

func (r *Projects) Update(ctx context.Context, p *model.Project) error {
    s := (*Store)(r)
    defer s.lock(ctx)()
    i := find(s.t.projects, func(x model.Project) bool { return x.ID == p.ID })
    if i < 0 {
        return repository.ErrNotFound
    }
    s.t.projects[i] = storedProject(p)
    return nil
}

// Timeline implements service.TimelineStore.
type Timeline Store

func (r *Timeline) Append(ctx context.Context, e *model.TimelineEntry) error {
    s := (*Store)(r)
    defer s.lock(ctx)()
    s.t.timeline = append(s.t.timeline, *e)
    return nil
}

func (r *Timeline) ListByProject(ctx context.Context, projectID string) ([]model.TimelineEntry, error) {
    s := (*Store)(r)
    defer s.lock(ctx)()
    out := filter(s.t.timeline, func(e model.TimelineEntry) bool { return e.ProjectID == projectID })
    return oldestFirst(out, func(e model.TimelineEntry) time.Time { return e.Timestamp }), nil
}

// Chat implements service.ChatStore.
type Chat Store

func (r *Chat) Append(ctx context.Context, m *model.ChatMessage) error {
    s := (*Store)(r)
    defer s.lock(ctx)()
    s.t.chat = append(s.t.chat, *m)
    return nil
}

func (r *Chat) ListByProject(ctx context.Context, projectID string) ([]model.ChatMessage, error) {
    s := (*Store)(r)
    defer s.lock(ctx)()
    out := filter(s.t.chat, func(m model.ChatMessage) bool { return m.ProjectID == projectID })
    return oldestFirst(out, func(m model.ChatMessage) time.Time { return m.Timestamp }), nil
}

func (r *Chat) MarkRead(ctx context.Context, projectID, readerID string) (int64, error) {
    s := (*Store)(r)
    defer s.lock(ctx)()
    var n int64
    for i := range s.t.chat {
        m := &s.t.chat[i]
        if m.ProjectID == projectID && m.SenderID != readerID && !m.IsRead {
            m.IsRead = true
            n++
        }
    }
    return n, nil
}

// Payments implements service.PaymentStore.
type Payments Store

func (r *Payments) Create(ctx context.Context, p *model.Payment) error {
    s := (*Store)(r)
    defer s.lock(ctx)()
    s.t.payments = append(s.t.payments, *p)
    return nil
}

func (r *Payments) GetByID(ctx context.Context, id string) (model.Payment, error) {
    s := (*Store)(r)
    defer s.lock(ctx)()
    i := find(s.t.payments, func(p model.Payment) bool { return p.ID == id })
    if i < 0 {
        return model.Payment{}, repository.ErrNotFound
    }
    return s.t.payments[i], nil
}

func (r *Payments) ListByProject(ctx context.Context, projectID string) ([]model.Payment, error) {
    s := (*Store)(r)
    defer s.lock(ctx)()
    out := filter(s.t.payments, func(p model.Payment) bool { return p.ProjectID == projectID })
    return oldestFirst(out, func(p model.Payment) time.Time { return p.CreatedAt }), nil
}

func (r *Payments) ListForUser(ctx context.Context, userID string) ([]model.Payment, error) {
    s := (*Store)(r)
    defer s.lock(ctx)()
    out := filter(s.t.payments, func(p model.Payment) bool { return p.IsParticipant(userID) })
    return newestFirst(out, func(p model.Payment) time.Time { return p.CreatedAt }), nil
}

func (r *Payments) Update(ctx context.Context, p *model.Payment) error {
    s := (*Store)(r)
    defer s.lock(ctx)()
    i := find(s.t.payments, func(x model.Payment) bool { return x.ID == p.ID })
    if i < 0 {
        return repository.ErrNotFound
    }
    cur := &s.t.payments[i]
    cur.Status, cur.ProcessedAt, cur.InvoiceURL = p.Status, p.ProcessedAt, p.InvoiceURL
    return nil
}

// Invoices implements service.InvoiceStore.
type Invoices Store

func (r *Invoices) Create(ctx context.Context, inv *model.Invoice) error {
    s := (*Store)(r)
    defer s.lock(ctx)()
    dup := func(x model.Invoice) bool { return x.PaymentID == inv.PaymentID || x.InvoiceNumber == inv.InvoiceNumber }
    if find(s.t.invoices, dup) >= 0 {
        return repository.ErrConflict
    }
    s.t.invoices = append(s.t.invoices, *inv)
    return nil
}

func (r *Invoices) get(ctx context.Context, match func(model.Invoice) bool) (model.Invoice, error) {
    s := (*Store)(r)
    defer s.lock(ctx)()
    i := find(s.t.invoices, match)
    if i < 0 {
        return model.Invoice{}, repository.ErrNotFound
    }
    return s.t.invoices[i], nil
}

func (r *Invoices) GetByID(ctx context.Context, id string) (model.Invoice, error) {
    return r.get(ctx, func(inv model.Invoice) bool { return inv.ID == id })
}

func (r *Invoices) GetByPayment(ctx context.Context, paymentID string) (model.Invoice, error) {
    return r.get(ctx, func(inv model.Invoice) bool { return inv.PaymentID == paymentID })
}

// Notifications implements service.NotificationStore and the consumer's
// queue.NotificationWriter.
type Notifications Store

func (r *Notifications) Create(ctx context.Context, n *model.Notification) error {
    s := (*Store)(r)
    defer s.lock(ctx)()
    s.t.notifications = append(s.t.notifications, *n)
    return nil
}

func (r *Notifications) ListByUser(ctx context.Context, userID string) ([]model.Notification, error) {
    s := (*Store)(r)
    defer s.lock(ctx)()
    out := filter(s.t.notifications, func(n model.Notification) bool { return n.UserID == userID })
    return newestFirst(out, func(n model.Notification) time.Time { return n.CreatedAt }), nil
}

func (r *Notifications) MarkRead(ctx context.Context, id, userID string) error {
    s := (*Store)(r)
    defer s.lock(ctx)()
    i := find(s.t.notifications, func(n model.Notification) bool { return n.ID == id && n.UserID == userID })
    if i < 0 {
        return repository.ErrNotFound
    }
    s.t.notifications[i].IsRead = true
    return nil
}
