package repository

import (
    "context"

    "github.com/iliyamo/mano-pro/internal/model"
)

const paymentColumns = `id, project_id, artisan_id, gestionnaire_id, amount, status, invoice_url,
    created_at, processed_at, description`

type PaymentRepo struct{ db *DB }

func NewPaymentRepo(db *DB) *PaymentRepo { return &PaymentRepo{db: db} }

func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
    _, err := r.db.conn(ctx).NamedExecContext(ctx, `INSERT INTO payments (`+paymentColumns+`) VALUES (
        :id, :project_id, :artisan_id, :gestionnaire_id, :amount, :status, :invoice_url,
        :created_at, :processed_at, :description)`, p)
    return err
}

// GetByID loads a payment, locking the row inside a transaction.
func (r *PaymentRepo) GetByID(ctx context.Context, id string) (model.Payment, error) {
    var p model.Payment
    err := r.db.conn(ctx).GetContext(ctx, &p,
        `SELECT `+paymentColumns+` FROM payments WHERE id = ?`+lock(ctx), id)
    return p, notFound(err)
}

func (r *PaymentRepo) ListByProject(ctx context.Context, projectID string) ([]model.Payment, error) {
    var out []model.Payment
    err := r.db.conn(ctx).SelectContext(ctx, &out,
        `SELECT `+paymentColumns+` FROM payments WHERE project_id = ? ORDER BY created_at`+lock(ctx), projectID)
    return out, err
}

// ListForUser returns payments where userID pays or is paid, newest first.
func (r *PaymentRepo) ListForUser(ctx context.Context, userID string) ([]model.Payment, error) {
    var out []model.Payment
    err := r.db.conn(ctx).SelectContext(ctx, &out,
        `SELECT `+paymentColumns+` FROM payments WHERE artisan_id = ? OR gestionnaire_id = ? ORDER BY created_at DESC`,
        userID, userID)
    return out, err
}

func (r *PaymentRepo) Update(ctx context.Context, p *model.Payment) error {
    return affected(r.db.conn(ctx).NamedExecContext(ctx, `UPDATE payments SET
        status = :status, processed_at = :processed_at, invoice_url = :invoice_url
        WHERE id = :id`, p))
}

const invoiceColumns = `id, project_id, payment_id, invoice_number, amount, tax_amount, total_amount,
    issue_date, due_date, status, pdf_url`

type InvoiceRepo struct{ db *DB }

func NewInvoiceRepo(db *DB) *InvoiceRepo { return &InvoiceRepo{db: db} }

// Create inserts inv. There is at most one invoice per payment.
func (r *InvoiceRepo) Create(ctx context.Context, inv *model.Invoice) error {
    _, err := r.db.conn(ctx).NamedExecContext(ctx, `INSERT INTO invoices (`+invoiceColumns+`) VALUES (
        :id, :project_id, :payment_id, :invoice_number, :amount, :tax_amount, :total_amount,
        :issue_date, :due_date, :status, :pdf_url)`, inv)
    if isDuplicate(err) {
        return ErrConflict
    }
    return err
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id string) (model.Invoice, error) {
    var inv model.Invoice
    err := r.db.conn(ctx).GetContext(ctx, &inv, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id)
    return inv, notFound(err)
}

func (r *InvoiceRepo) GetByPayment(ctx context.Context, paymentID string) (model.Invoice, error) {
    var inv model.Invoice
    err := r.db.conn(ctx).GetContext(ctx, &inv, `SELECT `+invoiceColumns+` FROM invoices WHERE payment_id = ?`, paymentID)
    return inv, notFound(err)
}

// NotificationRepo stores per-user inbox items.
type NotificationRepo struct{ db *DB }

func NewNotificationRepo(db *DB) *NotificationRepo { return &NotificationRepo{db: db} }

func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
    _, err := r.db.conn(ctx).NamedExecContext(ctx, `INSERT INTO notifications
        (id, user_id, type, title, message, is_read, created_at, related_id)
        VALUES (:id, :user_id, :type, :title, :message, :is_read, :created_at, :related_id)`, n)
    return err
}

func (r *NotificationRepo) ListByUser(ctx context.Context, userID string) ([]model.Notification, error) {
    var out []model.Notification
    err := r.db.conn(ctx).SelectContext(ctx, &out, `SELECT id, user_id, type, title, message, is_read,
        created_at, related_id FROM notifications WHERE user_id = ? ORDER BY created_at DESC`, userID)
    return out, err
}

// MarkRead flags one notification of userID as read.
func (r *NotificationRepo) MarkRead(ctx context.Context, id, userID string) error {
    return affected(r.db.conn(ctx).ExecContext(ctx,
        `UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?`, id, userID))
}
