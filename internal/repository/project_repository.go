package repository

import (
    "context"

    "github.com/iliyamo/mano-pro/internal/model"
)

const projectColumns = `id, emergency_id, proposal_id, gestionnaire_id, artisan_id, title, description,
    address, price, status, start_date, completed_date, photos_before, photos_during, photos_after,
    rating, review, created_at`

type ProjectRepo struct{ db *DB }

func NewProjectRepo(db *DB) *ProjectRepo { return &ProjectRepo{db: db} }

// Create inserts p. The unique keys on emergency_id and proposal_id turn a
// second project for the same acceptance into ErrConflict.
func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
    _, err := r.db.conn(ctx).NamedExecContext(ctx, `INSERT INTO projects (`+projectColumns+`) VALUES (
        :id, :emergency_id, :proposal_id, :gestionnaire_id, :artisan_id, :title, :description,
        :address, :price, :status, :start_date, :completed_date, :photos_before, :photos_during, :photos_after,
        :rating, :review, :created_at)`, p)
    if isDuplicate(err) {
        return ErrConflict
    }
    return err
}

// GetByID loads a project, locking the row inside a transaction.
func (r *ProjectRepo) GetByID(ctx context.Context, id string) (model.Project, error) {
    var p model.Project
    err := r.db.conn(ctx).GetContext(ctx, &p,
        `SELECT `+projectColumns+` FROM projects WHERE id = ?`+lock(ctx), id)
    return p, notFound(err)
}

func (r *ProjectRepo) GetByProposal(ctx context.Context, proposalID string) (model.Project, error) {
    var p model.Project
    err := r.db.conn(ctx).GetContext(ctx, &p,
        `SELECT `+projectColumns+` FROM projects WHERE proposal_id = ?`, proposalID)
    return p, notFound(err)
}

// ListForUser returns projects where userID is either party, newest first.
func (r *ProjectRepo) ListForUser(ctx context.Context, userID string) ([]model.Project, error) {
    var out []model.Project
    err := r.db.conn(ctx).SelectContext(ctx, &out,
        `SELECT `+projectColumns+` FROM projects WHERE gestionnaire_id = ? OR artisan_id = ? ORDER BY created_at DESC`,
        userID, userID)
    return out, err
}

func (r *ProjectRepo) ListAll(ctx context.Context) ([]model.Project, error) {
    var out []model.Project
    err := r.db.conn(ctx).SelectContext(ctx, &out, `SELECT `+projectColumns+` FROM projects ORDER BY created_at DESC`)
    return out, err
}

// Update writes the mutable columns of p.
func (r *ProjectRepo) Update(ctx context.Context, p *model.Project) error {
    return affected(r.db.conn(ctx).NamedExecContext(ctx, `UPDATE projects SET
        status = :status, start_date = :start_date, completed_date = :completed_date,
        photos_before = :photos_before, photos_during = :photos_during, photos_after = :photos_after,
        rating = :rating, review = :review
        WHERE id = :id`, p))
}

// TimelineRepo appends and reads project timeline entries.
type TimelineRepo struct{ db *DB }

func NewTimelineRepo(db *DB) *TimelineRepo { return &TimelineRepo{db: db} }

func (r *TimelineRepo) Append(ctx context.Context, e *model.TimelineEntry) error {
    _, err := r.db.conn(ctx).NamedExecContext(ctx, `INSERT INTO project_timeline_entries
        (id, project_id, type, message, author, timestamp, photos)
        VALUES (:id, :project_id, :type, :message, :author, :timestamp, :photos)`, e)
    return err
}

// ListByProject returns entries oldest first.
func (r *TimelineRepo) ListByProject(ctx context.Context, projectID string) ([]model.TimelineEntry, error) {
    var out []model.TimelineEntry
    err := r.db.conn(ctx).SelectContext(ctx, &out, `SELECT id, project_id, type, message, author, timestamp, photos
        FROM project_timeline_entries WHERE project_id = ? ORDER BY timestamp, id`, projectID)
    return out, err
}

// ChatRepo appends and reads project chat messages.
type ChatRepo struct{ db *DB }

func NewChatRepo(db *DB) *ChatRepo { return &ChatRepo{db: db} }

func (r *ChatRepo) Append(ctx context.Context, m *model.ChatMessage) error {
    _, err := r.db.conn(ctx).NamedExecContext(ctx, `INSERT INTO chat_messages
        (id, project_id, sender_id, sender_name, message, timestamp, photos, is_read)
        VALUES (:id, :project_id, :sender_id, :sender_name, :message, :timestamp, :photos, :is_read)`, m)
    return err
}

func (r *ChatRepo) ListByProject(ctx context.Context, projectID string) ([]model.ChatMessage, error) {
    var out []model.ChatMessage
    err := r.db.conn(ctx).SelectContext(ctx, &out, `SELECT id, project_id, sender_id, sender_name, message,
        timestamp, photos, is_read FROM chat_messages WHERE project_id = ? ORDER BY timestamp, id`, projectID)
    return out, err
}

// MarkRead flags messages sent by the other party as read and returns how
// many changed.
func (r *ChatRepo) MarkRead(ctx context.Context, projectID, readerID string) (int64, error) {
    res, err := r.db.conn(ctx).ExecContext(ctx,
        `UPDATE chat_messages SET is_read = TRUE WHERE project_id = ? AND sender_id <> ? AND is_read = FALSE`,
        projectID, readerID)
    if err != nil {
        return 0, err
    }
    return res.RowsAffected()
}
