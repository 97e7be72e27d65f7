package repository

import (
    "context"
    "strings"

    "github.com/jmoiron/sqlx"

    "github.com/iliyamo/mano-pro/internal/model"
)

const emergencyColumns = `id, title, description, address, arrondissement, trade, max_budget, status,
    created_by, created_at, photos, urgency_level, accepted_proposal_id`

type EmergencyRepo struct{ db *DB }

func NewEmergencyRepo(db *DB) *EmergencyRepo { return &EmergencyRepo{db: db} }

func (r *EmergencyRepo) Create(ctx context.Context, e *model.Emergency) error {
    _, err := r.db.conn(ctx).NamedExecContext(ctx, `INSERT INTO emergencies (`+emergencyColumns+`) VALUES (
        :id, :title, :description, :address, :arrondissement, :trade, :max_budget, :status,
        :created_by, :created_at, :photos, :urgency_level, :accepted_proposal_id)`, e)
    return err
}

// GetByID loads an emergency. Inside a transaction the row is locked, which
// serialises concurrent acceptances of its proposals.
func (r *EmergencyRepo) GetByID(ctx context.Context, id string) (model.Emergency, error) {
    var e model.Emergency
    err := r.db.conn(ctx).GetContext(ctx, &e,
        `SELECT `+emergencyColumns+` FROM emergencies WHERE id = ?`+lock(ctx), id)
    return e, notFound(err)
}

// ListByCreator returns the emergencies posted by userID, newest first.
func (r *EmergencyRepo) ListByCreator(ctx context.Context, userID string) ([]model.Emergency, error) {
    var out []model.Emergency
    err := r.db.conn(ctx).SelectContext(ctx, &out,
        `SELECT `+emergencyColumns+` FROM emergencies WHERE created_by = ? ORDER BY created_at DESC`, userID)
    return out, err
}

// ListOpen returns open emergencies matching f, newest first.
func (r *EmergencyRepo) ListOpen(ctx context.Context, f model.EmergencyFilter) ([]model.Emergency, error) {
    query, args, err := openQuery(f)
    if err != nil {
        return nil, err
    }
    var out []model.Emergency
    err = r.db.conn(ctx).SelectContext(ctx, &out, query, args...)
    return out, err
}

// openQuery builds the ListOpen statement, expanding the IN lists with
// sqlx.In into one placeholder per value.
func openQuery(f model.EmergencyFilter) (string, []any, error) {
    where := []string{"status = ?"}
    args := []any{model.EmergencyOpen}
    if len(f.Trades) > 0 {
        where = append(where, "trade IN (?)")
        args = append(args, f.Trades)
    }
    if len(f.Arrondissements) > 0 {
        where = append(where, "arrondissement IN (?)")
        args = append(args, f.Arrondissements)
    }
    if f.Urgency != "" {
        where = append(where, "urgency_level = ?")
        args = append(args, f.Urgency)
    }
    if q := strings.TrimSpace(f.Search); q != "" {
        like := "%" + strings.ToLower(q) + "%"
        where = append(where, "(LOWER(title) LIKE ? OR LOWER(description) LIKE ?)")
        args = append(args, like, like)
    }
    return sqlx.In(`SELECT `+emergencyColumns+` FROM emergencies WHERE `+
        strings.Join(where, " AND ")+` ORDER BY created_at DESC`, args...)
}

// Update writes the mutable columns: status, photos and the accepted proposal.
func (r *EmergencyRepo) Update(ctx context.Context, e *model.Emergency) error {
    return affected(r.db.conn(ctx).NamedExecContext(ctx, `UPDATE emergencies SET
        status = :status, photos = :photos, accepted_proposal_id = :accepted_proposal_id
        WHERE id = :id`, e))
}
