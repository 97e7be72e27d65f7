package repository

import (
    "context"

    "github.com/iliyamo/mano-pro/internal/model"
)

const proposalColumns = `id, emergency_id, artisan_id, artisan_name, artisan_company, artisan_rating,
    price, description, estimated_duration, status, created_at`

type ProposalRepo struct{ db *DB }

func NewProposalRepo(db *DB) *ProposalRepo { return &ProposalRepo{db: db} }

// Create inserts p. A second proposal from the same artisan on the same
// emergency hits the unique key and yields ErrConflict.
func (r *ProposalRepo) Create(ctx context.Context, p *model.Proposal) error {
    _, err := r.db.conn(ctx).NamedExecContext(ctx, `INSERT INTO proposals (`+proposalColumns+`) VALUES (
        :id, :emergency_id, :artisan_id, :artisan_name, :artisan_company, :artisan_rating,
        :price, :description, :estimated_duration, :status, :created_at)`, p)
    if isDuplicate(err) {
        return ErrConflict
    }
    return err
}

// GetByID never locks; callers lock the parent emergency instead.
func (r *ProposalRepo) GetByID(ctx context.Context, id string) (model.Proposal, error) {
    var p model.Proposal
    err := r.db.conn(ctx).GetContext(ctx, &p, `SELECT `+proposalColumns+` FROM proposals WHERE id = ?`, id)
    return p, notFound(err)
}

// ListByEmergency returns every proposal of an emergency, oldest first.
func (r *ProposalRepo) ListByEmergency(ctx context.Context, emergencyID string) ([]model.Proposal, error) {
    var out []model.Proposal
    err := r.db.conn(ctx).SelectContext(ctx, &out,
        `SELECT `+proposalColumns+` FROM proposals WHERE emergency_id = ? ORDER BY created_at`+lock(ctx), emergencyID)
    return out, err
}

// ListByArtisan returns the artisan's proposals, newest first.
func (r *ProposalRepo) ListByArtisan(ctx context.Context, artisanID string) ([]model.Proposal, error) {
    var out []model.Proposal
    err := r.db.conn(ctx).SelectContext(ctx, &out,
        `SELECT `+proposalColumns+` FROM proposals WHERE artisan_id = ? ORDER BY created_at DESC`, artisanID)
    return out, err
}

func (r *ProposalRepo) UpdateStatus(ctx context.Context, id string, status model.ProposalStatus) error {
    return affected(r.db.conn(ctx).ExecContext(ctx, `UPDATE proposals SET status = ? WHERE id = ?`, status, id))
}
