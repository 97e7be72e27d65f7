package repository

import (
    "context"
    "strings"

    "github.com/iliyamo/mano-pro/internal/model"
)

const userColumns = `id, email, password_hash, first_name, last_name, phone, company, role,
    is_verified, is_certified, created_at, arrondissements, trades, rating, completed_projects,
    avatar, bank_details_iban, bank_details_bic, bank_details_account_holder`

type UserRepo struct{ db *DB }

func NewUserRepo(db *DB) *UserRepo { return &UserRepo{db: db} }

// Create inserts u. The email is normalised before insert; a duplicate
// yields ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
    u.Email = strings.ToLower(strings.TrimSpace(u.Email))
    _, err := r.db.conn(ctx).NamedExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (
        :id, :email, :password_hash, :first_name, :last_name, :phone, :company, :role,
        :is_verified, :is_certified, :created_at, :arrondissements, :trades, :rating, :completed_projects,
        :avatar, :bank_details_iban, :bank_details_bic, :bank_details_account_holder)`, u)
    if isDuplicate(err) {
        return ErrEmailExists
    }
    return err
}

// GetByEmail fetches a user by normalised email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
    var u model.User
    err := r.db.conn(ctx).GetContext(ctx, &u,
        `SELECT `+userColumns+` FROM users WHERE email = ? LIMIT 1`,
        strings.ToLower(strings.TrimSpace(email)))
    return u, notFound(err)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
    var u model.User
    err := r.db.conn(ctx).GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`, id)
    return u, notFound(err)
}

// ListByRole returns every user with role, oldest first.
func (r *UserRepo) ListByRole(ctx context.Context, role model.Role) ([]model.User, error) {
    var out []model.User
    err := r.db.conn(ctx).SelectContext(ctx, &out,
        `SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY created_at`, role)
    return out, err
}

// UpdateProfile writes the editable profile columns of u.
func (r *UserRepo) UpdateProfile(ctx context.Context, u *model.User) error {
    return affected(r.db.conn(ctx).NamedExecContext(ctx, `UPDATE users SET
        first_name = :first_name, last_name = :last_name, phone = :phone, company = :company,
        avatar = :avatar, arrondissements = :arrondissements, trades = :trades,
        bank_details_iban = :bank_details_iban, bank_details_bic = :bank_details_bic,
        bank_details_account_holder = :bank_details_account_holder
        WHERE id = :id`, u))
}

func (r *UserRepo) SetVerification(ctx context.Context, id string, verified, certified bool) error {
    return affected(r.db.conn(ctx).ExecContext(ctx,
        `UPDATE users SET is_verified = ?, is_certified = ? WHERE id = ?`, verified, certified, id))
}

// IncrementCompleted bumps the artisan's completed-projects counter.
func (r *UserRepo) IncrementCompleted(ctx context.Context, id string) error {
    return affected(r.db.conn(ctx).ExecContext(ctx,
        `UPDATE users SET completed_projects = completed_projects + 1 WHERE id = ?`, id))
}

func (r *UserRepo) SetRating(ctx context.Context, id string, rating float64) error {
    return affected(r.db.conn(ctx).ExecContext(ctx, `UPDATE users SET rating = ? WHERE id = ?`, rating, id))
}
