package model

import "time"

// Role is the account type carried in the access token's "role" claim.
type Role string

const (
    RoleGestionnaire Role = "gestionnaire" // property manager posting emergencies
    RoleArtisan      Role = "artisan"      // tradesperson bidding on emergencies
    RoleAdmin        Role = "admin"        // back-office operator
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
    switch r {
    case RoleGestionnaire, RoleArtisan, RoleAdmin:
        return true
    }
    return false
}

// BankDetails are the payout coordinates an artisan registers. The struct is
// embedded in User so sqlx maps its columns without a prefix.
type BankDetails struct {
    IBAN          string `db:"bank_details_iban" json:"iban"`
    BIC           string `db:"bank_details_bic" json:"bic"`
    AccountHolder string `db:"bank_details_account_holder" json:"accountHolder"`
}

// User mirrors the `users` table. PasswordHash never leaves the service.
type User struct {
    ID                string     `db:"id" json:"id"`
    Email             string     `db:"email" json:"email"`
    PasswordHash      string     `db:"password_hash" json:"-"`
    FirstName         string     `db:"first_name" json:"firstName"`
    LastName          string     `db:"last_name" json:"lastName"`
    Phone             string     `db:"phone" json:"phone"`
    Company           string     `db:"company" json:"company"`
    Role              Role       `db:"role" json:"role"`
    IsVerified        bool       `db:"is_verified" json:"isVerified"`
    IsCertified       bool       `db:"is_certified" json:"isCertified"`
    CreatedAt         time.Time  `db:"created_at" json:"createdAt"`
    Arrondissements   IntList    `db:"arrondissements" json:"arrondissements"`
    Trades            StringList `db:"trades" json:"trades"`
    Rating            float64    `db:"rating" json:"rating"`
    CompletedProjects int        `db:"completed_projects" json:"completedProjects"`
    Avatar            string     `db:"avatar" json:"avatar"`
    BankDetails       `json:"bankDetails"`
}

// DisplayName is the name shown on timeline entries and chat messages.
func (u User) DisplayName() string {
    switch {
    case u.FirstName != "" && u.LastName != "":
        return u.FirstName + " " + u.LastName
    case u.FirstName != "":
        return u.FirstName
    case u.Company != "":
        return u.Company
    }
    return u.Email
}

// Serves reports whether an artisan covers the trade and arrondissement of e.
// An empty trade or area list on the profile means no restriction.
func (u User) Serves(e Emergency) bool {
    if len(u.Trades) > 0 && !u.Trades.Contains(e.Trade) {
        return false
    }
    if len(u.Arrondissements) > 0 && !u.Arrondissements.Contains(e.Arrondissement) {
        return false
    }
    return true
}

// RefreshToken models an entry in the `refresh_tokens` table. Only the
// SHA-256 hash of the raw token is stored.
type RefreshToken struct {
    ID        string     `db:"id"`
    UserID    string     `db:"user_id"`
    TokenHash string     `db:"token_hash"`
    ExpiresAt time.Time  `db:"expires_at"`
    RevokedAt *time.Time `db:"revoked_at"`
    CreatedAt time.Time  `db:"created_at"`
}
