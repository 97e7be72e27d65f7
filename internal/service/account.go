package service

import (
    "context"
    "errors"
    "fmt"
    "net/mail"
    "strings"

    "github.com/iliyamo/mano-pro/internal/model"
    "github.com/iliyamo/mano-pro/internal/repository"
    "github.com/iliyamo/mano-pro/internal/utils"
)

// AccountService owns registration, sign-in and profiles.
type AccountService struct{ *base }

type RegisterInput struct {
    Email           string     `json:"email"`
    Password        string     `json:"password"`
    FirstName       string     `json:"firstName"`
    LastName        string     `json:"lastName"`
    Phone           string     `json:"phone"`
    Company         string     `json:"company"`
    Role            model.Role `json:"role"`
    Trades          []string   `json:"trades"`
    Arrondissements []int      `json:"arrondissements"`
}

// MinPasswordLen is the shortest password Register accepts.
const MinPasswordLen = utils.MinPasswordLen

// Register creates a gestionnaire or artisan account. Emails are compared
// trimmed and lower-cased; a taken email yields repository.ErrEmailExists.
func (s *AccountService) Register(ctx context.Context, in RegisterInput) (u model.User, err error) {
    ctx, end := s.span(ctx, "accounts.register")
    defer func() { end(&err) }()

    in.Email = strings.ToLower(strings.TrimSpace(in.Email))
    if _, perr := mail.ParseAddress(in.Email); perr != nil || in.Email == "" {
        return model.User{}, invalid("email is invalid")
    }
    if len(in.Password) < MinPasswordLen {
        return model.User{}, invalid("password must be at least %d characters", MinPasswordLen)
    }
    in.FirstName = strings.TrimSpace(in.FirstName)
    in.LastName = strings.TrimSpace(in.LastName)
    if in.FirstName == "" || in.LastName == "" {
        return model.User{}, invalid("firstName and lastName are required")
    }
    if in.Role != model.RoleGestionnaire && in.Role != model.RoleArtisan {
        return model.User{}, invalid("role must be gestionnaire or artisan")
    }
    if err := checkTrades(in.Trades); err != nil {
        return model.User{}, err
    }
    if err := checkArrondissements(in.Arrondissements); err != nil {
        return model.User{}, err
    }

    hash, err := utils.HashPassword(in.Password, s.bcryptCost)
    if err != nil {
        return model.User{}, err
    }
    u = model.User{
        ID:              s.newID(),
        Email:           in.Email,
        PasswordHash:    hash,
        FirstName:       in.FirstName,
        LastName:        in.LastName,
        Phone:           strings.TrimSpace(in.Phone),
        Company:         strings.TrimSpace(in.Company),
        Role:            in.Role,
        CreatedAt:       s.now(),
        Trades:          model.StringList(in.Trades),
        Arrondissements: model.IntList(in.Arrondissements),
    }
    if u.Trades == nil {
        u.Trades = model.StringList{}
    }
    if u.Arrondissements == nil {
        u.Arrondissements = model.IntList{}
    }
    if err := s.store.Users.Create(ctx, &u); err != nil {
        return model.User{}, err
    }
    return u, nil
}

// Authenticate checks an email/password pair.
func (s *AccountService) Authenticate(ctx context.Context, email, password string) (model.User, error) {
    u, err := s.store.Users.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
    if errors.Is(err, repository.ErrNotFound) {
        return model.User{}, ErrInvalidCredentials
    }
    if err != nil {
        return model.User{}, err
    }
    if err := utils.CheckPassword(u.PasswordHash, password); err != nil {
        if errors.Is(err, utils.ErrPasswordMismatch) {
            return model.User{}, ErrInvalidCredentials
        }
        return model.User{}, fmt.Errorf("user %s: %w", u.ID, err)
    }
    return u, nil
}

func (s *AccountService) Profile(ctx context.Context, id string) (model.User, error) {
    return s.store.Users.GetByID(ctx, id)
}

// ProfileInput carries a partial profile update; nil fields are kept.
type ProfileInput struct {
    FirstName       *string            `json:"firstName"`
    LastName        *string            `json:"lastName"`
    Phone           *string            `json:"phone"`
    Company         *string            `json:"company"`
    Avatar          *string            `json:"avatar"`
    Trades          []string           `json:"trades"`
    Arrondissements []int              `json:"arrondissements"`
    BankDetails     *model.BankDetails `json:"bankDetails"`
}

func (s *AccountService) UpdateProfile(ctx context.Context, actor Actor, in ProfileInput) (u model.User, err error) {
    ctx, end := s.span(ctx, "accounts.update_profile")
    defer func() { end(&err) }()

    u, err = s.store.Users.GetByID(ctx, actor.ID)
    if err != nil {
        return model.User{}, err
    }
    set := func(dst *string, v *string) {
        if v != nil {
            *dst = strings.TrimSpace(*v)
        }
    }
    set(&u.FirstName, in.FirstName)
    set(&u.LastName, in.LastName)
    set(&u.Phone, in.Phone)
    set(&u.Company, in.Company)
    set(&u.Avatar, in.Avatar)
    if u.FirstName == "" || u.LastName == "" {
        return model.User{}, invalid("firstName and lastName cannot be empty")
    }
    if in.Trades != nil {
        if err := checkTrades(in.Trades); err != nil {
            return model.User{}, err
        }
        u.Trades = model.StringList(in.Trades)
    }
    if in.Arrondissements != nil {
        if err := checkArrondissements(in.Arrondissements); err != nil {
            return model.User{}, err
        }
        u.Arrondissements = model.IntList(in.Arrondissements)
    }
    if in.BankDetails != nil {
        u.BankDetails = model.BankDetails{
            IBAN:          strings.ToUpper(strings.ReplaceAll(in.BankDetails.IBAN, " ", "")),
            BIC:           strings.ToUpper(strings.TrimSpace(in.BankDetails.BIC)),
            AccountHolder: strings.TrimSpace(in.BankDetails.AccountHolder),
        }
    }
    if err := s.store.Users.UpdateProfile(ctx, &u); err != nil {
        return model.User{}, err
    }
    return u, nil
}

// SetVerification lets an admin mark an account verified and, for artisans,
// certified.
func (s *AccountService) SetVerification(ctx context.Context, actor Actor, userID string, verified, certified bool) (model.User, error) {
    if !actor.IsAdmin() {
        return model.User{}, ErrForbidden
    }
    u, err := s.store.Users.GetByID(ctx, userID)
    if err != nil {
        return model.User{}, err
    }
    if certified && u.Role != model.RoleArtisan {
        return model.User{}, invalid("only artisans can be certified")
    }
    if err := s.store.Users.SetVerification(ctx, userID, verified, certified); err != nil {
        return model.User{}, err
    }
    u.IsVerified, u.IsCertified = verified, certified
    return u, nil
}

func checkTrades(trades []string) error {
    for _, t := range trades {
        if !model.ValidTrade(t) {
            return invalid("unknown trade %q", t)
        }
    }
    return nil
}

func checkArrondissements(ns []int) error {
    for _, n := range ns {
        if !model.ValidArrondissement(n) {
            return invalid("arrondissement %d out of range", n)
        }
    }
    return nil
}
