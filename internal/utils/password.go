package utils

import (
    "errors"
    "fmt"

    "golang.org/x/crypto/bcrypt"
)

// MinPasswordLen is the shortest password accepted for hashing.
const MinPasswordLen = 8

var (
    ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLen)
    ErrPasswordMismatch = errors.New("password does not match")
)

// HashPassword returns the bcrypt hash of plain using the given cost.
func HashPassword(plain string, cost int) (string, error) {
    if len(plain) < MinPasswordLen {
        return "", ErrPasswordTooShort
    }
    b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
    if err != nil {
        return "", fmt.Errorf("hash password: %w", err)
    }
    return string(b), nil
}

// CheckPassword compares plain with a stored hash. A wrong password yields
// ErrPasswordMismatch; any other error means the stored hash is unusable.
func CheckPassword(hash, plain string) error {
    err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
    switch {
    case err == nil:
        return nil
    case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
        return ErrPasswordMismatch
    default:
        return fmt.Errorf("check password: %w", err)
    }
}
