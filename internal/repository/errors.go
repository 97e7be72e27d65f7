// Package repository implements the MySQL-backed stores. The sentinel
// errors below are shared with the in-memory store so higher layers can
// translate them without knowing which backend is in use.
package repository

import (
    "errors"

    "github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row does not exist. Handlers translate it
// into a 404.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write collides with existing state, such as
// a second proposal from the same artisan or a second invoice for a payment.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when registering an email that is already taken.
var ErrEmailExists = errors.New("email already exists")

// isDuplicate reports MySQL error 1062 (duplicate entry on a unique key).
func isDuplicate(err error) bool {
    var me *mysql.MySQLError
    return errors.As(err, &me) && me.Number == 1062
}
