package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrDuplicateUsername = errors.New("username already exists")
	ErrDuplicateEmail    = errors.New("email already exists")
	ErrDuplicateCategory = errors.New("category title already exists")
	ErrNoActiveSession   = errors.New("no active session")
	ErrQuestionMissing   = errors.New("question missing")
	ErrExamInUse         = errors.New("exam has sessions in progress")
)

// uniqueViolation reports whether err is a unique-constraint violation and
// returns the violated constraint name.
func uniqueViolation(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName, true
	}
	return "", false
}
