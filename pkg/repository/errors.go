package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgDuplicateKeyCode = "23505"

// SQLite extended result codes for uniqueness violations.
const (
	sqlitePrimaryKeyCode = 1555
	sqliteUniqueCode     = 2067
)

// MapError translates database errors to domain errors.
// It maps sql.ErrNoRows to notFoundErr and unique violations from either
// PostgreSQL (23505) or SQLite (primary key, unique) to duplicateErr.
// Other errors are returned unchanged.
func MapError(err error, notFoundErr, duplicateErr error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgDuplicateKeyCode {
		return duplicateErr
	}

	if code, ok := sqliteCode(err); ok && (code == sqlitePrimaryKeyCode || code == sqliteUniqueCode) {
		return duplicateErr
	}

	return err
}

func sqliteCode(err error) (int, bool) {
	var coded interface{ Code() int }
	if errors.As(err, &coded) {
		return coded.Code(), true
	}
	return 0, false
}
