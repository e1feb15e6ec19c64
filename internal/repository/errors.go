package repository

import (
	"database/sql"
	"errors"

	"github.com/dmatch/dmatch-api/pkg/database"
)

// ErrDuplicate is returned when an insert hits a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// isNoRows treats an identifier the database cannot parse like a missing row.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || database.IsInvalidTextRepresentation(err)
}
