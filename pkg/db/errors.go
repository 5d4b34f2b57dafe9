package db

import (
	"strings"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

// IsUniqueViolation reports whether err is a unique-constraint failure. On
// Postgres a non-empty constraintName must match too; SQLite does not report
// constraint names, so any unique failure matches there.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if d := pkgerrors.DriverErrorOf(err); d != nil {
		if !d.UniqueViolation() {
			return false
		}
		return constraintName == "" || d.Driver == pkgerrors.DriverSQLite || d.Constraint == constraintName
	}
	// drivers behind database/sql wrappers sometimes only keep the text
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
