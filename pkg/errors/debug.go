package errors

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// DriverError is the database failure found somewhere in an error chain,
// normalised across pgx, lib/pq and go-sqlite3.
type DriverError struct {
	Driver     string `json:"driver"`
	Code       string `json:"code"`
	Constraint string `json:"constraint,omitempty"`
	Table      string `json:"table,omitempty"`
	Column     string `json:"column,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Message    string `json:"message,omitempty"`

	unique bool
	check  bool
}

// DriverErrorOf returns nil when err carries no driver error.
func DriverErrorOf(err error) *DriverError {
	if err == nil {
		return nil
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return postgresError(pgxErr.Code, pgxErr.ConstraintName, pgxErr.TableName, pgxErr.ColumnName, pgxErr.Detail, pgxErr.Message)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return postgresError(string(pqErr.Code), pqErr.Constraint, pqErr.Table, pqErr.Column, pqErr.Detail, pqErr.Message)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		d := &DriverError{
			Driver:  DriverSQLite,
			Code:    strconv.Itoa(int(liteErr.ExtendedCode)),
			Message: liteErr.Error(),
			unique:  liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey,
			check:   liteErr.ExtendedCode == sqlite3.ErrConstraintCheck,
		}
		// "UNIQUE constraint failed: inventory_records.target_id"
		if _, target, ok := strings.Cut(d.Message, "constraint failed: "); ok {
			first, _, _ := strings.Cut(target, ",")
			d.Table, d.Column, _ = strings.Cut(strings.TrimSpace(first), ".")
		}
		return d
	}
	return nil
}

func postgresError(code, constraint, table, column, detail, message string) *DriverError {
	return &DriverError{
		Driver:     DriverPostgres,
		Code:       code,
		Constraint: constraint,
		Table:      table,
		Column:     column,
		Detail:     detail,
		Message:    message,
		unique:     code == pgUniqueViolation,
		check:      code == pgCheckViolation,
	}
}

func (d *DriverError) UniqueViolation() bool { return d != nil && d.unique }

func (d *DriverError) CheckViolation() bool { return d != nil && d.check }

// ErrorDump flattens an error chain for request logs.
type ErrorDump struct {
	TopMessage string       `json:"top_message"`
	Code       Code         `json:"code,omitempty"`
	Chain      []string     `json:"chain,omitempty"`
	DB         *DriverError `json:"db,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error(), DB: DriverErrorOf(err)}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}
	return d
}

// Fields renders the dump as structured log fields; db_* keys only appear
// when a driver error was found.
func (d ErrorDump) Fields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	if d.DB != nil {
		fields["db_driver"] = d.DB.Driver
		fields["db_code"] = d.DB.Code
		fields["db_message"] = d.DB.Message
		if d.DB.Constraint != "" {
			fields["db_constraint"] = d.DB.Constraint
		}
		if d.DB.Table != "" {
			fields["db_table"] = d.DB.Table
		}
		if d.DB.Detail != "" {
			fields["db_detail"] = d.DB.Detail
		}
	}
	return fields
}
