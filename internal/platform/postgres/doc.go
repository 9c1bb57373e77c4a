// Package postgres implements the storage interfaces of internal/store on
// PostgreSQL through database/sql and the pgx driver. It also owns the
// embedded schema migrations.
package postgres
