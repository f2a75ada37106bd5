// Package database provides the Postgres connection pool used by the
// tick store. One pool per process; the store layers schema and
// queries on top of it.
package database
