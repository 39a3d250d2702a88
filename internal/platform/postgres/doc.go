// Package postgres provides PostgreSQL-backed implementations of the
// store interfaces, plus the embedded schema migrations. All stores
// accept a store.DBTX so they can run against a connection pool or an
// enclosing transaction.
package postgres
