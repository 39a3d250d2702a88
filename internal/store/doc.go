// Package store defines the persistence interfaces the orchestration core
// depends on, along with the sentinel errors implementations must return.
// Concrete implementations live in internal/platform/postgres.
package store
