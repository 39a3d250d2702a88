// Package api contains the HTTP handlers for generation submission,
// result retrieval, listings, and the live status stream, plus the
// mapping from internal errors to safe client-facing responses.
package api
