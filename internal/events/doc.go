// Package events provides the status-notification bus for generation
// progress. Updates are published keyed by task identifier and fanned out
// to any currently subscribed listeners; there is no buffering, replay, or
// delivery guarantee. The bus exists purely for live progress UX; the
// generation store remains the source of truth for final state.
package events
