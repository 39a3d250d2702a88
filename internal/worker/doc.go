// Package worker runs the per-provider polling lanes. Each lane owns a
// deduplicating FIFO queue drained by a single goroutine that polls the
// provider adapter for one task at a time, downloads the resulting
// artifacts, persists the outcome, and publishes progress on the status
// bus. The orchestrator wires the lanes together and handles the
// preview-to-refine chaining between them.
package worker
