package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/veloxi/forge-api/internal/domain"
)

// ErrNotReady is returned by Poll while the provider is still working on
// the task. It is transient: the poll loop keeps waiting.
var ErrNotReady = errors.New("provider result not ready")

// FatalError marks a provider-reported failure (authorization failure,
// malformed job, explicit failure status). The poll loop aborts
// immediately and marks the task failed; there is no retry.
type FatalError struct {
	Reason string
}

// Error implements the error interface.
func (e *FatalError) Error() string {
	return fmt.Sprintf("provider reported failure: %s", e.Reason)
}

// IsFatal reports whether err carries a provider-reported failure.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}

// TextureRef describes one texture artifact exposed by a refine-class
// result, identified by its slot (base_color, metallic, ...) or file name.
type TextureRef struct {
	Slot string
	URL  string
}

// Result is the normalized terminal-success payload of a poll. Artifact
// URLs are remote provider URLs; the caller downloads and rewrites them.
// Kinds the provider did not return are simply absent from the map.
type Result struct {
	Artifacts domain.ArtifactSet
	Textures  []TextureRef

	// Audio metadata, populated by the audio adapter only.
	Title  string
	Tags   string
	Lyrics string
}

// Adapter is the common capability set of all provider integrations.
// Poll returns ErrNotReady while the task is still running, a *FatalError
// when the provider reports the job failed, a plain error on transport
// problems, and the normalized Result on terminal success.
type Adapter interface {
	// Name returns the lane tag the adapter polls for, e.g. "mesh-preview".
	Name() string

	// Provider returns the backend the adapter integrates with.
	Provider() domain.Provider

	// Poll fetches and normalizes the provider's view of the task.
	Poll(ctx context.Context, taskID string) (*Result, error)
}

// FollowUpSubmitter is implemented by adapters whose success chains into a
// dependent second phase on the same provider (preview -> refine).
type FollowUpSubmitter interface {
	// SubmitFollowUp starts the dependent phase for a completed task and
	// returns the provider identifier of the new phase.
	SubmitFollowUp(ctx context.Context, primaryID string) (string, error)
}
