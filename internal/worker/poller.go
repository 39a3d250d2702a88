package worker

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/veloxi/forge-api/internal/artifact"
	"github.com/veloxi/forge-api/internal/domain"
	"github.com/veloxi/forge-api/internal/events"
	"github.com/veloxi/forge-api/internal/provider"
	"github.com/veloxi/forge-api/internal/store"
)

// placeholderThumbnail is the pre-provisioned image served when the
// thumbnail renderer is unavailable or fails.
const placeholderThumbnail = "model-placeholder.png"

// Lane configures one polling queue: which adapter it polls, how often,
// and for how long before giving up on a task.
type Lane struct {
	// Name identifies the lane, e.g. "mesh-preview".
	Name string

	// Adapter polls the provider for this lane's tasks.
	Adapter provider.Adapter

	// Interval is the sleep between status checks.
	Interval time.Duration

	// Budget is the wall-clock ceiling for one task. On expiry the loop
	// exits and a timeout event is published.
	Budget time.Duration

	// FatalGrace, when non-zero, is how long transport errors may recur
	// before the task is abandoned. Zero means transport errors never
	// escalate on their own; only the budget ends the task.
	FatalGrace time.Duration

	// PersistTimeout makes a budget expiry write the timeout state to the
	// store. Lanes whose providers hold no recoverable remote state leave
	// the record pending instead.
	PersistTimeout bool

	// FollowUpLane names the lane a successful task chains into, for
	// adapters implementing provider.FollowUpSubmitter. Empty means no
	// chaining.
	FollowUpLane string
}

// Deps are the collaborators shared by all lane workers.
type Deps struct {
	Generations store.GenerationStore
	Textures    store.TextureStore
	Fetcher     *artifact.Fetcher
	Renderer    artifact.Renderer
	Notifier    events.Notifier
	Logger      *slog.Logger
}

// laneWorker drains one lane's queue with a single goroutine.
type laneWorker struct {
	lane    Lane
	queue   *Queue
	deps    Deps
	logger  *slog.Logger
	enqueue func(lane, taskID string) error
}

// run processes queued tasks until ctx is canceled. Tasks are handled
// one at a time in FIFO order.
func (w *laneWorker) run(ctx context.Context) {
	for {
		for {
			taskID, ok := w.queue.TryDequeue()
			if !ok {
				break
			}
			w.processTask(ctx, taskID)
			w.queue.Done(taskID)
			if ctx.Err() != nil {
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-w.queue.Notify():
		}
	}
}

// processTask drives one task from pending to a terminal outcome: poll
// until ready, download artifacts, persist, publish, and chain the
// follow-up phase when configured.
func (w *laneWorker) processTask(ctx context.Context, taskID string) {
	log := w.logger.With("task_id", taskID)

	gen, err := w.deps.Generations.GetByTaskID(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrGenerationNotFound) {
			log.Warn("dequeued task has no generation record")
		} else {
			log.Error("failed to load generation", "error", err)
		}
		return
	}

	// Re-enqueues of finished tasks are a no-op. The refine phase runs on
	// a record its preview phase already marked succeeded, so it is gated
	// on its own artifacts rather than the record state.
	if gen.IsRefinePhase(taskID) {
		if gen.State != domain.StateSucceeded || gen.Artifacts[domain.ArtifactRefineImage] != "" {
			log.Debug("skipping refine task with nothing left to do", "state", string(gen.State))
			return
		}
	} else if gen.State.Terminal() {
		log.Debug("skipping task already in terminal state", "state", string(gen.State))
		return
	}

	w.deps.Notifier.Publish(taskID, events.StatusProcessing, "Worker started processing.")

	result, ok := w.pollUntilReady(ctx, taskID, gen, log)
	if !ok {
		return
	}

	w.deps.Notifier.Publish(taskID, events.StatusDownloading, "Downloading the result...")
	artifacts := w.downloadArtifacts(ctx, taskID, result, log)

	if w.lane.Adapter.Provider() == domain.ProviderGenerative {
		w.ensureThumbnail(ctx, taskID, artifacts, log)
	}

	// Preview-class success chains into the refine phase before the record
	// is persisted, so the secondary identifier lands in the same update.
	chained := false
	if w.lane.FollowUpLane != "" && !gen.IsRefinePhase(taskID) {
		if submitter, isSubmitter := w.lane.Adapter.(provider.FollowUpSubmitter); isSubmitter {
			secondaryID, submitErr := submitter.SubmitFollowUp(ctx, taskID)
			if submitErr != nil {
				log.Error("follow-up submission failed", "error", submitErr)
			} else {
				gen.SecondaryID = secondaryID
				chained = true
			}
		}
	}

	gen.Artifacts = gen.Artifacts.Merge(artifacts)
	if result.Title != "" {
		gen.Title = result.Title
	}
	if result.Tags != "" {
		gen.Tags = result.Tags
	}
	if result.Lyrics != "" {
		gen.Lyrics = result.Lyrics
	}

	gen.State = domain.StateSucceeded
	gen.UpdatedAt = time.Now().UTC()

	if err := w.deps.Generations.Update(ctx, gen); err != nil {
		log.Error("failed to persist generation result", "error", err)
		w.deps.Notifier.Publish(taskID, events.StatusError, "Failed to save the result.")
		return
	}

	w.deps.Notifier.Publish(taskID, events.StatusDone, "Task completed.")
	log.Info("task completed",
		"state", string(gen.State),
		"artifact_count", len(artifacts),
		"chained", chained)

	w.attachTextures(ctx, taskID, gen, result.Textures, log)

	if chained {
		if err := w.enqueue(w.lane.FollowUpLane, gen.SecondaryID); err != nil {
			log.Error("failed to enqueue follow-up task",
				"follow_up_lane", w.lane.FollowUpLane,
				"secondary_id", gen.SecondaryID,
				"error", err)
		}
	}
}

// pollUntilReady polls the adapter until success, a terminal failure, or
// the lane's budget expires. The bool result is false when the task is
// finished without a usable result.
func (w *laneWorker) pollUntilReady(
	ctx context.Context,
	taskID string,
	gen *domain.Generation,
	log *slog.Logger,
) (*provider.Result, bool) {
	budget := time.NewTimer(w.lane.Budget)
	defer budget.Stop()

	var transportSince time.Time

	for {
		result, err := w.lane.Adapter.Poll(ctx, taskID)
		switch {
		case err == nil:
			return result, true

		case errors.Is(err, provider.ErrNotReady):
			transportSince = time.Time{}
			w.deps.Notifier.Publish(taskID, events.StatusWaiting, "Still processing...")

		case provider.IsFatal(err):
			log.Warn("provider reported task failure", "error", err)
			w.deps.Notifier.Publish(taskID, events.StatusError, err.Error())
			// A failed refine leaves the succeeded preview result in place.
			if !gen.IsRefinePhase(taskID) {
				w.markState(ctx, gen, domain.StateFailed, log)
			}
			return nil, false

		default:
			// Transport problem: transient until it outlives the grace window.
			log.Warn("poll attempt failed", "error", err)
			w.deps.Notifier.Publish(taskID, events.StatusError, "Temporary error while checking status.")
			if w.lane.FatalGrace > 0 {
				if transportSince.IsZero() {
					transportSince = time.Now()
				} else if time.Since(transportSince) > w.lane.FatalGrace {
					log.Error("abandoning task after persistent poll failures",
						"grace", w.lane.FatalGrace)
					w.deps.Notifier.Publish(taskID, events.StatusFatalTimeout,
						"Task abandoned after repeated errors.")
					w.markState(ctx, gen, domain.StateTimeout, log)
					return nil, false
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil, false
		case <-budget.C:
			log.Warn("task exceeded time budget", "budget", w.lane.Budget)
			w.deps.Notifier.Publish(taskID, events.StatusTimeout, "Task timed out.")
			if w.lane.PersistTimeout {
				w.markState(ctx, gen, domain.StateTimeout, log)
			}
			return nil, false
		case <-time.After(w.lane.Interval):
		}
	}
}

// markState writes a terminal state, logging rather than failing on a
// store error: the task is over either way.
func (w *laneWorker) markState(ctx context.Context, gen *domain.Generation, state domain.GenerationState, log *slog.Logger) {
	if err := w.deps.Generations.UpdateState(ctx, gen.ID, state); err != nil {
		log.Error("failed to record terminal state",
			"state", string(state),
			"error", err)
	}
}

// downloadArtifacts fetches every artifact URL the result exposes. A
// single failed download is logged and skipped; it does not fail the
// task.
func (w *laneWorker) downloadArtifacts(
	ctx context.Context,
	taskID string,
	result *provider.Result,
	log *slog.Logger,
) domain.ArtifactSet {
	artifacts := make(domain.ArtifactSet, len(result.Artifacts))
	for kind, remoteURL := range result.Artifacts {
		publicURL, err := w.deps.Fetcher.Fetch(ctx, remoteURL, kind, taskID)
		if err != nil {
			log.Warn("artifact download failed",
				"kind", string(kind),
				"error", err)
			w.deps.Notifier.Publish(taskID, events.StatusError, "Failed to download an artifact.")
			continue
		}
		if publicURL != "" {
			artifacts[kind] = publicURL
		}
	}
	return artifacts
}

// ensureThumbnail fills the preview-image slot for model-only results by
// rendering the stored model. On renderer failure or absence the
// placeholder image is used so clients always have something to show.
func (w *laneWorker) ensureThumbnail(ctx context.Context, taskID string, artifacts domain.ArtifactSet, log *slog.Logger) {
	if artifacts[domain.ArtifactPreviewImage] != "" || artifacts[domain.ArtifactModelGLB] == "" {
		return
	}

	w.deps.Notifier.Publish(taskID, events.StatusRenderingThumbnail, "Generating a thumbnail...")

	modelPath, ok := w.deps.Fetcher.LocalPath(artifacts[domain.ArtifactModelGLB])
	renderErr := artifact.ErrRendererUnavailable
	fileName := taskID + "_thumb.png"
	if ok && w.deps.Renderer != nil {
		renderErr = w.deps.Renderer.Render(ctx, modelPath, w.deps.Fetcher.Path(domain.ArtifactPreviewImage, fileName))
	}

	if renderErr != nil {
		log.Warn("thumbnail fallback failed", "error", renderErr)
		w.deps.Notifier.Publish(taskID, events.StatusRenderingThumbnailFailed, "Could not generate a thumbnail.")
		artifacts[domain.ArtifactPreviewImage] = w.deps.Fetcher.PublicURL(domain.ArtifactPreviewImage, placeholderThumbnail)
		return
	}

	w.deps.Notifier.Publish(taskID, events.StatusRenderingThumbnailDone, "Thumbnail ready.")
	artifacts[domain.ArtifactPreviewImage] = w.deps.Fetcher.PublicURL(domain.ArtifactPreviewImage, fileName)
}

// attachTextures downloads each texture descriptor and creates one
// Texture record per successful fetch. Failures are logged per texture
// and never roll back the generation's success.
func (w *laneWorker) attachTextures(
	ctx context.Context,
	taskID string,
	gen *domain.Generation,
	textures []provider.TextureRef,
	log *slog.Logger,
) {
	for _, tex := range textures {
		publicURL, err := w.deps.Fetcher.Fetch(ctx, tex.URL, domain.ArtifactTexture, textureFileName(taskID, tex.Slot))
		if err != nil || publicURL == "" {
			log.Warn("texture download failed", "slot", tex.Slot, "error", err)
			continue
		}

		texture, err := domain.NewTexture(gen.ID, tex.Slot, publicURL)
		if err != nil {
			log.Warn("skipping invalid texture", "slot", tex.Slot, "error", err)
			continue
		}
		if err := w.deps.Textures.Create(ctx, texture); err != nil {
			log.Warn("failed to save texture record", "slot", tex.Slot, "error", err)
		}
	}
}

// textureFileName derives a collision-free storage name for a texture
// from the task id and its slot. Slots arriving as file names keep only
// their stem; the extension comes from the remote URL.
func textureFileName(taskID, slot string) string {
	stem := strings.TrimSuffix(slot, path.Ext(slot))
	stem = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ':
			return '-'
		}
		return r
	}, stem)
	if stem == "" {
		stem = "texture"
	}
	return taskID + "_" + stem
}
