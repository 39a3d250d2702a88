package worker

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloxi/forge-api/internal/artifact"
	"github.com/veloxi/forge-api/internal/domain"
	"github.com/veloxi/forge-api/internal/events"
	"github.com/veloxi/forge-api/internal/provider"
	"github.com/veloxi/forge-api/internal/store/storetest"
)

// fakeAdapter scripts poll responses per attempt number (1-based).
type fakeAdapter struct {
	name string
	prov domain.Provider
	poll func(taskID string, attempt int) (*provider.Result, error)

	mu       sync.Mutex
	attempts map[string]int
}

func newFakeAdapter(name string, prov domain.Provider, poll func(string, int) (*provider.Result, error)) *fakeAdapter {
	return &fakeAdapter{name: name, prov: prov, poll: poll, attempts: make(map[string]int)}
}

func (a *fakeAdapter) Name() string              { return a.name }
func (a *fakeAdapter) Provider() domain.Provider { return a.prov }

func (a *fakeAdapter) Poll(_ context.Context, taskID string) (*provider.Result, error) {
	a.mu.Lock()
	a.attempts[taskID]++
	n := a.attempts[taskID]
	a.mu.Unlock()
	return a.poll(taskID, n)
}

func (a *fakeAdapter) attemptCount(taskID string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts[taskID]
}

// chainAdapter adds a scripted follow-up submission to fakeAdapter.
type chainAdapter struct {
	*fakeAdapter
	followUpID string

	mu        sync.Mutex
	followUps int
}

func (a *chainAdapter) SubmitFollowUp(_ context.Context, _ string) (string, error) {
	a.mu.Lock()
	a.followUps++
	a.mu.Unlock()
	return a.followUpID, nil
}

func (a *chainAdapter) followUpCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.followUps
}

type testHarness struct {
	generations *storetest.MemoryGenerationStore
	textures    *storetest.MemoryTextureStore
	broker      *events.Broker
	deps        Deps
	fileServer  *httptest.Server
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	fileServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("artifact-bytes"))
	}))
	t.Cleanup(fileServer.Close)

	logger := slog.Default()
	generations := storetest.NewMemoryGenerationStore()
	textures := storetest.NewMemoryTextureStore()
	broker := events.NewBroker(logger)

	return &testHarness{
		generations: generations,
		textures:    textures,
		broker:      broker,
		fileServer:  fileServer,
		deps: Deps{
			Generations: generations,
			Textures:    textures,
			Fetcher:     artifact.NewFetcher(t.TempDir(), "https://forge.example.com", logger),
			Notifier:    broker,
			Logger:      logger,
		},
	}
}

// collectStatuses records every status published for taskID until the
// test ends.
func (h *testHarness) collectStatuses(t *testing.T, taskID string) func() []events.Status {
	t.Helper()

	ch, cancel := h.broker.Subscribe(taskID)
	t.Cleanup(cancel)

	var mu sync.Mutex
	var seen []events.Status
	go func() {
		for update := range ch {
			mu.Lock()
			seen = append(seen, update.Status)
			mu.Unlock()
		}
	}()

	return func() []events.Status {
		mu.Lock()
		defer mu.Unlock()
		return append([]events.Status(nil), seen...)
	}
}

func (h *testHarness) createPending(t *testing.T, prov domain.Provider, category domain.Category, taskID string) *domain.Generation {
	t.Helper()
	gen, err := domain.NewGeneration(prov, category, taskID, "a red chair", "", domain.OwnerRef{})
	require.NoError(t, err)
	require.NoError(t, h.generations.Create(context.Background(), gen))
	return gen
}

func startOrchestrator(t *testing.T, deps Deps, lanes ...Lane) *Orchestrator {
	t.Helper()
	orch, err := NewOrchestrator(deps, lanes...)
	require.NoError(t, err)
	require.NoError(t, orch.Start(context.Background()))
	t.Cleanup(orch.Stop)
	return orch
}

func waitForState(t *testing.T, h *testHarness, taskID string, state domain.GenerationState) *domain.Generation {
	t.Helper()
	var gen *domain.Generation
	require.Eventually(t, func() bool {
		g, err := h.generations.GetByTaskID(context.Background(), taskID)
		if err != nil {
			return false
		}
		gen = g
		return g.State == state
	}, 5*time.Second, 5*time.Millisecond)
	return gen
}

func TestTaskSucceedsWithDownloadedArtifacts(t *testing.T) {
	h := newHarness(t)
	adapter := newFakeAdapter("audio", domain.ProviderAudio, func(_ string, attempt int) (*provider.Result, error) {
		if attempt == 1 {
			return nil, provider.ErrNotReady
		}
		return &provider.Result{
			Artifacts: domain.ArtifactSet{
				domain.ArtifactAudio:        h.fileServer.URL + "/track.mp3",
				domain.ArtifactPreviewImage: h.fileServer.URL + "/cover.png",
			},
			Title:  "Neon Rain",
			Tags:   "synthwave",
			Lyrics: "verse one",
		}, nil
	})

	h.createPending(t, domain.ProviderAudio, domain.CategoryAudio, "T1")
	statuses := h.collectStatuses(t, "T1")

	orch := startOrchestrator(t, h.deps, Lane{
		Name: "audio", Adapter: adapter, Interval: time.Millisecond, Budget: time.Second,
	})
	require.NoError(t, orch.Enqueue("audio", "T1"))

	gen := waitForState(t, h, "T1", domain.StateSucceeded)
	assert.Equal(t, "https://forge.example.com/assets/music/T1.mp3", gen.Artifacts[domain.ArtifactAudio])
	assert.Equal(t, "https://forge.example.com/assets/images/T1.png", gen.Artifacts[domain.ArtifactPreviewImage])
	assert.Equal(t, "Neon Rain", gen.Title)
	assert.Equal(t, "synthwave", gen.Tags)
	assert.Equal(t, "verse one", gen.Lyrics)

	require.Eventually(t, func() bool {
		seen := statuses()
		return len(seen) > 0 && seen[len(seen)-1] == events.StatusDone
	}, 5*time.Second, 5*time.Millisecond)
	seen := statuses()
	assert.Equal(t, events.StatusQueued, seen[0])
	assert.Contains(t, seen, events.StatusProcessing)
	assert.Contains(t, seen, events.StatusWaiting)
	assert.Contains(t, seen, events.StatusDownloading)
}

func TestDuplicateEnqueueProcessesOnce(t *testing.T) {
	h := newHarness(t)
	adapter := newFakeAdapter("audio", domain.ProviderAudio, func(_ string, _ int) (*provider.Result, error) {
		return &provider.Result{Artifacts: domain.ArtifactSet{
			domain.ArtifactAudio: h.fileServer.URL + "/track.mp3",
		}}, nil
	})

	h.createPending(t, domain.ProviderAudio, domain.CategoryAudio, "T1")

	orch, err := NewOrchestrator(h.deps, Lane{
		Name: "audio", Adapter: adapter, Interval: time.Millisecond, Budget: time.Second,
	})
	require.NoError(t, err)

	// Both enqueues land before the worker starts: exactly one pass.
	require.NoError(t, orch.Enqueue("audio", "T1"))
	require.NoError(t, orch.Enqueue("audio", "T1"))

	require.NoError(t, orch.Start(context.Background()))
	t.Cleanup(orch.Stop)

	waitForState(t, h, "T1", domain.StateSucceeded)
	assert.Equal(t, 1, adapter.attemptCount("T1"))
}

func TestEnqueueUnknownLane(t *testing.T) {
	h := newHarness(t)
	orch, err := NewOrchestrator(h.deps)
	require.NoError(t, err)

	err = orch.Enqueue("no-such-lane", "T1")
	assert.ErrorIs(t, err, ErrUnknownLane)
}

func TestTerminalTaskShortCircuits(t *testing.T) {
	h := newHarness(t)
	adapter := newFakeAdapter("audio", domain.ProviderAudio, func(_ string, _ int) (*provider.Result, error) {
		return &provider.Result{}, nil
	})

	gen := h.createPending(t, domain.ProviderAudio, domain.CategoryAudio, "T1")
	require.NoError(t, h.generations.UpdateState(context.Background(), gen.ID, domain.StateSucceeded))

	orch := startOrchestrator(t, h.deps, Lane{
		Name: "audio", Adapter: adapter, Interval: time.Millisecond, Budget: time.Second,
	})
	require.NoError(t, orch.Enqueue("audio", "T1"))

	// Give the worker a moment; the adapter must never be consulted.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, adapter.attemptCount("T1"))
}

func TestFatalProviderErrorMarksFailed(t *testing.T) {
	h := newHarness(t)
	adapter := newFakeAdapter("audio", domain.ProviderAudio, func(_ string, _ int) (*provider.Result, error) {
		return nil, &provider.FatalError{Reason: "prompt rejected"}
	})

	h.createPending(t, domain.ProviderAudio, domain.CategoryAudio, "T1")
	statuses := h.collectStatuses(t, "T1")

	orch := startOrchestrator(t, h.deps, Lane{
		Name: "audio", Adapter: adapter, Interval: time.Millisecond, Budget: time.Second,
	})
	require.NoError(t, orch.Enqueue("audio", "T1"))

	waitForState(t, h, "T1", domain.StateFailed)
	require.Eventually(t, func() bool {
		seen := statuses()
		for _, s := range seen {
			if s == events.StatusError {
				return true
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)
	assert.NotContains(t, statuses(), events.StatusDone)
}

func TestBudgetExpiryEndsWithTimeoutEvent(t *testing.T) {
	h := newHarness(t)
	adapter := newFakeAdapter("mesh-refine", domain.ProviderMeshy, func(_ string, _ int) (*provider.Result, error) {
		return nil, provider.ErrNotReady
	})

	h.createPending(t, domain.ProviderMeshy, domain.CategoryMesh, "T1")
	statuses := h.collectStatuses(t, "T1")

	orch := startOrchestrator(t, h.deps, Lane{
		Name:           "mesh-refine",
		Adapter:        adapter,
		Interval:       2 * time.Millisecond,
		Budget:         30 * time.Millisecond,
		PersistTimeout: true,
	})
	require.NoError(t, orch.Enqueue("mesh-refine", "T1"))

	waitForState(t, h, "T1", domain.StateTimeout)
	require.Eventually(t, func() bool {
		seen := statuses()
		return len(seen) > 0 && seen[len(seen)-1] == events.StatusTimeout
	}, 5*time.Second, 5*time.Millisecond)
	assert.NotContains(t, statuses(), events.StatusDone)
}

func TestTransportErrorsEscalateAfterGrace(t *testing.T) {
	h := newHarness(t)
	adapter := newFakeAdapter("mesh-generative", domain.ProviderGenerative, func(_ string, _ int) (*provider.Result, error) {
		return nil, assert.AnError
	})

	h.createPending(t, domain.ProviderGenerative, domain.CategoryMesh, "T1")
	statuses := h.collectStatuses(t, "T1")

	orch := startOrchestrator(t, h.deps, Lane{
		Name:           "mesh-generative",
		Adapter:        adapter,
		Interval:       2 * time.Millisecond,
		Budget:         5 * time.Second,
		FatalGrace:     20 * time.Millisecond,
		PersistTimeout: true,
	})
	require.NoError(t, orch.Enqueue("mesh-generative", "T1"))

	waitForState(t, h, "T1", domain.StateTimeout)
	require.Eventually(t, func() bool {
		seen := statuses()
		for _, s := range seen {
			if s == events.StatusFatalTimeout {
				return true
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)
}

func TestPreviewSuccessChainsIntoRefine(t *testing.T) {
	h := newHarness(t)

	preview := &chainAdapter{
		fakeAdapter: newFakeAdapter("mesh-preview", domain.ProviderMeshy, func(taskID string, _ int) (*provider.Result, error) {
			return &provider.Result{Artifacts: domain.ArtifactSet{
				domain.ArtifactModelGLB:     h.fileServer.URL + "/preview.glb",
				domain.ArtifactPreviewImage: h.fileServer.URL + "/preview.png",
			}}, nil
		}),
		followUpID: "T2",
	}
	refine := newFakeAdapter("mesh-refine", domain.ProviderMeshy, func(_ string, _ int) (*provider.Result, error) {
		return &provider.Result{
			Artifacts: domain.ArtifactSet{
				domain.ArtifactModelGLB:    h.fileServer.URL + "/refined.glb",
				domain.ArtifactRefineImage: h.fileServer.URL + "/refined.png",
			},
			Textures: []provider.TextureRef{
				{Slot: "base_color", URL: h.fileServer.URL + "/base.png"},
				{Slot: "metallic", URL: ""},
			},
		}, nil
	})

	gen := h.createPending(t, domain.ProviderMeshy, domain.CategoryMesh, "T1")
	refineStatuses := h.collectStatuses(t, "T2")

	orch := startOrchestrator(t, h.deps,
		Lane{Name: "mesh-preview", Adapter: preview, Interval: time.Millisecond, Budget: time.Second, FollowUpLane: "mesh-refine"},
		Lane{Name: "mesh-refine", Adapter: refine, Interval: time.Millisecond, Budget: time.Second},
	)
	require.NoError(t, orch.Enqueue("mesh-preview", "T1"))

	// The record is succeeded as soon as the preview phase finishes; the
	// refine phase backfills artifacts onto the succeeded record.
	var final *domain.Generation
	require.Eventually(t, func() bool {
		g, err := h.generations.GetByTaskID(context.Background(), "T1")
		if err != nil || g.SecondaryID != "T2" {
			return false
		}
		final = g
		return g.Artifacts[domain.ArtifactRefineImage] != ""
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, domain.StateSucceeded, final.State)
	assert.Equal(t, 1, preview.followUpCount())

	// Artifacts from both phases accumulate on the one record. The refine
	// phase overwrote the model entry with its own file.
	assert.Equal(t, "https://forge.example.com/assets/models/T2.glb", final.Artifacts[domain.ArtifactModelGLB])
	assert.Equal(t, "https://forge.example.com/assets/images/T1.png", final.Artifacts[domain.ArtifactPreviewImage])
	assert.Equal(t, "https://forge.example.com/assets/images/T2.png", final.Artifacts[domain.ArtifactRefineImage])

	// One texture record for the fetchable slot; the empty URL is skipped.
	require.Eventually(t, func() bool {
		textures, err := h.textures.ListByGenerationID(context.Background(), gen.ID)
		return err == nil && len(textures) == 1
	}, 5*time.Second, 5*time.Millisecond)
	textures, err := h.textures.ListByGenerationID(context.Background(), gen.ID)
	require.NoError(t, err)
	assert.Equal(t, "base_color", textures[0].Slot)
	assert.Equal(t, "https://forge.example.com/assets/images/T2_base_color.png", textures[0].URL)

	require.Eventually(t, func() bool {
		seen := refineStatuses()
		return len(seen) > 0 && seen[len(seen)-1] == events.StatusDone
	}, 5*time.Second, 5*time.Millisecond)
	assert.Equal(t, events.StatusQueued, refineStatuses()[0])
}

func TestPreviewSuccessMarksSucceededBeforeRefineCompletes(t *testing.T) {
	h := newHarness(t)

	preview := &chainAdapter{
		fakeAdapter: newFakeAdapter("mesh-preview", domain.ProviderMeshy, func(_ string, _ int) (*provider.Result, error) {
			return &provider.Result{Artifacts: domain.ArtifactSet{
				domain.ArtifactModelGLB: h.fileServer.URL + "/preview.glb",
			}}, nil
		}),
		followUpID: "T2",
	}
	refine := newFakeAdapter("mesh-refine", domain.ProviderMeshy, func(_ string, _ int) (*provider.Result, error) {
		return nil, provider.ErrNotReady
	})

	h.createPending(t, domain.ProviderMeshy, domain.CategoryMesh, "T1")

	orch := startOrchestrator(t, h.deps,
		Lane{Name: "mesh-preview", Adapter: preview, Interval: time.Millisecond, Budget: time.Second, FollowUpLane: "mesh-refine"},
		Lane{Name: "mesh-refine", Adapter: refine, Interval: time.Millisecond, Budget: time.Minute},
	)
	require.NoError(t, orch.Enqueue("mesh-preview", "T1"))

	// With the refine phase still polling, a reader already sees a usable
	// preview result.
	gen := waitForState(t, h, "T1", domain.StateSucceeded)
	assert.Equal(t, "T2", gen.SecondaryID)
	assert.Equal(t, "https://forge.example.com/assets/models/T1.glb", gen.Artifacts[domain.ArtifactModelGLB])

	require.Eventually(t, func() bool {
		return refine.attemptCount("T2") > 0
	}, 5*time.Second, 5*time.Millisecond)
	g, err := h.generations.GetByTaskID(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateSucceeded, g.State)
}

func TestCompletedRefineShortCircuits(t *testing.T) {
	h := newHarness(t)
	adapter := newFakeAdapter("mesh-refine", domain.ProviderMeshy, func(_ string, _ int) (*provider.Result, error) {
		return &provider.Result{}, nil
	})

	gen := h.createPending(t, domain.ProviderMeshy, domain.CategoryMesh, "T1")
	gen.SecondaryID = "T2"
	gen.State = domain.StateSucceeded
	gen.Artifacts = domain.ArtifactSet{domain.ArtifactRefineImage: "https://forge.example.com/assets/images/T2.png"}
	require.NoError(t, h.generations.Update(context.Background(), gen))

	orch := startOrchestrator(t, h.deps,
		Lane{Name: "mesh-refine", Adapter: adapter, Interval: time.Millisecond, Budget: time.Second},
	)
	require.NoError(t, orch.Enqueue("mesh-refine", "T2"))

	// The refine artifacts are already in place; the adapter must never be
	// consulted again.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, adapter.attemptCount("T2"))
}

func TestRefineFatalErrorKeepsPreviewResult(t *testing.T) {
	h := newHarness(t)
	adapter := newFakeAdapter("mesh-refine", domain.ProviderMeshy, func(_ string, _ int) (*provider.Result, error) {
		return nil, &provider.FatalError{Reason: "refine rejected"}
	})

	gen := h.createPending(t, domain.ProviderMeshy, domain.CategoryMesh, "T1")
	gen.SecondaryID = "T2"
	gen.State = domain.StateSucceeded
	gen.Artifacts = domain.ArtifactSet{domain.ArtifactModelGLB: "https://forge.example.com/assets/models/T1.glb"}
	require.NoError(t, h.generations.Update(context.Background(), gen))
	statuses := h.collectStatuses(t, "T2")

	orch := startOrchestrator(t, h.deps,
		Lane{Name: "mesh-refine", Adapter: adapter, Interval: time.Millisecond, Budget: time.Second},
	)
	require.NoError(t, orch.Enqueue("mesh-refine", "T2"))

	require.Eventually(t, func() bool {
		for _, s := range statuses() {
			if s == events.StatusError {
				return true
			}
		}
		return false
	}, 5*time.Second, 5*time.Millisecond)

	g, err := h.generations.GetByTaskID(context.Background(), "T1")
	require.NoError(t, err)
	assert.Equal(t, domain.StateSucceeded, g.State)
}

func TestGenerativeThumbnailPlaceholderWhenRendererUnavailable(t *testing.T) {
	h := newHarness(t)
	adapter := newFakeAdapter("mesh-generative", domain.ProviderGenerative, func(_ string, _ int) (*provider.Result, error) {
		return &provider.Result{Artifacts: domain.ArtifactSet{
			domain.ArtifactModelGLB: h.fileServer.URL + "/mesh.glb",
		}}, nil
	})

	h.createPending(t, domain.ProviderGenerative, domain.CategoryMesh, "T1")
	statuses := h.collectStatuses(t, "T1")

	orch := startOrchestrator(t, h.deps, Lane{
		Name: "mesh-generative", Adapter: adapter, Interval: time.Millisecond, Budget: time.Second,
	})
	require.NoError(t, orch.Enqueue("mesh-generative", "T1"))

	gen := waitForState(t, h, "T1", domain.StateSucceeded)
	assert.Equal(t, "https://forge.example.com/assets/images/model-placeholder.png",
		gen.Artifacts[domain.ArtifactPreviewImage])

	require.Eventually(t, func() bool {
		seen := statuses()
		rendering, failed := false, false
		for _, s := range seen {
			rendering = rendering || s == events.StatusRenderingThumbnail
			failed = failed || s == events.StatusRenderingThumbnailFailed
		}
		return rendering && failed
	}, 5*time.Second, 5*time.Millisecond)
}

func TestStandardLanesShape(t *testing.T) {
	logger := slog.Default()
	lanes := StandardLanes(
		provider.NewMeshyPreviewAdapter(provider.NewMeshyClient("", "k", logger)),
		provider.NewMeshyRefineAdapter(provider.NewMeshyClient("", "k", logger)),
		provider.NewMasterpieceAdapter(provider.NewMasterpieceClient("", "k", logger)),
		provider.NewRodinAdapter(provider.NewRodinClient("", "k", logger)),
		provider.NewSonicAdapter(provider.NewSonicClient("", "k", logger)),
	)
	require.Len(t, lanes, 5)

	byName := map[string]Lane{}
	for _, lane := range lanes {
		byName[lane.Name] = lane
	}

	assert.Equal(t, provider.LaneMeshRefine, byName[provider.LaneMeshPreview].FollowUpLane)
	assert.True(t, byName[provider.LaneMeshGenerative].PersistTimeout)
	assert.NotZero(t, byName[provider.LaneMeshGenerative].FatalGrace)
	assert.NotZero(t, byName[provider.LaneAudio].FatalGrace)
	assert.False(t, byName[provider.LaneAudio].PersistTimeout)

	// Every lane must be accepted by the orchestrator, including the
	// follow-up wiring.
	_, err := NewOrchestrator(Deps{Logger: logger, Notifier: events.NewBroker(logger)}, lanes...)
	assert.NoError(t, err)
}
