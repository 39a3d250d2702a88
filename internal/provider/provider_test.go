package provider

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veloxi/forge-api/internal/domain"
)

func jsonHandler(t *testing.T, status int, body any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		require.NoError(t, json.NewEncoder(w).Encode(body))
	}
}

func TestMeshySubmitPreview(t *testing.T) {
	var gotPayload map[string]any
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		jsonHandler(t, http.StatusOK, map[string]string{"result": "task-123"})(w, r)
	}))
	defer server.Close()

	client := NewMeshyClient(server.URL, "test-key", slog.Default())
	taskID, err := client.SubmitPreview(context.Background(), "a red dragon", "realistic")

	require.NoError(t, err)
	assert.Equal(t, "task-123", taskID)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "preview", gotPayload["mode"])
	assert.Equal(t, "a red dragon", gotPayload["prompt"])
	assert.Equal(t, "realistic", gotPayload["art_style"])
}

func TestMeshySubmitRefine(t *testing.T) {
	var gotPayload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		jsonHandler(t, http.StatusOK, map[string]string{"result": "refine-456"})(w, r)
	}))
	defer server.Close()

	client := NewMeshyClient(server.URL, "test-key", slog.Default())
	adapter := NewMeshyPreviewAdapter(client)
	taskID, err := adapter.SubmitFollowUp(context.Background(), "task-123")

	require.NoError(t, err)
	assert.Equal(t, "refine-456", taskID)
	assert.Equal(t, "refine", gotPayload["mode"])
	assert.Equal(t, "task-123", gotPayload["preview_task_id"])
	assert.Equal(t, true, gotPayload["enable_pbr"])
}

func TestMeshyPreviewPoll(t *testing.T) {
	t.Run("still running maps to ErrNotReady", func(t *testing.T) {
		server := httptest.NewServer(jsonHandler(t, http.StatusOK, map[string]any{"status": "IN_PROGRESS"}))
		defer server.Close()

		adapter := NewMeshyPreviewAdapter(NewMeshyClient(server.URL, "k", slog.Default()))
		result, err := adapter.Poll(context.Background(), "task-123")

		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrNotReady)
	})

	t.Run("failure maps to FatalError with provider message", func(t *testing.T) {
		server := httptest.NewServer(jsonHandler(t, http.StatusOK, map[string]any{
			"status":     "FAILED",
			"task_error": map[string]string{"message": "prompt rejected"},
		}))
		defer server.Close()

		adapter := NewMeshyPreviewAdapter(NewMeshyClient(server.URL, "k", slog.Default()))
		result, err := adapter.Poll(context.Background(), "task-123")

		assert.Nil(t, result)
		require.True(t, IsFatal(err))
		var fatal *FatalError
		require.ErrorAs(t, err, &fatal)
		assert.Equal(t, "prompt rejected", fatal.Reason)
	})

	t.Run("success yields preview artifacts without textures", func(t *testing.T) {
		server := httptest.NewServer(jsonHandler(t, http.StatusOK, map[string]any{
			"status": "SUCCEEDED",
			"model_urls": map[string]string{
				"glb": "https://cdn/model.glb",
				"fbx": "https://cdn/model.fbx",
			},
			"thumbnail_url": "https://cdn/thumb.png",
			"video_url":     "https://cdn/turntable.mp4",
			"texture_urls":  []map[string]string{{"base_color": "https://cdn/tex.png"}},
		}))
		defer server.Close()

		adapter := NewMeshyPreviewAdapter(NewMeshyClient(server.URL, "k", slog.Default()))
		result, err := adapter.Poll(context.Background(), "task-123")

		require.NoError(t, err)
		assert.Equal(t, "https://cdn/model.glb", result.Artifacts[domain.ArtifactModelGLB])
		assert.Equal(t, "https://cdn/thumb.png", result.Artifacts[domain.ArtifactPreviewImage])
		assert.Equal(t, "https://cdn/turntable.mp4", result.Artifacts[domain.ArtifactVideo])
		assert.NotContains(t, result.Artifacts, domain.ArtifactModelOBJ)
		// Texture handling is a refine-phase concern.
		assert.Empty(t, result.Textures)
	})
}

func TestMeshyRefinePoll(t *testing.T) {
	server := httptest.NewServer(jsonHandler(t, http.StatusOK, map[string]any{
		"status": "SUCCEEDED",
		"model_urls": map[string]string{
			"glb": "https://cdn/model.glb",
			"mtl": "https://cdn/model.mtl",
		},
		"thumbnail_url": "https://cdn/thumb.png",
		"texture_urls": []map[string]string{
			{"base_color": "https://cdn/base.png", "metallic": "https://cdn/metal.png"},
		},
	}))
	defer server.Close()

	adapter := NewMeshyRefineAdapter(NewMeshyClient(server.URL, "k", slog.Default()))
	result, err := adapter.Poll(context.Background(), "refine-456")

	require.NoError(t, err)
	assert.Equal(t, "https://cdn/thumb.png", result.Artifacts[domain.ArtifactRefineImage])
	assert.Equal(t, "https://cdn/model.mtl", result.Artifacts[domain.ArtifactModelMTL])
	assert.Len(t, result.Textures, 2)
	slots := map[string]string{}
	for _, tex := range result.Textures {
		slots[tex.Slot] = tex.URL
	}
	assert.Equal(t, "https://cdn/base.png", slots["base_color"])
	assert.Equal(t, "https://cdn/metal.png", slots["metallic"])
}

func TestMasterpieceSubmitAndPoll(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /functions/general", jsonHandler(t, http.StatusOK, map[string]string{"requestId": "req-1"}))
	mux.HandleFunc("GET /status/req-pending", jsonHandler(t, http.StatusOK, map[string]any{"status": "processing"}))
	mux.HandleFunc("GET /status/req-failed", jsonHandler(t, http.StatusOK, map[string]any{
		"status": "failed", "error": "quota exhausted",
	}))
	mux.HandleFunc("GET /status/req-done", jsonHandler(t, http.StatusOK, map[string]any{
		"status": "complete",
		"outputs": map[string]string{
			"glb":       "https://cdn/out.glb",
			"fbx":       "https://cdn/out.fbx",
			"usdz":      "https://cdn/out.usdz",
			"thumbnail": "https://cdn/out.png",
		},
	}))
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewMasterpieceClient(server.URL, "k", slog.Default())
	adapter := NewMasterpieceAdapter(client)

	taskID, err := client.Submit(context.Background(), "a knight chess piece")
	require.NoError(t, err)
	assert.Equal(t, "req-1", taskID)

	_, err = adapter.Poll(context.Background(), "req-pending")
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = adapter.Poll(context.Background(), "req-failed")
	var fatal *FatalError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "quota exhausted", fatal.Reason)

	result, err := adapter.Poll(context.Background(), "req-done")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/out.glb", result.Artifacts[domain.ArtifactModelGLB])
	assert.Equal(t, "https://cdn/out.png", result.Artifacts[domain.ArtifactRefineImage])
}

func TestRodinPollTreatsNotFoundAsPending(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusBadRequest} {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))

		adapter := NewRodinAdapter(NewRodinClient(server.URL, "k", slog.Default()))
		result, err := adapter.Poll(context.Background(), "req-1")

		assert.Nil(t, result)
		assert.ErrorIs(t, err, ErrNotReady, "status %d must read as still pending", status)
		server.Close()
	}
}

func TestRodinPollServerErrorIsTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	adapter := NewRodinAdapter(NewRodinClient(server.URL, "k", slog.Default()))
	_, err := adapter.Poll(context.Background(), "req-1")

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNotReady))
	assert.False(t, IsFatal(err))
}

func TestRodinSubmitAndPollSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rodin", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Key k", r.Header.Get("Authorization"))
		var payload struct {
			Input map[string]any `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "a moss-covered statue", payload.Input["prompt"])
		assert.Equal(t, "glb", payload.Input["geometry_file_format"])
		jsonHandler(t, http.StatusOK, map[string]string{"request_id": "req-9"})(w, r)
	})
	mux.HandleFunc("GET /requests/req-9", jsonHandler(t, http.StatusOK, map[string]any{
		"model_mesh": map[string]string{"url": "https://cdn/mesh.glb"},
		"textures": []map[string]string{
			{"url": "https://cdn/albedo.png", "file_name": "albedo.png"},
		},
	}))
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewRodinClient(server.URL, "k", slog.Default())
	taskID, err := client.Submit(context.Background(), "a moss-covered statue")
	require.NoError(t, err)
	assert.Equal(t, "req-9", taskID)

	result, err := NewRodinAdapter(client).Poll(context.Background(), taskID)
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/mesh.glb", result.Artifacts[domain.ArtifactModelGLB])
	require.Len(t, result.Textures, 1)
	assert.Equal(t, "albedo.png", result.Textures[0].Slot)
}

func TestSonicSubmitAndPoll(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /create", jsonHandler(t, http.StatusOK, map[string]string{"task_id": "song-1"}))
	mux.HandleFunc("GET /task/song-pending", jsonHandler(t, http.StatusOK, map[string]any{
		"data": []map[string]any{{"state": "running"}},
	}))
	mux.HandleFunc("GET /task/song-empty", jsonHandler(t, http.StatusOK, map[string]any{
		"data": []map[string]any{},
	}))
	mux.HandleFunc("GET /task/song-failed", jsonHandler(t, http.StatusOK, map[string]any{
		"data": []map[string]any{{"state": "failed"}},
	}))
	mux.HandleFunc("GET /task/song-done", jsonHandler(t, http.StatusOK, map[string]any{
		"data": []map[string]any{{
			"state":     "succeeded",
			"audio_url": "https://cdn/track.mp3",
			"image_url": "https://cdn/cover.png",
			"video_url": "https://cdn/clip.mp4",
			"title":     "Neon Rain",
			"tags":      "synthwave, night drive",
			"lyrics":    "verse one",
		}},
	}))
	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewSonicClient(server.URL, "k", slog.Default())
	adapter := NewSonicAdapter(client)

	taskID, err := client.Submit(context.Background(), "an upbeat synthwave track")
	require.NoError(t, err)
	assert.Equal(t, "song-1", taskID)

	_, err = adapter.Poll(context.Background(), "song-pending")
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = adapter.Poll(context.Background(), "song-empty")
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = adapter.Poll(context.Background(), "song-failed")
	assert.True(t, IsFatal(err))

	result, err := adapter.Poll(context.Background(), "song-done")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn/track.mp3", result.Artifacts[domain.ArtifactAudio])
	assert.Equal(t, "https://cdn/cover.png", result.Artifacts[domain.ArtifactPreviewImage])
	assert.Equal(t, "Neon Rain", result.Title)
	assert.Equal(t, "synthwave, night drive", result.Tags)
	assert.Equal(t, "verse one", result.Lyrics)
}

func TestAdapterIdentity(t *testing.T) {
	logger := slog.Default()
	meshy := NewMeshyClient("", "k", logger)

	cases := []struct {
		adapter  Adapter
		name     string
		provider domain.Provider
	}{
		{NewMeshyPreviewAdapter(meshy), LaneMeshPreview, domain.ProviderMeshy},
		{NewMeshyRefineAdapter(meshy), LaneMeshRefine, domain.ProviderMeshy},
		{NewMasterpieceAdapter(NewMasterpieceClient("", "k", logger)), LaneMeshComposite, domain.ProviderComposite},
		{NewRodinAdapter(NewRodinClient("", "k", logger)), LaneMeshGenerative, domain.ProviderGenerative},
		{NewSonicAdapter(NewSonicClient("", "k", logger)), LaneAudio, domain.ProviderAudio},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.name, tc.adapter.Name())
		assert.Equal(t, tc.provider, tc.adapter.Provider())
	}

	// The preview adapter is the only one that chains a follow-up phase.
	var submitter FollowUpSubmitter = NewMeshyPreviewAdapter(meshy)
	_ = submitter
}
