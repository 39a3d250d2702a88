package artifact

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/veloxi/forge-api/internal/domain"
)

// downloadTimeout bounds a single artifact stream. Model files can be
// tens of megabytes, so this is more generous than a status poll.
const downloadTimeout = 2 * time.Minute

// subdirFor maps an artifact kind to its storage subdirectory.
func subdirFor(kind domain.ArtifactKind) string {
	switch kind {
	case domain.ArtifactModelGLB, domain.ArtifactModelFBX, domain.ArtifactModelOBJ,
		domain.ArtifactModelUSDZ, domain.ArtifactModelMTL:
		return "models"
	case domain.ArtifactVideo:
		return "videos"
	case domain.ArtifactAudio:
		return "music"
	default:
		return "images"
	}
}

// fallbackExtFor returns the extension used when the remote URL path
// carries none.
func fallbackExtFor(kind domain.ArtifactKind) string {
	switch kind {
	case domain.ArtifactModelGLB:
		return ".glb"
	case domain.ArtifactModelFBX:
		return ".fbx"
	case domain.ArtifactModelOBJ:
		return ".obj"
	case domain.ArtifactModelUSDZ:
		return ".usdz"
	case domain.ArtifactModelMTL:
		return ".mtl"
	case domain.ArtifactVideo:
		return ".mp4"
	case domain.ArtifactAudio:
		return ".mp3"
	default:
		return ".png"
	}
}

// Fetcher streams remote artifacts into the storage directory and
// rewrites their URLs under the service's public base URL. Paths are
// derived from the task identifier, so concurrent fetches for different
// tasks never collide.
type Fetcher struct {
	httpClient    *http.Client
	dir           string
	publicBaseURL string
	logger        *slog.Logger
}

// NewFetcher creates a Fetcher writing under dir and rewriting URLs
// under publicBaseURL.
func NewFetcher(dir, publicBaseURL string, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		httpClient:    &http.Client{Timeout: downloadTimeout},
		dir:           dir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger.With("component", "artifact_fetcher"),
	}
}

// Fetch downloads remoteURL into storage under the kind's subdirectory,
// naming the file after name plus the extension inferred from the URL
// path. An empty remoteURL is not an error: it yields an empty public
// URL so the caller simply skips that artifact kind.
func (f *Fetcher) Fetch(ctx context.Context, remoteURL string, kind domain.ArtifactKind, name string) (string, error) {
	if remoteURL == "" {
		return "", nil
	}

	fileName := name + extensionFor(remoteURL, kind)
	subdir := subdirFor(kind)

	destDir := filepath.Join(f.dir, subdir)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create storage directory: %w", err)
	}
	destPath := filepath.Join(destDir, fileName)

	if err := f.stream(ctx, remoteURL, destPath); err != nil {
		return "", err
	}

	publicURL := f.publicBaseURL + "/assets/" + subdir + "/" + fileName
	f.logger.Debug("stored artifact",
		"kind", string(kind),
		"path", destPath,
		"public_url", publicURL)
	return publicURL, nil
}

// Path returns the local storage path an artifact of the given kind and
// file name resolves to, without fetching anything.
func (f *Fetcher) Path(kind domain.ArtifactKind, fileName string) string {
	return filepath.Join(f.dir, subdirFor(kind), fileName)
}

// PublicURL returns the externally addressable URL for a stored file of
// the given kind.
func (f *Fetcher) PublicURL(kind domain.ArtifactKind, fileName string) string {
	return f.publicBaseURL + "/assets/" + subdirFor(kind) + "/" + fileName
}

// LocalPath maps a public URL produced by this Fetcher back to its
// storage path. The second return is false when the URL is not under the
// fetcher's public base.
func (f *Fetcher) LocalPath(publicURL string) (string, bool) {
	rel, ok := strings.CutPrefix(publicURL, f.publicBaseURL+"/assets/")
	if !ok || rel == "" {
		return "", false
	}
	return filepath.Join(f.dir, filepath.FromSlash(rel)), true
}

// stream downloads remoteURL to destPath, removing a partial file on
// failure.
func (f *Fetcher) stream(ctx context.Context, remoteURL, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("artifact download failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("artifact download failed: status %d", resp.StatusCode)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create artifact file: %w", err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		_ = os.Remove(destPath)
		return fmt.Errorf("artifact stream failed: %w", err)
	}

	if err := out.Close(); err != nil {
		_ = os.Remove(destPath)
		return fmt.Errorf("failed to finalize artifact file: %w", err)
	}

	return nil
}

// extensionFor infers the file extension from the remote URL path,
// falling back to the kind's conventional extension.
func extensionFor(remoteURL string, kind domain.ArtifactKind) string {
	parsed, err := url.Parse(remoteURL)
	if err == nil {
		if ext := path.Ext(parsed.Path); ext != "" {
			return ext
		}
	}
	return fallbackExtFor(kind)
}
