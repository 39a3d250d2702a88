package artifact

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// ErrRendererUnavailable means no renderer is configured. Callers fall
// back to a generic placeholder thumbnail.
var ErrRendererUnavailable = errors.New("thumbnail renderer not available")

// renderTimeout bounds one headless render invocation.
const renderTimeout = 90 * time.Second

// Renderer produces a thumbnail image from a stored 3D model file. It
// covers the generative backend, which returns a mesh without any
// preview image.
type Renderer interface {
	// Render reads the model at modelPath and writes a thumbnail image to
	// outPath.
	Render(ctx context.Context, modelPath, outPath string) error
}

// ExternalRenderer shells out to a headless rendering command, invoked
// as `<command> <modelPath> <outPath>`. Running the renderer out of
// process keeps GPU/driver instability away from the service.
type ExternalRenderer struct {
	command string
	logger  *slog.Logger
}

// NewExternalRenderer creates a renderer around the given command. An
// empty command yields a nil Renderer, meaning "not configured".
func NewExternalRenderer(command string, logger *slog.Logger) *ExternalRenderer {
	if command == "" {
		return nil
	}
	return &ExternalRenderer{
		command: command,
		logger:  logger.With("component", "thumbnail_renderer"),
	}
}

// Render runs the rendering command with a bounded deadline.
func (r *ExternalRenderer) Render(ctx context.Context, modelPath, outPath string) error {
	ctx, cancel := context.WithTimeout(ctx, renderTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.command, modelPath, outPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		r.logger.Warn("thumbnail render failed",
			"model_path", modelPath,
			"output", string(output),
			"error", err)
		return fmt.Errorf("thumbnail render failed: %w", err)
	}

	r.logger.Info("rendered thumbnail", "model_path", modelPath, "out_path", outPath)
	return nil
}

// NoopRenderer reports the renderer as unavailable. It stands in when no
// rendering command is configured.
type NoopRenderer struct{}

// Render always returns ErrRendererUnavailable.
func (NoopRenderer) Render(context.Context, string, string) error {
	return ErrRendererUnavailable
}
