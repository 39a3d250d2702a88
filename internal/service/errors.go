package service

import (
	"fmt"
	"time"

	"github.com/veloxi/forge-api/internal/domain"
)

// ErrInvalidMode is returned when a mesh submission names an unknown
// generation mode.
var ErrInvalidMode = fmt.Errorf("%w: unknown mesh generation mode", domain.ErrValidation)

// CooldownError denies a submission because the requester's previous
// task is too recent or still resolving. It is surfaced synchronously at
// submission time; denied requests never enter a queue.
type CooldownError struct {
	// Remaining is how long until the requester may submit again.
	Remaining time.Duration

	// Pending is true when the denial is caused by a still-resolving task
	// rather than the post-completion cooldown.
	Pending bool
}

// Error implements the error interface with a requester-facing message.
func (e *CooldownError) Error() string {
	minutes := int(e.Remaining.Round(time.Minute) / time.Minute)
	if minutes < 1 {
		minutes = 1
	}
	if e.Pending {
		return fmt.Sprintf("a previous generation is still processing, try again in %d minute(s)", minutes)
	}
	return fmt.Sprintf("please wait %d minute(s) before submitting a new generation", minutes)
}
