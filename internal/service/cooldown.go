package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/veloxi/forge-api/internal/domain"
	"github.com/veloxi/forge-api/internal/store"
)

// Cooldown windows. A requester waits terminalCooldown after any
// finished task; a still-pending task blocks new work for up to
// pendingWindow before being written off as timed out.
const (
	terminalCooldown = 5 * time.Minute
	pendingWindow    = 30 * time.Minute
)

// CooldownPolicy throttles submissions per requester based on their most
// recent generation. Anonymous requesters are never throttled.
type CooldownPolicy struct {
	generations store.GenerationStore
	logger      *slog.Logger
	now         func() time.Time
}

// NewCooldownPolicy creates a policy backed by the given store.
func NewCooldownPolicy(generations store.GenerationStore, logger *slog.Logger) *CooldownPolicy {
	return &CooldownPolicy{
		generations: generations,
		logger:      logger.With("component", "cooldown_policy"),
		now:         time.Now,
	}
}

// Check returns nil when the owner may submit a new generation, or a
// *CooldownError when throttled. A pending task older than the pending
// window is reclassified to timeout in the store before the remaining
// rules apply.
func (p *CooldownPolicy) Check(ctx context.Context, owner domain.OwnerRef) error {
	if owner.IsZero() {
		return nil
	}

	latest, err := p.generations.FindLatestByOwner(ctx, owner)
	if err != nil {
		if errors.Is(err, store.ErrGenerationNotFound) {
			return nil
		}
		return fmt.Errorf("cooldown lookup failed: %w", err)
	}

	age := p.now().Sub(latest.CreatedAt)

	if latest.State == domain.StatePending {
		if age < pendingWindow {
			return &CooldownError{Remaining: pendingWindow - age, Pending: true}
		}

		// The previous task has been pending for too long to still be
		// real work. Write it off so it stops blocking the requester.
		p.logger.Warn("reclassifying stale pending generation to timeout",
			"generation_id", latest.ID,
			"age", age)
		if err := p.generations.UpdateState(ctx, latest.ID, domain.StateTimeout); err != nil {
			return fmt.Errorf("failed to reclassify stale generation: %w", err)
		}
	}

	if age < terminalCooldown {
		return &CooldownError{Remaining: terminalCooldown - age}
	}

	return nil
}
