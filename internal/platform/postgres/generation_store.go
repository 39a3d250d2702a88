package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/veloxi/forge-api/internal/domain"
	"github.com/veloxi/forge-api/internal/store"
)

// generationColumns is the select list shared by every generation query,
// in scanGeneration order.
const generationColumns = `id, primary_id, secondary_id, provider, category, state, prompt, style,
	owner_user_id, owner_chat_id, view_count, artifacts, title, tags, lyrics, created_at, updated_at`

// PostgresGenerationStore implements the store.GenerationStore interface
// using a PostgreSQL database as the storage backend.
type PostgresGenerationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresGenerationStore creates a new PostgreSQL implementation of
// the GenerationStore interface. It accepts a database connection or
// transaction that is initialized and managed by the caller. If logger
// is nil, the default logger is used.
func NewPostgresGenerationStore(db store.DBTX, logger *slog.Logger) *PostgresGenerationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresGenerationStore{
		db:     db,
		logger: logger.With(slog.String("component", "generation_store")),
	}
}

// Ensure PostgresGenerationStore implements store.GenerationStore
var _ store.GenerationStore = (*PostgresGenerationStore)(nil)

// Create implements store.GenerationStore.Create
func (s *PostgresGenerationStore) Create(ctx context.Context, generation *domain.Generation) error {
	if err := generation.Validate(); err != nil {
		return err
	}

	artifacts, err := marshalArtifacts(generation.Artifacts)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO generations (id, primary_id, secondary_id, provider, category, state, prompt, style,
			owner_user_id, owner_chat_id, view_count, artifacts, title, tags, lyrics, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	_, err = s.db.ExecContext(ctx, query,
		generation.ID,
		generation.PrimaryID,
		generation.SecondaryID,
		string(generation.Provider),
		string(generation.Category),
		string(generation.State),
		generation.Prompt,
		generation.Style,
		ownerUserID(generation.Owner),
		generation.Owner.ChatID,
		generation.ViewCount,
		artifacts,
		generation.Title,
		generation.Tags,
		generation.Lyrics,
		generation.CreatedAt,
		generation.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return store.ErrTaskIDExists
		}
		s.logger.Error("failed to create generation", "generation_id", generation.ID, "error", err)
		return MapError(err)
	}

	return nil
}

// GetByTaskID implements store.GenerationStore.GetByTaskID
func (s *PostgresGenerationStore) GetByTaskID(ctx context.Context, taskID string) (*domain.Generation, error) {
	query := `SELECT ` + generationColumns + `
		FROM generations
		WHERE primary_id = $1 OR secondary_id = $1`

	generation, err := scanGeneration(s.db.QueryRowContext(ctx, query, taskID))
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return nil, store.ErrGenerationNotFound
		}
		return nil, MapError(err)
	}
	return generation, nil
}

// Update implements store.GenerationStore.Update
func (s *PostgresGenerationStore) Update(ctx context.Context, generation *domain.Generation) error {
	if err := generation.Validate(); err != nil {
		return err
	}

	artifacts, err := marshalArtifacts(generation.Artifacts)
	if err != nil {
		return err
	}

	query := `
		UPDATE generations
		SET secondary_id = $2, state = $3, view_count = $4, artifacts = $5,
			title = $6, tags = $7, lyrics = $8, updated_at = $9
		WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query,
		generation.ID,
		generation.SecondaryID,
		string(generation.State),
		generation.ViewCount,
		artifacts,
		generation.Title,
		generation.Tags,
		generation.Lyrics,
		generation.UpdatedAt,
	)
	if err != nil {
		s.logger.Error("failed to update generation", "generation_id", generation.ID, "error", err)
		return MapError(err)
	}

	return requireRowAffected(result.RowsAffected())
}

// UpdateState implements store.GenerationStore.UpdateState
func (s *PostgresGenerationStore) UpdateState(ctx context.Context, id uuid.UUID, state domain.GenerationState) error {
	query := `UPDATE generations SET state = $2, updated_at = NOW() WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id, string(state))
	if err != nil {
		s.logger.Error("failed to update generation state", "generation_id", id, "error", err)
		return MapError(err)
	}

	return requireRowAffected(result.RowsAffected())
}

// IncrementViewCount implements store.GenerationStore.IncrementViewCount
func (s *PostgresGenerationStore) IncrementViewCount(ctx context.Context, taskID string) error {
	query := `
		UPDATE generations
		SET view_count = view_count + 1
		WHERE primary_id = $1 OR secondary_id = $1`

	// Unknown task ids are ignored: reads of unknown tasks are common and
	// must not surface as errors.
	if _, err := s.db.ExecContext(ctx, query, taskID); err != nil {
		return MapError(err)
	}
	return nil
}

// FindLatestByOwner implements store.GenerationStore.FindLatestByOwner
func (s *PostgresGenerationStore) FindLatestByOwner(ctx context.Context, owner domain.OwnerRef) (*domain.Generation, error) {
	query := `SELECT ` + generationColumns + `
		FROM generations
		WHERE ` + ownerPredicate(owner) + `
		ORDER BY created_at DESC
		LIMIT 1`

	generation, err := scanGeneration(s.db.QueryRowContext(ctx, query, ownerArg(owner)))
	if err != nil {
		if mapped := MapError(err); store.IsNotFoundError(mapped) {
			return nil, store.ErrGenerationNotFound
		}
		return nil, MapError(err)
	}
	return generation, nil
}

// ListByOwner implements store.GenerationStore.ListByOwner
func (s *PostgresGenerationStore) ListByOwner(ctx context.Context, owner domain.OwnerRef) ([]*domain.Generation, error) {
	query := `SELECT ` + generationColumns + `
		FROM generations
		WHERE ` + ownerPredicate(owner) + `
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, ownerArg(owner))
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	return collectGenerations(rows)
}

// ListPublic implements store.GenerationStore.ListPublic
func (s *PostgresGenerationStore) ListPublic(ctx context.Context, category domain.Category) ([]*domain.Generation, error) {
	query := `SELECT ` + generationColumns + `
		FROM generations
		WHERE category = $1 AND owner_user_id IS NOT NULL
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, string(category))
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	return collectGenerations(rows)
}

// scanner abstracts *sql.Row and *sql.Rows for scanGeneration.
type scanner interface {
	Scan(dest ...any) error
}

// rowsScanner is satisfied by *sql.Rows.
type rowsScanner interface {
	scanner
	Next() bool
	Err() error
}

// scanGeneration reads one generation row in generationColumns order.
func scanGeneration(row scanner) (*domain.Generation, error) {
	var (
		g           domain.Generation
		provider    string
		category    string
		state       string
		ownerUserID uuid.NullUUID
		artifacts   []byte
	)

	err := row.Scan(
		&g.ID,
		&g.PrimaryID,
		&g.SecondaryID,
		&provider,
		&category,
		&state,
		&g.Prompt,
		&g.Style,
		&ownerUserID,
		&g.Owner.ChatID,
		&g.ViewCount,
		&artifacts,
		&g.Title,
		&g.Tags,
		&g.Lyrics,
		&g.CreatedAt,
		&g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	g.Provider = domain.Provider(provider)
	g.Category = domain.Category(category)
	g.State = domain.GenerationState(state)
	if ownerUserID.Valid {
		g.Owner.UserID = ownerUserID.UUID
	}
	if len(artifacts) > 0 {
		if err := json.Unmarshal(artifacts, &g.Artifacts); err != nil {
			return nil, fmt.Errorf("failed to decode artifacts: %w", err)
		}
	}

	return &g, nil
}

// collectGenerations drains rows into a slice.
func collectGenerations(rows rowsScanner) ([]*domain.Generation, error) {
	generations := []*domain.Generation{}
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, MapError(err)
		}
		generations = append(generations, g)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}
	return generations, nil
}

// marshalArtifacts encodes the artifact set as JSONB, with NULL for an
// empty set.
func marshalArtifacts(artifacts domain.ArtifactSet) ([]byte, error) {
	if len(artifacts) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(artifacts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode artifacts: %w", err)
	}
	return encoded, nil
}

// ownerUserID converts the owner's user id to its nullable column value.
func ownerUserID(owner domain.OwnerRef) uuid.NullUUID {
	return uuid.NullUUID{UUID: owner.UserID, Valid: owner.UserID != uuid.Nil}
}

// ownerPredicate selects the owner column to match; anonymous owners
// match records with neither identity set.
func ownerPredicate(owner domain.OwnerRef) string {
	switch {
	case owner.UserID != uuid.Nil:
		return "owner_user_id = $1"
	case owner.ChatID != "":
		return "owner_chat_id = $1"
	default:
		return "owner_user_id IS NULL AND owner_chat_id = '' AND $1 = ''"
	}
}

// ownerArg is the single bind value paired with ownerPredicate.
func ownerArg(owner domain.OwnerRef) any {
	if owner.UserID != uuid.Nil {
		return owner.UserID
	}
	return owner.ChatID
}

// requireRowAffected converts a zero-row update into the not-found
// sentinel.
func requireRowAffected(affected int64, err error) error {
	if err != nil {
		return MapError(err)
	}
	if affected == 0 {
		return store.ErrGenerationNotFound
	}
	return nil
}
