package postgres

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/veloxi/forge-api/internal/domain"
	"github.com/veloxi/forge-api/internal/store"
)

// PostgresTextureStore implements the store.TextureStore interface using
// a PostgreSQL database as the storage backend.
type PostgresTextureStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresTextureStore creates a new PostgreSQL implementation of the
// TextureStore interface. If logger is nil, the default logger is used.
func NewPostgresTextureStore(db store.DBTX, logger *slog.Logger) *PostgresTextureStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresTextureStore{
		db:     db,
		logger: logger.With(slog.String("component", "texture_store")),
	}
}

// Ensure PostgresTextureStore implements store.TextureStore
var _ store.TextureStore = (*PostgresTextureStore)(nil)

// Create implements store.TextureStore.Create
func (s *PostgresTextureStore) Create(ctx context.Context, texture *domain.Texture) error {
	if err := texture.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO textures (id, generation_id, slot, url, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		texture.ID,
		texture.GenerationID,
		texture.Slot,
		texture.URL,
		texture.CreatedAt,
	)
	if err != nil {
		s.logger.Error("failed to create texture",
			"texture_id", texture.ID,
			"generation_id", texture.GenerationID,
			"error", err)
		return MapError(err)
	}

	return nil
}

// ListByGenerationID implements store.TextureStore.ListByGenerationID
func (s *PostgresTextureStore) ListByGenerationID(ctx context.Context, generationID uuid.UUID) ([]*domain.Texture, error) {
	query := `
		SELECT id, generation_id, slot, url, created_at
		FROM textures
		WHERE generation_id = $1
		ORDER BY created_at, slot`

	rows, err := s.db.QueryContext(ctx, query, generationID)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	textures := []*domain.Texture{}
	for rows.Next() {
		var t domain.Texture
		if err := rows.Scan(&t.ID, &t.GenerationID, &t.Slot, &t.URL, &t.CreatedAt); err != nil {
			return nil, MapError(err)
		}
		textures = append(textures, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, MapError(err)
	}

	return textures, nil
}
