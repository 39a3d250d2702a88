package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Storage   StorageConfig   `mapstructure:"storage"   validate:"required"`
	Providers ProvidersConfig `mapstructure:"providers" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// StorageConfig controls where downloaded artifacts are written and how
// they are re-exposed to clients.
type StorageConfig struct {
	// Dir is the local directory artifacts are streamed into, one
	// subdirectory per artifact kind (models, images, videos, music).
	Dir string `mapstructure:"dir" validate:"required"`

	// PublicBaseURL is the externally addressable base under which the
	// storage directory is served.
	PublicBaseURL string `mapstructure:"public_base_url" validate:"required,url"`

	// ThumbnailRenderCmd is the optional headless render command used to
	// produce a thumbnail for model-only results. Empty disables rendering
	// and a placeholder image is used instead.
	ThumbnailRenderCmd string `mapstructure:"thumbnail_render_cmd"`
}

// ProvidersConfig holds the credentials and endpoint overrides for the
// external generation backends. The base URLs default to the production
// endpoints and exist mainly so tests can point adapters at local servers.
type ProvidersConfig struct {
	MeshyAPIKey       string `mapstructure:"meshy_api_key"       validate:"required"`
	MasterpieceAPIKey string `mapstructure:"masterpiece_api_key" validate:"required"`
	RodinAPIKey       string `mapstructure:"rodin_api_key"       validate:"required"`
	SonicAPIKey       string `mapstructure:"sonic_api_key"       validate:"required"`

	MeshyBaseURL       string `mapstructure:"meshy_base_url"       validate:"omitempty,url"`
	MasterpieceBaseURL string `mapstructure:"masterpiece_base_url" validate:"omitempty,url"`
	RodinBaseURL       string `mapstructure:"rodin_base_url"       validate:"omitempty,url"`
	SonicBaseURL       string `mapstructure:"sonic_base_url"       validate:"omitempty,url"`
}
