package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// envPrefix is the prefix for all environment variables consumed by Load,
// e.g. FORGE_SERVER_PORT maps to the server.port key.
const envPrefix = "FORGE"

// Load reads configuration from environment variables, applies defaults,
// and validates the result. Environment variables use the FORGE_ prefix
// with nested keys joined by underscores.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("storage.dir", "storage/assets")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so bind
	// every config key explicitly.
	for _, key := range []string{
		"server.port",
		"server.log_level",
		"database.url",
		"storage.dir",
		"storage.public_base_url",
		"storage.thumbnail_render_cmd",
		"providers.meshy_api_key",
		"providers.masterpiece_api_key",
		"providers.rodin_api_key",
		"providers.sonic_api_key",
		"providers.meshy_base_url",
		"providers.masterpiece_base_url",
		"providers.rodin_base_url",
		"providers.sonic_base_url",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
