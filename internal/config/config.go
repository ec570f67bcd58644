// Package config loads server configuration from environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/khanhdo2000/calibre-web-clone/pkg/covers"
	"github.com/khanhdo2000/calibre-web-clone/pkg/logger"
)

// Config is the full server configuration.
type Config struct {
	// Calibre library location. The database file and companion-file
	// suffixes are configurable because they depend on the embedded
	// database engine's conventions.
	LibraryPath  string `env:"CALIBRE_LIBRARY_PATH" envDefault:"/calibre-library"`
	DatabaseFile string `env:"CALIBRE_DATABASE_FILE" envDefault:"metadata.db"`
	WALSuffix    string `env:"CALIBRE_WAL_SUFFIX" envDefault:"-wal"`
	SHMSuffix    string `env:"CALIBRE_SHM_SUFFIX" envDefault:"-shm"`

	// Change watching. When disabled, POST /api/admin/refresh is the
	// only cache invalidation path.
	WatchEnabled  bool          `env:"WATCH_CALIBRE_DB" envDefault:"true"`
	WatchDebounce time.Duration `env:"WATCH_DEBOUNCE" envDefault:"2s"`

	// Caching. An empty REDIS_URL falls back to in-process caching.
	RedisURL string        `env:"REDIS_URL"`
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"1h"`

	// HTTP.
	HTTPAddr         string        `env:"HTTP_ADDR" envDefault:":8000"`
	RequestTimeout   time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	MaxSearchResults int           `env:"MAX_SEARCH_RESULTS" envDefault:"100"`

	Sentry logger.SentryConfig

	Covers CoversConfig
}

// CoversConfig configures optional S3-backed cover images.
type CoversConfig struct {
	Bucket    string `env:"S3_COVERS_BUCKET"`
	AccessKey string `env:"AWS_ACCESS_KEY_ID"`
	SecretKey string `env:"AWS_SECRET_ACCESS_KEY"`
	Region    string `env:"AWS_REGION" envDefault:"us-east-1"`
	Endpoint  string `env:"S3_ENDPOINT"`
	Prefix    string `env:"S3_COVERS_PREFIX" envDefault:"covers"`
	PathStyle bool   `env:"S3_PATH_STYLE"`

	// Proxy streams cover bytes through the server instead of
	// redirecting to a presigned URL. Needed when clients cannot reach
	// the bucket directly, e.g. MinIO on a private network.
	Proxy bool `env:"S3_COVERS_PROXY"`
}

// ToCovers converts the env-tagged struct into the covers package config.
func (c CoversConfig) ToCovers() covers.Config {
	return covers.Config{
		Bucket:    c.Bucket,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Region:    c.Region,
		Endpoint:  c.Endpoint,
		Prefix:    c.Prefix,
		PathStyle: c.PathStyle,
	}
}

// Load parses configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
