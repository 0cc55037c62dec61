package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// HTTP listening port
	Port string `env:"PORT" envDefault:"5250"`

	// Directory containing the yearly ValeursFoncieres-<year>.txt files
	DataDir string `env:"DATA_DIR" envDefault:"data"`

	// SQLite database holding captured leads
	DatabasePath string `env:"DATABASE_PATH" envDefault:"database/estimmo.db"`

	// SQLite database holding the persisted geocode cache
	GeocacheDBPath string `env:"GEOCACHE_DB_PATH" envDefault:"database/geocache.db"`

	// Password for the admin lead views
	AdminPassword string `env:"ADMIN_PASSWORD" envDefault:"admin123"`

	Geocoder struct {
		// Base URL of the BAN address API
		BaseURL string `env:"GEOCODER_BASE_URL" envDefault:"https://api-adresse.data.gouv.fr"`

		// HTTP timeout in seconds
		Timeout int `env:"GEOCODER_TIMEOUT" envDefault:"10"`

		// Number of concurrent per-record geocoding workers
		WorkerCount int `env:"GEOCODER_WORKERS" envDefault:"4"`

		// Records whose geocoded point lands farther than this from the
		// target are considered misresolved and dropped (0 disables the guard)
		MaxPlausibleKm float64 `env:"GEOCODER_MAX_PLAUSIBLE_KM" envDefault:"20"`
	}

	Overpass struct {
		// Overpass API endpoint for the points-of-interest lookup
		BaseURL string `env:"OVERPASS_URL" envDefault:"http://overpass-api.de/api/interpreter"`

		// Default POI search radius in meters
		RadiusMeters int `env:"POI_RADIUS_METERS" envDefault:"2000"`
	}

	// CacheFlush configuration for the geocode cache batch writer
	CacheFlush struct {
		// Maximum number of entries to accumulate before flushing
		MaxBatchSize int `env:"CACHE_BATCH_MAX_SIZE" envDefault:"100"`

		// Maximum time to wait before flushing a non-full batch (in seconds)
		MaxBatchWaitTime int `env:"CACHE_BATCH_WAIT_TIME" envDefault:"30"`

		// Maximum number of retries for failed flushes
		MaxRetries int `env:"CACHE_BATCH_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"CACHE_BATCH_RETRY_DELAY" envDefault:"5"`
	}

	Scheduler struct {
		// Minutes between dataset catalog rescans
		RescanMinutes int `env:"CATALOG_RESCAN_MINUTES" envDefault:"10"`
	}

	Telegram struct {
		Enabled  bool   `env:"TELEGRAM_ENABLED" envDefault:"false"`
		BotToken string `env:"TELEGRAM_BOT_TOKEN"`
		ChatID   string `env:"TELEGRAM_CHAT_ID"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
