package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Addr        string
	DatabaseURL string
	// DBMaxConns caps open Postgres connections; zero uses the store default.
	DBMaxConns int
	// RedisURL carries live project revisions between clients. Remote
	// sessions still work without it but never see other clients' saves.
	RedisURL   string
	LocalDir   string
	JWTSecret  string
	TokenTTL   time.Duration
	CORSOrigin string
	// Debounce is the autosave delay after the last edit.
	Debounce       time.Duration
	AdapterTimeout time.Duration
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	MeiliURL       string
	MeiliMasterKey string
	HistoryDir     string
	// Export publishing to S3-compatible storage, disabled without an
	// endpoint.
	ExportEndpoint  string
	ExportAccessKey string
	ExportSecretKey string
	ExportBucket    string
	ExportUseSSL    bool
}

// LoadEnvFiles reads .env style files into the environment. Variables that
// are already set win; missing files are skipped.
func LoadEnvFiles(paths ...string) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			log.Printf("config: load %s: %v", path, err)
		}
	}
}

func Load() Config {
	return Config{
		Addr:            getenv("CANVAS_ADDR", ":8788"),
		DatabaseURL:     getenv("DATABASE_URL", ""),
		DBMaxConns:      getenvInt("CANVAS_DB_MAX_CONNS", 0),
		RedisURL:        getenv("REDIS_URL", ""),
		LocalDir:        getenv("CANVAS_LOCAL_DIR", "./data/local"),
		JWTSecret:       getenv("CANVAS_JWT_SECRET", "canvas-dev-secret"),
		TokenTTL:        getenvDuration("CANVAS_TOKEN_TTL", 24*time.Hour),
		CORSOrigin:      getenv("CANVAS_CORS_ORIGIN", "*"),
		Debounce:        getenvDuration("CANVAS_SAVE_DEBOUNCE", 1500*time.Millisecond),
		AdapterTimeout:  getenvDuration("CANVAS_ADAPTER_TIMEOUT", 15*time.Second),
		RetryAttempts:   getenvInt("CANVAS_RETRY_ATTEMPTS", 3),
		RetryBaseDelay:  getenvDuration("CANVAS_RETRY_BASE_DELAY", 200*time.Millisecond),
		RetryMaxDelay:   getenvDuration("CANVAS_RETRY_MAX_DELAY", 2*time.Second),
		MeiliURL:        getenv("MEILI_URL", ""),
		MeiliMasterKey:  getenv("MEILI_MASTER_KEY", ""),
		HistoryDir:      getenv("CANVAS_HISTORY_DIR", ""),
		ExportEndpoint:  getenv("CANVAS_EXPORT_ENDPOINT", ""),
		ExportAccessKey: getenv("CANVAS_EXPORT_ACCESS_KEY", ""),
		ExportSecretKey: getenv("CANVAS_EXPORT_SECRET_KEY", ""),
		ExportBucket:    getenv("CANVAS_EXPORT_BUCKET", "canvas-exports"),
		ExportUseSSL:    getenvBool("CANVAS_EXPORT_USE_SSL", true),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// getenvDuration accepts Go durations ("1.5s") or a plain number of
// milliseconds.
func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
