package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

const (
	DriverMongo  = "mongo"
	DriverMemory = "memory"

	ModeCached  = "cached"
	ModePerCall = "per-call"
)

type Config struct {
	Port   int
	AppEnv string

	MongoURI           string
	DBName             string
	DBDriver           string
	DBConnectionMode   string
	DBOperationTimeout time.Duration
	EpisodeUniqueIndex bool

	RedisURL         string
	SnapshotCacheTTL time.Duration

	UploadDir       string
	UploadURLPrefix string
	StaticDir       string

	WriteRateLimit float64
	WriteRateBurst int

	MaintenanceSchedule string
	MaintenanceTasks    []string

	CORSOrigins []string
	// TrustedProxies lists proxy addresses or CIDR ranges whose
	// X-Forwarded-For and X-Real-IP headers name the client.
	TrustedProxies []string
}

// Load reads the process environment, after merging an optional .env file
// from the working directory.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:   envInt("PORT", 8080),
		AppEnv: env("APP_ENV", "development"),

		MongoURI:           env("MONGODB_URI", ""),
		DBName:             env("DB_NAME", "banglaserial"),
		DBDriver:           strings.ToLower(env("DB_DRIVER", DriverMongo)),
		DBConnectionMode:   strings.ToLower(env("DB_CONNECTION_MODE", ModeCached)),
		DBOperationTimeout: envDuration("DB_OPERATION_TIMEOUT", 0),
		EpisodeUniqueIndex: envBool("EPISODE_UNIQUE_INDEX", false),

		RedisURL:         env("REDIS_URL", ""),
		SnapshotCacheTTL: envDuration("SNAPSHOT_CACHE_TTL", 30*time.Second),

		UploadDir:       env("UPLOAD_DIR", "public/assets/images"),
		UploadURLPrefix: strings.TrimRight(env("UPLOAD_URL_PREFIX", "/assets/images"), "/"),
		StaticDir:       env("STATIC_DIR", "public"),

		WriteRateLimit: envFloat("WRITE_RATE_LIMIT", 10),
		WriteRateBurst: envInt("WRITE_RATE_BURST", 20),

		MaintenanceSchedule: env("MAINTENANCE_SCHEDULE", ""),
		MaintenanceTasks:    envList("MAINTENANCE_TASKS", []string{"update-image-paths"}),

		CORSOrigins:    envList("CORS_ORIGINS", []string{"*"}),
		TrustedProxies: envList("TRUSTED_PROXIES", nil),
	}
}

// Address is the listen address for the HTTP server.
func (c *Config) Address() string {
	return ":" + cast.ToString(c.Port)
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

func (c *Config) CacheEnabled() bool {
	return c.RedisURL != ""
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := cast.ToIntE(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := cast.ToFloat64E(strings.TrimSpace(v)); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := cast.ToBoolE(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}

// envDuration accepts Go duration strings ("30s") and bare integers, which
// are read as seconds.
func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if n, err := cast.ToInt64E(v); err == nil {
		return time.Duration(n) * time.Second
	}
	if d, err := cast.ToDurationE(v); err == nil {
		return d
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
