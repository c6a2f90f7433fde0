package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	StoreBolt   = "bolt"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Store        string        // "memory" | "redis" | "bolt"
	BoltPath     string        // bbolt database file (STORE=bolt)
	BoltTimeout  time.Duration // wait for the bbolt file lock
	BotsFile     string        // optional YAML bot definitions, empty = disabled
	ReloadEvery  time.Duration // interval to re-apply the bots file, 0 = manual only
	BotPrefix    string        // name prefix of bots created without a name
	APIRateLimit int           // requests per minute per client on /api, 0 = unlimited

	// Redis (STORE=redis)
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisKeyPrefix        string        // namespace of every key written
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedCIDRS []string // optional, restrict /reload to specific IP (e.g. "1.2.3.4, 10.0.0.0/8")
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("COURSEBOTS_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("COURSEBOTS_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("COURSEBOTS_LOG_LEVEL", "info"),
		PrettyLog: mustBool("COURSEBOTS_PRETTY_LOG", true),

		// Bots
		Store:        mustOneOf("COURSEBOTS_STORE", StoreMemory, StoreMemory, StoreRedis, StoreBolt),
		BoltPath:     getenv("COURSEBOTS_BOLT_PATH", "/data/coursebots.db"),
		BoltTimeout:  mustDuration("COURSEBOTS_BOLT_TIMEOUT", time.Second),
		BotsFile:     getenv("COURSEBOTS_BOTS_FILE", ""),
		ReloadEvery:  mustDuration("COURSEBOTS_RELOAD_INTERVAL", time.Hour),
		BotPrefix:    getenv("COURSEBOTS_DEFAULT_BOT_PREFIX", "Anna"),
		APIRateLimit: getenvInt("COURSEBOTS_API_RATE_LIMIT", 120),

		// Redis settings
		RedisUser:             getenv("COURSEBOTS_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("COURSEBOTS_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("COURSEBOTS_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("COURSEBOTS_REDIS_DB", 0),
		RedisKeyPrefix:        getenv("COURSEBOTS_REDIS_KEY_PREFIX", "coursebots:"),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedCIDRS: splitAndTrim(getenv("COURSEBOTS_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("COURSEBOTS_TRUST_PROXY", false),
	}

	if cfg.Store == StoreRedis {
		cfg.RedisAddr = requireEnv("COURSEBOTS_REDIS_ADDR")
		// Validate Redis password configuration
		if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
			panic("❌ FATAL: COURSEBOTS_REDIS_PASSWORD is required when COURSEBOTS_REDIS_PASSWORD_REQUIRED=true")
		}
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// mustOneOf returns the lower cased value of key and panics when it is not
// one of allowed.
func mustOneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(getenv(key, def))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	panic(fmt.Sprintf("❌ FATAL: %s must be one of %s, got %q", key, strings.Join(allowed, ", "), v))
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
