package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenAddr      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	DataDir        string        // root directory for library.json and track blobs
	MaxUploadBytes int64         // hard cap on multipart request bodies
	SweepInterval  time.Duration // interval between orphan blob sweeps (default: 1h)

	// Access gate. Empty values mean the tier is not configured;
	// with neither configured the server runs open (everyone writes).
	ReadPassword  string
	WritePassword string

	// Rate limiting for mutating endpoints
	RateBurst        int
	RateRefillPerMin int

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict access to specific IPs/CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

// Load builds the configuration from the optional YAML file first,
// then environment variables. Env always wins over the file so a
// container deployment can override a baked-in config.
func Load() *Config {
	cfg := &Config{
		ListenAddr:       ":8080",
		ShutdownTimeout:  5 * time.Second,
		LogLevel:         "info",
		PrettyLog:        true,
		DataDir:          "./data",
		MaxUploadBytes:   32 << 20,
		SweepInterval:    time.Hour,
		RateBurst:        20,
		RateRefillPerMin: 60,
		TrustProxy:       false,
	}

	if path := os.Getenv("TRACKLIB_CONFIG_FILE"); path != "" {
		if err := applyFile(cfg, path); err != nil {
			panic("❌ FATAL: failed to load config file " + path + ": " + err.Error())
		}
	}

	applyEnv(cfg)

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		if cfgCopy.ReadPassword != "" {
			cfgCopy.ReadPassword = "***REDACTED***"
		}
		if cfgCopy.WritePassword != "" {
			cfgCopy.WritePassword = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func applyEnv(cfg *Config) {
	cfg.ListenAddr = getenv("TRACKLIB_LISTEN_ADDR", cfg.ListenAddr)
	cfg.ShutdownTimeout = mustDuration("TRACKLIB_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)

	cfg.LogLevel = getenv("TRACKLIB_LOG_LEVEL", cfg.LogLevel)
	cfg.PrettyLog = mustBool("TRACKLIB_PRETTY_LOG", cfg.PrettyLog)

	cfg.DataDir = getenv("TRACKLIB_DATA_DIR", cfg.DataDir)
	cfg.MaxUploadBytes = getenvInt64("TRACKLIB_MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.SweepInterval = mustDuration("TRACKLIB_SWEEP_INTERVAL", cfg.SweepInterval)

	cfg.ReadPassword = getenv("TRACKLIB_READ_PASSWORD", cfg.ReadPassword)
	cfg.WritePassword = getenv("TRACKLIB_WRITE_PASSWORD", cfg.WritePassword)

	cfg.RateBurst = getenvInt("TRACKLIB_RATE_BURST", cfg.RateBurst)
	cfg.RateRefillPerMin = getenvInt("TRACKLIB_RATE_REFILL_PER_MIN", cfg.RateRefillPerMin)

	if v := os.Getenv("TRACKLIB_ALLOWED_HOSTS"); v != "" {
		cfg.AllowedHosts = splitAndTrim(v)
	}
	if v := os.Getenv("TRACKLIB_ALLOWED_CIDRS"); v != "" {
		cfg.AllowedCIDRS = splitAndTrim(v)
	}
	cfg.TrustProxy = mustBool("TRACKLIB_TRUST_PROXY", cfg.TrustProxy)
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
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
