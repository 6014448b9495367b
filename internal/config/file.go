package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors Config with optional fields so the YAML file can
// set only what it cares about. Durations use Go's duration syntax ("5s").
type fileConfig struct {
	ListenAddr      *string `yaml:"listen_addr"`
	ShutdownTimeout *string `yaml:"shutdown_timeout"`

	LogLevel  *string `yaml:"log_level"`
	PrettyLog *bool   `yaml:"pretty_log"`

	DataDir        *string `yaml:"data_dir"`
	MaxUploadBytes *int64  `yaml:"max_upload_bytes"`
	SweepInterval  *string `yaml:"sweep_interval"`

	ReadPassword  *string `yaml:"read_password"`
	WritePassword *string `yaml:"write_password"`

	RateBurst        *int `yaml:"rate_burst"`
	RateRefillPerMin *int `yaml:"rate_refill_per_min"`

	AllowedHosts []string `yaml:"allowed_hosts"`
	AllowedCIDRS []string `yaml:"allowed_cidrs"`
	TrustProxy   *bool    `yaml:"trust_proxy"`
}

// applyFile overlays values from a YAML config file onto cfg.
func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fc.ListenAddr != nil {
		cfg.ListenAddr = *fc.ListenAddr
	}
	if fc.ShutdownTimeout != nil {
		d, err := time.ParseDuration(*fc.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("invalid shutdown_timeout: %w", err)
		}
		cfg.ShutdownTimeout = d
	}
	if fc.LogLevel != nil {
		cfg.LogLevel = *fc.LogLevel
	}
	if fc.PrettyLog != nil {
		cfg.PrettyLog = *fc.PrettyLog
	}
	if fc.DataDir != nil {
		cfg.DataDir = *fc.DataDir
	}
	if fc.MaxUploadBytes != nil {
		cfg.MaxUploadBytes = *fc.MaxUploadBytes
	}
	if fc.SweepInterval != nil {
		d, err := time.ParseDuration(*fc.SweepInterval)
		if err != nil {
			return fmt.Errorf("invalid sweep_interval: %w", err)
		}
		cfg.SweepInterval = d
	}
	if fc.ReadPassword != nil {
		cfg.ReadPassword = *fc.ReadPassword
	}
	if fc.WritePassword != nil {
		cfg.WritePassword = *fc.WritePassword
	}
	if fc.RateBurst != nil {
		cfg.RateBurst = *fc.RateBurst
	}
	if fc.RateRefillPerMin != nil {
		cfg.RateRefillPerMin = *fc.RateRefillPerMin
	}
	if fc.AllowedHosts != nil {
		cfg.AllowedHosts = fc.AllowedHosts
	}
	if fc.AllowedCIDRS != nil {
		cfg.AllowedCIDRS = fc.AllowedCIDRS
	}
	if fc.TrustProxy != nil {
		cfg.TrustProxy = *fc.TrustProxy
	}

	return nil
}
