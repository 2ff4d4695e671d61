package main

import (
	"os"
	"path/filepath"
	"strconv"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds CLI configuration. Precedence: defaults, then config file,
// then GBLUP_* environment variables, then explicitly set flags.
type Config struct {
	LogLevel            string
	JSONLog             bool
	Workers             int
	MaxConcurrentSolves int64
	MemoryLimitMB       int64
	Compression         string
}

// FileConfig mirrors Config with TOML tags. Pointer fields distinguish
// "absent" from zero.
type FileConfig struct {
	LogLevel            string `toml:"log_level"`
	JSONLog             *bool  `toml:"json_log"`
	Workers             int    `toml:"workers"`
	MaxConcurrentSolves int64  `toml:"max_concurrent_solves"`
	MemoryLimitMB       int64  `toml:"memory_limit_mb"`
	Compression         string `toml:"compression"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		LogLevel:            "info",
		MaxConcurrentSolves: 1,
		Compression:         "zstd",
	}
}

// DefaultConfigPath returns ~/.gblup/config.toml if the home directory is
// accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".gblup", "config.toml")
	}
	return ""
}

// LoadFileConfig reads and parses a TOML config file.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// ApplyFileConfig applies file values to cfg, skipping flags explicitly
// set on the command line.
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) {
	if fc.LogLevel != "" && !changed["log-level"] {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.JSONLog != nil && !changed["json-log"] {
		cfg.JSONLog = *fc.JSONLog
	}
	if fc.Workers != 0 && !changed["workers"] {
		cfg.Workers = fc.Workers
	}
	if fc.MaxConcurrentSolves != 0 && !changed["max-solves"] {
		cfg.MaxConcurrentSolves = fc.MaxConcurrentSolves
	}
	if fc.MemoryLimitMB != 0 && !changed["memory-limit-mb"] {
		cfg.MemoryLimitMB = fc.MemoryLimitMB
	}
	if fc.Compression != "" && !changed["compression"] {
		cfg.Compression = fc.Compression
	}
}

// ApplyEnvConfig applies GBLUP_* environment variables to cfg. They
// override file values but lose to explicitly set flags.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) {
	if v := os.Getenv("GBLUP_LOG_LEVEL"); v != "" && !changed["log-level"] {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GBLUP_JSON_LOG"); v != "" && !changed["json-log"] {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.JSONLog = b
		}
	}
	if v := os.Getenv("GBLUP_WORKERS"); v != "" && !changed["workers"] {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("GBLUP_MAX_SOLVES"); v != "" && !changed["max-solves"] {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxConcurrentSolves = n
		}
	}
	if v := os.Getenv("GBLUP_MEMORY_LIMIT_MB"); v != "" && !changed["memory-limit-mb"] {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MemoryLimitMB = n
		}
	}
	if v := os.Getenv("GBLUP_COMPRESSION"); v != "" && !changed["compression"] {
		cfg.Compression = v
	}
}
