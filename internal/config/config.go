// Package config loads agent configuration from environment variables with
// optional .env support.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the window namer agent.
type Config struct {
	// CDP connection settings
	CDPAddress string
	CDPPort    int

	// HTTP API bind settings
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Probe settings
	ProbePath    string
	BrowserLabel string

	// Cache and matching behavior
	CacheFile         string
	RefreshDebounceMS int
	EvalTimeoutMS     int

	// Browser launch
	LaunchBrowser bool
	StartURL      string
	ProfileDir    string

	// Logging and alerting
	LogLevel     string
	LogFile      string
	NTFYEndpoint string
}

// Load reads configuration from environment variables and an optional .env
// file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		CDPAddress:        getEnvOrDefault("NAMER_CDP_ADDRESS", "127.0.0.1"),
		CDPPort:           getEnvIntOrDefault("NAMER_CDP_PORT", 9222),
		BindAddr:          getEnvOrDefault("NAMER_BIND_ADDR", "127.0.0.1:8199"),
		PortCandidates:    getEnvListOrDefault("NAMER_PORT_CANDIDATES", []string{"127.0.0.1:8199", "127.0.0.1:8299", "127.0.0.1:8399"}),
		PortAutoFallback:  getEnvBoolOrDefault("NAMER_PORT_AUTO_FALLBACK", true),
		ProbePath:         getEnvOrDefault("NAMER_PROBE_PATH", "./window_probe"),
		BrowserLabel:      getEnvOrDefault("NAMER_BROWSER_LABEL", "chromium"),
		CacheFile:         getEnvOrDefault("NAMER_CACHE_FILE", "./data/window_names.json"),
		RefreshDebounceMS: getEnvIntOrDefault("NAMER_REFRESH_DEBOUNCE_MS", 400),
		EvalTimeoutMS:     getEnvIntOrDefault("NAMER_EVAL_TIMEOUT_MS", 3000),
		LaunchBrowser:     getEnvBoolOrDefault("NAMER_LAUNCH_BROWSER", false),
		StartURL:          getEnvOrDefault("NAMER_START_URL", "about:blank"),
		ProfileDir:        getEnvOrDefault("NAMER_PROFILE_DIR", ""),
		LogLevel:          strings.ToLower(getEnvOrDefault("NAMER_LOG_LEVEL", "info")),
		LogFile:           getEnvOrDefault("NAMER_LOG_FILE", "logs/window_namer.log"),
		NTFYEndpoint:      getEnvOrDefault("NAMER_NTFY_ENDPOINT", ""),
	}
	if cfg.EvalTimeoutMS < 500 {
		cfg.EvalTimeoutMS = 500
	}
	if cfg.RefreshDebounceMS < 0 {
		cfg.RefreshDebounceMS = 0
	}
	return cfg, nil
}

// CDPURL returns the CDP HTTP endpoint used by the chromedp remote allocator
// and the raw target watcher.
func (c *Config) CDPURL() string {
	return "http://" + c.CDPAddress + ":" + strconv.Itoa(c.CDPPort)
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvListOrDefault(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	parts := make([]string, 0)
	for _, p := range strings.Split(val, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return defaultVal
	}
	return parts
}
