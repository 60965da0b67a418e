package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type Config struct {
	APIAddr      string
	CORSOrigins  []string
	LanBaseURL   string
	CloudBaseURL string
	ProbeTimeout time.Duration
	PrefsFile    string
	SenderName   string
}

func Load() (*Config, error) {
	probeTimeout, err := time.ParseDuration(getEnv("PROBE_TIMEOUT", "800ms"))
	if err != nil {
		return nil, fmt.Errorf("invalid PROBE_TIMEOUT: %w", err)
	}

	cfg := &Config{
		APIAddr:      getEnv("API_ADDR", ":4000"),
		CORSOrigins:  splitList(getEnv("CORS_ORIGINS", "")),
		LanBaseURL:   getEnv("LAN_BASE_URL", "http://localhost:4000"),
		CloudBaseURL: os.Getenv("CLOUD_BASE_URL"),
		ProbeTimeout: probeTimeout,
		PrefsFile:    getEnv("CHATBOX_PREFS", "chatbox_prefs.db"),
		SenderName:   getEnv("SENDER_NAME", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("PROBE_TIMEOUT must be greater than 0")
	}
	if c.LanBaseURL == "" {
		return fmt.Errorf("LAN_BASE_URL must not be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// splitList parses a comma separated env value, dropping empty entries.
// An empty result means "allow any origin" (dev mode).
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
