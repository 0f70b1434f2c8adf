package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable of the dashboard core.
// Values load from the yaml file first, then env vars override secrets.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Dashboard struct {
		Cities               []string `yaml:"cities"`
		Cryptos              []string `yaml:"cryptos"`
		RefreshIntervalSec   int      `yaml:"refresh_interval_sec"`
		AlertScanIntervalSec int      `yaml:"alert_scan_interval_sec"`
		SimulateAlerts       bool     `yaml:"simulate_alerts"`
		SimulateIntervalSec  int      `yaml:"simulate_interval_sec"`
	} `yaml:"dashboard"`

	API struct {
		Weather struct {
			RestURL string `yaml:"rest_url"`
			APIKey  string `yaml:"api_key"`
		} `yaml:"weather"`
		Crypto struct {
			RestURL string `yaml:"rest_url"`
			WSURL   string `yaml:"ws_url"`
		} `yaml:"crypto"`
		News struct {
			RestURL     string `yaml:"rest_url"`
			APIKey      string `yaml:"api_key"`
			CacheTTLMin int    `yaml:"cache_ttl_min"`
		} `yaml:"news"`
	} `yaml:"api"`

	Feed struct {
		RetryDelaySec   int `yaml:"retry_delay_sec"`
		MaxRetries      int `yaml:"max_retries"`
		FallbackPollSec int `yaml:"fallback_poll_sec"`
	} `yaml:"feed"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns a config preloaded with the stock dashboard setup.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "cryptoweather-nexus"
	cfg.App.Version = "dev"
	cfg.Dashboard.Cities = []string{"New York", "London", "Tokyo"}
	cfg.Dashboard.Cryptos = []string{"bitcoin", "ethereum", "dogecoin"}
	cfg.Dashboard.RefreshIntervalSec = 60
	cfg.Dashboard.AlertScanIntervalSec = 60
	cfg.Dashboard.SimulateIntervalSec = 300
	cfg.API.Weather.RestURL = "https://api.openweathermap.org/data/2.5/weather"
	cfg.API.Crypto.RestURL = "https://api.coincap.io/v2/assets"
	cfg.API.Crypto.WSURL = "wss://ws.coincap.io/prices"
	cfg.API.News.RestURL = "https://newsdata.io/api/1/news"
	cfg.API.News.CacheTTLMin = 10
	cfg.Feed.RetryDelaySec = 3
	cfg.Feed.MaxRetries = 5
	cfg.Feed.FallbackPollSec = 60
	cfg.Logging.Level = "info"
	return &cfg
}

// LoadConfig reads and parses the config file, applies env overrides and
// validates the result. A missing file is not an error: defaults apply.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.API.Crypto.WSURL == "" || (!strings.HasPrefix(c.API.Crypto.WSURL, "ws://") && !strings.HasPrefix(c.API.Crypto.WSURL, "wss://")) {
		return fmt.Errorf("invalid crypto WS URL: %s", c.API.Crypto.WSURL)
	}
	if len(c.Dashboard.Cryptos) == 0 {
		return fmt.Errorf("at least one crypto id is required")
	}
	if len(c.Dashboard.Cities) == 0 {
		return fmt.Errorf("at least one city is required")
	}
	if c.Dashboard.RefreshIntervalSec <= 0 {
		return fmt.Errorf("refresh interval must be positive")
	}
	if c.Feed.MaxRetries <= 0 || c.Feed.RetryDelaySec <= 0 || c.Feed.FallbackPollSec <= 0 {
		return fmt.Errorf("feed retry/fallback settings must be positive")
	}
	return nil
}

// overrideWithEnv applies environment variables over file values.
// Env vars win so secrets never need to live in the config file.
func overrideWithEnv(cfg *Config) {
	if key := os.Getenv("NEXUS_OPENWEATHER_KEY"); key != "" {
		cfg.API.Weather.APIKey = key
	}
	if key := os.Getenv("NEXUS_NEWSDATA_KEY"); key != "" {
		cfg.API.News.APIKey = key
	}
	if url := os.Getenv("NEXUS_CRYPTO_WS_URL"); url != "" {
		cfg.API.Crypto.WSURL = url
	}
	if lvl := os.Getenv("NEXUS_LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}
}
