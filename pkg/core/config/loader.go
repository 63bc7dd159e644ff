package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment
// variables win over .env entries.
func Load() (*Config, error) {
	// godotenv never overrides variables that are already set.
	_ = godotenv.Load()

	cfg := &Config{
		Feed: FeedConfig{
			TokenURL:     os.Getenv("FEED_TOKEN_URL"),
			ExportURL:    os.Getenv("FEED_EXPORT_URL"),
			ClientID:     os.Getenv("FEED_CLIENT_ID"),
			ClientSecret: os.Getenv("FEED_CLIENT_SECRET"),
		},
		Jetshop: JetshopConfig{
			URL:        os.Getenv("JETSHOP_SOAP_URL"),
			Username:   os.Getenv("JETSHOP_USERNAME"),
			Password:   os.Getenv("JETSHOP_PASSWORD"),
			ShopID:     os.Getenv("JETSHOP_SHOP_ID"),
			HeaderXML:  os.Getenv("JETSHOP_SOAP_HEADER_XML"),
			TemplateID: strings.TrimSpace(os.Getenv("JETSHOP_TEMPLATE_ID")),
		},
		Sync: SyncConfig{
			MappingFile: os.Getenv("MAPPING_FILE"),
			StateDir:    os.Getenv("STATE_DIR"),
			DiffDir:     os.Getenv("DIFF_DIR"),
			Schedule:    os.Getenv("SYNC_SCHEDULE"),
		},
		Logging: LoggingConfig{
			Level: strings.ToUpper(os.Getenv("LOG_LEVEL")),
			File:  os.Getenv("LOG_FILE"),
		},
	}

	var err error
	if cfg.Sync.HTTPTimeout, err = envDuration("HTTP_TIMEOUT", 0); err != nil {
		return nil, err
	}
	if cfg.Sync.RetryCount, err = envInt("RETRY_COUNT", 0); err != nil {
		return nil, err
	}
	if cfg.Sync.RetryBackoff, err = envDuration("RETRY_BACKOFF", 0); err != nil {
		return nil, err
	}
	if cfg.Metrics.Port, err = envInt("METRICS_PORT", 0); err != nil {
		return nil, err
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envInt parses an optional integer environment variable.
func envInt(name string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", name, raw)
	}
	return v, nil
}

// envDuration parses an optional duration variable. Bare numbers are
// read as seconds, matching older deployments.
func envDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(seconds * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration", name, raw)
	}
	return d, nil
}
