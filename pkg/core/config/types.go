// Package config loads the runtime configuration from the environment,
// optionally seeded from a .env file. The field mapping specification
// itself lives in a separate YAML document (see pkg/mapping).
package config

import "time"

// Config is the full runtime configuration.
type Config struct {
	Feed    FeedConfig
	Jetshop JetshopConfig
	Sync    SyncConfig
	Logging LoggingConfig
	Metrics MetricsConfig
}

// FeedConfig configures the product feed export API.
type FeedConfig struct {
	// TokenURL is the OAuth client-credentials token endpoint.
	TokenURL string
	// ExportURL is the paged product export endpoint.
	ExportURL    string
	ClientID     string
	ClientSecret string
}

// JetshopConfig configures the destination shop SOAP API.
type JetshopConfig struct {
	URL      string
	Username string
	Password string
	ShopID   string
	// HeaderXML overrides the default SOAP header when set.
	HeaderXML string
	// TemplateID is injected into every product write. Empty disables
	// template assignment.
	TemplateID string
}

// SyncConfig holds run-level settings.
type SyncConfig struct {
	// MappingFile is the path to the mapping YAML document.
	MappingFile string
	// StateDir holds the checkpoint file.
	StateDir string
	// DiffDir is where dry-run diff payloads are written.
	DiffDir string
	// HTTPTimeout applies to both external clients.
	HTTPTimeout time.Duration
	// RetryCount is the maximum attempt count per external call.
	RetryCount int
	// RetryBackoff is the base backoff between retries.
	RetryBackoff time.Duration
	// Schedule is an optional cron expression for recurring runs.
	// Empty means run once and exit.
	Schedule string
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Level string
	// File receives a copy of the log stream alongside stdout.
	File string
}

// MetricsConfig configures the Prometheus scrape endpoint.
type MetricsConfig struct {
	// Port exposes /metrics when non-zero.
	Port int
}
