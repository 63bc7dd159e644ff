package config

import "time"

// Default values for optional settings.
const (
	DefaultMappingFile  = "mappings/mapping.yaml"
	DefaultStateDir     = "state"
	DefaultDiffDir      = "diffs"
	DefaultTemplateID   = "1"
	DefaultLogLevel     = "INFO"
	DefaultLogFile      = "logs/integration.log"
	DefaultHTTPTimeout  = 30 * time.Second
	DefaultRetryCount   = 3
	DefaultRetryBackoff = 500 * time.Millisecond
)

// SetDefaults fills unset optional fields.
func (c *Config) SetDefaults() {
	if c.Sync.MappingFile == "" {
		c.Sync.MappingFile = DefaultMappingFile
	}
	if c.Sync.StateDir == "" {
		c.Sync.StateDir = DefaultStateDir
	}
	if c.Sync.DiffDir == "" {
		c.Sync.DiffDir = DefaultDiffDir
	}
	if c.Sync.HTTPTimeout == 0 {
		c.Sync.HTTPTimeout = DefaultHTTPTimeout
	}
	if c.Sync.RetryCount == 0 {
		c.Sync.RetryCount = DefaultRetryCount
	}
	if c.Sync.RetryBackoff == 0 {
		c.Sync.RetryBackoff = DefaultRetryBackoff
	}
	if c.Jetshop.TemplateID == "" {
		c.Jetshop.TemplateID = DefaultTemplateID
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.File == "" {
		c.Logging.File = DefaultLogFile
	}
}
