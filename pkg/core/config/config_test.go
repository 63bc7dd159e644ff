package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FEED_TOKEN_URL", "https://feed.example.com/oauth/token")
	t.Setenv("FEED_EXPORT_URL", "https://feed.example.com/api/export/products/full")
	t.Setenv("FEED_CLIENT_ID", "client")
	t.Setenv("FEED_CLIENT_SECRET", "secret")
	t.Setenv("JETSHOP_SOAP_URL", "https://shop.example.com/soap.asmx")
	t.Setenv("JETSHOP_USERNAME", "svc")
	t.Setenv("JETSHOP_PASSWORD", "pw")
	t.Setenv("JETSHOP_SHOP_ID", "1234")
}

func TestLoadAppliesDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultMappingFile, cfg.Sync.MappingFile)
	assert.Equal(t, DefaultStateDir, cfg.Sync.StateDir)
	assert.Equal(t, 30*time.Second, cfg.Sync.HTTPTimeout)
	assert.Equal(t, 3, cfg.Sync.RetryCount)
	assert.Equal(t, "1", cfg.Jetshop.TemplateID)
	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, 0, cfg.Metrics.Port)
}

func TestLoadMissingRequiredSetting(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JETSHOP_PASSWORD", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JETSHOP_PASSWORD")
}

func TestLoadParsesOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("HTTP_TIMEOUT", "12.5")
	t.Setenv("RETRY_COUNT", "5")
	t.Setenv("RETRY_BACKOFF", "2s")
	t.Setenv("METRICS_PORT", "9090")
	t.Setenv("JETSHOP_TEMPLATE_ID", " 7 ")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 12500*time.Millisecond, cfg.Sync.HTTPTimeout)
	assert.Equal(t, 5, cfg.Sync.RetryCount)
	assert.Equal(t, 2*time.Second, cfg.Sync.RetryBackoff)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "7", cfg.Jetshop.TemplateID)
	assert.Equal(t, "DEBUG", cfg.Logging.Level)
}

func TestLoadRejectsBadInteger(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("METRICS_PORT", "not-a-port")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "METRICS_PORT")
}
