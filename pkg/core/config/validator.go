package config

import "fmt"

// ValidationError names the setting that is missing or invalid.
type ValidationError struct {
	Setting string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s %s", e.Setting, e.Message)
}

// Validate checks that every required setting is present.
func (c *Config) Validate() error {
	required := []struct {
		setting string
		value   string
	}{
		{"FEED_TOKEN_URL", c.Feed.TokenURL},
		{"FEED_EXPORT_URL", c.Feed.ExportURL},
		{"FEED_CLIENT_ID", c.Feed.ClientID},
		{"FEED_CLIENT_SECRET", c.Feed.ClientSecret},
		{"JETSHOP_SOAP_URL", c.Jetshop.URL},
		{"JETSHOP_USERNAME", c.Jetshop.Username},
		{"JETSHOP_PASSWORD", c.Jetshop.Password},
		{"JETSHOP_SHOP_ID", c.Jetshop.ShopID},
	}
	for _, r := range required {
		if r.value == "" {
			return &ValidationError{Setting: r.setting, Message: "is required"}
		}
	}
	if c.Sync.RetryCount < 1 {
		return &ValidationError{Setting: "RETRY_COUNT", Message: "must be at least 1"}
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return &ValidationError{Setting: "METRICS_PORT", Message: "must be a valid port"}
	}
	return nil
}
