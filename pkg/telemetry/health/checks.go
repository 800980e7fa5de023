package health

import (
	"context"
	"errors"

	"shareai/chatrelay/pkg/config"
)

// ConfigCheck fails when the current configuration cannot reach the
// upstream, e.g. after a reload dropped the API key.
func ConfigCheck(current func() *config.Config) CheckFunc {
	return func(ctx context.Context) error {
		cfg := current()
		if cfg == nil {
			return errors.New("configuration not loaded")
		}
		if cfg.Upstream.APIKey == "" {
			return errors.New("upstream api key is not set")
		}
		if cfg.Upstream.BaseURL == "" {
			return errors.New("upstream base url is not set")
		}
		return nil
	}
}
