package llm

import (
	"time"

	"github.com/kyleking/askdb/internal/config"
	"github.com/kyleking/askdb/internal/logging"
)

// NewFromConfig builds the model capability from application config. It
// returns a nil Service, and no error, when no provider is usable so the
// caller runs in degraded mode.
func NewFromConfig(cfg config.LLMConfig) (Service, error) {
	if !cfg.HasModel() {
		logging.WithField("provider", cfg.Provider).
			Warn("No model API key configured; running with deterministic fallbacks")

		return nil, nil
	}

	timeout := config.Duration(cfg.Timeout, 60*time.Second)

	manager := NewManager(ManagerConfig{
		DefaultProvider: cfg.Provider,
		RetryAttempts:   cfg.RetryAttempts,
		RetryDelay:      config.Duration(cfg.RetryDelay, time.Second),
	})

	primary := Config{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		Timeout:     timeout,
	}

	if err := register(manager, primary); err != nil {
		return nil, err
	}

	if cfg.FallbackProvider != "" && cfg.FallbackProvider != cfg.Provider {
		fallback := Config{
			Provider:    cfg.FallbackProvider,
			Model:       cfg.FallbackModel,
			APIKey:      config.ProviderAPIKey(cfg.FallbackProvider),
			BaseURL:     cfg.FallbackBaseURL,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     timeout,
		}

		if err := register(manager, fallback); err != nil {
			logging.WithError(err).WithField("provider", fallback.Provider).
				Warn("Fallback model provider not available")
		} else {
			manager.config.FallbackProviders = []string{fallback.Provider}
		}
	}

	logging.WithFields(map[string]any{
		"providers": manager.GetAvailableProviders(),
	}).Debug("Model providers configured")

	return manager, nil
}

func register(manager *Manager, cfg Config) error {
	client := NewClient(cfg)
	if err := client.Configure(cfg); err != nil {
		return err
	}

	return manager.RegisterProvider(cfg.Provider, client)
}
