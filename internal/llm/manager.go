package llm

import (
	"context"
	"sort"
	"time"

	"github.com/kyleking/askdb/internal/errors"
	"github.com/kyleking/askdb/internal/logging"
)

// Manager handles multiple LLM providers with fallback strategies
type Manager struct {
	providers map[string]Service
	config    ManagerConfig
}

// ManagerConfig configures the LLM manager behavior
type ManagerConfig struct {
	DefaultProvider   string        `json:"default_provider"`
	FallbackProviders []string      `json:"fallback_providers"`
	RetryAttempts     int           `json:"retry_attempts"`
	RetryDelay        time.Duration `json:"retry_delay"`
	Timeout           time.Duration `json:"timeout"`
}

// NewManager creates a new LLM manager with the given configuration
func NewManager(config ManagerConfig) *Manager {
	return &Manager{
		providers: make(map[string]Service),
		config:    config,
	}
}

// RegisterProvider registers a new LLM provider
func (m *Manager) RegisterProvider(name string, service Service) error {
	if name == "" {
		return errors.New(errors.ErrTypeConfig, "provider name cannot be empty")
	}

	if service == nil {
		return errors.New(errors.ErrTypeConfig, "service cannot be nil")
	}

	m.providers[name] = service

	return nil
}

// Configure configures a specific provider
func (m *Manager) Configure(config Config) error {
	provider, exists := m.providers[config.Provider]
	if !exists {
		return errors.Newf(errors.ErrTypeConfig, "provider %s not registered", config.Provider)
	}

	return provider.Configure(config)
}

// Complete tries the default provider and then each fallback in order, each
// with its own retry budget.
func (m *Manager) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if m.config.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, m.config.Timeout)
		defer cancel()
	}

	var lastErr error

	for i, name := range m.chain() {
		provider, exists := m.providers[name]
		if !exists {
			continue
		}

		response, err := m.tryProvider(ctx, provider, req)
		if err == nil {
			if i > 0 {
				logging.WithField("provider", name).Info("Fallback provider answered")
			}

			return response, nil
		}

		lastErr = err

		logging.WithFields(map[string]any{
			"provider": name,
			"error":    err.Error(),
		}).Warn("Model provider failed")

		if ctx.Err() != nil {
			break
		}
	}

	if lastErr == nil {
		return nil, errors.New(errors.ErrTypeConfig, "no model provider registered")
	}

	return nil, errors.Wrap(lastErr, errors.ErrTypeModel, "all model providers failed")
}

func (m *Manager) chain() []string {
	names := make([]string, 0, len(m.config.FallbackProviders)+1)
	if m.config.DefaultProvider != "" {
		names = append(names, m.config.DefaultProvider)
	}

	return append(names, m.config.FallbackProviders...)
}

// tryProvider attempts to use a provider with retries
func (m *Manager) tryProvider(ctx context.Context, provider Service, req CompletionRequest) (*CompletionResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= m.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(m.config.RetryDelay):
			}
		}

		response, err := provider.Complete(ctx, req)
		if err == nil {
			return response, nil
		}

		lastErr = err

		// Configuration problems do not heal on retry
		if ctx.Err() != nil || errors.IsType(err, errors.ErrTypeConfig) {
			break
		}
	}

	return nil, lastErr
}

// GetAvailableProviders returns the registered provider names, sorted
func (m *Manager) GetAvailableProviders() []string {
	providers := make([]string, 0, len(m.providers))
	for name := range m.providers {
		providers = append(providers, name)
	}

	sort.Strings(providers)

	return providers
}

// IsProviderRegistered checks if a provider is registered
func (m *Manager) IsProviderRegistered(name string) bool {
	_, exists := m.providers[name]
	return exists
}
