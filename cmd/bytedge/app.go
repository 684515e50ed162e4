package main

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"bytedge/internal/classifier"
	"bytedge/internal/config"
	"bytedge/internal/logger"
	"bytedge/internal/registry"
	"bytedge/internal/router"
	"bytedge/internal/services"
	"bytedge/internal/session"
	"bytedge/pkg/edgetypes"
)

// buildGenerator returns the configured provider client, or nil when no API key is available.
func buildGenerator(cfg *config.Config, opts ...services.ClientOption) (edgetypes.LLMClient, error) {
	if cfg.APIKey == "" {
		logger.Warn("no API key configured, generation disabled", "provider", cfg.Provider)
		return nil, nil
	}

	httpClient := &http.Client{Transport: services.NewDebugTransport(otelhttp.NewTransport(http.DefaultTransport))}
	opts = append([]services.ClientOption{
		services.WithHTTPClient(httpClient),
		services.WithMaxRetries(cfg.MaxRetries),
	}, opts...)

	client, err := services.NewClient(cfg.Provider, cfg.APIKey, cfg.Model, opts...)
	if err != nil {
		return nil, err
	}

	if cfg.Breaker.Enabled {
		client = services.NewBreakerClient(client, services.BreakerSettings{
			MaxFailures: cfg.Breaker.MaxFailures,
			OpenTimeout: cfg.Breaker.OpenTimeout,
		})
	}
	return client, nil
}

// buildRouter wires registry, classifier, session store and generator from cfg.
func buildRouter(cfg *config.Config, opts ...services.ClientOption) (*router.Router, error) {
	reg, err := registry.Open(cfg.AgentsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load agents: %w", err)
	}

	client, err := buildGenerator(cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", cfg.Provider, err)
	}

	r, err := router.New(reg, classifier.New(reg), session.NewMemoryStore(cfg.Router.RetentionLimit), client, router.Settings{
		Options:       cfg.Generation,
		FallbackAgent: cfg.Router.FallbackAgent,
		ContextWindow: cfg.Router.ContextWindow,
		Timeout:       cfg.Router.Timeout,
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("router ready", "agents", reg.Len(), "provider", cfg.Provider, "generation", r.HasGenerator())
	return r, nil
}
