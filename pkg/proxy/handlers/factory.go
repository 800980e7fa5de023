package handlers

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"shareai/chatrelay/pkg/agent"
	"shareai/chatrelay/pkg/config"
	"shareai/chatrelay/pkg/tasks"
	"shareai/chatrelay/pkg/upstream"
)

// Overrides are the per-request agent settings. Zero values fall back to
// the configuration.
type Overrides struct {
	Model      string
	MaxRetries int
	RetryDelay time.Duration
}

// AgentFactory builds one agent per request from the current
// configuration. Upstream connections are pooled across agents.
type AgentFactory struct {
	config   func() *config.Config
	client   *http.Client
	logger   *slog.Logger
	observer agent.Observer
	registry *agent.Registry
}

// FactoryOption configures an AgentFactory.
type FactoryOption func(*AgentFactory)

// WithFactoryLogger sets the logger handed to agents.
func WithFactoryLogger(l *slog.Logger) FactoryOption {
	return func(f *AgentFactory) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithFactoryObserver sets the run observer handed to agents.
func WithFactoryObserver(o agent.Observer) FactoryOption {
	return func(f *AgentFactory) { f.observer = o }
}

// WithRegistry sets the registry agents are created from. Default:
// agent.DefaultRegistry().
func WithRegistry(r *agent.Registry) FactoryOption {
	return func(f *AgentFactory) {
		if r != nil {
			f.registry = r
		}
	}
}

// WithHTTPClient replaces the pooled upstream HTTP client.
func WithHTTPClient(c *http.Client) FactoryOption {
	return func(f *AgentFactory) {
		if c != nil {
			f.client = c
		}
	}
}

// NewAgentFactory creates a factory. current is called for every agent,
// so reloaded configuration applies to the next request.
func NewAgentFactory(current func() *config.Config, opts ...FactoryOption) *AgentFactory {
	f := &AgentFactory{
		config:   current,
		logger:   slog.Default(),
		registry: agent.DefaultRegistry(),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.client == nil {
		f.client = newPooledClient(current().Upstream)
	}
	return f
}

// New builds an agent of the configured kind with o applied.
func (f *AgentFactory) New(o Overrides) (agent.Agent, error) {
	cfg := f.config()

	agentCfg := agent.Config{
		APIKey:     cfg.Upstream.APIKey,
		BaseURL:    cfg.Upstream.BaseURL,
		Model:      cfg.Upstream.Model,
		MaxRetries: cfg.Agent.MaxRetries,
		RetryDelay: cfg.Agent.RetryDelay,
		Timeout:    cfg.Upstream.Timeout,
	}
	if o.Model != "" {
		agentCfg.Model = o.Model
	}
	if o.MaxRetries > 0 {
		agentCfg.MaxRetries = o.MaxRetries
	}
	if o.RetryDelay > 0 {
		agentCfg.RetryDelay = o.RetryDelay
	}

	transport := upstream.NewClient(upstream.Config{
		Name:    cfg.Upstream.Name,
		BaseURL: cfg.Upstream.BaseURL,
		APIKey:  cfg.Upstream.APIKey,
		Timeout: cfg.Upstream.Timeout,
	}, upstream.WithHTTPClient(f.client), upstream.WithLogger(f.logger))

	opts := []agent.Option{agent.WithLogger(f.logger), agent.WithTransport(transport)}
	if f.observer != nil {
		opts = append(opts, agent.WithObserver(f.observer))
	}
	return f.registry.Create(agent.Kind(cfg.Agent.Kind), agentCfg, opts...)
}

// TaskFactory adapts the factory to the task manager.
func (f *AgentFactory) TaskFactory() tasks.Factory {
	return func(req tasks.Request) (agent.Agent, error) {
		return f.New(Overrides{Model: req.Model, MaxRetries: req.MaxRetries, RetryDelay: req.RetryDelay})
	}
}

func newPooledClient(cfg config.UpstreamConfig) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.Timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          cfg.MaxIdleConns,
			MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
			IdleConnTimeout:       cfg.IdleConnTimeout,
			ResponseHeaderTimeout: cfg.Timeout,
			ForceAttemptHTTP2:     true,
		},
	}
}
