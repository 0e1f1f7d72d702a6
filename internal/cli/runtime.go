package cli

import (
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"

	"github.com/arief/naia/internal/config"
	"github.com/arief/naia/internal/observability"
	"github.com/arief/naia/pkg/agent"
	"github.com/arief/naia/pkg/provider"
	"github.com/arief/naia/pkg/router"
	"github.com/arief/naia/pkg/session"
	"github.com/arief/naia/pkg/tools"
	"github.com/arief/naia/pkg/usage"
)

// runtime bundles the wired components of one running agent. The agent
// pointer is swapped on config reload; everything stateful (sessions,
// usage) survives the swap.
type runtime struct {
	mu       sync.RWMutex
	agent    *agent.Agent
	sessions *session.Manager
	tracker  *usage.Tracker
	store    *usage.Store
	cleanup  *session.Cleanup
}

func (r *runtime) currentAgent() *agent.Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.agent
}

func (r *runtime) swapAgent(a *agent.Agent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.agent = a
}

// buildRuntime wires providers, tools, sessions and the orchestrator
// from cfg.
func buildRuntime(cfg *config.Config) (*runtime, error) {
	rt := &runtime{
		sessions: session.NewManager(cfg.Models.Default),
		tracker:  usage.NewTracker(),
	}

	store, err := usage.NewStore(filepath.Join(cfg.DataDir, "usage.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open usage store: %w", err)
	}
	rt.store = store

	rt.cleanup = session.NewCleanup(
		rt.sessions,
		time.Duration(cfg.Session.MaxIdleDays)*24*time.Hour,
		cfg.Session.CleanupSchedule,
	)

	a, err := buildAgent(cfg, rt)
	if err != nil {
		store.Close()
		return nil, err
	}
	rt.agent = a
	return rt, nil
}

// buildAgent constructs an orchestrator against rt's shared state. It
// is called again on every config reload.
func buildAgent(cfg *config.Config, rt *runtime) (*agent.Agent, error) {
	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	executor := tools.NewExecutor()
	if cfg.Agent.ToolTimeout > 0 {
		executor.SetTimeout(time.Duration(cfg.Agent.ToolTimeout) * time.Second)
	}
	if err := tools.RegisterBuiltins(executor, tools.BuiltinOptions{WorkspaceRoot: cfg.DataDir}); err != nil {
		return nil, err
	}

	return agent.New(agent.Config{
		Registry:      registry,
		Router:        router.New(cfg.Models.Reasoning, cfg.Models.Tooling),
		Gateway:       executor,
		Sessions:      rt.sessions,
		Usage:         rt.tracker,
		SystemPrompt:  cfg.Agent.SystemPrompt,
		MaxTurns:      cfg.Agent.MaxTurns,
		SupportsTools: cfg.Models.SupportsTools,
	})
}

func buildRegistry(cfg *config.Config) (*provider.Registry, error) {
	registry := provider.NewRegistry()
	registered := 0

	if cfg.Providers.OpenAI.APIKey != "" || cfg.Providers.OpenAI.BaseURL != "" {
		var opts []openaiopt.RequestOption
		if cfg.Providers.OpenAI.BaseURL != "" {
			opts = append(opts, openaiopt.WithBaseURL(cfg.Providers.OpenAI.BaseURL))
		}
		p := provider.NewOpenAIProvider(cfg.Providers.OpenAI.APIKey, opts...)
		for _, prefix := range []string{"gpt", "o1", "o3", "o4"} {
			if err := registry.Register(prefix, p); err != nil {
				return nil, err
			}
		}
		registered++
	}

	if cfg.Providers.Anthropic.APIKey != "" {
		var opts []anthropicopt.RequestOption
		if cfg.Providers.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicopt.WithBaseURL(cfg.Providers.Anthropic.BaseURL))
		}
		p := provider.NewAnthropicProvider(cfg.Providers.Anthropic.APIKey, opts...)
		if err := registry.Register("claude", p); err != nil {
			return nil, err
		}
		registered++
	}

	if registered == 0 {
		return nil, fmt.Errorf("no provider configured: set an openai or anthropic api key")
	}
	return registry, nil
}

// reload rebuilds the agent from a freshly loaded config.
func (r *runtime) reload(cfg *config.Config) {
	a, err := buildAgent(cfg, r)
	if err != nil {
		log.Error().Err(err).Msg("Config reload produced an unusable agent, keeping previous one")
		return
	}
	r.swapAgent(a)
	log.Info().Msg("Agent rebuilt from reloaded config")
}

func (r *runtime) close() {
	if r.cleanup != nil {
		_ = r.cleanup.Stop()
	}
	if r.store != nil {
		_ = r.store.Close()
	}
}

// serveMetrics exposes the prometheus endpoint when enabled.
func serveMetrics(cfg *config.Config) {
	if !cfg.Metrics.Enabled {
		return
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.MetricsHandler())

	go func() {
		log.Info().Str("addr", cfg.Metrics.Addr).Msg("Metrics endpoint listening")
		if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
			log.Error().Err(err).Msg("Metrics endpoint failed")
		}
	}()
}
