package cli

import (
	"fmt"
	"os"

	"github.com/howell-aikit/ideaforge/internal/engine"
	"github.com/howell-aikit/ideaforge/internal/gateway"
	"github.com/howell-aikit/ideaforge/internal/normalize"
	"github.com/howell-aikit/ideaforge/internal/project"
	"github.com/howell-aikit/ideaforge/internal/prompt"
	"github.com/howell-aikit/ideaforge/internal/template"
)

// buildStore opens the project store from config
func buildStore() (*project.Store, error) {
	store, err := project.NewStore(cfg.StateDir, cfg.LockTimeoutDuration())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize state: %w", err)
	}
	return store, nil
}

// buildEngine wires the full pipeline from config
func buildEngine(store *project.Store, convo engine.Conversation) (*engine.Engine, error) {
	tstore, err := template.Load(cfg.TemplateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load templates: %w", err)
	}
	renderer := template.NewRenderer(tstore)

	gw, err := buildGateway()
	if err != nil {
		return nil, err
	}
	bounded := gateway.WithTimeout(gw, cfg.Gateway.RequestTimeoutDuration())
	retrying := gateway.WithRetry(bounded, cfg.Gateway.MaxRetries, cfg.Gateway.RetryBaseDelayDuration(), logger)

	assembler := prompt.NewAssembler(tstore, renderer, logger)
	dispatcher := prompt.NewDispatcher(renderer, retrying, logger)
	normalizer := normalize.New(renderer, retrying, logger)

	opts := engine.Options{
		MaxAttempts:       cfg.MaxAttempts,
		MaxUserRounds:     cfg.MaxUserRounds,
		RefineConcurrency: cfg.RefineConcurrency,
	}

	return engine.New(assembler, dispatcher, normalizer, retrying, store, convo, opts, logger), nil
}

// buildGateway selects the LLM backend from config
func buildGateway() (gateway.Gateway, error) {
	switch cfg.Gateway.Provider {
	case "openai", "":
		apiKey := os.Getenv(cfg.Gateway.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("environment variable %s is not set", cfg.Gateway.APIKeyEnv)
		}
		return gateway.NewOpenAI(gateway.OpenAIConfig{
			APIKey:      apiKey,
			BaseURL:     cfg.Gateway.BaseURL,
			Model:       cfg.Gateway.Model,
			Temperature: float32(cfg.Gateway.Temperature),
			MaxTokens:   cfg.Gateway.MaxTokens,
		}), nil
	case "claude-cli":
		return gateway.NewClaudeCLI(cfg.Gateway.ClaudePath, cfg.Gateway.Model), nil
	}
	return nil, fmt.Errorf("unknown gateway provider %q", cfg.Gateway.Provider)
}

// loadProject resolves a project by explicit ID or the current pointer
func loadProject(store *project.Store, id string) (*project.Context, error) {
	if id != "" {
		return store.Load(id)
	}
	pctx, err := store.Current()
	if err != nil {
		return nil, err
	}
	if pctx == nil {
		return nil, fmt.Errorf("no current project; specify a project ID or run 'ideaforge new'")
	}
	return pctx, nil
}
