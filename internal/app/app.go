// Package app wires the configured clients into a workflow engine.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/book-expert/blog-workflow/internal/config"
	"github.com/book-expert/blog-workflow/internal/core"
	"github.com/book-expert/blog-workflow/internal/llm"
	"github.com/book-expert/blog-workflow/internal/speech"
	"github.com/book-expert/blog-workflow/internal/store"
	"github.com/book-expert/blog-workflow/internal/workflow"
	"github.com/book-expert/logger"
)

// Components are the collaborators built from a configuration.
type Components struct {
	Engine *workflow.Engine
	LLM    *llm.Client
	Speech core.Synthesizer
	Store  *store.FileStore
}

// Build creates the LLM client, speech synthesizer and result store described
// by cfg and returns an engine that uses them.
func Build(cfg *config.Config, log *logger.Logger, opts ...workflow.Option) (*Components, error) {
	llmClient, err := llm.NewClient(llm.SettingsFromConfig(cfg.LLM), log)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm client: %w", err)
	}

	synthesizer, err := speech.New(cfg.Speech, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech synthesizer: %w", err)
	}

	resultStore, err := store.NewFileStore(cfg.Paths.ResultsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create result store: %w", err)
	}

	engine, err := workflow.New(workflow.Dependencies{
		Generator:   llmClient,
		Polisher:    llmClient,
		Synthesizer: synthesizer,
		Store:       resultStore,
		Log:         log,
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow engine: %w", err)
	}

	return &Components{
		Engine: engine,
		LLM:    llmClient,
		Speech: synthesizer,
		Store:  resultStore,
	}, nil
}

// CheckServices pings the LLM service and, when the speech provider has a
// health endpoint, the speech service. Every failure is returned.
func (c *Components) CheckServices(ctx context.Context) error {
	var failures []error

	pingErr := c.LLM.Ping(ctx)
	if pingErr != nil {
		failures = append(failures, pingErr)
	}

	checker, ok := c.Speech.(speech.HealthChecker)
	if ok {
		healthErr := checker.HealthCheck(ctx)
		if healthErr != nil {
			failures = append(failures, healthErr)
		}
	}

	return errors.Join(failures...)
}
