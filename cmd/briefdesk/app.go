package main

import (
	"fmt"
	"path/filepath"

	"briefdesk/internal/cache"
	"briefdesk/internal/config"
	"briefdesk/internal/feedback"
	"briefdesk/internal/llm"
	"briefdesk/internal/logging"
	"briefdesk/internal/orchestrator"
	"briefdesk/internal/resolver"
	"briefdesk/internal/store"
)

// app holds one wired instance of the system for a CLI invocation.
type app struct {
	cfg       *config.Config
	store     *store.LocalStore
	cache     *cache.EntityCache
	feedback  *feedback.Store
	resolver  *resolver.Resolver
	orch      *orchestrator.Orchestrator
	templates *orchestrator.TemplateRegistry
	root      string
}

// newApp loads config and wires every layer. needModel controls whether
// a missing API key is fatal; feedback and stats commands work offline.
func newApp(needModel bool) (*app, error) {
	root, err := config.FindWorkspaceRoot()
	if err != nil {
		return nil, fmt.Errorf("failed to locate workspace: %w", err)
	}
	if err := logging.Initialize(root); err != nil {
		logger.Sugar().Warnf("file logging unavailable: %v", err)
	}

	path := configPath
	if path == "" {
		path = filepath.Join(root, ".briefdesk", "config.yaml")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Memory.DatabasePath = dbPath
	}

	databasePath := cfg.Memory.DatabasePath
	if !filepath.IsAbs(databasePath) {
		databasePath = filepath.Join(root, databasePath)
	}
	localStore, err := store.NewLocalStore(databasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	entityCache := cache.New(cfg.CacheTTL(), cfg.Memory.CacheCapacity)
	feedbackStore := feedback.NewStore(localStore, cfg.ProfileTTL())
	contextResolver := resolver.New(entityCache, localStore)
	templates := orchestrator.NewTemplateRegistry(filepath.Join(root, ".briefdesk", "templates"))

	var client *orchestrator.Orchestrator
	if needModel {
		llmClient, err := llm.NewClient(llm.Config{
			Provider: cfg.LLM.Provider,
			APIKey:   cfg.LLM.APIKey,
			BaseURL:  cfg.LLM.BaseURL,
			Model:    cfg.LLM.Model,
			Timeout:  cfg.LLMTimeout(),
		})
		if err != nil {
			localStore.Close()
			return nil, err
		}
		client = orchestrator.New(llmClient, localStore, feedbackStore, templates)
	} else {
		client = orchestrator.New(nil, localStore, feedbackStore, templates)
	}

	return &app{
		cfg:       cfg,
		store:     localStore,
		cache:     entityCache,
		feedback:  feedbackStore,
		resolver:  contextResolver,
		orch:      client,
		templates: templates,
		root:      root,
	}, nil
}

// close flushes async work and releases the store.
func (a *app) close() {
	a.resolver.Wait()
	if err := a.store.Close(); err != nil {
		logger.Sugar().Warnf("store close: %v", err)
	}
}
