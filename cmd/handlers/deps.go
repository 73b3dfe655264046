package handlers

import (
	"context"
	"fmt"

	"podgen/internal/clustering"
	"podgen/internal/config"
	"podgen/internal/differ"
	"podgen/internal/fetch"
	"podgen/internal/llm"
	"podgen/internal/logger"
	"podgen/internal/persistence"
	"podgen/internal/pipeline"
	"podgen/internal/research"
	"podgen/internal/search"
	"podgen/internal/sources"
	"podgen/internal/storage"
	"podgen/internal/topics"
	"podgen/internal/tts"
)

// app bundles the wired generation stack shared by the serve and generate
// commands.
type app struct {
	cfg          *config.Config
	db           persistence.Database
	blobs        *storage.LocalStore
	orchestrator *pipeline.Orchestrator
}

// buildApp wires the full dependency graph from configuration. useMemory
// swaps the document store for the in-memory implementation, which is
// useful for one-shot runs without a MongoDB instance.
func buildApp(ctx context.Context, useMemory bool) (*app, func(context.Context), error) {
	log := logger.Get()
	cfg := config.Get()

	var db persistence.Database
	if useMemory {
		db = persistence.NewMemoryDatabase()
	} else {
		mongo, err := persistence.NewMongoDatabase(ctx, cfg.Database.URI, cfg.Database.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		db = mongo
	}
	cleanup := func(ctx context.Context) {
		if err := db.Close(ctx); err != nil {
			log.Warn("Failed to close database", "error", err)
		}
	}

	llmClient, err := llm.NewClient(ctx, cfg.AI.Gemini.Model)
	if err != nil {
		cleanup(ctx)
		return nil, nil, err
	}

	providers, err := buildSearchProviders(cfg)
	if err != nil {
		cleanup(ctx)
		return nil, nil, err
	}

	blobs, err := storage.NewLocalStore(cfg.Storage.Directory, cfg.Storage.PublicBaseURL)
	if err != nil {
		cleanup(ctx)
		return nil, nil, fmt.Errorf("failed to initialize blob storage: %w", err)
	}

	searcher := topics.NewSearcher(providers, llmClient)
	searcher.SetMaxTopics(cfg.Generation.MaxTopics)

	researcher := research.NewEngine(providers[0], llmClient, fetch.NewClient())
	researcher.SetMaxLayers(cfg.Generation.ResearchLayers)

	orchestrator := pipeline.NewOrchestrator(pipeline.Deps{
		DB:        db,
		Blobs:     blobs,
		Searcher:  searcher,
		Sources:   sources.NewManager(llmClient),
		Clusterer: clustering.NewEngine(llmClient),
		Research:  researcher,
		Differ:    differ.NewValidator(llmClient, llmClient),
		Generator: llmClient,
		TTS: tts.NewClient(tts.Config{
			Provider: tts.Provider(cfg.TTS.Provider),
			APIKey:   cfg.TTS.APIKey,
			Model:    cfg.TTS.Model,
		}),
	})

	return &app{
		cfg:          cfg,
		db:           db,
		blobs:        blobs,
		orchestrator: orchestrator,
	}, cleanup, nil
}

// buildSearchProviders creates every provider the configuration has
// credentials for, falling back to the mock provider so local runs work
// without any search credentials.
func buildSearchProviders(cfg *config.Config) ([]search.Provider, error) {
	log := logger.Get()
	factory := search.NewProviderFactory()

	var providers []search.Provider

	if cfg.AI.Gemini.APIKey != "" {
		p, err := factory.CreateProvider(search.ProviderTypeGemini, map[string]string{
			"api_key": cfg.AI.Gemini.APIKey,
			"model":   cfg.AI.Gemini.Model,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini search provider: %w", err)
		}
		providers = append(providers, p)
	}

	google := cfg.Search.Providers.Google
	if google.APIKey != "" && google.SearchID != "" {
		p, err := factory.CreateProvider(search.ProviderTypeGoogle, map[string]string{
			"api_key":   google.APIKey,
			"search_id": google.SearchID,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create google search provider: %w", err)
		}
		providers = append(providers, p)
	}

	if len(providers) == 0 {
		log.Warn("No search provider credentials configured, using mock provider")
		p, err := factory.CreateProvider(search.ProviderTypeMock, nil)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}

	return providers, nil
}
