package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/coursepilot/coursepilot/internal/config"
	"github.com/coursepilot/coursepilot/internal/logger"
	"github.com/coursepilot/coursepilot/internal/metrics"
	"github.com/coursepilot/coursepilot/pkg/course"
	"github.com/coursepilot/coursepilot/pkg/orchestrator"
	"github.com/coursepilot/coursepilot/pkg/provider"
	"github.com/coursepilot/coursepilot/pkg/rag"
)

// app bundles the wired components shared by the CLI commands.
type app struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	courses *course.FileSource
	router  *provider.Router
	index   *rag.MaterialIndex
	indexer *rag.Indexer
	engine  *orchestrator.Engine
	store   *orchestrator.InMemoryStore
}

// buildApp loads configuration and wires the orchestrator stack:
// config -> logger -> metrics -> backends -> retriever -> engine.
func buildApp() (*app, error) {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := config.NewValidator().Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return nil, err
	}

	zl := log.GetZerolog()
	m := metrics.New()

	router := provider.NewRouter(cfg.Backends.Primary, zl, m)
	if cfg.Backends.Anthropic.Enabled {
		if err := router.Register(provider.NewAnthropicBackend(cfg.Backends.Anthropic.APIKey)); err != nil {
			return nil, err
		}
	}
	if cfg.Backends.OpenAI.Enabled {
		if err := router.Register(provider.NewOpenAIBackend(cfg.Backends.OpenAI.APIKey)); err != nil {
			return nil, err
		}
	}
	if cfg.Backends.Local.Enabled {
		if err := router.Register(provider.NewLocalBackend(cfg.Backends.Local.Name, cfg.Backends.Local.BaseURL)); err != nil {
			return nil, err
		}
	}

	courses, err := course.NewFileSource(cfg.Courses.Dir, cfg.Backends.Primary, zl)
	if err != nil {
		return nil, err
	}

	var embedder rag.EmbeddingProvider
	if cfg.Materials.Embeddings.Provider == "openai" {
		embedder = rag.NewOpenAIEmbedder(cfg.Materials.Embeddings.APIKey, cfg.Materials.Embeddings.Model)
	} else {
		embedder = rag.NewHashEmbedder(cfg.Materials.Embeddings.Dimension)
	}

	index, err := rag.OpenIndex(cfg.Materials.IndexPath, embedder, zl)
	if err != nil {
		return nil, err
	}

	assembler := rag.NewAssembler(index, zl, m)
	store := orchestrator.NewInMemoryStore()

	engine := orchestrator.New(courses, router, assembler, store, zl,
		orchestrator.WithMetrics(m),
		orchestrator.WithTurnTimeout(time.Duration(cfg.Engine.TurnTimeoutSeconds)*time.Second),
		orchestrator.WithAgentTimeout(time.Duration(cfg.Engine.AgentTimeoutSeconds)*time.Second),
	)

	a := &app{
		cfg:     cfg,
		log:     log,
		metrics: m,
		courses: courses,
		router:  router,
		index:   index,
		indexer: rag.NewIndexer(cfg.Materials.Dir, index, zl),
		engine:  engine,
		store:   store,
	}

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", m.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Listen, mux); err != nil {
				zl.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
	}

	return a, nil
}

// Close releases the app's resources.
func (a *app) Close() {
	if a.indexer != nil {
		a.indexer.Stop()
	}
	if a.index != nil {
		_ = a.index.Close()
	}
	if a.log != nil {
		_ = a.log.Close()
	}
}
