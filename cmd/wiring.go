package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/resume-screener/internal/ai"
	"github.com/spigell/resume-screener/internal/ai/gemini"
	"github.com/spigell/resume-screener/internal/apperror"
	"github.com/spigell/resume-screener/internal/chat"
	"github.com/spigell/resume-screener/internal/documents"
	"github.com/spigell/resume-screener/internal/documents/sqlite"
	"github.com/spigell/resume-screener/internal/embedding"
	"github.com/spigell/resume-screener/internal/embedding/local"
	"github.com/spigell/resume-screener/internal/embedding/openai"
	"github.com/spigell/resume-screener/internal/logger"
	"github.com/spigell/resume-screener/internal/rag"
	"github.com/spigell/resume-screener/internal/secrets"
	"github.com/spigell/resume-screener/internal/session"
	"github.com/spigell/resume-screener/internal/vectorstore"
	"github.com/spigell/resume-screener/internal/vectorstore/memory"
	"github.com/spigell/resume-screener/internal/vectorstore/qdrant"
)

const providerGemini = "gemini"

// components holds everything a command may need. Fields a command did not
// ask for stay nil.
type components struct {
	config *Config
	logger *zap.Logger

	generator    ai.Generator
	store        *session.Store
	orchestrator *chat.Orchestrator
	matcher      *gemini.Matcher
	documents    *documents.Service

	closers []func() error
}

type needs struct {
	generator bool
	retrieval bool
}

// setup builds the logger and config. Failures are fatal because nothing can
// be reported without them.
func setup() (*Config, *zap.Logger) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		logger.Fatal("config is required")
	}

	return config, logger
}

func buildComponents(ctx context.Context, config *Config, logger *zap.Logger, n needs) (*components, error) {
	c := &components{config: config, logger: logger}

	if n.generator {
		generator, err := buildGenerator(ctx, config, logger)
		if err != nil {
			return nil, err
		}
		c.generator = generator
		c.matcher = gemini.NewMatcher(generator,
			ai.Sampling{Temperature: config.Scoring.Temperature, MaxTokens: config.Scoring.MaxTokens},
			config.Scoring.MaxInputChars,
			config.AI.Gemini.MaxLogLength,
			logger.Named("matcher"),
		)
	}

	if !n.retrieval {
		return c, nil
	}

	embedder, err := buildEmbedder(config, logger)
	if err != nil {
		return nil, err
	}

	index, err := buildIndex(config, embedder.Dimension(), logger)
	if err != nil {
		return nil, err
	}

	repo, err := buildRepository(c, config)
	if err != nil {
		return nil, err
	}

	c.documents = documents.NewService(repo, rag.NewIndexer(embedder, index, logger), documents.Options{}, logger)

	c.store = session.NewStore(session.Options{
		MaxMessages:   config.Session.MaxMessages,
		TTL:           config.Session.TTL,
		SweepInterval: config.Session.SweepInterval,
	}, logger)

	c.orchestrator = chat.NewOrchestrator(c.store, rag.NewRetriever(embedder, index, logger), c.generator, chat.Options{
		TopK:          config.Chat.TopK,
		HistoryWindow: config.Session.HistoryWindow,
		SnippetLength: config.Chat.SnippetLength,
		Sampling:      ai.Sampling{Temperature: config.Chat.Temperature, MaxTokens: config.Chat.MaxTokens},
	}, logger)

	return c, nil
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			c.logger.Warn("closing a component", zap.Error(err))
		}
	}
}

func geminiAPIKey(config *Config) (string, error) {
	return secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: config.AI.Gemini.APIKey,
		File:  config.AI.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
}

func buildGenerator(ctx context.Context, config *Config, log *zap.Logger) (ai.Generator, error) {
	provider := strings.ToLower(strings.TrimSpace(config.AI.Provider))
	if provider != providerGemini {
		return nil, apperror.Newf(apperror.KindConfiguration, "unsupported ai provider %q", config.AI.Provider)
	}

	apiKey, err := geminiAPIKey(config)
	if err != nil {
		return nil, err
	}

	gc := config.AI.Gemini
	generator, err := gemini.NewGenerator(ctx, apiKey, gc.Model, gc.MaxRetries, gc.Timeout,
		logger.WithCommonFields(log, provider, gc.Model))
	if err != nil {
		return nil, fmt.Errorf("creating gemini generator: %w", err)
	}

	return generator, nil
}

// buildEmbedder defers provider construction to the first embedding request
// so the API can start while the provider is unreachable.
func buildEmbedder(config *Config, log *zap.Logger) (*embedding.Fixed, error) {
	ec := config.Embedding
	provider := strings.ToLower(strings.TrimSpace(ec.Provider))
	log = logger.WithCommonFields(log, provider, "")

	var inner embedding.Embedder
	switch provider {
	case providerGemini:
		apiKey, err := geminiAPIKey(config)
		if err != nil {
			return nil, err
		}
		inner = embedding.NewLazy(func(ctx context.Context) (embedding.Embedder, error) {
			return gemini.NewEmbedder(ctx, apiKey, ec.Gemini.Model, ec.Dimension,
				config.AI.Gemini.MaxRetries, config.AI.Gemini.Timeout, log)
		}, log)
	case "openai":
		apiKey, err := secrets.Load(secrets.Source{
			Name:  "openai api key",
			Value: ec.OpenAI.APIKey,
			File:  ec.OpenAI.APIKeyFile,
			Env:   "OPENAI_API_KEY",
		})
		if err != nil {
			return nil, err
		}
		inner = embedding.NewLazy(func(context.Context) (embedding.Embedder, error) {
			return openai.NewClient(openai.Config{
				BaseURL: ec.OpenAI.BaseURL,
				APIKey:  apiKey,
				Model:   ec.OpenAI.Model,
				Timeout: ec.OpenAI.Timeout,
			}, log)
		}, log)
	case "local":
		inner = local.New(ec.Local.Dimensions)
	default:
		return nil, apperror.Newf(apperror.KindConfiguration, "unsupported embedding provider %q", ec.Provider)
	}

	return embedding.NewFixed(inner, ec.Dimension, ec.MaxInputChars), nil
}

func buildIndex(config *Config, dimension int, log *zap.Logger) (vectorstore.Index, error) {
	vc := config.VectorStore
	switch strings.ToLower(strings.TrimSpace(vc.Type)) {
	case "", "memory":
		return memory.New(dimension)
	case "qdrant":
		var apiKey string
		// Local Qdrant instances usually run without authentication.
		if vc.Qdrant.APIKey != "" || vc.Qdrant.APIKeyFile != "" {
			key, err := secrets.Load(secrets.Source{
				Name:  "qdrant api key",
				Value: vc.Qdrant.APIKey,
				File:  vc.Qdrant.APIKeyFile,
			})
			if err != nil {
				return nil, err
			}
			apiKey = key
		}
		return qdrant.New(qdrant.Config{
			URL:        vc.Qdrant.URL,
			APIKey:     apiKey,
			Collection: vc.Qdrant.Collection,
			Dimension:  dimension,
			Timeout:    vc.Qdrant.Timeout,
		}, log)
	default:
		return nil, apperror.Newf(apperror.KindConfiguration, "unsupported vector store %q", vc.Type)
	}
}

func buildRepository(c *components, config *Config) (documents.Repository, error) {
	dc := config.Documents
	switch strings.ToLower(strings.TrimSpace(dc.Type)) {
	case "", "memory":
		return documents.NewMemoryRepository(), nil
	case "sqlite":
		repo, err := sqlite.Open(dc.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("opening document database: %w", err)
		}
		c.closers = append(c.closers, repo.Close)
		return repo, nil
	default:
		return nil, apperror.Newf(apperror.KindConfiguration, "unsupported document store %q", dc.Type)
	}
}

// fatalOnError stops a command with a hint for configuration problems.
func fatalOnError(logger *zap.Logger, msg string, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) {
		logger.Info("exiting", zap.String("reason", "interrupted"))
		return
	}

	fields := []zap.Field{zap.Error(err), zap.String("error_kind", string(apperror.KindOf(err)))}
	if apperror.Is(err, apperror.KindConfiguration) {
		fields = append(fields, zap.String("hint", "check resume-screener.yaml or the environment variables listed by the config command"))
	}
	logger.Fatal(msg, fields...)
}
