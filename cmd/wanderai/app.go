package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sweetpotato0/wanderai/assistant"
	"github.com/sweetpotato0/wanderai/config"
	"github.com/sweetpotato0/wanderai/contrib/provider"
	"github.com/sweetpotato0/wanderai/contrib/session/inmemory"
	"github.com/sweetpotato0/wanderai/contrib/tokenizer/tiktoken"
	"github.com/sweetpotato0/wanderai/grounding"
	"github.com/sweetpotato0/wanderai/llm"
	"github.com/sweetpotato0/wanderai/pkg/logging"
	"github.com/sweetpotato0/wanderai/pkg/telemetry"
	"github.com/sweetpotato0/wanderai/rag/retrieval"
	"github.com/sweetpotato0/wanderai/rag/webhook"
	"github.com/sweetpotato0/wanderai/router"
	"github.com/sweetpotato0/wanderai/session"
	"github.com/sweetpotato0/wanderai/session/store"
	"github.com/sweetpotato0/wanderai/validation"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	kb        *retrieval.Service
	sessions  *session.Manager
	assistant *assistant.Assistant
	webhooks  *webhook.Manager

	closers []func(context.Context) error
}

// loadConfig reads the configuration and installs the process logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.SetLogger(logging.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.File))
	return cfg, nil
}

// loadKnowledgeBase reads the knowledge base directory.
func loadKnowledgeBase(ctx context.Context, cfg *config.Config) (*retrieval.Service, error) {
	kb, err := retrieval.New(ctx, cfg.KB.Path)
	if err != nil {
		return nil, fmt.Errorf("load knowledge base %s: %w", cfg.KB.Path, err)
	}
	return kb, nil
}

// newApp wires the full assistant from configuration.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logging.WithComponent("cli")}

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "wanderai",
		ServiceVersion: version,
		Environment:    cfg.Telemetry.Environment,
		Disable:        cfg.Telemetry.Disable,
	})
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	a.closers = append(a.closers, shutdown)

	if a.kb, err = loadKnowledgeBase(ctx, cfg); err != nil {
		return nil, err
	}

	gen, err := provider.NewService(ctx, cfg.LLM, a.llmOptions()...)
	if err != nil {
		return nil, fmt.Errorf("build generation service: %w", err)
	}

	sessionStore, err := a.sessionStore(ctx)
	if err != nil {
		return nil, err
	}
	a.sessions = session.NewManager(
		session.WithStore(sessionStore),
		session.WithTimeout(cfg.Session.Timeout),
		session.WithMaxSessions(cfg.Session.MaxSessions),
		session.WithHistoryLimit(cfg.Session.HistoryLimit),
	)

	a.assistant = assistant.New(gen, a.kb,
		assistant.WithSessions(a.sessions),
		assistant.WithRouter(router.New(gen, router.WithTemperature(cfg.LLM.DefaultTemperature))),
		assistant.WithFormatter(grounding.New(
			grounding.WithMaxContextLength(cfg.Validation.MaxContextLength),
			grounding.WithMaxFacts(cfg.Validation.MaxFacts),
		)),
		assistant.WithValidator(validation.New(a.kb, validation.WithClaimTopK(cfg.Validation.ClaimTopK))),
		assistant.WithChatTemperature(cfg.LLM.ChatTemperature),
		assistant.WithRateLimit(cfg.Server.MaxRequestsPerMinute),
	)
	a.webhooks = webhook.NewManager(a.kb, cfg.KB.WebhookSecret, cfg.KB.UpdatesLog)

	a.logger.Info("assistant ready",
		"providers", gen.Providers(),
		"documents", len(a.kb.Documents()),
		"session_store", cfg.Session.Store,
	)
	return a, nil
}

func (a *app) llmOptions() []llm.Option {
	if a.cfg.LLM.HistoryTokenBudget <= 0 {
		return nil
	}
	tok, err := tiktoken.NewTiktokenTokenizer(a.cfg.LLM.TokenizerModel)
	if err != nil {
		a.logger.Warn("tokenizer unavailable, history is not trimmed", "model", a.cfg.LLM.TokenizerModel, "error", err)
		return nil
	}
	return []llm.Option{llm.WithHistoryBudget(tok, a.cfg.LLM.HistoryTokenBudget)}
}

func (a *app) sessionStore(ctx context.Context) (session.Store, error) {
	switch a.cfg.Session.Store {
	case config.SessionStoreRedis:
		rc := a.cfg.Session.Redis
		s := store.NewRedisStore(&store.RedisConfig{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			Prefix:   rc.Prefix,
			TTL:      rc.TTL,
		})
		if err := s.Ping(ctx); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("connect to redis %s: %w", rc.Addr, err)
		}
		a.closers = append(a.closers, func(context.Context) error { return s.Close() })
		return s, nil
	default:
		return inmemory.NewInMemoryStore(), nil
	}
}

// Close releases everything newApp opened, in reverse order.
func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("shutdown step failed", "error", err)
		}
	}
}
