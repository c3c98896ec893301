// Package app assembles the inbox from configuration. Both binaries build
// the same services; only the server serves HTTP and only the worker
// drains the auto-reply stream.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/imranmit2020/pro-login-flow-sub000/common/llm"
	"github.com/imranmit2020/pro-login-flow-sub000/core/config"
	"github.com/imranmit2020/pro-login-flow-sub000/core/db"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/model"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/platform"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/queue"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/reply"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/service"
	"github.com/imranmit2020/pro-login-flow-sub000/internal/store"
)

// Deps are the process-level resources. DB and Redis are optional: without
// them the stores, toggle and claimer live in memory.
type Deps struct {
	DB       *db.DB
	Redis    *redis.Client
	Producer queue.Producer
	Logger   *slog.Logger
}

// Identities returns the business accounts for Facebook and Instagram.
func Identities(cfg config.Config) (facebook, instagram model.BusinessIdentity) {
	facebook = model.NewBusinessIdentity()
	for _, page := range cfg.Facebook.Pages {
		facebook = facebook.With(page.ID, page.Name)
	}
	instagram = model.NewBusinessIdentity().With(cfg.Instagram.BusinessAccountID, cfg.Instagram.DisplayName)
	return facebook, instagram
}

// NewStores picks Postgres when a database is available.
func NewStores(cfg config.Config, database *db.DB) *store.Stores {
	facebook, instagram := Identities(cfg)
	if database == nil {
		return store.NewMemoryStores(facebook, instagram)
	}
	return store.NewStores(database.Pool(), facebook, instagram)
}

// NewRegistry builds one Graph client per Facebook page plus the Instagram account.
func NewRegistry(cfg config.Config) (*platform.Registry, error) {
	registry := platform.NewRegistry()

	for _, page := range cfg.Facebook.Pages {
		client, err := platform.NewGraphClient(model.PlatformFacebook, platform.GraphConfig{
			AppID:       cfg.Facebook.AppID,
			AppSecret:   cfg.Facebook.AppSecret,
			APIVersion:  cfg.Facebook.APIVersion,
			AccessToken: page.AccessToken,
			AccountID:   page.ID,
			Timeout:     cfg.Facebook.HTTPTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("facebook page %s: %w", page.ID, err)
		}
		registry.Register(model.PlatformFacebook, platform.Account{ID: page.ID, Name: page.Name, Client: client})
	}

	if cfg.Instagram.Enabled() {
		client, err := platform.NewGraphClient(model.PlatformInstagram, platform.GraphConfig{
			AppID:       cfg.Facebook.AppID,
			AppSecret:   cfg.Facebook.AppSecret,
			APIVersion:  cfg.Facebook.APIVersion,
			AccessToken: cfg.Instagram.AccessToken,
			AccountID:   cfg.Instagram.BusinessAccountID,
			Timeout:     cfg.Facebook.HTTPTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("instagram: %w", err)
		}
		registry.Register(model.PlatformInstagram, platform.Account{
			ID:     cfg.Instagram.BusinessAccountID,
			Name:   cfg.Instagram.DisplayName,
			Client: client,
		})
	}
	return registry, nil
}

// NewGmail returns nil when Gmail credentials are not configured.
func NewGmail(ctx context.Context, cfg config.Config) (platform.GmailClient, error) {
	if !cfg.Gmail.Enabled() {
		return nil, nil
	}
	return platform.NewGmailClient(ctx, platform.GmailConfig{
		ClientID:     cfg.Gmail.ClientID,
		ClientSecret: cfg.Gmail.ClientSecret,
		RefreshToken: cfg.Gmail.RefreshToken,
		UserID:       cfg.Gmail.UserEmail,
		Query:        cfg.Gmail.Query,
		Timeout:      cfg.Facebook.HTTPTimeout,
	})
}

// NewGenerator prefers the n8n webhook and falls back to a direct LLM call.
// It returns nil when neither is configured, which keeps auto-reply off.
func NewGenerator(cfg config.Config) (reply.Generator, error) {
	if cfg.AutoReply.Enabled() {
		return reply.NewWebhookGenerator(reply.WebhookConfig{
			URL:      cfg.AutoReply.WebhookURL,
			Timeout:  cfg.AutoReply.WebhookTimeout,
			Fallback: cfg.AutoReply.FallbackReply,
		})
	}
	if cfg.OpenAI.Enabled() {
		client, err := llm.New(llm.Config{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.BaseURL,
			Model:   cfg.OpenAI.Model,
			// Same budget as the webhook: a reply that takes longer is not worth waiting for.
			Timeout: cfg.AutoReply.WebhookTimeout,
		})
		if err != nil {
			return nil, err
		}
		return reply.NewLLMGenerator(client, cfg.AutoReply.FallbackReply), nil
	}
	return nil, nil
}

// NewServices wires every inbox service for one process.
func NewServices(ctx context.Context, cfg config.Config, deps Deps) (*service.Services, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	registry, err := NewRegistry(cfg)
	if err != nil {
		return nil, err
	}
	gmail, err := NewGmail(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gmail: %w", err)
	}
	generator, err := NewGenerator(cfg)
	if err != nil {
		return nil, fmt.Errorf("reply generator: %w", err)
	}
	if generator == nil {
		log.WarnContext(ctx, "no reply generator configured, auto-reply will stay idle")
	}

	var (
		toggle  service.ToggleStore
		claimer service.ReplyClaimer
	)
	if deps.Redis != nil {
		toggle = service.NewRedisToggleStore(deps.Redis, cfg.AutoReply.EnabledDefault)
		claimer = service.NewRedisReplyClaimer(deps.Redis)
	} else {
		toggle = service.NewMemoryToggleStore(cfg.AutoReply.EnabledDefault)
		claimer = service.NewMemoryReplyClaimer()
	}

	return service.NewServices(service.ServicesParams{
		Stores:    NewStores(cfg, deps.DB),
		Registry:  registry,
		Gmail:     gmail,
		Generator: generator,
		Toggle:    toggle,
		Claimer:   claimer,
		Producer:  deps.Producer,
		Logger:    log,
	})
}

// ConnectRedis returns nil when no Redis URL is configured.
func ConnectRedis(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, errors.Join(fmt.Errorf("connecting to redis: %w", err), client.Close())
	}
	return client, nil
}

// ConnectDB returns nil when no DSN or a memory:// DSN is configured.
// Migrations run when enabled.
func ConnectDB(ctx context.Context, cfg db.Config) (*db.DB, error) {
	if store.IsMemoryDSN(cfg.DSN) {
		return nil, nil
	}
	database, err := db.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if cfg.AutoMigrate {
		if err := database.Migrate(ctx); err != nil {
			database.Close()
			return nil, fmt.Errorf("migrating database: %w", err)
		}
	}
	return database, nil
}
