package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/snapfeed/backend/internal/config"
	"github.com/snapfeed/backend/internal/db"
	"github.com/snapfeed/backend/internal/gateway"
	"github.com/snapfeed/backend/internal/handlers"
	"github.com/snapfeed/backend/internal/middleware"
	"github.com/snapfeed/backend/internal/posts"
	"github.com/snapfeed/backend/internal/stories"
	"github.com/snapfeed/backend/internal/storage"
	"github.com/snapfeed/backend/internal/users"
)

// buildDependencies wires the gateway adapters and domain services behind
// the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, error) {
	documents := gateway.NewPostgresDocumentStore(pool, logger)
	accounts := gateway.NewPostgresAccountStore(pool)
	listener := gateway.NewPostgresListener(pool, logger)

	files, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, err
	}
	avatars := storage.NewAvatarService(cfg.AvatarBaseURL)

	userSvc := users.NewCachingService(
		users.NewService(accounts, documents, files, avatars, cfg.Collections),
		30*time.Second,
	)

	return handlers.Dependencies{
		Users:       userSvc,
		Posts:       posts.NewService(documents, files, cfg.Collections),
		Stories:     stories.NewService(documents, files, listener, cfg.Collections),
		AuthLimiter: middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute),
		DB:          pool,
	}, nil
}

func newDocumentStore(pool db.Pool, logger *slog.Logger) gateway.DocumentStore {
	return gateway.NewPostgresDocumentStore(pool, logger)
}
