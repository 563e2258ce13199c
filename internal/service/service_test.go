package service

import (
	"context"
	"time"

	"comercio/backend/internal/cache"
	"comercio/backend/internal/domain"
	"comercio/backend/internal/store/memory"
	"comercio/backend/internal/suggest"
)

func newTestService() *Service {
	repo := memory.NewSeeded()
	suggester := suggest.NewEngine(cache.NoopSuggestionCache{}, 5*time.Second)
	return New(repo, suggester, "main-co")
}

func adminCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "admin",
		Role:     "admin",
	})
}

func clerkCtx() context.Context {
	return WithActor(context.Background(), domain.Actor{
		Username: "clerk",
		Role:     "clerk",
	})
}
