package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"comercio/backend/internal/cache"
	"comercio/backend/internal/config"
	"comercio/backend/internal/httpapi"
	"comercio/backend/internal/service"
	"comercio/backend/internal/store"
	"comercio/backend/internal/store/memory"
	pgstore "comercio/backend/internal/store/postgres"
	"comercio/backend/internal/suggest"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("postgres unavailable (%v) and DATABASE_URL is set; refusing to start with in-memory fallback", err)
		} else {
			repo = pg
			closers = append(closers, pg.Close)
			log.Println("repository: postgres")
		}
	} else {
		repo = memory.NewSeeded()
		log.Println("repository: in-memory")
	}

	cacheStore := cache.SuggestionCache(cache.NoopSuggestionCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisSuggestionCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			cacheStore = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	suggester := suggest.NewEngine(cacheStore, time.Duration(cfg.SuggestionTTLSeconds)*time.Second)
	svc := service.New(repo, suggester, cfg.CompanyID)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	scheduler := cron.New()
	if cfg.SweepCron != "" {
		_, err := scheduler.AddFunc(cfg.SweepCron, func() {
			sweepCtx, sweepCancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer sweepCancel()
			if _, err := svc.RunStockSweep(sweepCtx); err != nil {
				log.Printf("scheduled stock sweep failed: %v", err)
			}
		})
		if err != nil {
			log.Fatalf("invalid STOCK_SWEEP_CRON %q: %v", cfg.SweepCron, err)
		}
		scheduler.Start()
		log.Printf("stock sweep scheduled: %s", cfg.SweepCron)
	}

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("comercio backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
