package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/asafee03-dev/partyroom/internal/config"
	"github.com/asafee03-dev/partyroom/internal/game/actor"
	"github.com/asafee03-dev/partyroom/internal/game/rules"
	"github.com/asafee03-dev/partyroom/internal/gateway"
	"github.com/asafee03-dev/partyroom/internal/logger"
	"github.com/asafee03-dev/partyroom/internal/server"
	"github.com/asafee03-dev/partyroom/internal/server/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("config load failed, using defaults: %v", err)
		cfg = config.Default()
	}

	if err := logger.Init(); err != nil {
		log.Printf("file logger unavailable: %v", err)
	}
	defer logger.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		log.Fatalf("redis unreachable at %s: %v", cfg.Redis.Addr, err)
	}

	store := storage.NewRedisStore(rdb)
	clock := actor.NewTurnClock()
	registry := actor.NewRegistry(store, clock, rules.Set(cfg.Turns), cfg.Lifecycle.IdleEvictionDuration())
	reaper := actor.NewReaper(store, registry,
		cfg.Lifecycle.GracePeriodDuration(),
		cfg.Lifecycle.MaxRoomAgeDuration(),
		cfg.Lifecycle.SweepIntervalDuration(),
	)
	gw := gateway.New(store, registry)
	srv := server.New(cfg, gw)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(ctx) })
	g.Go(func() error { return reaper.Run(ctx) })
	g.Go(func() error {
		registry.RunSweeper(ctx, cfg.Lifecycle.SweepIntervalDuration())
		return nil
	})

	log.Printf("party room server up on %s:%d", cfg.Server.Host, cfg.Server.Port)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("server exited: %v", err)
	}

	registry.Close()
	log.Println("shutdown complete")
}
