package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"vendor-bridge/config"
	"vendor-bridge/domain"
	"vendor-bridge/erp"
	"vendor-bridge/events"
	"vendor-bridge/identity"
	"vendor-bridge/storage"
	"vendor-bridge/worker"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("vendor worker starting")

	cfg, err := config.Load[config.Worker]()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	fallback, err := identity.ParseFallbackPolicy(cfg.CredentialFallback)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := storage.New(cfg.StorageConnectionString, storage.Options{
		CommandQueue:    cfg.CommandQueue,
		PoisonQueue:     cfg.PoisonQueue,
		MappingTable:    cfg.MappingTable,
		CredentialTable: cfg.CredentialTable,
	})
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	rc := redis.NewClient(config.RedisOptions(cfg.RedisConnectionString))
	publisher := events.NewPublisher(rc, cfg.StatusStream, cfg.StatusStreamMaxLen)
	outcomes := worker.NewRedisOutcomeCache(rc, cfg.OutcomeTTL)

	selector := identity.NewSelector(store, cfg.SystemCredentialUser, cfg.SystemCredentialSecret)
	bridge := erp.NewHTTPBridge(cfg.ERPEndpoint, nil)
	mappings := domain.NewMappingService(store, func() int64 { return time.Now().UnixNano() })

	orch := worker.New(store, selector, bridge, mappings, outcomes, publisher, worker.Config{
		MaxDeliveryAttempts: cfg.MaxDeliveryAttempts,
		LockTimeout:         cfg.LockTimeout,
		LockRenewInterval:   cfg.LockRenewInterval,
		CallTimeout:         cfg.CallTimeout,
		RetryBaseDelay:      cfg.RetryBaseDelay,
		RetryMaxDelay:       cfg.RetryMaxDelay,
		Fallback:            fallback,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	orch.Run(ctx)
	log.Info("vendor worker stopped")
}
