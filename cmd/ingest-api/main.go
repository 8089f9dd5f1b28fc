package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"vendor-bridge/api"
	"vendor-bridge/config"
	"vendor-bridge/storage"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load[config.Ingest]()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	store, err := storage.New(cfg.StorageConnectionString, storage.Options{CommandQueue: cfg.CommandQueue})
	if err != nil {
		log.Fatalf("storage: %v", err)
	}

	rc := redis.NewClient(config.RedisOptions(cfg.RedisConnectionString))
	deduper := api.NewRedisDeduper(rc, cfg.DedupTTL)

	var auth *api.Auth
	if secret := os.Getenv("LOCAL_AUTH_SECRET"); secret != "" {
		auth = api.NewLocalAuth([]byte(secret))
	} else {
		jwtAudience := os.Getenv("AUTH_AUDIENCE")
		authDomain := os.Getenv("AUTH_DOMAIN")
		if jwtAudience == "" || authDomain == "" {
			log.Fatal("missing auth config")
		}
		jwksURL := fmt.Sprintf("https://%s/.well-known/jwks.json", authDomain)
		jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{})
		if err != nil {
			log.Fatalf("jwks: %v", err)
		}
		auth = api.NewAuth(jwks, jwtAudience, "https://"+authDomain+"/")
	}

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	e.Use(api.DecompressRequests())

	logger := log.New()
	gw := api.NewGateway(store, auth, deduper, logger, cfg.EnqueueRetries, cfg.EnqueueTimeout)
	gw.Register(e)

	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
