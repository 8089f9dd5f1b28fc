package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/MicahParks/keyfunc"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"vendor-bridge/api"
	"vendor-bridge/config"
	"vendor-bridge/events"
	"vendor-bridge/notify"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load[config.Notify]()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

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

	rc := redis.NewClient(config.RedisOptions(cfg.RedisConnectionString))
	consumer := events.NewConsumer(rc, cfg.StatusStream, cfg.ConsumerGroup, cfg.ConsumerName, cfg.ClaimMinIdle)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := consumer.EnsureGroup(ctx); err != nil {
		log.Fatalf("consumer group: %v", err)
	}

	hub := notify.NewHub()
	notifier := notify.NewNotifier(hub)
	go consumer.Run(ctx, notifier.Handle)

	e := echo.New()
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))
	notify.Register(e, hub, auth)

	e.Logger.Fatal(e.Start(":" + cfg.Port))
}
