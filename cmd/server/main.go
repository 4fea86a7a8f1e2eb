// Command server runs the service marketplace backend: the request lifecycle
// API, the chat registry, and the realtime websocket gateway, all over one
// SQLite database.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-servicehub-backend/internal/auth"
	"github.com/tbourn/go-servicehub-backend/internal/config"
	httpapi "github.com/tbourn/go-servicehub-backend/internal/http"
	"github.com/tbourn/go-servicehub-backend/internal/observability"
	"github.com/tbourn/go-servicehub-backend/internal/realtime"
	"github.com/tbourn/go-servicehub-backend/internal/repo"
	"github.com/tbourn/go-servicehub-backend/internal/services"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	setupLogging(cfg)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	if cfg.OTEL.Enabled {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			log.Fatal().Err(err).Msg("gorm tracing plugin")
		}
	}

	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	chats := services.NewChatService(db)
	chats.MaxContentRunes = cfg.MaxMessageRunes

	// The gateway needs a presence registry before the notifier can exist, and
	// the lifecycle service needs the notifier. Build in that order.
	gw := realtime.NewGateway(chats, verifier, nil)
	notifier := services.Notifier(nil)
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rn := realtime.NewRedisNotifier(rdb, gw.Presence())
		go func() {
			if err := rn.Listen(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("redis notify listener stopped")
			}
		}()
		notifier = rn
		gw.SetNotifier(rn)
		log.Info().Str("addr", cfg.Redis.Addr).Msg("realtime fan-out via redis")
	} else {
		notifier = gw.Notifier()
	}

	lifecycle := services.NewLifecycleService(db, chats, notifier)

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		Lifecycle: lifecycle,
		Chats:     chats,
		Gateway:   gw,
		Verifier:  verifier,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("version", version).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
}

// setupLogging configures the global zerolog logger from config.
func setupLogging(cfg config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
