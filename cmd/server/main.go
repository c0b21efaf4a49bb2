package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/omega-championship/overlays/internal/config"
	"github.com/omega-championship/overlays/internal/cookie"
	"github.com/omega-championship/overlays/internal/database"
	"github.com/omega-championship/overlays/internal/discord"
	"github.com/omega-championship/overlays/internal/fanout"
	"github.com/omega-championship/overlays/internal/gameapi"
	"github.com/omega-championship/overlays/internal/handler/health"
	"github.com/omega-championship/overlays/internal/migrations"
	"github.com/omega-championship/overlays/internal/server"
	"github.com/omega-championship/overlays/internal/startgg"
	"github.com/omega-championship/overlays/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)
	st := store.NewSQLiteStore(db)

	checks := map[string]health.Checker{"sqlite": database.Checker{DB: db}}
	g, gctx := errgroup.WithContext(ctx)

	// --- Fan-out ---
	hub := fanout.NewHub(cfg.FanoutCapacity)
	var publisher fanout.Publisher = hub
	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis, relaying overlay events")

		relay := fanout.NewRedisRelay(hub, rdb, logger)
		publisher = relay
		checks["redis"] = health.Optional(health.CheckFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
		g.Go(func() error { return relay.Run(gctx) })
	}

	// --- start.gg ---
	httpClient := &http.Client{Timeout: 15 * time.Second}
	sg := startgg.New(cfg.StartGG, httpClient)

	cookies, err := cookie.NewCodec(cfg.CookieKey, cfg.CookieSecure)
	if err != nil {
		return fmt.Errorf("creating cookie codec: %w", err)
	}

	// --- Discord ---
	if cfg.DiscordBotToken != "" {
		bot, err := newBot(cfg, httpClient, st, logger)
		if err != nil {
			return err
		}
		checks["discord"] = health.Optional(bot)
		g.Go(func() error {
			// The overlays keep running without the bot.
			if err := bot.Run(gctx); err != nil {
				logger.Error("discord bot stopped", "error", err)
			}
			return nil
		})
	}

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Store:     st,
		StartGG:   sg,
		Cookies:   cookies,
		Publisher: publisher,
		Events:    hub,
		KeepAlive: cfg.SSEKeepAlive,
		WSOrigins: cfg.WSOrigins,
	}, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, checks).Routes())
	})

	// --- Run ---
	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		// Closing the hub ends the SSE and websocket streams so Shutdown
		// does not wait on them.
		hub.Close()
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func newBot(cfg *config.Config, hc *http.Client, st *store.SQLiteStore, logger *slog.Logger) (*discord.Bot, error) {
	if cfg.OmegaStrikersIdentity == "" {
		return nil, errors.New("DISCORD_BOT_TOKEN is set but OMEGASTRIKERS_IDENTITY_FILE is not")
	}
	players, err := gameapi.NewFromFile(cfg.OmegaStrikersIdentity, cfg.OmegaStrikersAPIEndpoint, hc)
	if err != nil {
		return nil, fmt.Errorf("loading omega strikers identity: %w", err)
	}
	if exp, err := players.ExpiresAt(); err != nil {
		logger.Warn("omega strikers identity token unreadable", "error", err)
	} else if !exp.IsZero() {
		logger.Info("omega strikers identity loaded", "expires_at", exp)
	}

	bot, err := discord.NewBot(cfg.DiscordBotToken, discord.NewHandler(players, st, logger), logger)
	if err != nil {
		return nil, fmt.Errorf("creating discord bot: %w", err)
	}
	return bot, nil
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
