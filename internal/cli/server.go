package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quiz-editor/internal/app"
	"quiz-editor/internal/auth"
	"quiz-editor/internal/config"
	"quiz-editor/internal/infra/memory"
	infraredis "quiz-editor/internal/infra/redis"
	"quiz-editor/internal/infra/remote"
	"quiz-editor/internal/metrics"
	transport "quiz-editor/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the editor gateway.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the editor gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Remote.BaseURL == "" {
		return fmt.Errorf("remote.baseURL not configured")
	}
	if cfg.Remote.Token != "" {
		if err := auth.RequireAdmin(cfg.Remote.Token); err != nil {
			return fmt.Errorf("remote token: %w", err)
		}
	}

	finalPort := firstNonEmpty(portFlag, cfg.Server.Port, "8080")

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 30*time.Second)

	client := remote.NewClient(cfg.Remote.BaseURL, cfg.Remote.Token, config.TTLDuration(cfg.Remote.Timeout, 10*time.Second))
	var store app.QuizStore
	if redisClient != nil {
		store = infraredis.NewCatalogCache(redisClient, client, catalogTTL)
	} else {
		store = memory.NewCatalogCache(client, catalogTTL)
	}

	m := metrics.New()
	ids := app.NewAllocator()
	factory := func(string) *app.Editor {
		return app.NewEditor(store, ids, m)
	}

	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = infraredis.NewSessionStore(redisClient, redisTTL, factory)
	} else {
		sessions = memory.NewSessionStore(factory, redisTTL)
	}
	wsHandler := transport.NewWSHandler(sessions, m)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}
	log.Printf("starting quiz editor on :%s (remote %s)", finalPort, cfg.Remote.BaseURL)
	reaper, _ := sessions.(app.SessionReaper)
	return serve(ctx, server, reaper, time.Minute)
}

// serve runs server until SIGINT/SIGTERM or ctx cancellation, then shuts it
// down. A non-nil reaper runs every interval until then.
func serve(ctx context.Context, server *http.Server, reaper app.SessionReaper, interval time.Duration) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	if reaper != nil {
		g.Go(func() error {
			reapSessions(ctx, reaper, interval)
			return nil
		})
	}
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen %s: %w", server.Addr, err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func reapSessions(ctx context.Context, reaper app.SessionReaper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := reaper.Reap(ctx); n > 0 {
				log.Printf("reaped %d detached sessions", n)
			}
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
