package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"quiz-proctor/internal/app"
	"quiz-proctor/internal/config"
	"quiz-proctor/internal/infra/api"
	"quiz-proctor/internal/infra/memory"
	pgjournal "quiz-proctor/internal/infra/postgres"
	redisstore "quiz-proctor/internal/infra/redis"
	"quiz-proctor/internal/infra/sqlite"
	"quiz-proctor/internal/infra/telegram"
	transport "quiz-proctor/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the proctor server",
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
	if cfg.API.BaseURL == "" {
		return fmt.Errorf("api base_url not configured")
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

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

	client := api.NewClient(cfg.API.BaseURL, config.TTLDuration(cfg.API.Timeout, 10*time.Second))

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 30*time.Minute)
	var questions app.QuestionSource
	if redisClient != nil {
		questions = redisstore.NewQuestionCache(redisClient, client, quizTTL)
	} else {
		questions = memory.NewQuestionCache(client, quizTTL)
	}

	var store app.SessionRepository
	if redisClient != nil {
		store = redisstore.NewSessionStore(redisClient, redisTTL)
	} else {
		store = memory.NewSessionStore()
	}

	journal, closeJournal, err := buildJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeJournal()

	service := app.NewProctorService(client, questions, client, client, journal, store, app.Settings{
		MaxLeaveAttempts: cfg.Proctor.MaxLeaveAttempts,
		TickInterval:     config.TTLDuration(cfg.Proctor.TickInterval, time.Second),
		DedupWindow:      config.TTLDuration(cfg.Proctor.DedupWindow, 0),
		NotifyTimeout:    config.TTLDuration(cfg.Proctor.NotifyTimeout, 10*time.Second),
	})

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      transport.NewRouter(service, cfg.CORS.Origins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz proctor on :%s (api %s)", finalPort, cfg.API.BaseURL)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	service.Shutdown()
	return err
}

// buildJournal picks the journal backend and tees in the Telegram admin
// alert when a bot token is configured.
func buildJournal(ctx context.Context, cfg config.Config) (app.EventJournal, func(), error) {
	var (
		journal app.EventJournal
		closeFn = func() {}
	)

	switch cfg.Journal.Driver {
	case "", "memory":
		journal = memory.NewJournal()
	case "sqlite":
		j, err := sqlite.Open(ctx, cfg.SQLite.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite journal: %w", err)
		}
		journal = j
		closeFn = func() { _ = j.Close() }
	case "postgres":
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, nil, err
		}
		journal = pgjournal.NewJournal(pool)
		closeFn = pool.Close
	default:
		return nil, nil, fmt.Errorf("unsupported journal driver: %s", cfg.Journal.Driver)
	}

	if cfg.Telegram.Token != "" && cfg.Telegram.AdminChatID != 0 {
		alerter, err := telegram.NewAlerter(cfg.Telegram.Token, cfg.Telegram.AdminChatID, cfg.Telegram.APIURL)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		journal = app.TeeJournal(journal, alerter)
	}
	return journal, closeFn, nil
}
