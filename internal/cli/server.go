package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"question-engine/internal/config"
	"question-engine/internal/domain"
	"question-engine/internal/engine"
	"question-engine/internal/infra/memory"
	pgloader "question-engine/internal/infra/postgres"
	redisinfra "question-engine/internal/infra/redis"
	transport "question-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the question-engine server",
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

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
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
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.ActivityLoader = memory.NewStaticActivityLoader(sampleActivities(cfg))
	if pool != nil {
		loader = pgloader.NewActivityLoader(pool)
	}

	activityTTL := config.TTLDuration(cfg.Activity.TTL, 10*time.Minute)
	var activities engine.ActivityRepository
	if redisClient != nil {
		activities = redisinfra.NewActivityRepository(redisClient, loader, activityTTL)
	} else {
		activities = memory.NewActivityRepository(loader, activityTTL)
	}

	var engines engine.EngineStore
	if redisClient != nil {
		engines = redisinfra.NewEngineStore(redisClient, redisTTL)
	} else {
		engines = memory.NewEngineStore()
	}

	var templates engine.TemplateCache
	if redisClient != nil {
		templates = redisinfra.NewTemplateCache(redisClient, redisTTL)
	} else {
		templates = memory.NewTemplateCache()
	}

	newSubmitter := memorySubmitterFactory(cfg)
	if pool != nil {
		newSubmitter = func(_, userID string) engine.Submitter {
			return pgloader.NewRecorder(pool, userID)
		}
	}

	service := engine.NewService(activities, engines, newSubmitter, templates)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting question engine on :%s", finalPort)
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
	return server.Shutdown(shutdownCtx)
}

func memorySubmitterFactory(cfg config.Config) engine.SubmitterFactory {
	totals := make(map[string]int)
	for id, activity := range sampleActivities(cfg) {
		totals[id] = len(activity.Questions)
	}
	recorder := memory.NewRecorder(totals)
	return func(_, _ string) engine.Submitter { return recorder }
}

// sampleActivities provides a minimal demo question set; swap the loader with a
// Postgres-backed one in production.
func sampleActivities(cfg config.Config) map[string]domain.Activity {
	timer := domain.TimerConfig{
		PerQuestionSeconds: cfg.Activity.PerQuestionSeconds,
		TotalSeconds:       cfg.Activity.TotalSeconds,
	}
	if timer.PerQuestionSeconds > 0 {
		timer.TotalSeconds = 0
	}
	return map[string]domain.Activity{
		"demo-1": {
			ID:    "demo-1",
			Timer: timer,
			Questions: []domain.Question{
				{
					Number:  1,
					Variant: domain.SingleChoice,
					Body:    "What is 2 + 2?",
					Options: []domain.Option{
						{ID: 1, Text: "3"},
						{ID: 2, Text: "4"},
						{ID: 3, Text: "5"},
					},
				},
				{
					Number:  2,
					Variant: domain.Ordering,
					Body:    "Order the numbers ascending",
					Options: []domain.Option{
						{ID: 1, Text: "one"},
						{ID: 2, Text: "two"},
						{ID: 3, Text: "three"},
					},
				},
				{
					Number:  3,
					Variant: domain.TextInput,
					Body:    "Name the capital of France",
				},
			},
		},
	}
}
