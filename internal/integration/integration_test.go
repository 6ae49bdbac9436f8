package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"question-engine/internal/domain"
	"question-engine/internal/engine"
	pgloader "question-engine/internal/infra/postgres"
	pgmigrations "question-engine/internal/infra/postgres/migrations"
	infraredis "question-engine/internal/infra/redis"
)

func TestActivityPassEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	seedActivity(t, ctx, pgURL, sampleActivity())

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := pgloader.NewActivityLoader(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	activities := infraredis.NewActivityRepository(redisClient, loader, 5*time.Minute)
	engines := infraredis.NewEngineStore(redisClient, 5*time.Minute)
	templates := infraredis.NewTemplateCache(redisClient, 5*time.Minute)

	service := engine.NewService(activities, engines, func(_, userID string) engine.Submitter {
		return pgloader.NewRecorder(pool, userID)
	}, templates)

	eng, err := service.Attach(ctx, "act-1", "u1")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	// Question 1: single choice.
	view, ok := eng.View()
	if !ok || view.Variant != domain.SingleChoice {
		t.Fatalf("expected single choice first, got %+v", view)
	}
	eng.Select(1)
	if err := eng.RequestSubmit(ctx, engine.TriggerUser); err != nil {
		t.Fatalf("submit 1: %v", err)
	}

	// Question 2: drain the ordering pool, then submit.
	view, _ = eng.View()
	if view.Variant != domain.Ordering {
		t.Fatalf("expected ordering second, got %+v", view)
	}
	for {
		view, _ = eng.View()
		if len(view.Pool) == 0 {
			break
		}
		eng.PlaceOrder(0, len(view.Sequence))
	}
	if err := eng.RequestSubmit(ctx, engine.TriggerUser); err != nil {
		t.Fatalf("submit 2: %v", err)
	}

	if !eng.Finished() {
		t.Fatalf("expected activity finished after the last answer")
	}
	tally, err := eng.Finish(ctx)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if tally.Submitted != 2 || tally.Total != 2 {
		t.Fatalf("expected full tally, got %+v", tally)
	}

	var rows int
	if err := pool.QueryRow(ctx,
		`SELECT count(*) FROM submissions WHERE activity_id=$1 AND user_id=$2`,
		"act-1", "u1").Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 2 {
		t.Fatalf("expected 2 submission rows, got %d", rows)
	}

	var lastQuestion bool
	if err := pool.QueryRow(ctx,
		`SELECT last_question FROM submissions WHERE activity_id=$1 AND user_id=$2 AND question_number=2`,
		"act-1", "u1").Scan(&lastQuestion); err != nil {
		t.Fatalf("read last_question: %v", err)
	}
	if !lastQuestion {
		t.Fatalf("final submission row must carry last_question")
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "qe", "POSTGRES_PASSWORD": "qepass", "POSTGRES_DB": "qedb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://qe:qepass@%s:%s/qedb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedActivity(t *testing.T, ctx context.Context, dsn string, activity domain.Activity) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(activity)
	if err != nil {
		t.Fatalf("marshal activity: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO question_sets (id, data) VALUES (? , ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, activity.ID, string(data)); err != nil {
		t.Fatalf("insert activity: %v", err)
	}
}

func sampleActivity() domain.Activity {
	return domain.Activity{
		ID: "act-1",
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
				Body:    "Order ascending",
				Options: []domain.Option{
					{ID: 1, Text: "one"},
					{ID: 2, Text: "two"},
					{ID: 3, Text: "three"},
				},
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
