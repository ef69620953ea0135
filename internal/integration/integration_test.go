package integration

import (
	"context"
	"database/sql"
	"errors"
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

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/domain"
	infrapg "trivia-room-service/internal/infra/postgres"
	pgmigrations "trivia-room-service/internal/infra/postgres/migrations"
	infraredis "trivia-room-service/internal/infra/redis"
	"trivia-room-service/internal/question"
)

const integrationPrompt = "The Great Barrier Reef stretches along the coast of Queensland and is the largest structure on Earth built by living organisms, visible even from orbit. Off the coast of which country does this enormous coral system lie?"

func TestFullGameEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	applyMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	store := infrapg.NewRoomStore(pool)
	cache := infraredis.NewQuestionCache(redisClient, 5*time.Minute)
	generator := question.NewStaticGenerator(
		`{"question": "`+integrationPrompt+`", "options": ["Australia", "Indonesia", "Philippines", "Mexico"], "answer": "Australia"}`,
	)
	pipeline := question.NewPipeline(generator, cache)

	service := app.NewRoomService(store, pipeline)
	service.SetQuestionCap(1)

	alice := domain.Player{ID: "u1", Name: "Alice"}
	bob := domain.Player{ID: "u2", Name: "Bob"}

	created, err := service.CreateRoom(ctx, alice, "geography")
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	code := created.Room.Code

	if _, err := service.Join(ctx, code, bob); err != nil {
		t.Fatalf("join: %v", err)
	}
	if _, err := service.Start(ctx, code, "u2"); !errors.Is(err, domain.ErrNotCreator) {
		t.Fatalf("expected ErrNotCreator, got %v", err)
	}
	started, err := service.Start(ctx, code, "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.Projection.Status != domain.StatusInProgress || started.Projection.Question == nil {
		t.Fatalf("unexpected projection after start: %+v", started.Projection)
	}

	res, err := service.SubmitAnswer(ctx, code, "u1", " australia ")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if res.Room.Status != domain.StatusFinished {
		t.Fatalf("single-question game must finish, got %s", res.Room.Status)
	}
	if res.Room.ScoreFor("u1") != 10 {
		t.Fatalf("expected +10 for the correct answer, got %d", res.Room.ScoreFor("u1"))
	}

	// The accepted question must be cached for the slot.
	if _, ok, err := cache.Get(ctx, "geography", res.Room.DifficultyOrder[0], 0); err != nil || !ok {
		t.Fatalf("expected cached slot question, ok=%v err=%v", ok, err)
	}

	// Both players leave; the room row must disappear.
	if _, err := service.Leave(ctx, code, "u2"); err != nil {
		t.Fatalf("leave bob: %v", err)
	}
	if _, err := service.Leave(ctx, code, "u1"); err != nil {
		t.Fatalf("leave alice: %v", err)
	}
	if _, _, err := store.Get(ctx, code); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Fatalf("expected room deleted, got %v", err)
	}
}

func applyMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
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
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "trivia", "POSTGRES_PASSWORD": "triviapass", "POSTGRES_DB": "triviadb"},
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
	dsn := fmt.Sprintf("postgres://trivia:triviapass@%s:%s/triviadb?sslmode=disable", host, port.Port())
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
