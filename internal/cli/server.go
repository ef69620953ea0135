package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trivia-room-service/internal/app"
	"trivia-room-service/internal/auth"
	"trivia-room-service/internal/config"
	"trivia-room-service/internal/infra/memory"
	infrapg "trivia-room-service/internal/infra/postgres"
	infraredis "trivia-room-service/internal/infra/redis"
	"trivia-room-service/internal/question"
	transport "trivia-room-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
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
		defer redisClient.Close()
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	finishedTTL := config.TTLDuration(cfg.Game.FinishedTTL, time.Hour)
	var store app.RoomStore
	switch {
	case pool != nil:
		store = infrapg.NewRoomStore(pool)
	case redisClient != nil:
		store = infraredis.NewRoomStore(redisClient, finishedTTL)
	default:
		store = memory.NewRoomStore()
	}

	questionTTL := config.TTLDuration(cfg.Game.QuestionTTL, time.Hour)
	var cache question.Cache
	if redisClient != nil {
		cache = infraredis.NewQuestionCache(redisClient, questionTTL)
	} else {
		cache = memory.NewQuestionCache(questionTTL)
	}

	var generator question.Generator
	if cfg.Generator.BaseURL != "" {
		generator = question.NewHTTPGenerator(question.GeneratorConfig{
			BaseURL: cfg.Generator.BaseURL,
			APIKey:  cfg.Generator.APIKey,
			Model:   cfg.Generator.Model,
			Timeout: config.TTLDuration(cfg.Generator.Timeout, 10*time.Second),
		})
	} else {
		log.Printf("no generator configured, serving canned questions")
		generator = question.NewStaticGenerator(sampleOutputs()...)
	}

	pipelineOpts := []question.Option{question.WithAttempts(cfg.Generator.Attempts)}
	if h := cfg.Game.Heuristics; h.DuplicateOverlap > 0 || h.EasyMaxComplexity > 0 || h.HardMinComplexity > 0 {
		heuristics := question.DefaultHeuristics()
		if h.DuplicateOverlap > 0 {
			heuristics.DuplicateOverlap = h.DuplicateOverlap
		}
		if h.EasyMaxComplexity > 0 {
			heuristics.EasyMaxComplexity = h.EasyMaxComplexity
		}
		if h.HardMinComplexity > 0 {
			heuristics.HardMinComplexity = h.HardMinComplexity
		}
		pipelineOpts = append(pipelineOpts, question.WithHeuristics(heuristics))
	}
	if c := cfg.Game.Composition; c.Easy+c.Medium+c.Hard > 0 {
		pipelineOpts = append(pipelineOpts, question.WithComposition(question.Composition{
			Easy:   c.Easy,
			Medium: c.Medium,
			Hard:   c.Hard,
		}))
	}
	pipeline := question.NewPipeline(generator, cache, pipelineOpts...)

	var verifier auth.Verifier
	if cfg.Auth.VerifyURL != "" {
		verifier = auth.NewHTTPVerifier(cfg.Auth.VerifyURL, config.TTLDuration(cfg.Auth.Timeout, 5*time.Second))
	} else {
		tokens := make(map[string]auth.Identity, len(cfg.Auth.Tokens))
		for token, id := range cfg.Auth.Tokens {
			tokens[token] = auth.Identity{UserID: id.UserID, DisplayName: id.DisplayName}
		}
		verifier = auth.NewStaticVerifier(tokens)
	}

	service := app.NewRoomService(store, pipeline)
	service.SetQuestionCap(cfg.Game.QuestionCap)

	hub := transport.NewHub()
	wsHandler := transport.NewWSHandler(service, verifier, hub)
	roomHandler := transport.NewRoomHandler(service, verifier)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	roomHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting trivia room service on :%s", finalPort)
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

// sampleOutputs feeds the static generator in dev mode; each entry mimics
// the loosely-formatted JSON a real model returns.
func sampleOutputs() []string {
	return []string{
		"Here you go:\n```json\n{\"question\": \"The Great Barrier Reef stretches along the coast of Queensland and is the largest structure on Earth built by living organisms, visible even from orbit. Off the coast of which country does this enormous coral system lie?\", \"options\": [\"Australia\", \"Indonesia\", \"Philippines\", \"Mexico\"], \"answer\": \"Australia\"}\n```",
		"{\"question\": \"Painted in the early sixteenth century and now displayed behind protective glass in the Louvre in Paris, this portrait of a Florentine merchant's wife is often called the most famous painting in the world. Who created it?\", \"options\": [\"Leonardo da Vinci\", \"Michelangelo\", \"Raphael\", \"Titian\"], \"answer\": \"Leonardo da Vinci\"}",
		"{\"question\": \"Water covers roughly seventy percent of our planet's surface, yet one ocean alone holds about half of all that water and reaches the deepest known point, the Challenger Deep. Which ocean is it, precisely speaking?\", \"options\": [\"Pacific\", \"Atlantic\", \"Indian\", \"Arctic\"], \"answer\": \"Pacific\"}",
	}
}
