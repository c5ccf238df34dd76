package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"tutor-points-service/internal/app"
	"tutor-points-service/internal/config"
	"tutor-points-service/internal/infra/memory"
	"tutor-points-service/internal/infra/postgres"
	infraredis "tutor-points-service/internal/infra/redis"
	"tutor-points-service/internal/logger"
)

// runtime holds the wired services and the connections to release on exit.
type runtime struct {
	cfg     config.Config
	log     *logger.Logger
	svc     *app.Services
	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

func economyFrom(cfg config.Config) app.Economy {
	econ := app.DefaultEconomy()
	if v := cfg.Economy.InitialGrant; v > 0 {
		econ.InitialGrant = v
	}
	if v := cfg.Economy.BookingCost; v > 0 {
		econ.BookingCost = v
	}
	if v := cfg.Economy.BookingThreshold; v > 0 {
		econ.BookingThreshold = v
	}
	if v := cfg.Economy.MeetingMinutes; v > 0 {
		econ.MeetingMinutes = v
	}
	return econ
}

// buildRuntime picks Postgres or the in-memory store, Redis or the in-process
// quiz cache, and starts the cross-instance relay when Redis is configured.
func buildRuntime(ctx context.Context, cfg config.Config, log *logger.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, log: log}

	var (
		store  app.Store
		loader app.QuizLoader
	)
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return nil, err
		}
		db := postgres.Open(cfg.Postgres.URL)
		rt.closers = append(rt.closers, func() { _ = db.Close() })
		store = postgres.NewStore(db)

		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("connect quiz loader pool: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		loader = postgres.NewQuizLoader(pool)
		log.Info("using postgres store")
	} else {
		mem := memory.NewStore()
		store = mem
		loader = app.NewStoreQuizLoader(mem)
		log.Warn("postgres not configured, using in-memory store")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, func() { _ = redisClient.Close() })
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	var quizzes app.QuizRepository
	if redisClient != nil {
		quizzes = infraredis.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizzes = memory.NewQuizRepository(loader, quizTTL)
	}

	hub := app.NewHub()
	rt.svc = app.New(app.Deps{
		Store:   store,
		Quizzes: quizzes,
		Log:     log,
		Hub:     hub,
		Economy: economyFrom(cfg),
	})

	if redisClient != nil {
		relay := infraredis.NewRelay(redisClient, hub, cfg.Redis.Channel, log)
		if err := relay.Start(ctx); err != nil {
			rt.Close()
			return nil, fmt.Errorf("start balance relay: %w", err)
		}
	}

	created, err := rt.svc.Achievements.EnsureCatalog(ctx)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("seed badge catalogue: %w", err)
	}
	if created > 0 {
		log.Info("badge catalogue seeded", "created", created)
	}
	return rt, nil
}
