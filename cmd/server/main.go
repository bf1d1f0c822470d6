package main // Entry point of the simulator HTTP service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/seat-booking-simulator/internal/config"
	"github.com/iliyamo/seat-booking-simulator/internal/database"
	"github.com/iliyamo/seat-booking-simulator/internal/handler"
	"github.com/iliyamo/seat-booking-simulator/internal/logging"
	"github.com/iliyamo/seat-booking-simulator/internal/middleware"
	"github.com/iliyamo/seat-booking-simulator/internal/queue"
	"github.com/iliyamo/seat-booking-simulator/internal/repository"
	"github.com/iliyamo/seat-booking-simulator/internal/router"
	"github.com/iliyamo/seat-booking-simulator/internal/service"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty, os.Stdout).With().Str("env", cfg.Env).Logger()

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

// backends holds everything that must be closed on shutdown.
type backends struct {
	rdb     *redis.Client
	db      *sql.DB
	pub     service.Publisher
	drainer *queue.Drainer
}

func (b *backends) close(log zerolog.Logger) {
	if b.pub != nil {
		if err := b.pub.Close(); err != nil {
			log.Warn().Err(err).Msg("close publisher")
		}
	}
	if b.drainer != nil {
		_ = b.drainer.Close()
	}
	if b.rdb != nil {
		_ = b.rdb.Close()
	}
	if b.db != nil {
		_ = b.db.Close()
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	simCfg, err := config.LoadSimulationConfig()
	if err != nil {
		return err
	}
	rlCfg := config.LoadRateLimitConfig()

	b := &backends{}
	defer b.close(log)

	if cfg.ResultStore == config.StoreRedis || cfg.Notifier == config.NotifierRedis || rlCfg.Enabled {
		b.rdb = config.NewRedisClient(config.LoadRedisConfig())
		if b.rdb == nil {
			log.Warn().Msg("redis unreachable; rate limiting disabled")
		}
	}

	store, err := openStore(cfg, b, log)
	if err != nil {
		return err
	}
	if b.pub, err = openPublisher(cfg, simCfg, b, log); err != nil {
		return err
	}

	svc := service.NewSimulationService(store, b.pub, simCfg, logging.Component(log, "simulation"))
	h := &handler.SimulationHandler{Runs: svc, Log: logging.Component(log, "http")}
	if b.drainer != nil {
		h.Messages = b.drainer
	}

	e := router.New(logging.Component(log, "http"))
	router.RegisterRoutes(e)
	var limiter echo.MiddlewareFunc
	if b.rdb != nil {
		limiter = middleware.NewRunLimiter(rlCfg, b.rdb, logging.Component(log, "ratelimit")).Middleware()
	}
	router.RegisterSimulations(e, h, limiter)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	addr := ":" + cfg.Port
	go func() {
		log.Info().
			Str("addr", addr).
			Str("notifier", cfg.Notifier).
			Str("store", cfg.ResultStore).
			Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		log.Info().Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("simulations did not finish in time")
	}
	return nil
}

func openStore(cfg config.Config, b *backends, log zerolog.Logger) (repository.RunStore, error) {
	switch cfg.ResultStore {
	case config.StoreRedis:
		if b.rdb == nil {
			return nil, errors.New("RESULT_STORE=redis but redis is unreachable")
		}
		return repository.NewRedisRunRepo(b.rdb, config.LoadRedisConfig().RunKeyPrefix, cfg.ResultTTL), nil
	case config.StoreMySQL:
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		b.db = db
		if err := database.EnsureSchema(context.Background(), db, repository.RunTableDDL); err != nil {
			return nil, err
		}
		log.Info().Str("host", cfg.DBHost).Str("db", cfg.DBName).Msg("run history in mysql")
		return repository.NewMySQLRunRepo(db), nil
	default:
		return repository.NewMemoryRunRepo(cfg.ResultTTL), nil
	}
}

func openPublisher(cfg config.Config, simCfg config.SimulationConfig, b *backends, log zerolog.Logger) (service.Publisher, error) {
	events := logging.Component(log, "events")
	switch cfg.Notifier {
	case config.NotifierRabbitMQ:
		amqpCfg := config.LoadAMQPConfig()
		pub, err := service.NewRabbitMQPublisher(amqpCfg, simCfg.PublishTimeout, events)
		if err != nil {
			return nil, err
		}
		b.drainer = queue.NewDrainer(amqpCfg.URL, events, amqpCfg.SeatUpdatesQueue, amqpCfg.APIStatusQueue)
		return pub, nil
	case config.NotifierRedis:
		if b.rdb == nil {
			return nil, errors.New("NOTIFIER=redis but redis is unreachable")
		}
		rc := config.LoadRedisConfig()
		return service.NewRedisStreamPublisher(b.rdb, rc.StreamPrefix, rc.StreamMaxLen), nil
	default:
		return service.NewLogPublisher(events), nil
	}
}
