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
	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/bottles-tavern/docs"
	"github.com/tbourn/bottles-tavern/internal/auth"
	"github.com/tbourn/bottles-tavern/internal/config"
	httpapi "github.com/tbourn/bottles-tavern/internal/http"
	"github.com/tbourn/bottles-tavern/internal/jobs"
	"github.com/tbourn/bottles-tavern/internal/observability"
	"github.com/tbourn/bottles-tavern/internal/repo"
	"github.com/tbourn/bottles-tavern/internal/sysutil"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := *cfg
			c.Port = sysutil.FirstNonEmpty(port, c.Port)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, c)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := repo.Close(db); err != nil {
			log.Warn().Err(err).Msg("close database")
		}
	}()
	if err := repo.AutoMigrate(db); err != nil {
		return err
	}

	challenges, closeStore, err := challengeStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	docs.SwaggerInfo.Version = version
	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, cfg, httpapi.AuthBackends{Challenges: challenges})

	sched := jobs.NewScheduler(db)
	if err := sched.SchedulePurge(cfg.PurgeSchedule); err != nil {
		return err
	}
	sched.Start()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sched.Stop(sctx)
	}()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("tavern listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

// challengeStore picks Redis when REDIS_ADDR is set, otherwise an in-process
// LRU. The returned func releases the backend.
func challengeStore(ctx context.Context, cfg config.Config) (auth.ChallengeStore, func(), error) {
	if cfg.Redis.Addr == "" {
		return auth.NewMemoryChallengeStore(cfg.Auth.ChallengeCapacity, cfg.Auth.ChallengeTTL), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("login challenges stored in redis")
	return auth.NewRedisChallengeStore(client, cfg.Auth.ChallengeTTL), func() { _ = client.Close() }, nil
}
