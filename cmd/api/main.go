package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jpeduti/gestiondehoras/internal/auth"
	"github.com/jpeduti/gestiondehoras/internal/config"
	"github.com/jpeduti/gestiondehoras/internal/db"
	internalhttp "github.com/jpeduti/gestiondehoras/internal/http"
	"github.com/jpeduti/gestiondehoras/internal/mailer"
	"github.com/jpeduti/gestiondehoras/internal/rol"
	"github.com/jpeduti/gestiondehoras/internal/seed"
	"github.com/jpeduti/gestiondehoras/internal/sesion"
	"github.com/jpeduti/gestiondehoras/internal/usuario"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("api terminada con error")
	}
}

func run() error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx := context.Background()

	pool, err := db.NewPool(ctx, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("db: %w", err)
	}
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis parse: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	rolesRepo := rol.NewRepository(pool)
	perfilesRepo := usuario.NewRepository(pool)
	credsRepo := auth.NewRepository(pool)

	if cfg.SeedOnStart {
		seeder := seed.NewSeeder(rolesRepo, perfilesRepo)
		seeder.CrearRoles(ctx)
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAccessTTL)
	sesiones := sesion.NewService(credsRepo, perfilesRepo, redisClient, jwtManager, cfg.JWTRefreshTTL)

	if err := sesiones.Suscribir(ctx, func(evento string, carga sesion.EventoSesion) {
		log.Info().Str("event", evento).Str("email", carga.Email).Msg("cambio de sesión")
	}); err != nil {
		log.Warn().Err(err).Msg("no se pudo suscribir a eventos de sesión")
	}

	correo := mailer.New(cfg.SMTP)

	handler := internalhttp.NewRouter(cfg, pool, redisClient, sesiones, correo)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("API escuchando en :%d", cfg.Port)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("cerrando...")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
