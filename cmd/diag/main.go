package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jpeduti/gestiondehoras/internal/db"
	"github.com/jpeduti/gestiondehoras/internal/rol"
	"github.com/jpeduti/gestiondehoras/internal/seed"
	"github.com/jpeduti/gestiondehoras/internal/usuario"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	_ = godotenv.Load()

	ctx := context.Background()

	dsn := strings.TrimSpace(os.Getenv("DB_DSN"))
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	}
	if dsn == "" {
		log.Fatal().Msg("defina DB_DSN o DATABASE_URL")
	}

	pool, err := db.NewPool(ctx, dsn)
	if err != nil {
		log.Fatal().Err(err).Msg("no se pudo conectar a la base")
	}
	defer pool.Close()

	diag := seed.NewDiagnostico(pool)

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "resumen":
		if !diag.Resumen(ctx) {
			os.Exit(1)
		}
	case "seed":
		if err := runSeed(ctx, pool, args); err != nil {
			log.Fatal().Err(err).Msg("fallo al sembrar datos")
		}
	case "limpiar-datos":
		if !diag.LimpiarDatos(ctx) {
			os.Exit(1)
		}
	case "limpiar-perfiles":
		if err := runLimpiarPerfiles(ctx, diag, args); err != nil {
			log.Fatal().Err(err).Msg("fallo al limpiar perfiles")
		}
	default:
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "diag CLI")
	fmt.Fprintln(os.Stderr, "uso:")
	fmt.Fprintln(os.Stderr, "  diag resumen")
	fmt.Fprintln(os.Stderr, "  diag seed --email admin@ejemplo.com [--id <uuid>]")
	fmt.Fprintln(os.Stderr, "  diag limpiar-datos")
	fmt.Fprintln(os.Stderr, "  diag limpiar-perfiles --conservar <uuid>")
}

func runSeed(ctx context.Context, pool *pgxpool.Pool, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	email := fs.String("email", "", "correo del perfil inicial")
	idStr := fs.String("id", "", "uuid del perfil inicial (opcional)")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*email) == "" {
		return fmt.Errorf("--email es obligatorio")
	}

	id := uuid.New()
	if *idStr != "" {
		parsed, err := uuid.Parse(*idStr)
		if err != nil {
			return fmt.Errorf("--id inválido: %w", err)
		}
		id = parsed
	}

	seeder := seed.NewSeeder(rol.NewRepository(pool), usuario.NewRepository(pool))
	seeder.CrearRoles(ctx)
	if seeder.CrearPerfilInicial(ctx, id, *email) {
		log.Info().Str("email", *email).Msg("perfil inicial creado")
	} else {
		log.Info().Msg("perfil inicial omitido")
	}
	return nil
}

func runLimpiarPerfiles(ctx context.Context, diag *seed.Diagnostico, args []string) error {
	fs := flag.NewFlagSet("limpiar-perfiles", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	conservarStr := fs.String("conservar", "", "uuid del perfil a conservar")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*conservarStr) == "" {
		return fmt.Errorf("--conservar es obligatorio")
	}

	conservar, err := uuid.Parse(*conservarStr)
	if err != nil {
		return fmt.Errorf("--conservar inválido: %w", err)
	}

	if !diag.LimpiarPerfiles(ctx, conservar) {
		return fmt.Errorf("limpieza incompleta")
	}
	return nil
}
