package rol

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indica rol inexistente.
	ErrNotFound = errors.New("rol no encontrado")
)

const dbTimeout = 3 * time.Second

// Rol agrupa permisos bajo un nombre único (admin, jp, director).
type Rol struct {
	ID          uuid.UUID       `json:"id"`
	Nombre      string          `json:"name"`
	Descripcion *string         `json:"description"`
	Permisos    map[string]bool `json:"permissions,omitempty"`
	CreadoEn    time.Time       `json:"created_at"`
}

// Repository encapsula consultas sobre la tabla roles.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// List devuelve todos los roles ordenados por nombre.
func (r *Repository) List(ctx context.Context) ([]Rol, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT id, name, description, permissions, created_at
		FROM roles
		ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var roles []Rol
	for rows.Next() {
		rl, err := scanRol(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, *rl)
	}
	return roles, rows.Err()
}

// GetByID recupera un rol por identificador.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Rol, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT id, name, description, permissions, created_at
		FROM roles
		WHERE id = $1
	`, id)
	return scanRol(row)
}

// GetByNombre recupera un rol por nombre único.
func (r *Repository) GetByNombre(ctx context.Context, nombre string) (*Rol, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT id, name, description, permissions, created_at
		FROM roles
		WHERE name = $1
	`, nombre)
	return scanRol(row)
}

// Upsert inserta o actualiza un rol usando el nombre como clave.
func (r *Repository) Upsert(ctx context.Context, nombre, descripcion string, permisos map[string]bool) (*Rol, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		INSERT INTO roles (id, name, description, permissions)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (name) DO UPDATE
		SET description = EXCLUDED.description,
		    permissions = EXCLUDED.permissions
		RETURNING id, name, description, permissions, created_at
	`, uuid.New(), nombre, descripcion, permisos)
	return scanRol(row)
}

func scanRol(row pgx.Row) (*Rol, error) {
	var rl Rol
	if err := row.Scan(&rl.ID, &rl.Nombre, &rl.Descripcion, &rl.Permisos, &rl.CreadoEn); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rl, nil
}
