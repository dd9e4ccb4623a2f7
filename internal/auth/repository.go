package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrCredencialNotFound indica que no existe credencial para ese correo.
	ErrCredencialNotFound = errors.New("credencial no encontrada")
)

const dbTimeout = 3 * time.Second

// Credencial modela la tabla credenciales. Sustituye al proveedor de
// identidad externo: el ID coincide con el del perfil. PasswordHash es
// NULL para cuentas que solo entran por enlace mágico.
type Credencial struct {
	ID           uuid.UUID
	Email        string
	PasswordHash *string
	CreadoEn     time.Time
}

// Repository encapsula consultas sobre credenciales.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetByEmail recupera una credencial por correo.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Credencial, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	normalized := strings.ToLower(strings.TrimSpace(email))
	row := r.db.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at
		FROM credenciales
		WHERE email = $1
	`, normalized)
	return scanCredencial(row)
}

// GetByID recupera una credencial por identificador.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Credencial, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at
		FROM credenciales
		WHERE id = $1
	`, id)
	return scanCredencial(row)
}

// UpdatePassword fija o reemplaza el hash de contraseña.
func (r *Repository) UpdatePassword(ctx context.Context, id uuid.UUID, hash string) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE credenciales SET password_hash = $2 WHERE id = $1
	`, id, hash)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCredencialNotFound
	}
	return nil
}

func scanCredencial(row pgx.Row) (*Credencial, error) {
	var c Credencial
	if err := row.Scan(&c.ID, &c.Email, &c.PasswordHash, &c.CreadoEn); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCredencialNotFound
		}
		return nil, err
	}
	return &c, nil
}
