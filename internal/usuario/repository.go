package usuario

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jpeduti/gestiondehoras/internal/db"
	"github.com/jpeduti/gestiondehoras/internal/rol"
)

var (
	// ErrNotFound indica perfil inexistente.
	ErrNotFound = errors.New("perfil no encontrado")
)

const dbTimeout = 3 * time.Second

// Repository encapsula consultas sobre user_profiles.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const perfilColumns = `
	p.id, p.employee_id, p.full_name, p.email, p.role_id, p.department,
	p.is_active, p.user_state, p.created_at, p.updated_at,
	r.id, r.name, r.description, r.permissions, r.created_at`

const perfilFrom = `
	FROM user_profiles p
	JOIN roles r ON r.id = p.role_id`

// ListActivos devuelve perfiles con estado ACTIVO ordenados por nombre.
func (r *Repository) ListActivos(ctx context.Context) ([]Perfil, error) {
	return r.list(ctx, "WHERE p.user_state = $1", EstadoActivo)
}

// ListTodos devuelve todos los perfiles sin filtrar por estado.
func (r *Repository) ListTodos(ctx context.Context) ([]Perfil, error) {
	return r.list(ctx, "")
}

// ListByEstado devuelve perfiles con un estado concreto.
func (r *Repository) ListByEstado(ctx context.Context, estado EstadoUsuario) ([]Perfil, error) {
	return r.list(ctx, "WHERE p.user_state = $1", estado)
}

// ListByRol devuelve perfiles activos de un rol.
func (r *Repository) ListByRol(ctx context.Context, rolID uuid.UUID) ([]Perfil, error) {
	return r.list(ctx, "WHERE p.role_id = $1 AND p.user_state = $2", rolID, EstadoActivo)
}

func (r *Repository) list(ctx context.Context, where string, args ...any) ([]Perfil, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := fmt.Sprintf("SELECT %s %s %s ORDER BY p.full_name", perfilColumns, perfilFrom, where)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var perfiles []Perfil
	for rows.Next() {
		p, err := scanPerfil(rows)
		if err != nil {
			return nil, err
		}
		perfiles = append(perfiles, *p)
	}
	return perfiles, rows.Err()
}

// GetByID recupera un perfil con su rol.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Perfil, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s %s WHERE p.id = $1", perfilColumns, perfilFrom), id)
	return scanPerfil(row)
}

// GetByEmail recupera un perfil por correo.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*Perfil, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	normalized := strings.ToLower(strings.TrimSpace(email))
	row := r.db.QueryRow(ctx,
		fmt.Sprintf("SELECT %s %s WHERE p.email = $1", perfilColumns, perfilFrom), normalized)
	return scanPerfil(row)
}

// GetEstado devuelve solo el estado de un perfil.
func (r *Repository) GetEstado(ctx context.Context, id uuid.UUID) (EstadoUsuario, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	var estado EstadoUsuario
	err := r.db.QueryRow(ctx,
		`SELECT user_state FROM user_profiles WHERE id = $1`, id).Scan(&estado)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return estado, nil
}

// Create inserta un perfil con estado inicial.
func (r *Repository) Create(ctx context.Context, input CrearPerfilInput, estado EstadoUsuario) (*Perfil, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	id, err := r.insertPerfil(ctx, r.db, input, estado)
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// CrearConCredencial inserta credencial y perfil en una sola transacción.
// La versión original creaba la identidad y el perfil en dos llamadas
// remotas sin compensación; aquí son todo-o-nada.
func (r *Repository) CrearConCredencial(ctx context.Context, input CrearPerfilInput, passwordHash string) (*Perfil, error) {
	if input.ID == uuid.Nil {
		input.ID = uuid.New()
	}
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO credenciales (id, email, password_hash)
			VALUES ($1, $2, $3)
		`, input.ID, strings.ToLower(strings.TrimSpace(input.Email)), passwordHash); err != nil {
			return err
		}
		_, err := r.insertPerfil(ctx, tx, input, EstadoActivo)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, input.ID)
}

// ActivarInvitado vincula una credencial al perfil pendiente con ese correo
// y lo pasa a ACTIVO. Falla con ErrNotFound si no hay invitación pendiente.
func (r *Repository) ActivarInvitado(ctx context.Context, email string) (*Perfil, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))

	var perfilID uuid.UUID
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			SELECT id FROM user_profiles
			WHERE email = $1 AND user_state = $2
		`, normalized, EstadoPendiente).Scan(&perfilID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		if _, err := tx.Exec(ctx, `
			INSERT INTO credenciales (id, email, password_hash)
			VALUES ($1, $2, NULL)
			ON CONFLICT (id) DO NOTHING
		`, perfilID, normalized); err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE user_profiles
			SET user_state = $2, is_active = true, updated_at = now()
			WHERE id = $1
		`, perfilID, EstadoActivo)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, perfilID)
}

func (r *Repository) insertPerfil(ctx context.Context, q querier, input CrearPerfilInput, estado EstadoUsuario) (uuid.UUID, error) {
	id := input.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	_, err := q.Exec(ctx, `
		INSERT INTO user_profiles (id, employee_id, full_name, email, role_id, department, is_active, user_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, input.EmployeeID, strings.TrimSpace(input.NombreCompleto),
		strings.ToLower(strings.TrimSpace(input.Email)), input.RolID,
		input.Departamento, estado.EsActivo(), estado)
	return id, err
}

// Update aplica un parche de campos y refresca updated_at.
func (r *Repository) Update(ctx context.Context, id uuid.UUID, patch ActualizarPerfilInput) (*Perfil, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	sets := []string{"updated_at = now()"}
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.NombreCompleto != nil {
		add("full_name", strings.TrimSpace(*patch.NombreCompleto))
	}
	if patch.Email != nil {
		add("email", strings.ToLower(strings.TrimSpace(*patch.Email)))
	}
	if patch.RolID != nil {
		add("role_id", *patch.RolID)
	}
	if patch.Departamento != nil {
		add("department", *patch.Departamento)
	}
	if patch.EmployeeID != nil {
		add("employee_id", *patch.EmployeeID)
	}

	query := fmt.Sprintf("UPDATE user_profiles SET %s WHERE id = $1", strings.Join(sets, ", "))
	tag, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// CambiarEstado fija user_state y mantiene el espejo is_active.
// Es idempotente: repetir la misma transición no es un error.
func (r *Repository) CambiarEstado(ctx context.Context, id uuid.UUID, estado EstadoUsuario) (*Perfil, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE user_profiles
		SET user_state = $2, is_active = $3, updated_at = now()
		WHERE id = $1
	`, id, estado, estado.EsActivo())
	if err != nil {
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return r.GetByID(ctx, id)
}

// EstadoStats cuenta perfiles por estado en una sola pasada.
func (r *Repository) EstadoStats(ctx context.Context) (*EstadisticasEstado, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT user_state, count(*)
		FROM user_profiles
		GROUP BY user_state
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats EstadisticasEstado
	for rows.Next() {
		var estado EstadoUsuario
		var count int
		if err := rows.Scan(&estado, &count); err != nil {
			return nil, err
		}
		switch estado {
		case EstadoActivo:
			stats.Activos = count
		case EstadoBloqueado:
			stats.Bloqueados = count
		case EstadoEliminado:
			stats.Eliminados = count
		case EstadoPendiente:
			stats.Pendientes = count
		}
		stats.Total += count
	}
	return &stats, rows.Err()
}

// querier cubre lo común entre el pool y una transacción abierta.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func scanPerfil(row pgx.Row) (*Perfil, error) {
	var (
		p  Perfil
		rl rol.Rol
	)
	if err := row.Scan(
		&p.ID, &p.EmployeeID, &p.NombreCompleto, &p.Email, &p.RolID, &p.Departamento,
		&p.Activo, &p.Estado, &p.CreadoEn, &p.ActualizadoEn,
		&rl.ID, &rl.Nombre, &rl.Descripcion, &rl.Permisos, &rl.CreadoEn,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	p.Rol = &rl
	return &p, nil
}
