package proyecto

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jpeduti/gestiondehoras/internal/db"
	"github.com/jpeduti/gestiondehoras/internal/usuario"
)

var (
	// ErrNotFound indica proyecto inexistente.
	ErrNotFound = errors.New("proyecto no encontrado")
)

const dbTimeout = 3 * time.Second

// Repository encapsula consultas sobre projects y project_assignments.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const proyectoColumns = `
	pr.id, pr.code, pr.name, pr.description, pr.status,
	pr.start_date, pr.end_date, pr.created_by, pr.created_at, pr.updated_at`

// ListConAsignaciones devuelve todos los proyectos con su creador y las
// asignaciones vigentes. El original delegaba el join implícito al
// backend; aquí son un JOIN explícito y una segunda consulta en lote.
func (r *Repository) ListConAsignaciones(ctx context.Context) ([]ProyectoConAsignaciones, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s, c.id, c.full_name, c.email, c.employee_id
		FROM projects pr
		LEFT JOIN user_profiles c ON c.id = pr.created_by
		ORDER BY pr.created_at DESC
	`, proyectoColumns))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var proyectos []ProyectoConAsignaciones
	var ids []uuid.UUID
	for rows.Next() {
		p, err := scanProyectoConCreador(rows)
		if err != nil {
			return nil, err
		}
		proyectos = append(proyectos, *p)
		ids = append(ids, p.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	asignaciones, err := r.asignacionesActivas(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range proyectos {
		proyectos[i].Asignaciones = asignaciones[proyectos[i].ID]
		if proyectos[i].Asignaciones == nil {
			proyectos[i].Asignaciones = []Asignacion{}
		}
	}
	return proyectos, nil
}

// GetConAsignaciones recupera un proyecto con creador y asignaciones vigentes.
func (r *Repository) GetConAsignaciones(ctx context.Context, id uuid.UUID) (*ProyectoConAsignaciones, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, fmt.Sprintf(`
		SELECT %s, c.id, c.full_name, c.email, c.employee_id
		FROM projects pr
		LEFT JOIN user_profiles c ON c.id = pr.created_by
		WHERE pr.id = $1
	`, proyectoColumns), id)

	p, err := scanProyectoConCreador(row)
	if err != nil {
		return nil, err
	}

	asignaciones, err := r.asignacionesActivas(ctx, []uuid.UUID{p.ID})
	if err != nil {
		return nil, err
	}
	p.Asignaciones = asignaciones[p.ID]
	if p.Asignaciones == nil {
		p.Asignaciones = []Asignacion{}
	}
	return p, nil
}

func (r *Repository) asignacionesActivas(ctx context.Context, proyectoIDs []uuid.UUID) (map[uuid.UUID][]Asignacion, error) {
	result := make(map[uuid.UUID][]Asignacion)
	if len(proyectoIDs) == 0 {
		return result, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.project_id, a.jp_id, a.assigned_at, a.is_active,
		       u.id, u.full_name, u.email, u.employee_id, u.department
		FROM project_assignments a
		JOIN user_profiles u ON u.id = a.jp_id
		WHERE a.project_id = ANY($1) AND a.is_active
		ORDER BY a.assigned_at
	`, proyectoIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var a Asignacion
		var jp usuario.PerfilResumen
		if err := rows.Scan(&a.ID, &a.ProyectoID, &a.JPID, &a.AsignadoEn, &a.Activa,
			&jp.ID, &jp.NombreCompleto, &jp.Email, &jp.EmployeeID, &jp.Departamento); err != nil {
			return nil, err
		}
		a.JP = &jp
		result[a.ProyectoID] = append(result[a.ProyectoID], a)
	}
	return result, rows.Err()
}

// Crear inserta el proyecto y sus asignaciones iniciales en una
// transacción. El original encadenaba dos llamadas remotas y podía
// dejar el proyecto sin asignar; aquí es todo-o-nada.
func (r *Repository) Crear(ctx context.Context, input CrearProyectoInput) (*Proyecto, error) {
	id := uuid.New()
	var creado Proyecto
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		row := tx.QueryRow(ctx, `
			INSERT INTO projects (id, code, name, description, status, start_date, end_date, created_by)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id, code, name, description, status, start_date, end_date, created_by, created_at, updated_at
		`, id, strings.TrimSpace(input.Codigo), strings.TrimSpace(input.Nombre),
			input.Descripcion, input.Estado, input.FechaInicio, input.FechaFin, input.CreadoPor)
		if err := scanProyecto(row, &creado); err != nil {
			return err
		}
		return insertarAsignaciones(ctx, tx, id, input.JPsAsignar)
	})
	if err != nil {
		return nil, err
	}
	return &creado, nil
}

// Actualizar aplica el parche y, si se pide, reemplaza el conjunto de
// asignaciones dentro de la misma transacción.
func (r *Repository) Actualizar(ctx context.Context, id uuid.UUID, patch ActualizarProyectoInput) (*Proyecto, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Codigo != nil {
		add("code", strings.TrimSpace(*patch.Codigo))
	}
	if patch.Nombre != nil {
		add("name", strings.TrimSpace(*patch.Nombre))
	}
	if patch.Descripcion != nil {
		add("description", *patch.Descripcion)
	}
	if patch.Estado != nil {
		add("status", *patch.Estado)
	}
	if patch.FechaInicio != nil {
		add("start_date", *patch.FechaInicio)
	}
	if patch.FechaFin != nil {
		add("end_date", *patch.FechaFin)
	}

	var actualizado Proyecto
	err := db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		query := fmt.Sprintf(`
			UPDATE projects SET %s WHERE id = $1
			RETURNING id, code, name, description, status, start_date, end_date, created_by, created_at, updated_at
		`, strings.Join(sets, ", "))
		if err := scanProyecto(tx.QueryRow(ctx, query, args...), &actualizado); err != nil {
			return err
		}
		if patch.Reasignar {
			return reemplazarAsignaciones(ctx, tx, id, patch.JPsAsignar)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &actualizado, nil
}

// SoftDelete marca el proyecto como cancelado sin borrar la fila.
func (r *Repository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `
		UPDATE projects SET status = $2, updated_at = now() WHERE id = $1
	`, id, EstadoCancelado)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ActualizarAsignaciones reemplaza el conjunto vigente: desactiva todas
// las filas activas del proyecto e inserta filas nuevas, en una sola
// transacción. Tras confirmar, exactamente la lista nueva queda activa.
func (r *Repository) ActualizarAsignaciones(ctx context.Context, proyectoID uuid.UUID, jpIDs []uuid.UUID) error {
	return db.WithTx(ctx, r.db, func(ctx context.Context, tx pgx.Tx) error {
		return reemplazarAsignaciones(ctx, tx, proyectoID, jpIDs)
	})
}

func reemplazarAsignaciones(ctx context.Context, tx pgx.Tx, proyectoID uuid.UUID, jpIDs []uuid.UUID) error {
	if _, err := tx.Exec(ctx, `
		UPDATE project_assignments SET is_active = false
		WHERE project_id = $1 AND is_active
	`, proyectoID); err != nil {
		return err
	}
	return insertarAsignaciones(ctx, tx, proyectoID, jpIDs)
}

func insertarAsignaciones(ctx context.Context, tx pgx.Tx, proyectoID uuid.UUID, jpIDs []uuid.UUID) error {
	for _, jpID := range jpIDs {
		if _, err := tx.Exec(ctx, `
			INSERT INTO project_assignments (id, project_id, jp_id, is_active)
			VALUES ($1, $2, $3, true)
		`, uuid.New(), proyectoID, jpID); err != nil {
			return err
		}
	}
	return nil
}

// ListJPsDisponibles devuelve los usuarios activos con rol jp.
func (r *Repository) ListJPsDisponibles(ctx context.Context) ([]usuario.PerfilResumen, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, `
		SELECT u.id, u.full_name, u.email, u.employee_id, u.department
		FROM user_profiles u
		JOIN roles r ON r.id = u.role_id
		WHERE r.name = 'jp' AND u.user_state = $1
		ORDER BY u.full_name
	`, usuario.EstadoActivo)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jps []usuario.PerfilResumen
	for rows.Next() {
		var jp usuario.PerfilResumen
		if err := rows.Scan(&jp.ID, &jp.NombreCompleto, &jp.Email, &jp.EmployeeID, &jp.Departamento); err != nil {
			return nil, err
		}
		jps = append(jps, jp)
	}
	return jps, rows.Err()
}

// ListByJP devuelve los proyectos activos o pausados asignados a un JP.
func (r *Repository) ListByJP(ctx context.Context, jpID uuid.UUID) ([]Proyecto, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT DISTINCT %s
		FROM projects pr
		JOIN project_assignments a ON a.project_id = pr.id
		WHERE a.jp_id = $1 AND a.is_active AND pr.status = ANY($2)
		ORDER BY pr.created_at DESC
	`, proyectoColumns), jpID, []string{string(EstadoActivo), string(EstadoPausado)})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var proyectos []Proyecto
	for rows.Next() {
		var p Proyecto
		if err := scanProyecto(rows, &p); err != nil {
			return nil, err
		}
		proyectos = append(proyectos, p)
	}
	return proyectos, rows.Err()
}

// CodigoExiste verifica unicidad del código, excluyendo opcionalmente
// un proyecto (validación al editar: el propio código no colisiona).
func (r *Repository) CodigoExiste(ctx context.Context, codigo string, excluirID *uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `SELECT EXISTS (SELECT 1 FROM projects WHERE code = $1`
	args := []any{strings.TrimSpace(codigo)}
	if excluirID != nil {
		query += ` AND id <> $2`
		args = append(args, *excluirID)
	}
	query += `)`

	var existe bool
	if err := r.db.QueryRow(ctx, query, args...).Scan(&existe); err != nil {
		return false, err
	}
	return existe, nil
}

func scanProyecto(row pgx.Row, p *Proyecto) error {
	err := row.Scan(&p.ID, &p.Codigo, &p.Nombre, &p.Descripcion, &p.Estado,
		&p.FechaInicio, &p.FechaFin, &p.CreadoPor, &p.CreadoEn, &p.ActualizadoEn)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func scanProyectoConCreador(row pgx.Row) (*ProyectoConAsignaciones, error) {
	var (
		p         ProyectoConAsignaciones
		creadorID *uuid.UUID
		nombre    *string
		email     *string
		empleado  *string
	)
	err := row.Scan(&p.ID, &p.Codigo, &p.Nombre, &p.Descripcion, &p.Estado,
		&p.FechaInicio, &p.FechaFin, &p.CreadoPor, &p.CreadoEn, &p.ActualizadoEn,
		&creadorID, &nombre, &email, &empleado)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if creadorID != nil {
		p.Creador = &usuario.PerfilResumen{
			ID:             *creadorID,
			NombreCompleto: derefString(nombre),
			Email:          derefString(email),
			EmployeeID:     empleado,
		}
	}
	return &p, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
