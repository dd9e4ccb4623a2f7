package registro

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound indica registro inexistente.
	ErrNotFound = errors.New("registro no encontrado")
)

const dbTimeout = 3 * time.Second

// Repository encapsula consultas sobre time_entries.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

const registroColumns = `
	t.id, t.jp_id, t.project_id, t.week_start, t.hours, t.comments,
	t.other_activity, t.status, t.created_at, t.updated_at`

const registroJoin = `
	FROM time_entries t
	LEFT JOIN projects p ON p.id = t.project_id`

// ListSemana devuelve los registros de un JP para una semana, con los
// campos mínimos del proyecto.
func (r *Repository) ListSemana(ctx context.Context, jpID uuid.UUID, semanaInicio time.Time) ([]RegistroConProyecto, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s, p.id, p.code, p.name, p.status
		%s
		WHERE t.jp_id = $1 AND t.week_start = $2
		ORDER BY t.created_at
	`, registroColumns, registroJoin), jpID, semanaInicio)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectConProyecto(rows)
}

// ListRecientes devuelve registros ordenados por semana descendente.
// Se sobrelee a propósito: el agrupado por semana se hace en cliente y
// el límite de semanas se aplica después.
func (r *Repository) ListRecientes(ctx context.Context, jpID uuid.UUID, limit int) ([]RegistroConProyecto, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, fmt.Sprintf(`
		SELECT %s, p.id, p.code, p.name, p.status
		%s
		WHERE t.jp_id = $1
		ORDER BY t.week_start DESC, t.created_at
		LIMIT $2
	`, registroColumns, registroJoin), jpID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectConProyecto(rows)
}

// Crear inserta un registro en estado borrador.
func (r *Repository) Crear(ctx context.Context, input CrearRegistroInput) (*Registro, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx, `
		INSERT INTO time_entries (id, jp_id, project_id, week_start, hours, comments, other_activity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, jp_id, project_id, week_start, hours, comments, other_activity, status, created_at, updated_at
	`, uuid.New(), input.JPID, input.ProyectoID, input.SemanaInicio,
		input.Horas, input.Comentarios, input.OtraActividad, EstadoBorrador)

	var reg Registro
	if err := scanRegistro(row, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Actualizar aplica un parche de campos y refresca updated_at.
func (r *Repository) Actualizar(ctx context.Context, id uuid.UUID, patch ActualizarRegistroInput) (*Registro, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	sets := []string{"updated_at = now()"}
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	switch {
	case patch.QuitarProyecto:
		sets = append(sets, "project_id = NULL")
	case patch.ProyectoID != nil:
		add("project_id", *patch.ProyectoID)
	}
	if patch.SemanaInicio != nil {
		add("week_start", *patch.SemanaInicio)
	}
	if patch.Horas != nil {
		add("hours", *patch.Horas)
	}
	if patch.Comentarios != nil {
		add("comments", *patch.Comentarios)
	}
	if patch.OtraActividad != nil {
		add("other_activity", *patch.OtraActividad)
	}
	if patch.Estado != nil {
		add("status", *patch.Estado)
	}

	query := fmt.Sprintf(`
		UPDATE time_entries SET %s WHERE id = $1
		RETURNING id, jp_id, project_id, week_start, hours, comments, other_activity, status, created_at, updated_at
	`, strings.Join(sets, ", "))

	var reg Registro
	if err := scanRegistro(r.db.QueryRow(ctx, query, args...), &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

// Eliminar borra el registro de forma definitiva.
func (r *Repository) Eliminar(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tag, err := r.db.Exec(ctx, `DELETE FROM time_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SubmitSemana pasa a enviado todos los registros de un JP y semana.
func (r *Repository) SubmitSemana(ctx context.Context, jpID uuid.UUID, semanaInicio time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		UPDATE time_entries
		SET status = $3, updated_at = now()
		WHERE jp_id = $1 AND week_start = $2
	`, jpID, semanaInicio, EstadoEnviado)
	return err
}

// HorasSemana suma las horas de un JP y semana, excluyendo
// opcionalmente un registro (validación al editar).
func (r *Repository) HorasSemana(ctx context.Context, jpID uuid.UUID, semanaInicio time.Time, excluirID *uuid.UUID) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	query := `SELECT COALESCE(SUM(hours), 0) FROM time_entries WHERE jp_id = $1 AND week_start = $2`
	args := []any{jpID, semanaInicio}
	if excluirID != nil {
		query += ` AND id <> $3`
		args = append(args, *excluirID)
	}

	var total float64
	if err := r.db.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func collectConProyecto(rows pgx.Rows) ([]RegistroConProyecto, error) {
	var registros []RegistroConProyecto
	for rows.Next() {
		var (
			rc      RegistroConProyecto
			pID     *uuid.UUID
			pCodigo *string
			pNombre *string
			pEstado *string
		)
		if err := rows.Scan(&rc.ID, &rc.JPID, &rc.ProyectoID, &rc.SemanaInicio, &rc.Horas,
			&rc.Comentarios, &rc.OtraActividad, &rc.Estado, &rc.CreadoEn, &rc.ActualizadoEn,
			&pID, &pCodigo, &pNombre, &pEstado); err != nil {
			return nil, err
		}
		if pID != nil {
			rc.Proyecto = &ProyectoResumen{ID: *pID, Codigo: *pCodigo, Nombre: *pNombre, Estado: *pEstado}
		}
		registros = append(registros, rc)
	}
	return registros, rows.Err()
}

func scanRegistro(row pgx.Row, reg *Registro) error {
	err := row.Scan(&reg.ID, &reg.JPID, &reg.ProyectoID, &reg.SemanaInicio, &reg.Horas,
		&reg.Comentarios, &reg.OtraActividad, &reg.Estado, &reg.CreadoEn, &reg.ActualizadoEn)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
