package proyecto

import (
	"time"

	"github.com/google/uuid"

	"github.com/jpeduti/gestiondehoras/internal/usuario"
)

// EstadoProyecto es el estado persistido en projects.status.
type EstadoProyecto string

const (
	EstadoActivo     EstadoProyecto = "active"
	EstadoPausado    EstadoProyecto = "paused"
	EstadoCompletado EstadoProyecto = "completed"
	EstadoCancelado  EstadoProyecto = "cancelled"
)

// Valido indica si el valor pertenece al dominio.
func (e EstadoProyecto) Valido() bool {
	switch e {
	case EstadoActivo, EstadoPausado, EstadoCompletado, EstadoCancelado:
		return true
	}
	return false
}

// Proyecto representa una fila de projects.
type Proyecto struct {
	ID            uuid.UUID      `json:"id"`
	Codigo        string         `json:"code"`
	Nombre        string         `json:"name"`
	Descripcion   *string        `json:"description"`
	Estado        EstadoProyecto `json:"status"`
	FechaInicio   *time.Time     `json:"start_date"`
	FechaFin      *time.Time     `json:"end_date"`
	CreadoPor     *uuid.UUID     `json:"created_by"`
	CreadoEn      time.Time      `json:"created_at"`
	ActualizadoEn time.Time      `json:"updated_at"`
}

// Asignacion vincula proyecto y JP. Historial append-only: reasignar
// desactiva las filas vigentes e inserta filas nuevas, nunca se
// modifica una asignación en el sitio.
type Asignacion struct {
	ID         uuid.UUID              `json:"id"`
	ProyectoID uuid.UUID              `json:"project_id"`
	JPID       uuid.UUID              `json:"jp_id"`
	AsignadoEn time.Time              `json:"assigned_at"`
	Activa     bool                   `json:"is_active"`
	JP         *usuario.PerfilResumen `json:"jp_profile,omitempty"`
}

// ProyectoConAsignaciones agrega creador y asignaciones vigentes.
type ProyectoConAsignaciones struct {
	Proyecto
	Creador      *usuario.PerfilResumen `json:"created_by_profile,omitempty"`
	Asignaciones []Asignacion           `json:"assignments"`
}

// CrearProyectoInput reúne los campos para crear un proyecto.
type CrearProyectoInput struct {
	Codigo      string
	Nombre      string
	Descripcion *string
	Estado      EstadoProyecto
	FechaInicio *time.Time
	FechaFin    *time.Time
	CreadoPor   *uuid.UUID
	JPsAsignar  []uuid.UUID
}

// ActualizarProyectoInput es un parche de campos opcionales.
// JPsAsignar nil deja las asignaciones como están; una lista (incluso
// vacía) las reemplaza por completo.
type ActualizarProyectoInput struct {
	Codigo      *string
	Nombre      *string
	Descripcion *string
	Estado      *EstadoProyecto
	FechaInicio *time.Time
	FechaFin    *time.Time
	JPsAsignar  []uuid.UUID
	Reasignar   bool
}
