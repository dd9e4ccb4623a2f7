package registro

import (
	"time"

	"github.com/google/uuid"
)

// EstadoRegistro es el estado persistido en time_entries.status.
type EstadoRegistro string

const (
	EstadoBorrador EstadoRegistro = "draft"
	EstadoEnviado  EstadoRegistro = "submitted"
	EstadoAprobado EstadoRegistro = "approved"
)

// Valido indica si el valor pertenece al dominio del enum.
func (e EstadoRegistro) Valido() bool {
	switch e {
	case EstadoBorrador, EstadoEnviado, EstadoAprobado:
		return true
	}
	return false
}

// MaxHorasSemana es el tope orientativo de horas por semana. La
// validación es consultiva: se informa al llamador y nunca se bloquea
// la escritura.
const MaxHorasSemana = 40.0

// Registro representa una fila de time_entries. ProyectoID nil marca
// una actividad "Otros", descrita en OtraActividad.
type Registro struct {
	ID            uuid.UUID      `json:"id"`
	JPID          uuid.UUID      `json:"jp_id"`
	ProyectoID    *uuid.UUID     `json:"project_id"`
	SemanaInicio  time.Time      `json:"week_start"`
	Horas         float64        `json:"hours"`
	Comentarios   *string        `json:"comments"`
	OtraActividad *string        `json:"other_activity"`
	Estado        EstadoRegistro `json:"status"`
	CreadoEn      time.Time      `json:"created_at"`
	ActualizadoEn time.Time      `json:"updated_at"`
}

// ProyectoResumen es la proyección mínima del proyecto en los joins.
type ProyectoResumen struct {
	ID     uuid.UUID `json:"id"`
	Codigo string    `json:"code"`
	Nombre string    `json:"name"`
	Estado string    `json:"status"`
}

// RegistroConProyecto adjunta el proyecto al registro.
type RegistroConProyecto struct {
	Registro
	Proyecto *ProyectoResumen `json:"project,omitempty"`
}

// ResumenSemana es el agregado por semana calculado en cliente.
type ResumenSemana struct {
	SemanaInicio string                `json:"week_start"`
	TotalHoras   float64               `json:"total_hours"`
	Registros    []RegistroConProyecto `json:"entries"`
	Estado       EstadoRegistro        `json:"status"`
}

// ValidacionHoras informa el resultado del tope semanal.
type ValidacionHoras struct {
	Valida      bool    `json:"isValid"`
	TotalActual float64 `json:"currentTotal"`
	MaxHoras    float64 `json:"maxHours"`
}

// CrearRegistroInput reúne los campos de alta; el estado inicial
// siempre es borrador.
type CrearRegistroInput struct {
	JPID          uuid.UUID
	ProyectoID    *uuid.UUID
	SemanaInicio  time.Time
	Horas         float64
	Comentarios   *string
	OtraActividad *string
}

// ActualizarRegistroInput es un parche de campos opcionales.
// QuitarProyecto pone project_id a NULL y convierte el registro en
// una actividad "Otros"; tiene prioridad sobre ProyectoID.
type ActualizarRegistroInput struct {
	ProyectoID     *uuid.UUID
	QuitarProyecto bool
	SemanaInicio   *time.Time
	Horas          *float64
	Comentarios    *string
	OtraActividad  *string
	Estado         *EstadoRegistro
}
