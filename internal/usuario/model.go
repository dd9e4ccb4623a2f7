package usuario

import (
	"time"

	"github.com/google/uuid"

	"github.com/jpeduti/gestiondehoras/internal/rol"
)

// Perfil representa una fila de user_profiles. El ID coincide con la
// credencial de autenticación salvo en perfiles invitados aún pendientes.
type Perfil struct {
	ID             uuid.UUID     `json:"id"`
	EmployeeID     *string       `json:"employee_id"`
	NombreCompleto string        `json:"full_name"`
	Email          string        `json:"email"`
	RolID          uuid.UUID     `json:"role_id"`
	Departamento   *string       `json:"department"`
	Activo         bool          `json:"is_active"`
	Estado         EstadoUsuario `json:"user_state"`
	CreadoEn       time.Time     `json:"created_at"`
	ActualizadoEn  *time.Time    `json:"updated_at"`
	Rol            *rol.Rol      `json:"role,omitempty"`
}

// PerfilResumen es la proyección mínima usada en joins de proyectos.
type PerfilResumen struct {
	ID             uuid.UUID `json:"id"`
	NombreCompleto string    `json:"full_name"`
	Email          string    `json:"email"`
	EmployeeID     *string   `json:"employee_id"`
	Departamento   *string   `json:"department,omitempty"`
}

// CrearPerfilInput reúne los campos para insertar un perfil.
type CrearPerfilInput struct {
	ID             uuid.UUID
	Email          string
	NombreCompleto string
	RolID          uuid.UUID
	Departamento   *string
	EmployeeID     *string
}

// ActualizarPerfilInput es un parche de campos opcionales.
type ActualizarPerfilInput struct {
	NombreCompleto *string
	Email          *string
	RolID          *uuid.UUID
	Departamento   *string
	EmployeeID     *string
}

// EstadisticasEstado cuenta perfiles por estado.
type EstadisticasEstado struct {
	Activos    int `json:"active"`
	Bloqueados int `json:"blocked"`
	Eliminados int `json:"deleted"`
	Pendientes int `json:"pending"`
	Total      int `json:"total"`
}
