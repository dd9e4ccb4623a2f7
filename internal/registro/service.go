package registro

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jpeduti/gestiondehoras/internal/proyecto"
)

var (
	// ErrHorasInvalidas indica una cantidad de horas no positiva.
	ErrHorasInvalidas = errors.New("las horas deben ser mayores que cero")
	// ErrActividadSinDetalle indica registro "Otros" sin descripción.
	ErrActividadSinDetalle = errors.New("actividad sin proyecto requiere other_activity")
)

// RegistroRepository abstrae el acceso a time_entries.
type RegistroRepository interface {
	ListSemana(ctx context.Context, jpID uuid.UUID, semanaInicio time.Time) ([]RegistroConProyecto, error)
	ListRecientes(ctx context.Context, jpID uuid.UUID, limit int) ([]RegistroConProyecto, error)
	Crear(ctx context.Context, input CrearRegistroInput) (*Registro, error)
	Actualizar(ctx context.Context, id uuid.UUID, patch ActualizarRegistroInput) (*Registro, error)
	Eliminar(ctx context.Context, id uuid.UUID) error
	SubmitSemana(ctx context.Context, jpID uuid.UUID, semanaInicio time.Time) error
	HorasSemana(ctx context.Context, jpID uuid.UUID, semanaInicio time.Time, excluirID *uuid.UUID) (float64, error)
}

// ProyectosAsignadosRepository expone los proyectos cargables de un JP.
type ProyectosAsignadosRepository interface {
	ListByJP(ctx context.Context, jpID uuid.UUID) ([]proyecto.Proyecto, error)
}

// Service concentra las reglas del registro de horas.
type Service struct {
	repo      RegistroRepository
	proyectos ProyectosAsignadosRepository
}

// NewService crea el servicio de registro de horas.
func NewService(repo RegistroRepository, proyectos ProyectosAsignadosRepository) *Service {
	return &Service{repo: repo, proyectos: proyectos}
}

// RegistrosDeSemana devuelve los registros de un JP para una semana.
func (s *Service) RegistrosDeSemana(ctx context.Context, jpID uuid.UUID, semanaInicio time.Time) ([]RegistroConProyecto, error) {
	return s.repo.ListSemana(ctx, jpID, semanaInicio)
}

// ResumenSemanas agrupa los registros recientes de un JP por semana.
// Se sobreleen registros (limit*10) porque el corte es por semanas, no
// por filas. El estado agregado es el menos avanzado de la semana:
// cualquier borrador deja la semana en borrador, luego enviado, y solo
// una semana con todo aprobado figura como aprobada.
func (s *Service) ResumenSemanas(ctx context.Context, jpID uuid.UUID, limit int) ([]ResumenSemana, error) {
	if limit <= 0 {
		limit = 10
	}

	registros, err := s.repo.ListRecientes(ctx, jpID, limit*10)
	if err != nil {
		return nil, err
	}

	return AgruparPorSemana(registros, limit), nil
}

// AgruparPorSemana materializa los agregados en el orden de llegada.
func AgruparPorSemana(registros []RegistroConProyecto, limit int) []ResumenSemana {
	index := make(map[string]int)
	resumenes := make([]ResumenSemana, 0, limit)

	for _, reg := range registros {
		clave := ClaveSemana(reg.SemanaInicio)
		i, ok := index[clave]
		if !ok {
			if len(resumenes) >= limit {
				continue
			}
			index[clave] = len(resumenes)
			i = len(resumenes)
			resumenes = append(resumenes, ResumenSemana{SemanaInicio: clave})
		}
		resumenes[i].TotalHoras += reg.Horas
		resumenes[i].Registros = append(resumenes[i].Registros, reg)
	}

	for i := range resumenes {
		resumenes[i].Estado = estadoAgregado(resumenes[i].Registros)
	}
	return resumenes
}

// estadoAgregado aplica la precedencia borrador < enviado < aprobado.
func estadoAgregado(registros []RegistroConProyecto) EstadoRegistro {
	estado := EstadoAprobado
	for _, reg := range registros {
		switch reg.Estado {
		case EstadoBorrador:
			return EstadoBorrador
		case EstadoEnviado:
			estado = EstadoEnviado
		}
	}
	if len(registros) == 0 {
		return EstadoBorrador
	}
	return estado
}

// Crear inserta un registro nuevo, siempre en borrador. La semana se
// normaliza al lunes correspondiente.
func (s *Service) Crear(ctx context.Context, input CrearRegistroInput) (*Registro, error) {
	if input.Horas <= 0 {
		return nil, ErrHorasInvalidas
	}
	if input.ProyectoID == nil && (input.OtraActividad == nil || *input.OtraActividad == "") {
		return nil, ErrActividadSinDetalle
	}
	input.SemanaInicio = InicioDeSemana(input.SemanaInicio)
	return s.repo.Crear(ctx, input)
}

// Actualizar aplica un parche sobre el registro.
func (s *Service) Actualizar(ctx context.Context, id uuid.UUID, patch ActualizarRegistroInput) (*Registro, error) {
	if patch.Horas != nil && *patch.Horas <= 0 {
		return nil, ErrHorasInvalidas
	}
	if patch.SemanaInicio != nil {
		normalizada := InicioDeSemana(*patch.SemanaInicio)
		patch.SemanaInicio = &normalizada
	}
	return s.repo.Actualizar(ctx, id, patch)
}

// Eliminar borra el registro.
func (s *Service) Eliminar(ctx context.Context, id uuid.UUID) error {
	return s.repo.Eliminar(ctx, id)
}

// EnviarSemana pasa a enviado toda la semana de un JP.
func (s *Service) EnviarSemana(ctx context.Context, jpID uuid.UUID, semanaInicio time.Time) error {
	return s.repo.SubmitSemana(ctx, jpID, InicioDeSemana(semanaInicio))
}

// ProyectosAsignados devuelve los proyectos cargables del JP.
func (s *Service) ProyectosAsignados(ctx context.Context, jpID uuid.UUID) ([]proyecto.Proyecto, error) {
	return s.proyectos.ListByJP(ctx, jpID)
}

// ValidarHorasSemana comprueba el tope semanal de 40 horas. Es una
// validación consultiva: devuelve el total vigente y si queda dentro
// del tope, pero nunca bloquea la escritura.
func (s *Service) ValidarHorasSemana(ctx context.Context, jpID uuid.UUID, semanaInicio time.Time, excluirID *uuid.UUID) (*ValidacionHoras, error) {
	total, err := s.repo.HorasSemana(ctx, jpID, InicioDeSemana(semanaInicio), excluirID)
	if err != nil {
		return nil, err
	}
	return &ValidacionHoras{
		Valida:      total <= MaxHorasSemana,
		TotalActual: total,
		MaxHoras:    MaxHorasSemana,
	}, nil
}
