package seed

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Diagnostico agrupa inspecciones y limpiezas manuales de desarrollo.
// Los errores se registran y se devuelve un booleano, igual que en el
// resto de utilidades de consola.
type Diagnostico struct {
	db *pgxpool.Pool
}

func NewDiagnostico(db *pgxpool.Pool) *Diagnostico {
	return &Diagnostico{db: db}
}

// Resumen imprime el recuento de filas por tabla.
func (d *Diagnostico) Resumen(ctx context.Context) bool {
	tablas := []string{"roles", "user_profiles", "projects", "project_assignments", "time_entries"}
	ok := true
	for _, tabla := range tablas {
		var count int
		if err := d.db.QueryRow(ctx, "SELECT count(*) FROM "+tabla).Scan(&count); err != nil {
			log.Error().Err(err).Str("tabla", tabla).Msg("diagnóstico: consulta falló")
			ok = false
			continue
		}
		log.Info().Str("tabla", tabla).Int("filas", count).Msg("diagnóstico")
	}
	return ok
}

// LimpiarDatos borra asignaciones, registros de horas y proyectos.
// Solo para reiniciar entornos de desarrollo.
func (d *Diagnostico) LimpiarDatos(ctx context.Context) bool {
	ordenes := []string{
		"DELETE FROM project_assignments",
		"DELETE FROM time_entries",
		"DELETE FROM projects",
	}
	for _, orden := range ordenes {
		if _, err := d.db.Exec(ctx, orden); err != nil {
			log.Error().Err(err).Str("orden", orden).Msg("diagnóstico: limpieza falló")
			return false
		}
	}
	log.Info().Msg("diagnóstico: datos de proyectos y horas eliminados")
	return true
}

// LimpiarPerfiles elimina todos los perfiles salvo el indicado,
// normalmente el de la identidad autenticada.
func (d *Diagnostico) LimpiarPerfiles(ctx context.Context, conservar uuid.UUID) bool {
	if _, err := d.db.Exec(ctx, "DELETE FROM credenciales WHERE id <> $1", conservar); err != nil {
		log.Error().Err(err).Msg("diagnóstico: limpieza de credenciales falló")
		return false
	}
	if _, err := d.db.Exec(ctx, "DELETE FROM user_profiles WHERE id <> $1", conservar); err != nil {
		log.Error().Err(err).Msg("diagnóstico: limpieza de perfiles falló")
		return false
	}
	log.Info().Str("conservado", conservar.String()).Msg("diagnóstico: perfiles eliminados")
	return true
}
