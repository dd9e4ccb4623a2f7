package registro

import (
	"fmt"
	"time"
)

var mesesCortos = [...]string{
	"ene", "feb", "mar", "abr", "may", "jun",
	"jul", "ago", "sep", "oct", "nov", "dic",
}

// InicioDeSemana devuelve el lunes de la semana de la fecha dada,
// truncado a medianoche. El domingo retrocede seis días.
func InicioDeSemana(fecha time.Time) time.Time {
	dia := int(fecha.Weekday())
	diff := dia - 1
	if dia == 0 {
		diff = 6
	}
	lunes := fecha.AddDate(0, 0, -diff)
	return time.Date(lunes.Year(), lunes.Month(), lunes.Day(), 0, 0, 0, 0, fecha.Location())
}

// ClaveSemana produce la clave YYYY-MM-DD usada para agrupar por semana.
func ClaveSemana(fecha time.Time) string {
	return fecha.Format("2006-01-02")
}

// FormatearRangoSemana devuelve el rango lunes-domingo en formato corto
// en español, p. ej. "2 ene - 8 ene".
func FormatearRangoSemana(semanaInicio time.Time) string {
	fin := semanaInicio.AddDate(0, 0, 6)
	return fmt.Sprintf("%d %s - %d %s",
		semanaInicio.Day(), mesesCortos[semanaInicio.Month()-1],
		fin.Day(), mesesCortos[fin.Month()-1])
}
