package usuario

// EstadoUsuario es el estado numérico persistido en user_state.
// Sustituye al booleano heredado is_active, que se mantiene como
// espejo durante la migración.
type EstadoUsuario int

const (
	EstadoBloqueado EstadoUsuario = 0
	EstadoActivo    EstadoUsuario = 1
	EstadoEliminado EstadoUsuario = 2
	EstadoPendiente EstadoUsuario = 3
)

var etiquetasEstado = map[EstadoUsuario]string{
	EstadoBloqueado: "Bloqueado",
	EstadoActivo:    "Activo",
	EstadoEliminado: "Eliminado",
	EstadoPendiente: "Pendiente",
}

var coloresEstado = map[EstadoUsuario]string{
	EstadoBloqueado: "yellow",
	EstadoActivo:    "green",
	EstadoEliminado: "red",
	EstadoPendiente: "blue",
}

var iconosEstado = map[EstadoUsuario]string{
	EstadoBloqueado: "🚫",
	EstadoActivo:    "✅",
	EstadoEliminado: "🗑️",
	EstadoPendiente: "⏳",
}

// Valido indica si el valor pertenece al dominio del enum.
func (e EstadoUsuario) Valido() bool {
	_, ok := etiquetasEstado[e]
	return ok
}

// Etiqueta devuelve el texto para UI.
func (e EstadoUsuario) Etiqueta() string {
	if label, ok := etiquetasEstado[e]; ok {
		return label
	}
	return "Desconocido"
}

// Color devuelve el color de badge para UI.
func (e EstadoUsuario) Color() string {
	if c, ok := coloresEstado[e]; ok {
		return c
	}
	return "gray"
}

// Icono devuelve el icono para UI.
func (e EstadoUsuario) Icono() string {
	if i, ok := iconosEstado[e]; ok {
		return i
	}
	return "❓"
}

// EsActivo replica el helper de migración user_state -> is_active.
func (e EstadoUsuario) EsActivo() bool {
	return e == EstadoActivo
}

// EstadoDesdeActivo replica el helper de migración is_active -> user_state.
func EstadoDesdeActivo(activo bool) EstadoUsuario {
	if activo {
		return EstadoActivo
	}
	return EstadoBloqueado
}
