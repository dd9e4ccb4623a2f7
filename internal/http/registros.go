package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jpeduti/gestiondehoras/internal/registro"
)

// ListRegistros lista los registros del JP autenticado para una semana.
func (h *Handler) ListRegistros(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subjectUUID(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	semanaStr := r.URL.Query().Get("semana")
	if semanaStr == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "semana es obligatoria", nil)
		return
	}
	semana, err := time.Parse("2006-01-02", semanaStr)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "semana inválida", nil)
		return
	}

	registros, err := h.registros.RegistrosDeSemana(r.Context(), subject, semana)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudieron listar registros", nil)
		return
	}

	WriteJSON(w, http.StatusOK, registros)
}

// ResumenSemanas devuelve las últimas semanas agregadas del JP.
func (h *Handler) ResumenSemanas(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subjectUUID(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	limit := 10
	if s := r.URL.Query().Get("limite"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 52 {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "limite inválido", nil)
			return
		}
		limit = n
	}

	resumen, err := h.registros.ResumenSemanas(r.Context(), subject, limit)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudo calcular el resumen", nil)
		return
	}

	WriteJSON(w, http.StatusOK, resumen)
}

type registroPayload struct {
	ProyectoID    *string `json:"project_id"`
	SemanaInicio  string  `json:"week_start"`
	Horas         float64 `json:"hours"`
	Comentarios   *string `json:"comments"`
	OtraActividad *string `json:"other_activity"`
}

// CreateRegistro crea un registro de horas en borrador.
func (h *Handler) CreateRegistro(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subjectUUID(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	var payload registroPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	semana, err := time.Parse("2006-01-02", payload.SemanaInicio)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "week_start inválida", nil)
		return
	}

	input := registro.CrearRegistroInput{
		JPID:          subject,
		SemanaInicio:  semana,
		Horas:         payload.Horas,
		Comentarios:   payload.Comentarios,
		OtraActividad: payload.OtraActividad,
	}
	if payload.ProyectoID != nil && *payload.ProyectoID != "" {
		proyectoID, err := uuid.Parse(*payload.ProyectoID)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "project_id inválido", nil)
			return
		}
		input.ProyectoID = &proyectoID
	}

	reg, err := h.registros.Crear(r.Context(), input)
	if err != nil {
		h.handleRegistroError(w, err)
		return
	}

	WriteJSON(w, http.StatusCreated, reg)
}

// UpdateRegistro aplica un parche parcial sobre un registro.
func (h *Handler) UpdateRegistro(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	var patch registro.ActualizarRegistroInput

	if v, ok := raw["project_id"]; ok {
		var s *string
		if err := json.Unmarshal(v, &s); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "project_id inválido", nil)
			return
		}
		if s == nil {
			// null explícito: el registro pasa a actividad "Otros"
			patch.QuitarProyecto = true
		} else {
			proyectoID, err := uuid.Parse(*s)
			if err != nil {
				WriteError(w, http.StatusBadRequest, "VALIDATION", "project_id inválido", nil)
				return
			}
			patch.ProyectoID = &proyectoID
		}
	}
	if v, ok := raw["week_start"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "week_start inválida", nil)
			return
		}
		semana, err := time.Parse("2006-01-02", s)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "week_start inválida", nil)
			return
		}
		patch.SemanaInicio = &semana
	}
	if v, ok := raw["hours"]; ok {
		var f float64
		if err := json.Unmarshal(v, &f); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "hours inválidas", nil)
			return
		}
		patch.Horas = &f
	}
	if v, ok := raw["comments"]; ok {
		var s *string
		if err := json.Unmarshal(v, &s); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "comments inválidos", nil)
			return
		}
		patch.Comentarios = s
	}
	if v, ok := raw["other_activity"]; ok {
		var s *string
		if err := json.Unmarshal(v, &s); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "other_activity inválida", nil)
			return
		}
		patch.OtraActividad = s
	}
	if v, ok := raw["status"]; ok {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "status inválido", nil)
			return
		}
		estado := registro.EstadoRegistro(s)
		if !estado.Valido() {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "status inválido", nil)
			return
		}
		if estado == registro.EstadoAprobado && !esAdmin(r) {
			WriteError(w, http.StatusForbidden, "FORBIDDEN", "solo un admin puede aprobar registros", nil)
			return
		}
		patch.Estado = &estado
	}

	reg, err := h.registros.Actualizar(r.Context(), id, patch)
	if err != nil {
		h.handleRegistroError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, reg)
}

// DeleteRegistro elimina un registro de horas.
func (h *Handler) DeleteRegistro(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "id inválido", nil)
		return
	}

	if err := h.registros.Eliminar(r.Context(), id); err != nil {
		if errors.Is(err, registro.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "NOT_FOUND", "registro no encontrado", nil)
			return
		}
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudo eliminar el registro", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// EnviarSemana pasa los borradores de la semana a enviados.
func (h *Handler) EnviarSemana(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subjectUUID(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	var payload struct {
		SemanaInicio string `json:"week_start"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "JSON inválido", nil)
		return
	}

	semana, err := time.Parse("2006-01-02", payload.SemanaInicio)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "week_start inválida", nil)
		return
	}

	if err := h.registros.EnviarSemana(r.Context(), subject, semana); err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudo enviar la semana", nil)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]string{"status": "submitted"})
}

// ValidarHoras evalúa el tope semanal sugerido sin bloquear escrituras.
func (h *Handler) ValidarHoras(w http.ResponseWriter, r *http.Request) {
	subject, err := h.subjectUUID(r)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "AUTH", "subject inválido", nil)
		return
	}

	semanaStr := r.URL.Query().Get("semana")
	if semanaStr == "" {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "semana es obligatoria", nil)
		return
	}
	semana, err := time.Parse("2006-01-02", semanaStr)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "semana inválida", nil)
		return
	}

	var excluir *uuid.UUID
	if s := r.URL.Query().Get("excluir"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION", "excluir inválido", nil)
			return
		}
		excluir = &id
	}

	validacion, err := h.registros.ValidarHorasSemana(r.Context(), subject, semana, excluir)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "no se pudieron validar horas", nil)
		return
	}

	WriteJSON(w, http.StatusOK, validacion)
}

func (h *Handler) handleRegistroError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registro.ErrHorasInvalidas), errors.Is(err, registro.ErrActividadSinDetalle):
		WriteError(w, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
	case errors.Is(err, registro.ErrNotFound):
		WriteError(w, http.StatusNotFound, "NOT_FOUND", "registro no encontrado", nil)
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "error al guardar el registro", nil)
	}
}
