package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/ledger"
)

// ClassesHandler handles class endpoints.
type ClassesHandler struct {
	store  database.Store
	ledger *ledger.Ledger
}

// NewClassesHandler creates a new classes handler.
func NewClassesHandler(store database.Store, l *ledger.Ledger) *ClassesHandler {
	return &ClassesHandler{store: store, ledger: l}
}

// ClassRequest is the body of POST /classes.
type ClassRequest struct {
	Name      string `json:"name"`
	SchoolID  string `json:"school_id"`
	TeacherID string `json:"teacher_id"`
}

// AssignTeacherRequest is the body of PUT /classes/{id}/teacher.
type AssignTeacherRequest struct {
	TeacherID string `json:"teacher_id"`
}

// ListBySchool returns the classes of a school.
func (h *ClassesHandler) ListBySchool(w http.ResponseWriter, r *http.Request) {
	schoolID := chi.URLParam(r, "id")
	school, err := h.store.GetSchool(r.Context(), schoolID)
	if err != nil {
		logger.Error("loading school failed", "school", schoolID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load school")
		return
	}
	if school == nil {
		respondError(w, http.StatusNotFound, "school not found")
		return
	}

	classes, err := h.store.ListClasses(r.Context(), schoolID)
	if err != nil {
		logger.Error("listing classes failed", "school", schoolID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list classes")
		return
	}
	if classes == nil {
		classes = []database.ClassSection{}
	}
	respondJSON(w, http.StatusOK, classes)
}

// Create adds a class to a school. Names are unique per school regardless of case.
func (h *ClassesHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ClassRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.SchoolID == "" {
		respondError(w, http.StatusBadRequest, "name and school_id are required")
		return
	}

	school, err := h.store.GetSchool(r.Context(), req.SchoolID)
	if err != nil {
		logger.Error("loading school failed", "school", req.SchoolID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load school")
		return
	}
	if school == nil {
		respondError(w, http.StatusBadRequest, "unknown school")
		return
	}

	class := &database.ClassSection{Name: req.Name, SchoolID: req.SchoolID, TeacherID: req.TeacherID}
	if err := h.store.CreateClass(r.Context(), class); err != nil {
		if errors.Is(err, database.ErrDuplicateClass) {
			respondError(w, http.StatusConflict, "a class with this name already exists in the school")
			return
		}
		logger.Error("creating class failed", "school", req.SchoolID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to create class")
		return
	}
	respondJSON(w, http.StatusCreated, class)
}

// AssignTeacher sets the teacher of a class.
func (h *ClassesHandler) AssignTeacher(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "id")
	var req AssignTeacherRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	class, err := h.store.GetClass(r.Context(), classID)
	if err != nil {
		logger.Error("loading class failed", "class", classID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load class")
		return
	}
	if class == nil {
		respondError(w, http.StatusNotFound, "class not found")
		return
	}
	if req.TeacherID != "" {
		teacher, err := h.store.GetUser(r.Context(), req.TeacherID)
		if err != nil {
			logger.Error("loading user failed", "user", req.TeacherID, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to load teacher")
			return
		}
		if teacher == nil || teacher.SchoolID != class.SchoolID {
			respondError(w, http.StatusBadRequest, "unknown teacher")
			return
		}
	}

	if err := h.store.AssignTeacher(r.Context(), classID, req.TeacherID); err != nil {
		logger.Error("assigning teacher failed", "class", classID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to assign teacher")
		return
	}
	class.TeacherID = req.TeacherID
	respondJSON(w, http.StatusOK, class)
}

// Delete removes a class and its students.
func (h *ClassesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "id")
	class, err := h.store.GetClass(r.Context(), classID)
	if err != nil {
		logger.Error("loading class failed", "class", classID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load class")
		return
	}
	if class == nil {
		respondError(w, http.StatusNotFound, "class not found")
		return
	}

	if err := h.store.DeleteClass(r.Context(), classID); err != nil {
		logger.Error("deleting class failed", "class", classID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to delete class")
		return
	}
	logger.Info("class deleted", "class", classID, "school", class.SchoolID)
	w.WriteHeader(http.StatusNoContent)
}

// Sheet returns the attendance sheet of a class on a date (default today).
func (h *ClassesHandler) Sheet(w http.ResponseWriter, r *http.Request) {
	date, err := dateParam(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}

	ws, err := h.ledger.OpenWorkingSet(r.Context(), chi.URLParam(r, "id"), date)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	present, absent := ws.Counts()
	respondJSON(w, http.StatusOK, map[string]any{
		"class_id": ws.ClassID(),
		"date":     ws.Date(),
		"day_kind": ws.DayKind().String(),
		"present":  present,
		"absent":   absent,
		"warnings": ws.Warnings(),
		"entries":  ws.Entries(),
	})
}
