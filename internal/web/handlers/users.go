package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/smart-attendance/internal/database"
)

// userStore is what the users handler needs from the backend.
type userStore interface {
	database.SchoolReader
	database.UserWriter
}

// UsersHandler handles staff user endpoints. Users are stored for class assignment only;
// there is no login.
type UsersHandler struct {
	store userStore
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(store userStore) *UsersHandler {
	return &UsersHandler{store: store}
}

// UserRequest is the body of POST /schools/{id}/users.
type UserRequest struct {
	Name     string        `json:"name"`
	Username string        `json:"username"`
	Role     database.Role `json:"role"`
}

func (h *UsersHandler) school(w http.ResponseWriter, r *http.Request) *database.School {
	schoolID := chi.URLParam(r, "id")
	school, err := h.store.GetSchool(r.Context(), schoolID)
	if err != nil {
		logger.Error("loading school failed", "school", schoolID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load school")
		return nil
	}
	if school == nil {
		respondError(w, http.StatusNotFound, "school not found")
	}
	return school
}

// List returns the staff users of a school.
func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	school := h.school(w, r)
	if school == nil {
		return
	}
	users, err := h.store.ListUsers(r.Context(), school.ID)
	if err != nil {
		logger.Error("listing users failed", "school", school.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []database.User{}
	}
	respondJSON(w, http.StatusOK, users)
}

// Create registers a teacher or principal of a school. Role defaults to Teacher.
func (h *UsersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req UserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Username = strings.ToLower(strings.TrimSpace(req.Username))
	if req.Name == "" || req.Username == "" {
		respondError(w, http.StatusBadRequest, "name and username are required")
		return
	}
	if req.Role == "" {
		req.Role = database.RoleTeacher
	}
	if !req.Role.Valid() {
		respondError(w, http.StatusBadRequest, "role must be Teacher or Principal")
		return
	}

	school := h.school(w, r)
	if school == nil {
		return
	}

	user := &database.User{Name: req.Name, Username: req.Username, Role: req.Role, SchoolID: school.ID}
	if err := h.store.SaveUser(r.Context(), user); err != nil {
		if errors.Is(err, database.ErrDuplicateUsername) {
			respondError(w, http.StatusConflict, err.Error())
			return
		}
		logger.Error("saving user failed", "school", school.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save user")
		return
	}
	respondJSON(w, http.StatusCreated, user)
}
