package handlers

import (
	"net/http"
	"strings"

	"github.com/kozaktomas/smart-attendance/internal/database"
)

// SchoolsHandler handles school endpoints.
type SchoolsHandler struct {
	store database.SchoolWriter
}

// NewSchoolsHandler creates a new schools handler.
func NewSchoolsHandler(store database.SchoolWriter) *SchoolsHandler {
	return &SchoolsHandler{store: store}
}

// SchoolRequest is the body of POST /schools.
type SchoolRequest struct {
	Name          string `json:"name"`
	PrincipalName string `json:"principal_name"`
	ContactEmail  string `json:"contact_email"`
	ContactPhone  string `json:"contact_phone"`
}

// List returns all schools.
func (h *SchoolsHandler) List(w http.ResponseWriter, r *http.Request) {
	schools, err := h.store.ListSchools(r.Context())
	if err != nil {
		logger.Error("listing schools failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list schools")
		return
	}
	if schools == nil {
		schools = []database.School{}
	}
	respondJSON(w, http.StatusOK, schools)
}

// Create registers a school.
func (h *SchoolsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req SchoolRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	school := &database.School{
		Name:          req.Name,
		PrincipalName: req.PrincipalName,
		ContactEmail:  req.ContactEmail,
		ContactPhone:  req.ContactPhone,
	}
	if err := h.store.SaveSchool(r.Context(), school); err != nil {
		logger.Error("saving school failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save school")
		return
	}
	respondJSON(w, http.StatusCreated, school)
}
