package handlers

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/kozaktomas/smart-attendance/internal/constants"
	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/embedding"
	"github.com/kozaktomas/smart-attendance/internal/errors"
)

// SessionsHandler handles recognition session endpoints.
type SessionsHandler struct {
	manager  *SessionManager
	upgrader websocket.Upgrader
}

// NewSessionsHandler creates a new sessions handler. allowOrigin vets websocket origins;
// nil accepts same-origin requests only.
func NewSessionsHandler(manager *SessionManager, allowOrigin func(origin string) bool) *SessionsHandler {
	return &SessionsHandler{manager: manager, upgrader: newUpgrader(allowOrigin)}
}

// StartSessionRequest is the body of POST /sessions.
type StartSessionRequest struct {
	ClassID string `json:"class_id"`
	Date    string `json:"date"` // defaults to today
}

// MarkRequest is a manual mark sent to a session.
type MarkRequest struct {
	StudentID string                    `json:"student_id"`
	Status    database.AttendanceStatus `json:"status"`
}

// CameraErrorRequest reports a lost camera.
type CameraErrorRequest struct {
	Reason string `json:"reason"`
}

func (h *SessionsHandler) lookup(w http.ResponseWriter, r *http.Request) *AttendanceSession {
	a := h.manager.Get(chi.URLParam(r, "id"))
	if a == nil {
		respondError(w, http.StatusNotFound, "session not found")
	}
	return a
}

// Start activates a recognition session for a class.
func (h *SessionsHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartSessionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.ClassID == "" {
		respondError(w, http.StatusBadRequest, "class_id is required")
		return
	}
	if req.Date == "" {
		date, _ := dateParam(r)
		req.Date = date
	}

	a, err := h.manager.Start(r.Context(), req.ClassID, req.Date)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, a.View())
}

// List returns every live session.
func (h *SessionsHandler) List(w http.ResponseWriter, r *http.Request) {
	list := h.manager.List()
	views := make([]SessionView, 0, len(list))
	for _, a := range list {
		views = append(views, a.View())
	}
	respondJSON(w, http.StatusOK, views)
}

// Get returns the state and sheet of a session.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	a := h.lookup(w, r)
	if a == nil {
		return
	}
	a.touch()
	respondJSON(w, http.StatusOK, a.View())
}

// PushFrame accepts one camera frame, either as the raw request body or as the "frame"
// part of a multipart form.
func (h *SessionsHandler) PushFrame(w http.ResponseWriter, r *http.Request) {
	a := h.lookup(w, r)
	if a == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	var (
		data []byte
		err  error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		file, _, ferr := r.FormFile("frame")
		if ferr != nil {
			respondError(w, http.StatusBadRequest, "missing frame part")
			return
		}
		defer file.Close()
		data, err = io.ReadAll(file)
	} else {
		data, err = io.ReadAll(r.Body)
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read frame")
		return
	}
	if !embedding.IsImage(data) {
		respondError(w, http.StatusBadRequest, "frame is not an image")
		return
	}

	res, err := h.manager.PushFrame(r.Context(), a, data, embedding.DetectMIMEType(data))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if !res.Stepped {
		respondJSON(w, http.StatusAccepted, res)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// Events streams session events via SSE.
func (h *SessionsHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r, func(id string) EventStream {
		a := h.manager.Get(id)
		if a == nil {
			return nil
		}
		return a
	}, func(s EventStream) any {
		return s.(*AttendanceSession).View()
	})
}

// Mark sets the status of one student by hand.
func (h *SessionsHandler) Mark(w http.ResponseWriter, r *http.Request) {
	a := h.lookup(w, r)
	if a == nil {
		return
	}
	var req MarkRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}

	entry, err := a.markManual(req.StudentID, req.Status)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// SwitchCamera gives the session a fresh frame source.
func (h *SessionsHandler) SwitchCamera(w http.ResponseWriter, r *http.Request) {
	a := h.lookup(w, r)
	if a == nil {
		return
	}
	if err := h.manager.SwitchCamera(r.Context(), a); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a.View())
}

// CameraError reports that the client could not access its camera.
func (h *SessionsHandler) CameraError(w http.ResponseWriter, r *http.Request) {
	a := h.lookup(w, r)
	if a == nil {
		return
	}
	var req CameraErrorRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Reason == "" {
		req.Reason = "permission denied"
	}
	h.manager.CameraFailed(r.Context(), a, req.Reason)
	respondJSON(w, http.StatusOK, a.View())
}

// Save writes the session's sheet.
func (h *SessionsHandler) Save(w http.ResponseWriter, r *http.Request) {
	a := h.lookup(w, r)
	if a == nil {
		return
	}
	if err := h.manager.Save(r.Context(), a); err != nil {
		if errors.IsKind(err, errors.KindPersistence) {
			// The sheet keeps its marks; the client may retry.
			logger.Error("saving session sheet failed", "session", a.ID, "error", err)
			respondError(w, http.StatusInternalServerError, "failed to save attendance, please retry")
			return
		}
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, a.View())
}

// Stop deactivates a session.
func (h *SessionsHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Stop(chi.URLParam(r, "id")) {
		respondError(w, http.StatusNotFound, "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
