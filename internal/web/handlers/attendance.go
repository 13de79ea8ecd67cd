package handlers

import (
	"net/http"

	"github.com/kozaktomas/smart-attendance/internal/constants"
	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/errors"
	"github.com/kozaktomas/smart-attendance/internal/ledger"
)

// AttendanceHandler handles attendance record endpoints.
type AttendanceHandler struct {
	ledger *ledger.Ledger
}

// NewAttendanceHandler creates a new attendance handler.
func NewAttendanceHandler(l *ledger.Ledger) *AttendanceHandler {
	return &AttendanceHandler{ledger: l}
}

// SaveAttendanceRequest is the body of POST /attendance.
type SaveAttendanceRequest struct {
	Records []database.AttendanceRecord `json:"records"`
}

// filterFromQuery builds a filter from classId, studentId, date, start and end.
// A range needs both ends.
func filterFromQuery(r *http.Request) (database.AttendanceFilter, error) {
	q := r.URL.Query()
	filter := database.AttendanceFilter{
		ClassID:   q.Get("classId"),
		StudentID: q.Get("studentId"),
		Date:      q.Get("date"),
	}
	start, end := q.Get("start"), q.Get("end")
	switch {
	case start != "" && end != "":
		filter.Range = &database.DateRange{Start: start, End: end}
	case start != "" || end != "":
		return filter, errors.Inputf("query attendance", "start and end must be given together")
	}
	return filter, nil
}

// Query returns the records matching the query parameters.
func (h *AttendanceHandler) Query(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	records, err := h.ledger.Query(r.Context(), filter)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	if records == nil {
		records = []database.AttendanceRecord{}
	}
	respondJSON(w, http.StatusOK, records)
}

// Save upserts a batch of records atomically.
func (h *AttendanceHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req SaveAttendanceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Records) > constants.MaxSaveBatch {
		respondError(w, http.StatusBadRequest, "too many records in one batch")
		return
	}

	if err := h.ledger.Save(r.Context(), req.Records); err != nil {
		respondErr(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int{"saved": len(req.Records)})
}
