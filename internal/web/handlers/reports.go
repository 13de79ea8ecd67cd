package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/smart-attendance/internal/calendar"
	"github.com/kozaktomas/smart-attendance/internal/errors"
	"github.com/kozaktomas/smart-attendance/internal/ledger"
	"github.com/kozaktomas/smart-attendance/internal/report"
)

// ReportsHandler handles register and insight endpoints.
type ReportsHandler struct {
	ledger  *ledger.Ledger
	builder *report.Builder
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(l *ledger.Ledger, builder *report.Builder) *ReportsHandler {
	return &ReportsHandler{ledger: l, builder: builder}
}

// load resolves the period and anchor of the request and loads the snapshot covering them.
func (h *ReportsHandler) load(r *http.Request) (report.Period, time.Time, *report.Snapshot, error) {
	const op = "build report"

	period, err := report.ParsePeriod(chi.URLParam(r, "period"))
	if err != nil {
		return "", time.Time{}, nil, errors.Input(op, err)
	}
	date, err := dateParam(r)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	anchor, _ := calendar.ParseDate(date)
	start, end, err := report.ResolveRange(period, anchor)
	if err != nil {
		return "", time.Time{}, nil, errors.Input(op, err)
	}

	snap, err := h.ledger.ReportSnapshot(r.Context(), chi.URLParam(r, "id"), start, end)
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return period, anchor, snap, nil
}

// Report returns the register matrix of a class for a period.
func (h *ReportsHandler) Report(w http.ResponseWriter, r *http.Request) {
	period, anchor, snap, err := h.load(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	matrix, err := h.builder.Build(period, anchor, snap)
	if err != nil {
		respondErr(w, r, errors.Input("build report", err))
		return
	}
	respondJSON(w, http.StatusOK, matrix)
}

// Insights returns the summary statistics of a class for a period.
func (h *ReportsHandler) Insights(w http.ResponseWriter, r *http.Request) {
	period, anchor, snap, err := h.load(r)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	insights, err := h.builder.Insights(period, anchor, snap)
	if err != nil {
		respondErr(w, r, errors.Input("build insights", err))
		return
	}
	respondJSON(w, http.StatusOK, insights)
}
