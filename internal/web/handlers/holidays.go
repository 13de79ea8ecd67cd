package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/smart-attendance/internal/calendar"
	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/patrickmn/go-cache"
)

const defaultHolidayCacheTTL = 5 * time.Minute

// HolidayCache keeps the holiday set of each school in memory. It implements
// ledger.HolidayProvider; writes through HolidaysHandler invalidate the school's entry.
type HolidayCache struct {
	reader database.HolidayReader
	cache  *cache.Cache
}

// NewHolidayCache creates a cache whose entries expire after ttl.
func NewHolidayCache(reader database.HolidayReader, ttl time.Duration) *HolidayCache {
	if ttl <= 0 {
		ttl = defaultHolidayCacheTTL
	}
	return &HolidayCache{reader: reader, cache: cache.New(ttl, 2*ttl)}
}

// Holidays returns the holiday set of a school, loading it on a miss.
func (c *HolidayCache) Holidays(ctx context.Context, schoolID string) (calendar.HolidaySet, error) {
	if v, ok := c.cache.Get(schoolID); ok {
		return v.(calendar.HolidaySet), nil
	}
	list, err := c.reader.ListHolidays(ctx, schoolID)
	if err != nil {
		return nil, err
	}
	set := calendar.NewHolidaySet(list)
	c.cache.Set(schoolID, set, cache.DefaultExpiration)
	return set, nil
}

// Invalidate drops the cached set of a school.
func (c *HolidayCache) Invalidate(schoolID string) {
	c.cache.Delete(schoolID)
}

// HolidaysHandler handles holiday endpoints.
type HolidaysHandler struct {
	store database.Store
	cache *HolidayCache
}

// NewHolidaysHandler creates a new holidays handler.
func NewHolidaysHandler(store database.Store, hc *HolidayCache) *HolidaysHandler {
	return &HolidaysHandler{store: store, cache: hc}
}

// HolidayRequest is the body of PUT /schools/{id}/holidays/{date}.
type HolidayRequest struct {
	Description string `json:"description"`
}

func (h *HolidaysHandler) loadSchool(w http.ResponseWriter, r *http.Request) (string, bool) {
	schoolID := chi.URLParam(r, "id")
	school, err := h.store.GetSchool(r.Context(), schoolID)
	if err != nil {
		logger.Error("loading school failed", "school", schoolID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load school")
		return "", false
	}
	if school == nil {
		respondError(w, http.StatusNotFound, "school not found")
		return "", false
	}
	return schoolID, true
}

func dateURLParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	date := chi.URLParam(r, "date")
	if _, err := calendar.ParseDate(date); err != nil {
		respondError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return "", false
	}
	return date, true
}

// List returns the holidays of a school ordered by date.
func (h *HolidaysHandler) List(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := h.loadSchool(w, r)
	if !ok {
		return
	}
	holidays, err := h.store.ListHolidays(r.Context(), schoolID)
	if err != nil {
		logger.Error("listing holidays failed", "school", schoolID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list holidays")
		return
	}
	if holidays == nil {
		holidays = []database.Holiday{}
	}
	respondJSON(w, http.StatusOK, holidays)
}

// Set declares a holiday, replacing the description of an existing one.
func (h *HolidaysHandler) Set(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := h.loadSchool(w, r)
	if !ok {
		return
	}
	date, ok := dateURLParam(w, r)
	if !ok {
		return
	}
	var req HolidayRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.Description = strings.TrimSpace(req.Description)
	if req.Description == "" {
		respondError(w, http.StatusBadRequest, "description is required")
		return
	}

	holiday := &database.Holiday{SchoolID: schoolID, Date: date, Description: req.Description}
	if err := h.store.SetHoliday(r.Context(), holiday); err != nil {
		logger.Error("saving holiday failed", "school", schoolID, "date", date, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save holiday")
		return
	}
	h.cache.Invalidate(schoolID)
	respondJSON(w, http.StatusOK, holiday)
}

// Remove deletes the holiday of a school on a date.
func (h *HolidaysHandler) Remove(w http.ResponseWriter, r *http.Request) {
	schoolID, ok := h.loadSchool(w, r)
	if !ok {
		return
	}
	date, ok := dateURLParam(w, r)
	if !ok {
		return
	}
	if err := h.store.RemoveHoliday(r.Context(), schoolID, date); err != nil {
		logger.Error("removing holiday failed", "school", schoolID, "date", date, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to remove holiday")
		return
	}
	h.cache.Invalidate(schoolID)
	w.WriteHeader(http.StatusNoContent)
}
