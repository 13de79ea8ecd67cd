package web

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/smart-attendance/internal/config"
	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/database/mock"
	"github.com/kozaktomas/smart-attendance/internal/facematch"
	"github.com/kozaktomas/smart-attendance/internal/metrics"
	"github.com/kozaktomas/smart-attendance/internal/recognition"
)

type nopProvider struct{}

func (nopProvider) Init(ctx context.Context) error { return nil }
func (nopProvider) Detect(ctx context.Context, f *recognition.Frame) ([]recognition.Detection, error) {
	return nil, nil
}
func (nopProvider) ReferenceEmbedding(ctx context.Context, photo []byte) ([]float32, facematch.BBox, error) {
	return []float32{1, 0, 0}, facematch.BBox{0, 0, 10, 10}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Recognition: config.RecognitionConfig{Threshold: 0.5},
		Calendar:    config.CalendarConfig{WeeklyOffDay: time.Sunday},
		Web: config.WebConfig{
			Host:            "127.0.0.1",
			Port:            0,
			AllowedOrigins:  []string{"https://school.example.org"},
			HolidayCacheTTL: time.Minute,
		},
	}
}

func newTestServer(t *testing.T) (*Server, *mock.MockStore) {
	t.Helper()
	store := mock.NewMockStore()
	store.AddSchool(database.School{ID: "school1", Name: "Govt. Primary School"})
	store.AddClass(database.ClassSection{ID: "class1", Name: "5A", SchoolID: "school1"})
	store.AddStudent(database.Student{ID: "s1", ClassID: "class1", SchoolID: "school1", Name: "Asha", RollNo: "01",
		FaceDescriptor: []float32{1, 0, 0}, ConsentGiven: true})

	m, err := metrics.New(prometheus.NewRegistry())
	require.NoError(t, err)

	s := NewServer(testConfig(), Dependencies{
		Store:    store,
		Provider: nopProvider{},
		Embedder: nopProvider{},
		Metrics:  m,
	})
	t.Cleanup(s.Sessions().Close)
	return s, store
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestServer_HealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	// Produce a ledger save so the vector has a sample.
	rec = serve(s, http.MethodPost, "/api/v1/attendance",
		`{"records":[{"student_id":"s1","date":"2026-03-04","status":"Present","method":"Manual"}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(s, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "attendance_ledger_saves_total")
}

func TestServer_Routes(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		method   string
		path     string
		body     string
		expected int
	}{
		{http.MethodGet, "/api/v1/schools", "", http.StatusOK},
		{http.MethodGet, "/api/v1/schools/school1/classes", "", http.StatusOK},
		{http.MethodGet, "/api/v1/schools/school1/holidays", "", http.StatusOK},
		{http.MethodPost, "/api/v1/schools/school1/users", `{"name":"Mr. Singh","username":"singh"}`, http.StatusCreated},
		{http.MethodGet, "/api/v1/schools/school1/users", "", http.StatusOK},
		{http.MethodPut, "/api/v1/schools/school1/holidays/2026-03-05", `{"description":"Holi"}`, http.StatusOK},
		{http.MethodGet, "/api/v1/classes/class1/students", "", http.StatusOK},
		{http.MethodGet, "/api/v1/classes/class1/sheet?date=2026-03-04", "", http.StatusOK},
		{http.MethodGet, "/api/v1/classes/class1/sheet?date=2026-03-05", "", http.StatusBadRequest},
		{http.MethodGet, "/api/v1/classes/class1/reports/monthly?date=2026-03-04", "", http.StatusOK},
		{http.MethodGet, "/api/v1/classes/class1/insights/yearly?date=2026-03-04", "", http.StatusOK},
		{http.MethodGet, "/api/v1/attendance?classId=class1", "", http.StatusOK},
		{http.MethodGet, "/api/v1/sessions", "", http.StatusOK},
		{http.MethodGet, "/api/v1/sessions/nope", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/nothing-here", "", http.StatusNotFound},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := serve(s, tc.method, tc.path, tc.body)
			assert.Equal(t, tc.expected, rec.Code, rec.Body.String())
		})
	}
}

func TestServer_HolidayWriteInvalidatesLedgerCache(t *testing.T) {
	s, _ := newTestServer(t)

	rec := serve(s, http.MethodGet, "/api/v1/classes/class1/sheet?date=2026-03-06", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, http.MethodPut, "/api/v1/schools/school1/holidays/2026-03-06", `{"description":"Sports day"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(s, http.MethodGet, "/api/v1/classes/class1/sheet?date=2026-03-06", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "Sports day"), rec.Body.String())
}

func TestServer_SessionThroughRouter(t *testing.T) {
	s, store := newTestServer(t)

	rec := serve(s, http.MethodPost, "/api/v1/sessions", `{"class_id":"class1","date":"2026-03-04"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := s.Sessions().List()[0].ID

	rec = serve(s, http.MethodPost, "/api/v1/sessions/"+id+"/marks", `{"student_id":"s1","status":"Present"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = serve(s, http.MethodPost, "/api/v1/sessions/"+id+"/save", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, store.RecordCount())

	rec = serve(s, http.MethodDelete, "/api/v1/sessions/"+id, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestServer_CORS(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/schools", nil)
	req.Header.Set("Origin", "https://school.example.org")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://school.example.org", rec.Header().Get("Access-Control-Allow-Origin"))
}
