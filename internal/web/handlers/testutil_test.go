package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/smart-attendance/internal/calendar"
	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/database/mock"
	"github.com/kozaktomas/smart-attendance/internal/facematch"
	"github.com/kozaktomas/smart-attendance/internal/ledger"
	"github.com/kozaktomas/smart-attendance/internal/recognition"
)

// testDate is a Wednesday.
const testDate = "2026-03-04"

var (
	embAsha = []float32{1, 0, 0}
	embRavi = []float32{0, 1, 0}
	embFar  = []float32{0, 0, 1}
)

// setupStore creates a mock store with one school, two classes and three students.
// Asha and Ravi of class1 have reference embeddings.
func setupStore() *mock.MockStore {
	store := mock.NewMockStore()
	store.AddSchool(database.School{ID: "school1", Name: "Govt. Primary School"})
	store.AddClass(database.ClassSection{ID: "class1", Name: "5A", SchoolID: "school1"})
	store.AddClass(database.ClassSection{ID: "class2", Name: "5B", SchoolID: "school1"})
	store.AddStudent(database.Student{ID: "s1", ClassID: "class1", SchoolID: "school1", Name: "Asha", RollNo: "01",
		FaceDescriptor: embAsha, ConsentGiven: true})
	store.AddStudent(database.Student{ID: "s2", ClassID: "class1", SchoolID: "school1", Name: "Ravi", RollNo: "02",
		FaceDescriptor: embRavi, ConsentGiven: true})
	store.AddStudent(database.Student{ID: "s3", ClassID: "class2", SchoolID: "school1", Name: "Meena", RollNo: "01"})
	return store
}

func newTestLedger(store ledger.Store) *ledger.Ledger {
	return ledger.New(store, calendar.WeeklyOffRule{Day: time.Sunday})
}

// frame returns bytes that pass the image signature check and identify a fake detection.
func frame(tag string) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), tag...)
}

// fakeProvider detects faces by the tag of the frame.
type fakeProvider struct {
	mu      sync.Mutex
	initErr error
	faces   map[string][]recognition.Detection
}

func newFakeProvider() *fakeProvider {
	det := func(e []float32) recognition.Detection {
		return recognition.Detection{Embedding: e, BBox: facematch.BBox{10, 10, 50, 50}}
	}
	return &fakeProvider{faces: map[string][]recognition.Detection{
		string(frame("asha")):  {det(embAsha)},
		string(frame("both")):  {det(embAsha), det(embRavi)},
		string(frame("other")): {det(embFar)},
	}}
}

func (f *fakeProvider) Init(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initErr
}

func (f *fakeProvider) Detect(ctx context.Context, fr *recognition.Frame) ([]recognition.Detection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.faces[string(fr.Data)], nil
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// jsonRequest creates a request with a JSON body and chi URL parameters
func jsonRequest(t *testing.T, method, path string, body any, params map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return requestWithChiParams(req, params)
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}

func bytesReader(b []byte) *bytes.Reader {
	return bytes.NewReader(b)
}
