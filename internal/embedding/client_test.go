package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kozaktomas/smart-attendance/internal/recognition"
)

// newFaceServer returns an embedding server that answers /embed/face with faces
// and records the uploaded content type.
func newFaceServer(t *testing.T, faces []FaceDetection, gotType *string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/embed/face":
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			file, header, err := r.FormFile("file")
			if err != nil {
				t.Errorf("missing file part: %v", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, _ = io.Copy(io.Discard, file)
			if gotType != nil {
				*gotType = header.Header.Get("Content-Type")
			}
			_ = json.NewEncoder(w).Encode(FaceResponse{FacesCount: len(faces), Faces: faces, Model: "buffalo_l"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func testPhoto() []byte {
	return encodeJPEG(createTestImage(64, 64, color.White))
}

func TestNewClient_DefaultURL(t *testing.T) {
	c := NewClient("")
	if c.baseURL != defaultEmbeddingURL {
		t.Errorf("expected default URL %s, got %s", defaultEmbeddingURL, c.baseURL)
	}
	c = NewClient("http://embed:9000/")
	if c.baseURL != "http://embed:9000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.baseURL)
	}
}

func TestComputeFaceEmbeddings(t *testing.T) {
	var contentType string
	srv := newFaceServer(t, []FaceDetection{
		{FaceIndex: 0, Dim: 3, Embedding: []float32{0.1, 0.2, 0.3}, BBox: []float64{0, 0, 10, 10}, DetScore: 0.99},
	}, &contentType)
	defer srv.Close()

	c := NewClient(srv.URL, WithDim(3))
	resp, err := c.ComputeFaceEmbeddings(context.Background(), testPhoto())
	if err != nil {
		t.Fatalf("ComputeFaceEmbeddings failed: %v", err)
	}
	if resp.FacesCount != 1 || len(resp.Faces) != 1 {
		t.Fatalf("expected one face, got %+v", resp)
	}
	if contentType != "image/jpeg" {
		t.Errorf("expected image/jpeg part, got %q", contentType)
	}
}

func TestComputeFaceEmbeddings_DimensionMismatch(t *testing.T) {
	srv := newFaceServer(t, []FaceDetection{
		{Embedding: []float32{0.1, 0.2}, BBox: []float64{0, 0, 10, 10}},
	}, nil)
	defer srv.Close()

	c := NewClient(srv.URL, WithDim(128))
	if _, err := c.ComputeFaceEmbeddings(context.Background(), testPhoto()); err == nil {
		t.Error("expected dimension mismatch error")
	}
}

func TestComputeFaceEmbeddings_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.ComputeFaceEmbeddings(context.Background(), testPhoto())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "status 500") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestComputeFaceEmbeddings_InvalidImage(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	if _, err := c.ComputeFaceEmbeddings(context.Background(), []byte("garbage")); err == nil {
		t.Error("expected decode error before any request")
	}
}

func TestReferenceEmbedding_LargestFaceWins(t *testing.T) {
	srv := newFaceServer(t, []FaceDetection{
		{FaceIndex: 0, Embedding: []float32{1, 0}, BBox: []float64{0, 0, 5, 5}},
		{FaceIndex: 1, Embedding: []float32{0, 1}, BBox: []float64{10, 10, 40, 40}},
	}, nil)
	defer srv.Close()

	c := NewClient(srv.URL)
	emb, box, err := c.ReferenceEmbedding(context.Background(), testPhoto())
	if err != nil {
		t.Fatalf("ReferenceEmbedding failed: %v", err)
	}
	if emb[1] != 1 {
		t.Errorf("expected embedding of the larger face, got %v", emb)
	}
	if box.Area() != 900 {
		t.Errorf("expected area 900, got %f", box.Area())
	}
}

func TestReferenceEmbedding_NoFace(t *testing.T) {
	srv := newFaceServer(t, nil, nil)
	defer srv.Close()

	c := NewClient(srv.URL)
	_, _, err := c.ReferenceEmbedding(context.Background(), testPhoto())
	if !errors.Is(err, ErrNoFace) {
		t.Errorf("expected ErrNoFace, got %v", err)
	}
}

func TestInitAndDetect(t *testing.T) {
	srv := newFaceServer(t, []FaceDetection{
		{Embedding: []float32{0.5, 0.5}, BBox: []float64{1, 2, 3, 4}},
		{Embedding: nil, BBox: []float64{5, 5, 6, 6}},
	}, nil)
	defer srv.Close()

	c := NewClient(srv.URL, WithRateLimit(100))
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	dets, err := c.Detect(context.Background(), &recognition.Frame{Data: testPhoto()})
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(dets) != 1 {
		t.Fatalf("expected faces without embeddings to be skipped, got %d detections", len(dets))
	}
	if dets[0].BBox[2] != 3 {
		t.Errorf("unexpected bbox %v", dets[0].BBox)
	}
}

func TestInit_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).Init(context.Background()); err == nil {
		t.Error("expected error from unhealthy server")
	}
}

func TestRateLimit_RespectsContext(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", WithRateLimit(0.001), WithMaxImageSize(0))
	// burst of one: the first token is free, the second must wait
	_ = c.limiter.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.ComputeFaceEmbeddings(ctx, testPhoto()); err == nil {
		t.Error("expected error for cancelled context")
	}
}
