// Package embedding talks to the face embedding server. The server detects faces in an
// uploaded image and returns one embedding and bounding box per face.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kozaktomas/smart-attendance/internal/constants"
	"github.com/kozaktomas/smart-attendance/internal/facematch"
	"github.com/kozaktomas/smart-attendance/internal/recognition"
)

const defaultEmbeddingURL = "http://localhost:8000"

// ErrNoFace is returned when an enrollment photo contains no face.
var ErrNoFace = errors.New("no face detected in photo")

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Client computes face embeddings using the embedding server
type Client struct {
	baseURL      string
	dim          int
	maxImageSize int
	client       *http.Client
	limiter      *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithRateLimit throttles requests to rps per second. Zero disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

// WithDim rejects embeddings whose length differs from dim.
func WithDim(dim int) Option {
	return func(c *Client) { c.dim = dim }
}

// WithMaxImageSize downscales images to this edge length before upload. Zero disables resizing.
func WithMaxImageSize(size int) Option {
	return func(c *Client) { c.maxImageSize = size }
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// NewClient creates a new embedding client
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = defaultEmbeddingURL
	}
	c := &Client{
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		maxImageSize: constants.MaxImageSize,
		client:       &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// postMultipartImage constructs a multipart form with the image data and posts it to the given endpoint.
func (c *Client) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="image.jpg"`)
	h.Set("Content-Type", DetectMIMEType(imageData))
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Ping checks that the embedding server is up.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding server unreachable: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding server unhealthy (status %d)", resp.StatusCode)
	}
	return nil
}

// ComputeFaceEmbeddings detects faces and computes their embeddings
func (c *Client) ComputeFaceEmbeddings(ctx context.Context, imageData []byte) (*FaceResponse, error) {
	if c.maxImageSize > 0 {
		resized, err := ResizeImage(imageData, c.maxImageSize)
		if err != nil {
			return nil, err
		}
		imageData = resized
	}

	body, err := c.postMultipartImage(ctx, "/embed/face", imageData)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	if c.dim > 0 {
		for _, f := range faceResp.Faces {
			if len(f.Embedding) != c.dim {
				return nil, fmt.Errorf("embedding dimension %d, expected %d", len(f.Embedding), c.dim)
			}
		}
	}
	return &faceResp, nil
}

// ReferenceEmbedding computes the enrollment embedding of a photo: the largest face wins
// when more than one person is in frame.
func (c *Client) ReferenceEmbedding(ctx context.Context, photo []byte) ([]float32, facematch.BBox, error) {
	resp, err := c.ComputeFaceEmbeddings(ctx, photo)
	if err != nil {
		return nil, nil, err
	}

	boxes := make([]facematch.BBox, len(resp.Faces))
	for i, f := range resp.Faces {
		boxes[i] = f.BBox
	}
	best := facematch.LargestFace(boxes)
	if best < 0 {
		return nil, nil, ErrNoFace
	}
	return resp.Faces[best].Embedding, boxes[best], nil
}

// Init implements recognition.EmbeddingProvider.
func (c *Client) Init(ctx context.Context) error {
	return c.Ping(ctx)
}

// Detect implements recognition.EmbeddingProvider.
func (c *Client) Detect(ctx context.Context, frame *recognition.Frame) ([]recognition.Detection, error) {
	resp, err := c.ComputeFaceEmbeddings(ctx, frame.Data)
	if err != nil {
		return nil, err
	}
	out := make([]recognition.Detection, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Embedding) == 0 {
			continue
		}
		out = append(out, recognition.Detection{Embedding: f.Embedding, BBox: f.BBox})
	}
	return out, nil
}

var _ recognition.EmbeddingProvider = (*Client)(nil)
