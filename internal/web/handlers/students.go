package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/smart-attendance/internal/constants"
	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/embedding"
	"github.com/kozaktomas/smart-attendance/internal/facematch"
)

// FaceEmbedder computes the reference embedding of an enrollment photo.
type FaceEmbedder interface {
	ReferenceEmbedding(ctx context.Context, photo []byte) ([]float32, facematch.BBox, error)
}

// StudentsHandler handles student endpoints.
type StudentsHandler struct {
	store     database.Store
	embedder  FaceEmbedder
	indexer   database.ReferenceIndexer // optional, enables duplicate warnings
	threshold float64
}

// NewStudentsHandler creates a new students handler. indexer may be nil.
func NewStudentsHandler(store database.Store, embedder FaceEmbedder, indexer database.ReferenceIndexer, threshold float64) *StudentsHandler {
	if threshold <= 0 {
		threshold = constants.DefaultMatchThreshold
	}
	return &StudentsHandler{store: store, embedder: embedder, indexer: indexer, threshold: threshold}
}

// StudentView is a student without its photo and embedding.
type StudentView struct {
	ID           string `json:"id"`
	ClassID      string `json:"class_id"`
	SchoolID     string `json:"school_id"`
	Name         string `json:"name"`
	RollNo       string `json:"roll_no"`
	FatherName   string `json:"father_name"`
	Village      string `json:"village"`
	ConsentGiven bool   `json:"consent_given"`
	HasReference bool   `json:"has_reference"`
	HasPhoto     bool   `json:"has_photo"`
}

func newStudentView(s *database.Student) StudentView {
	return StudentView{
		ID:           s.ID,
		ClassID:      s.ClassID,
		SchoolID:     s.SchoolID,
		Name:         s.Name,
		RollNo:       s.RollNo,
		FatherName:   s.FatherName,
		Village:      s.Village,
		ConsentGiven: s.ConsentGiven,
		HasReference: s.HasReference(),
		HasPhoto:     len(s.Photo) > 0,
	}
}

// StudentRequest is the body of POST /students and PUT /students/{id}.
type StudentRequest struct {
	ClassID      string `json:"class_id"`
	Name         string `json:"name"`
	RollNo       string `json:"roll_no"`
	FatherName   string `json:"father_name"`
	Village      string `json:"village"`
	ConsentGiven bool   `json:"consent_given"`
}

// EnrollResponse is returned after a face has been enrolled.
type EnrollResponse struct {
	Student    StudentView    `json:"student"`
	BBox       facematch.BBox `json:"bbox"`
	Duplicates []DuplicateHit `json:"duplicates,omitempty"`
}

// DuplicateHit is another student whose reference is within the match threshold.
type DuplicateHit struct {
	StudentID string  `json:"student_id"`
	Name      string  `json:"name"`
	Distance  float64 `json:"distance"`
}

// ListByClass returns the students of a class in roll number order.
func (h *StudentsHandler) ListByClass(w http.ResponseWriter, r *http.Request) {
	classID := chi.URLParam(r, "id")
	class, err := h.store.GetClass(r.Context(), classID)
	if err != nil {
		logger.Error("loading class failed", "class", classID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load class")
		return
	}
	if class == nil {
		respondError(w, http.StatusNotFound, "class not found")
		return
	}

	students, err := h.store.ListStudents(r.Context(), classID)
	if err != nil {
		logger.Error("listing students failed", "class", classID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list students")
		return
	}
	views := make([]StudentView, 0, len(students))
	for i := range students {
		views = append(views, newStudentView(&students[i]))
	}
	respondJSON(w, http.StatusOK, views)
}

// Create enrolls a new student in a class.
func (h *StudentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" || req.ClassID == "" {
		respondError(w, http.StatusBadRequest, "name and class_id are required")
		return
	}

	class, err := h.store.GetClass(r.Context(), req.ClassID)
	if err != nil {
		logger.Error("loading class failed", "class", req.ClassID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load class")
		return
	}
	if class == nil {
		respondError(w, http.StatusBadRequest, "unknown class")
		return
	}

	student := &database.Student{
		ClassID:      class.ID,
		SchoolID:     class.SchoolID,
		Name:         req.Name,
		RollNo:       strings.TrimSpace(req.RollNo),
		FatherName:   req.FatherName,
		Village:      req.Village,
		ConsentGiven: req.ConsentGiven,
	}
	if err := h.store.SaveStudent(r.Context(), student); err != nil {
		logger.Error("saving student failed", "class", class.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save student")
		return
	}
	respondJSON(w, http.StatusCreated, newStudentView(student))
}

// Update changes the details of a student. The class and the enrolled face are kept.
func (h *StudentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	student, ok := h.loadStudent(w, r)
	if !ok {
		return
	}

	var req StudentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.ClassID != "" && req.ClassID != student.ClassID {
		respondError(w, http.StatusBadRequest, "moving a student to another class is not supported")
		return
	}
	if name := strings.TrimSpace(req.Name); name != "" {
		student.Name = name
	}
	student.RollNo = strings.TrimSpace(req.RollNo)
	student.FatherName = req.FatherName
	student.Village = req.Village
	student.ConsentGiven = req.ConsentGiven

	if err := h.store.SaveStudent(r.Context(), student); err != nil {
		logger.Error("saving student failed", "student", student.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to save student")
		return
	}
	respondJSON(w, http.StatusOK, newStudentView(student))
}

// EnrollFace computes the reference embedding of the uploaded "photo" and stores it with
// the photo. Other students whose reference is within the match threshold are reported.
func (h *StudentsHandler) EnrollFace(w http.ResponseWriter, r *http.Request) {
	student, ok := h.loadStudent(w, r)
	if !ok {
		return
	}
	if !student.ConsentGiven {
		respondError(w, http.StatusConflict, "consent is required before enrolling a face")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, constants.MaxUploadSize)
	if err := r.ParseMultipartForm(constants.MaxUploadSize); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse form")
		return
	}
	file, _, err := r.FormFile("photo")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing photo")
		return
	}
	defer file.Close()
	photo, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read photo")
		return
	}
	if !embedding.IsImage(photo) {
		respondError(w, http.StatusBadRequest, "photo is not an image")
		return
	}

	emb, bbox, err := h.embedder.ReferenceEmbedding(r.Context(), photo)
	if err != nil {
		if errors.Is(err, embedding.ErrNoFace) {
			respondError(w, http.StatusUnprocessableEntity, "no face detected in photo")
			return
		}
		logger.Error("computing reference embedding failed", "student", student.ID, "error", err)
		respondError(w, http.StatusServiceUnavailable, "embedding service unavailable")
		return
	}

	if err := h.store.SetReference(r.Context(), student.ID, emb, photo); err != nil {
		logger.Error("storing reference failed", "student", student.ID, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to store reference")
		return
	}
	student.FaceDescriptor = emb
	student.Photo = photo

	resp := EnrollResponse{Student: newStudentView(student), BBox: bbox}
	resp.Duplicates = h.duplicates(r.Context(), student.ID, emb)
	for _, d := range resp.Duplicates {
		logger.Warn("enrolled face resembles another student", "student", student.ID,
			"other", d.StudentID, "distance", d.Distance)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *StudentsHandler) duplicates(ctx context.Context, studentID string, emb []float32) []DuplicateHit {
	if h.indexer == nil {
		return nil
	}
	idx := h.indexer.ReferenceIndex()
	if idx == nil {
		return nil
	}
	neighbors, err := idx.Within(emb, constants.DuplicateSearchK, h.threshold, studentID)
	if err != nil {
		logger.Warn("duplicate face search failed", "student", studentID, "error", err)
		return nil
	}

	hits := make([]DuplicateHit, 0, len(neighbors))
	for _, n := range neighbors {
		hit := DuplicateHit{StudentID: n.StudentID, Distance: n.Distance}
		if other, err := h.store.GetStudent(ctx, n.StudentID); err == nil && other != nil {
			hit.Name = other.Name
		}
		hits = append(hits, hit)
	}
	return hits
}

func (h *StudentsHandler) loadStudent(w http.ResponseWriter, r *http.Request) (*database.Student, bool) {
	id := chi.URLParam(r, "id")
	student, err := h.store.GetStudent(r.Context(), id)
	if err != nil {
		logger.Error("loading student failed", "student", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load student")
		return nil, false
	}
	if student == nil {
		respondError(w, http.StatusNotFound, "student not found")
		return nil, false
	}
	return student, true
}
