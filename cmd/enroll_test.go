package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/schollz/progressbar/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/database/mock"
	"github.com/kozaktomas/smart-attendance/internal/facematch"
)

// fakeEmbedder returns the embedding registered for the photo content.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	byTag map[string][]float32
}

func (f *fakeEmbedder) ReferenceEmbedding(ctx context.Context, photo []byte) ([]float32, facematch.BBox, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	emb, ok := f.byTag[string(photo)]
	if !ok {
		return nil, nil, errors.New("no face detected in photo")
	}
	return emb, facematch.BBox{0, 0, 10, 10}, nil
}

func writeFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}
}

func classStudents() []database.Student {
	return []database.Student{
		{ID: "s1", Name: "Asha Devi", RollNo: "01", ConsentGiven: true},
		{ID: "s2", Name: "Ravi", RollNo: "02", ConsentGiven: true},
		{ID: "s3", Name: "Meena", RollNo: "03"},
		{ID: "s4", Name: "Kiran", RollNo: "04", ConsentGiven: true, FaceDescriptor: []float32{1, 1, 1}},
		{ID: "s5", Name: "Amit", RollNo: "05", ConsentGiven: true},
		{ID: "s6", Name: "Amit", RollNo: "06", ConsentGiven: true},
	}
}

func TestListPhotos(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"b.JPG":     "x",
		"a.png":     "x",
		"notes.txt": "x",
	})
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o750))

	paths, err := listPhotos(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.png"), filepath.Join(dir, "b.JPG")}, paths)

	_, err = listPhotos(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestMatchPhotos(t *testing.T) {
	paths := []string{
		"/p/Asha_Devi.jpg",
		"/p/ASHA-DEVI.png", // second photo of Asha
		"/p/02.jpg",
		"/p/meena.jpg",
		"/p/kiran.jpg",
		"/p/amit.jpg",
		"/p/06.jpg",
		"/p/stranger.jpg",
	}

	jobs, skipped := matchPhotos(paths, classStudents(), false)

	var ids []string
	for _, j := range jobs {
		ids = append(ids, j.Student.ID)
	}
	assert.Equal(t, []string{"s1", "s2", "s6"}, ids)

	reasons := make(map[string]string)
	for _, s := range skipped {
		reasons[filepath.Base(s.Path)] = s.Reason
	}
	assert.Contains(t, reasons["ASHA-DEVI.png"], "already matched")
	assert.Contains(t, reasons["meena.jpg"], "not consented")
	assert.Contains(t, reasons["kiran.jpg"], "already enrolled")
	assert.Contains(t, reasons["amit.jpg"], "shared by several students")
	assert.Contains(t, reasons["stranger.jpg"], "no student")
}

func TestMatchPhotos_Force(t *testing.T) {
	jobs, skipped := matchPhotos([]string{"/p/Kiran.jpg"}, classStudents(), true)
	require.Len(t, jobs, 1)
	assert.Equal(t, "s4", jobs[0].Student.ID)
	assert.Empty(t, skipped)
}

func TestEnrollPhotos(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{
		"asha.jpg": "face-asha",
		"ravi.jpg": "blank",
	})

	store := mock.NewMockStore()
	store.AddStudent(database.Student{ID: "s1", ClassID: "c1", Name: "Asha", ConsentGiven: true})
	store.AddStudent(database.Student{ID: "s2", ClassID: "c1", Name: "Ravi", ConsentGiven: true})

	embedder := &fakeEmbedder{byTag: map[string][]float32{"face-asha": {0.1, 0.2, 0.3}}}
	jobs := []enrollJob{
		{Path: filepath.Join(dir, "asha.jpg"), Student: database.Student{ID: "s1", Name: "Asha"}},
		{Path: filepath.Join(dir, "ravi.jpg"), Student: database.Student{ID: "s2", Name: "Ravi"}},
		{Path: filepath.Join(dir, "gone.jpg"), Student: database.Student{ID: "s2", Name: "Ravi"}},
	}

	results, err := enrollPhotos(context.Background(), embedder, store, jobs, 2, progressbar.NewOptions(len(jobs), progressbar.OptionSetWriter(io.Discard)))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, results[0].Embedding)
	assert.ErrorContains(t, results[1].Err, "computing embedding")
	assert.ErrorContains(t, results[2].Err, "reading photo")
	assert.Equal(t, 2, embedder.calls)

	asha, err := store.GetStudent(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, asha.FaceDescriptor)
	assert.Equal(t, []byte("face-asha"), asha.Photo)

	ravi, err := store.GetStudent(context.Background(), "s2")
	require.NoError(t, err)
	assert.False(t, ravi.HasReference())
}

func TestEnrollPhotos_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	writeFiles(t, dir, map[string]string{"asha.jpg": "face-asha"})
	jobs := []enrollJob{{Path: filepath.Join(dir, "asha.jpg"), Student: database.Student{ID: "s1"}}}

	_, err := enrollPhotos(ctx, &fakeEmbedder{}, mock.NewMockStore(), jobs, 1, progressbar.NewOptions(1, progressbar.OptionSetWriter(io.Discard)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDuplicateWarnings(t *testing.T) {
	idx := database.NewReferenceIndex()
	idx.Build([]database.ReferenceEmbedding{
		{StudentID: "s1", Embedding: []float32{1, 0, 0}},
		{StudentID: "s2", Embedding: []float32{0.95, 0.05, 0}},
		{StudentID: "s3", Embedding: []float32{0, 0, 1}},
	})

	results := []enrollResult{
		{Job: enrollJob{Student: database.Student{ID: "s1", Name: "Asha"}}, Embedding: []float32{1, 0, 0}},
		{Job: enrollJob{Student: database.Student{ID: "s3", Name: "Meena"}}, Embedding: []float32{0, 0, 1}},
		{Job: enrollJob{Student: database.Student{ID: "s9"}}, Err: errors.New("boom")},
	}

	warnings := duplicateWarnings(idx, results, 0.5)
	require.Len(t, warnings, 1)
	assert.True(t, strings.HasPrefix(warnings[0], "Asha looks like student s2"), warnings[0])

	assert.Nil(t, duplicateWarnings(nil, results, 0.5))
}
