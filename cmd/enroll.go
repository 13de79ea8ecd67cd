package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kozaktomas/smart-attendance/internal/constants"
	"github.com/kozaktomas/smart-attendance/internal/database"
	"github.com/kozaktomas/smart-attendance/internal/facematch"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll reference faces of a class from a photo directory",
	Long: `Compute and store the reference face embedding of every student in a class
from a directory of photos. Each photo is matched to a student by file name:
either the student's name ("Asha_Devi.jpg", case and diacritics ignored) or
the roll number ("01.jpg").

Students without recognition consent are skipped. Students that already have
a reference embedding are skipped unless --force is given. After enrollment
every new embedding is checked against the other students of the school and
near duplicates are reported.

Examples:
  # Enroll class photos with 4 parallel workers
  attendance enroll --class 3b1f... --dir ./photos/5A

  # Replace existing reference embeddings
  attendance enroll --class 3b1f... --dir ./photos/5A --force`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("class", "", "Class ID (required)")
	enrollCmd.Flags().String("dir", "", "Directory with one photo per student (required)")
	enrollCmd.Flags().Int("concurrency", constants.WorkerPoolSize, "Number of parallel workers")
	enrollCmd.Flags().Bool("force", false, "Re-enroll students that already have a reference embedding")
}

// photoExtensions are the file types picked up from the photo directory.
var photoExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".bmp"}

// referenceEmbedder computes the reference embedding of an enrollment photo.
type referenceEmbedder interface {
	ReferenceEmbedding(ctx context.Context, photo []byte) ([]float32, facematch.BBox, error)
}

// enrollJob pairs a photo with the student it belongs to.
type enrollJob struct {
	Path    string
	Student database.Student
}

// enrollResult is the outcome of one job.
type enrollResult struct {
	Job       enrollJob
	Embedding []float32
	Err       error
}

// skippedPhoto is a photo that was not enrolled before any embedding was computed.
type skippedPhoto struct {
	Path   string
	Reason string
}

// listPhotos returns the image files of dir sorted by name.
func listPhotos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read photo directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(photoExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	slices.Sort(paths)
	return paths, nil
}

// matchPhotos assigns photos to students by normalized name, falling back to roll number.
// Names shared by two students of the class only match by roll number.
func matchPhotos(paths []string, students []database.Student, force bool) ([]enrollJob, []skippedPhoto) {
	byName := make(map[string]int, len(students))
	ambiguous := make(map[string]bool)
	byRoll := make(map[string]int, len(students))
	for i := range students {
		name := facematch.NormalizePersonName(students[i].Name)
		if _, seen := byName[name]; seen {
			ambiguous[name] = true
		}
		byName[name] = i
		if roll := facematch.NormalizePersonName(students[i].RollNo); roll != "" {
			byRoll[roll] = i
		}
	}

	var (
		jobs    []enrollJob
		skipped []skippedPhoto
		claimed = make(map[string]string)
	)
	for _, path := range paths {
		key := facematch.NameFromFilename(path)
		idx, ok := byName[key]
		if ok && ambiguous[key] {
			ok = false
		}
		if !ok {
			idx, ok = byRoll[key]
		}
		if !ok {
			reason := "no student with this name or roll number"
			if ambiguous[key] {
				reason = "name is shared by several students, use the roll number"
			}
			skipped = append(skipped, skippedPhoto{Path: path, Reason: reason})
			continue
		}

		s := students[idx]
		switch {
		case claimed[s.ID] != "":
			skipped = append(skipped, skippedPhoto{Path: path, Reason: "student already matched by " + filepath.Base(claimed[s.ID])})
			continue
		case !s.ConsentGiven:
			skipped = append(skipped, skippedPhoto{Path: path, Reason: s.Name + " has not consented to face recognition"})
			continue
		case s.HasReference() && !force:
			skipped = append(skipped, skippedPhoto{Path: path, Reason: s.Name + " is already enrolled"})
			continue
		}
		claimed[s.ID] = path
		jobs = append(jobs, enrollJob{Path: path, Student: s})
	}
	return jobs, skipped
}

// enrollPhotos runs the jobs on a bounded worker pool. A failed photo does not stop the
// others; only a canceled context aborts the run.
func enrollPhotos(ctx context.Context, embedder referenceEmbedder, store database.StudentWriter,
	jobs []enrollJob, concurrency int, bar *progressbar.ProgressBar) ([]enrollResult, error) {
	results := make([]enrollResult, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for i, job := range jobs {
		g.Go(func() error {
			defer func() { _ = bar.Add(1) }()
			results[i] = enrollOne(gctx, embedder, store, job)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func enrollOne(ctx context.Context, embedder referenceEmbedder, store database.StudentWriter, job enrollJob) enrollResult {
	res := enrollResult{Job: job}

	photo, err := os.ReadFile(job.Path)
	if err != nil {
		res.Err = fmt.Errorf("reading photo: %w", err)
		return res
	}
	emb, _, err := embedder.ReferenceEmbedding(ctx, photo)
	if err != nil {
		res.Err = fmt.Errorf("computing embedding: %w", err)
		return res
	}
	if err := store.SetReference(ctx, job.Student.ID, emb, photo); err != nil {
		res.Err = fmt.Errorf("saving reference: %w", err)
		return res
	}
	res.Embedding = emb
	return res
}

// duplicateWarnings looks up every new embedding in the reference graph and reports other
// students closer than threshold.
func duplicateWarnings(idx *database.ReferenceIndex, results []enrollResult, threshold float64) []string {
	if idx == nil {
		return nil
	}
	var warnings []string
	for _, r := range results {
		if r.Err != nil || len(r.Embedding) == 0 {
			continue
		}
		hits, err := idx.Within(r.Embedding, constants.DuplicateSearchK, threshold, r.Job.Student.ID)
		if err != nil {
			continue
		}
		for _, h := range hits {
			warnings = append(warnings, fmt.Sprintf("%s looks like student %s (distance %.3f)",
				r.Job.Student.Name, h.StudentID, h.Distance))
		}
	}
	return warnings
}

func newEnrollBar(n int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(n,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Enrolling faces"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
	)
}

func runEnroll(cmd *cobra.Command, args []string) error {
	if err := requireFlags(cmd, "class", "dir"); err != nil {
		return err
	}
	concurrency := mustGetInt(cmd, "concurrency")
	force := mustGetBool(cmd, "force")
	out := cmd.OutOrStdout()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, store, err := connect(ctx)
	if err != nil {
		return err
	}
	defer closeStore(store)

	class, err := loadClass(ctx, store, mustGetString(cmd, "class"))
	if err != nil {
		return err
	}
	students, err := store.ListStudents(ctx, class.ID)
	if err != nil {
		return fmt.Errorf("failed to list students: %w", err)
	}
	paths, err := listPhotos(mustGetString(cmd, "dir"))
	if err != nil {
		return err
	}

	jobs, skipped := matchPhotos(paths, students, force)
	fmt.Fprintf(out, "Photos found: %d, to enroll: %d, skipped: %d\n", len(paths), len(jobs), len(skipped))
	for _, s := range skipped {
		fmt.Fprintf(out, "  skip %s: %s\n", filepath.Base(s.Path), s.Reason)
	}
	if len(jobs) == 0 {
		fmt.Fprintln(out, "Nothing to enroll.")
		return nil
	}

	client := newEmbeddingClient(cfg)
	bar := newEnrollBar(len(jobs), cmd.ErrOrStderr())
	results, err := enrollPhotos(ctx, client, store, jobs, concurrency, bar)
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("enrollment interrupted: %w", err)
	}

	var successCount, errorCount int
	for _, r := range results {
		if r.Err != nil {
			errorCount++
			fmt.Fprintf(out, "  failed %s (%s): %v\n", filepath.Base(r.Job.Path), r.Job.Student.Name, r.Err)
			continue
		}
		successCount++
	}

	if err := store.RebuildReferenceIndex(ctx); err != nil {
		fmt.Fprintf(out, "Warning: duplicate check skipped: %v\n", err)
	} else {
		for _, w := range duplicateWarnings(store.ReferenceIndex(), results, cfg.Recognition.Threshold) {
			fmt.Fprintf(out, "  warning: %s\n", w)
		}
		if err := store.SaveReferenceIndex(); err != nil {
			fmt.Fprintf(out, "Warning: failed to save reference HNSW index: %v\n", err)
		}
	}

	fmt.Fprintf(out, "\nCompleted: %d enrolled, %d errors\n", successCount, errorCount)
	return nil
}
