package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/smart-attendance/internal/database"
)

const studentColumns = `id, class_id, school_id, name, roll_no, father_name, village, photo,
	face_descriptor, consent_given`

func scanStudent(row interface{ Scan(...any) error }) (*database.Student, error) {
	var st database.Student
	var vec *pgvector.Vector
	if err := row.Scan(&st.ID, &st.ClassID, &st.SchoolID, &st.Name, &st.RollNo, &st.FatherName,
		&st.Village, &st.Photo, &vec, &st.ConsentGiven); err != nil {
		return nil, err
	}
	if vec != nil {
		st.FaceDescriptor = vec.Slice()
	}
	return &st, nil
}

// GetStudent retrieves a student by ID, nil if not found.
func (s *Store) GetStudent(ctx context.Context, id string) (*database.Student, error) {
	st, err := scanStudent(s.pool.QueryRow(ctx, `SELECT `+studentColumns+` FROM students WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	return st, nil
}

// ListStudents returns the students of a class ordered by roll number.
func (s *Store) ListStudents(ctx context.Context, classID string) ([]database.Student, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+studentColumns+` FROM students WHERE class_id = $1 ORDER BY roll_no, id`, classID)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var out []database.Student
	for rows.Next() {
		st, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		out = append(out, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate students: %w", err)
	}
	return out, nil
}

// ListReferenceEmbeddings returns the reference embeddings of enrolled students.
// An empty classID returns every class.
func (s *Store) ListReferenceEmbeddings(ctx context.Context, classID string) ([]database.ReferenceEmbedding, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, class_id, face_descriptor
		FROM students
		WHERE face_descriptor IS NOT NULL AND ($1::text = '' OR class_id = $1)
		ORDER BY id
	`, classID)
	if err != nil {
		return nil, fmt.Errorf("list reference embeddings: %w", err)
	}
	defer rows.Close()

	var out []database.ReferenceEmbedding
	for rows.Next() {
		var ref database.ReferenceEmbedding
		var vec pgvector.Vector
		if err := rows.Scan(&ref.StudentID, &ref.ClassID, &vec); err != nil {
			return nil, fmt.Errorf("scan reference embedding: %w", err)
		}
		ref.Embedding = vec.Slice()
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reference embeddings: %w", err)
	}
	return out, nil
}

// SaveStudent inserts or updates a student's details. The reference embedding and photo
// are only written by SetReference.
func (s *Store) SaveStudent(ctx context.Context, student *database.Student) error {
	if student.ID == "" {
		student.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO students (id, class_id, school_id, name, roll_no, father_name, village, consent_given)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			class_id = EXCLUDED.class_id,
			school_id = EXCLUDED.school_id,
			name = EXCLUDED.name,
			roll_no = EXCLUDED.roll_no,
			father_name = EXCLUDED.father_name,
			village = EXCLUDED.village,
			consent_given = EXCLUDED.consent_given
	`, student.ID, student.ClassID, student.SchoolID, student.Name, student.RollNo,
		student.FatherName, student.Village, student.ConsentGiven)
	if err != nil {
		return fmt.Errorf("save student: %w", err)
	}
	return nil
}

// SetReference stores the reference embedding and photo of a student and refreshes the graph.
// A nil photo keeps the stored one.
func (s *Store) SetReference(ctx context.Context, studentID string, embedding []float32, photo []byte) error {
	var vec any
	if len(embedding) > 0 {
		vec = pgvector.NewVector(embedding)
	}

	res, err := s.pool.Exec(ctx, `
		UPDATE students SET face_descriptor = $2, photo = COALESCE($3, photo) WHERE id = $1
	`, studentID, vec, photo)
	if err != nil {
		return fmt.Errorf("set reference: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("student %s not found", studentID)
	}

	if idx := s.ReferenceIndex(); idx != nil {
		if len(embedding) == 0 {
			idx.Remove(studentID)
		} else {
			idx.Add(database.ReferenceEmbedding{StudentID: studentID, Embedding: embedding})
		}
	}
	return nil
}
