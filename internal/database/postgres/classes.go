package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/smart-attendance/internal/database"
)

const classColumns = `id, name, school_id, COALESCE(teacher_id, '')`

func scanClass(row interface{ Scan(...any) error }) (*database.ClassSection, error) {
	var c database.ClassSection
	if err := row.Scan(&c.ID, &c.Name, &c.SchoolID, &c.TeacherID); err != nil {
		return nil, err
	}
	return &c, nil
}

// GetClass retrieves a class by ID, nil if not found.
func (s *Store) GetClass(ctx context.Context, id string) (*database.ClassSection, error) {
	c, err := scanClass(s.pool.QueryRow(ctx, `SELECT `+classColumns+` FROM classes WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get class: %w", err)
	}
	return c, nil
}

// GetClassByTeacher returns the class assigned to a teacher, nil if none.
func (s *Store) GetClassByTeacher(ctx context.Context, teacherID string) (*database.ClassSection, error) {
	c, err := scanClass(s.pool.QueryRow(ctx,
		`SELECT `+classColumns+` FROM classes WHERE teacher_id = $1 ORDER BY name LIMIT 1`, teacherID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get class by teacher: %w", err)
	}
	return c, nil
}

// ListClasses returns the classes of a school ordered by name.
func (s *Store) ListClasses(ctx context.Context, schoolID string) ([]database.ClassSection, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+classColumns+` FROM classes WHERE school_id = $1 ORDER BY name, id`, schoolID)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	defer rows.Close()

	var out []database.ClassSection
	for rows.Next() {
		c, err := scanClass(rows)
		if err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate classes: %w", err)
	}
	return out, nil
}

// CreateClass inserts a class. The unique index on (school_id, LOWER(name)) rejects duplicates.
func (s *Store) CreateClass(ctx context.Context, class *database.ClassSection) error {
	if class.ID == "" {
		class.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO classes (id, name, school_id, teacher_id) VALUES ($1, $2, $3, NULLIF($4, ''))
	`, class.ID, class.Name, class.SchoolID, class.TeacherID)
	if isUniqueViolation(err) {
		return database.ErrDuplicateClass
	}
	if err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// AssignTeacher sets the teacher of a class.
func (s *Store) AssignTeacher(ctx context.Context, classID, teacherID string) error {
	res, err := s.pool.Exec(ctx,
		`UPDATE classes SET teacher_id = NULLIF($2, '') WHERE id = $1`, classID, teacherID)
	if err != nil {
		return fmt.Errorf("assign teacher: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("class %s not found", classID)
	}
	return nil
}

// DeleteClass removes a class. Students go with it through ON DELETE CASCADE.
func (s *Store) DeleteClass(ctx context.Context, id string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}

	// Drop the removed students from the graph.
	if idx := s.ReferenceIndex(); idx != nil {
		if err := s.RebuildReferenceIndex(ctx); err != nil {
			logger.Warn("reference index rebuild failed", "class_id", id, "error", err)
		}
	}
	return nil
}
