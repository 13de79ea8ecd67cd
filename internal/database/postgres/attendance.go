package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/kozaktomas/smart-attendance/internal/database"
)

// QueryAttendance returns the records matching every set field of the filter,
// ordered by date then student.
func (s *Store) QueryAttendance(ctx context.Context, filter database.AttendanceFilter) ([]database.AttendanceRecord, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if filter.ClassID != "" {
		add("s.class_id = $%d", filter.ClassID)
	}
	if filter.StudentID != "" {
		add("a.student_id = $%d", filter.StudentID)
	}
	if filter.Date != "" {
		add("a.date = $%d", filter.Date)
	}
	if filter.Range != nil {
		add("a.date >= $%d", filter.Range.Start)
		add("a.date <= $%d", filter.Range.End)
	}

	query := `
		SELECT a.id, a.student_id, to_char(a.date, 'YYYY-MM-DD'), a.status, a.method, a.confidence
		FROM attendance a
		JOIN students s ON s.id = a.student_id`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY a.date, a.student_id"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var out []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		if err := rows.Scan(&rec.ID, &rec.StudentID, &rec.Date, &rec.Status, &rec.Method, &rec.Confidence); err != nil {
			return nil, fmt.Errorf("scan attendance: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return out, nil
}

// SaveAttendance upserts a batch keyed by (student_id, date) in one transaction.
// Any failing record rolls back the whole batch.
func (s *Store) SaveAttendance(ctx context.Context, records []database.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attendance (id, student_id, date, status, method, confidence)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (student_id, date) DO UPDATE SET
			status = EXCLUDED.status,
			method = EXCLUDED.method,
			confidence = EXCLUDED.confidence,
			updated_at = NOW()
	`)
	if err != nil {
		return fmt.Errorf("prepare attendance upsert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		id := rec.ID
		if id == "" {
			id = newID()
		}
		if _, err := stmt.ExecContext(ctx, id, rec.StudentID, rec.Date,
			string(rec.Status), string(rec.Method), rec.Confidence); err != nil {
			return fmt.Errorf("save record %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance: %w", err)
	}
	return nil
}
