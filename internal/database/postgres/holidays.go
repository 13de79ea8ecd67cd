package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/smart-attendance/internal/database"
)

// ListHolidays returns the holidays of a school ordered by date.
func (s *Store) ListHolidays(ctx context.Context, schoolID string) ([]database.Holiday, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, to_char(date, 'YYYY-MM-DD'), description, school_id
		FROM holidays WHERE school_id = $1 ORDER BY date
	`, schoolID)
	if err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	defer rows.Close()

	var out []database.Holiday
	for rows.Next() {
		var h database.Holiday
		if err := rows.Scan(&h.ID, &h.Date, &h.Description, &h.SchoolID); err != nil {
			return nil, fmt.Errorf("scan holiday: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate holidays: %w", err)
	}
	return out, nil
}

// SetHoliday upserts a holiday keyed by (school_id, date). An existing row keeps its ID.
func (s *Store) SetHoliday(ctx context.Context, holiday *database.Holiday) error {
	id := holiday.ID
	if id == "" {
		id = newID()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO holidays (id, date, description, school_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (school_id, date) DO UPDATE SET description = EXCLUDED.description
		RETURNING id
	`, id, holiday.Date, holiday.Description, holiday.SchoolID).Scan(&holiday.ID)
	if err != nil {
		return fmt.Errorf("set holiday: %w", err)
	}
	return nil
}

// RemoveHoliday deletes the holiday of a school on date. Missing rows are ignored.
func (s *Store) RemoveHoliday(ctx context.Context, schoolID, date string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM holidays WHERE school_id = $1 AND date = $2`, schoolID, date); err != nil {
		return fmt.Errorf("remove holiday: %w", err)
	}
	return nil
}
