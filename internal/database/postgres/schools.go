package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/smart-attendance/internal/database"
)

// GetSchool retrieves a school by ID, nil if not found.
func (s *Store) GetSchool(ctx context.Context, id string) (*database.School, error) {
	var school database.School
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, principal_name, contact_email, contact_phone, created_at
		FROM schools WHERE id = $1
	`, id).Scan(&school.ID, &school.Name, &school.PrincipalName, &school.ContactEmail,
		&school.ContactPhone, &school.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get school: %w", err)
	}
	return &school, nil
}

// ListSchools returns all schools ordered by name.
func (s *Store) ListSchools(ctx context.Context) ([]database.School, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, principal_name, contact_email, contact_phone, created_at
		FROM schools ORDER BY name, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	defer rows.Close()

	var out []database.School
	for rows.Next() {
		var school database.School
		if err := rows.Scan(&school.ID, &school.Name, &school.PrincipalName, &school.ContactEmail,
			&school.ContactPhone, &school.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan school: %w", err)
		}
		out = append(out, school)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schools: %w", err)
	}
	return out, nil
}

// SaveSchool inserts or updates a school.
func (s *Store) SaveSchool(ctx context.Context, school *database.School) error {
	if school.ID == "" {
		school.ID = newID()
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO schools (id, name, principal_name, contact_email, contact_phone)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			principal_name = EXCLUDED.principal_name,
			contact_email = EXCLUDED.contact_email,
			contact_phone = EXCLUDED.contact_phone
		RETURNING created_at
	`, school.ID, school.Name, school.PrincipalName, school.ContactEmail, school.ContactPhone).
		Scan(&school.CreatedAt)
	if err != nil {
		return fmt.Errorf("save school: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID, nil if not found.
func (s *Store) GetUser(ctx context.Context, id string) (*database.User, error) {
	var u database.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, username, password_hash, role, school_id FROM users WHERE id = $1
	`, id).Scan(&u.ID, &u.Name, &u.Username, &u.PasswordHash, &u.Role, &u.SchoolID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// ListUsers returns the users of a school ordered by name.
func (s *Store) ListUsers(ctx context.Context, schoolID string) ([]database.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, username, password_hash, role, school_id
		FROM users WHERE school_id = $1 ORDER BY name, id
	`, schoolID)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var out []database.User
	for rows.Next() {
		var u database.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Username, &u.PasswordHash, &u.Role, &u.SchoolID); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

// SaveUser inserts or updates a user.
func (s *Store) SaveUser(ctx context.Context, user *database.User) error {
	if user.ID == "" {
		user.ID = newID()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, username, password_hash, role, school_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			username = EXCLUDED.username,
			password_hash = EXCLUDED.password_hash,
			role = EXCLUDED.role,
			school_id = EXCLUDED.school_id
	`, user.ID, user.Name, user.Username, user.PasswordHash, string(user.Role), user.SchoolID)
	if isUniqueViolation(err) {
		return database.ErrDuplicateUsername
	}
	if err != nil {
		return fmt.Errorf("save user: %w", err)
	}
	return nil
}
