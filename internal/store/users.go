package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/andrewcho-dev/opsconductor-monitor-sub001/internal/models"
)

const userColumns = `id, username, email, password_hash, role, is_active, created_at, last_login`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.IsActive, &u.CreatedAt, &u.LastLogin)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

// InsertUser creates an account. Duplicate usernames return ErrDuplicate.
func (s *Store) InsertUser(ctx context.Context, u *models.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, username, email, password_hash, role, is_active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.IsActive, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UpdateUser replaces the mutable fields of an account.
func (s *Store) UpdateUser(ctx context.Context, u *models.User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET email=$2, password_hash=$3, role=$4, is_active=$5
		WHERE id=$1`,
		u.ID, u.Email, u.PasswordHash, u.Role, u.IsActive)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes an account.
func (s *Store) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetUser fetches an account by id.
func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByUsername fetches an account by its unique username.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// ListUsers returns all accounts ordered by username.
func (s *Store) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// TouchLastLogin records a successful authentication.
func (s *Store) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("touch last login: %w", err)
	}
	return nil
}

// CountUsers reports the number of accounts; used for first-start bootstrap.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
