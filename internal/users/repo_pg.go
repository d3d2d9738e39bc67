package users

import (
	"context"
	"database/sql"
	"errors"
)

type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Upsert(ctx context.Context, user User) error {
	const query = `
INSERT INTO users (id, email, name, created_at, updated_at)
VALUES ($1, $2, $3, now(), now())
ON CONFLICT (id) DO UPDATE SET
  email = COALESCE(EXCLUDED.email, users.email),
  name = COALESCE(EXCLUDED.name, users.name),
  updated_at = now()`
	_, err := r.DB.ExecContext(ctx, query,
		user.ID,
		nullableString(user.Email),
		nullableString(user.Name),
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID string) (User, error) {
	const query = `
SELECT id, email, name, role, created_at, updated_at
FROM users
WHERE id = $1
LIMIT 1`
	var user User
	var email sql.NullString
	var name sql.NullString
	err := r.DB.QueryRowContext(ctx, query, userID).Scan(
		&user.ID,
		&email,
		&name,
		&user.Role,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	if email.Valid {
		user.Email = email.String
	}
	if name.Valid {
		user.Name = name.String
	}
	return user, nil
}

func (r *PGRepo) SetRole(ctx context.Context, userID, role string) error {
	const query = `
INSERT INTO users (id, role, created_at, updated_at)
VALUES ($1, $2, now(), now())
ON CONFLICT (id) DO UPDATE SET
  role = EXCLUDED.role,
  updated_at = now()`
	_, err := r.DB.ExecContext(ctx, query, userID, role)
	return err
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
