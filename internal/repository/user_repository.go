package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/csvflow/ingestd/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository wires a repository backed by pgxpool.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (domain.User, error) {
	var user domain.User
	err := r.pool.QueryRow(
		ctx,
		`SELECT id, username, created_at FROM users WHERE username = $1`,
		username,
	).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("failed to get user: %w", err)
	}

	return user, nil
}

func (r *userRepository) First(ctx context.Context) (domain.User, error) {
	var user domain.User
	err := r.pool.QueryRow(
		ctx,
		`SELECT id, username, created_at FROM users ORDER BY created_at LIMIT 1`,
	).Scan(&user.ID, &user.Username, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, ErrNotFound
		}
		return domain.User{}, fmt.Errorf("failed to get first user: %w", err)
	}

	return user, nil
}
