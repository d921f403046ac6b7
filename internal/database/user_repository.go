package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository answers identity and friendship queries from postgres.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) UserExists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking user existence: %w", err)
	}
	return exists, nil
}

// FriendsOf returns the ids on the other side of the user's friendship rows.
// Friendships are stored symmetrically, one row per direction.
func (r *UserRepository) FriendsOf(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT friend_id FROM user_friendships WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying friendships: %w", err)
	}
	defer rows.Close()

	var friends []string
	for rows.Next() {
		var friendID string
		if err := rows.Scan(&friendID); err != nil {
			return nil, fmt.Errorf("scanning friendship row: %w", err)
		}
		friends = append(friends, friendID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friendship rows: %w", err)
	}
	return friends, nil
}
