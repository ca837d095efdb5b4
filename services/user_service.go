package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"stashHabitAPI/internal/types/user"
)

type UserService struct {
	db *pgxpool.Pool
}

func NewUserService(db *pgxpool.Pool) *UserService {
	return &UserService{db: db}
}

const userColumns = `id, clerk_id, email, username, first_name, last_name,
	COALESCE(image_url, ''), email_verified, currency, created_at, updated_at`

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(
		&u.ID, &u.ClerkID, &u.Email, &u.Username, &u.FirstName, &u.LastName,
		&u.ImageURL, &u.EmailVerified, &u.Currency, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CreateUser inserts a user row for a Clerk account. Webhook deliveries can
// repeat, so the insert upserts on clerk_id.
func (s *UserService) CreateUser(ctx context.Context, req *user.CreateUserRequest) (*user.User, error) {
	if req.ClerkID == "" || req.Email == "" {
		return nil, fmt.Errorf("clerk_id and email are required")
	}

	query := fmt.Sprintf(`
		INSERT INTO users (clerk_id, email, username, first_name, last_name, image_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (clerk_id) DO UPDATE SET
			email = EXCLUDED.email,
			updated_at = NOW()
		RETURNING %s
	`, userColumns)

	u, err := scanUser(s.db.QueryRow(ctx, query,
		req.ClerkID, req.Email, req.Username, req.FirstName, req.LastName, req.ImageURL))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Printf("Created user %s (clerk_id %s)", u.ID, u.ClerkID)
	return u, nil
}

func (s *UserService) GetUserByClerkID(ctx context.Context, clerkID string) (*user.User, error) {
	query := fmt.Sprintf("SELECT %s FROM users WHERE clerk_id = $1", userColumns)

	u, err := scanUser(s.db.QueryRow(ctx, query, clerkID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

func (s *UserService) UpdateProfileByClerkID(ctx context.Context, clerkID string, req *user.UpdateProfileRequest) (*user.User, error) {
	query := fmt.Sprintf(`
		UPDATE users
		SET username = COALESCE(NULLIF($2, ''), username),
			first_name = $3,
			last_name = $4,
			image_url = COALESCE(NULLIF($5, ''), image_url),
			currency = COALESCE(NULLIF($6, ''), currency),
			updated_at = NOW()
		WHERE clerk_id = $1
		RETURNING %s
	`, userColumns)

	u, err := scanUser(s.db.QueryRow(ctx, query,
		clerkID, req.Username, req.FirstName, req.LastName, req.ImageURL, req.Currency))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found")
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return u, nil
}

func (s *UserService) UpdateEmailVerification(ctx context.Context, clerkID string, verified bool) error {
	query := `UPDATE users SET email_verified = $2, updated_at = NOW() WHERE clerk_id = $1`
	_, err := s.db.Exec(ctx, query, clerkID, verified)
	if err != nil {
		return fmt.Errorf("failed to update email verification: %w", err)
	}
	return nil
}

// DeleteUserByClerkID removes the user and, through FK cascades, their goals,
// contributions, notifications and achievements.
func (s *UserService) DeleteUserByClerkID(ctx context.Context, clerkID string) error {
	result, err := s.db.Exec(ctx, "DELETE FROM users WHERE clerk_id = $1", clerkID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("user not found")
	}

	log.Printf("Deleted user with clerk_id %s", clerkID)
	return nil
}
