package services

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	qrcode "github.com/skip2/go-qrcode"

	"stashHabitAPI/internal/types/share"
)

// ShareService issues and resolves public share links for goals. A link is a
// signed JWT carrying the goal id; resolving it requires no authentication.
type ShareService struct {
	db      *pgxpool.Pool
	secret  []byte
	baseURL string
}

const shareTokenTTL = 30 * 24 * time.Hour

func NewShareService(db *pgxpool.Pool, secret, baseURL string) *ShareService {
	return &ShareService{
		db:      db,
		secret:  []byte(secret),
		baseURL: baseURL,
	}
}

type shareClaims struct {
	GoalID string `json:"goal_id"`
	jwt.RegisteredClaims
}

func (s *ShareService) CreateShareLink(ctx context.Context, clerkID string, goalID uuid.UUID) (*share.ShareLinkResponse, error) {
	if len(s.secret) == 0 {
		return nil, fmt.Errorf("share links are not configured")
	}

	var ownerID uuid.UUID
	err := s.db.QueryRow(ctx, `
		SELECT g.user_id
		FROM goals g
		JOIN users u ON u.id = g.user_id
		WHERE g.id = $1 AND u.clerk_id = $2
	`, goalID, clerkID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("goal not found")
		}
		return nil, fmt.Errorf("failed to verify goal ownership: %w", err)
	}

	expiresAt := time.Now().Add(shareTokenTTL)
	claims := shareClaims{
		GoalID: goalID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   ownerID.String(),
			Issuer:    "stashHabitAPI",
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign share token: %w", err)
	}

	shareURL := fmt.Sprintf("%s/shared/%s", s.baseURL, token)

	png, err := qrcode.Encode(shareURL, qrcode.Medium, 256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	return &share.ShareLinkResponse{
		ShareURL:  shareURL,
		Token:     token,
		QRCode:    base64.StdEncoding.EncodeToString(png),
		ExpiresAt: expiresAt,
	}, nil
}

// ResolveShareLink validates the token and returns the public snapshot of the
// shared goal. Archived and deleted goals resolve to not found.
func (s *ShareService) ResolveShareLink(ctx context.Context, token string) (*share.SharedGoalResponse, error) {
	goalID, err := s.parseToken(token)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT g.name, g.cadence, g.target_amount, g.current_streak, g.longest_streak,
			   g.deadline, g.is_archived, u.username,
			   COALESCE((SELECT SUM(c.amount) FROM contributions c WHERE c.goal_id = g.id), 0)
		FROM goals g
		JOIN users u ON u.id = g.user_id
		WHERE g.id = $1
	`

	var (
		resp       share.SharedGoalResponse
		deadline   time.Time
		isArchived bool
	)
	err = s.db.QueryRow(ctx, query, goalID).Scan(
		&resp.GoalName, &resp.Cadence, &resp.TargetAmount,
		&resp.CurrentStreak, &resp.LongestStreak,
		&deadline, &isArchived, &resp.OwnerName, &resp.TotalSaved,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("shared goal not found")
		}
		return nil, fmt.Errorf("failed to load shared goal: %w", err)
	}

	if isArchived {
		return nil, fmt.Errorf("shared goal not found")
	}

	if resp.TargetAmount > 0 {
		resp.PercentSaved = float64(resp.TotalSaved) / float64(resp.TargetAmount) * 100
		if resp.PercentSaved > 100 {
			resp.PercentSaved = 100
		}
	}
	resp.DaysToDeadline = int(deadline.Sub(time.Now()).Hours() / 24)

	return &resp, nil
}

func (s *ShareService) parseToken(token string) (uuid.UUID, error) {
	claims := &shareClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, fmt.Errorf("invalid share token")
	}

	goalID, err := uuid.Parse(claims.GoalID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid share token")
	}
	return goalID, nil
}
