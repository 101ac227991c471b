package tokens

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidToken is returned on redeeming a token that is unknown,
// expired, or already used.
var ErrInvalidToken = errors.New("invalid or expired token")

type Service struct {
	repo   Repository
	ttl    time.Duration
	logger *zap.Logger
}

func NewService(repo Repository, ttl time.Duration, logger *zap.Logger) *Service {
	return &Service{repo: repo, ttl: ttl, logger: logger}
}

// Issue creates a fresh invitation token for the document.
func (s *Service) Issue(ctx context.Context, documentID uuid.UUID) (string, error) {
	now := time.Now()
	token := &DocumentToken{
		ID:          uuid.New(),
		Token:       strings.ReplaceAll(uuid.New().String(), "-", ""),
		DocumentID:  documentID,
		DateCreated: now,
		DateExpires: now.Add(s.ttl),
	}
	if err := s.repo.Create(ctx, token); err != nil {
		return "", err
	}
	return token.Token, nil
}

// Redeem consumes a token; a token can be redeemed exactly once.
func (s *Service) Redeem(ctx context.Context, documentID uuid.UUID, token string) error {
	found, err := s.repo.GetValid(ctx, documentID, token)
	if err != nil {
		return err
	}
	if found == nil {
		return ErrInvalidToken
	}
	return s.repo.MarkUsed(ctx, found.ID)
}

// CleanupExpired removes expired tokens; run from the cleanup worker.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	count, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("expired document tokens removed", zap.Int64("count", count))
	}
	return count, nil
}
