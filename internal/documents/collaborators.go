package documents

import (
	"context"

	"github.com/google/uuid"

	"github.com/offerflow/offerflow-backend/internal/users"
)

// Notifier delivers transition notifications to the counterparty. Delivery
// is best-effort: a failed notification never fails the transition.
type Notifier interface {
	NotifyAction(ctx context.Context, from users.UserProfile, to users.UserProfile, action ActionType, link string) error
	NotifyEmail(ctx context.Context, from users.UserProfile, email string, action ActionType, link string) error
}

// TokenIssuer backs deferred invitations: a single-use, time-limited token
// scoped to one document.
type TokenIssuer interface {
	Issue(ctx context.Context, documentID uuid.UUID) (string, error)
	Redeem(ctx context.Context, documentID uuid.UUID, token string) error
}
