package tokens

import (
	"time"

	"github.com/google/uuid"
)

// DocumentToken is a single-use, time-limited invitation scoped to one
// document. The token value travels in the invite link; redeeming it marks
// it used.
type DocumentToken struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	Token       string     `json:"token" db:"token"`
	DocumentID  uuid.UUID  `json:"document_id" db:"document_id"`
	DateCreated time.Time  `json:"date_created" db:"date_created"`
	DateExpires time.Time  `json:"date_expires" db:"date_expires"`
	UsedAt      *time.Time `json:"used_at,omitempty" db:"used_at"`
}

// IsValid reports whether the token is unused and unexpired.
func (t *DocumentToken) IsValid(now time.Time) bool {
	return t.UsedAt == nil && t.DateExpires.After(now)
}
