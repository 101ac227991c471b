package users

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UserProfile is the identity attached to workflow actions. The attorney
// flag gates review-related transitions.
type UserProfile struct {
	ID         uuid.UUID `json:"id" db:"id"`
	FirstName  string    `json:"first_name" db:"first_name"`
	LastName   string    `json:"last_name" db:"last_name"`
	Email      string    `json:"email" db:"email"`
	IsAttorney bool      `json:"is_attorney" db:"is_attorney"`
	JoinDate   time.Time `json:"join_date" db:"join_date"`
}

// FullName returns "First Last", or empty when either part is missing.
func (p *UserProfile) FullName() string {
	if p.FirstName != "" && p.LastName != "" {
		return fmt.Sprintf("%s %s", p.FirstName, p.LastName)
	}
	return ""
}

// Preferences holds a user's email opt-ins. A user with no preferences row
// has not completed onboarding and receives no notification email.
type Preferences struct {
	UserProfileID uuid.UUID `json:"user_profile_id" db:"user_profile_id"`
	ProductNews   bool      `json:"product_news" db:"product_news"`
	Resources     bool      `json:"resources" db:"resources"`
}
