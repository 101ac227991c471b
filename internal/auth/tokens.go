package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// IssueDocumentToken mints a short-lived token scoped to one document,
// handed to the realtime editor to open its socket.
func IssueDocumentToken(secret string, userID, documentID uuid.UUID, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":         userID.String(),
		"document_id": documentID.String(),
		"exp":         time.Now().Add(ttl).Unix(),
	})
	return token.SignedString([]byte(secret))
}
