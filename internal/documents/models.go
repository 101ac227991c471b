package documents

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/offerflow/offerflow-backend/internal/users"
)

// ContentType identifies the stored representation of a document's content.
type ContentType string

const (
	ContentJSON ContentType = "application/json"
	ContentHTML ContentType = "text/html"
	ContentPDF  ContentType = "application/pdf"
)

func (c ContentType) Suffix() string {
	switch c {
	case ContentHTML:
		return "html"
	case ContentPDF:
		return "pdf"
	default:
		return "json"
	}
}

// ActionType enumerates workflow transitions. ActionDelete is display-only:
// it is offered to the author of an un-submitted draft but never persisted.
type ActionType string

const (
	// actions that only carry a from_user
	ActionCreate  ActionType = "create"
	ActionCounter ActionType = "counter"
	ActionReview  ActionType = "review"
	ActionDelete  ActionType = "delete"

	// actions that carry a from_user and a to_user
	ActionSubmit        ActionType = "submit"
	ActionRequestReview ActionType = "request_review"
	ActionAccept        ActionType = "accept"
	ActionDecline       ActionType = "decline"
	ActionSign          ActionType = "sign"
	ActionShare         ActionType = "share"
)

// RequiresRecipient reports whether the action type is bilateral.
func (t ActionType) RequiresRecipient() bool {
	switch t {
	case ActionSubmit, ActionRequestReview, ActionAccept, ActionDecline, ActionSign, ActionShare:
		return true
	}
	return false
}

// Persistable reports whether the action type may be written to the log.
func (t ActionType) Persistable() bool {
	return t != ActionDelete
}

// Document is one versioned snapshot of a negotiable document. RootID points
// at the first document in its negotiation chain; a root points at itself.
type Document struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	Title      string     `json:"title" db:"title"`
	RootID     uuid.UUID  `json:"root_id" db:"root_id"`
	PropertyID *uuid.UUID `json:"property_id,omitempty" db:"property_id"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// IsRoot reports whether the document starts its own lineage.
func (d *Document) IsRoot() bool {
	return d.RootID == d.ID
}

// FilePath derives the S3 key for the document's content blob.
func (d *Document) FilePath(contentType ContentType) string {
	title := strings.ToLower(strings.ReplaceAll(d.Title, " ", "_"))
	return fmt.Sprintf("%s/%s.%s", d.ID, title, contentType.Suffix())
}

// Action is one append-only entry in a document's transition log. Entries
// are immutable after creation except for the one-time recipient binding
// used by deferred invitations.
type Action struct {
	ID         uuid.UUID  `json:"id" db:"id"`
	DocumentID uuid.UUID  `json:"document_id" db:"document_id"`
	FromUserID uuid.UUID  `json:"from_user_id" db:"from_user_id"`
	ToUserID   *uuid.UUID `json:"to_user_id,omitempty" db:"to_user_id"`
	Type       ActionType `json:"type" db:"type"`
	Timestamp  time.Time  `json:"timestamp" db:"timestamp"`
}

// ActionState is an action joined with its party profiles, resolved once per
// request so the decision table never re-reads the log mid-transition.
type ActionState struct {
	Action Action
	From   users.UserProfile
	To     *users.UserProfile
}
