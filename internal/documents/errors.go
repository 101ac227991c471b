package documents

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrDocumentNotFound is returned when a document id does not resolve,
	// or the caller has no access to it.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrNoRecipient is returned when a bilateral transition has no
	// resolvable or supplied counterparty.
	ErrNoRecipient = errors.New("no recipient specified")

	// ErrInvalidInvitation is returned when an invitation token is missing,
	// expired, or already redeemed.
	ErrInvalidInvitation = errors.New("invalid or expired invitation token")

	// ErrNoReviewerAvailable is returned when a review is requested and no
	// attorney profile exists.
	ErrNoReviewerAvailable = errors.New("no attorneys available")

	// ErrNotEditable is returned when a write URL is requested by someone
	// other than the author of the latest draft.
	ErrNotEditable = errors.New("document is not editable by this user")
)

// IllegalTransitionError is returned when the requested transition is not in
// the actor's currently available set.
type IllegalTransitionError struct {
	Action ActionType
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("cannot %s the document in its current state", e.Action)
}

// StorageBranchError is returned when the content copy backing a counter or
// review branch fails; the branch document is rolled back.
type StorageBranchError struct {
	DocumentID uuid.UUID
	Err        error
}

func (e *StorageBranchError) Error() string {
	return fmt.Sprintf("failed to branch content for document %s: %v", e.DocumentID, e.Err)
}

func (e *StorageBranchError) Unwrap() error {
	return e.Err
}
