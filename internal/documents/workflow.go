package documents

import (
	"github.com/google/uuid"

	"github.com/offerflow/offerflow-backend/internal/users"
)

// The negotiation workflow is a two-party alternating-turn state machine.
// The current state of a document is its most recent log entry; who may act
// next depends on whether the actor authored that entry or is addressed by
// it, plus the attorney flags gating review transitions.

// AvailableActions returns the transitions the actor may legally perform
// next, given the latest resolved action state. A document with no actions
// yet offers nothing: it must be created through an explicit CREATE first.
func AvailableActions(last *ActionState, actor *users.UserProfile) []ActionType {
	if last == nil || actor == nil {
		return nil
	}

	var available []ActionType

	switch {
	case last.From.ID == actor.ID:
		switch last.Action.Type {
		case ActionCreate:
			available = append(available, ActionDelete)
		case ActionCounter:
			available = append(available, ActionSubmit)
		case ActionReview:
			if actor.IsAttorney {
				available = append(available, ActionSubmit)
			}
		}

	case last.To != nil && last.To.ID == actor.ID:
		switch last.Action.Type {
		case ActionSubmit:
			available = append(available, ActionAccept, ActionDecline, ActionCounter, ActionRequestReview)
			if last.From.IsAttorney {
				available = append(available, ActionCreate)
			}
		case ActionRequestReview:
			if actor.IsAttorney {
				available = append(available, ActionReview)
			}
		case ActionAccept:
			available = append(available, ActionRequestReview, ActionSign)
		case ActionSign:
			available = append(available, ActionSign)
		}
	}

	return available
}

// CanPerform reports whether the action type is in the available set.
func CanPerform(available []ActionType, t ActionType) bool {
	for _, a := range available {
		if a == t {
			return true
		}
	}
	return false
}

// ResolveCounterparty picks the "other party" for an actor from the full set
// of lineage participants: the first participant, in joining order, that is
// not the actor and whose attorney flag matches. A negotiation spans many
// documents (one per counter), so participants must come from the whole
// lineage, not the latest snapshot.
func ResolveCounterparty(participants []users.UserProfile, actorID uuid.UUID, isAttorney bool) *users.UserProfile {
	for i := range participants {
		p := &participants[i]
		if p.ID == actorID {
			continue
		}
		if p.IsAttorney == isAttorney {
			return p
		}
	}
	return nil
}
