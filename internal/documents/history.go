package documents

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/offerflow/offerflow-backend/internal/users"
)

// History is one negotiation chain: every document sharing a lineage root,
// in creation order, with the actor's available actions on the current
// (most recently created) document.
type History struct {
	Document         Document     `json:"document"`
	Documents        []Document   `json:"history"`
	AvailableActions []ActionType `json:"available_actions"`
	RecipientName    string       `json:"recipient_name,omitempty"`
	LastActionAt     time.Time    `json:"last_action_at"`
}

// GetHistory returns the history containing the given document, scoped to
// what the actor can see.
func (s *service) GetHistory(ctx context.Context, documentID uuid.UUID, actor users.UserProfile) (*History, error) {
	doc, err := s.getAccessibleDocument(ctx, s.repo, documentID, actor)
	if err != nil {
		return nil, err
	}

	accessible, err := s.repo.ListAccessibleDocuments(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	history, err := s.buildHistory(ctx, doc.RootID, accessible, actor)
	if err != nil {
		return nil, err
	}
	if history == nil {
		return nil, ErrDocumentNotFound
	}
	return history, nil
}

// ListHistories groups the actor's accessible documents by lineage root,
// most recently acted-on negotiation first. This powers the inbox view.
func (s *service) ListHistories(ctx context.Context, actor users.UserProfile) ([]History, error) {
	accessible, err := s.repo.ListAccessibleDocuments(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	// accessible is already ordered by latest action desc, so visiting
	// roots in first-seen order keeps that ordering for histories
	histories := []History{}
	seen := make(map[uuid.UUID]bool)
	for _, doc := range accessible {
		if seen[doc.RootID] {
			continue
		}
		seen[doc.RootID] = true

		history, err := s.buildHistory(ctx, doc.RootID, accessible, actor)
		if err != nil {
			return nil, err
		}
		if history != nil {
			histories = append(histories, *history)
		}
	}
	return histories, nil
}

func (s *service) buildHistory(ctx context.Context, rootID uuid.UUID, accessible []Document, actor users.UserProfile) (*History, error) {
	var chain []Document
	for _, doc := range accessible {
		if doc.RootID == rootID {
			chain = append(chain, doc)
		}
	}
	if len(chain) == 0 {
		return nil, nil
	}

	// creation order; the current document is the newest snapshot
	sortByCreation(chain)
	current := chain[len(chain)-1]

	state, err := s.repo.LatestActionState(ctx, current.ID)
	if err != nil {
		return nil, err
	}

	history := &History{
		Document:         current,
		Documents:        chain,
		AvailableActions: AvailableActions(state, &actor),
	}
	if state != nil {
		history.LastActionAt = state.Action.Timestamp
	}

	participants, err := s.repo.LineageParticipants(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if recipient := ResolveCounterparty(participants, actor.ID, false); recipient != nil {
		history.RecipientName = recipient.FullName()
	}

	return history, nil
}

func sortByCreation(docs []Document) {
	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt.Before(docs[j].CreatedAt)
	})
}
