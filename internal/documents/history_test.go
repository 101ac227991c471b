package documents

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/offerflow/offerflow-backend/internal/users"
)

func lineageDoc(rootID uuid.UUID, createdAt time.Time) Document {
	doc := Document{ID: uuid.New(), Title: "Offer", CreatedAt: createdAt}
	if rootID == uuid.Nil {
		rootID = doc.ID
	}
	doc.RootID = rootID
	return doc
}

func TestListHistoriesGroupsByLineage(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	bob := participant("bob@example.com", false)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rootA := lineageDoc(uuid.Nil, base)
	counterA := lineageDoc(rootA.RootID, base.Add(time.Hour))
	rootB := lineageDoc(uuid.Nil, base.Add(2*time.Hour))

	// ordered by latest action desc: the countered negotiation first
	f.repo.On("ListAccessibleDocuments", mock.Anything, alice.ID).
		Return([]Document{counterA, rootA, rootB}, nil)
	f.repo.On("LatestActionState", mock.Anything, counterA.ID).
		Return(state(ActionCounter, alice, nil), nil)
	f.repo.On("LatestActionState", mock.Anything, rootB.ID).
		Return(state(ActionCreate, alice, nil), nil)
	f.repo.On("LineageParticipants", mock.Anything, rootA.RootID).
		Return([]users.UserProfile{alice, bob}, nil)
	f.repo.On("LineageParticipants", mock.Anything, rootB.RootID).
		Return([]users.UserProfile{alice}, nil)

	histories, err := f.service.ListHistories(context.Background(), alice)

	assert.NoError(t, err)
	if !assert.Len(t, histories, 2) {
		return
	}

	assert.Equal(t, counterA.ID, histories[0].Document.ID, "current document is the newest in the chain")
	assert.Equal(t, []Document{rootA, counterA}, histories[0].Documents)
	assert.Equal(t, []ActionType{ActionSubmit}, histories[0].AvailableActions)
	assert.Equal(t, bob.FullName(), histories[0].RecipientName)

	assert.Equal(t, rootB.ID, histories[1].Document.ID)
	assert.Equal(t, []ActionType{ActionDelete}, histories[1].AvailableActions)
	assert.Empty(t, histories[1].RecipientName, "no counterparty before the first submit")
}

func TestGetHistoryScopedToActor(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	bob := participant("bob@example.com", false)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	root := lineageDoc(uuid.Nil, base)
	counter := lineageDoc(root.RootID, base.Add(time.Hour))

	f.repo.On("GetDocumentByID", mock.Anything, root.ID).Return(&root, nil)
	f.repo.On("HasParticipant", mock.Anything, root.ID, alice.ID).Return(true, nil)
	f.repo.On("ListAccessibleDocuments", mock.Anything, alice.ID).
		Return([]Document{counter, root}, nil)
	f.repo.On("LatestActionState", mock.Anything, counter.ID).
		Return(state(ActionSubmit, alice, &bob), nil)
	f.repo.On("LineageParticipants", mock.Anything, root.RootID).
		Return([]users.UserProfile{alice, bob}, nil)

	history, err := f.service.GetHistory(context.Background(), root.ID, alice)

	assert.NoError(t, err)
	assert.Equal(t, counter.ID, history.Document.ID)
	assert.Equal(t, []Document{root, counter}, history.Documents)
	// alice just submitted, so she holds no actions on the chain
	assert.Empty(t, history.AvailableActions)
	assert.Equal(t, bob.FullName(), history.RecipientName)
}

func TestGetHistoryForStranger(t *testing.T) {
	f := newServiceFixture()
	stranger := participant("mallory@example.com", false)
	doc := lineageDoc(uuid.Nil, time.Now())

	f.repo.On("GetDocumentByID", mock.Anything, doc.ID).Return(&doc, nil)
	f.repo.On("HasParticipant", mock.Anything, doc.ID, stranger.ID).Return(false, nil)

	_, err := f.service.GetHistory(context.Background(), doc.ID, stranger)

	assert.ErrorIs(t, err, ErrDocumentNotFound)
}
