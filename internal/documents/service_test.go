package documents

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/offerflow/offerflow-backend/internal/users"
)

const testBucket = "offerflow-documents"

func participant(email string, isAttorney bool) users.UserProfile {
	return users.UserProfile{
		ID:         uuid.New(),
		FirstName:  "Test",
		LastName:   "User",
		Email:      email,
		IsAttorney: isAttorney,
	}
}

type serviceFixture struct {
	repo      *MockRepository
	usersRepo *MockUsersRepository
	s3        *fakeS3
	tokens    *fakeTokenIssuer
	notifier  *fakeNotifier
	service   Service
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		repo:      new(MockRepository),
		usersRepo: new(MockUsersRepository),
		s3:        newFakeS3(),
		tokens:    newFakeTokenIssuer(),
		notifier:  &fakeNotifier{},
	}
	f.service = NewService(
		f.repo,
		f.usersRepo,
		NewStorageProvider(f.s3, testBucket, time.Hour),
		f.tokens,
		f.notifier,
		&fakePDFGenerator{},
		zap.NewNop(),
		"https://app.offerflow.test",
	)
	return f
}

// expectCreateDocument mirrors the row-insert side effect of assigning an
// identity and defaulting a nil root to self.
func (f *serviceFixture) expectCreateDocument() {
	f.repo.On("CreateDocument", mock.Anything, mock.AnythingOfType("*documents.Document")).
		Run(func(args mock.Arguments) {
			doc := args.Get(1).(*Document)
			doc.ID = uuid.New()
			if doc.RootID == uuid.Nil {
				doc.RootID = doc.ID
			}
			doc.CreatedAt = time.Now()
		}).
		Return(nil)
}

func (f *serviceFixture) expectTransitionTarget(doc *Document, last *ActionState) {
	f.repo.On("LockDocument", mock.Anything, doc.ID).Return(nil)
	f.repo.On("GetDocumentByID", mock.Anything, doc.ID).Return(doc, nil)
	f.repo.On("HasParticipant", mock.Anything, doc.ID, mock.Anything).Return(true, nil)
	f.repo.On("LatestActionState", mock.Anything, doc.ID).Return(last, nil)
}

func capturedAction(repo *MockRepository) *Action {
	for _, call := range repo.Calls {
		if call.Method == "CreateAction" {
			return call.Arguments.Get(1).(*Action)
		}
	}
	return nil
}

func TestCreateDocumentRecordsGenesisAction(t *testing.T) {
	f := newServiceFixture()
	actor := participant("alice@example.com", false)

	f.expectCreateDocument()
	f.repo.On("CreateAction", mock.Anything, mock.AnythingOfType("*documents.Action")).Return(nil)
	f.repo.On("LatestActionState", mock.Anything, mock.Anything).
		Return(state(ActionCreate, actor, nil), nil)
	f.repo.On("ListLineageDocuments", mock.Anything, mock.Anything).Return([]Document{}, nil)

	detail, err := f.service.CreateDocument(context.Background(), CreateRequest{Title: "12 Main St Offer"}, actor)

	assert.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, detail.ID)
	assert.Equal(t, detail.ID, detail.RootID)
	assert.True(t, detail.Editable)
	assert.Equal(t, []ActionType{ActionDelete}, detail.AvailableActions)
	assert.Nil(t, detail.PresignedURL)

	action := capturedAction(f.repo)
	assert.Equal(t, ActionCreate, action.Type)
	assert.Equal(t, actor.ID, action.FromUserID)
	assert.Nil(t, action.ToUserID)
}

func TestCreateDocumentRejectsEmptyTitle(t *testing.T) {
	f := newServiceFixture()

	_, err := f.service.CreateDocument(context.Background(), CreateRequest{}, participant("a@example.com", false))

	assert.Error(t, err)
	f.repo.AssertNotCalled(t, "CreateDocument", mock.Anything, mock.Anything)
}

func TestSubmitResolvesCounterparty(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	bob := participant("bob@example.com", false)
	doc := &Document{ID: uuid.New(), Title: "Offer"}
	doc.RootID = doc.ID

	f.expectTransitionTarget(doc, state(ActionCounter, alice, nil))
	f.repo.On("LineageParticipants", mock.Anything, doc.RootID).
		Return([]users.UserProfile{alice, bob}, nil)
	f.repo.On("CreateAction", mock.Anything, mock.AnythingOfType("*documents.Action")).Return(nil)

	err := f.service.Submit(context.Background(), doc.ID, alice, SubmitRequest{})

	assert.NoError(t, err)
	action := capturedAction(f.repo)
	assert.Equal(t, ActionSubmit, action.Type)
	assert.Equal(t, alice.ID, action.FromUserID)
	if assert.NotNil(t, action.ToUserID) {
		assert.Equal(t, bob.ID, *action.ToUserID)
	}
	if assert.Len(t, f.notifier.calls, 1) {
		assert.Equal(t, "bob@example.com", f.notifier.calls[0].to)
		assert.Equal(t, ActionSubmit, f.notifier.calls[0].action)
	}
}

func TestSubmitOutOfTurn(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	bob := participant("bob@example.com", false)
	doc := &Document{ID: uuid.New(), Title: "Offer"}
	doc.RootID = doc.ID

	// the ball is in Bob's court after Alice submits
	f.expectTransitionTarget(doc, state(ActionSubmit, alice, &bob))

	err := f.service.Submit(context.Background(), doc.ID, alice, SubmitRequest{})

	var illegal *IllegalTransitionError
	if assert.ErrorAs(t, err, &illegal) {
		assert.Equal(t, ActionSubmit, illegal.Action)
	}
	f.repo.AssertNotCalled(t, "CreateAction", mock.Anything, mock.Anything)
	assert.Empty(t, f.notifier.calls)
}

func TestSubmitToUnknownEmailIssuesInvite(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	doc := &Document{ID: uuid.New(), Title: "Offer"}
	doc.RootID = doc.ID

	f.expectTransitionTarget(doc, state(ActionCounter, alice, nil))
	f.usersRepo.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, nil)
	f.repo.On("CreateAction", mock.Anything, mock.AnythingOfType("*documents.Action")).Return(nil)

	err := f.service.Submit(context.Background(), doc.ID, alice, SubmitRequest{Email: "new@example.com"})

	assert.NoError(t, err)
	action := capturedAction(f.repo)
	assert.Equal(t, ActionSubmit, action.Type)
	assert.Nil(t, action.ToUserID, "recipient binding is deferred until the invite is accepted")
	assert.Equal(t, []uuid.UUID{doc.ID}, f.tokens.issued)
	if assert.Len(t, f.notifier.calls, 1) {
		assert.Equal(t, "new@example.com", f.notifier.calls[0].to)
		assert.Contains(t, f.notifier.calls[0].link, "/link-offeree?token=")
	}
}

func TestSubmitWithoutRecipient(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	doc := &Document{ID: uuid.New(), Title: "Offer"}
	doc.RootID = doc.ID

	f.expectTransitionTarget(doc, state(ActionCounter, alice, nil))
	f.repo.On("LineageParticipants", mock.Anything, doc.RootID).
		Return([]users.UserProfile{alice}, nil)

	err := f.service.Submit(context.Background(), doc.ID, alice, SubmitRequest{})

	assert.ErrorIs(t, err, ErrNoRecipient)
	f.repo.AssertNotCalled(t, "CreateAction", mock.Anything, mock.Anything)
}

func TestAcceptAddressesCounterparty(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	bob := participant("bob@example.com", false)
	doc := &Document{ID: uuid.New(), Title: "Offer"}
	doc.RootID = doc.ID

	f.expectTransitionTarget(doc, state(ActionSubmit, alice, &bob))
	f.repo.On("LineageParticipants", mock.Anything, doc.RootID).
		Return([]users.UserProfile{alice, bob}, nil)
	f.repo.On("CreateAction", mock.Anything, mock.AnythingOfType("*documents.Action")).Return(nil)

	err := f.service.Accept(context.Background(), doc.ID, bob)

	assert.NoError(t, err)
	action := capturedAction(f.repo)
	assert.Equal(t, ActionAccept, action.Type)
	assert.Equal(t, bob.ID, action.FromUserID)
	if assert.NotNil(t, action.ToUserID) {
		assert.Equal(t, alice.ID, *action.ToUserID)
	}
	if assert.Len(t, f.notifier.calls, 1) {
		assert.Equal(t, "alice@example.com", f.notifier.calls[0].to)
	}
}

func TestCounterBranchesLineage(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	bob := participant("bob@example.com", false)
	doc := &Document{ID: uuid.New(), Title: "Offer"}
	doc.RootID = doc.ID
	f.s3.objects[testBucket+"/"+doc.FilePath(ContentJSON)] = true

	f.expectTransitionTarget(doc, state(ActionSubmit, alice, &bob))
	f.expectCreateDocument()
	f.repo.On("CreateAction", mock.Anything, mock.AnythingOfType("*documents.Action")).Return(nil)

	branched, err := f.service.Counter(context.Background(), doc.ID, bob)

	assert.NoError(t, err)
	assert.NotEqual(t, doc.ID, branched.ID)
	assert.Equal(t, doc.RootID, branched.RootID)
	assert.Equal(t, doc.Title, branched.Title)

	copied, _ := f.s3.Exists(context.Background(), testBucket, branched.FilePath(ContentJSON))
	assert.True(t, copied, "content blob should be copied to the branch")

	action := capturedAction(f.repo)
	assert.Equal(t, ActionCounter, action.Type)
	assert.Equal(t, branched.ID, action.DocumentID)
}

func TestCounterRollsBackWhenCopyFails(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	bob := participant("bob@example.com", false)
	doc := &Document{ID: uuid.New(), Title: "Offer"}
	doc.RootID = doc.ID
	// no stored content: the blob copy cannot succeed

	f.expectTransitionTarget(doc, state(ActionSubmit, alice, &bob))
	f.expectCreateDocument()

	_, err := f.service.Counter(context.Background(), doc.ID, bob)

	var branchErr *StorageBranchError
	if assert.ErrorAs(t, err, &branchErr) {
		assert.Equal(t, doc.ID, branchErr.DocumentID)
	}
	f.repo.AssertNotCalled(t, "CreateAction", mock.Anything, mock.Anything)
}

func TestRequestReviewWithoutAttorney(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	bob := participant("bob@example.com", false)
	doc := &Document{ID: uuid.New(), Title: "Offer"}
	doc.RootID = doc.ID

	f.expectTransitionTarget(doc, state(ActionSubmit, alice, &bob))
	f.usersRepo.On("FirstAttorney", mock.Anything).Return(nil, nil)

	err := f.service.RequestReview(context.Background(), doc.ID, bob)

	assert.ErrorIs(t, err, ErrNoReviewerAvailable)
	f.repo.AssertNotCalled(t, "CreateAction", mock.Anything, mock.Anything)
}

func TestAcceptInviteBindsRecipient(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	invitee := participant("carol@example.com", false)
	doc := &Document{ID: uuid.New(), Title: "Offer"}
	doc.RootID = doc.ID

	share := &Action{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		FromUserID: alice.ID,
		Type:       ActionShare,
	}
	token, err := f.tokens.Issue(context.Background(), doc.ID)
	assert.NoError(t, err)

	f.repo.On("LockDocument", mock.Anything, doc.ID).Return(nil)
	f.repo.On("LatestAction", mock.Anything, doc.ID).Return(share, nil)
	f.repo.On("BindActionRecipient", mock.Anything, share.ID, invitee.ID).Return(nil)

	err = f.service.AcceptInvite(context.Background(), doc.ID, invitee, token)

	assert.NoError(t, err)
	f.repo.AssertCalled(t, "BindActionRecipient", mock.Anything, share.ID, invitee.ID)
}

func TestAcceptInviteRejectsNonShareAction(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	invitee := participant("carol@example.com", false)
	doc := &Document{ID: uuid.New(), Title: "Offer"}
	doc.RootID = doc.ID

	submit := &Action{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		FromUserID: alice.ID,
		Type:       ActionSubmit,
	}
	token, _ := f.tokens.Issue(context.Background(), doc.ID)

	f.repo.On("LockDocument", mock.Anything, doc.ID).Return(nil)
	f.repo.On("LatestAction", mock.Anything, doc.ID).Return(submit, nil)

	err := f.service.AcceptInvite(context.Background(), doc.ID, invitee, token)

	assert.ErrorIs(t, err, ErrInvalidInvitation)
	f.repo.AssertNotCalled(t, "BindActionRecipient", mock.Anything, mock.Anything, mock.Anything)
}

func TestAcceptInviteRejectsBadToken(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	invitee := participant("carol@example.com", false)
	doc := &Document{ID: uuid.New(), Title: "Offer"}
	doc.RootID = doc.ID

	share := &Action{
		ID:         uuid.New(),
		DocumentID: doc.ID,
		FromUserID: alice.ID,
		Type:       ActionShare,
	}

	f.repo.On("LockDocument", mock.Anything, doc.ID).Return(nil)
	f.repo.On("LatestAction", mock.Anything, doc.ID).Return(share, nil)

	err := f.service.AcceptInvite(context.Background(), doc.ID, invitee, "bogus")

	assert.ErrorIs(t, err, ErrInvalidInvitation)
	f.repo.AssertNotCalled(t, "BindActionRecipient", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteDraft(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	doc := &Document{ID: uuid.New(), Title: "Draft Offer"}
	doc.RootID = doc.ID
	f.s3.objects[testBucket+"/"+doc.FilePath(ContentJSON)] = true

	f.expectTransitionTarget(doc, state(ActionCreate, alice, nil))
	f.repo.On("DeleteDocument", mock.Anything, doc.ID).Return(nil)

	err := f.service.DeleteDocument(context.Background(), doc.ID, alice)

	assert.NoError(t, err)
	f.repo.AssertCalled(t, "DeleteDocument", mock.Anything, doc.ID)
	remains, _ := f.s3.Exists(context.Background(), testBucket, doc.FilePath(ContentJSON))
	assert.False(t, remains, "content blob should be removed with the draft")
}

func TestDeleteSubmittedOfferForbidden(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	bob := participant("bob@example.com", false)
	doc := &Document{ID: uuid.New(), Title: "Offer"}
	doc.RootID = doc.ID

	f.expectTransitionTarget(doc, state(ActionSubmit, alice, &bob))

	err := f.service.DeleteDocument(context.Background(), doc.ID, alice)

	var illegal *IllegalTransitionError
	assert.ErrorAs(t, err, &illegal)
	f.repo.AssertNotCalled(t, "DeleteDocument", mock.Anything, mock.Anything)
}

func TestGetDocumentHiddenFromStranger(t *testing.T) {
	f := newServiceFixture()
	stranger := participant("mallory@example.com", false)
	doc := &Document{ID: uuid.New(), Title: "Offer"}
	doc.RootID = doc.ID

	f.repo.On("GetDocumentByID", mock.Anything, doc.ID).Return(doc, nil)
	f.repo.On("HasParticipant", mock.Anything, doc.ID, stranger.ID).Return(false, nil)

	_, err := f.service.GetDocument(context.Background(), doc.ID, stranger)

	assert.ErrorIs(t, err, ErrDocumentNotFound)
}

func TestUpdateURLOnlyForAuthorOfDraft(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	bob := participant("bob@example.com", false)
	doc := &Document{ID: uuid.New(), Title: "Offer"}
	doc.RootID = doc.ID

	f.repo.On("GetDocumentByID", mock.Anything, doc.ID).Return(doc, nil)
	f.repo.On("HasParticipant", mock.Anything, doc.ID, mock.Anything).Return(true, nil)
	f.repo.On("LatestActionState", mock.Anything, doc.ID).Return(state(ActionCreate, alice, nil), nil)

	url, err := f.service.UpdateURL(context.Background(), doc.ID, alice, ContentJSON)
	assert.NoError(t, err)
	assert.NotEmpty(t, url)

	_, err = f.service.UpdateURL(context.Background(), doc.ID, bob, ContentJSON)
	assert.ErrorIs(t, err, ErrNotEditable)
}

func TestDownloadURLGeneratesSummaryOnce(t *testing.T) {
	f := newServiceFixture()
	alice := participant("alice@example.com", false)
	bob := participant("bob@example.com", false)
	doc := &Document{ID: uuid.New(), Title: "Offer"}
	doc.RootID = doc.ID

	f.repo.On("GetDocumentByID", mock.Anything, doc.ID).Return(doc, nil)
	f.repo.On("HasParticipant", mock.Anything, doc.ID, alice.ID).Return(true, nil)
	f.repo.On("LineageParticipants", mock.Anything, doc.RootID).
		Return([]users.UserProfile{alice, bob}, nil)
	f.repo.On("ListLineageActions", mock.Anything, doc.RootID).
		Return([]Action{{ID: uuid.New(), DocumentID: doc.ID, FromUserID: alice.ID, Type: ActionCreate, Timestamp: time.Now()}}, nil)

	url, err := f.service.DownloadURL(context.Background(), doc.ID, alice)

	assert.NoError(t, err)
	assert.NotEmpty(t, url)
	stored, _ := f.s3.Exists(context.Background(), testBucket, doc.FilePath(ContentPDF))
	assert.True(t, stored)

	// second request serves the stored rendition without regenerating
	_, err = f.service.DownloadURL(context.Background(), doc.ID, alice)
	assert.NoError(t, err)
	f.repo.AssertNumberOfCalls(t, "ListLineageActions", 1)
}
