package documents

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/offerflow/offerflow-backend/internal/users"
	"github.com/offerflow/offerflow-backend/pkg/pdf"
)

// MockRepository is a mock implementation of the Repository interface.
// WithTx runs the callback against the mock itself so transition logic can
// be exercised without a database.
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	return fn(m)
}

func (m *MockRepository) CreateDocument(ctx context.Context, doc *Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockRepository) GetDocumentByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *MockRepository) LockDocument(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ListAccessibleDocuments(ctx context.Context, userID uuid.UUID) ([]Document, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Document), args.Error(1)
}

func (m *MockRepository) ListLineageDocuments(ctx context.Context, rootID uuid.UUID) ([]Document, error) {
	args := m.Called(ctx, rootID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Document), args.Error(1)
}

func (m *MockRepository) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) HasParticipant(ctx context.Context, documentID, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, documentID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) CreateAction(ctx context.Context, action *Action) error {
	args := m.Called(ctx, action)
	return args.Error(0)
}

func (m *MockRepository) ListLineageActions(ctx context.Context, rootID uuid.UUID) ([]Action, error) {
	args := m.Called(ctx, rootID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Action), args.Error(1)
}

func (m *MockRepository) LatestAction(ctx context.Context, documentID uuid.UUID) (*Action, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Action), args.Error(1)
}

func (m *MockRepository) LatestActionState(ctx context.Context, documentID uuid.UUID) (*ActionState, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ActionState), args.Error(1)
}

func (m *MockRepository) BindActionRecipient(ctx context.Context, actionID, userID uuid.UUID) error {
	args := m.Called(ctx, actionID, userID)
	return args.Error(0)
}

func (m *MockRepository) LineageParticipants(ctx context.Context, rootID uuid.UUID) ([]users.UserProfile, error) {
	args := m.Called(ctx, rootID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]users.UserProfile), args.Error(1)
}

// MockUsersRepository is a mock implementation of users.Repository
type MockUsersRepository struct {
	mock.Mock
}

func (m *MockUsersRepository) GetByID(ctx context.Context, id uuid.UUID) (*users.UserProfile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.UserProfile), args.Error(1)
}

func (m *MockUsersRepository) GetByEmail(ctx context.Context, email string) (*users.UserProfile, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.UserProfile), args.Error(1)
}

func (m *MockUsersRepository) FirstAttorney(ctx context.Context) (*users.UserProfile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.UserProfile), args.Error(1)
}

func (m *MockUsersRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]users.UserProfile, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]users.UserProfile), args.Error(1)
}

func (m *MockUsersRepository) GetPreferences(ctx context.Context, userID uuid.UUID) (*users.Preferences, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*users.Preferences), args.Error(1)
}

// fakeS3 is an in-memory object store keyed by bucket/key.
type fakeS3 struct {
	objects map[string]bool
	copyErr error
}

func newFakeS3(keys ...string) *fakeS3 {
	objects := make(map[string]bool)
	for _, key := range keys {
		objects[key] = true
	}
	return &fakeS3{objects: objects}
}

func (f *fakeS3) Upload(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	f.objects[bucket+"/"+key] = true
	return nil
}

func (f *fakeS3) Download(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if !f.objects[bucket+"/"+key] {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(strings.NewReader("content")), nil
}

func (f *fakeS3) Copy(ctx context.Context, bucket, sourceKey, destKey string) error {
	if f.copyErr != nil {
		return f.copyErr
	}
	if !f.objects[bucket+"/"+sourceKey] {
		return errors.New("no such key")
	}
	f.objects[bucket+"/"+destKey] = true
	return nil
}

func (f *fakeS3) Delete(ctx context.Context, bucket, key string) error {
	delete(f.objects, bucket+"/"+key)
	return nil
}

func (f *fakeS3) Exists(ctx context.Context, bucket, key string) (bool, error) {
	return f.objects[bucket+"/"+key], nil
}

func (f *fakeS3) PresignGet(ctx context.Context, bucket, key, responseContentType, contentDisposition string, expiration time.Duration) (string, error) {
	return "https://fake-s3/" + bucket + "/" + key, nil
}

func (f *fakeS3) PresignPut(ctx context.Context, bucket, key, contentType string, expiration time.Duration) (string, error) {
	return "https://fake-s3/put/" + bucket + "/" + key, nil
}

// fakeTokenIssuer records issued and redeemed tokens.
type fakeTokenIssuer struct {
	issued   []uuid.UUID
	redeemed map[string]uuid.UUID
	valid    map[string]uuid.UUID
}

func newFakeTokenIssuer() *fakeTokenIssuer {
	return &fakeTokenIssuer{
		redeemed: make(map[string]uuid.UUID),
		valid:    make(map[string]uuid.UUID),
	}
}

func (f *fakeTokenIssuer) Issue(ctx context.Context, documentID uuid.UUID) (string, error) {
	f.issued = append(f.issued, documentID)
	token := "token-" + documentID.String()
	f.valid[token] = documentID
	return token, nil
}

func (f *fakeTokenIssuer) Redeem(ctx context.Context, documentID uuid.UUID, token string) error {
	if docID, ok := f.valid[token]; !ok || docID != documentID {
		return errors.New("invalid token")
	}
	if _, used := f.redeemed[token]; used {
		return errors.New("token already used")
	}
	f.redeemed[token] = documentID
	return nil
}

// fakeNotifier records deliveries.
type notifierCall struct {
	to     string
	action ActionType
	link   string
}

type fakeNotifier struct {
	calls []notifierCall
	err   error
}

func (f *fakeNotifier) NotifyAction(ctx context.Context, from users.UserProfile, to users.UserProfile, action ActionType, link string) error {
	f.calls = append(f.calls, notifierCall{to: to.Email, action: action, link: link})
	return f.err
}

func (f *fakeNotifier) NotifyEmail(ctx context.Context, from users.UserProfile, email string, action ActionType, link string) error {
	f.calls = append(f.calls, notifierCall{to: email, action: action, link: link})
	return f.err
}

type fakePDFGenerator struct{}

func (f *fakePDFGenerator) GenerateSummary(summary pdf.OfferSummary) (io.Reader, error) {
	return strings.NewReader("%PDF-1.4 fake"), nil
}
