package documents

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/offerflow/offerflow-backend/internal/users"
	"github.com/offerflow/offerflow-backend/pkg/pdf"
)

type Service interface {
	CreateDocument(ctx context.Context, req CreateRequest, actor users.UserProfile) (*DocumentDetail, error)
	GetDocument(ctx context.Context, id uuid.UUID, actor users.UserProfile) (*DocumentDetail, error)
	DeleteDocument(ctx context.Context, id uuid.UUID, actor users.UserProfile) error

	ListHistories(ctx context.Context, actor users.UserProfile) ([]History, error)
	GetHistory(ctx context.Context, documentID uuid.UUID, actor users.UserProfile) (*History, error)

	Submit(ctx context.Context, id uuid.UUID, actor users.UserProfile, req SubmitRequest) error
	Share(ctx context.Context, id uuid.UUID, actor users.UserProfile, req ShareRequest) error
	AcceptInvite(ctx context.Context, id uuid.UUID, actor users.UserProfile, token string) error
	Accept(ctx context.Context, id uuid.UUID, actor users.UserProfile) error
	Decline(ctx context.Context, id uuid.UUID, actor users.UserProfile) error
	Sign(ctx context.Context, id uuid.UUID, actor users.UserProfile) error
	Counter(ctx context.Context, id uuid.UUID, actor users.UserProfile) (*Document, error)
	RequestReview(ctx context.Context, id uuid.UUID, actor users.UserProfile) error
	CreateReview(ctx context.Context, id uuid.UUID, actor users.UserProfile) (*Document, error)

	ToUser(ctx context.Context, id uuid.UUID, actor users.UserProfile) (*users.UserProfile, error)
	DownloadURL(ctx context.Context, id uuid.UUID, actor users.UserProfile) (string, error)
	UpdateURL(ctx context.Context, id uuid.UUID, actor users.UserProfile, contentType ContentType) (string, error)
}

type CreateRequest struct {
	Title      string     `json:"title"`
	PropertyID *uuid.UUID `json:"property_id"`
}

func (r CreateRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required, validation.Length(1, 200)),
	)
}

type SubmitRequest struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (r SubmitRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, is.Email),
	)
}

type ShareRequest struct {
	Email string `json:"email"`
}

func (r ShareRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// DocumentDetail is a document enriched with everything the frontend needs
// to render it: a presigned content URL, the actor's available actions, and
// the rest of the lineage.
type DocumentDetail struct {
	Document
	PresignedURL     *string      `json:"presigned_url"`
	ContentType      *ContentType `json:"content_type"`
	NeedsMigration   bool         `json:"needs_migration,omitempty"`
	AvailableActions []ActionType `json:"available_actions"`
	Editable         bool         `json:"editable"`
	Documents        []Document   `json:"documents"`
}

type service struct {
	repo        Repository
	usersRepo   users.Repository
	storage     *StorageProvider
	tokens      TokenIssuer
	notifier    Notifier
	pdf         pdf.Generator
	logger      *zap.Logger
	frontendURL string
}

func NewService(
	repo Repository,
	usersRepo users.Repository,
	storage *StorageProvider,
	tokens TokenIssuer,
	notifier Notifier,
	pdfGen pdf.Generator,
	logger *zap.Logger,
	frontendURL string,
) Service {
	return &service{
		repo:        repo,
		usersRepo:   usersRepo,
		storage:     storage,
		tokens:      tokens,
		notifier:    notifier,
		pdf:         pdfGen,
		logger:      logger,
		frontendURL: frontendURL,
	}
}

// getAccessibleDocument loads a document and hides it from users who do not
// appear on any of its actions.
func (s *service) getAccessibleDocument(ctx context.Context, repo Repository, id uuid.UUID, actor users.UserProfile) (*Document, error) {
	doc, err := repo.GetDocumentByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	involved, err := repo.HasParticipant(ctx, id, actor.ID)
	if err != nil {
		return nil, err
	}
	if !involved {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// authorize locks the document row, resolves the latest action state, and
// checks that the requested transition is available to the actor. Callers
// must run it inside a repository transaction.
func (s *service) authorize(ctx context.Context, repo Repository, id uuid.UUID, actor users.UserProfile, actionType ActionType) (*Document, *ActionState, error) {
	if err := repo.LockDocument(ctx, id); err != nil {
		return nil, nil, err
	}

	doc, err := s.getAccessibleDocument(ctx, repo, id, actor)
	if err != nil {
		return nil, nil, err
	}

	state, err := repo.LatestActionState(ctx, doc.ID)
	if err != nil {
		return nil, nil, err
	}

	if !CanPerform(AvailableActions(state, &actor), actionType) {
		return nil, nil, &IllegalTransitionError{Action: actionType}
	}
	return doc, state, nil
}

func (s *service) documentLink(id uuid.UUID) string {
	return fmt.Sprintf("%s/login?next=/documents/%s", s.frontendURL, id)
}

func (s *service) notify(ctx context.Context, from users.UserProfile, to *users.UserProfile, email string, actionType ActionType, link string) {
	var err error
	if to != nil {
		err = s.notifier.NotifyAction(ctx, from, *to, actionType, link)
	} else if email != "" {
		err = s.notifier.NotifyEmail(ctx, from, email, actionType, link)
	}
	if err != nil {
		s.logger.Warn("failed to deliver notification",
			zap.String("action", string(actionType)),
			zap.Error(err))
	}
}

func (s *service) CreateDocument(ctx context.Context, req CreateRequest, actor users.UserProfile) (*DocumentDetail, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	doc := &Document{
		Title:      req.Title,
		PropertyID: req.PropertyID,
	}

	err := s.repo.WithTx(ctx, func(repo Repository) error {
		if err := repo.CreateDocument(ctx, doc); err != nil {
			return err
		}
		return repo.CreateAction(ctx, &Action{
			DocumentID: doc.ID,
			FromUserID: actor.ID,
			Type:       ActionCreate,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document created",
		zap.String("document_id", doc.ID.String()),
		zap.String("user_id", actor.ID.String()))

	return s.buildDetail(ctx, doc, actor)
}

func (s *service) GetDocument(ctx context.Context, id uuid.UUID, actor users.UserProfile) (*DocumentDetail, error) {
	doc, err := s.getAccessibleDocument(ctx, s.repo, id, actor)
	if err != nil {
		return nil, err
	}
	return s.buildDetail(ctx, doc, actor)
}

// buildDetail resolves the content URL (JSON preferred, legacy HTML flagged
// for migration), the actor's available actions, the editable flag, and the
// lineage.
func (s *service) buildDetail(ctx context.Context, doc *Document, actor users.UserProfile) (*DocumentDetail, error) {
	detail := &DocumentDetail{Document: *doc}

	for _, contentType := range []ContentType{ContentJSON, ContentHTML} {
		exists, err := s.storage.Exists(ctx, doc, contentType)
		if err != nil {
			return nil, err
		}
		if !exists {
			continue
		}

		url, err := s.storage.PresignedGet(ctx, doc, contentType, false)
		if err != nil {
			return nil, err
		}
		ct := contentType
		detail.PresignedURL = &url
		detail.ContentType = &ct
		detail.NeedsMigration = contentType == ContentHTML
		break
	}

	state, err := s.repo.LatestActionState(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	detail.AvailableActions = AvailableActions(state, &actor)

	if state != nil && state.From.ID == actor.ID {
		switch state.Action.Type {
		case ActionCreate, ActionCounter, ActionReview:
			detail.Editable = true
		}
	}

	detail.Documents, err = s.repo.ListLineageDocuments(ctx, doc.RootID)
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *service) Submit(ctx context.Context, id uuid.UUID, actor users.UserProfile, req SubmitRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	var (
		to          *users.UserProfile
		inviteToken string
		link        string
	)

	err := s.repo.WithTx(ctx, func(repo Repository) error {
		doc, _, err := s.authorize(ctx, repo, id, actor, ActionSubmit)
		if err != nil {
			return err
		}

		link = s.documentLink(doc.ID)

		if req.Email != "" {
			to, err = s.usersRepo.GetByEmail(ctx, req.Email)
			if err != nil {
				return err
			}
			if to == nil {
				// recipient is not in the system yet: record the submit
				// without a counterparty and invite them by token
				inviteToken, err = s.tokens.Issue(ctx, doc.ID)
				if err != nil {
					return err
				}
				link += "/link-offeree?token=" + inviteToken
				s.logger.Info("offer submitted to new user",
					zap.String("document_id", doc.ID.String()),
					zap.String("email", req.Email))
			}
		} else {
			participants, err := repo.LineageParticipants(ctx, doc.RootID)
			if err != nil {
				return err
			}
			to = ResolveCounterparty(participants, actor.ID, false)
			if to == nil {
				return ErrNoRecipient
			}
		}

		action := &Action{
			DocumentID: doc.ID,
			FromUserID: actor.ID,
			Type:       ActionSubmit,
		}
		if to != nil {
			action.ToUserID = &to.ID
		}
		return repo.CreateAction(ctx, action)
	})
	if err != nil {
		return err
	}

	s.notify(ctx, actor, to, req.Email, ActionSubmit, link)
	return nil
}

// Share is not part of the negotiation turn sequence: any participant may
// share the document read-only at any point.
func (s *service) Share(ctx context.Context, id uuid.UUID, actor users.UserProfile, req ShareRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	var (
		to   *users.UserProfile
		link string
	)

	err := s.repo.WithTx(ctx, func(repo Repository) error {
		if err := repo.LockDocument(ctx, id); err != nil {
			return err
		}
		doc, err := s.getAccessibleDocument(ctx, repo, id, actor)
		if err != nil {
			return err
		}

		link = fmt.Sprintf("%s/docs/%s", s.frontendURL, doc.ID)

		to, err = s.usersRepo.GetByEmail(ctx, req.Email)
		if err != nil {
			return err
		}
		if to == nil {
			token, err := s.tokens.Issue(ctx, doc.ID)
			if err != nil {
				return err
			}
			link += "/invite/" + token
			s.logger.Info("document shared with new user",
				zap.String("document_id", doc.ID.String()),
				zap.String("email", req.Email))
		}

		action := &Action{
			DocumentID: doc.ID,
			FromUserID: actor.ID,
			Type:       ActionShare,
		}
		if to != nil {
			action.ToUserID = &to.ID
		}
		return repo.CreateAction(ctx, action)
	})
	if err != nil {
		return err
	}

	s.notify(ctx, actor, to, req.Email, ActionShare, link)
	return nil
}

// AcceptInvite redeems an invitation token and performs the one allowed
// post-creation mutation of the log: binding the pending share's recipient.
func (s *service) AcceptInvite(ctx context.Context, id uuid.UUID, actor users.UserProfile, token string) error {
	return s.repo.WithTx(ctx, func(repo Repository) error {
		// access filters are bypassed here: the invitee is not yet a
		// participant
		if err := repo.LockDocument(ctx, id); err != nil {
			return err
		}

		last, err := repo.LatestAction(ctx, id)
		if err != nil {
			return err
		}
		if last == nil || last.Type != ActionShare {
			return ErrInvalidInvitation
		}
		if last.ToUserID != nil && *last.ToUserID != actor.ID {
			return ErrInvalidInvitation
		}

		if err := s.tokens.Redeem(ctx, id, token); err != nil {
			return ErrInvalidInvitation
		}

		return repo.BindActionRecipient(ctx, last.ID, actor.ID)
	})
}

// respond records a bilateral response (accept, decline, sign) addressed to
// the other principal in the lineage.
func (s *service) respond(ctx context.Context, id uuid.UUID, actor users.UserProfile, actionType ActionType) error {
	var (
		to   *users.UserProfile
		link string
	)

	err := s.repo.WithTx(ctx, func(repo Repository) error {
		doc, _, err := s.authorize(ctx, repo, id, actor, actionType)
		if err != nil {
			return err
		}

		participants, err := repo.LineageParticipants(ctx, doc.RootID)
		if err != nil {
			return err
		}
		to = ResolveCounterparty(participants, actor.ID, false)
		if to == nil {
			return ErrNoRecipient
		}

		link = s.documentLink(doc.ID)
		return repo.CreateAction(ctx, &Action{
			DocumentID: doc.ID,
			FromUserID: actor.ID,
			ToUserID:   &to.ID,
			Type:       actionType,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("offer transition recorded",
		zap.String("document_id", id.String()),
		zap.String("action", string(actionType)),
		zap.String("user_id", actor.ID.String()))

	s.notify(ctx, actor, to, "", actionType, link)
	return nil
}

func (s *service) Accept(ctx context.Context, id uuid.UUID, actor users.UserProfile) error {
	return s.respond(ctx, id, actor, ActionAccept)
}

func (s *service) Decline(ctx context.Context, id uuid.UUID, actor users.UserProfile) error {
	return s.respond(ctx, id, actor, ActionDecline)
}

func (s *service) Sign(ctx context.Context, id uuid.UUID, actor users.UserProfile) error {
	return s.respond(ctx, id, actor, ActionSign)
}

// branch creates a new document in the same lineage and copies the source
// content blob to it. The copy and the record creation are one failure
// unit: a failed copy rolls back the branch.
func (s *service) branch(ctx context.Context, id uuid.UUID, actor users.UserProfile, actionType ActionType) (*Document, error) {
	var branched *Document

	err := s.repo.WithTx(ctx, func(repo Repository) error {
		doc, _, err := s.authorize(ctx, repo, id, actor, actionType)
		if err != nil {
			return err
		}

		branched = &Document{
			Title:      doc.Title,
			RootID:     doc.RootID,
			PropertyID: doc.PropertyID,
		}
		if err := repo.CreateDocument(ctx, branched); err != nil {
			return err
		}

		if _, err := s.storage.CopyContent(ctx, doc, branched); err != nil {
			return &StorageBranchError{DocumentID: doc.ID, Err: err}
		}

		return repo.CreateAction(ctx, &Action{
			DocumentID: branched.ID,
			FromUserID: actor.ID,
			Type:       actionType,
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("document branched",
		zap.String("source_id", id.String()),
		zap.String("branch_id", branched.ID.String()),
		zap.String("action", string(actionType)))

	return branched, nil
}

func (s *service) Counter(ctx context.Context, id uuid.UUID, actor users.UserProfile) (*Document, error) {
	return s.branch(ctx, id, actor, ActionCounter)
}

func (s *service) CreateReview(ctx context.Context, id uuid.UUID, actor users.UserProfile) (*Document, error) {
	return s.branch(ctx, id, actor, ActionReview)
}

func (s *service) RequestReview(ctx context.Context, id uuid.UUID, actor users.UserProfile) error {
	var (
		reviewer *users.UserProfile
		link     string
	)

	err := s.repo.WithTx(ctx, func(repo Repository) error {
		doc, _, err := s.authorize(ctx, repo, id, actor, ActionRequestReview)
		if err != nil {
			return err
		}

		reviewer, err = s.usersRepo.FirstAttorney(ctx)
		if err != nil {
			return err
		}
		if reviewer == nil {
			return ErrNoReviewerAvailable
		}

		link = s.documentLink(doc.ID)
		return repo.CreateAction(ctx, &Action{
			DocumentID: doc.ID,
			FromUserID: actor.ID,
			ToUserID:   &reviewer.ID,
			Type:       ActionRequestReview,
		})
	})
	if err != nil {
		return err
	}

	s.logger.Info("review requested",
		zap.String("document_id", id.String()),
		zap.String("reviewer_id", reviewer.ID.String()))

	s.notify(ctx, actor, reviewer, "", ActionRequestReview, link)
	return nil
}

// DeleteDocument retracts an un-submitted draft. The action cascade happens
// in the database; content blobs are cleaned up afterwards.
func (s *service) DeleteDocument(ctx context.Context, id uuid.UUID, actor users.UserProfile) error {
	var doc *Document

	err := s.repo.WithTx(ctx, func(repo Repository) error {
		var err error
		doc, _, err = s.authorize(ctx, repo, id, actor, ActionDelete)
		if err != nil {
			return err
		}
		return repo.DeleteDocument(ctx, doc.ID)
	})
	if err != nil {
		return err
	}

	if err := s.storage.DeleteContent(ctx, doc); err != nil {
		s.logger.Warn("failed to delete document content",
			zap.String("document_id", doc.ID.String()),
			zap.Error(err))
	}

	s.logger.Info("document deleted",
		zap.String("document_id", doc.ID.String()),
		zap.String("user_id", actor.ID.String()))
	return nil
}

func (s *service) ToUser(ctx context.Context, id uuid.UUID, actor users.UserProfile) (*users.UserProfile, error) {
	doc, err := s.getAccessibleDocument(ctx, s.repo, id, actor)
	if err != nil {
		return nil, err
	}

	participants, err := s.repo.LineageParticipants(ctx, doc.RootID)
	if err != nil {
		return nil, err
	}
	return ResolveCounterparty(participants, actor.ID, false), nil
}

// DownloadURL returns a presigned URL for the document's PDF rendition,
// generating an offer summary on first request.
func (s *service) DownloadURL(ctx context.Context, id uuid.UUID, actor users.UserProfile) (string, error) {
	doc, err := s.getAccessibleDocument(ctx, s.repo, id, actor)
	if err != nil {
		return "", err
	}

	exists, err := s.storage.Exists(ctx, doc, ContentPDF)
	if err != nil {
		return "", err
	}
	if !exists {
		if err := s.generateSummaryPDF(ctx, doc); err != nil {
			return "", err
		}
	}

	return s.storage.PresignedGet(ctx, doc, ContentPDF, true)
}

func (s *service) generateSummaryPDF(ctx context.Context, doc *Document) error {
	participants, err := s.repo.LineageParticipants(ctx, doc.RootID)
	if err != nil {
		return err
	}
	names := make(map[uuid.UUID]string, len(participants))
	summary := pdf.OfferSummary{Title: doc.Title}
	for _, p := range participants {
		names[p.ID] = p.FullName()
		summary.Parties = append(summary.Parties, p.FullName())
	}

	actions, err := s.repo.ListLineageActions(ctx, doc.RootID)
	if err != nil {
		return err
	}
	for _, a := range actions {
		event := pdf.SummaryEvent{
			Label:     string(a.Type),
			Actor:     names[a.FromUserID],
			Timestamp: a.Timestamp,
		}
		if a.ToUserID != nil {
			event.Recipient = names[*a.ToUserID]
		}
		summary.Events = append(summary.Events, event)
	}

	reader, err := s.pdf.GenerateSummary(summary)
	if err != nil {
		return err
	}
	return s.storage.Upload(ctx, doc, ContentPDF, reader)
}

// UpdateURL returns a presigned PUT URL so the editor can save content
// directly to storage; only the author of the latest draft may write.
func (s *service) UpdateURL(ctx context.Context, id uuid.UUID, actor users.UserProfile, contentType ContentType) (string, error) {
	doc, err := s.getAccessibleDocument(ctx, s.repo, id, actor)
	if err != nil {
		return "", err
	}

	state, err := s.repo.LatestActionState(ctx, doc.ID)
	if err != nil {
		return "", err
	}

	editable := false
	if state != nil && state.From.ID == actor.ID {
		switch state.Action.Type {
		case ActionCreate, ActionCounter, ActionReview:
			editable = true
		}
	}
	if !editable {
		return "", ErrNotEditable
	}

	return s.storage.PresignedPut(ctx, doc, contentType)
}
