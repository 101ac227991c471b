package notifications

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/offerflow/offerflow-backend/internal/documents"
	"github.com/offerflow/offerflow-backend/internal/inbox"
	"github.com/offerflow/offerflow-backend/internal/users"
)

// wording maps each transition to the phrase used in messages and email
// subjects.
var wording = map[documents.ActionType]string{
	documents.ActionSubmit:        "sent you an offer",
	documents.ActionAccept:        "accepted your offer",
	documents.ActionDecline:       "declined your offer",
	documents.ActionCounter:       "countered your offer",
	documents.ActionRequestReview: "requested your review",
	documents.ActionSign:          "signed the document",
	documents.ActionShare:         "shared a document with you",
}

func phrase(action documents.ActionType) string {
	if w, ok := wording[action]; ok {
		return w
	}
	return fmt.Sprintf("performed %s on the document", action)
}

// MessageRecorder stores an in-app copy of a notification; implemented by
// the inbox service.
type MessageRecorder interface {
	Record(ctx context.Context, message *inbox.Message) error
}

// Service delivers transition notifications: an inbox message for known
// recipients plus a best-effort email. It implements documents.Notifier.
type Service struct {
	inbox  MessageRecorder
	email  EmailSender
	users  users.Repository
	logger *zap.Logger
}

func NewService(recorder MessageRecorder, email EmailSender, usersRepo users.Repository, logger *zap.Logger) *Service {
	return &Service{inbox: recorder, email: email, users: usersRepo, logger: logger}
}

func (s *Service) NotifyAction(ctx context.Context, from users.UserProfile, to users.UserProfile, action documents.ActionType, link string) error {
	var errs []error

	message := &inbox.Message{
		SenderID:    &from.ID,
		RecipientID: &to.ID,
		Content:     fmt.Sprintf("%s %s.", from.FullName(), phrase(action)),
		Metadata:    datatypes.JSON(fmt.Sprintf(`{"action":%q,"link":%q}`, action, link)),
	}
	if err := s.inbox.Record(ctx, message); err != nil {
		s.logger.Warn("failed to record inbox message", zap.Error(err))
		errs = append(errs, err)
	}

	// users without a preferences row have not opted into email
	prefs, err := s.users.GetPreferences(ctx, to.ID)
	if err != nil {
		s.logger.Warn("failed to load email preferences", zap.Error(err))
		return errors.Join(append(errs, err)...)
	}
	if prefs == nil {
		s.logger.Info("recipient has no preferences, skipping email",
			zap.String("recipient", to.Email))
		return errors.Join(errs...)
	}

	subject := fmt.Sprintf("%s %s", from.FullName(), phrase(action))
	body := fmt.Sprintf(
		"<div>Hello %s,<br><br>%s %s. Click the link below to view the document:<br><br>%s<br><br>Best,<br>The Offerflow Team</div>",
		to.FirstName, from.FullName(), phrase(action), link)
	if err := s.email.Send(ctx, to.Email, subject, body); err != nil {
		s.logger.Warn("failed to send notification email",
			zap.String("recipient", to.Email),
			zap.Error(err))
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// NotifyEmail reaches a recipient that has no profile yet: email only, with
// the invitation link embedded.
func (s *Service) NotifyEmail(ctx context.Context, from users.UserProfile, email string, action documents.ActionType, link string) error {
	subject := fmt.Sprintf("%s %s", from.FullName(), phrase(action))
	body := fmt.Sprintf(
		"<div>Hello,<br><br>%s %s. Click the link below to view the document:<br><br>%s<br><br>Best,<br>The Offerflow Team</div>",
		from.FullName(), phrase(action), link)
	if err := s.email.Send(ctx, email, subject, body); err != nil {
		s.logger.Warn("failed to send invitation email",
			zap.String("recipient", email),
			zap.Error(err))
		return err
	}
	return nil
}
