package inbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrMessageNotFound = errors.New("message not found")

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) (*Service, error) {
	if err := db.AutoMigrate(&Message{}); err != nil {
		return nil, fmt.Errorf("failed to migrate inbox tables: %w", err)
	}
	return &Service{db: db}, nil
}

func (s *Service) Record(ctx context.Context, message *Message) error {
	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}
	return s.db.WithContext(ctx).Create(message).Error
}

func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]Message, error) {
	var messages []Message
	err := s.db.WithContext(ctx).
		Where("recipient_id = ?", userID).
		Order("timestamp DESC").
		Find(&messages).Error
	return messages, err
}

func (s *Service) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	result := s.db.WithContext(ctx).
		Model(&Message{}).
		Where("id = ? AND recipient_id = ?", id, userID).
		Update("read", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMessageNotFound
	}
	return nil
}
