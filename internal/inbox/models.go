package inbox

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Message is an in-app notification delivered alongside (or instead of) the
// notification email.
type Message struct {
	ID          uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	SenderID    *uuid.UUID     `json:"sender_id" gorm:"type:uuid;index"`
	RecipientID *uuid.UUID     `json:"recipient_id" gorm:"type:uuid;index"`
	Content     string         `json:"content" gorm:"type:text;not null"`
	Metadata    datatypes.JSON `json:"metadata,omitempty"`
	Timestamp   time.Time      `json:"timestamp" gorm:"autoCreateTime;index"`
	Read        bool           `json:"read" gorm:"default:false"`
}
