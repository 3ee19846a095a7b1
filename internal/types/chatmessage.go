package types

import (
  "time"

  "github.com/google/uuid"
)

// Message roles. The gateway only ever writes RoleUser; RoleModel rows are
// appended by the orchestrator.
const (
  RoleUser  = "user"
  RoleModel = "model"
)

// ChatMessage rows are append-only. The autoincrement ID doubles as the
// tie-breaker when two messages land with the same timestamp.
type ChatMessage struct {
  ID          uint64        `gorm:"primaryKey;autoIncrement" json:"id"`
  ChatID      uuid.UUID     `gorm:"type:uuid;index;not null" json:"chatID"`
  Chat        *Chat         `gorm:"constraint:OnDelete:CASCADE;foreignKey:ChatID;references:ID" json:"-"`
  Role        string        `gorm:"not null;column:role" json:"role"`
  Content     string        `gorm:"column:content" json:"content"`
  ImageData   string        `gorm:"column:image_data" json:"imageData,omitempty"`

  CreatedAt   time.Time     `gorm:"not null;index" json:"createdAt"`
}

func (ChatMessage) TableName() string {
  return "chat_message"
}
