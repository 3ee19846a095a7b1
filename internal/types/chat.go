package types

import (
  "time"

  "github.com/google/uuid"
)

type Chat struct {
  ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
  UserID      uuid.UUID     `gorm:"index;not null" json:"userID"`
  User        *User         `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
  Title       string        `gorm:"column:title" json:"title"`

  CreatedAt   time.Time     `gorm:"not null" json:"createdAt"`
  UpdatedAt   time.Time     `gorm:"not null" json:"updatedAt"`
}

func (Chat) TableName() string {
  return "chat"
}
