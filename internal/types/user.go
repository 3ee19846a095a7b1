package types

import (
  "time"

  "github.com/google/uuid"
)

type User struct {
  ID                  uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
  Email               string        `gorm:"uniqueIndex;not null;column:email" json:"email"`
  Password            string        `gorm:"not null;column:password" json:"-"`
  PreferredLanguage   string        `gorm:"column:preferred_language;default:en" json:"preferredLanguage"`

  CreatedAt           time.Time     `gorm:"not null" json:"createdAt"`
  UpdatedAt           time.Time     `gorm:"not null" json:"updatedAt"`
}

func (User) TableName() string {
  return "user"
}
