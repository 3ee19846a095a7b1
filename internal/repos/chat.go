package repos

import (
  "context"
  "errors"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/loomchat-org/loomchat-backend/internal/apperrors"
  "github.com/loomchat-org/loomchat-backend/internal/logger"
  "github.com/loomchat-org/loomchat-backend/internal/types"
)

type ChatRepo interface {
  // CREATE
  Create(ctx context.Context, tx *gorm.DB, chats []*types.Chat) ([]*types.Chat, error)

  // READ
  GetByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.Chat, error)
  GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Chat, error)

  // FULL (HARD) DELETE
  FullDeleteByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) error
}

type chatRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewChatRepo(db *gorm.DB, baseLog *logger.Logger) ChatRepo {
  repoLog := baseLog.With("repo", "ChatRepo")
  return &chatRepo{db: db, log: repoLog}
}

func (cr *chatRepo) Create(ctx context.Context, tx *gorm.DB, chats []*types.Chat) ([]*types.Chat, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  if len(chats) == 0 {
    return []*types.Chat{}, nil
  }
  for _, c := range chats {
    if c.ID == uuid.Nil {
      c.ID = uuid.New()
    }
  }
  if err := transaction.WithContext(ctx).Create(&chats).Error; err != nil {
    cr.log.Error("Failed to create chats", "error", err)
    return nil, err
  }
  return chats, nil
}

func (cr *chatRepo) GetByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) (*types.Chat, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  var chat types.Chat
  if err := transaction.WithContext(ctx).
    Where("id = ?", chatID).
    First(&chat).Error; err != nil {
    if errors.Is(err, gorm.ErrRecordNotFound) {
      return nil, apperrors.ErrNotFound
    }
    cr.log.Error("Failed to get chat by id", "error", err)
    return nil, err
  }
  return &chat, nil
}

func (cr *chatRepo) GetByUserID(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Chat, error) {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  var chats []*types.Chat
  if err := transaction.WithContext(ctx).
    Where("user_id = ?", userID).
    Order("created_at DESC").
    Find(&chats).Error; err != nil {
    cr.log.Error("Failed to get chats by user id", "error", err)
    return nil, err
  }
  return chats, nil
}

func (cr *chatRepo) FullDeleteByID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) error {
  transaction := tx
  if transaction == nil {
    transaction = cr.db
  }
  // Messages go first so no orphans survive even without DB-level cascade.
  if err := transaction.WithContext(ctx).
    Where("chat_id = ?", chatID).
    Delete(&types.ChatMessage{}).Error; err != nil {
    cr.log.Error("Failed to delete chat messages for chat", "error", err)
    return err
  }
  if err := transaction.WithContext(ctx).
    Where("id = ?", chatID).
    Delete(&types.Chat{}).Error; err != nil {
    cr.log.Error("Failed to delete chat", "error", err)
    return err
  }
  return nil
}
