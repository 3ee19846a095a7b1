package repos

import (
  "context"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/loomchat-org/loomchat-backend/internal/logger"
  "github.com/loomchat-org/loomchat-backend/internal/types"
)

type ChatMessageRepo interface {
  CreateMessages(ctx context.Context, tx *gorm.DB, msgs []*types.ChatMessage) ([]*types.ChatMessage, error)
  GetByChatID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) ([]*types.ChatMessage, error)
}

type chatMessageRepo struct {
  db  *gorm.DB
  log *logger.Logger
}

func NewChatMessageRepo(db *gorm.DB, baseLog *logger.Logger) ChatMessageRepo {
  return &chatMessageRepo{
    db:  db,
    log: baseLog.With("repo", "ChatMessageRepo"),
  }
}

func (cmr *chatMessageRepo) CreateMessages(ctx context.Context, tx *gorm.DB, msgs []*types.ChatMessage) ([]*types.ChatMessage, error) {
  transaction := tx
  if transaction == nil {
    transaction = cmr.db
  }
  if len(msgs) == 0 {
    return msgs, nil
  }
  if err := transaction.WithContext(ctx).Create(&msgs).Error; err != nil {
    cmr.log.Error("failed to create chat messages", "error", err)
    return nil, err
  }
  return msgs, nil
}

func (cmr *chatMessageRepo) GetByChatID(ctx context.Context, tx *gorm.DB, chatID uuid.UUID) ([]*types.ChatMessage, error) {
  transaction := tx
  if transaction == nil {
    transaction = cmr.db
  }
  var msgs []*types.ChatMessage
  // Insertion id breaks created_at ties so the log order is total.
  if err := transaction.WithContext(ctx).
    Where("chat_id = ?", chatID).
    Order("created_at ASC").
    Order("id ASC").
    Find(&msgs).Error; err != nil {
    cmr.log.Error("failed to get chat messages by chatID", "error", err)
    return nil, err
  }
  return msgs, nil
}
