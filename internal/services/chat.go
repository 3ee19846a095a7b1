package services

import (
  "context"
  "errors"
  "fmt"

  "github.com/google/uuid"
  "gorm.io/gorm"

  "github.com/loomchat-org/loomchat-backend/internal/apperrors"
  "github.com/loomchat-org/loomchat-backend/internal/i18n"
  "github.com/loomchat-org/loomchat-backend/internal/logger"
  "github.com/loomchat-org/loomchat-backend/internal/normalization"
  "github.com/loomchat-org/loomchat-backend/internal/repos"
  "github.com/loomchat-org/loomchat-backend/internal/types"
)

type ChatService interface {
  // CreateChat defaults an empty title to the locale-appropriate
  // placeholder for the owner's preferred language.
  CreateChat(ctx context.Context, ownerID uuid.UUID, title string) (*types.Chat, error)
  ListChats(ctx context.Context, ownerID uuid.UUID) ([]*types.Chat, error)
  // DeleteChat reports whether a row was actually removed. Missing and
  // non-owned ids delete nothing and return (false, nil), so callers must
  // not tear down any per-chat state unless deleted is true.
  DeleteChat(ctx context.Context, chatID, ownerID uuid.UUID) (deleted bool, err error)
  // GetOwnedChat returns apperrors.ErrNotFound both for missing chats and
  // for chats owned by someone else, so callers cannot probe existence.
  GetOwnedChat(ctx context.Context, chatID, ownerID uuid.UUID) (*types.Chat, error)
  ListMessages(ctx context.Context, chatID, ownerID uuid.UUID) ([]*types.ChatMessage, error)
  // AppendMessage trusts chatID: ownership is the caller's concern. The
  // orchestrator and handlers only reach here after GetOwnedChat.
  AppendMessage(ctx context.Context, chatID uuid.UUID, role, text, imageData string) (*types.ChatMessage, error)
}

type chatService struct {
  db              *gorm.DB
  log             *logger.Logger
  userRepo        repos.UserRepo
  chatRepo        repos.ChatRepo
  chatMessageRepo repos.ChatMessageRepo
}

func NewChatService(
  db *gorm.DB,
  log *logger.Logger,
  userRepo repos.UserRepo,
  chatRepo repos.ChatRepo,
  chatMessageRepo repos.ChatMessageRepo,
) ChatService {
  serviceLog := log.With("service", "ChatService")
  return &chatService{
    db:              db,
    log:             serviceLog,
    userRepo:        userRepo,
    chatRepo:        chatRepo,
    chatMessageRepo: chatMessageRepo,
  }
}

func (cs *chatService) CreateChat(ctx context.Context, ownerID uuid.UUID, title string) (*types.Chat, error) {
  if ownerID == uuid.Nil {
    return nil, apperrors.ErrUnauthenticated
  }
  chatTitle := normalization.TrimInputString(title)
  if chatTitle == "" {
    chatTitle = i18n.DefaultChatTitle(cs.ownerLanguage(ctx, ownerID))
  }
  chat := &types.Chat{
    ID:     uuid.New(),
    UserID: ownerID,
    Title:  chatTitle,
  }
  created, err := cs.chatRepo.Create(ctx, nil, []*types.Chat{chat})
  if err != nil {
    cs.log.Warn("Failed to create chat, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to create chat: %w", err)
  }
  return created[0], nil
}

func (cs *chatService) ownerLanguage(ctx context.Context, ownerID uuid.UUID) string {
  users, err := cs.userRepo.GetByIDs(ctx, nil, []uuid.UUID{ownerID})
  if err != nil || len(users) == 0 {
    return i18n.DefaultLanguage
  }
  return users[0].PreferredLanguage
}

func (cs *chatService) ListChats(ctx context.Context, ownerID uuid.UUID) ([]*types.Chat, error) {
  if ownerID == uuid.Nil {
    return nil, apperrors.ErrUnauthenticated
  }
  chats, err := cs.chatRepo.GetByUserID(ctx, nil, ownerID)
  if err != nil {
    cs.log.Warn("Failed to list chats, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to list chats: %w", err)
  }
  return chats, nil
}

func (cs *chatService) GetOwnedChat(ctx context.Context, chatID, ownerID uuid.UUID) (*types.Chat, error) {
  chat, err := cs.chatRepo.GetByID(ctx, nil, chatID)
  if err != nil {
    if errors.Is(err, apperrors.ErrNotFound) {
      return nil, apperrors.ErrNotFound
    }
    return nil, err
  }
  if chat.UserID != ownerID {
    return nil, apperrors.ErrNotFound
  }
  return chat, nil
}

func (cs *chatService) DeleteChat(ctx context.Context, chatID, ownerID uuid.UUID) (bool, error) {
  _, err := cs.GetOwnedChat(ctx, chatID, ownerID)
  if err != nil {
    if errors.Is(err, apperrors.ErrNotFound) {
      // Idempotent: missing or non-owned ids delete nothing and say nothing.
      return false, nil
    }
    return false, err
  }
  if err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    return cs.chatRepo.FullDeleteByID(ctx, tx, chatID)
  }); err != nil {
    return false, err
  }
  return true, nil
}

func (cs *chatService) ListMessages(ctx context.Context, chatID, ownerID uuid.UUID) ([]*types.ChatMessage, error) {
  _, err := cs.GetOwnedChat(ctx, chatID, ownerID)
  if err != nil {
    if errors.Is(err, apperrors.ErrNotFound) {
      return []*types.ChatMessage{}, nil
    }
    return nil, err
  }
  msgs, err := cs.chatMessageRepo.GetByChatID(ctx, nil, chatID)
  if err != nil {
    cs.log.Warn("Failed to list messages, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to list messages: %w", err)
  }
  return msgs, nil
}

func (cs *chatService) AppendMessage(ctx context.Context, chatID uuid.UUID, role, text, imageData string) (*types.ChatMessage, error) {
  msg := &types.ChatMessage{
    ChatID:    chatID,
    Role:      role,
    Content:   text,
    ImageData: imageData,
  }
  created, err := cs.chatMessageRepo.CreateMessages(ctx, nil, []*types.ChatMessage{msg})
  if err != nil {
    cs.log.Warn("Failed to append message, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to append message: %w", err)
  }
  return created[0], nil
}
