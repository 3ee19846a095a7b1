package services

import (
  "context"
  "encoding/base64"
  "fmt"
  "strings"
  "sync"
  "unicode/utf8"

  "github.com/google/uuid"

  "github.com/loomchat-org/loomchat-backend/internal/apperrors"
  "github.com/loomchat-org/loomchat-backend/internal/i18n"
  "github.com/loomchat-org/loomchat-backend/internal/logger"
  "github.com/loomchat-org/loomchat-backend/internal/normalization"
  "github.com/loomchat-org/loomchat-backend/internal/repos"
  "github.com/loomchat-org/loomchat-backend/internal/types"
)

const derivedTitleMaxLen = 40

// TurnResult is everything one user turn produced. ModelOK is false when the
// model call failed and Reply is the persisted fallback message instead of a
// real model answer.
type TurnResult struct {
  Chat        *types.Chat
  UserMessage *types.ChatMessage
  Reply       *types.ChatMessage
  ModelOK     bool
}

type ConvoService interface {
  // SendMessage runs one turn: resolve or lazily create the chat, persist
  // the user message unconditionally, forward to the model under the
  // per-chat lock, persist the reply (or a localized fallback).
  SendMessage(ctx context.Context, ownerID uuid.UUID, chatID *uuid.UUID, text, imageData string) (*TurnResult, error)
  // EvictContext drops the live conversation context for a chat. Called on
  // chat deletion; contexts otherwise live for the life of the process.
  EvictContext(chatID uuid.UUID)
}

// chatContext is the model's running dialogue state for one chat. The mutex
// serializes turns so two model calls never interleave on one context.
type chatContext struct {
  mu      sync.Mutex
  history []ModelMessage
}

type convoService struct {
  log         *logger.Logger
  userRepo    repos.UserRepo
  chatService ChatService
  modelClient ModelClient

  mu       sync.Mutex
  contexts map[uuid.UUID]*chatContext
}

func NewConvoService(
  log *logger.Logger,
  userRepo repos.UserRepo,
  chatService ChatService,
  modelClient ModelClient,
) ConvoService {
  serviceLog := log.With("service", "ConvoService")
  return &convoService{
    log:         serviceLog,
    userRepo:    userRepo,
    chatService: chatService,
    modelClient: modelClient,
    contexts:    make(map[uuid.UUID]*chatContext),
  }
}

func (vs *convoService) SendMessage(ctx context.Context, ownerID uuid.UUID, chatID *uuid.UUID, text, imageData string) (*TurnResult, error) {
  if ownerID == uuid.Nil {
    return nil, apperrors.ErrUnauthenticated
  }
  text = normalization.TrimInputString(text)
  if text == "" && imageData == "" {
    return nil, fmt.Errorf("a message needs text or an image")
  }

  language := vs.languageFor(ctx, ownerID)

  //1) Resolve or lazily create the chat
  chat, err := vs.ensureChat(ctx, ownerID, chatID, text)
  if err != nil {
    return nil, err
  }

  //2) Persist the user message before anything can fail downstream. The
  //   original data URI is what gets stored so the message re-renders
  //   without the orchestrator.
  userMsg, err := vs.chatService.AppendMessage(ctx, chat.ID, types.RoleUser, text, imageData)
  if err != nil {
    return nil, err
  }

  imageBytes := decodeDataURI(vs.log, imageData)

  //3) One in-flight model call per chat.
  cc := vs.contextFor(chat.ID, language)
  cc.mu.Lock()
  defer cc.mu.Unlock()

  //4) Forward the turn
  replyText, modelErr := vs.modelClient.SendTurn(ctx, cc.history, text, imageBytes)
  if modelErr != nil {
    //6) Persist a localized fallback so the log stays a complete record.
    //   The failed turn is not added to the live context.
    vs.log.Warn("model call failed, persisting fallback reply", "chatID", chat.ID, "error", modelErr)
    fallback := i18n.ModelFailureReply(language)
    reply, aErr := vs.chatService.AppendMessage(ctx, chat.ID, types.RoleModel, fallback, "")
    if aErr != nil {
      return nil, aErr
    }
    return &TurnResult{Chat: chat, UserMessage: userMsg, Reply: reply, ModelOK: false}, nil
  }

  //5) Persist the reply and extend the live context.
  reply, err := vs.chatService.AppendMessage(ctx, chat.ID, types.RoleModel, replyText, "")
  if err != nil {
    return nil, err
  }
  cc.history = append(cc.history,
    ModelMessage{Role: types.RoleUser, Text: text, Image: imageBytes},
    ModelMessage{Role: types.RoleModel, Text: replyText},
  )
  return &TurnResult{Chat: chat, UserMessage: userMsg, Reply: reply, ModelOK: true}, nil
}

func (vs *convoService) EvictContext(chatID uuid.UUID) {
  vs.mu.Lock()
  defer vs.mu.Unlock()
  delete(vs.contexts, chatID)
}

func (vs *convoService) ensureChat(ctx context.Context, ownerID uuid.UUID, chatID *uuid.UUID, text string) (*types.Chat, error) {
  if chatID != nil && *chatID != uuid.Nil {
    return vs.chatService.GetOwnedChat(ctx, *chatID, ownerID)
  }
  return vs.chatService.CreateChat(ctx, ownerID, deriveTitle(text))
}

// contextFor returns the live context for a chat, creating one on first use.
// A fresh context starts with only the system instruction: history is NOT
// replayed from the persisted log, so a process restart forgets prior turns
// even though the stored messages still show them. Known limitation.
func (vs *convoService) contextFor(chatID uuid.UUID, language string) *chatContext {
  vs.mu.Lock()
  defer vs.mu.Unlock()
  cc, ok := vs.contexts[chatID]
  if !ok {
    cc = &chatContext{
      history: []ModelMessage{
        {Role: wireRoleSystem, Text: i18n.SystemInstruction(language)},
      },
    }
    vs.contexts[chatID] = cc
  }
  return cc
}

func (vs *convoService) languageFor(ctx context.Context, ownerID uuid.UUID) string {
  users, err := vs.userRepo.GetByIDs(ctx, nil, []uuid.UUID{ownerID})
  if err != nil || len(users) == 0 {
    vs.log.Warn("could not load user for language preference, using default", "error", err)
    return i18n.DefaultLanguage
  }
  return users[0].PreferredLanguage
}

// decodeDataURI strips the "data:<mime>;base64," transport prefix and returns
// the raw bytes. Anything undecodable is forwarded as no image; the stored
// message still carries the original string.
func decodeDataURI(log *logger.Logger, dataURI string) []byte {
  if dataURI == "" {
    return nil
  }
  idx := strings.Index(dataURI, ",")
  if idx < 0 || !strings.HasPrefix(dataURI, "data:") {
    log.Warn("image attachment is not a data URI, forwarding without image")
    return nil
  }
  raw, err := base64.StdEncoding.DecodeString(dataURI[idx+1:])
  if err != nil {
    log.Warn("failed to decode image attachment, forwarding without image", "error", err)
    return nil
  }
  return raw
}

func deriveTitle(text string) string {
  title := normalization.TrimInputString(text)
  if utf8.RuneCountInString(title) > derivedTitleMaxLen {
    runes := []rune(title)
    title = string(runes[:derivedTitleMaxLen])
  }
  return title
}
