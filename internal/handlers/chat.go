package handlers

import (
  "net/http"

  "github.com/gin-gonic/gin"
  "github.com/google/uuid"

  "github.com/loomchat-org/loomchat-backend/internal/requestdata"
  "github.com/loomchat-org/loomchat-backend/internal/services"
)

type ChatHandler struct {
  chatService  services.ChatService
  convoService services.ConvoService
}

func NewChatHandler(chatService services.ChatService, convoService services.ConvoService) *ChatHandler {
  return &ChatHandler{chatService: chatService, convoService: convoService}
}

func (ch *ChatHandler) ListChats(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
    return
  }
  chats, err := ch.chatService.ListChats(c.Request.Context(), rd.UserID)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list chats"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"chats": chats})
}

func (ch *ChatHandler) CreateChat(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
    return
  }
  var req struct {
    Title string `json:"title,omitempty"`
  }
  // An empty body is fine; the title defaults server-side.
  _ = c.ShouldBindJSON(&req)
  chat, err := ch.chatService.CreateChat(c.Request.Context(), rd.UserID, req.Title)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create chat"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"chat": chat})
}

func (ch *ChatHandler) DeleteChat(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
    return
  }
  chatID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    // An unparsable id deletes nothing, same as a non-owned one.
    c.JSON(http.StatusOK, gin.H{"success": true})
    return
  }
  deleted, err := ch.chatService.DeleteChat(c.Request.Context(), chatID, rd.UserID)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete chat"})
    return
  }
  // Only the owner's delete tears down the live context; a no-op delete by
  // anyone else must not reset the model's memory of the conversation.
  if deleted {
    ch.convoService.EvictContext(chatID)
  }
  c.JSON(http.StatusOK, gin.H{"success": true})
}

func (ch *ChatHandler) ListMessages(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
    return
  }
  chatID, err := uuid.Parse(c.Param("id"))
  if err != nil {
    c.JSON(http.StatusOK, gin.H{"messages": []struct{}{}})
    return
  }
  msgs, err := ch.chatService.ListMessages(c.Request.Context(), chatID, rd.UserID)
  if err != nil {
    c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list messages"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (ch *ChatHandler) SendMessage(c *gin.Context) {
  rd := requestdata.GetRequestData(c.Request.Context())
  if rd == nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
    return
  }
  var req struct {
    // Role is accepted for API compatibility but the gateway only ever
    // writes user turns; model replies are server-assigned.
    Role      string `json:"role,omitempty"`
    Text      string `json:"text"`
    ImageData string `json:"imageData,omitempty"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  // No :id means the chat is created transparently on first send.
  var chatID *uuid.UUID
  if raw := c.Param("id"); raw != "" {
    parsed, err := uuid.Parse(raw)
    if err != nil {
      c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
      return
    }
    chatID = &parsed
  }
  result, err := ch.convoService.SendMessage(c.Request.Context(), rd.UserID, chatID, req.Text, req.ImageData)
  if err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{
    "success": true,
    "chatId":  result.Chat.ID,
    "reply":   result.Reply,
    "modelOk": result.ModelOK,
  })
}
