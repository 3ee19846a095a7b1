package handlers_test

import (
  "bytes"
  "context"
  "encoding/json"
  "fmt"
  "net/http"
  "net/http/httptest"
  "testing"
  "time"

  "github.com/gin-gonic/gin"
  "github.com/stretchr/testify/require"
  "gorm.io/driver/sqlite"
  "gorm.io/gorm"

  "github.com/loomchat-org/loomchat-backend/internal/handlers"
  "github.com/loomchat-org/loomchat-backend/internal/logger"
  "github.com/loomchat-org/loomchat-backend/internal/middleware"
  "github.com/loomchat-org/loomchat-backend/internal/repos"
  "github.com/loomchat-org/loomchat-backend/internal/server"
  "github.com/loomchat-org/loomchat-backend/internal/services"
  "github.com/loomchat-org/loomchat-backend/internal/types"
)

type stubModel struct{}

func (stubModel) SendTurn(ctx context.Context, history []services.ModelMessage, text string, image []byte) (string, error) {
  return "stub reply", nil
}

// recordingModel remembers the context handed to the latest turn.
type recordingModel struct {
  lastHistory []services.ModelMessage
}

func (m *recordingModel) SendTurn(ctx context.Context, history []services.ModelMessage, text string, image []byte) (string, error) {
  m.lastHistory = append([]services.ModelMessage(nil), history...)
  return "stub reply", nil
}

func newTestRouter(t *testing.T) *gin.Engine {
  t.Helper()
  return newTestRouterWithModel(t, stubModel{})
}

func newTestRouterWithModel(t *testing.T, model services.ModelClient) *gin.Engine {
  t.Helper()
  gin.SetMode(gin.TestMode)
  dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
  db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
  require.NoError(t, err)
  sqlDB, err := db.DB()
  require.NoError(t, err)
  sqlDB.SetMaxOpenConns(1)
  require.NoError(t, db.AutoMigrate(&types.User{}, &types.Chat{}, &types.ChatMessage{}))

  log := logger.NewNop()
  userRepo := repos.NewUserRepo(db, log)
  chatRepo := repos.NewChatRepo(db, log)
  chatMessageRepo := repos.NewChatMessageRepo(db, log)
  authService := services.NewAuthService(db, log, userRepo, "test-secret", 7*24*time.Hour)
  chatService := services.NewChatService(db, log, userRepo, chatRepo, chatMessageRepo)
  convoService := services.NewConvoService(log, userRepo, chatService, model)

  return server.NewRouter(server.RouterConfig{
    AuthHandler:    handlers.NewAuthHandler(authService, false),
    ChatHandler:    handlers.NewChatHandler(chatService, convoService),
    AuthMiddleware: middleware.NewAuthMiddleware(log, authService),
  })
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
  t.Helper()
  var buf bytes.Buffer
  if body != nil {
    require.NoError(t, json.NewEncoder(&buf).Encode(body))
  }
  req := httptest.NewRequest(method, path, &buf)
  req.Header.Set("Content-Type", "application/json")
  if cookie != nil {
    req.AddCookie(cookie)
  }
  w := httptest.NewRecorder()
  router.ServeHTTP(w, req)
  return w
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
  t.Helper()
  for _, c := range w.Result().Cookies() {
    if c.Name == handlers.SessionCookieName {
      return c
    }
  }
  t.Fatalf("no %s cookie in response", handlers.SessionCookieName)
  return nil
}

func signup(t *testing.T, router *gin.Engine, email string) *http.Cookie {
  t.Helper()
  w := doJSON(t, router, http.MethodPost, "/api/auth/signup", gin.H{"email": email, "password": "secret123"}, nil)
  require.Equal(t, http.StatusOK, w.Code)
  return sessionCookie(t, w)
}

func TestSignupLoginLogoutFlow(t *testing.T) {
  router := newTestRouter(t)

  w := doJSON(t, router, http.MethodPost, "/api/auth/signup", gin.H{"email": "alice@example.com", "password": "secret123"}, nil)
  require.Equal(t, http.StatusOK, w.Code)
  cookie := sessionCookie(t, w)
  require.True(t, cookie.HttpOnly)
  require.NotEmpty(t, cookie.Value)

  // Duplicate signup fails with the named error.
  w = doJSON(t, router, http.MethodPost, "/api/auth/signup", gin.H{"email": "alice@example.com", "password": "other"}, nil)
  require.Equal(t, http.StatusBadRequest, w.Code)
  require.Contains(t, w.Body.String(), "DuplicateEmail")

  // Authenticated /me.
  w = doJSON(t, router, http.MethodGet, "/api/auth/me", nil, cookie)
  require.Equal(t, http.StatusOK, w.Code)
  require.Contains(t, w.Body.String(), "alice@example.com")

  // Logout clears the cookie client-side.
  w = doJSON(t, router, http.MethodPost, "/api/auth/logout", nil, cookie)
  require.Equal(t, http.StatusOK, w.Code)
  cleared := sessionCookie(t, w)
  require.Empty(t, cleared.Value)

  // Bad credentials vs unknown email: same status, same body.
  wrong := doJSON(t, router, http.MethodPost, "/api/auth/login", gin.H{"email": "alice@example.com", "password": "nope"}, nil)
  unknown := doJSON(t, router, http.MethodPost, "/api/auth/login", gin.H{"email": "ghost@example.com", "password": "secret123"}, nil)
  require.Equal(t, http.StatusUnauthorized, wrong.Code)
  require.Equal(t, http.StatusUnauthorized, unknown.Code)
  require.Equal(t, wrong.Body.String(), unknown.Body.String())

  // Logging back in works and the chat list is empty.
  w = doJSON(t, router, http.MethodPost, "/api/auth/login", gin.H{"email": "alice@example.com", "password": "secret123"}, nil)
  require.Equal(t, http.StatusOK, w.Code)
  back := sessionCookie(t, w)
  w = doJSON(t, router, http.MethodGet, "/api/chats", nil, back)
  require.Equal(t, http.StatusOK, w.Code)

  var listResp struct {
    Chats []types.Chat `json:"chats"`
  }
  require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
  require.Empty(t, listResp.Chats)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
  router := newTestRouter(t)

  for _, route := range []struct{ method, path string }{
    {http.MethodGet, "/api/auth/me"},
    {http.MethodGet, "/api/chats"},
    {http.MethodPost, "/api/chats"},
    {http.MethodDelete, "/api/chats/6a6f7cf0-9e6d-4b5f-9e0e-000000000000"},
    {http.MethodGet, "/api/chats/6a6f7cf0-9e6d-4b5f-9e0e-000000000000/messages"},
  } {
    w := doJSON(t, router, route.method, route.path, nil, nil)
    require.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", route.method, route.path)
  }
}

func TestCrossUserIsolationOverHTTP(t *testing.T) {
  router := newTestRouter(t)
  aliceCookie := signup(t, router, "alice@example.com")
  bobCookie := signup(t, router, "bob@example.com")

  // Alice sends a message; a chat is created transparently.
  w := doJSON(t, router, http.MethodPost, "/api/messages", gin.H{"text": "Hello"}, aliceCookie)
  require.Equal(t, http.StatusOK, w.Code)
  var sendResp struct {
    ChatID string `json:"chatId"`
  }
  require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sendResp))
  require.NotEmpty(t, sendResp.ChatID)

  // Bob sees none of it.
  w = doJSON(t, router, http.MethodGet, "/api/chats/"+sendResp.ChatID+"/messages", nil, bobCookie)
  require.Equal(t, http.StatusOK, w.Code)
  var bobMsgs struct {
    Messages []types.ChatMessage `json:"messages"`
  }
  require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bobMsgs))
  require.Empty(t, bobMsgs.Messages)

  // Bob's delete is a 200 no-op.
  w = doJSON(t, router, http.MethodDelete, "/api/chats/"+sendResp.ChatID, nil, bobCookie)
  require.Equal(t, http.StatusOK, w.Code)

  // Alice's data is untouched.
  w = doJSON(t, router, http.MethodGet, "/api/chats/"+sendResp.ChatID+"/messages", nil, aliceCookie)
  require.Equal(t, http.StatusOK, w.Code)
  var aliceMsgs struct {
    Messages []types.ChatMessage `json:"messages"`
  }
  require.NoError(t, json.Unmarshal(w.Body.Bytes(), &aliceMsgs))
  require.Len(t, aliceMsgs.Messages, 2, "user turn plus stub model reply")

  // Alice's own delete is real and idempotent.
  w = doJSON(t, router, http.MethodDelete, "/api/chats/"+sendResp.ChatID, nil, aliceCookie)
  require.Equal(t, http.StatusOK, w.Code)
  w = doJSON(t, router, http.MethodDelete, "/api/chats/"+sendResp.ChatID, nil, aliceCookie)
  require.Equal(t, http.StatusOK, w.Code)
}

func TestNonOwnerDeleteKeepsLiveContext(t *testing.T) {
  model := &recordingModel{}
  router := newTestRouterWithModel(t, model)
  aliceCookie := signup(t, router, "alice@example.com")
  bobCookie := signup(t, router, "bob@example.com")

  // Two turns build up Alice's conversation context.
  w := doJSON(t, router, http.MethodPost, "/api/messages", gin.H{"text": "First"}, aliceCookie)
  require.Equal(t, http.StatusOK, w.Code)
  var sendResp struct {
    ChatID string `json:"chatId"`
  }
  require.NoError(t, json.Unmarshal(w.Body.Bytes(), &sendResp))
  w = doJSON(t, router, http.MethodPost, "/api/chats/"+sendResp.ChatID+"/messages", gin.H{"text": "Second"}, aliceCookie)
  require.Equal(t, http.StatusOK, w.Code)
  require.Len(t, model.lastHistory, 3, "system instruction plus the first exchange")

  // Bob's no-op delete of Alice's chat must not reset that context.
  w = doJSON(t, router, http.MethodDelete, "/api/chats/"+sendResp.ChatID, nil, bobCookie)
  require.Equal(t, http.StatusOK, w.Code)

  w = doJSON(t, router, http.MethodPost, "/api/chats/"+sendResp.ChatID+"/messages", gin.H{"text": "Third"}, aliceCookie)
  require.Equal(t, http.StatusOK, w.Code)
  require.Len(t, model.lastHistory, 5, "context must survive a non-owner delete")

  // Alice's own delete does evict: the next turn starts a fresh chat context.
  w = doJSON(t, router, http.MethodDelete, "/api/chats/"+sendResp.ChatID, nil, aliceCookie)
  require.Equal(t, http.StatusOK, w.Code)
  w = doJSON(t, router, http.MethodPost, "/api/messages", gin.H{"text": "Again"}, aliceCookie)
  require.Equal(t, http.StatusOK, w.Code)
  require.Len(t, model.lastHistory, 1, "a fresh chat starts with only the system instruction")
}
