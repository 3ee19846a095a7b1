package handlers

import (
  "errors"
  "net/http"

  "github.com/gin-gonic/gin"

  "github.com/loomchat-org/loomchat-backend/internal/apperrors"
  "github.com/loomchat-org/loomchat-backend/internal/services"
  "github.com/loomchat-org/loomchat-backend/internal/types"
)

const SessionCookieName = "session_token"

type AuthHandler struct {
  authService  services.AuthService
  secureCookie bool
}

func NewAuthHandler(authService services.AuthService, secureCookie bool) *AuthHandler {
  return &AuthHandler{authService: authService, secureCookie: secureCookie}
}

func (ah *AuthHandler) setSessionCookie(c *gin.Context, token string) {
  maxAge := int(ah.authService.GetSessionTTL().Seconds())
  c.SetCookie(SessionCookieName, token, maxAge, "/", "", ah.secureCookie, true)
}

func (ah *AuthHandler) clearSessionCookie(c *gin.Context) {
  c.SetCookie(SessionCookieName, "", -1, "/", "", ah.secureCookie, true)
}

func userBody(user *types.User) gin.H {
  return gin.H{
    "id":                user.ID,
    "email":             user.Email,
    "preferredLanguage": user.PreferredLanguage,
  }
}

func (ah *AuthHandler) Signup(c *gin.Context) {
  var req struct {
    Email    string `json:"email"`
    Password string `json:"password"`
    Language string `json:"language,omitempty"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  if req.Email == "" || req.Password == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "email and password are required"})
    return
  }
  user, token, err := ah.authService.Register(c.Request.Context(), req.Email, req.Password, req.Language)
  if err != nil {
    if errors.Is(err, apperrors.ErrDuplicateEmail) {
      c.JSON(http.StatusBadRequest, gin.H{"error": "DuplicateEmail"})
      return
    }
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  ah.setSessionCookie(c, token)
  c.JSON(http.StatusOK, gin.H{"user": gin.H{"email": user.Email}})
}

func (ah *AuthHandler) Login(c *gin.Context) {
  var req struct {
    Email    string `json:"email"`
    Password string `json:"password"`
  }
  if err := c.ShouldBindJSON(&req); err != nil {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  user, token, err := ah.authService.Login(c.Request.Context(), req.Email, req.Password)
  if err != nil {
    // Wrong password and unknown email answer identically.
    c.JSON(http.StatusUnauthorized, gin.H{"error": "InvalidCredentials"})
    return
  }
  ah.setSessionCookie(c, token)
  c.JSON(http.StatusOK, gin.H{"user": gin.H{"email": user.Email}})
}

// Logout is advisory: it clears the client cookie but a replayed token stays
// valid until its expiry. Documented weakness of the stateless design.
func (ah *AuthHandler) Logout(c *gin.Context) {
  ah.clearSessionCookie(c)
  c.JSON(http.StatusOK, gin.H{"success": true})
}

func (ah *AuthHandler) Me(c *gin.Context) {
  user, err := ah.authService.GetMe(c.Request.Context())
  if err != nil {
    c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
    return
  }
  c.JSON(http.StatusOK, gin.H{"user": userBody(user)})
}

func (ah *AuthHandler) UpdateLanguage(c *gin.Context) {
  var req struct {
    Language string `json:"language"`
  }
  if err := c.ShouldBindJSON(&req); err != nil || req.Language == "" {
    c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
    return
  }
  user, err := ah.authService.UpdateLanguage(c.Request.Context(), req.Language)
  if err != nil {
    if errors.Is(err, apperrors.ErrUnauthenticated) {
      c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthenticated"})
      return
    }
    c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
    return
  }
  c.JSON(http.StatusOK, gin.H{"user": userBody(user)})
}
