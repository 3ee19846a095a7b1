package server

import (
  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/loomchat-org/loomchat-backend/internal/handlers"
  "github.com/loomchat-org/loomchat-backend/internal/middleware"
)

type RouterConfig struct {
  AuthHandler    *handlers.AuthHandler
  ChatHandler    *handlers.ChatHandler
  AuthMiddleware *middleware.AuthMiddleware
  AllowOrigins   []string
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.Default()

  //-----------------------------------------
  // Cors Setup
  //-----------------------------------------
  allowOrigins := cfg.AllowOrigins
  if len(allowOrigins) == 0 {
    allowOrigins = []string{"http://localhost:3000"}
  }
  router.Use(cors.New(cors.Config{
    AllowOrigins:     allowOrigins,
    AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  //-----------------------------------------
  // Health Routes
  //-----------------------------------------
  router.GET("/healthz", handlers.Healthz)

  //-----------------------------------------
  // Public Routes
  //-----------------------------------------
  api := router.Group("/api")
  {
    api.POST("/auth/signup", cfg.AuthHandler.Signup)
    api.POST("/auth/login", cfg.AuthHandler.Login)
    api.POST("/auth/logout", cfg.AuthHandler.Logout)
  }

  //------------------------------------------
  // Protected Routes
  //------------------------------------------
  protected := api.Group("/")
  protected.Use(cfg.AuthMiddleware.RequireAuth())

  //ME
  protected.GET("/auth/me", cfg.AuthHandler.Me)
  protected.PUT("/auth/me/language", cfg.AuthHandler.UpdateLanguage)

  //Chats
  protected.GET("/chats", cfg.ChatHandler.ListChats)
  protected.POST("/chats", cfg.ChatHandler.CreateChat)
  protected.DELETE("/chats/:id", cfg.ChatHandler.DeleteChat)
  protected.GET("/chats/:id/messages", cfg.ChatHandler.ListMessages)
  protected.POST("/chats/:id/messages", cfg.ChatHandler.SendMessage)
  // First send without an existing chat: created transparently.
  protected.POST("/messages", cfg.ChatHandler.SendMessage)

  return router
}
