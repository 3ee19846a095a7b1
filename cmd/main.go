package main

import (
  "fmt"
  "os"
  "strings"
  "time"

  "github.com/joho/godotenv"

  "github.com/loomchat-org/loomchat-backend/internal/db"
  "github.com/loomchat-org/loomchat-backend/internal/handlers"
  "github.com/loomchat-org/loomchat-backend/internal/logger"
  "github.com/loomchat-org/loomchat-backend/internal/middleware"
  "github.com/loomchat-org/loomchat-backend/internal/repos"
  "github.com/loomchat-org/loomchat-backend/internal/server"
  "github.com/loomchat-org/loomchat-backend/internal/services"
  "github.com/loomchat-org/loomchat-backend/internal/utils"
)

// productionSecretOK reports whether the signing key is acceptable outside
// development: non-empty and not the well-known insecure default.
func productionSecretOK(key string) bool {
  return key != "" && key != services.DefaultInsecureSecret
}

func main() {
  // Local overrides first; absent .env is fine.
  _ = godotenv.Load()

  // Logger Setup
  logMode := os.Getenv("LOG_MODE")
  if logMode == "" {
    logMode = "development"
  }
  log, err := logger.New(logMode)
  if err != nil {
    fmt.Printf("failed to init logger: %v\n", err)
    os.Exit(1)
  }
  defer log.Sync()

  // Environment Variables
  log.Info("Attempting to load environment variables for Main now...")
  appEnv := utils.GetEnv("APP_ENV", "development", log)
  jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", services.DefaultInsecureSecret, log)
  sessionTTL := utils.GetEnvAsInt("SESSION_TOKEN_TTL", 7*24*3600, log)
  allowOrigins := utils.GetEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000", log)
  log.Info("Environment variables loaded for Main :)")

  // A production deployment never runs on the insecure default key, and an
  // explicitly empty JWT_SECRET_KEY is just as unusable.
  if appEnv == "production" && !productionSecretOK(jwtSecretKey) {
    log.Error("JWT_SECRET_KEY must be set to a real secret in production, refusing to start")
    os.Exit(1)
  }
  if jwtSecretKey == services.DefaultInsecureSecret {
    log.Warn("Using the insecure default JWT secret; fine for development only")
  }

  // Postgres Setup
  log.Info("Setting Up Postgres from Main now...")
  postgresService, err := db.NewPostgresService(log)
  if err != nil {
    log.Error("DB init failed", "error", err)
    os.Exit(1)
  }
  if err = postgresService.AutoMigrateAll(); err != nil {
    log.Warn("Postgres auto migration failed", "error", err)
  }
  thePG := postgresService.DB()
  log.Info("Postgres Setup From Main Successful :)")

  // Repositories Setup
  log.Info("Setting Up Repositories from Main now...")
  userRepo := repos.NewUserRepo(thePG, log)
  chatRepo := repos.NewChatRepo(thePG, log)
  chatMessageRepo := repos.NewChatMessageRepo(thePG, log)
  log.Info("Repositories Set Up From Main Successful :)")

  // Services Setup
  log.Info("Setting up Services from Main now...")
  modelClient, err := services.NewLLMClient(log)
  if err != nil {
    log.Error("Fatal error: Cannot init LLMClient", "error", err)
    os.Exit(1)
  }
  authService := services.NewAuthService(thePG, log, userRepo, jwtSecretKey, time.Duration(sessionTTL)*time.Second)
  chatService := services.NewChatService(thePG, log, userRepo, chatRepo, chatMessageRepo)
  convoService := services.NewConvoService(log, userRepo, chatService, modelClient)
  log.Info("Services Set Up From Main Successful :)")

  // Handler Setup
  log.Info("Setting Up Handlers from Main now...")
  secureCookie := appEnv == "production"
  authHandler := handlers.NewAuthHandler(authService, secureCookie)
  chatHandler := handlers.NewChatHandler(chatService, convoService)
  log.Info("Handlers Set Up From Main Successful :)")

  // MiddleWare Setup
  log.Info("Setting Up Middleware from Main now...")
  authMiddleware := middleware.NewAuthMiddleware(log, authService)
  log.Info("Middleware Set Up From Main Successful :)")

  // Router Setup
  log.Info("Setting Up Router from Main now...")
  router := server.NewRouter(server.RouterConfig{
    AuthHandler:    authHandler,
    ChatHandler:    chatHandler,
    AuthMiddleware: authMiddleware,
    AllowOrigins:   strings.Split(allowOrigins, ","),
  })
  log.Info("Router Set Up From Main Successful :)")

  port := utils.GetEnv("PORT", "8080", log)
  fmt.Printf("Server listening on :%s\n", port)
  if err := router.Run(":" + port); err != nil {
    log.Error("Server failed", "error", err)
  }
}
