package services

import (
  "context"
  "fmt"
  "time"

  "golang.org/x/crypto/bcrypt"
  "gorm.io/gorm"

  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"

  "github.com/loomchat-org/loomchat-backend/internal/apperrors"
  "github.com/loomchat-org/loomchat-backend/internal/i18n"
  "github.com/loomchat-org/loomchat-backend/internal/logger"
  "github.com/loomchat-org/loomchat-backend/internal/normalization"
  "github.com/loomchat-org/loomchat-backend/internal/repos"
  "github.com/loomchat-org/loomchat-backend/internal/requestdata"
  "github.com/loomchat-org/loomchat-backend/internal/types"
  "github.com/loomchat-org/loomchat-backend/internal/utils"
)

// DefaultInsecureSecret is the development-only signing key. main refuses
// to start with it when APP_ENV=production.
const DefaultInsecureSecret = "insecure-dev-secret"

// bcrypt hash of an arbitrary string, compared against when the email is
// unknown so a missing user and a wrong password take roughly the same time.
const dummyPasswordHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type JWTClaims struct {
  jwt.RegisteredClaims
  Email string `json:"email,omitempty"`
}

type AuthService interface {
  Register(ctx context.Context, email, password, language string) (*types.User, string, error)
  Login(ctx context.Context, email, password string) (*types.User, string, error)

  IssueToken(user *types.User) (string, error)
  SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)

  GetMe(ctx context.Context) (*types.User, error)
  UpdateLanguage(ctx context.Context, language string) (*types.User, error)

  GetSessionTTL() time.Duration
}

type authService struct {
  db           *gorm.DB
  log          *logger.Logger
  userRepo     repos.UserRepo
  jwtSecretKey string
  sessionTTL   time.Duration
}

func NewAuthService(
  db *gorm.DB,
  log *logger.Logger,
  userRepo repos.UserRepo,
  jwtSecretKey string,
  sessionTTL time.Duration,
) AuthService {
  serviceLog := log.With("service", "AuthService")
  return &authService{
    db:           db,
    log:          serviceLog,
    userRepo:     userRepo,
    jwtSecretKey: jwtSecretKey,
    sessionTTL:   sessionTTL,
  }
}

func (as *authService) Register(ctx context.Context, email, password, language string) (*types.User, string, error) {
  user := &types.User{
    Email:             email,
    Password:          password,
    PreferredLanguage: language,
  }
  utils.NormalizeUserFields(ctx, user)
  if user.Email == "" {
    return nil, "", fmt.Errorf("an email is required to register")
  }
  if user.Password == "" {
    return nil, "", fmt.Errorf("a password is required to register")
  }
  if !i18n.Supported(user.PreferredLanguage) {
    user.PreferredLanguage = i18n.DefaultLanguage
  }

  emailExists, err := as.userRepo.EmailExists(ctx, nil, user.Email)
  if err != nil {
    as.log.Warn("Failed to check if user email exists, Cannot proceed. Returning error.", "error", err)
    return nil, "", fmt.Errorf("Failed checking user email existence: %w", err)
  }
  if emailExists {
    as.log.Warn("Email is already in use, Cannot proceed.", "email", user.Email)
    return nil, "", apperrors.ErrDuplicateEmail
  }

  if hErr := utils.HashPassword(ctx, as.log, user); hErr != nil {
    return nil, "", hErr
  }

  if err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    _, cErr := as.userRepo.Create(ctx, tx, []*types.User{user})
    return cErr
  }); err != nil {
    // The unique index can still trip under a concurrent signup race.
    return nil, "", err
  }

  token, tErr := as.IssueToken(user)
  if tErr != nil {
    as.log.Warn("Failed to issue session token after registration, Cannot proceed. Returning error.", "error", tErr)
    return nil, "", fmt.Errorf("Failed to issue session token: %w", tErr)
  }
  return user, token, nil
}

func (as *authService) Login(ctx context.Context, userEmail, userPassword string) (*types.User, string, error) {
  email := normalization.ParseInputString(userEmail)

  users, uSErr := as.userRepo.GetByEmails(ctx, nil, []string{email})
  if uSErr != nil {
    as.log.Warn("Failure to retrieve user by email, Cannot proceed. Returning error.", "error", uSErr)
    return nil, "", fmt.Errorf("error retrieving user by email: %w", uSErr)
  }
  if len(users) == 0 {
    // Burn a comparison anyway so unknown emails do not answer faster
    // than wrong passwords.
    _ = bcrypt.CompareHashAndPassword([]byte(dummyPasswordHash), []byte(userPassword))
    as.log.Warn("Login attempt for unknown email")
    return nil, "", apperrors.ErrInvalidCredentials
  }
  user := users[0]
  if hErr := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(userPassword)); hErr != nil {
    as.log.Warn("Login attempt with wrong password")
    return nil, "", apperrors.ErrInvalidCredentials
  }

  token, tErr := as.IssueToken(user)
  if tErr != nil {
    as.log.Warn("Failed to issue session token on login, Cannot proceed. Returning error.", "error", tErr)
    return nil, "", fmt.Errorf("Failed to issue session token: %w", tErr)
  }
  return user, token, nil
}

func (as *authService) IssueToken(user *types.User) (string, error) {
  now := time.Now()
  claims := JWTClaims{
    RegisteredClaims: jwt.RegisteredClaims{
      Subject:   user.ID.String(),
      IssuedAt:  jwt.NewNumericDate(now),
      ExpiresAt: jwt.NewNumericDate(now.Add(as.sessionTTL)),
    },
    Email: user.Email,
  }
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
  return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
  if tokenString == "" {
    return ctx, apperrors.ErrUnauthenticated
  }
  parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
    if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
      return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
    }
    return []byte(as.jwtSecretKey), nil
  })
  if err != nil {
    return ctx, fmt.Errorf("%w: %v", apperrors.ErrUnauthenticated, err)
  }
  claims, ok := parsedToken.Claims.(*JWTClaims)
  if !ok || !parsedToken.Valid {
    return ctx, apperrors.ErrUnauthenticated
  }
  userID, err := uuid.Parse(claims.Subject)
  if err != nil {
    return ctx, fmt.Errorf("%w: invalid user id in token", apperrors.ErrUnauthenticated)
  }
  rd := &requestdata.RequestData{
    TokenString: tokenString,
    UserID:      userID,
    Email:       claims.Email,
  }
  return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) GetMe(ctx context.Context) (*types.User, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil || rd.UserID == uuid.Nil {
    return nil, apperrors.ErrUnauthenticated
  }
  users, err := as.userRepo.GetByIDs(ctx, nil, []uuid.UUID{rd.UserID})
  if err != nil {
    as.log.Warn("Failed to load user for GetMe, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to load user: %w", err)
  }
  if len(users) == 0 {
    return nil, apperrors.ErrUnauthenticated
  }
  return users[0], nil
}

func (as *authService) UpdateLanguage(ctx context.Context, language string) (*types.User, error) {
  user, err := as.GetMe(ctx)
  if err != nil {
    return nil, err
  }
  lang := normalization.ParseInputString(language)
  if !i18n.Supported(lang) {
    return nil, fmt.Errorf("unsupported language: %q", language)
  }
  user.PreferredLanguage = lang
  if _, err := as.userRepo.Update(ctx, nil, []*types.User{user}); err != nil {
    as.log.Warn("Failed to update preferred language, Cannot proceed. Returning error.", "error", err)
    return nil, fmt.Errorf("Failed to update preferred language: %w", err)
  }
  return user, nil
}

func (as *authService) GetSessionTTL() time.Duration {
  return as.sessionTTL
}
