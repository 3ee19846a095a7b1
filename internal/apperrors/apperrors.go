package apperrors

import (
  "errors"
)

// Domain errors. Handlers map these to HTTP statuses; everything else
// surfaces as a generic 500 without leaking internals.
var (
  ErrDuplicateEmail     = errors.New("email is already in use")
  ErrInvalidCredentials = errors.New("invalid email or password")
  ErrUnauthenticated    = errors.New("unauthenticated")
  ErrNotFound           = errors.New("not found")
  ErrModelUnavailable   = errors.New("model unavailable")
)
