package middleware

import (
  "net/http"
  "strings"

  "github.com/gin-gonic/gin"

  "github.com/dedupehq/dedupe-backend/internal/logger"
)

// TokenValidator decides whether a bearer token may use the API.
// Authentication itself is an upstream concern; deployments plug in
// whatever validator their gateway issues tokens for.
type TokenValidator interface {
  Validate(token string) error
}

// AllowAll accepts every request, including ones with no token. It is the
// default for deployments that terminate auth at the edge.
type AllowAll struct{}

func (AllowAll) Validate(string) error { return nil }

type AuthMiddleware struct {
  log       *logger.Logger
  validator TokenValidator
}

func NewAuthMiddleware(log *logger.Logger, validator TokenValidator) *AuthMiddleware {
  if validator == nil {
    validator = AllowAll{}
  }
  return &AuthMiddleware{
    log:       log.With("Middleware", "AuthMiddleware"),
    validator: validator,
  }
}

func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
  return func(c *gin.Context) {
    if _, allowAll := am.validator.(AllowAll); allowAll {
      c.Next()
      return
    }
    token := extractToken(c)
    if token == "" {
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
      return
    }
    if err := am.validator.Validate(token); err != nil {
      am.log.Debug("Token rejected", "error", err)
      c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid token"})
      return
    }
    c.Next()
  }
}

func extractToken(c *gin.Context) string {
  authHeader := c.GetHeader("Authorization")
  if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
    return authHeader[7:]
  }
  return c.Query("token")
}
