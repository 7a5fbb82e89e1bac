package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lbsgbg/club-backend/internal/auth"
	"github.com/lbsgbg/club-backend/pkg/response"
)

const (
	// ContextSession is the key for the resolved session in gin context.
	ContextSession = "session"
)

// Session returns a middleware that requires a valid JWT and sets the
// resolved session in context. Role decisions happen in the services;
// this only establishes who is calling.
func Session(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := bearerClaims(c, jwtService)
		if err != nil {
			response.Unauthorized(c, "invalid or missing token")
			c.Abort()
			return
		}
		c.Set(ContextSession, claims.Session())
		c.Next()
	}
}

// OptionalSession resolves a session when a valid bearer token is
// present and leaves the request anonymous otherwise. Used on public
// endpoints that still rate-limit per authenticated user.
func OptionalSession(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, err := bearerClaims(c, jwtService); err == nil {
			c.Set(ContextSession, claims.Session())
		}
		c.Next()
	}
}

// SessionFrom returns the session set by Session/OptionalSession, or
// nil for anonymous requests.
func SessionFrom(c *gin.Context) *auth.Session {
	v, ok := c.Get(ContextSession)
	if !ok {
		return nil
	}
	s, _ := v.(*auth.Session)
	return s
}

func bearerClaims(c *gin.Context, jwtService *auth.JWTService) (*auth.Claims, error) {
	header := c.GetHeader("Authorization")
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, auth.ErrInvalidToken
	}
	return jwtService.Validate(parts[1])
}
