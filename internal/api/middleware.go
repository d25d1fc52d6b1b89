package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"appointment-service/internal/logging"
)

const ownerKey = "owner"

// OwnerClaims are the JWT claims issued by the surrounding application.
type OwnerClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func RequestLoggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()
		logger.Infof("Request: %s %s, Status: %d, Latency: %v", method, path, status, latency)
	}
}

// OwnerMiddleware resolves the calling owner. With a secret it requires a
// bearer token carrying an email claim; without one it trusts X-Owner.
func OwnerMiddleware(secret string, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var owner string
		if secret == "" {
			owner = strings.TrimSpace(c.GetHeader("X-Owner"))
		} else {
			raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
			if raw == "" {
				// browsers cannot set headers on a websocket handshake
				raw = c.Query("token")
			}
			claims, err := ParseToken(raw, secret)
			if err != nil {
				logger.Warnf("Rejected token on %s: %v", c.Request.URL.Path, err)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			owner = claims.Email
		}
		if owner == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "owner required"})
			return
		}
		c.Set(ownerKey, owner)
		c.Next()
	}
}

// ParseToken validates an HMAC signed token and returns its claims.
func ParseToken(raw, secret string) (*OwnerClaims, error) {
	if raw == "" {
		return nil, fmt.Errorf("no token")
	}
	claims := &OwnerClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

func ownerOf(c *gin.Context) string {
	return c.GetString(ownerKey)
}
