package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lalith-99/cdpcore/internal/auth"
)

// Keys under which the token claims are stored in gin.Context.
const (
	ContextKeyOperatorID = "operator_id"
	ContextKeyCompanyID  = "company_id"
	ContextKeyEmail      = "email"
)

// AuthMiddleware rejects requests without a valid operator token and
// stores the claims for the handlers behind it.
func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" && c.Query("access_token") != "" {
			// Browsers cannot set headers on a websocket handshake.
			header = "Bearer " + c.Query("access_token")
		}
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "missing authorization header",
			})
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid authorization format, expected: Bearer <token>",
			})
			return
		}

		claims, err := auth.ParseToken(parts[1], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid or expired token",
			})
			return
		}

		c.Set(ContextKeyOperatorID, claims.OperatorID)
		c.Set(ContextKeyCompanyID, claims.CompanyID)
		c.Set(ContextKeyEmail, claims.Email)

		c.Next()
	}
}

// The helpers below return uuid.Nil or "" when the key is absent, which
// matches nothing in any company-scoped query.

func GetOperatorID(c *gin.Context) uuid.UUID {
	return getUUID(c, ContextKeyOperatorID)
}

func GetCompanyID(c *gin.Context) uuid.UUID {
	return getUUID(c, ContextKeyCompanyID)
}

func GetEmail(c *gin.Context) string {
	return c.GetString(ContextKeyEmail)
}

func getUUID(c *gin.Context, key string) uuid.UUID {
	val, exists := c.Get(key)
	if !exists {
		return uuid.Nil
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}
