package middleware

import (
	"net/http"
	"strings"

	applogger "goride/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// JWTClaims identifies the operator or automated system calling the
// Campaign Management API or the ops WebSocket.
type JWTClaims struct {
	Subject string `json:"sub"`
	jwt.RegisteredClaims
}

// AuthRequired validates a bearer JWT signed with secret and sets
// "subject" in the request context. Used on every authenticated
// Campaign Management route and the ops WebSocket upgrade (§4.11).
// Failed and successful validations are both recorded through audit,
// when one is supplied, so a compromised or misconfigured token can be
// traced after the fact.
func AuthRequired(secret string, audit *applogger.AuditLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logAuthEvent(audit, "missing_header", "", c, false)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			logAuthEvent(audit, "missing_bearer_prefix", "", c, false)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Bearer token required"})
			c.Abort()
			return
		}

		token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			logAuthEvent(audit, "invalid_token", "", c, false)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			c.Abort()
			return
		}

		claims, ok := token.Claims.(*JWTClaims)
		if !ok {
			logAuthEvent(audit, "invalid_claims", "", c, false)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token claims"})
			c.Abort()
			return
		}

		c.Set("subject", claims.Subject)
		logAuthEvent(audit, "token_validated", claims.Subject, c, true)
		c.Next()
	}
}

func logAuthEvent(audit *applogger.AuditLogger, eventType, subject string, c *gin.Context, success bool) {
	if audit == nil {
		return
	}
	audit.LogAuthEvent(eventType, subject, c.ClientIP(), c.GetHeader("User-Agent"), success)
}
