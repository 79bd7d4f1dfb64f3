package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"streamtube/internal/apperrors"
	"streamtube/internal/service"
)

const contextUserIDKey = "userID"

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requireAuth rejects requests without a valid access token. The token is
// read from the Authorization bearer header or the accessToken cookie.
func requireAuth(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := authenticate(c, tokens)
		if err != nil {
			respondError(c, apperrors.New(apperrors.KindAuth, "unauthorized request"))
			c.Abort()
			return
		}
		c.Set(contextUserIDKey, userID)
		c.Next()
	}
}

// optionalAuth resolves the viewer when a valid access token is present but
// lets anonymous requests through.
func optionalAuth(tokens *service.TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, err := authenticate(c, tokens); err == nil {
			c.Set(contextUserIDKey, userID)
		}
		c.Next()
	}
}

func authenticate(c *gin.Context, tokens *service.TokenManager) (int64, error) {
	tokenString := bearerToken(c)
	if tokenString == "" {
		if cookie, err := c.Cookie("accessToken"); err == nil {
			tokenString = cookie
		}
	}
	if tokenString == "" {
		return 0, service.ErrInvalidToken
	}

	claims, err := tokens.ParseAccessToken(tokenString)
	if err != nil {
		return 0, err
	}
	return claims.SubjectID()
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// currentUserID returns the authenticated user id set by requireAuth, or 0
// when the request is anonymous.
func currentUserID(c *gin.Context) int64 {
	if v, ok := c.Get(contextUserIDKey); ok {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}
