package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"renderowl-intel-api/internal/config"
	"renderowl-intel-api/internal/domain"
)

const (
	UserContextKey = "user"
)

// Auth validates a bearer JWT signed with the configured shared signing
// key and populates domain.UserContext on the request. Generalized from
// the teacher's Clerk-RSA-specific validator into a provider-neutral
// HS256 check: the JWT issuer is expected to sign with AuthSigningKey
// rather than publish a JWKS endpoint.
func Auth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
				"code":  "AUTH_MISSING",
			})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format. Use 'Bearer <token>'",
				"code":  "AUTH_INVALID_FORMAT",
			})
			return
		}

		tokenString := parts[1]

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.AuthSigningKey), nil
		})

		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
				"code":  "AUTH_INVALID_TOKEN",
			})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid token claims",
				"code":  "AUTH_INVALID_CLAIMS",
			})
			return
		}

		userID, ok := claims["sub"].(string)
		if !ok || userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "User ID not found in token",
				"code":  "AUTH_MISSING_USER_ID",
			})
			return
		}

		email := ""
		if emailClaim, ok := claims["email"].(string); ok {
			email = emailClaim
		}

		user := &domain.UserContext{
			ID:    userID,
			Email: email,
		}
		c.Set(UserContextKey, user)

		c.Next()
	}
}

// GetUser retrieves the authenticated user from context.
func GetUser(c *gin.Context) *domain.UserContext {
	user, exists := c.Get(UserContextKey)
	if !exists {
		return nil
	}
	return user.(*domain.UserContext)
}
