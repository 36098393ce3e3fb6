package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ClaimsKey is the gin context key the validated claims are stored under.
const ClaimsKey = "device"

// DeviceAuth enforces bearer JWT tokens signed with HS256 and stores the
// validated claims in the request context.
func DeviceAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(ClaimsKey, claims)
		c.Next()
	}
}

// FromContext returns the claims DeviceAuth stored, if any.
func FromContext(c *gin.Context) (DeviceClaims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return DeviceClaims{}, false
	}
	claims, ok := v.(DeviceClaims)
	return claims, ok
}
