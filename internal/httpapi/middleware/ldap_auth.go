package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xzinc/IPL/pkg/clients/ldap"
)

// DirectoryAuthenticator verifies a username and password against a directory
type DirectoryAuthenticator interface {
	Authenticate(ctx context.Context, username, password string) (string, error)
}

func LDAPBasicAuth(auth DirectoryAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		username, password, ok := c.Request.BasicAuth()
		if !ok || username == "" || password == "" {
			c.Header("WWW-Authenticate", basicRealm)
			c.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		userDN, err := auth.Authenticate(c.Request.Context(), username, password)
		switch {
		case errors.Is(err, ldap.ErrInvalidCredentials):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		case err != nil:
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "authentication failed"})
			return
		}

		c.Set("userId", username)
		c.Set("userDN", userDN)
		c.Next()
	}
}
