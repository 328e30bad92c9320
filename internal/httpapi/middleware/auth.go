package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/xzinc/IPL/pkg/config"
	"github.com/xzinc/IPL/pkg/types"
)

const (
	AuthModeAPIKey = "apikey"
	AuthModeBasic  = "basic"
	AuthModeLDAP   = "ldap"
)

// Authentication returns the middleware for the configured auth mode. The
// directory authenticator is only used, and only required, in ldap mode.
func Authentication(cfg *config.APIServerConfig, directory DirectoryAuthenticator) (gin.HandlerFunc, error) {
	if !cfg.Auth.Enabled {
		return func(c *gin.Context) { c.Next() }, nil
	}

	switch cfg.Auth.Mode {
	case AuthModeAPIKey, "":
		if len(cfg.Auth.APIKeys) == 0 {
			return nil, fmt.Errorf("%w: apikey auth enabled without api_keys", types.ErrConfiguration)
		}
		return APIKeyAuth(cfg), nil
	case AuthModeBasic:
		if len(cfg.Auth.BasicUsers) == 0 {
			return nil, fmt.Errorf("%w: basic auth enabled without basic_users", types.ErrConfiguration)
		}
		return BasicAuth(cfg), nil
	case AuthModeLDAP:
		if directory == nil {
			return nil, fmt.Errorf("%w: ldap auth enabled without an ldap server", types.ErrConfiguration)
		}
		return LDAPBasicAuth(directory), nil
	}
	return nil, fmt.Errorf("%w: unknown auth mode %q", types.ErrConfiguration, cfg.Auth.Mode)
}
