package ldap

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/xzinc/IPL/pkg/config"
	"github.com/xzinc/IPL/pkg/logger"
	"github.com/xzinc/IPL/pkg/types"
)

const defaultDialTimeout = 10 * time.Second

var (
	// ErrInvalidCredentials is returned when the directory rejects the bind
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrDirectoryUnavailable is returned when the directory cannot be reached
	ErrDirectoryUnavailable = errors.New("directory unavailable")
)

// bindConn is the part of an LDAP connection needed to verify a password
type bindConn interface {
	StartTLS(config *tls.Config) error
	Bind(username, password string) error
}

type dialFunc func(ctx context.Context, server string) (bindConn, func(), error)

// Authenticator verifies operator credentials with a simple bind
type Authenticator struct {
	server string
	userDN string
	dial   dialFunc
}

func NewAuthenticator(cfg config.LDAP) (*Authenticator, error) {
	if cfg.Server == "" {
		return nil, fmt.Errorf("%w: ldap server is required", types.ErrConfiguration)
	}
	if strings.Count(cfg.UserDN, "%s") != 1 {
		return nil, fmt.Errorf("%w: ldap user_dn must contain exactly one %%s", types.ErrConfiguration)
	}
	return &Authenticator{
		server: cfg.Server,
		userDN: cfg.UserDN,
		dial:   dialLDAP,
	}, nil
}

func dialLDAP(ctx context.Context, server string) (bindConn, func(), error) {
	dialer := &net.Dialer{Timeout: defaultDialTimeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	conn, err := ldap.DialURL(server, ldap.DialWithDialer(dialer))
	if err != nil {
		return nil, nil, err
	}
	return conn, func() { conn.Close() }, nil
}

// Authenticate binds as the user and returns the DN that was bound
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (string, error) {
	if username == "" || password == "" {
		return "", ErrInvalidCredentials
	}
	userDN := fmt.Sprintf(a.userDN, ldap.EscapeDN(username))
	log := logger.Logger(ctx).WithField("user_dn", userDN)

	conn, closeConn, err := a.dial(ctx, a.server)
	if err != nil {
		log.WithError(err).Error("failed to connect to LDAP server")
		return "", fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	defer closeConn()

	if strings.HasPrefix(strings.ToLower(a.server), "ldap://") {
		if err := conn.StartTLS(&tls.Config{MinVersion: tls.VersionTLS12}); err != nil {
			log.WithError(err).Warn("StartTLS failed, continuing without TLS")
		}
	}

	if err := conn.Bind(userDN, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			log.Debug("LDAP bind rejected")
			return "", ErrInvalidCredentials
		}
		log.WithError(err).Error("LDAP bind failed")
		return "", fmt.Errorf("%w: %v", ErrDirectoryUnavailable, err)
	}
	return userDN, nil
}
