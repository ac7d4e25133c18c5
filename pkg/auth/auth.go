// Package auth guards catalog edits behind a single configured admin user.
package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethpandaops/specviewer/pkg/config"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// Realm is sent in the WWW-Authenticate challenge.
const Realm = "specviewer"

var (
	// ErrDisabled is returned when no admin user is configured.
	ErrDisabled = errors.New("admin access is disabled")
	// ErrInvalidCredentials is returned for a wrong username or password.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type contextKey string

const adminContextKey contextKey = "admin"

// AdminFromContext returns the authenticated admin username, if any.
func AdminFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(adminContextKey).(string)

	return name, ok && name != ""
}

// ContextWithAdmin adds the admin username to the context.
func ContextWithAdmin(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, adminContextKey, username)
}

// Authenticator checks admin credentials.
type Authenticator struct {
	log   logrus.FieldLogger
	admin config.AdminConfig
}

// NewAuthenticator creates an authenticator for the configured admin.
func NewAuthenticator(log logrus.FieldLogger, cfg config.AuthConfig) *Authenticator {
	return &Authenticator{
		log:   log.WithField("component", "auth"),
		admin: cfg.Admin,
	}
}

// Enabled reports whether an admin user is configured.
func (a *Authenticator) Enabled() bool {
	return a.admin.Enabled()
}

// Authenticate validates a username and password pair.
func (a *Authenticator) Authenticate(username, password string) error {
	if !a.Enabled() {
		return ErrDisabled
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(a.admin.Username)) == 1

	// Always run bcrypt so timing does not reveal whether the username matched.
	err := bcrypt.CompareHashAndPassword([]byte(a.admin.PasswordHash), []byte(password))
	if err != nil || !userOK {
		return ErrInvalidCredentials
	}

	return nil
}

// Middleware requires HTTP basic credentials of the admin user. When no admin
// is configured the guarded routes respond 404.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() {
			writeError(w, http.StatusNotFound, "Not found")

			return
		}

		username, password, ok := r.BasicAuth()
		if !ok {
			challenge(w)

			return
		}

		if err := a.Authenticate(username, password); err != nil {
			a.log.WithFields(logrus.Fields{
				"username":    username,
				"remote_addr": r.RemoteAddr,
			}).Warn("Rejected admin credentials")

			challenge(w)

			return
		}

		next.ServeHTTP(w, r.WithContext(ContextWithAdmin(r.Context(), username)))
	})
}

// BasicAuthMiddleware builds the admin guard from configuration.
func BasicAuthMiddleware(log logrus.FieldLogger, cfg config.AuthConfig) func(http.Handler) http.Handler {
	return NewAuthenticator(log, cfg).Middleware
}

func challenge(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="`+Realm+`", charset="UTF-8"`)
	writeError(w, http.StatusUnauthorized, "Unauthorized")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
