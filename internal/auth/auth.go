package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc"

	"ai-workflows/backend/internal/config"
)

type ctxKey int

const subjectKey ctxKey = iota

// Logger defines the logging interface compatible with the application logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Error(msg string, args ...any)
}

// Auth verifies OpenID Connect bearer tokens on incoming requests. A
// disabled Auth lets every request through.
type Auth struct {
	verifier      *oidc.IDTokenVerifier
	requiredScope string
	logger        Logger
	enabled       bool
}

// New creates a new Auth object using values from the application
// configuration. When auth is enabled it discovers the issuer's keys and
// prepares a token verifier.
func New(ctx context.Context, cfg *config.Config, logger Logger) (*Auth, error) {
	if !cfg.Auth.Enabled {
		return &Auth{logger: logger}, nil
	}
	if cfg.Auth.Issuer == "" {
		return nil, errors.New("auth configuration is incomplete")
	}

	provider, err := oidc.NewProvider(ctx, cfg.Auth.Issuer)
	if err != nil {
		return nil, err
	}

	// Access tokens often carry an API audience rather than the client ID.
	verifier := provider.Verifier(&oidc.Config{
		ClientID:          cfg.Auth.ClientID,
		SkipClientIDCheck: cfg.Auth.ClientID == "",
	})

	return &Auth{
		verifier:      verifier,
		requiredScope: cfg.Auth.RequiredScope,
		logger:        logger,
		enabled:       true,
	}, nil
}

// Enabled reports whether requests are checked.
func (a *Auth) Enabled() bool {
	return a.enabled
}

// RequireAuth is middleware that ensures a valid bearer token is present.
// The token subject is stored in the request context.
func (a *Auth) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.enabled {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeUnauthorized(w, "missing bearer token")
			return
		}
		rawToken := strings.TrimPrefix(authHeader, "Bearer ")

		token, err := a.verifier.Verify(r.Context(), rawToken)
		if err != nil {
			if a.logger != nil {
				a.logger.Debug("rejected bearer token", "error", err)
			}
			writeUnauthorized(w, "invalid token: "+err.Error())
			return
		}

		if a.requiredScope != "" {
			var scopes tokenScopes
			if err := token.Claims(&scopes); err != nil || !scopes.has(a.requiredScope) {
				writeError(w, http.StatusForbidden, "token lacks scope "+a.requiredScope)
				return
			}
		}

		next.ServeHTTP(w, r.WithContext(WithSubject(r.Context(), token.Subject)))
	})
}

// WithSubject returns a context carrying a verified token subject.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// Subject returns the verified token subject stored by RequireAuth.
func Subject(ctx context.Context) string {
	v, _ := ctx.Value(subjectKey).(string)
	return v
}

func writeUnauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="ai-workflows"`)
	writeError(w, http.StatusUnauthorized, msg)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
