// Package middleware provides the HTTP middleware chain for the storefront.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/bytebazaar/storefront/internal/auth"
	"github.com/bytebazaar/storefront/internal/errors"
	"github.com/bytebazaar/storefront/internal/httputil"
	"github.com/bytebazaar/storefront/internal/logging"
)

// AuthMiddleware authenticates requests with session JWTs.
type AuthMiddleware struct {
	signer      *auth.Signer
	logger      *logging.Logger
	skipPaths   map[string]bool
	skipPrefixe []string
}

// NewAuthMiddleware creates the middleware. skipPaths are matched exactly;
// entries ending in "/" are treated as prefixes (the download path carries
// its own token).
func NewAuthMiddleware(signer *auth.Signer, logger *logging.Logger, skipPaths []string) *AuthMiddleware {
	if logger == nil {
		logger = logging.NewDefault("auth")
	}
	skip := make(map[string]bool)
	var prefixes []string
	for _, path := range skipPaths {
		if strings.HasSuffix(path, "/") {
			prefixes = append(prefixes, path)
			continue
		}
		skip[path] = true
	}
	return &AuthMiddleware{
		signer:      signer,
		logger:      logger,
		skipPaths:   skip,
		skipPrefixe: prefixes,
	}
}

func (m *AuthMiddleware) skip(path string) bool {
	if m.skipPaths[path] {
		return true
	}
	for _, prefix := range m.skipPrefixe {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			m.respondError(w, r, errors.Unauthorized("missing Authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			m.respondError(w, r, errors.Unauthorized("invalid Authorization header format"))
			return
		}

		claims, err := m.signer.ParseSession(parts[1])
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("token validation failed")
			m.respondError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), logging.UserIDKey, claims.UserID)
		if claims.Role != "" {
			ctx = context.WithValue(ctx, logging.RoleKey, claims.Role)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("authentication failed", err)
	}

	httputil.WriteErrorResponse(w, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("authentication failed")
}

// GetUserID extracts the authenticated user id from context.
func GetUserID(ctx context.Context) string {
	return logging.GetUserID(ctx)
}

// GetUserRole extracts the authenticated user role from context.
func GetUserRole(ctx context.Context) string {
	return logging.GetRole(ctx)
}

// RequireUserID ensures an authenticated user id is present in context.
func RequireUserID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			httputil.Unauthorized(w, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin ensures the authenticated user holds the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserID(r.Context()) == "" {
			httputil.Unauthorized(w, "")
			return
		}
		if GetUserRole(r.Context()) != "admin" {
			httputil.WriteErrorResponse(w, http.StatusForbidden, "forbidden", "admin role required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
