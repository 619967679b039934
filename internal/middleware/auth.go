package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/paceriz/paceriz/internal/telemetry/tracing"
	"github.com/paceriz/paceriz/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
)

// AuthTokenHeader is the legacy token header, kept for older app builds
// which do not send the Authorization header yet.
const AuthTokenHeader = "X-PACERIZ-TOKEN"

// AuthTokenFromRequest returns the session token from the Authorization
// bearer header, falling back to the legacy custom header.
func AuthTokenFromRequest(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return r.Header.Get(AuthTokenHeader)
}

//go:generate mockgen -source=$GOFILE -destination=mocks_test.go -package=middleware_test

type LoginChecker interface {
	IsLogged(ctx context.Context, token string) (bool, error)
}

type AuthMiddlewareHandler struct {
	syncerRequestsSecret string
	loginChecker         LoginChecker
	allowedPaths         map[string]bool
	allowedPathsPrefixes []string
}

func NewAuthMiddlewareHandler(
	syncerRequestsSecret string,
	loginChecker LoginChecker,
) *AuthMiddlewareHandler {
	return &AuthMiddlewareHandler{
		syncerRequestsSecret: syncerRequestsSecret,
		loginChecker:         loginChecker,
		allowedPaths: map[string]bool{
			"/":        true,
			"/version": true,

			// login-logout-refresh:
			"/a/login":   true,
			"/a/logout":  true,
			"/a/refresh": true,
		},
		allowedPathsPrefixes: []string{
			// hit by the browser during the oauth dance, no session yet
			"/garmin/callback",
		},
	}
}

func (h *AuthMiddlewareHandler) pathIsAlwaysAllowed(path string) bool {
	if h.allowedPaths[path] {
		return true
	}
	for _, prefix := range h.allowedPathsPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

func (h *AuthMiddlewareHandler) AuthCheck() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracing.GlobalTracer.Start(r.Context(), "middleware.auth")
			defer span.End()

			if r.Method == http.MethodOptions {
				w.Header().Add("Allow", "GET, POST, OPTIONS")
				w.WriteHeader(http.StatusOK)
				span.SetStatus(codes.Ok, "options-ok")
				return
			}

			if h.pathIsAlwaysAllowed(r.URL.Path) {
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			authToken := AuthTokenFromRequest(r)

			// requests coming from the sync daemon carry a shared secret
			// instead of a session token
			if syncerSecret := r.Header.Get("X-PACERIZ-SYNCER-SECRET"); syncerSecret != "" {
				if h.syncerRequestsSecret != syncerSecret {
					reqIp, _ := pkg.ReadUserIP(r)
					log.Errorf("unauthorized syncer request detected from %s => %s", reqIp, r.URL.Path)
					http.Error(w, "no can do", http.StatusUnauthorized)
					span.SetStatus(codes.Error, "wrong-syncer-secret")
					return
				}
				span.SetStatus(codes.Ok, "ok")
				next.ServeHTTP(w, r)
				return
			}

			if authToken == "" {
				log.Tracef("[missing token] [auth middleware] unauthorized => %s", r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "missing-auth-token")
				return
			}

			isLogged, err := h.loginChecker.IsLogged(ctx, authToken)
			if err != nil {
				log.Errorf("[failed login check] => %s: %s", r.URL.Path, err)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "check-logged-err")
				span.RecordError(err)
				return
			}
			if !isLogged {
				log.Tracef("[invalid token] [auth middleware] unauthorized => %s", r.URL.Path)
				http.Error(w, "no can do", http.StatusUnauthorized)
				span.SetStatus(codes.Error, "not-logged")
				return
			}

			span.SetStatus(codes.Ok, "ok")
			next.ServeHTTP(w, r)
		})
	}
}
