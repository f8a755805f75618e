package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"gatehouse.io/internal/auth"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/v1/info",
	"/v1/auth/token",
	"/v1/visits/verify",
	"/v1/kiosk/form",
}

var publicPrefixes = []string{
	"/v1/public/",
}

// isPublicRequest covers the unauthenticated kiosk surface alongside the
// fixed public paths: kiosk visit creation, wizard completion and uploads.
func isPublicRequest(r *http.Request) bool {
	path := r.URL.Path
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if r.Method == http.MethodPost {
		if path == "/v1/visits" || path == "/v1/attachments" {
			return true
		}
		if strings.HasPrefix(path, "/v1/visits/") && strings.HasSuffix(path, "/complete") {
			return true
		}
	}
	return false
}

// withAuth resolves the acting identity once per request. A valid bearer
// token yields an ADMIN/SECURITY/KIOSK actor; no token yields Anonymous,
// which only the public surface accepts.
func (a *API) withAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		actor := auth.Anonymous
		if header := strings.TrimSpace(r.Header.Get(authHeader)); header != "" {
			token, err := extractBearerToken(header)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, err.Error())
				return
			}
			claims, err := auth.ParseAndValidate(token)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidToken) {
					writeError(w, r, http.StatusUnauthorized, "invalid token")
				} else {
					writeError(w, r, http.StatusInternalServerError, "authentication error")
				}
				return
			}
			actor = auth.ActorFromClaims(claims)
		}

		if !actor.Authenticated() && !isPublicRequest(r) {
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}

		ctx := auth.ContextWithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireActor enforces per-handler role gating and writes the error
// response itself on failure.
func requireActor(w http.ResponseWriter, r *http.Request, types ...auth.ActorType) (auth.Actor, bool) {
	actor := auth.ActorFromContext(r.Context())
	if !actor.Authenticated() {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return auth.Actor{}, false
	}
	if !actor.Is(types...) {
		writeError(w, r, http.StatusForbidden, "insufficient role")
		return auth.Actor{}, false
	}
	return actor, true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}
