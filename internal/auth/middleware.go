package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/campussync/campussync/internal/platform/httpx"
	"github.com/campussync/campussync/internal/shared"
)

// Middleware resolves bearer tokens into a request principal.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// Authenticate rejects requests without a valid bearer token.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := bearerToken(r)
		if !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		principal, err := m.Service.ResolveToken(r.Context(), raw)
		if err != nil {
			if httpx.StatusFor(err) == http.StatusInternalServerError && m.Logger != nil {
				m.Logger.Error("resolve token", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(header[7:])
	return token, token != ""
}
