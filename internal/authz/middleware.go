package authz

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lattice-saas/lattice/internal/platform/httpx"
	"github.com/lattice-saas/lattice/internal/shared"
)

// Middleware gates HTTP routes through the permission engine. It maps a
// missing session to 401 and a denial decision to 403, so clients can
// distinguish "log in" from "access denied".
type Middleware struct {
	Engine    *Engine
	Extractor *Extractor
	Logger    *slog.Logger
}

// Require authorizes the request for (action, resourceType) before calling
// the next handler. The route's {id} parameter, when present, is forwarded
// as the resource ID.
func (m Middleware) Require(action, resourceType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			uctx, err := m.Extractor.Extract(r.Context(), sess)
			if err != nil {
				if errors.Is(err, ErrUnauthenticated) {
					httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
					return
				}
				if m.Logger != nil {
					m.Logger.Error("authz: extract context", slog.Any("error", err))
				}
				// Identity store failure is a resolution error: fail closed.
				httpx.Problem(w, http.StatusForbidden, "Forbidden", ReasonResolutionError)
				return
			}

			resourceID := chi.URLParam(r, "id")
			decision := m.Engine.Check(r.Context(), uctx, action, resourceType, resourceID)
			if !decision.Allowed {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", decision.Reason)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), uctx)))
		})
	}
}
