package middleware

import (
	"net/http"

	"github.com/angelmondragon/packfinderz-orderdesk/api/responses"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-orderdesk/pkg/errors"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/logger"
)

// RequireActor guards routes that only one kind of dashboard user may call, such as the
// seller dispatch routes. A request with no resolved actor is unauthorized.
func RequireActor(kind enums.ActorKind, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required"))
				return
			}
			if actor.Kind != kind {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, kind.String()+" access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
