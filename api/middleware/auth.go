package middleware

import (
	"net/http"

	"github.com/angelmondragon/packfinderz-orderdesk/api/responses"
	"github.com/angelmondragon/packfinderz-orderdesk/internal/orders"
	pkgAuth "github.com/angelmondragon/packfinderz-orderdesk/pkg/auth"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-orderdesk/pkg/errors"
	"github.com/angelmondragon/packfinderz-orderdesk/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the actor.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := pkgAuth.BearerToken(r.Header.Get("Authorization"))
			if !ok {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithActor(r.Context(), orders.Actor{
				UserID:  claims.UserID,
				StoreID: claims.StoreID,
				Kind:    claims.Actor,
				Token:   token,
			})

			storeID := ""
			if claims.StoreID != nil {
				storeID = claims.StoreID.String()
			}
			ctx = logg.WithActor(ctx, claims.UserID.String(), claims.Actor.String(), storeID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
