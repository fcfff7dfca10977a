package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/voxelhub/community-backend/api/apicommon"
	"github.com/voxelhub/community-backend/errors"
	"github.com/voxelhub/community-backend/internal"
)

// authenticator is a middleware that authenticates the user with the JWT
// token verified by jwtauth.Verifier. If successful, the user described by
// the token claims is added to the request context and passed to the next
// handler.
func (a *API) authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, claims, err := jwtauth.FromContext(r.Context())
		if err != nil {
			errors.ErrUnauthorized.Write(w)
			return
		}
		if token == nil || jwt.Validate(token, jwt.WithRequiredClaim(apicommon.ClaimUserID)) != nil {
			errors.ErrUnauthorized.Withf("userId claim not found in JWT token").Write(w)
			return
		}
		userID, ok := claims[apicommon.ClaimUserID].(string)
		if !ok || userID == "" {
			errors.ErrUnauthorized.Withf("invalid userId claim").Write(w)
			return
		}
		user := apicommon.User{ID: userID}
		user.Role, _ = claims[apicommon.ClaimRole].(string)
		user.MinecraftName, _ = claims[apicommon.ClaimMinecraftName].(string)
		// add the user to the context
		ctx := context.WithValue(r.Context(), apicommon.UserMetadataKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// adminOnly is a middleware that lets through only the users with the admin
// role. It must run after the authenticator.
func (*API) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := apicommon.UserFromContext(r.Context())
		if !ok {
			errors.ErrUnauthorized.Write(w)
			return
		}
		if !user.IsAdmin() {
			errors.ErrAdminRequired.Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// workerOnly is a middleware that checks the bearer token of the delivery
// workers. Every request is refused when no worker token is configured.
func (a *API) workerOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || a.workerToken == "" || !internal.SecureEqual(token, a.workerToken) {
			errors.ErrWorkerToken.Write(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}
