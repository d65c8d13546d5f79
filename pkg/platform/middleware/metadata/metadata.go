// Package metadata carries caller identity from request headers into the
// request context.
package metadata

import (
	"net/http"
	"strings"

	"fleetdocs/pkg/requestcontext"
)

// HeaderActorID names the operator on whose behalf the request runs. Identity
// is asserted by the fronting gateway; this service does not authenticate.
const HeaderActorID = "X-Actor-ID"

const maxActorIDLength = 128

// Actor stores the X-Actor-ID header as the request actor. Missing or
// oversized values leave the default system actor in place.
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(HeaderActorID))
		if actor != "" && len(actor) <= maxActorIDLength {
			r = r.WithContext(requestcontext.WithActorID(r.Context(), actor))
		}
		next.ServeHTTP(w, r)
	})
}
