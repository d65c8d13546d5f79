package metadata

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"fleetdocs/pkg/requestcontext"
)

func TestActor(t *testing.T) {
	var seen string
	handler := Actor(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = requestcontext.ActorID(r.Context())
	}))

	cases := map[string]struct {
		header string
		want   string
	}{
		"header is used":   {header: " ops-lead ", want: "ops-lead"},
		"missing header":   {header: "", want: requestcontext.SystemActor},
		"oversized header": {header: strings.Repeat("a", maxActorIDLength+1), want: requestcontext.SystemActor},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/tasks/sweep/run", nil)
			if tc.header != "" {
				req.Header.Set(HeaderActorID, tc.header)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)
			assert.Equal(t, tc.want, seen)
		})
	}
}
