// Package requestid assigns every request an id, honouring a caller-supplied
// X-Request-ID so a transfer can be traced across the three domains.
package requestid

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"fts/pkg/requestcontext"
)

// Header is the request/response header carrying the id.
const Header = "X-Request-ID"

var acceptable = regexp.MustCompile(`^[A-Za-z0-9._-]{1,128}$`)

// Middleware reads or generates the request id, stores it in the context and
// echoes it on the response.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(Header)
		if !acceptable.MatchString(id) {
			id = uuid.NewString()
		}
		w.Header().Set(Header, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
