package security

import (
	"net/http"
	"strings"

	"github.com/noah-isme/backend-beaute/internal/common"
)

// BodyLimit enforces a maximum request payload size.
type BodyLimit struct {
	Max int64
	// SkipPrefixes lists paths that apply their own limit, such as signed webhooks.
	SkipPrefixes []string
}

// Middleware rejects declared oversized bodies with 413 and caps the rest with
// http.MaxBytesReader so decoders fail once the limit is crossed.
func (b BodyLimit) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if b.Max <= 0 || r.Body == nil || r.Body == http.NoBody || b.skip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if r.ContentLength > b.Max {
			common.JSONError(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "request body too large", nil)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, b.Max)
		next.ServeHTTP(w, r)
	})
}

func (b BodyLimit) skip(path string) bool {
	for _, prefix := range b.SkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
