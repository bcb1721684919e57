package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-beaute/internal/obs"
)

// Recorder audits requests after they have been handled.
type Recorder struct {
	Service Service
	Logger  zerolog.Logger
}

// Route customises the entry recorded for a route.
type Route struct {
	Action          string
	ResourceType    string
	ResourceIDParam string
}

// Middleware records mutating requests. Reads pass through unaudited. Audit
// failures are logged and never change the response.
func (rec Recorder) Middleware(cfg Route) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet || r.Method == http.MethodHead || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			sr := obs.NewStatusRecorder(w)
			next.ServeHTTP(sr, r)

			entry := Entry{Action: cfg.Action, ResourceType: cfg.ResourceType, Status: sr.Status()}
			if cfg.ResourceIDParam != "" {
				entry.ResourceID = chi.URLParam(r, cfg.ResourceIDParam)
			}
			if q := r.URL.RawQuery; q != "" {
				entry.Metadata = map[string]any{"query": q}
			}
			if err := rec.Service.Record(r.Context(), r, entry); err != nil {
				rec.Logger.Error().Err(err).Str("action", entry.Action).Msg("audit record failed")
			}
		})
	}
}
