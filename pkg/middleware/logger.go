package middleware

import (
	"log"
	"net/http"
	"time"
)

// RequestLogger writes one console line per served request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		// Call the next handler (The Request happens here)
		next.ServeHTTP(rec, r)

		// Logic runs AFTER the request is finished
		log.Printf(
			"[%s] %s %s -> %d (%v)",
			r.Method,
			r.URL.Path,
			r.RemoteAddr,
			rec.status,
			time.Since(start),
		)
	})
}
