package middleware

import (
	"net/http"
	"time"

	"github.com/roomchat/internal/logger"
)

// RequestLog logs method, path, status and duration of every request.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrap := wrapWriter(w)
		next.ServeHTTP(wrap, r)
		logger.Debugf("http %s %s %d %s", r.Method, r.URL.Path, wrap.status, time.Since(start).Round(time.Microsecond))
		if wrap.status >= http.StatusInternalServerError {
			logger.Errorf("http %s %s -> %d", r.Method, r.URL.Path, wrap.status)
		}
	})
}
