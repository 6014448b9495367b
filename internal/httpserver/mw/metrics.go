package mw

import (
	"net/http"
	"strconv"

	"github.com/tracklib/tracklib/internal/metrics"
)

// Metrics counts every request by method and status code.
func Metrics(mx *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := &statusWriter{ResponseWriter: w}
			next.ServeHTTP(ww, r)

			status := ww.status
			if status == 0 {
				status = http.StatusOK
			}
			mx.RequestsTotal.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		})
	}
}
