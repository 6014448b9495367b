package handlers

import (
	"net/http"

	"github.com/tracklib/tracklib/internal/httpserver/deps"
	"github.com/tracklib/tracklib/internal/logger"
)

type sweepResponse struct {
	Triggered bool   `json:"triggered"`
	Message   string `json:"message"`
}

// Sweep triggers an immediate orphan-blob sweep. The trigger channel is
// buffered with capacity one, so a second request while a sweep is
// pending backs off instead of queueing.
func Sweep(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case d.SweepTrigger <- struct{}{}:
			d.Logger.Info("manual sweep triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, sweepResponse{
				Triggered: true,
				Message:   "sweep triggered",
			})
		default:
			d.Logger.Warn("sweep already in progress",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusTooManyRequests, sweepResponse{
				Triggered: false,
				Message:   "sweep already in progress",
			})
		}
	}
}
