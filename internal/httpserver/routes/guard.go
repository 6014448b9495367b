package routes

import (
	"net/http"

	"github.com/tracklib/tracklib/internal/httpserver/deps"
	"github.com/tracklib/tracklib/internal/httpserver/mw"
)

// guards builds the per-route middleware chain shared by the API
// endpoints: host allow-list, CIDR allow-list, and for mutating
// routes a per-client token bucket.
func guards(d deps.Deps, rateLimited bool) []func(http.Handler) http.Handler {
	chain := []func(http.Handler) http.Handler{
		mw.AllowOnlyCIDRS(d.AllowedCIDRS, d.TrustProxy, d.Logger),
		mw.EnforceHost(d.AllowedHosts, d.Logger),
	}
	if rateLimited {
		chain = append(chain, mw.RateLimit(mw.RateLimitConfig{
			Burst:             d.RateBurst,
			RefillPerIPPerMin: d.RateRefillPerMin,
			TrustProxy:        d.TrustProxy,
		}))
	}
	return chain
}
