package deps

import (
	"time"

	"github.com/tracklib/tracklib/internal/access"
	"github.com/tracklib/tracklib/internal/asset"
	"github.com/tracklib/tracklib/internal/logger"
	"github.com/tracklib/tracklib/internal/metrics"
)

type Deps struct {
	Logger    logger.Logger
	StartTime time.Time
	Version   string
	Commit    string
	BuildDate string
	GoVersion string

	Library *asset.Manager // the library core
	Gate    *access.Gate   // credential classification
	Metrics *metrics.Metrics

	MaxUploadBytes int64 // request body ceiling on upload endpoints

	AllowedHosts []string // Host headers allowed to access the server
	AllowedCIDRS []string // IPs allowed to access the server
	TrustProxy   bool     // true if running behind a trusted reverse proxy

	RateBurst        int // token bucket size for mutating endpoints
	RateRefillPerMin int // bucket refill per client per minute

	SweepTrigger chan struct{} // channel to trigger a manual orphan sweep
}
