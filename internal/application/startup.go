package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/fueltrackr/fueltrackr-api/internal/metrics"
)

var errNoDatabase = errors.New("no database configured")

// Pinger reports whether the database answers a liveness command.
type Pinger interface {
	Ping(ctx context.Context) error
}

// DatabaseCheck returns a startup hook that pings db once and logs the outcome.
// A failed ping never stops startup: the service comes up and the first
// request that needs the database will surface the problem. timeout <= 0
// leaves the ping bounded only by ctx.
func DatabaseCheck(db Pinger, logger *zap.Logger, timeout time.Duration, m *metrics.Metrics) Hook {
	return func(ctx context.Context) {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		err := errNoDatabase
		if db != nil {
			err = db.Ping(ctx)
		}

		if err != nil {
			m.SetDatabaseUp(false)
			// Operators grep for this exact line, error text included; the
			// zap field carries the error for structured queries.
			logger.Error(fmt.Sprintf("❌ MongoDB connection failed: %v", err), zap.Error(err))
			return
		}
		m.SetDatabaseUp(true)
		logger.Info("✅ MongoDB connection established successfully")
	}
}
