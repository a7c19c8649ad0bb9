package telemetry

import (
	"context"
	"time"
)

// DefaultReportInterval is how often Report logs the cache summary
const DefaultReportInterval = 10 * time.Second

// Report logs Summary immediately and then every interval until ctx is
// done.
func (c *Cache) Report(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultReportInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c.log.Info().Int("channels", len(c.Updates())).Msg(c.Summary())
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
