package cookies

import (
	"context"
	"log"
	"time"
)

// Provisioner regenerates the cookie jar wholesale.
type Provisioner interface {
	Refresh(ctx context.Context) error
}

// StartRefresh runs the provisioner on a fixed interval in the background.
// A failed refresh keeps the previous jar on disk.
func StartRefresh(ctx context.Context, p Provisioner, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		consecutiveFailures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			if err := p.Refresh(ctx); err != nil {
				consecutiveFailures++
				log.Printf("[Cookies] Refresh failed (consecutive: %d): %v", consecutiveFailures, err)
				continue
			}
			if consecutiveFailures > 0 {
				log.Printf("[Cookies] Refresh recovered after %d failures", consecutiveFailures)
			}
			consecutiveFailures = 0
		}
	}()
}
