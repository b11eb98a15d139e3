// Package scanner gathers rename evidence from posts addressed to an account
// and from replies in the account's own threads. Scanners never fail: any
// lookup error is logged and degrades to empty evidence.
package scanner

import (
	"context"
	"time"

	"github.com/Xcertik-Realist/X-name-change-bot/internal/lookup"
	"github.com/Xcertik-Realist/X-name-change-bot/internal/metrics"
	log "github.com/sirupsen/logrus"
)

// Defaults bounding the external calls made per request.
const (
	DefaultMentionLimit     = 100
	DefaultTimelineLimit    = 100
	DefaultRepliesPerThread = 10
	DefaultReplyConcurrency = 4
	DefaultCallTimeout      = 20 * time.Second
)

func withCallTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func logFailure(scanner string, err error, fields log.Fields) {
	kind := lookup.KindOf(err)
	metrics.ObserveScannerFailure(scanner, kind.String())
	entry := log.WithError(err).WithField("scanner", scanner).WithField("kind", kind.String())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Warn("scanner: lookup failed, continuing without its evidence")
}
