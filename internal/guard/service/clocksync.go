package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cs2central/steam-authenticator-linux/pkg/slogx"
	"github.com/cs2central/steam-authenticator-linux/pkg/steamweb"
)

// DefaultClockStaleness is how long a synced offset is trusted before the
// next Offset call triggers a resync.
const DefaultClockStaleness = 5 * time.Minute

// ClockSync tracks the signed difference between Steam's clock and ours.
// Guard codes only verify inside a 30 second window, so a drifted local
// clock produces codes Steam rejects. The offset is process-wide, cached,
// and best effort: if Steam cannot be reached we keep whatever offset we
// had (zero if never synced) rather than failing code generation.
type ClockSync struct {
	Client    *steamweb.Client
	Staleness time.Duration

	mu       sync.RWMutex
	offset   time.Duration
	syncedAt time.Time
}

// Offset returns the cached offset, resyncing first when it has gone stale.
func (c *ClockSync) Offset(ctx context.Context) time.Duration {
	c.mu.RLock()
	offset, syncedAt := c.offset, c.syncedAt
	c.mu.RUnlock()

	staleness := c.Staleness
	if staleness <= 0 {
		staleness = DefaultClockStaleness
	}
	if !syncedAt.IsZero() && time.Since(syncedAt) < staleness {
		return offset
	}
	return c.Resync(ctx)
}

// Resync queries Steam's clock and replaces the cached offset. On failure
// the previous offset is kept and returned.
func (c *ClockSync) Resync(ctx context.Context) time.Duration {
	serverTime, err := c.Client.QueryTime(ctx)
	received := time.Now()
	if err != nil {
		slogx.FromContext(ctx).Warn("clock sync failed, keeping previous offset",
			slog.Any("error", err))
		c.mu.RLock()
		defer c.mu.RUnlock()
		return c.offset
	}

	offset := serverTime.Sub(received)

	c.mu.Lock()
	c.offset = offset
	c.syncedAt = received
	c.mu.Unlock()

	slogx.FromContext(ctx).Debug("clock synced",
		slog.Duration("offset", offset))
	return offset
}

// Now returns the current time as Steam sees it.
func (c *ClockSync) Now(ctx context.Context) time.Time {
	return time.Now().Add(c.Offset(ctx))
}
