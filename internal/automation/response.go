package automation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultResponseWindow is how far back the detector looks for an inbound
// interaction when the caller does not say otherwise.
const DefaultResponseWindow = 24 * time.Hour

const lastInboundKeyPrefix = "automation:last_inbound:"

// ResponseCache caches last-inbound timestamps so execution sweeps do not
// hammer the interactions table. Implemented by cache.Client; nil disables
// caching.
type ResponseCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Detector decides whether a lead has responded recently, gating steps
// flagged stop-if-response.
type Detector struct {
	leads LeadStore
	cache ResponseCache
	now   func() time.Time
}

func NewDetector(leads LeadStore, cache ResponseCache) *Detector {
	return &Detector{leads: leads, cache: cache, now: time.Now}
}

// HasRecentResponse reports whether the lead has an inbound interaction
// within the window. The cache is consulted first; a cache error or miss
// falls through to the store.
func (d *Detector) HasRecentResponse(ctx context.Context, leadID uuid.UUID, window time.Duration) (bool, error) {
	if window <= 0 {
		window = DefaultResponseWindow
	}
	now := d.now()

	if d.cache != nil {
		if v, err := d.cache.Get(ctx, lastInboundKeyPrefix+leadID.String()); err == nil && v != "" {
			if ts, err := time.Parse(time.RFC3339, v); err == nil && now.Sub(ts) <= window {
				return true, nil
			}
		}
	}

	last, err := d.leads.LastInboundAt(ctx, leadID, "")
	if err != nil {
		return false, err
	}
	if last == nil {
		return false, nil
	}
	if d.cache != nil {
		d.cache.Set(ctx, lastInboundKeyPrefix+leadID.String(), last.Format(time.RFC3339), window)
	}
	return now.Sub(*last) <= window, nil
}

// RecordInbound refreshes the cached last-inbound timestamp. The engine
// calls it from the interaction hook so the next sweep sees the response
// without a store round trip.
func (d *Detector) RecordInbound(ctx context.Context, leadID uuid.UUID, at time.Time) {
	if d.cache == nil {
		return
	}
	d.cache.Set(ctx, lastInboundKeyPrefix+leadID.String(), at.Format(time.RFC3339), DefaultResponseWindow)
}
