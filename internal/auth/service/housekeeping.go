package service

import (
	"context"
	"fmt"
	"time"

	"github.com/wardenauth/warden/internal/auth/store"
	"github.com/wardenauth/warden/pkg/slogx"
)

const DefaultSweepInterval = time.Hour

// Housekeeper periodically clears expired refresh tokens so the table
// only holds live sessions. Redemption already rejects expired tokens;
// the sweep is purely hygiene.
type Housekeeper struct {
	Store    store.Store
	Interval time.Duration
}

func NewHousekeeper(st store.Store, interval time.Duration) *Housekeeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Housekeeper{Store: st, Interval: interval}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (h *Housekeeper) Run(ctx context.Context) {
	log := slogx.FromContext(ctx)

	if err := h.Sweep(ctx); err != nil {
		log.Warn("housekeeping sweep failed", "err", err)
	}

	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.Sweep(ctx); err != nil {
				log.Warn("housekeeping sweep failed", "err", err)
			}
		}
	}
}

// Sweep removes refresh tokens whose expiry has passed.
func (h *Housekeeper) Sweep(ctx context.Context) error {
	if err := h.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx); err != nil {
		return fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	return nil
}
