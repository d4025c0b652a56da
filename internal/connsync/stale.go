package connsync

import (
	"time"

	"github.com/moonlitgames/werewolf-backend/internal/game"
)

// StaleThreshold picks the phase-dependent staleness window. Dynamic phases
// change often, so a short gap already suggests a dropped broadcast; idle
// phases can legitimately sit quiet for a long time.
func StaleThreshold(status game.Status, cfg Config) time.Duration {
	switch status {
	case game.StatusOngoing, game.StatusReady, game.StatusEnded:
		return cfg.ActiveStaleAfter
	default:
		return cfg.IdleStaleAfter
	}
}

// IsStale reports whether the locally held copy is past its threshold.
// The comparison is strict: exactly at the threshold is not yet stale.
func IsStale(status game.Status, lastUpdate, now time.Time, cfg Config) bool {
	return now.Sub(lastUpdate) > StaleThreshold(status, cfg)
}
