package connsync

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/moonlitgames/werewolf-backend/internal/game"
)

type fakeFetcher struct {
	calls atomic.Int64
	state game.State
	rev   atomic.Int64
}

func (f *fakeFetcher) FetchState(_ context.Context, _ string) (game.State, int64, error) {
	f.calls.Add(1)
	return f.state, f.rev.Load(), nil
}

func ongoingSnap(rev int64) Snapshot {
	s := game.NewState("room", "host", []game.Role{game.RoleWerewolf, game.RoleVillager})
	s.Status = game.StatusOngoing
	return Snapshot{State: s, Revision: rev}
}

// quietCfg disables every timer-driven behavior not under test.
func quietCfg() Config {
	return Config{
		ReconnectProbeDelay: time.Hour,
		PollInterval:        time.Hour,
		ActiveStaleAfter:    time.Hour,
		IdleStaleAfter:      time.Hour,
		HealCooldown:        time.Hour,
		ReconnectGrace:      0,
		FetchTimeout:        time.Second,
	}
}

func TestTracker_DiscardsNonNewerRevisions(t *testing.T) {
	f := &fakeFetcher{}
	tr := NewTracker(context.Background(), "room", f, nil, quietCfg(), zaptest.NewLogger(t))
	defer tr.Close()

	tr.ApplySnapshot(ongoingSnap(5))
	tr.ApplySnapshot(ongoingSnap(4)) // reordered delivery
	tr.ApplySnapshot(ongoingSnap(5)) // duplicate delivery

	require.Equal(t, int64(5), tr.View().Revision)

	tr.ApplySnapshot(ongoingSnap(6))
	require.Equal(t, int64(6), tr.View().Revision)
}

func TestTracker_OnApplySeesOnlyNewer(t *testing.T) {
	var applied atomic.Int64
	tr := NewTracker(context.Background(), "room", &fakeFetcher{}, func(Snapshot) {
		applied.Add(1)
	}, quietCfg(), zaptest.NewLogger(t))
	defer tr.Close()

	tr.ApplySnapshot(ongoingSnap(1))
	tr.ApplySnapshot(ongoingSnap(1))
	tr.ApplySnapshot(ongoingSnap(2))
	tr.View() // synchronize with the loop

	require.Equal(t, int64(2), applied.Load())
}

func TestTracker_ReconnectProbeFetchesWhenNoUpdateArrives(t *testing.T) {
	f := &fakeFetcher{state: ongoingSnap(1).State}
	f.rev.Store(1)

	cfg := quietCfg()
	cfg.ReconnectProbeDelay = 20 * time.Millisecond
	tr := NewTracker(context.Background(), "room", f, nil, cfg, zaptest.NewLogger(t))
	defer tr.Close()

	tr.SetConnectivity(Live)

	require.Eventually(t, func() bool {
		return f.calls.Load() == 1 && tr.View().Revision == 1
	}, time.Second, 5*time.Millisecond, "probe must issue exactly one recovery read")

	// No further probes without another live transition.
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int64(1), f.calls.Load())
}

func TestTracker_ProbeSkippedWhenUpdateArrivesFirst(t *testing.T) {
	f := &fakeFetcher{}
	cfg := quietCfg()
	cfg.ReconnectProbeDelay = 30 * time.Millisecond
	tr := NewTracker(context.Background(), "room", f, nil, cfg, zaptest.NewLogger(t))
	defer tr.Close()

	tr.SetConnectivity(Live)
	tr.ApplySnapshot(ongoingSnap(1))

	time.Sleep(80 * time.Millisecond)
	require.Zero(t, f.calls.Load(), "a timely update must cancel the probe")
}

func TestTracker_AutoHealOnStaleness(t *testing.T) {
	f := &fakeFetcher{state: ongoingSnap(2).State}
	f.rev.Store(2)

	cfg := quietCfg()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.ActiveStaleAfter = 25 * time.Millisecond
	tr := NewTracker(context.Background(), "room", f, nil, cfg, zaptest.NewLogger(t))
	defer tr.Close()

	tr.SetConnectivity(Live)
	tr.ApplySnapshot(ongoingSnap(1)) // baseline

	require.Eventually(t, func() bool {
		v := tr.View()
		return v.Heals == 1 && v.Revision == 2
	}, time.Second, 5*time.Millisecond, "staleness must trigger one heal that applies the fetched state")
}

func TestTracker_HealCooldownIsSingleFire(t *testing.T) {
	// Fetch returns the same revision we already hold, so the heal never
	// refreshes lastUpdate and staleness persists across poll ticks.
	f := &fakeFetcher{state: ongoingSnap(1).State}
	f.rev.Store(1)

	cfg := quietCfg()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.ActiveStaleAfter = 20 * time.Millisecond
	cfg.HealCooldown = time.Hour
	tr := NewTracker(context.Background(), "room", f, nil, cfg, zaptest.NewLogger(t))
	defer tr.Close()

	tr.SetConnectivity(Live)
	tr.ApplySnapshot(ongoingSnap(1))

	require.Eventually(t, func() bool { return tr.View().Heals == 1 },
		time.Second, 5*time.Millisecond)

	// Staleness persists, many poll ticks pass, but the cooldown holds.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 1, tr.View().Heals)
	require.Equal(t, int64(1), f.calls.Load())
}

func TestTracker_NoHealWhileDisconnectedOrBaselineMissing(t *testing.T) {
	f := &fakeFetcher{}
	cfg := quietCfg()
	cfg.PollInterval = 10 * time.Millisecond
	cfg.ActiveStaleAfter = 1 * time.Millisecond
	cfg.IdleStaleAfter = 1 * time.Millisecond
	tr := NewTracker(context.Background(), "room", f, nil, cfg, zaptest.NewLogger(t))
	defer tr.Close()

	// Live but no baseline yet.
	tr.SetConnectivity(Live)
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, f.calls.Load())

	// Baseline but not live.
	tr.SetConnectivity(Disconnected)
	tr.ApplySnapshot(ongoingSnap(1))
	time.Sleep(50 * time.Millisecond)
	require.Zero(t, f.calls.Load())
}

func TestTracker_VisibilityTriggersImmediateCheck(t *testing.T) {
	f := &fakeFetcher{state: ongoingSnap(3).State}
	f.rev.Store(3)

	// Polling effectively off: only the visibility event can notice the gap.
	cfg := quietCfg()
	cfg.ActiveStaleAfter = 10 * time.Millisecond
	tr := NewTracker(context.Background(), "room", f, nil, cfg, zaptest.NewLogger(t))
	defer tr.Close()

	tr.SetConnectivity(Live)
	tr.ApplySnapshot(ongoingSnap(1))

	time.Sleep(30 * time.Millisecond) // let the copy go stale
	tr.VisibilityChanged(true)

	require.Eventually(t, func() bool { return tr.View().Heals == 1 },
		time.Second, 5*time.Millisecond, "foreground transition must run an out-of-cycle staleness check")
}

func TestTracker_ProbeThrottleAcrossReconnects(t *testing.T) {
	// Fetch returns nothing newer than the held baseline, so the probe is
	// never redeemed by a fresh update; a second live transition must not
	// fetch again.
	f := &fakeFetcher{state: ongoingSnap(1).State}
	f.rev.Store(1)

	cfg := quietCfg()
	cfg.ReconnectProbeDelay = 15 * time.Millisecond
	tr := NewTracker(context.Background(), "room", f, nil, cfg, zaptest.NewLogger(t))
	defer tr.Close()

	tr.ApplySnapshot(ongoingSnap(1)) // baseline from before the disconnect
	tr.SetConnectivity(Live)
	require.Eventually(t, func() bool { return f.calls.Load() == 1 },
		time.Second, 5*time.Millisecond)

	tr.SetConnectivity(Disconnected)
	tr.SetConnectivity(Live)
	time.Sleep(60 * time.Millisecond)
	require.Equal(t, int64(1), f.calls.Load(),
		"probe throttle resets only on an observed fresh update, not on reconnect")
}
