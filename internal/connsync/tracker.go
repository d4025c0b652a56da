// Package connsync is the client-side liveness tracker. It watches the
// broadcast stream for a room, detects silently dropped messages via a
// phase-dependent staleness heuristic, and self-heals by reading the durable
// row directly. Everything runs on one event loop; there is no locking, and
// every recovery fetch is idempotent and safe to issue redundantly.
package connsync

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/moonlitgames/werewolf-backend/internal/game"
)

type Connectivity int

const (
	Disconnected Connectivity = iota
	Syncing
	Live
)

func (c Connectivity) String() string {
	switch c {
	case Disconnected:
		return "disconnected"
	case Syncing:
		return "syncing"
	case Live:
		return "live"
	}
	return "unknown"
}

type Config struct {
	// ReconnectProbeDelay: one-shot timer armed on each transition to live;
	// if no authoritative update lands before it fires, one throttled direct
	// read is issued.
	ReconnectProbeDelay time.Duration
	// PollInterval between staleness checks.
	PollInterval time.Duration
	// ActiveStaleAfter / IdleStaleAfter are the phase-dependent thresholds.
	ActiveStaleAfter time.Duration
	IdleStaleAfter   time.Duration
	// HealCooldown: minimum spacing between auto-heal fetches.
	HealCooldown time.Duration
	// ReconnectGrace: window after going live in which staleness is ignored
	// (the reconnect probe covers that window instead).
	ReconnectGrace time.Duration
	FetchTimeout   time.Duration
}

func DefaultConfig() Config {
	return Config{
		ReconnectProbeDelay: 2 * time.Second,
		PollInterval:        3 * time.Second,
		ActiveStaleAfter:    8 * time.Second,
		IdleStaleAfter:      60 * time.Second,
		HealCooldown:        8 * time.Second,
		ReconnectGrace:      3 * time.Second,
		FetchTimeout:        5 * time.Second,
	}
}

// Fetcher is the recovery boundary: a direct durable read bypassing the
// broadcast channel.
type Fetcher interface {
	FetchState(ctx context.Context, roomID string) (game.State, int64, error)
}

type Snapshot struct {
	State    game.State
	Revision int64
}

type trackerMsg interface{ isTrackerMsg() }

type applySnapshot struct{ Snap Snapshot }
type setConnectivity struct{ Conn Connectivity }
type visibility struct{ Foreground bool }
type getView struct{ Reply chan View }

func (applySnapshot) isTrackerMsg()   {}
func (setConnectivity) isTrackerMsg() {}
func (visibility) isTrackerMsg()      {}
func (getView) isTrackerMsg()         {}

// View reflects loop-internal state without data races (test/debug only).
type View struct {
	Conn         Connectivity
	Revision     int64
	HaveBaseline bool
	Heals        int
}

type Tracker struct {
	roomID  string
	fetch   Fetcher
	cfg     Config
	log     *zap.Logger
	onApply func(Snapshot)

	inbox  chan trackerMsg
	ctx    context.Context
	cancel context.CancelFunc
	sf     singleflight.Group
	now    func() time.Time

	// Loop-owned; never touched outside the loop goroutine.
	conn         Connectivity
	state        game.State
	rev          int64
	haveBaseline bool
	lastUpdate   time.Time
	liveSince    time.Time
	lastHeal     time.Time
	probeUsed    bool
	probeTimer   *time.Timer
	heals        int
}

// NewTracker starts the event loop. onApply is called (from the loop) for
// every snapshot that survives the strictly-newer revision filter,
// regardless of whether it arrived via broadcast or a recovery read.
func NewTracker(parent context.Context, roomID string, fetch Fetcher, onApply func(Snapshot), cfg Config, log *zap.Logger) *Tracker {
	ctx, cancel := context.WithCancel(parent)
	t := &Tracker{
		roomID:  roomID,
		fetch:   fetch,
		cfg:     cfg,
		log:     log,
		onApply: onApply,
		inbox:   make(chan trackerMsg, 16),
		ctx:     ctx,
		cancel:  cancel,
		now:     time.Now,
		conn:    Disconnected,
	}
	go t.loop()
	return t
}

// ApplySnapshot feeds an authoritative update in (broadcast consumer path).
func (t *Tracker) ApplySnapshot(s Snapshot) { t.post(applySnapshot{Snap: s}) }

// SetConnectivity feeds transport-level liveness transitions in.
func (t *Tracker) SetConnectivity(c Connectivity) { t.post(setConnectivity{Conn: c}) }

// VisibilityChanged runs an immediate out-of-cycle staleness check;
// backgrounded apps can freeze timers without surfacing a disconnect.
func (t *Tracker) VisibilityChanged(foreground bool) { t.post(visibility{Foreground: foreground}) }

func (t *Tracker) View() View {
	reply := make(chan View, 1)
	t.post(getView{Reply: reply})
	select {
	case v := <-reply:
		return v
	case <-t.ctx.Done():
		return View{}
	}
}

func (t *Tracker) Close() { t.cancel() }

func (t *Tracker) post(m trackerMsg) {
	select {
	case t.inbox <- m:
	case <-t.ctx.Done():
	}
}

func (t *Tracker) loop() {
	ticker := time.NewTicker(t.cfg.PollInterval)
	defer ticker.Stop()
	defer t.stopProbe()

	for {
		// A nil channel blocks forever, which is exactly what we want while
		// no probe timer is armed.
		var probeC <-chan time.Time
		if t.probeTimer != nil {
			probeC = t.probeTimer.C
		}

		select {
		case <-t.ctx.Done():
			return

		case <-ticker.C:
			t.checkStale(t.now())

		case <-probeC:
			t.probeTimer = nil
			t.probeFired()

		case m := <-t.inbox:
			switch msg := m.(type) {
			case applySnapshot:
				t.apply(msg.Snap)
			case setConnectivity:
				t.transition(msg.Conn)
			case visibility:
				t.checkStale(t.now())
			case getView:
				msg.Reply <- View{
					Conn:         t.conn,
					Revision:     t.rev,
					HaveBaseline: t.haveBaseline,
					Heals:        t.heals,
				}
			}
		}
	}
}

// apply is the single entry point for authoritative data. Anything not
// strictly newer than what we hold is a reordered or duplicate delivery and
// is discarded; that makes every recovery fetch safe to issue redundantly.
func (t *Tracker) apply(s Snapshot) {
	if s.Revision <= t.rev && t.haveBaseline {
		t.log.Debug("discarding non-newer snapshot",
			zap.Int64("have", t.rev), zap.Int64("got", s.Revision))
		return
	}
	t.state = s.State
	t.rev = s.Revision
	t.haveBaseline = true
	t.lastUpdate = t.now()
	t.probeUsed = false // throttle resets only on a fresh observed update
	t.stopProbe()
	if t.onApply != nil {
		t.onApply(s)
	}
}

func (t *Tracker) transition(c Connectivity) {
	if c == t.conn {
		return
	}
	t.log.Info("connectivity change",
		zap.String("from", t.conn.String()), zap.String("to", c.String()))
	t.conn = c

	if c == Live {
		t.liveSince = t.now()
		t.stopProbe()
		t.probeTimer = time.NewTimer(t.cfg.ReconnectProbeDelay)
	} else {
		t.stopProbe()
	}
}

// probeFired: the post-reconnect window elapsed with no update. Issue at
// most one direct read per live transition, and none at all if a previous
// probe is still unredeemed (no fresh update observed since).
func (t *Tracker) probeFired() {
	if t.conn != Live {
		return
	}
	if !t.lastUpdate.Before(t.liveSince) && !t.lastUpdate.IsZero() {
		return // an update already arrived since reconnecting
	}
	if t.probeUsed {
		return
	}
	t.probeUsed = true
	t.startFetch("reconnect-probe")
}

// checkStale is the auto-heal gate: live, stale, baseline received, outside
// the post-reconnect grace, and outside the heal cooldown. It distinguishes
// a silently dropped message while connected from a hard disconnect, which
// the reconnect probe handles instead.
func (t *Tracker) checkStale(now time.Time) {
	if t.conn != Live || !t.haveBaseline {
		return
	}
	if !IsStale(t.state.Status, t.lastUpdate, now, t.cfg) {
		return
	}
	if now.Sub(t.liveSince) < t.cfg.ReconnectGrace {
		return
	}
	if !t.lastHeal.IsZero() && now.Sub(t.lastHeal) < t.cfg.HealCooldown {
		return
	}
	t.lastHeal = now
	t.heals++
	t.log.Info("stale state detected, self-healing",
		zap.String("room", t.roomID), zap.Int64("revision", t.rev))
	t.startFetch("auto-heal")
}

// startFetch runs the recovery read off the loop; concurrent callers for
// the same room collapse onto one flight. The result re-enters through the
// inbox and the revision filter.
func (t *Tracker) startFetch(reason string) {
	go func() {
		v, err, _ := t.sf.Do(t.roomID, func() (any, error) {
			ctx, cancel := context.WithTimeout(t.ctx, t.cfg.FetchTimeout)
			defer cancel()
			s, rev, err := t.fetch.FetchState(ctx, t.roomID)
			if err != nil {
				return nil, err
			}
			return Snapshot{State: s, Revision: rev}, nil
		})
		if err != nil {
			t.log.Warn("recovery fetch failed",
				zap.String("room", t.roomID), zap.String("reason", reason), zap.Error(err))
			return
		}
		t.post(applySnapshot{Snap: v.(Snapshot)})
	}()
}

func (t *Tracker) stopProbe() {
	if t.probeTimer != nil {
		t.probeTimer.Stop()
		t.probeTimer = nil
	}
}
