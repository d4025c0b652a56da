package txn

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/moonlitgames/werewolf-backend/internal/engine"
	"github.com/moonlitgames/werewolf-backend/internal/game"
	"github.com/moonlitgames/werewolf-backend/internal/pubsub"
	"github.com/moonlitgames/werewolf-backend/internal/store"
)

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []pubsub.Message
}

func (p *recordingPublisher) Publish(_ string, m pubsub.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, m)
}

func (p *recordingPublisher) all() []pubsub.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]pubsub.Message(nil), p.msgs...)
}

// contendingStore makes the caller lose the CAS n times by sneaking a
// competing commit in between Load and CompareAndSwap.
type contendingStore struct {
	store.RoomStore
	races int
}

func (c *contendingStore) Load(ctx context.Context, roomID string) (game.State, int64, error) {
	s, rev, err := c.RoomStore.Load(ctx, roomID)
	if err == nil && c.races > 0 {
		c.races--
		sneaked := s.Clone()
		sneaked.HostUID = "intruder"
		ok, casErr := c.RoomStore.CompareAndSwap(ctx, roomID, sneaked, rev)
		if casErr != nil || !ok {
			panic("contendingStore: sneak commit failed")
		}
	}
	return s, rev, err
}

func newRoom(t *testing.T, st store.RoomStore, upToRev int64) string {
	t.Helper()
	s := game.NewState("room", "host", []game.Role{game.RoleWerewolf, game.RoleVillager})
	require.NoError(t, st.Create(context.Background(), "room", s))
	for i := int64(0); i < upToRev; i++ {
		cur, rev, err := st.Load(context.Background(), "room")
		require.NoError(t, err)
		ok, err := st.CompareAndSwap(context.Background(), "room", cur, rev)
		require.NoError(t, err)
		require.True(t, ok)
	}
	return "room"
}

func setHostCompute(uid string) Compute {
	return func(s game.State, _ int64) engine.ProcessResult {
		return engine.ProcessResult{Success: true, Actions: []game.Action{game.SetHost{UID: uid}}}
	}
}

func TestCommit_RevisionIncrementsByOne(t *testing.T) {
	mem := store.NewMemoryStore()
	pub := &recordingPublisher{}
	c := New(mem, pub, zaptest.NewLogger(t))
	room := newRoom(t, mem, 5)

	res, err := c.Commit(context.Background(), room, setHostCompute("h2"), Progression{})
	require.NoError(t, err)
	require.Equal(t, int64(6), res.Revision)
	require.Equal(t, "h2", res.State.HostUID)

	stored, rev, err := mem.Load(context.Background(), room)
	require.NoError(t, err)
	require.Equal(t, int64(6), rev)
	require.Equal(t, "h2", stored.HostUID)

	msgs := pub.all()
	require.Len(t, msgs, 1)
	require.Equal(t, pubsub.TypeStateUpdate, msgs[0].Type)
	require.Equal(t, int64(6), msgs[0].Revision)
}

func TestCommit_NotFound(t *testing.T) {
	c := New(store.NewMemoryStore(), &recordingPublisher{}, zaptest.NewLogger(t))
	_, err := c.Commit(context.Background(), "missing", setHostCompute("x"), Progression{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCommit_RejectionIsTerminalAndSilent(t *testing.T) {
	mem := store.NewMemoryStore()
	pub := &recordingPublisher{}
	c := New(mem, pub, zaptest.NewLogger(t))
	room := newRoom(t, mem, 0)

	computeCalls := 0
	reject := func(game.State, int64) engine.ProcessResult {
		computeCalls++
		return engine.ProcessResult{Success: false, Reason: "NOT_HOST"}
	}

	_, err := c.Commit(context.Background(), room, reject, Progression{})
	var rej *RejectedError
	require.ErrorAs(t, err, &rej)
	require.Equal(t, "NOT_HOST", rej.Reason)
	require.Equal(t, 1, computeCalls, "business rejections are never retried")

	_, rev, loadErr := mem.Load(context.Background(), room)
	require.NoError(t, loadErr)
	require.Equal(t, int64(0), rev, "store must be untouched")
	require.Empty(t, pub.all(), "no broadcast on rejection")
}

func TestCommit_ConflictRetriesTransparently(t *testing.T) {
	mem := store.NewMemoryStore()
	pub := &recordingPublisher{}
	flaky := &contendingStore{RoomStore: mem, races: 1}
	c := New(flaky, pub, zaptest.NewLogger(t))
	c.Backoff = 0
	room := newRoom(t, mem, 5)

	// The sneak commit bumps the store to 6 after our read of 5; the loser
	// re-reads, recomputes, and lands at 7 with no visible error.
	res, err := c.Commit(context.Background(), room, setHostCompute("h2"), Progression{})
	require.NoError(t, err)
	require.Equal(t, int64(7), res.Revision)

	_, rev, err := mem.Load(context.Background(), room)
	require.NoError(t, err)
	require.Equal(t, int64(7), rev)

	msgs := pub.all()
	require.Len(t, msgs, 1, "only the winning attempt broadcasts")
	require.Equal(t, int64(7), msgs[0].Revision)
}

func TestCommit_ConflictExhaustsToError(t *testing.T) {
	mem := store.NewMemoryStore()
	flaky := &contendingStore{RoomStore: mem, races: 100}
	c := New(flaky, &recordingPublisher{}, zaptest.NewLogger(t))
	c.Backoff = 0
	room := newRoom(t, mem, 0)

	_, err := c.Commit(context.Background(), room, setHostCompute("x"), Progression{})
	require.ErrorIs(t, err, ErrConflict)
	require.Equal(t, 100-c.MaxAttempts, flaky.races, "exactly MaxAttempts reads happen")
}

func TestCommit_TwoRacersBothSucceed(t *testing.T) {
	mem := store.NewMemoryStore()
	pub := &recordingPublisher{}
	c := New(mem, pub, zaptest.NewLogger(t))
	c.Backoff = 0
	room := newRoom(t, mem, 0)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Commit(context.Background(), room, setHostCompute("h"), Progression{})
		}(i)
	}
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	_, rev, err := mem.Load(context.Background(), room)
	require.NoError(t, err)
	require.Equal(t, int64(2), rev, "both commits must land, serialized by CAS")
}

func TestCommit_PanicBecomesInternal(t *testing.T) {
	mem := store.NewMemoryStore()
	c := New(mem, &recordingPublisher{}, zaptest.NewLogger(t))
	room := newRoom(t, mem, 0)

	boom := func(game.State, int64) engine.ProcessResult { panic("boom") }
	_, err := c.Commit(context.Background(), room, boom, Progression{})
	require.ErrorIs(t, err, ErrInternal)

	_, rev, loadErr := mem.Load(context.Background(), room)
	require.NoError(t, loadErr)
	require.Equal(t, int64(0), rev)
}

// Progression folds strictly after the handler's actions: a wolf-vote commit
// that satisfies the step advances the night in the same transaction.
func TestCommit_InlineProgression(t *testing.T) {
	mem := store.NewMemoryStore()
	pub := &recordingPublisher{}
	c := New(mem, pub, zaptest.NewLogger(t))

	s := game.NewState("room", "host", []game.Role{game.RoleWerewolf, game.RoleSeer})
	s.Status = game.StatusOngoing
	s.NightStep = 0
	s.Seats = map[int]game.Player{
		0: {UID: "w1", Seat: 0, Role: game.RoleWerewolf},
		1: {UID: "s1", Seat: 1, Role: game.RoleSeer},
	}
	require.NoError(t, mem.Create(context.Background(), "room", s))

	vote := func(cur game.State, _ int64) engine.ProcessResult {
		return engine.Dispatch(engine.SubmitWolfVote{Target: 1}, engine.Context{
			State: cur, UID: "w1", Seat: 0, NowMs: 1000,
		})
	}
	res, err := c.Commit(context.Background(), "room", vote, Progression{Enabled: true, NowMs: 1000})
	require.NoError(t, err)

	require.Equal(t, 1, res.State.NightStep, "lone wolf's vote satisfies the step; progression advances")
	require.Nil(t, res.State.Results.WolfVotes, "artifacts cleared by the advance")
	require.Equal(t, []string{"seer_open"}, res.State.PendingAudio)
}
