// Package engine validates client intents against the current state and
// describes the resulting mutations as game.Action lists. Handlers never
// mutate state; the reducer is the only thing that does.
package engine

import (
	"time"

	"github.com/moonlitgames/werewolf-backend/internal/game"
)

// Intent is a client-submitted request to change game state, one variant
// per kind. Dispatch matches exhaustively; an unknown variant is a
// programming error.
type Intent interface{ isIntent() }

type TakeSeat struct {
	Seat   int
	Name   string
	Avatar string
}

type LeaveSeat struct{}

// AssignRoles shuffles the template onto the seated players. Seed pins the
// shuffle; the HTTP layer fills it from the clock when the client omits it.
type AssignRoles struct{ Seed int64 }

type ViewRole struct{}

type StartGame struct{}

type SubmitWolfVote struct{ Target int }

// SubmitNightAction is the generic non-wolf night submission. Target is the
// acted-upon seat where the role has one (seer inspect, guard protect).
type SubmitNightAction struct{ Target int }

type AckReveal struct{ Key string }

type AudioStarted struct{}

type AudioFinished struct{}

// AdvanceNight carries no mutation of its own: it exists so a client or
// scheduled trigger can force a progression evaluation, e.g. after the
// wolf-vote deadline passes.
type AdvanceNight struct{}

type EndGame struct{}

type RestartGame struct{}

func (TakeSeat) isIntent()          {}
func (LeaveSeat) isIntent()         {}
func (AssignRoles) isIntent()       {}
func (ViewRole) isIntent()          {}
func (StartGame) isIntent()         {}
func (SubmitWolfVote) isIntent()    {}
func (SubmitNightAction) isIntent() {}
func (AckReveal) isIntent()         {}
func (AudioStarted) isIntent()      {}
func (AudioFinished) isIntent()     {}
func (AdvanceNight) isIntent()      {}
func (EndGame) isIntent()           {}
func (RestartGame) isIntent()       {}

// Context is everything a handler may look at besides the intent itself.
type Context struct {
	State  game.State
	UID    string
	Seat   int // -1 when the caller holds no seat
	IsHost bool

	NowMs          int64
	WolfVoteWindow time.Duration
}

// SideEffects are opaque to the transaction loop; they ride along on a
// successful result for the transport layer to act on (e.g. the RESTART
// out-of-band notice).
type SideEffects map[string]any

// ProcessResult is the sole output contract of a handler.
type ProcessResult struct {
	Success     bool
	Reason      string
	Actions     []game.Action
	SideEffects SideEffects
}

func accepted(actions ...game.Action) ProcessResult {
	return ProcessResult{Success: true, Actions: actions}
}

func rejected(reason string) ProcessResult {
	return ProcessResult{Success: false, Reason: reason}
}
