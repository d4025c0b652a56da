package engine

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/moonlitgames/werewolf-backend/internal/game"
	"github.com/moonlitgames/werewolf-backend/internal/night"
)

// Rejection reasons surfaced verbatim to clients.
const (
	ReasonNotHost       = "NOT_HOST"
	ReasonBadStatus     = "BAD_STATUS"
	ReasonBadSeat       = "BAD_SEAT"
	ReasonSeatTaken     = "SEAT_TAKEN"
	ReasonAlreadySeated = "ALREADY_SEATED"
	ReasonNotSeated     = "NOT_SEATED"
	ReasonNotWolf       = "NOT_WOLF"
	ReasonNotYourStep   = "NOT_YOUR_STEP"
	ReasonAlreadyActed  = "ALREADY_ACTED"
	ReasonNoSuchAck     = "NO_SUCH_ACK"
	ReasonNoAudio       = "NO_AUDIO"
	ReasonAudioBusy     = "AUDIO_BUSY"
)

// Dispatch routes an intent to its handler. The switch is exhaustive over
// the Intent union.
func Dispatch(in Intent, ctx Context) ProcessResult {
	switch intent := in.(type) {
	case TakeSeat:
		return handleTakeSeat(intent, ctx)
	case LeaveSeat:
		return handleLeaveSeat(ctx)
	case AssignRoles:
		return handleAssignRoles(intent, ctx)
	case ViewRole:
		return handleViewRole(ctx)
	case StartGame:
		return handleStartGame(ctx)
	case SubmitWolfVote:
		return handleSubmitWolfVote(intent, ctx)
	case SubmitNightAction:
		return handleSubmitNightAction(intent, ctx)
	case AckReveal:
		return handleAckReveal(intent, ctx)
	case AudioStarted:
		return handleAudioStarted(ctx)
	case AudioFinished:
		return handleAudioFinished(ctx)
	case AdvanceNight:
		return handleAdvanceNight(ctx)
	case EndGame:
		return handleEndGame(ctx)
	case RestartGame:
		return handleRestartGame(ctx)
	default:
		panic(fmt.Sprintf("engine: unknown intent %T", in))
	}
}

func handleTakeSeat(in TakeSeat, ctx Context) ProcessResult {
	s := ctx.State
	if s.Status != game.StatusUnseated && s.Status != game.StatusSeated {
		return rejected(ReasonBadStatus)
	}
	if in.Seat < 0 || in.Seat >= len(s.Template) {
		return rejected(ReasonBadSeat)
	}
	if _, taken := s.Seats[in.Seat]; taken {
		return rejected(ReasonSeatTaken)
	}
	if _, seated := game.SeatOf(s, ctx.UID); seated {
		return rejected(ReasonAlreadySeated)
	}

	actions := []game.Action{game.SeatPlayer{
		Seat:   in.Seat,
		Player: game.Player{UID: ctx.UID, Name: in.Name, Avatar: in.Avatar},
	}}
	// Last empty seat filled -> room is fully seated.
	if len(s.Seats)+1 == len(s.Template) && s.Status == game.StatusUnseated {
		actions = append(actions, game.SetStatus{Status: game.StatusSeated})
	}
	return accepted(actions...)
}

func handleLeaveSeat(ctx Context) ProcessResult {
	s := ctx.State
	if s.Status != game.StatusUnseated && s.Status != game.StatusSeated {
		return rejected(ReasonBadStatus)
	}
	if ctx.Seat < 0 {
		return rejected(ReasonNotSeated)
	}
	actions := []game.Action{game.ClearSeat{Seat: ctx.Seat}}
	if s.Status == game.StatusSeated {
		actions = append(actions, game.SetStatus{Status: game.StatusUnseated})
	}
	return accepted(actions...)
}

func handleAssignRoles(in AssignRoles, ctx Context) ProcessResult {
	s := ctx.State
	if !ctx.IsHost {
		return rejected(ReasonNotHost)
	}
	if s.Status != game.StatusSeated {
		return rejected(ReasonBadStatus)
	}

	seats := make([]int, 0, len(s.Seats))
	for seat := range s.Seats {
		seats = append(seats, seat)
	}
	sort.Ints(seats)

	roles := append([]game.Role(nil), s.Template...)
	rng := rand.New(rand.NewSource(in.Seed))
	rng.Shuffle(len(roles), func(i, j int) { roles[i], roles[j] = roles[j], roles[i] })

	actions := make([]game.Action, 0, len(seats)+1)
	for i, seat := range seats {
		actions = append(actions, game.SetRole{Seat: seat, Role: roles[i]})
	}
	actions = append(actions, game.SetStatus{Status: game.StatusAssigned})
	return accepted(actions...)
}

func handleViewRole(ctx Context) ProcessResult {
	s := ctx.State
	if s.Status != game.StatusAssigned {
		return rejected(ReasonBadStatus)
	}
	if ctx.Seat < 0 {
		return rejected(ReasonNotSeated)
	}

	actions := []game.Action{game.MarkRoleViewed{Seat: ctx.Seat}}
	// This viewing may be the last one outstanding.
	allViewed := true
	for seat, p := range s.Seats {
		if seat != ctx.Seat && !p.HasViewedRole {
			allViewed = false
			break
		}
	}
	if allViewed {
		actions = append(actions, game.SetStatus{Status: game.StatusReady})
	}
	return accepted(actions...)
}

func handleStartGame(ctx Context) ProcessResult {
	s := ctx.State
	if !ctx.IsHost {
		return rejected(ReasonNotHost)
	}
	if s.Status != game.StatusReady {
		return rejected(ReasonBadStatus)
	}
	steps := game.StepsFor(s.Template)
	if len(steps) == 0 {
		return rejected(ReasonBadStatus)
	}

	return accepted(
		game.SetStatus{Status: game.StatusOngoing},
		game.SetNightStep{Step: 0},
		game.EnqueueAudio{Cue: "night_falls"},
		game.EnqueueAudio{Cue: steps[0].Cue},
	)
}

func handleSubmitWolfVote(in SubmitWolfVote, ctx Context) ProcessResult {
	s := ctx.State
	if s.Status != game.StatusOngoing {
		return rejected(ReasonBadStatus)
	}
	step, ok := game.CurrentStep(s)
	if !ok || step.Role != game.RoleWerewolf {
		return rejected(ReasonNotYourStep)
	}
	if ctx.Seat < 0 {
		return rejected(ReasonNotSeated)
	}
	if s.Seats[ctx.Seat].Role != game.RoleWerewolf {
		return rejected(ReasonNotWolf)
	}
	if _, occupied := s.Seats[in.Target]; !occupied {
		return rejected(ReasonBadSeat)
	}

	actions := []game.Action{game.RecordWolfVote{Voter: ctx.Seat, Target: in.Target}}

	// Deadline policy runs against the tally as it stands after this vote.
	allVoted := true
	for _, seat := range step.EligibleSeats(s) {
		if seat == ctx.Seat {
			continue
		}
		if _, voted := s.Results.WolfVotes[seat]; !voted {
			allVoted = false
			break
		}
	}
	switch d := night.DecideWolfTimer(allVoted, s.WolfVoteDeadline != nil, ctx.NowMs, ctx.WolfVoteWindow); d.Type {
	case night.TimerSet:
		actions = append(actions, game.SetWolfDeadline{AtMs: d.DeadlineMs})
	case night.TimerClear:
		actions = append(actions, game.ClearWolfDeadline{})
	}
	return accepted(actions...)
}

func handleSubmitNightAction(in SubmitNightAction, ctx Context) ProcessResult {
	s := ctx.State
	if s.Status != game.StatusOngoing {
		return rejected(ReasonBadStatus)
	}
	step, ok := game.CurrentStep(s)
	if !ok {
		return rejected(ReasonNotYourStep)
	}
	if step.Role == game.RoleWerewolf {
		// Wolves vote; they do not use the generic submission.
		return rejected(ReasonNotYourStep)
	}
	if ctx.Seat < 0 {
		return rejected(ReasonNotSeated)
	}
	actor := s.Seats[ctx.Seat]
	if actor.Role != step.Role {
		return rejected(ReasonNotYourStep)
	}
	if s.Results.Acted[ctx.Seat] {
		return rejected(ReasonAlreadyActed)
	}

	actions := []game.Action{game.MarkActed{Seat: ctx.Seat}}

	// The seer's inspection is the one night action that produces a reveal
	// the actor must acknowledge before the night can move on.
	if step.Role == game.RoleSeer {
		target, occupied := s.Seats[in.Target]
		if !occupied {
			return rejected(ReasonBadSeat)
		}
		verdict := "good"
		if target.Role == game.RoleWerewolf {
			verdict = "werewolf"
		}
		key := fmt.Sprintf("seer:%d", ctx.Seat)
		actions = append(actions,
			game.SetReveal{Key: key, Payload: verdict},
			game.AddRevealAck{Key: key},
		)
	}
	return accepted(actions...)
}

func handleAckReveal(in AckReveal, ctx Context) ProcessResult {
	s := ctx.State
	if !s.PendingRevealAcks[in.Key] {
		return rejected(ReasonNoSuchAck)
	}
	return accepted(game.ResolveRevealAck{Key: in.Key})
}

func handleAudioStarted(ctx Context) ProcessResult {
	s := ctx.State
	if !ctx.IsHost {
		return rejected(ReasonNotHost)
	}
	if len(s.PendingAudio) == 0 {
		return rejected(ReasonNoAudio)
	}
	if s.IsAudioPlaying {
		return rejected(ReasonAudioBusy)
	}
	return accepted(game.SetAudioPlaying{Playing: true})
}

func handleAudioFinished(ctx Context) ProcessResult {
	s := ctx.State
	if !ctx.IsHost {
		return rejected(ReasonNotHost)
	}
	if !s.IsAudioPlaying {
		return rejected(ReasonNoAudio)
	}
	return accepted(
		game.DequeueAudio{},
		game.SetAudioPlaying{Playing: false},
	)
}

func handleAdvanceNight(ctx Context) ProcessResult {
	if ctx.State.Status != game.StatusOngoing {
		return rejected(ReasonBadStatus)
	}
	// No mutation of its own; the progression evaluation attached to the
	// commit does the actual work.
	return accepted()
}

func handleEndGame(ctx Context) ProcessResult {
	if !ctx.IsHost {
		return rejected(ReasonNotHost)
	}
	if ctx.State.Status != game.StatusOngoing {
		return rejected(ReasonBadStatus)
	}
	return accepted(game.SetStatus{Status: game.StatusEnded})
}

func handleRestartGame(ctx Context) ProcessResult {
	s := ctx.State
	if !ctx.IsHost {
		return rejected(ReasonNotHost)
	}
	if s.Status != game.StatusOngoing && s.Status != game.StatusEnded {
		return rejected(ReasonBadStatus)
	}
	return ProcessResult{
		Success:     true,
		Actions:     []game.Action{game.ResetForRestart{}},
		SideEffects: SideEffects{"notice": "RESTART"},
	}
}
