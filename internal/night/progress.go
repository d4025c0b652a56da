// Package night holds the pure decision functions that drive the night
// phase: the progression evaluator, the mapping from a progression decision
// to state actions, and the wolf-vote deadline policy. Nothing in here does
// I/O or owns a timer.
package night

import (
	"sort"
	"strconv"

	"github.com/moonlitgames/werewolf-backend/internal/game"
)

type DecisionAction string

const (
	ActionNone     DecisionAction = "none"
	ActionAdvance  DecisionAction = "advance"
	ActionEndNight DecisionAction = "end_night"
)

type Decision struct {
	Action DecisionAction `json:"action"`
	Reason string         `json:"reason"`
}

// Evaluate decides whether the night phase may move on. The gates run in a
// fixed order; the transaction coordinator (mutating) and the read-only HTTP
// decision query both call this exact function so they can never diverge.
//
// Gate order: audio, reveal acks, step submissions (with deadline override),
// then advance or end-night at the last step.
func Evaluate(s game.State, nowMs int64) Decision {
	if s.Status != game.StatusOngoing {
		return Decision{Action: ActionNone, Reason: "game not ongoing"}
	}
	if len(s.PendingAudio) > 0 || s.IsAudioPlaying {
		return Decision{Action: ActionNone, Reason: "wait for audio ack"}
	}
	if len(s.PendingRevealAcks) > 0 {
		return Decision{Action: ActionNone, Reason: "wait for reveal ack"}
	}

	step, ok := game.CurrentStep(s)
	if !ok {
		return Decision{Action: ActionNone, Reason: "no active night step"}
	}
	if !step.Satisfied(s) && !deadlineExpired(s, nowMs) {
		return Decision{Action: ActionNone, Reason: "waiting for submissions"}
	}

	steps := game.StepsFor(s.Template)
	if s.NightStep >= len(steps)-1 {
		return Decision{Action: ActionEndNight, Reason: "last step complete"}
	}
	return Decision{Action: ActionAdvance, Reason: "step complete"}
}

func deadlineExpired(s game.State, nowMs int64) bool {
	return s.WolfVoteDeadline != nil && nowMs >= *s.WolfVoteDeadline
}

// Actions maps a progression decision onto the state actions that realize
// it. Advancing or ending clears the per-step artifacts and enqueues the
// next narration cue; closing the werewolf step additionally records the
// vote outcome as a reveal payload for the day-break resolvers.
func Actions(s game.State, d Decision) []game.Action {
	if d.Action == ActionNone {
		return nil
	}

	var acts []game.Action
	if step, ok := game.CurrentStep(s); ok && step.Role == game.RoleWerewolf {
		if target, ok := TallyWolfVotes(s.Results.WolfVotes); ok {
			acts = append(acts, game.SetReveal{Key: "wolf_target", Payload: strconv.Itoa(target)})
		}
	}
	acts = append(acts,
		game.ClearActed{},
		game.ClearWolfVotes{},
		game.ClearWolfDeadline{},
	)

	switch d.Action {
	case ActionAdvance:
		steps := game.StepsFor(s.Template)
		next := s.NightStep + 1
		acts = append(acts, game.SetNightStep{Step: next})
		acts = append(acts, game.EnqueueAudio{Cue: steps[next].Cue})
	case ActionEndNight:
		acts = append(acts, game.SetNightStep{Step: -1})
		acts = append(acts, game.EnqueueAudio{Cue: "day_breaks"})
	}
	return acts
}

// TallyWolfVotes returns the strict-majority target of the wolf votes, or
// false on a tie or when nobody voted. Ties resolve to no kill.
func TallyWolfVotes(votes map[int]int) (int, bool) {
	if len(votes) == 0 {
		return 0, false
	}
	counts := map[int]int{}
	for _, target := range votes {
		counts[target]++
	}
	targets := make([]int, 0, len(counts))
	for t := range counts {
		targets = append(targets, t)
	}
	sort.Ints(targets)

	best, bestCount, tied := 0, 0, false
	for _, t := range targets {
		switch {
		case counts[t] > bestCount:
			best, bestCount, tied = t, counts[t], false
		case counts[t] == bestCount:
			tied = true
		}
	}
	if tied {
		return 0, false
	}
	return best, true
}
