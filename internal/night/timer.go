package night

import "time"

type TimerDecisionType string

const (
	TimerSet   TimerDecisionType = "set"
	TimerClear TimerDecisionType = "clear"
	TimerNone  TimerDecisionType = "none"
)

type TimerDecision struct {
	Type       TimerDecisionType
	DeadlineMs int64 // meaningful only for TimerSet
}

// DecideWolfTimer is the wolf-vote deadline policy. It owns no timers:
// it only says whether a deadline should be armed or torn down after a vote
// lands. Expiry enforcement is external (a client or scheduler re-running
// the progression evaluator once the deadline passes).
//
//	all voted, timer armed   -> clear
//	votes missing, no timer  -> set now+window
//	anything else            -> none
func DecideWolfTimer(allVoted, hasExistingTimer bool, nowMs int64, window time.Duration) TimerDecision {
	switch {
	case allVoted && hasExistingTimer:
		return TimerDecision{Type: TimerClear}
	case !allVoted && !hasExistingTimer:
		return TimerDecision{Type: TimerSet, DeadlineMs: nowMs + window.Milliseconds()}
	default:
		return TimerDecision{Type: TimerNone}
	}
}
