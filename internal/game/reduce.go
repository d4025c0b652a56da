package game

import "fmt"

// Reduce applies one action and returns the new state. It is total over the
// Action union and pure: the input state and its maps are never mutated.
// An unrecognized variant is a programming error, not a user-facing outcome.
func Reduce(s State, a Action) State {
	out := s.Clone()

	switch act := a.(type) {
	case SetStatus:
		out.Status = act.Status

	case SetHost:
		out.HostUID = act.UID

	case SeatPlayer:
		p := act.Player
		p.Seat = act.Seat
		out.Seats[act.Seat] = p

	case ClearSeat:
		delete(out.Seats, act.Seat)

	case SetRole:
		p, ok := out.Seats[act.Seat]
		if !ok {
			return out
		}
		p.Role = act.Role
		p.HasViewedRole = false
		out.Seats[act.Seat] = p

	case MarkRoleViewed:
		p, ok := out.Seats[act.Seat]
		if !ok {
			return out
		}
		p.HasViewedRole = true
		out.Seats[act.Seat] = p

	case SetNightStep:
		out.NightStep = act.Step

	case RecordWolfVote:
		if out.Results.WolfVotes == nil {
			out.Results.WolfVotes = map[int]int{}
		}
		out.Results.WolfVotes[act.Voter] = act.Target

	case ClearWolfVotes:
		out.Results.WolfVotes = nil

	case MarkActed:
		if out.Results.Acted == nil {
			out.Results.Acted = map[int]bool{}
		}
		out.Results.Acted[act.Seat] = true

	case ClearActed:
		out.Results.Acted = nil

	case EnqueueAudio:
		out.PendingAudio = append(out.PendingAudio, act.Cue)

	case DequeueAudio:
		if len(out.PendingAudio) > 0 {
			out.PendingAudio = out.PendingAudio[1:]
		}

	case SetAudioPlaying:
		out.IsAudioPlaying = act.Playing

	case SetReveal:
		if out.Results.Reveals == nil {
			out.Results.Reveals = map[string]string{}
		}
		out.Results.Reveals[act.Key] = act.Payload

	case AddRevealAck:
		if out.PendingRevealAcks == nil {
			out.PendingRevealAcks = map[string]bool{}
		}
		out.PendingRevealAcks[act.Key] = true

	case ResolveRevealAck:
		delete(out.PendingRevealAcks, act.Key)

	case SetWolfDeadline:
		d := act.AtMs
		out.WolfVoteDeadline = &d

	case ClearWolfDeadline:
		out.WolfVoteDeadline = nil

	case ResetForRestart:
		out.Status = StatusSeated
		out.NightStep = -1
		out.Results = Results{}
		out.PendingAudio = nil
		out.PendingRevealAcks = nil
		out.WolfVoteDeadline = nil
		out.IsAudioPlaying = false
		for seat, p := range out.Seats {
			p.Role = ""
			p.HasViewedRole = false
			out.Seats[seat] = p
		}

	default:
		panic(fmt.Sprintf("game: unknown action %T", a))
	}

	return out
}

// ReduceAll folds actions in list order. Order matters: later actions see the
// effects of earlier ones.
func ReduceAll(s State, actions []Action) State {
	for _, a := range actions {
		s = Reduce(s, a)
	}
	return s
}
