package game

// Action is the only vocabulary the reducer understands: one variant per
// atomic mutation. Handlers and the progression evaluator describe their
// desired changes as Action lists and never touch the state directly.
type Action interface{ isAction() }

type SetStatus struct{ Status Status }

type SetHost struct{ UID string }

type SeatPlayer struct {
	Seat   int
	Player Player
}

type ClearSeat struct{ Seat int }

type SetRole struct {
	Seat int
	Role Role
}

type MarkRoleViewed struct{ Seat int }

type SetNightStep struct{ Step int }

type RecordWolfVote struct {
	Voter  int
	Target int
}

type ClearWolfVotes struct{}

type MarkActed struct{ Seat int }

type ClearActed struct{}

type EnqueueAudio struct{ Cue string }

type DequeueAudio struct{}

type SetAudioPlaying struct{ Playing bool }

type SetReveal struct {
	Key     string
	Payload string
}

type AddRevealAck struct{ Key string }

type ResolveRevealAck struct{ Key string }

type SetWolfDeadline struct{ AtMs int64 }

type ClearWolfDeadline struct{}

// ResetForRestart is the Ongoing/Ended -> Seated edge: seats survive, every
// round artifact (roles, night step, results, queues, acks, deadline) is wiped.
type ResetForRestart struct{}

func (SetStatus) isAction()        {}
func (SetHost) isAction()          {}
func (SeatPlayer) isAction()       {}
func (ClearSeat) isAction()        {}
func (SetRole) isAction()          {}
func (MarkRoleViewed) isAction()   {}
func (SetNightStep) isAction()     {}
func (RecordWolfVote) isAction()   {}
func (ClearWolfVotes) isAction()   {}
func (MarkActed) isAction()        {}
func (ClearActed) isAction()       {}
func (EnqueueAudio) isAction()     {}
func (DequeueAudio) isAction()     {}
func (SetAudioPlaying) isAction()  {}
func (SetReveal) isAction()        {}
func (AddRevealAck) isAction()     {}
func (ResolveRevealAck) isAction() {}
func (SetWolfDeadline) isAction()   {}
func (ClearWolfDeadline) isAction() {}
func (ResetForRestart) isAction()   {}
