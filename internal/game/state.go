package game

import "sort"

// Status is the room lifecycle. Transitions only move along the edges in
// statusEdges; the restart edge (Ongoing/Ended -> Seated) keeps the seated
// players but wipes everything the previous round produced.
type Status string

const (
	StatusUnseated Status = "unseated"
	StatusSeated   Status = "seated"
	StatusAssigned Status = "assigned"
	StatusReady    Status = "ready"
	StatusOngoing  Status = "ongoing"
	StatusEnded    Status = "ended"
)

var statusEdges = map[Status][]Status{
	StatusUnseated: {StatusSeated},
	StatusSeated:   {StatusUnseated, StatusAssigned},
	StatusAssigned: {StatusReady},
	StatusReady:    {StatusOngoing},
	StatusOngoing:  {StatusEnded, StatusSeated},
	StatusEnded:    {StatusSeated},
}

// CanTransition reports whether from -> to is a legal status edge.
func CanTransition(from, to Status) bool {
	for _, next := range statusEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

type Role string

const (
	RoleVillager Role = "villager"
	RoleWerewolf Role = "werewolf"
	RoleSeer     Role = "seer"
	RoleWitch    Role = "witch"
	RoleGuard    Role = "guard"
	RoleHunter   Role = "hunter"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleVillager, RoleWerewolf, RoleSeer, RoleWitch, RoleGuard, RoleHunter:
		return true
	}
	return false
}

type Player struct {
	UID           string `json:"uid"`
	Seat          int    `json:"seat"`
	Name          string `json:"name"`
	Avatar        string `json:"avatar,omitempty"`
	Role          Role   `json:"role,omitempty"`
	HasViewedRole bool   `json:"has_viewed_role"`
	IsBot         bool   `json:"is_bot,omitempty"`
}

// Results is the transient per-step bag. Everything in here is cleared when
// the night step advances (or the night ends).
type Results struct {
	// WolfVotes maps voter seat -> target seat for the werewolf step.
	WolfVotes map[int]int `json:"wolf_votes,omitempty"`
	// Acted marks seats that submitted their action for the current step.
	Acted map[int]bool `json:"acted,omitempty"`
	// Reveals holds keyed reveal payloads (e.g. a seer's inspection result).
	Reveals map[string]string `json:"reveals,omitempty"`
}

// State is the root aggregate, one per room. The store keeps a revision
// counter next to it; revision is not game data and never appears here.
type State struct {
	RoomID   string         `json:"room_id"`
	HostUID  string         `json:"host_uid"`
	Status   Status         `json:"status"`
	Seats    map[int]Player `json:"seats"`
	Template []Role         `json:"template"`

	// NightStep indexes into StepsFor(Template); -1 means no night is active.
	NightStep int     `json:"night_step"`
	Results   Results `json:"results"`

	PendingAudio      []string        `json:"pending_audio,omitempty"`
	PendingRevealAcks map[string]bool `json:"pending_reveal_acks,omitempty"`
	// WolfVoteDeadline is unix millis; nil while no deadline is armed.
	WolfVoteDeadline *int64 `json:"wolf_vote_deadline,omitempty"`
	IsAudioPlaying   bool   `json:"is_audio_playing"`
}

// NewState builds the initial aggregate for a freshly created room.
func NewState(roomID, hostUID string, template []Role) State {
	return State{
		RoomID:    roomID,
		HostUID:   hostUID,
		Status:    StatusUnseated,
		Seats:     map[int]Player{},
		Template:  append([]Role(nil), template...),
		NightStep: -1,
	}
}

// SeatOf returns the seat index occupied by uid, or false if not seated.
func SeatOf(s State, uid string) (int, bool) {
	for seat, p := range s.Seats {
		if p.UID == uid {
			return seat, true
		}
	}
	return -1, false
}

// SeatsWithRole returns the seat indices holding the given role, sorted.
func SeatsWithRole(s State, r Role) []int {
	var seats []int
	for seat, p := range s.Seats {
		if p.Role == r {
			seats = append(seats, seat)
		}
	}
	sort.Ints(seats)
	return seats
}

// Clone deep-copies the state so reducers never alias the input's maps.
func (s State) Clone() State {
	out := s
	out.Seats = make(map[int]Player, len(s.Seats))
	for k, v := range s.Seats {
		out.Seats[k] = v
	}
	out.Template = append([]Role(nil), s.Template...)
	out.PendingAudio = append([]string(nil), s.PendingAudio...)
	if s.PendingRevealAcks != nil {
		out.PendingRevealAcks = make(map[string]bool, len(s.PendingRevealAcks))
		for k, v := range s.PendingRevealAcks {
			out.PendingRevealAcks[k] = v
		}
	}
	if s.WolfVoteDeadline != nil {
		d := *s.WolfVoteDeadline
		out.WolfVoteDeadline = &d
	}
	out.Results = s.Results.clone()
	return out
}

func (r Results) clone() Results {
	out := Results{}
	if r.WolfVotes != nil {
		out.WolfVotes = make(map[int]int, len(r.WolfVotes))
		for k, v := range r.WolfVotes {
			out.WolfVotes[k] = v
		}
	}
	if r.Acted != nil {
		out.Acted = make(map[int]bool, len(r.Acted))
		for k, v := range r.Acted {
			out.Acted[k] = v
		}
	}
	if r.Reveals != nil {
		out.Reveals = make(map[string]string, len(r.Reveals))
		for k, v := range r.Reveals {
			out.Reveals[k] = v
		}
	}
	return out
}

// Normalize canonicalizes a state before it is persisted: empty collections
// collapse to nil and a wolf-vote deadline cannot outlive the Ongoing status.
func Normalize(s State) State {
	out := s.Clone()
	if out.Status != StatusOngoing {
		out.WolfVoteDeadline = nil
	}
	if len(out.PendingAudio) == 0 {
		out.PendingAudio = nil
	}
	if len(out.PendingRevealAcks) == 0 {
		out.PendingRevealAcks = nil
	}
	if len(out.Results.WolfVotes) == 0 {
		out.Results.WolfVotes = nil
	}
	if len(out.Results.Acted) == 0 {
		out.Results.Acted = nil
	}
	if len(out.Results.Reveals) == 0 {
		out.Results.Reveals = nil
	}
	return out
}
