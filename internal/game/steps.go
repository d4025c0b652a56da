package game

// Step is one entry in the night sequence. The sequence is fixed by role
// order; which steps actually occur depends on the roles in the template.
type Step struct {
	Role Role
	Cue  string // narration audio cue enqueued when the step opens
}

// NightOrder is the canonical step order for roles with a night action.
// Villagers and the hunter have no night step.
var NightOrder = []Step{
	{Role: RoleGuard, Cue: "guard_open"},
	{Role: RoleWerewolf, Cue: "werewolf_open"},
	{Role: RoleWitch, Cue: "witch_open"},
	{Role: RoleSeer, Cue: "seer_open"},
}

// StepsFor returns the night steps for a template, in NightOrder, keeping
// only steps whose role appears in the template.
func StepsFor(template []Role) []Step {
	present := map[Role]bool{}
	for _, r := range template {
		present[r] = true
	}
	var steps []Step
	for _, st := range NightOrder {
		if present[st.Role] {
			steps = append(steps, st)
		}
	}
	return steps
}

// CurrentStep returns the active night step, or false when no night step is
// active (day time, or a step index that ran off the sequence).
func CurrentStep(s State) (Step, bool) {
	steps := StepsFor(s.Template)
	if s.NightStep < 0 || s.NightStep >= len(steps) {
		return Step{}, false
	}
	return steps[s.NightStep], true
}

// EligibleSeats returns the seats that must act during the step.
func (st Step) EligibleSeats(s State) []int {
	return SeatsWithRole(s, st.Role)
}

// Satisfied reports whether every eligible seat has submitted for the step.
// The werewolf step counts votes; every other step counts acted marks.
// A step with no eligible seats is trivially satisfied.
func (st Step) Satisfied(s State) bool {
	for _, seat := range st.EligibleSeats(s) {
		if st.Role == RoleWerewolf {
			if _, ok := s.Results.WolfVotes[seat]; !ok {
				return false
			}
		} else if !s.Results.Acted[seat] {
			return false
		}
	}
	return true
}
