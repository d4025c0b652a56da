package game

import "testing"

func TestStepsFor_FiltersAndOrders(t *testing.T) {
	cases := []struct {
		name     string
		template []Role
		want     []Role
	}{
		{
			name:     "full cast",
			template: []Role{RoleVillager, RoleSeer, RoleWerewolf, RoleWitch, RoleGuard},
			want:     []Role{RoleGuard, RoleWerewolf, RoleWitch, RoleSeer},
		},
		{
			name:     "wolves and seer only",
			template: []Role{RoleWerewolf, RoleWerewolf, RoleSeer, RoleVillager},
			want:     []Role{RoleWerewolf, RoleSeer},
		},
		{
			name:     "no night roles",
			template: []Role{RoleVillager, RoleVillager},
			want:     nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			steps := StepsFor(tc.template)
			if len(steps) != len(tc.want) {
				t.Fatalf("got %d steps, want %d", len(steps), len(tc.want))
			}
			for i, st := range steps {
				if st.Role != tc.want[i] {
					t.Fatalf("step %d = %s, want %s", i, st.Role, tc.want[i])
				}
			}
		})
	}
}

func TestStep_Satisfied(t *testing.T) {
	s := NewState("r1", "host", []Role{RoleWerewolf, RoleWerewolf, RoleSeer})
	s.Seats = map[int]Player{
		0: {UID: "w1", Seat: 0, Role: RoleWerewolf},
		1: {UID: "w2", Seat: 1, Role: RoleWerewolf},
		2: {UID: "s1", Seat: 2, Role: RoleSeer},
	}

	wolf := Step{Role: RoleWerewolf}
	if wolf.Satisfied(s) {
		t.Fatalf("no votes yet, wolf step cannot be satisfied")
	}
	s.Results.WolfVotes = map[int]int{0: 2}
	if wolf.Satisfied(s) {
		t.Fatalf("one of two wolves voted, not satisfied")
	}
	s.Results.WolfVotes[1] = 2
	if !wolf.Satisfied(s) {
		t.Fatalf("all wolves voted, should be satisfied")
	}

	seer := Step{Role: RoleSeer}
	if seer.Satisfied(s) {
		t.Fatalf("seer has not acted")
	}
	s.Results.Acted = map[int]bool{2: true}
	if !seer.Satisfied(s) {
		t.Fatalf("seer acted, should be satisfied")
	}

	// A role nobody holds is trivially satisfied.
	if !(Step{Role: RoleGuard}).Satisfied(s) {
		t.Fatalf("step with no eligible seats must be satisfied")
	}
}

func TestCurrentStep(t *testing.T) {
	s := NewState("r1", "host", []Role{RoleWerewolf, RoleSeer, RoleVillager})
	if _, ok := CurrentStep(s); ok {
		t.Fatalf("NightStep -1 must have no current step")
	}
	s.NightStep = 0
	st, ok := CurrentStep(s)
	if !ok || st.Role != RoleWerewolf {
		t.Fatalf("want werewolf step, got %+v ok=%v", st, ok)
	}
	s.NightStep = 5
	if _, ok := CurrentStep(s); ok {
		t.Fatalf("index past the sequence must have no current step")
	}
}
