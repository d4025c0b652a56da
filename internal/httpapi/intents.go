package httpapi

import (
	"encoding/json"
	"fmt"

	"github.com/moonlitgames/werewolf-backend/internal/engine"
)

// Wire shape of an intent: a type tag plus the union of per-kind fields.
// ParseIntent is the only place the loose wire form is converted into the
// typed Intent union; everything past here is exhaustively matched.
type intentEnvelope struct {
	Type   string `json:"type"`
	Seat   int    `json:"seat"`
	Target int    `json:"target"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
	Key    string `json:"key"`
	Seed   int64  `json:"seed"`
}

func ParseIntent(raw json.RawMessage) (engine.Intent, error) {
	var env intentEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode intent: %w", err)
	}

	switch env.Type {
	case "take_seat":
		return engine.TakeSeat{Seat: env.Seat, Name: env.Name, Avatar: env.Avatar}, nil
	case "leave_seat":
		return engine.LeaveSeat{}, nil
	case "assign_roles":
		return engine.AssignRoles{Seed: env.Seed}, nil
	case "view_role":
		return engine.ViewRole{}, nil
	case "start_game":
		return engine.StartGame{}, nil
	case "wolf_vote":
		return engine.SubmitWolfVote{Target: env.Target}, nil
	case "night_action":
		return engine.SubmitNightAction{Target: env.Target}, nil
	case "ack_reveal":
		return engine.AckReveal{Key: env.Key}, nil
	case "audio_started":
		return engine.AudioStarted{}, nil
	case "audio_finished":
		return engine.AudioFinished{}, nil
	case "advance_night":
		return engine.AdvanceNight{}, nil
	case "end_game":
		return engine.EndGame{}, nil
	case "restart_game":
		return engine.RestartGame{}, nil
	default:
		return nil, fmt.Errorf("unknown intent type %q", env.Type)
	}
}
