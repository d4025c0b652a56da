package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/moonlitgames/werewolf-backend/internal/engine"
	"github.com/moonlitgames/werewolf-backend/internal/game"
	"github.com/moonlitgames/werewolf-backend/internal/night"
	"github.com/moonlitgames/werewolf-backend/internal/pubsub"
	"github.com/moonlitgames/werewolf-backend/internal/store"
	"github.com/moonlitgames/werewolf-backend/internal/txn"
)

type Server struct {
	store          store.RoomStore
	hub            *pubsub.Hub
	coord          *txn.Coordinator
	log            *zap.Logger
	wolfVoteWindow time.Duration
	now            func() time.Time
}

func NewServer(st store.RoomStore, hub *pubsub.Hub, coord *txn.Coordinator, wolfVoteWindow time.Duration, log *zap.Logger) *Server {
	return &Server{
		store:          st,
		hub:            hub,
		coord:          coord,
		log:            log,
		wolfVoteWindow: wolfVoteWindow,
		now:            time.Now,
	}
}

type createRoomRequest struct {
	HostUID  string   `json:"host_uid"`
	Template []string `json:"template"`
}

func (s *Server) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req createRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.HostUID == "" || len(req.Template) == 0 {
		httpError(w, http.StatusBadRequest, "host_uid and template required")
		return
	}
	template := make([]game.Role, len(req.Template))
	for i, name := range req.Template {
		role := game.Role(name)
		if !game.ValidRole(role) {
			httpError(w, http.StatusBadRequest, "unknown role "+name)
			return
		}
		template[i] = role
	}

	roomID := uuid.NewString()
	st := game.NewState(roomID, req.HostUID, template)
	if err := s.store.Create(r.Context(), roomID, st); err != nil {
		s.log.Error("create room failed", zap.Error(err))
		httpError(w, http.StatusInternalServerError, "create failed")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"room_id":  roomID,
		"state":    st,
		"revision": 0,
	})
}

type intentRequest struct {
	UID    string          `json:"uid"`
	Intent json.RawMessage `json:"intent"`
}

type intentResponse struct {
	Success     bool               `json:"success"`
	Reason      string             `json:"reason,omitempty"`
	State       *game.State        `json:"state,omitempty"`
	Revision    int64              `json:"revision,omitempty"`
	SideEffects engine.SideEffects `json:"side_effects,omitempty"`
}

// SubmitIntent is the synchronous intent boundary. Status mapping: handler
// rejection -> 422, exhausted conflict -> 409, missing room -> 404,
// anything unexpected -> 500 with a generic reason.
func (s *Server) SubmitIntent(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")

	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.UID == "" {
		httpError(w, http.StatusBadRequest, "uid required")
		return
	}
	intent, err := ParseIntent(req.Intent)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}
	if in, ok := intent.(engine.AssignRoles); ok && in.Seed == 0 {
		in.Seed = s.now().UnixNano()
		intent = in
	}

	nowMs := s.now().UnixMilli()
	compute := func(st game.State, _ int64) engine.ProcessResult {
		seat := -1
		if n, ok := game.SeatOf(st, req.UID); ok {
			seat = n
		}
		return engine.Dispatch(intent, engine.Context{
			State:          st,
			UID:            req.UID,
			Seat:           seat,
			IsHost:         st.HostUID == req.UID,
			NowMs:          nowMs,
			WolfVoteWindow: s.wolfVoteWindow,
		})
	}

	res, err := s.coord.Commit(r.Context(), roomID, compute, txn.Progression{Enabled: true, NowMs: nowMs})
	if err != nil {
		var rej *txn.RejectedError
		switch {
		case errors.As(err, &rej):
			writeJSON(w, http.StatusUnprocessableEntity, intentResponse{Success: false, Reason: rej.Reason})
		case errors.Is(err, txn.ErrNotFound):
			httpError(w, http.StatusNotFound, "room not found")
		case errors.Is(err, txn.ErrConflict):
			writeJSON(w, http.StatusConflict, intentResponse{Success: false, Reason: "CONFLICT_RETRY"})
		default:
			s.log.Error("intent commit failed", zap.String("room", roomID), zap.Error(err))
			httpError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	// Out-of-band notices ride on side effects; the snapshot itself was
	// already broadcast by the coordinator.
	if notice, _ := res.SideEffects["notice"].(string); notice == "RESTART" {
		s.hub.Publish(roomID, pubsub.Message{Type: pubsub.TypeRestart})
	}

	writeJSON(w, http.StatusOK, intentResponse{
		Success:     true,
		State:       &res.State,
		Revision:    res.Revision,
		SideEffects: res.SideEffects,
	})
}

// GetState is the recovery boundary: an unconditional durable read that any
// consumer may hit at any time, bypassing the broadcast channel.
func (s *Server) GetState(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	st, rev, err := s.store.Load(r.Context(), roomID)
	if errors.Is(err, store.ErrNotFound) {
		httpError(w, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		s.log.Error("state read failed", zap.String("room", roomID), zap.Error(err))
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": st, "revision": rev})
}

// GetProgression is the read-only decision query: the same evaluator the
// coordinator runs inline, with no mutation, so polling clients can see
// whether the night may move on.
func (s *Server) GetProgression(w http.ResponseWriter, r *http.Request) {
	roomID := chi.URLParam(r, "roomID")
	st, _, err := s.store.Load(r.Context(), roomID)
	if errors.Is(err, store.ErrNotFound) {
		httpError(w, http.StatusNotFound, "room not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, night.Evaluate(st, s.now().UnixMilli()))
}

func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
