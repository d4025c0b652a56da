package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/moonlitgames/werewolf-backend/internal/ws"
)

func SetupRoutes(s *Server) http.Handler {
	r := chi.NewRouter()

	r.Post("/rooms", s.CreateRoom)
	r.Post("/rooms/{roomID}/intents", s.SubmitIntent)
	r.Get("/rooms/{roomID}/state", s.GetState)
	r.Get("/rooms/{roomID}/progression", s.GetProgression)
	r.Get("/ws", ws.Handler(s.hub, s.log))
	r.Get("/healthz", Healthz)
	return r
}
