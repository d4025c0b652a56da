// Package pubsub fans committed snapshots out to room subscribers. Delivery
// is best-effort and at-most-once: every message carries a full snapshot
// plus its revision, so consumers recover from drops by discarding anything
// not strictly newer and, when in doubt, reading the durable row directly.
package pubsub

import (
	"context"

	"go.uber.org/zap"

	"github.com/moonlitgames/werewolf-backend/internal/game"
)

const (
	TypeStateUpdate = "STATE_UPDATE"
	TypeRestart     = "RESTART"
)

type Message struct {
	Type     string      `json:"type"`
	State    *game.State `json:"state,omitempty"`
	Revision int64       `json:"revision,omitempty"`
}

type hubMsg interface{ isHubMsg() }

type subscribe struct {
	Room   string
	ID     string
	Outbox chan Message
}

type unsubscribe struct {
	Room string
	ID   string
}

type publish struct {
	Room string
	Msg  Message
}

type shutdown struct{}

func (subscribe) isHubMsg()   {}
func (unsubscribe) isHubMsg() {}
func (publish) isHubMsg()     {}
func (shutdown) isHubMsg()    {}

// Hub is a single-goroutine actor owning the room -> subscriber tables.
type Hub struct {
	inbox  chan hubMsg
	rooms  map[string]map[string]chan Message
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:  make(chan hubMsg, 64),
		rooms:  make(map[string]map[string]chan Message),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	go h.loop()
	return h
}

// Subscribe registers a consumer on a room topic and returns its outbox.
// The channel is closed on unsubscribe or hub shutdown.
func (h *Hub) Subscribe(room, id string) <-chan Message {
	out := make(chan Message, 8)
	h.post(subscribe{Room: room, ID: id, Outbox: out})
	return out
}

func (h *Hub) Unsubscribe(room, id string) {
	h.post(unsubscribe{Room: room, ID: id})
}

// Publish is fire-and-forget: it never blocks the caller and has no error
// to return. A full inbox means the broadcast is dropped, which consumers
// already tolerate.
func (h *Hub) Publish(room string, m Message) {
	select {
	case h.inbox <- publish{Room: room, Msg: m}:
	case <-h.ctx.Done():
	default:
		h.log.Warn("hub inbox full, dropping broadcast",
			zap.String("room", room), zap.Int64("revision", m.Revision))
	}
}

func (h *Hub) Shutdown() {
	h.post(shutdown{})
}

func (h *Hub) post(m hubMsg) {
	select {
	case h.inbox <- m:
	case <-h.ctx.Done():
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.teardown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case subscribe:
				subs := h.rooms[msg.Room]
				if subs == nil {
					subs = make(map[string]chan Message)
					h.rooms[msg.Room] = subs
				}
				if old, ok := subs[msg.ID]; ok {
					close(old)
				}
				subs[msg.ID] = msg.Outbox

			case unsubscribe:
				if subs := h.rooms[msg.Room]; subs != nil {
					if ch, ok := subs[msg.ID]; ok {
						close(ch)
						delete(subs, msg.ID)
					}
					if len(subs) == 0 {
						delete(h.rooms, msg.Room)
					}
				}

			case publish:
				h.broadcast(msg.Room, msg.Msg)

			case shutdown:
				h.teardown()
				return
			}
		}
	}
}

func (h *Hub) broadcast(room string, m Message) {
	subs := h.rooms[room]
	for id, ch := range subs {
		select {
		case ch <- m:
			// ok
		default:
			// Slow or gone: drop the subscriber; it self-heals from the
			// durable row when it notices the gap.
			close(ch)
			delete(subs, id)
			h.log.Debug("dropped slow subscriber",
				zap.String("room", room), zap.String("client", id))
		}
	}
}

func (h *Hub) teardown() {
	for _, subs := range h.rooms {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
	}
	clear(h.rooms)
	h.cancel()
}
