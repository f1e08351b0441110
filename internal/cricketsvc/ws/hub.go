package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/mithun9421/handcricket/internal/comm"
	"github.com/mithun9421/handcricket/internal/cricketsvc/game"
	"github.com/mithun9421/handcricket/internal/cricketsvc/match"
)

// EventRecorder is the hub's view of the event log sink.
type EventRecorder interface {
	Record(ev game.Event)
}

type command struct {
	socketId string
	msg      *comm.WSMessage
	gone     bool
}

// Hub binds inbound frames to queue, registry and game-state operations.
// A single goroutine consumes the command channel and is the only mutator
// of matchmaking and room state, so no frame races another and a disconnect
// racing a winning move is resolved by delivery order.
type Hub struct {
	queue    *match.Queue
	registry *match.Registry
	recorder EventRecorder

	connMap  sync.Map // socketId -> sender
	commands chan command
	done     chan struct{}
	stopOnce sync.Once
}

func NewHub(queue *match.Queue, registry *match.Registry, recorder EventRecorder) *Hub {
	return &Hub{
		queue:    queue,
		registry: registry,
		recorder: recorder,
		commands: make(chan command, 512),
		done:     make(chan struct{}),
	}
}

// Run processes commands until Stop. Each inbound message is handled to
// completion before the next one from any connection.
func (h *Hub) Run() {
	for {
		select {
		case cmd := <-h.commands:
			if cmd.gone {
				h.handleDisconnect(cmd.socketId)
			} else {
				h.handleMessage(cmd.socketId, cmd.msg)
			}
		case <-h.done:
			return
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
	})
}

// Register binds a new connection and starts its pumps.
func (h *Hub) Register(socketId string, conn *websocket.Conn) {
	c := newClient(socketId, conn)
	h.connMap.Store(socketId, c)

	go c.writePump()
	go c.readPump(h)

	log.Infof("new WebSocket connection established: %s", socketId)
}

// Dispatch posts an inbound frame for serialized processing.
func (h *Hub) Dispatch(socketId string, msg *comm.WSMessage) {
	h.commands <- command{socketId: socketId, msg: msg}
}

// Disconnect posts a transport-level disconnect. It carries the same
// serialization guarantee as game messages.
func (h *Hub) Disconnect(socketId string) {
	h.commands <- command{socketId: socketId, gone: true}
}

func (h *Hub) handleMessage(socketId string, msg *comm.WSMessage) {
	switch msg.Type {
	case "join-queue":
		h.handleJoinQueue(socketId, msg)
	case "toss-choice":
		h.handleTossChoice(socketId, msg)
	case "batting-choice":
		h.handleBattingChoice(socketId, msg)
	case "make-move":
		h.handleMakeMove(socketId, msg)
	default:
		log.Warnf("unknown event received: %s", msg.Type)
	}
}

func (h *Hub) handleJoinQueue(socketId string, msg *comm.WSMessage) {
	var payload comm.JoinQueue
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("malformed join-queue payload from %s: %v", socketId, err)
		return
	}
	if payload.DisplayName == "" {
		log.Errorf("join-queue from %s missing displayName", socketId)
		return
	}

	if _, inRoom := h.registry.FindByHandle(socketId); inRoom {
		return
	}

	h.queue.Enqueue(socketId, payload.DisplayName)

	if a, b, ok := h.queue.DequeuePair(); ok {
		h.createMatch(a, b)
	}
	h.broadcastOnlineCount()
}

func (h *Hub) createMatch(a, b match.Entry) {
	room := h.registry.CreateRoom(a, b)

	players := []comm.PlayerInfo{
		{ID: room.Players[0].Handle, Name: room.Players[0].Name},
		{ID: room.Players[1].Handle, Name: room.Players[1].Name},
	}
	found := comm.MatchFound{RoomId: room.Id, Players: players}
	h.sendTo(a.Handle, "match-found", found)
	h.sendTo(b.Handle, "match-found", found)
}

func (h *Hub) handleTossChoice(socketId string, msg *comm.WSMessage) {
	var payload comm.TossChoice
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("malformed toss-choice payload from %s: %v", socketId, err)
		return
	}

	room, ok := h.registry.FindByHandle(socketId)
	if !ok {
		return
	}
	h.routeEvents(room, room.State.ApplyToss(socketId, payload.Choice))
}

func (h *Hub) handleBattingChoice(socketId string, msg *comm.WSMessage) {
	var payload comm.BattingChoice
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("malformed batting-choice payload from %s: %v", socketId, err)
		return
	}

	room, ok := h.registry.FindByHandle(socketId)
	if !ok {
		return
	}
	h.routeEvents(room, room.State.ApplyRole(socketId, payload.Choice))
}

func (h *Hub) handleMakeMove(socketId string, msg *comm.WSMessage) {
	var payload comm.MakeMove
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("malformed make-move payload from %s: %v", socketId, err)
		return
	}

	room, ok := h.registry.FindByHandle(socketId)
	if !ok {
		return
	}
	h.routeEvents(room, room.State.ApplyMove(socketId, payload.Number))

	if room.State.Finished() {
		h.registry.Retire(room.Id)
	}
}

// routeEvents records every emitted event and fans it out to the room's two
// members only. One broadcast shape per event type.
func (h *Hub) routeEvents(room *match.Room, events []game.Event) {
	for _, ev := range events {
		if h.recorder != nil {
			h.recorder.Record(ev)
		}

		switch ev.Type {
		case game.EventTossWon:
			outcome := ev.Payload.(game.TossOutcome)
			h.sendTo(ev.Actor, "toss-won", comm.TossWon{Choice: outcome.Choice})
			h.sendTo(room.State.Opponent(ev.Actor), "toss-lost",
				comm.TossLost{OpponentChoice: outcome.Choice})
		case game.EventGameStart:
			h.broadcastRoom(room, "game-start", ev.Payload)
		case game.EventMoveMade:
			move := ev.Payload.(game.Move)
			h.sendTo(room.State.Opponent(ev.Actor), "opponent-move",
				comm.OpponentMove{Number: move.Number})
		case game.EventMoveResult:
			h.broadcastRoom(room, "move-result", ev.Payload)
		case game.EventGameFinished:
			h.broadcastRoom(room, "game-finished", ev.Payload)
		}
	}
}

func (h *Hub) handleDisconnect(socketId string) {
	if s, ok := h.connMap.LoadAndDelete(socketId); ok {
		s.(sender).close()
	}

	if h.queue.Remove(socketId) {
		h.broadcastOnlineCount()
	}

	room, ok := h.registry.FindByHandle(socketId)
	if !ok {
		return
	}

	// an abandoned game is not resumable, the survivor is told and the
	// room retires regardless of phase
	other := room.State.Opponent(socketId)
	h.sendTo(other, "opponent-disconnected", comm.OpponentDisconnected{})
	h.registry.Retire(room.Id)
}

// broadcastOnlineCount informs waiting (and only waiting) connections of
// the current queue length.
func (h *Hub) broadcastOnlineCount() {
	count := comm.OnlineCount{Count: h.queue.Len()}
	for _, handle := range h.queue.Handles() {
		h.sendTo(handle, "online-count", count)
	}
}

func (h *Hub) broadcastRoom(room *match.Room, msgType string, payload interface{}) {
	h.sendTo(room.Players[0].Handle, msgType, payload)
	h.sendTo(room.Players[1].Handle, msgType, payload)
}

func (h *Hub) sendTo(socketId, msgType string, payload interface{}) {
	if socketId == "" {
		return
	}
	data, err := comm.Envelope(msgType, payload)
	if err != nil {
		log.Errorf("marshal %s frame: %v", msgType, err)
		return
	}

	s, ok := h.connMap.Load(socketId)
	if !ok {
		return
	}
	if !s.(sender).enqueue(data) {
		log.Warnf("send buffer full for socket %s, %s frame dropped", socketId, msgType)
	}
}
