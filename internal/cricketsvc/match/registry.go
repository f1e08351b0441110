package match

import (
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/mithun9421/handcricket/internal/cricketsvc/game"
)

// SessionSink is the slice of the event log the registry drives: a session
// opens when a room is created and finalizes when it retires.
type SessionSink interface {
	StartSession(roomId string, players []game.Player)
	EndSession(roomId string, finalScores map[string]int, winner string)
}

// Room is an isolated two-player game session.
type Room struct {
	Id        string
	Players   [2]game.Player
	State     *game.State
	CreatedAt time.Time
}

// Registry owns the set of live rooms and the handle-to-room index. Rooms
// are created from a matched pair and retired exactly once, either at the
// terminal game state or on a participant disconnect.
type Registry struct {
	mu       sync.RWMutex
	rooms    map[string]*Room
	byHandle map[string]*Room
	sink     SessionSink
}

func NewRegistry(sink SessionSink) *Registry {
	return &Registry{
		rooms:    make(map[string]*Room),
		byHandle: make(map[string]*Room),
		sink:     sink,
	}
}

// CreateRoom allocates a fresh room for a matched pair and opens its log
// session. A roomId collision is regenerated, never surfaced.
func (r *Registry) CreateRoom(a, b Entry) *Room {
	playerA := game.Player{Handle: a.Handle, Name: a.DisplayName}
	playerB := game.Player{Handle: b.Handle, Name: b.DisplayName}

	r.mu.Lock()
	roomId := uuid.New().String()
	for {
		if _, exists := r.rooms[roomId]; !exists {
			break
		}
		roomId = uuid.New().String()
	}

	room := &Room{
		Id:        roomId,
		Players:   [2]game.Player{playerA, playerB},
		State:     game.NewState(roomId, playerA, playerB),
		CreatedAt: time.Now().UTC(),
	}
	r.rooms[roomId] = room
	r.byHandle[playerA.Handle] = room
	r.byHandle[playerB.Handle] = room
	r.mu.Unlock()

	if r.sink != nil {
		r.sink.StartSession(roomId, []game.Player{playerA, playerB})
	}

	log.Infof("room %s created for %s vs %s", roomId, playerA.Name, playerB.Name)
	return room
}

// FindByHandle returns the live room a connection belongs to, if any.
func (r *Registry) FindByHandle(handle string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	room, ok := r.byHandle[handle]
	return room, ok
}

// Retire removes a room from the live set and finalizes its log session.
// Idempotent, the second call is a no-op.
func (r *Registry) Retire(roomId string) (*Room, bool) {
	r.mu.Lock()
	room, ok := r.rooms[roomId]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}
	delete(r.rooms, roomId)
	delete(r.byHandle, room.Players[0].Handle)
	delete(r.byHandle, room.Players[1].Handle)
	r.mu.Unlock()

	if r.sink != nil {
		r.sink.EndSession(roomId, room.State.Scores(), room.State.Winner())
	}

	log.Infof("room %s retired (winner=%q)", roomId, room.State.Winner())
	return room, true
}

// ActiveCount reports the number of live rooms.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}
