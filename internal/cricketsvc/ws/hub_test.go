package ws

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mithun9421/handcricket/internal/comm"
	"github.com/mithun9421/handcricket/internal/cricketsvc/game"
	"github.com/mithun9421/handcricket/internal/cricketsvc/match"
)

type fakeSender struct {
	mu     sync.Mutex
	frames []comm.WSMessage
	closed bool
}

func (f *fakeSender) enqueue(data []byte) bool {
	var msg comm.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return false
	}
	f.mu.Lock()
	f.frames = append(f.frames, msg)
	f.mu.Unlock()
	return true
}

func (f *fakeSender) close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeSender) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeSender) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeSender) typesSeen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.frames))
	for i, fr := range f.frames {
		out[i] = fr.Type
	}
	return out
}

func (f *fakeSender) last(t *testing.T, msgType string) json.RawMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.frames) - 1; i >= 0; i-- {
		if f.frames[i].Type == msgType {
			return f.frames[i].Data
		}
	}
	t.Fatalf("no %s frame seen", msgType)
	return nil
}

type fakeRecorder struct {
	events []game.Event
}

func (r *fakeRecorder) Record(ev game.Event) { r.events = append(r.events, ev) }

type fakeSessionSink struct {
	started []string
	winners map[string]string
}

func (s *fakeSessionSink) StartSession(roomId string, players []game.Player) {
	s.started = append(s.started, roomId)
}

func (s *fakeSessionSink) EndSession(roomId string, finalScores map[string]int, winner string) {
	s.winners[roomId] = winner
}

type fixture struct {
	hub      *Hub
	recorder *fakeRecorder
	sink     *fakeSessionSink
	registry *match.Registry
	queue    *match.Queue
	senders  map[string]*fakeSender
}

func newFixture() *fixture {
	sink := &fakeSessionSink{winners: make(map[string]string)}
	queue := match.NewQueue()
	registry := match.NewRegistry(sink)
	recorder := &fakeRecorder{}
	return &fixture{
		hub:      NewHub(queue, registry, recorder),
		recorder: recorder,
		sink:     sink,
		registry: registry,
		queue:    queue,
		senders:  make(map[string]*fakeSender),
	}
}

func (f *fixture) connect(socketId string) *fakeSender {
	s := &fakeSender{}
	f.senders[socketId] = s
	f.hub.connMap.Store(socketId, s)
	return s
}

func (f *fixture) deliver(socketId, msgType string, payload interface{}) {
	data, _ := json.Marshal(payload)
	f.hub.handleMessage(socketId, &comm.WSMessage{Type: msgType, Data: data})
}

func (f *fixture) joinBoth(t *testing.T) (sa, sb *fakeSender, roomId string) {
	t.Helper()
	sa = f.connect("sock-a")
	sb = f.connect("sock-b")
	f.deliver("sock-a", "join-queue", comm.JoinQueue{DisplayName: "Alice"})
	f.deliver("sock-b", "join-queue", comm.JoinQueue{DisplayName: "Bob"})

	var found comm.MatchFound
	require.NoError(t, json.Unmarshal(sa.last(t, "match-found"), &found))
	require.Len(t, found.Players, 2)
	return sa, sb, found.RoomId
}

func TestJoinQueue_OnlineCountForWaitersOnly(t *testing.T) {
	f := newFixture()
	sa := f.connect("sock-a")
	f.deliver("sock-a", "join-queue", comm.JoinQueue{DisplayName: "Alice"})

	var count comm.OnlineCount
	require.NoError(t, json.Unmarshal(sa.last(t, "online-count"), &count))
	assert.Equal(t, 1, count.Count)

	// a connection that never joined the queue hears nothing
	sc := f.connect("sock-c")
	f.deliver("sock-a", "join-queue", comm.JoinQueue{DisplayName: "Alice"}) // duplicate, no-op
	assert.Equal(t, 0, sc.frameCount())
}

func TestJoinQueue_PairsTwoOldest(t *testing.T) {
	f := newFixture()
	sa, sb, roomId := f.joinBoth(t)

	assert.NotEmpty(t, roomId)
	assert.Contains(t, sb.typesSeen(), "match-found")
	assert.Equal(t, 0, f.queue.Len())
	assert.Equal(t, 1, f.registry.ActiveCount())
	assert.Equal(t, []string{roomId}, f.sink.started)

	var found comm.MatchFound
	require.NoError(t, json.Unmarshal(sa.last(t, "match-found"), &found))
	assert.Equal(t, "Alice", found.Players[0].Name)
	assert.Equal(t, "Bob", found.Players[1].Name)
}

func TestJoinQueue_MalformedPayloadDropped(t *testing.T) {
	f := newFixture()
	f.connect("sock-a")
	f.hub.handleMessage("sock-a", &comm.WSMessage{Type: "join-queue", Data: json.RawMessage(`{`)})
	assert.Equal(t, 0, f.queue.Len())
}

func TestToss_WinnerAndLoserFrames(t *testing.T) {
	f := newFixture()
	sa, sb, _ := f.joinBoth(t)

	f.deliver("sock-a", "toss-choice", comm.TossChoice{Choice: "heads"})

	var won comm.TossWon
	require.NoError(t, json.Unmarshal(sa.last(t, "toss-won"), &won))
	assert.Equal(t, "heads", won.Choice)

	var lost comm.TossLost
	require.NoError(t, json.Unmarshal(sb.last(t, "toss-lost"), &lost))
	assert.Equal(t, "heads", lost.OpponentChoice)

	// the second toss choice is silently ignored
	before := sa.frameCount()
	f.deliver("sock-b", "toss-choice", comm.TossChoice{Choice: "tails"})
	assert.Equal(t, before, sa.frameCount())
}

func TestFullGame_OverTheHub(t *testing.T) {
	f := newFixture()
	sa, sb, roomId := f.joinBoth(t)

	f.deliver("sock-a", "toss-choice", comm.TossChoice{Choice: "heads"})
	f.deliver("sock-a", "batting-choice", comm.BattingChoice{Choice: "bat"})

	var start comm.GameStart
	require.NoError(t, json.Unmarshal(sb.last(t, "game-start"), &start))
	assert.Equal(t, "sock-a", start.CurrentBatsman)
	assert.Equal(t, "sock-b", start.CurrentBowler)
	assert.Equal(t, "in_progress", start.Phase)

	// round 1: A scores 4, and B sees the move relayed immediately
	f.deliver("sock-a", "make-move", comm.MakeMove{Number: 4})
	var relayed comm.OpponentMove
	require.NoError(t, json.Unmarshal(sb.last(t, "opponent-move"), &relayed))
	assert.Equal(t, 4, relayed.Number)

	f.deliver("sock-b", "make-move", comm.MakeMove{Number: 2})
	var res comm.MoveResult
	require.NoError(t, json.Unmarshal(sa.last(t, "move-result"), &res))
	assert.Equal(t, 4, res.Runs)
	assert.False(t, res.GameEnd)

	// round 2: A out, innings turn
	f.deliver("sock-a", "make-move", comm.MakeMove{Number: 3})
	f.deliver("sock-b", "make-move", comm.MakeMove{Number: 3})
	require.NoError(t, json.Unmarshal(sb.last(t, "move-result"), &res))
	assert.True(t, res.IsOut)
	assert.Equal(t, 2, res.NewInnings)
	assert.Equal(t, 5, res.TargetScore)

	// round 3: B chases down the target
	f.deliver("sock-b", "make-move", comm.MakeMove{Number: 5})
	f.deliver("sock-a", "make-move", comm.MakeMove{Number: 1})

	var final comm.MoveResult
	require.NoError(t, json.Unmarshal(sa.last(t, "game-finished"), &final))
	assert.True(t, final.GameEnd)
	assert.Equal(t, "sock-b", final.Winner)
	require.NoError(t, json.Unmarshal(sb.last(t, "game-finished"), &final))
	assert.Equal(t, "sock-b", final.Winner)

	// terminal state retires the room and finalizes the session
	assert.Equal(t, 0, f.registry.ActiveCount())
	assert.Equal(t, "sock-b", f.sink.winners[roomId])

	// every transition was recorded for the sink
	var types []string
	for _, ev := range f.recorder.events {
		types = append(types, ev.Type)
	}
	assert.Contains(t, types, game.EventTossWon)
	assert.Contains(t, types, game.EventGameStart)
	assert.Contains(t, types, game.EventGameFinished)
}

func TestDisconnect_MidTossAbandonsRoom(t *testing.T) {
	f := newFixture()
	_, sb, roomId := f.joinBoth(t)

	f.hub.handleDisconnect("sock-a")

	assert.Contains(t, sb.typesSeen(), "opponent-disconnected")
	assert.Equal(t, 0, f.registry.ActiveCount())

	winner, ended := f.sink.winners[roomId]
	require.True(t, ended, "session must be finalized")
	assert.Equal(t, "", winner, "abandoned session has no winner")

	// late frames for the dead room are skipped
	f.deliver("sock-b", "make-move", comm.MakeMove{Number: 4})
	assert.Equal(t, 0, f.registry.ActiveCount())
}

func TestDisconnect_WhileQueuedLeavesQueue(t *testing.T) {
	f := newFixture()
	f.joinBoth(t) // sock-a and sock-b are matched away

	sc := f.connect("sock-c")
	f.deliver("sock-c", "join-queue", comm.JoinQueue{DisplayName: "Cara"})

	var count comm.OnlineCount
	require.NoError(t, json.Unmarshal(sc.last(t, "online-count"), &count))
	assert.Equal(t, 1, count.Count)

	f.hub.handleDisconnect("sock-c")
	assert.Equal(t, 0, f.queue.Len())
	assert.True(t, sc.isClosed())

	// a later pair must not include the departed waiter
	sd := f.connect("sock-d")
	se := f.connect("sock-e")
	f.deliver("sock-d", "join-queue", comm.JoinQueue{DisplayName: "Dan"})
	f.deliver("sock-e", "join-queue", comm.JoinQueue{DisplayName: "Eve"})

	var found comm.MatchFound
	require.NoError(t, json.Unmarshal(sd.last(t, "match-found"), &found))
	assert.Equal(t, "Dan", found.Players[0].Name)
	assert.Equal(t, "Eve", found.Players[1].Name)
	_ = se
}

func TestUnknownMessageType_Ignored(t *testing.T) {
	f := newFixture()
	sa := f.connect("sock-a")
	f.hub.handleMessage("sock-a", &comm.WSMessage{Type: "offer"})
	assert.Equal(t, 0, sa.frameCount())
}

func TestMoveFromSpectator_Dropped(t *testing.T) {
	f := newFixture()
	sa, _, _ := f.joinBoth(t)

	sz := f.connect("sock-z")
	f.deliver("sock-z", "make-move", comm.MakeMove{Number: 4})
	assert.Equal(t, 0, sz.frameCount())

	before := sa.frameCount()
	f.deliver("sock-z", "toss-choice", comm.TossChoice{Choice: "heads"})
	assert.Equal(t, before, sa.frameCount())
}

func TestRunLoop_SerializesCommands(t *testing.T) {
	f := newFixture()
	sa := f.connect("sock-a")
	sb := f.connect("sock-b")
	_ = sb

	go f.hub.Run()
	defer f.hub.Stop()

	data, _ := json.Marshal(comm.JoinQueue{DisplayName: "Alice"})
	f.hub.Dispatch("sock-a", &comm.WSMessage{Type: "join-queue", Data: data})

	require.Eventually(t, func() bool {
		return f.queue.Len() == 1
	}, time.Second, 5*time.Millisecond)

	f.hub.Disconnect("sock-a")
	require.Eventually(t, func() bool {
		return f.queue.Len() == 0
	}, time.Second, 5*time.Millisecond)
	assert.Greater(t, sa.frameCount(), 0)
}
