package game

import (
	"time"
)

type Phase string

const (
	PhaseToss       Phase = "toss"
	PhaseChooseRole Phase = "choose_role"
	PhaseInProgress Phase = "in_progress"
	PhaseFinished   Phase = "finished"
)

const (
	ChoiceBat  = "bat"
	ChoiceBowl = "bowl"
)

type Player struct {
	Handle string `json:"id"`
	Name   string `json:"name"`
}

// pendingMoves holds the two slots of the current round. A round resolves
// only when both slots are set, and both are cleared together.
type pendingMoves struct {
	batsman *int
	bowler  *int
}

func (p *pendingMoves) ready() bool {
	return p.batsman != nil && p.bowler != nil
}

func (p *pendingMoves) clear() {
	p.batsman, p.bowler = nil, nil
}

// State is the authoritative state of one room. It is not safe for
// concurrent use, callers serialize access (the hub owns a single mutation
// goroutine).
type State struct {
	roomId     string
	players    [2]Player
	phase      Phase
	tossWinner string
	batsman    string
	bowler     string
	innings    int
	scores     map[string]int
	outs       map[string]int
	target     int
	pending    pendingMoves
	winner     string
	seq        int
}

func NewState(roomId string, a, b Player) *State {
	return &State{
		roomId:  roomId,
		players: [2]Player{a, b},
		phase:   PhaseToss,
		scores:  map[string]int{a.Handle: 0, b.Handle: 0},
		outs:    map[string]int{a.Handle: 0, b.Handle: 0},
	}
}

func (s *State) RoomId() string         { return s.roomId }
func (s *State) Phase() Phase           { return s.phase }
func (s *State) TossWinner() string     { return s.tossWinner }
func (s *State) CurrentBatsman() string { return s.batsman }
func (s *State) CurrentBowler() string  { return s.bowler }
func (s *State) Innings() int           { return s.innings }
func (s *State) TargetScore() int       { return s.target }
func (s *State) Winner() string         { return s.winner }
func (s *State) Finished() bool         { return s.phase == PhaseFinished }
func (s *State) Players() [2]Player     { return s.players }

// Scores returns a copy of the cumulative runs per handle.
func (s *State) Scores() map[string]int {
	out := make(map[string]int, len(s.scores))
	for k, v := range s.scores {
		out[k] = v
	}
	return out
}

func (s *State) isParticipant(handle string) bool {
	return handle == s.players[0].Handle || handle == s.players[1].Handle
}

// Opponent returns the other participant's handle, or "" for a stranger.
func (s *State) Opponent(handle string) string {
	switch handle {
	case s.players[0].Handle:
		return s.players[1].Handle
	case s.players[1].Handle:
		return s.players[0].Handle
	}
	return ""
}

func (s *State) emit(eventType, actor string, payload Payload) Event {
	s.seq++
	return Event{
		ID:        s.seq,
		RoomId:    s.roomId,
		Timestamp: time.Now().UTC(),
		Type:      eventType,
		Actor:     actor,
		Payload:   payload,
	}
}

// ApplyToss records the first toss choice received and moves the room to
// role selection. Late or duplicate choices return no events.
func (s *State) ApplyToss(handle, choice string) []Event {
	if s.phase != PhaseToss || s.tossWinner != "" || !s.isParticipant(handle) {
		return nil
	}

	s.tossWinner = handle
	s.phase = PhaseChooseRole

	return []Event{s.emit(EventTossWon, handle, TossOutcome{Choice: choice})}
}

// ApplyRole assigns batsman/bowler from the toss winner's choice and starts
// the first innings. Choices from the other player are ignored.
func (s *State) ApplyRole(handle, choice string) []Event {
	if s.phase != PhaseChooseRole || handle != s.tossWinner {
		return nil
	}

	other := s.Opponent(handle)
	switch choice {
	case ChoiceBat:
		s.batsman, s.bowler = handle, other
	case ChoiceBowl:
		s.batsman, s.bowler = other, handle
	default:
		return nil
	}

	s.innings = 1
	s.target = 0
	for h := range s.scores {
		s.scores[h] = 0
		s.outs[h] = 0
	}
	s.phase = PhaseInProgress

	return []Event{s.emit(EventGameStart, handle, StartOfPlay{
		CurrentBatsman: s.batsman,
		CurrentBowler:  s.bowler,
		Phase:          string(s.phase),
	})}
}

// ApplyMove records one player's number for the current round. When both
// slots are filled the round resolves synchronously. A move for an already
// filled slot is dropped, a move arriving after the round cleared counts as
// the first move of the next round.
func (s *State) ApplyMove(handle string, number int) []Event {
	if s.phase != PhaseInProgress || !s.isParticipant(handle) {
		return nil
	}

	switch handle {
	case s.batsman:
		if s.pending.batsman != nil {
			return nil
		}
		n := number
		s.pending.batsman = &n
	case s.bowler:
		if s.pending.bowler != nil {
			return nil
		}
		n := number
		s.pending.bowler = &n
	default:
		return nil
	}

	events := []Event{s.emit(EventMoveMade, handle, Move{Number: number})}

	if s.pending.ready() {
		events = append(events, s.resolveRound()...)
	}
	return events
}

// resolveRound applies the scoring rules to the two pending moves. Equal
// numbers put the batsman out, anything else credits the batsman's number
// as runs.
func (s *State) resolveRound() []Event {
	m1, m2 := *s.pending.batsman, *s.pending.bowler
	outcome := RoundOutcome{
		BatsmanMove: m1,
		BowlerMove:  m2,
		BatsmanId:   s.batsman,
		BowlerId:    s.bowler,
	}

	if m1 == m2 {
		outcome.IsOut = true
		s.outs[s.batsman]++

		if s.innings == 1 {
			// innings break: the first-innings score plus one becomes the target
			s.target = s.scores[s.batsman] + 1
			s.innings = 2
			s.batsman, s.bowler = s.bowler, s.batsman
			outcome.NewInnings = s.innings
			outcome.TargetScore = s.target
		} else {
			s.phase = PhaseFinished
			s.winner = s.bowler
			outcome.GameEnd = true
			outcome.Winner = s.winner
		}
	} else {
		s.scores[s.batsman] += m1
		outcome.Runs = m1

		if s.innings == 2 && s.scores[s.batsman] >= s.target {
			s.phase = PhaseFinished
			s.winner = s.batsman
			outcome.GameEnd = true
			outcome.Winner = s.winner
		}
	}

	s.pending.clear()

	events := []Event{s.emit(EventMoveResult, "", outcome)}
	if outcome.GameEnd {
		events = append(events, s.emit(EventGameFinished, "", outcome))
	}
	return events
}

// Replay rebuilds a state by feeding a recorded event stream through the
// machine. Derived events (move-result, game-finished) are skipped, the
// inputs alone reproduce them.
func Replay(roomId string, a, b Player, events []Event) *State {
	s := NewState(roomId, a, b)
	for _, ev := range events {
		switch ev.Type {
		case EventTossWon:
			if p, ok := ev.Payload.(TossOutcome); ok {
				s.ApplyToss(ev.Actor, p.Choice)
			}
		case EventGameStart:
			if p, ok := ev.Payload.(StartOfPlay); ok {
				choice := ChoiceBowl
				if p.CurrentBatsman == s.tossWinner {
					choice = ChoiceBat
				}
				s.ApplyRole(s.tossWinner, choice)
			}
		case EventMoveMade:
			if p, ok := ev.Payload.(Move); ok {
				s.ApplyMove(ev.Actor, p.Number)
			}
		}
	}
	return s
}
