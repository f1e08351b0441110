package game

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types emitted by the state machine, one per transition.
const (
	EventTossWon      = "toss-won"
	EventGameStart    = "game-start"
	EventMoveMade     = "move-made"
	EventMoveResult   = "move-result"
	EventGameFinished = "game-finished"
	EventDisconnect   = "opponent-disconnected"
)

// Event is an immutable record of one state transition. ID is a per-room
// sequence number, so a room's event stream has a total order and can be
// replayed idempotently.
type Event struct {
	ID        int       `json:"id"`
	RoomId    string    `json:"roomId"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Actor     string    `json:"actor,omitempty"`
	Payload   Payload   `json:"payload"`
}

// Payload is the tagged union of event payloads. Each event type carries
// exactly one variant, the sink serializes whichever it receives.
type Payload interface {
	eventPayload()
}

type TossOutcome struct {
	Choice string `json:"choice"`
}

type StartOfPlay struct {
	CurrentBatsman string `json:"currentBatsman"`
	CurrentBowler  string `json:"currentBowler"`
	Phase          string `json:"phase"`
}

type Move struct {
	Number int `json:"number"`
}

// RoundOutcome is shared by move-result and game-finished events.
type RoundOutcome struct {
	BatsmanMove int    `json:"batsmanMove"`
	BowlerMove  int    `json:"bowlerMove"`
	IsOut       bool   `json:"isOut"`
	Runs        int    `json:"runs"`
	BatsmanId   string `json:"batsmanId"`
	BowlerId    string `json:"bowlerId"`
	GameEnd     bool   `json:"gameEnd"`
	Winner      string `json:"winner,omitempty"`
	NewInnings  int    `json:"newInnings,omitempty"`
	TargetScore int    `json:"targetScore,omitempty"`
}

type Departure struct {
	Handle string `json:"handle"`
}

func (TossOutcome) eventPayload()  {}
func (StartOfPlay) eventPayload()  {}
func (Move) eventPayload()         {}
func (RoundOutcome) eventPayload() {}
func (Departure) eventPayload()    {}

// DecodePayload rebuilds the typed payload variant for an event read back
// from a persisted session, keyed by the event type.
func DecodePayload(eventType string, raw json.RawMessage) (Payload, error) {
	switch eventType {
	case EventTossWon:
		var p TossOutcome
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
		}
		return p, nil
	case EventGameStart:
		var p StartOfPlay
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
		}
		return p, nil
	case EventMoveMade:
		var p Move
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
		}
		return p, nil
	case EventMoveResult, EventGameFinished:
		var p RoundOutcome
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
		}
		return p, nil
	case EventDisconnect:
		var p Departure
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", eventType, err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}
