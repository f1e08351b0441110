package comm

import (
	"encoding/json"
)

// WSMessage is the envelope for every frame on the realtime channel, in both
// directions. Data carries the type-specific payload.
type WSMessage struct {
	Type     string          `json:"type"` // e.g. "join-queue", "make-move"
	Data     json.RawMessage `json:"data,omitempty"`
	SocketId string          `json:"socketid,omitempty"`
}

// client -> server payloads

type JoinQueue struct {
	DisplayName string `json:"displayName"`
}

type TossChoice struct {
	Choice string `json:"choice"` // heads or tails
}

type BattingChoice struct {
	Choice string `json:"choice"` // bat or bowl
}

type MakeMove struct {
	Number int `json:"number"`
}

// server -> client payloads

type OnlineCount struct {
	Count int `json:"count"`
}

type PlayerInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type MatchFound struct {
	RoomId  string       `json:"roomId"`
	Players []PlayerInfo `json:"players"`
}

type TossWon struct {
	Choice string `json:"choice"`
}

type TossLost struct {
	OpponentChoice string `json:"opponentChoice"`
}

type GameStart struct {
	CurrentBatsman string `json:"currentBatsman"`
	CurrentBowler  string `json:"currentBowler"`
	Phase          string `json:"phase"`
}

type OpponentMove struct {
	Number int `json:"number"`
}

// MoveResult is sent to both players after every resolved round. The same
// shape is reused for the final "game-finished" frame.
type MoveResult struct {
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

type OpponentDisconnected struct{}

// Envelope marshals a typed payload into a ready-to-send WSMessage frame.
func Envelope(msgType string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	msg := &WSMessage{Type: msgType, Data: data}
	return json.Marshal(msg)
}
