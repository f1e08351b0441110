package logger

import (
	"encoding/json"
	"time"

	"github.com/mithun9421/handcricket/internal/cricketsvc/game"
)

const (
	StatusCompleted = "completed"
	StatusAbandoned = "abandoned"
)

// SessionRecord is the durable, queryable summary of one room, keyed by
// gameId. Shape is stable, the query API serves it verbatim.
type SessionRecord struct {
	Metadata Metadata      `json:"metadata"`
	Events   []LoggedEvent `json:"events"`
	Summary  Summary       `json:"summary"`
}

type Metadata struct {
	GameId     string         `json:"gameId"`
	StartTime  time.Time      `json:"startTime"`
	EndTime    time.Time      `json:"endTime"`
	Duration   int64          `json:"duration"` // milliseconds
	TotalMoves int            `json:"totalMoves"`
	Players    []game.Player  `json:"players"`
	Winner     string         `json:"winner,omitempty"`
	FinalScore map[string]int `json:"finalScore"`
	Status     string         `json:"status"`
}

// LoggedEvent is a persisted game event plus its offset from session start.
// The payload stays as raw JSON so any variant round-trips unchanged.
type LoggedEvent struct {
	ID                int             `json:"id"`
	Type              string          `json:"type"`
	Actor             string          `json:"actor,omitempty"`
	Timestamp         time.Time       `json:"timestamp"`
	RelativeTimestamp int64           `json:"relativeTimestamp"` // ms since startTime
	Payload           json.RawMessage `json:"payload"`
}

type Summary struct {
	GameStats   GameStats             `json:"gameStats"`
	PlayerStats map[string]PlayerLine `json:"playerStats"`
	Timeline    []TimelineEntry       `json:"timeline"`
}

type GameStats struct {
	TotalRounds int    `json:"totalRounds"`
	Innings     int    `json:"innings"`
	TossWinner  string `json:"tossWinner,omitempty"`
	TargetScore int    `json:"targetScore,omitempty"`
}

type PlayerLine struct {
	Name      string `json:"name"`
	Runs      int    `json:"runs"`
	Outs      int    `json:"outs"`
	MovesMade int    `json:"movesMade"`
	Won       bool   `json:"won"`
}

type TimelineEntry struct {
	At   int64  `json:"at"` // ms since startTime
	Type string `json:"type"`
}

// session is the in-flight accumulator for a live room.
type session struct {
	roomId  string
	players []game.Player
	start   time.Time
	events  []LoggedEvent
	moves   int
}

func (s *session) append(ev game.Event) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		// a payload that cannot marshal is dropped, never fails the game
		return
	}
	s.events = append(s.events, LoggedEvent{
		ID:                ev.ID,
		Type:              ev.Type,
		Actor:             ev.Actor,
		Timestamp:         ev.Timestamp,
		RelativeTimestamp: ev.Timestamp.Sub(s.start).Milliseconds(),
		Payload:           payload,
	})
	if ev.Type == game.EventMoveMade {
		s.moves++
	}
}

// finalize materializes the durable record from the accumulated events.
func (s *session) finalize(finalScores map[string]int, winner string) *SessionRecord {
	end := time.Now().UTC()
	status := StatusCompleted
	if winner == "" {
		status = StatusAbandoned
	}

	rec := &SessionRecord{
		Metadata: Metadata{
			GameId:     s.roomId,
			StartTime:  s.start,
			EndTime:    end,
			Duration:   end.Sub(s.start).Milliseconds(),
			TotalMoves: s.moves,
			Players:    s.players,
			Winner:     winner,
			FinalScore: finalScores,
			Status:     status,
		},
		Events: s.events,
	}
	rec.Summary = summarize(s, finalScores, winner)
	return rec
}

func summarize(s *session, finalScores map[string]int, winner string) Summary {
	stats := GameStats{}
	lines := make(map[string]PlayerLine, len(s.players))
	timeline := make([]TimelineEntry, 0, len(s.events))

	for _, p := range s.players {
		lines[p.Handle] = PlayerLine{
			Name: p.Name,
			Runs: finalScores[p.Handle],
			Won:  p.Handle == winner && winner != "",
		}
	}

	for _, ev := range s.events {
		timeline = append(timeline, TimelineEntry{At: ev.RelativeTimestamp, Type: ev.Type})

		switch ev.Type {
		case game.EventTossWon:
			stats.TossWinner = ev.Actor
		case game.EventMoveMade:
			if line, ok := lines[ev.Actor]; ok {
				line.MovesMade++
				lines[ev.Actor] = line
			}
		case game.EventMoveResult:
			stats.TotalRounds++
			var outcome game.RoundOutcome
			if err := json.Unmarshal(ev.Payload, &outcome); err != nil {
				continue
			}
			if outcome.NewInnings > stats.Innings {
				stats.Innings = outcome.NewInnings
			}
			if outcome.TargetScore > 0 {
				stats.TargetScore = outcome.TargetScore
			}
			if outcome.IsOut {
				if line, ok := lines[outcome.BatsmanId]; ok {
					line.Outs++
					lines[outcome.BatsmanId] = line
				}
			}
		}
	}

	if stats.TotalRounds > 0 && stats.Innings == 0 {
		stats.Innings = 1
	}

	return Summary{GameStats: stats, PlayerStats: lines, Timeline: timeline}
}
