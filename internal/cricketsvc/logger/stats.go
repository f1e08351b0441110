package logger

import (
	"github.com/shopspring/decimal"
)

// StatsReport is the aggregate served by GET /stats.
type StatsReport struct {
	TotalGames          int                      `json:"totalGames"`
	TotalDuration       int64                    `json:"totalDuration"` // milliseconds
	AverageGameDuration string                   `json:"averageGameDuration"`
	TotalMoves          int                      `json:"totalMoves"`
	PlayerStats         map[string]AggregateLine `json:"playerStats"`
	RecentGames         []Metadata               `json:"recentGames"`
}

// AggregateLine is one player's totals across all persisted games, keyed by
// display name since connection handles are ephemeral.
type AggregateLine struct {
	Games int `json:"games"`
	Wins  int `json:"wins"`
	Runs  int `json:"runs"`
}

const recentGamesLimit = 10

// Stats aggregates every persisted session into the operator report.
func (l *Logger) Stats() (*StatsReport, error) {
	recs, err := l.ListSessions()
	if err != nil {
		return nil, err
	}

	report := &StatsReport{
		AverageGameDuration: "0.00",
		PlayerStats:         make(map[string]AggregateLine),
		RecentGames:         []Metadata{},
	}

	for _, rec := range recs {
		report.TotalGames++
		report.TotalDuration += rec.Metadata.Duration
		report.TotalMoves += rec.Metadata.TotalMoves

		for _, p := range rec.Metadata.Players {
			line := report.PlayerStats[p.Name]
			line.Games++
			line.Runs += rec.Metadata.FinalScore[p.Handle]
			if rec.Metadata.Winner == p.Handle {
				line.Wins++
			}
			report.PlayerStats[p.Name] = line
		}

		if len(report.RecentGames) < recentGamesLimit {
			report.RecentGames = append(report.RecentGames, rec.Metadata)
		}
	}

	if report.TotalGames > 0 {
		avg := decimal.NewFromInt(report.TotalDuration).
			Div(decimal.NewFromInt(int64(report.TotalGames)))
		report.AverageGameDuration = avg.StringFixed(2)
	}

	return report, nil
}
