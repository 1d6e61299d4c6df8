package models

import "time"

// ScoreSnapshot is the scoreboard context copied onto a point record at its
// start and end. The values come straight off the wire and are advisory: the
// bridge never validates them against tennis scoring rules.
type ScoreSnapshot struct {
	Team1Points  string `json:"team1_points"`
	Team2Points  string `json:"team2_points"`
	Team1Games   int    `json:"team1_games"`
	Team2Games   int    `json:"team2_games"`
	SetNumber    int    `json:"set_number"`
	ServerPlayer *int   `json:"server_player,omitempty"`
}

// Point is one recorded rally, from serve to outcome. It carries the score
// context captured when the point opened and again when it was finalized.
type Point struct {
	ID        int        `json:"id"`
	StartTime time.Time  `json:"recorded_start_time"`
	EndTime   *time.Time `json:"recorded_end_time,omitempty"`

	ServerPlayer *int `json:"server_player,omitempty"`

	Team1PointsAtStart string `json:"team1_points_at_start"`
	Team2PointsAtStart string `json:"team2_points_at_start"`
	Team1GamesAtStart  int    `json:"team1_games_at_start"`
	Team2GamesAtStart  int    `json:"team2_games_at_start"`
	SetNumberAtStart   int    `json:"set_number_at_start"`

	Team1PointsAtEnd *string `json:"team1_points_at_end,omitempty"`
	Team2PointsAtEnd *string `json:"team2_points_at_end,omitempty"`
	Team1GamesAtEnd  *int    `json:"team1_games_at_end,omitempty"`
	Team2GamesAtEnd  *int    `json:"team2_games_at_end,omitempty"`
	SetNumberAtEnd   *int    `json:"set_number_at_end,omitempty"`
}

// DurationSeconds returns the point duration, floored at zero, or nil while
// the point has not been finalized.
func (p *Point) DurationSeconds() *float64 {
	if p.EndTime == nil {
		return nil
	}
	d := p.EndTime.Sub(p.StartTime).Seconds()
	if d < 0 {
		d = 0
	}
	return &d
}

// Coordinate is a single ball position sample inside a point. Samples are
// created once and never mutated; reads must come back ordered by
// RelativeTimeMS.
type Coordinate struct {
	ID             int       `json:"-"`
	PointID        int       `json:"-"`
	RelativeTimeMS int       `json:"relative_time_ms"`
	X              float64   `json:"x"`
	Y              float64   `json:"y"`
	Z              float64   `json:"z"`
	RecordedAt     time.Time `json:"-"`
}

// PointReplay bundles a finalized point with its ordered coordinate trace,
// the shape the replay endpoint serves.
type PointReplay struct {
	Point
	DurationSeconds *float64      `json:"duration_seconds"`
	Coordinates     []*Coordinate `json:"coordinates"`
}
