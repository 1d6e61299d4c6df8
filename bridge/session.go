package bridge

import (
	"log/slog"

	"github.com/ESD-II/tracker-website/models"
)

// SessionState is the single in-memory record of current match context. It
// is owned exclusively by the driver's event loop: one writer, no locks.
// Score transitions are never validated against tennis rules here; whatever
// the scoreboard says is what gets recorded.
type SessionState struct {
	team1Points  string
	team2Points  string
	team1Games   int
	team2Games   int
	setNumber    int
	serverPlayer *int

	logger *slog.Logger
}

func NewSessionState(logger *slog.Logger) *SessionState {
	return &SessionState{
		team1Points: "0",
		team2Points: "0",
		setNumber:   1,
		logger:      logger,
	}
}

// Apply updates the session from one parsed event. Only score events mutate
// state; every other event kind passes through untouched.
func (s *SessionState) Apply(ev Event) {
	switch e := ev.(type) {
	case TeamPoints:
		if e.Team == 1 {
			s.team1Points = e.Value
		} else {
			s.team2Points = e.Value
		}
	case TeamGames:
		if e.Team == 1 {
			s.team1Games = e.Games
		} else {
			s.team2Games = e.Games
		}
		// The two teams' games messages each carry a set number. When they
		// disagree the later message wins.
		if e.Set != s.setNumber {
			s.logger.Warn("set number overwritten by later games message",
				slog.Int("team", e.Team),
				slog.Int("previous_set", s.setNumber),
				slog.Int("new_set", e.Set),
			)
			s.setNumber = e.Set
		}
	}
}

// Snapshot copies the current score context for stamping onto a point
// record.
func (s *SessionState) Snapshot() models.ScoreSnapshot {
	return models.ScoreSnapshot{
		Team1Points:  s.team1Points,
		Team2Points:  s.team2Points,
		Team1Games:   s.team1Games,
		Team2Games:   s.team2Games,
		SetNumber:    s.setNumber,
		ServerPlayer: s.serverPlayer,
	}
}
