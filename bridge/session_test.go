package bridge

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestSession() *SessionState {
	return NewSessionState(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestSessionInitialSnapshot(t *testing.T) {
	s := newTestSession()
	snap := s.Snapshot()

	assert.Equal(t, "0", snap.Team1Points)
	assert.Equal(t, "0", snap.Team2Points)
	assert.Equal(t, 0, snap.Team1Games)
	assert.Equal(t, 0, snap.Team2Games)
	assert.Equal(t, 1, snap.SetNumber)
	assert.Nil(t, snap.ServerPlayer)
}

func TestSessionDeuceToAdvantage(t *testing.T) {
	s := newTestSession()
	s.Apply(TeamPoints{Team: 1, Value: "40"})
	s.Apply(TeamPoints{Team: 2, Value: "40"})
	s.Apply(TeamPoints{Team: 1, Value: "AD"})

	snap := s.Snapshot()
	assert.Equal(t, "AD", snap.Team1Points)
	assert.Equal(t, "40", snap.Team2Points)
	assert.Equal(t, 0, snap.Team1Games)
	assert.Equal(t, 0, snap.Team2Games)
	assert.Equal(t, 1, snap.SetNumber)
}

func TestSessionGamesUpdate(t *testing.T) {
	s := newTestSession()
	s.Apply(TeamGames{Team: 1, Games: 3, Set: 1})
	s.Apply(TeamGames{Team: 2, Games: 2, Set: 1})

	snap := s.Snapshot()
	assert.Equal(t, 3, snap.Team1Games)
	assert.Equal(t, 2, snap.Team2Games)
	assert.Equal(t, 1, snap.SetNumber)
}

func TestSessionSetNumberLastWriterWins(t *testing.T) {
	s := newTestSession()
	s.Apply(TeamGames{Team: 1, Games: 6, Set: 2})
	assert.Equal(t, 2, s.Snapshot().SetNumber)

	// Team 2's message disagrees; the later message wins.
	s.Apply(TeamGames{Team: 2, Games: 0, Set: 3})
	assert.Equal(t, 3, s.Snapshot().SetNumber)
}

func TestSessionIgnoresNonScoreEvents(t *testing.T) {
	s := newTestSession()
	before := s.Snapshot()

	s.Apply(StartClock{})
	s.Apply(StopClock{})
	s.Apply(OutOfBounds{})
	s.Apply(ResetClock{})
	s.Apply(ClockTick{Value: "01:00"})
	s.Apply(CoordinateSample{X: 1, Y: 2, Z: 3})

	assert.Equal(t, before, s.Snapshot())
}

func TestSnapshotIsACopy(t *testing.T) {
	s := newTestSession()
	snap := s.Snapshot()

	s.Apply(TeamPoints{Team: 1, Value: "15"})
	assert.Equal(t, "0", snap.Team1Points)
}
