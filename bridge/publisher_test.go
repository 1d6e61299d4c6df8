package bridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ESD-II/tracker-website/live"
	"github.com/ESD-II/tracker-website/models"
)

type capturedBroadcast struct {
	Room    string
	Message interface{}
}

type fakeBroadcaster struct {
	calls []capturedBroadcast
}

func (f *fakeBroadcaster) BroadcastToRoom(roomID string, message interface{}) {
	f.calls = append(f.calls, capturedBroadcast{Room: roomID, Message: message})
}

func (f *fakeBroadcaster) last(t *testing.T) live.Notification {
	t.Helper()
	require.NotEmpty(t, f.calls)
	notification, ok := f.calls[len(f.calls)-1].Message.(live.Notification)
	require.True(t, ok, "broadcast payload must be a live.Notification")
	return notification
}

func TestPublishLifecycleSignalsCarrySnapshot(t *testing.T) {
	hub := &fakeBroadcaster{}
	publisher := NewPublisher(hub, live.RoomTennisUpdates, nil)
	score := models.ScoreSnapshot{Team1Points: "40", Team2Points: "AD", SetNumber: 2}

	cases := []struct {
		event      Event
		wantType   string
		wantSignal string
	}{
		{StartClock{}, NotifyClockStart, "start_clock"},
		{StopClock{}, NotifyClockStop, "stop_clock"},
		{OutOfBounds{}, NotifyOutSignal, "out"},
		{ResetClock{}, NotifyClockReset, "reset_clock"},
	}

	for _, tc := range cases {
		publisher.Publish(tc.event, score)

		notification := hub.last(t)
		assert.Equal(t, tc.wantType, notification.Type)

		payload, ok := notification.Payload.(signalPayload)
		require.True(t, ok)
		assert.Equal(t, tc.wantSignal, payload.Signal)
		assert.Equal(t, score, payload.Score)
	}

	assert.Len(t, hub.calls, len(cases))
	for _, call := range hub.calls {
		assert.Equal(t, live.RoomTennisUpdates, call.Room)
	}
}

func TestPublishClockTick(t *testing.T) {
	hub := &fakeBroadcaster{}
	publisher := NewPublisher(hub, live.RoomTennisUpdates, nil)

	publisher.Publish(ClockTick{Value: "01:37"}, models.ScoreSnapshot{})

	notification := hub.last(t)
	assert.Equal(t, NotifyClockUpdate, notification.Type)
	payload, ok := notification.Payload.(clockPayload)
	require.True(t, ok)
	assert.Equal(t, "01:37", payload.Value)
}

func TestPublishCoordinates(t *testing.T) {
	hub := &fakeBroadcaster{}
	publisher := NewPublisher(hub, live.RoomTennisUpdates, nil)

	publisher.Publish(CoordinateSample{X: 3.2, Y: -1.5, Z: 0.9}, models.ScoreSnapshot{})

	notification := hub.last(t)
	assert.Equal(t, NotifyCoords, notification.Type)
	payload, ok := notification.Payload.(coordsPayload)
	require.True(t, ok)
	assert.Equal(t, coordsPayload{X: 3.2, Y: -1.5, Z: 0.9}, payload)
}

func TestPublishScoreUpdates(t *testing.T) {
	hub := &fakeBroadcaster{}
	publisher := NewPublisher(hub, live.RoomTennisUpdates, nil)

	publisher.Publish(TeamPoints{Team: 1, Value: "AD"}, models.ScoreSnapshot{})
	points := hub.last(t)
	assert.Equal(t, NotifyScoreUpdate, points.Type)
	pointsPayload, ok := points.Payload.(scorePayload)
	require.True(t, ok)
	assert.Equal(t, 1, pointsPayload.Team)
	assert.Equal(t, "points", pointsPayload.Metric)
	assert.Equal(t, "AD", pointsPayload.Value)
	assert.Zero(t, pointsPayload.Set)

	publisher.Publish(TeamGames{Team: 2, Games: 4, Set: 3}, models.ScoreSnapshot{})
	games := hub.last(t)
	assert.Equal(t, NotifyScoreUpdate, games.Type)
	gamesPayload, ok := games.Payload.(scorePayload)
	require.True(t, ok)
	assert.Equal(t, 2, gamesPayload.Team)
	assert.Equal(t, "games", gamesPayload.Metric)
	assert.Equal(t, 4, gamesPayload.Value)
	assert.Equal(t, 3, gamesPayload.Set)
}
