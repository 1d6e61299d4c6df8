package bridge

import (
	"github.com/ESD-II/tracker-website/live"
	"github.com/ESD-II/tracker-website/metrics"
	"github.com/ESD-II/tracker-website/models"
)

// Notification type names. The frontend switches on these, so they must not
// change.
const (
	NotifyClockStart  = "clock_start"
	NotifyClockStop   = "clock_stop"
	NotifyOutSignal   = "out_signal"
	NotifyClockReset  = "clock_reset"
	NotifyClockUpdate = "clock_update"
	NotifyCoords      = "coords"
	NotifyScoreUpdate = "score_update"
)

// Broadcaster is the live-subscriber transport: fire and forget, no return
// value consulted. *live.Hub satisfies it.
type Broadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
}

type signalPayload struct {
	Signal string               `json:"signal"`
	Score  models.ScoreSnapshot `json:"score"`
}

type coordsPayload struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type scorePayload struct {
	Team   int         `json:"team"`
	Metric string      `json:"type"`
	Value  interface{} `json:"value"`
	Set    int         `json:"set,omitempty"`
}

type clockPayload struct {
	Value string `json:"value"`
}

// Publisher converts parsed events into normalized notifications and offers
// them to the live hub. It never waits on persistence; delivery policy
// (buffering, drop-on-full) is owned by the hub.
type Publisher struct {
	hub     Broadcaster
	room    string
	metrics *metrics.Metrics
}

func NewPublisher(hub Broadcaster, room string, m *metrics.Metrics) *Publisher {
	return &Publisher{hub: hub, room: room, metrics: m}
}

// Publish broadcasts one event. Lifecycle transitions carry the session
// snapshot so viewers can render the scoreboard without tracking state
// themselves.
func (p *Publisher) Publish(ev Event, snapshot models.ScoreSnapshot) {
	var notification live.Notification

	switch e := ev.(type) {
	case StartClock:
		notification = live.Notification{
			Type:    NotifyClockStart,
			Payload: signalPayload{Signal: "start_clock", Score: snapshot},
		}
	case StopClock:
		notification = live.Notification{
			Type:    NotifyClockStop,
			Payload: signalPayload{Signal: "stop_clock", Score: snapshot},
		}
	case OutOfBounds:
		notification = live.Notification{
			Type:    NotifyOutSignal,
			Payload: signalPayload{Signal: "out", Score: snapshot},
		}
	case ResetClock:
		notification = live.Notification{
			Type:    NotifyClockReset,
			Payload: signalPayload{Signal: "reset_clock", Score: snapshot},
		}
	case ClockTick:
		notification = live.Notification{
			Type:    NotifyClockUpdate,
			Payload: clockPayload{Value: e.Value},
		}
	case CoordinateSample:
		notification = live.Notification{
			Type:    NotifyCoords,
			Payload: coordsPayload{X: e.X, Y: e.Y, Z: e.Z},
		}
	case TeamPoints:
		notification = live.Notification{
			Type:    NotifyScoreUpdate,
			Payload: scorePayload{Team: e.Team, Metric: "points", Value: e.Value},
		}
	case TeamGames:
		notification = live.Notification{
			Type:    NotifyScoreUpdate,
			Payload: scorePayload{Team: e.Team, Metric: "games", Value: e.Games, Set: e.Set},
		}
	default:
		return
	}

	p.hub.BroadcastToRoom(p.room, notification)
	if p.metrics != nil {
		p.metrics.RecordBroadcast()
	}
}
