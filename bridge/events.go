// Package bridge consumes the scoreboard message bus, reconstructs point
// records from the raw telemetry stream, persists them, and fans normalized
// events out to live viewers.
package bridge

// Event is the closed set of typed events the topic router produces. Exactly
// one concrete type exists per recognized topic.
type Event interface {
	isEvent()
}

// StartClock opens a new point.
type StartClock struct{}

// StopClock finalizes the active point.
type StopClock struct{}

// OutOfBounds finalizes the active point; semantically distinct from
// StopClock for fan-out (the frontend flashes an OUT overlay).
type OutOfBounds struct{}

// ResetClock is forwarded to viewers only; it never touches persistence.
type ResetClock struct{}

// ClockTick carries the scoreboard's formatted match clock ("MM:SS").
type ClockTick struct {
	Value string
}

// CoordinateSample is one ball position.
type CoordinateSample struct {
	X, Y, Z float64
}

// TeamPoints carries a raw score token for one team. Value is textual on
// purpose: "AD" is a valid score.
type TeamPoints struct {
	Team  int
	Value string
}

// TeamGames carries games won and the set number for one team.
type TeamGames struct {
	Team  int
	Games int
	Set   int
}

func (StartClock) isEvent()       {}
func (StopClock) isEvent()        {}
func (OutOfBounds) isEvent()      {}
func (ResetClock) isEvent()       {}
func (ClockTick) isEvent()        {}
func (CoordinateSample) isEvent() {}
func (TeamPoints) isEvent()       {}
func (TeamGames) isEvent()        {}
