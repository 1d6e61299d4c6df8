package bridge

import (
	"fmt"
	"strconv"
	"strings"
)

// Scoreboard topics. These must match the publisher side byte for byte; the
// simulator and the hardware scoreboard both use this exact naming.
const (
	TopicBallCoords  = "tennis/scoreboard/ball_coords"
	TopicBallOut     = "tennis/scoreboard/ball_crossed_line"
	TopicStartClock  = "tennis/scoreboard/start_clock"
	TopicStopClock   = "tennis/scoreboard/stop_clock"
	TopicResetClock  = "tennis/scoreboard/reset_clock"
	TopicTeam1Points = "tennis/scoreboard/team1_points"
	TopicTeam2Points = "tennis/scoreboard/team2_points"
	TopicTeam1Games  = "tennis/scoreboard/team1_games"
	TopicTeam2Games  = "tennis/scoreboard/team2_games"
	TopicClock       = "tennis/scoreboard/clock"
)

// Topics returns the full subscription set in a stable order.
func Topics() []string {
	return []string{
		TopicBallCoords,
		TopicBallOut,
		TopicStartClock,
		TopicStopClock,
		TopicResetClock,
		TopicTeam1Points,
		TopicTeam2Points,
		TopicTeam1Games,
		TopicTeam2Games,
		TopicClock,
	}
}

// ParseError marks a payload the router could not make sense of. The
// pipeline logs it and moves on; it is never fatal.
type ParseError struct {
	Topic   string
	Payload string
	Reason  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse payload %q on topic %s: %s", e.Payload, e.Topic, e.Reason)
}

// Route maps a raw bus message to a typed event. An unrecognized topic
// returns (nil, nil): not an error, just a topic this bridge does not yet
// understand.
func Route(topic string, payload []byte) (Event, error) {
	body := strings.TrimSpace(string(payload))

	switch topic {
	case TopicStartClock:
		return StartClock{}, nil
	case TopicStopClock:
		return StopClock{}, nil
	case TopicBallOut:
		return OutOfBounds{}, nil
	case TopicResetClock:
		return ResetClock{}, nil
	case TopicClock:
		return ClockTick{Value: body}, nil
	case TopicBallCoords:
		return parseCoordinates(topic, body)
	case TopicTeam1Points:
		return TeamPoints{Team: 1, Value: body}, nil
	case TopicTeam2Points:
		return TeamPoints{Team: 2, Value: body}, nil
	case TopicTeam1Games:
		return parseGames(topic, body, 1)
	case TopicTeam2Games:
		return parseGames(topic, body, 2)
	default:
		return nil, nil
	}
}

// parseCoordinates expects exactly three comma-separated decimal floats, no
// surrounding brackets.
func parseCoordinates(topic, body string) (Event, error) {
	parts := strings.Split(body, ",")
	if len(parts) != 3 {
		return nil, &ParseError{Topic: topic, Payload: body, Reason: fmt.Sprintf("expected 3 values, got %d", len(parts))}
	}

	var values [3]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, &ParseError{Topic: topic, Payload: body, Reason: fmt.Sprintf("value %d is not a number", i+1)}
		}
		values[i] = v
	}
	return CoordinateSample{X: values[0], Y: values[1], Z: values[2]}, nil
}

// parseGames expects "games,set" as two comma-separated decimal integers.
func parseGames(topic, body string, team int) (Event, error) {
	parts := strings.Split(body, ",")
	if len(parts) != 2 {
		return nil, &ParseError{Topic: topic, Payload: body, Reason: fmt.Sprintf("expected 2 values, got %d", len(parts))}
	}

	games, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, &ParseError{Topic: topic, Payload: body, Reason: "games value is not an integer"}
	}
	set, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, &ParseError{Topic: topic, Payload: body, Reason: "set value is not an integer"}
	}
	return TeamGames{Team: team, Games: games, Set: set}, nil
}
