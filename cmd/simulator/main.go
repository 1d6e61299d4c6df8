// Simulator publishes a synthetic tennis match to the scoreboard topics so
// the bridge and the live view can be exercised without hardware. It is a
// test fixture, not part of the serving path.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

// Court dimensions (simplified singles court, meters).
const (
	courtLength     = 23.77
	courtWidth      = 8.23
	netHeight       = 0.914
	serviceBoxDepth = 6.4

	rallyLengthMin = 3
	rallyLengthMax = 10
	outProbability = 0.15
)

var pointsSequence = []string{"0", "15", "30", "40", "AD"}

const (
	topicCoords     = "tennis/scoreboard/ball_coords"
	topicOut        = "tennis/scoreboard/ball_crossed_line"
	topicStartClock = "tennis/scoreboard/start_clock"
	topicStopClock  = "tennis/scoreboard/stop_clock"
	topicResetClock = "tennis/scoreboard/reset_clock"
	topicT1Points   = "tennis/scoreboard/team1_points"
	topicT2Points   = "tennis/scoreboard/team2_points"
	topicT1Games    = "tennis/scoreboard/team1_games"
	topicT2Games    = "tennis/scoreboard/team2_games"
	topicClock      = "tennis/scoreboard/clock"
)

type simulator struct {
	client mqtt.Client
	speed  time.Duration
	// resetClockPerGame controls whether the match clock restarts after
	// every game or keeps accumulating for the whole match. The scoreboard
	// hardware has shipped both behaviors, so it stays configurable here.
	resetClockPerGame bool

	team1Points string
	team2Points string
	team1Games  int
	team2Games  int
	currentSet  int
	server      int
	servingSide string

	gameTimeSeconds float64

	ballX, ballY, ballZ float64
}

func main() {
	broker := flag.String("broker", envOr("MQTT_BROKER_EXT", "localhost"), "MQTT broker host")
	port := flag.Int("port", envIntOr("MQTT_PORT_EXT", 1883), "MQTT broker port")
	speed := flag.Duration("speed", 100*time.Millisecond, "delay between ball position updates")
	resetClockPerGame := flag.Bool("reset-clock-per-game", false, "restart the match clock after every game")
	flag.Parse()

	opts := mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", *broker, *port)).
		SetClientID("tracker-sim-" + uuid.NewString()[:8]).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		log.Fatalf("cannot connect to broker %s:%d: %v", *broker, *port, err)
	}
	log.Printf("Publishing to MQTT broker %s:%d", *broker, *port)

	sim := &simulator{
		client:            client,
		speed:             *speed,
		resetClockPerGame: *resetClockPerGame,
		team1Points:       "0",
		team2Points:       "0",
		currentSet:        1,
		server:            1,
		servingSide:       "deuce",
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sim.publishInitialState()

	pointCount := 0
	for {
		select {
		case <-quit:
			log.Println("Simulation interrupted.")
			sim.publish(topicStopClock, "")
			client.Disconnect(250)
			return
		default:
		}

		pointCount++
		log.Printf("===== Point #%d start =====", pointCount)

		winner, rallyStart := sim.simulateRally()

		sim.publish(topicStopClock, "")
		sim.publishFinalClockTime(rallyStart)

		log.Printf("Point winner: player %d", winner)
		sim.updateScore(winner)

		time.Sleep(time.Duration(2500+rand.Intn(2500)) * time.Millisecond)
	}
}

func (s *simulator) publish(topic, message string) {
	token := s.client.Publish(topic, 0, false, message)
	token.Wait()
	if err := token.Error(); err != nil {
		log.Printf("WARNING: publish to %s failed: %v", topic, err)
	}
}

func (s *simulator) publishCoords() {
	s.publish(topicCoords, fmt.Sprintf("%.2f,%.2f,%.2f", s.ballX, s.ballY, s.ballZ))
}

func (s *simulator) publishInitialState() {
	s.publish(topicResetClock, "")
	s.publish(topicClock, formatClock(s.gameTimeSeconds))
	s.publish(topicT1Points, s.team1Points)
	s.publish(topicT2Points, s.team2Points)
	s.publish(topicT1Games, fmt.Sprintf("%d,%d", s.team1Games, s.currentSet))
	s.publish(topicT2Games, fmt.Sprintf("%d,%d", s.team2Games, s.currentSet))
}

func (s *simulator) publishFinalClockTime(rallyStart time.Time) {
	rallyDuration := time.Since(rallyStart).Seconds()
	s.gameTimeSeconds += rallyDuration
	s.publish(topicClock, formatClock(s.gameTimeSeconds))
	log.Printf("Point duration: %.2fs. Total game time: %s", rallyDuration, formatClock(s.gameTimeSeconds))
}

// simulateRally plays one point: serve, then alternating hits until the
// ball goes out, clips the net, or the rally length is exhausted. Returns
// the point winner and the rally start time.
func (s *simulator) simulateRally() (int, time.Time) {
	rallyStart := time.Now()
	s.publish(topicStartClock, "")

	// Serve setup.
	s.ballX, s.ballY, s.ballZ = s.servePosition()
	log.Printf("--- Simulating point --- server: P%d (%s)", s.server, s.servingSide)
	s.publishCoords()
	time.Sleep(500 * time.Millisecond)

	targetX := courtLength * 0.3
	if s.server == 2 {
		targetX = -courtLength * 0.3
	}
	targetY := -courtWidth * 0.25
	if s.servingSide != "deuce" {
		targetY = courtWidth * 0.25
	}
	dx := targetX - s.ballX
	dy := targetY - s.ballY

	// Serve flight.
	const serveSteps = 15
	serveFault := false
	for i := 1; i <= serveSteps; i++ {
		frac := float64(i) / serveSteps
		s.ballX += dx / serveSteps
		s.ballY += dy / serveSteps
		s.ballZ = 1.5 + math.Sin(frac*math.Pi)*1.5
		s.publishCoords()
		time.Sleep(s.speed * 2 / 5)

		if math.Abs(s.ballX) < 0.5 && s.ballZ < netHeight {
			log.Println("Sim result: fault (hit net)")
			serveFault = true
			break
		}
	}

	if !serveFault {
		landedInCorrectHalf := (s.server == 1 && s.ballX > 0) || (s.server == 2 && s.ballX < 0)
		landedWithinSidelines := math.Abs(s.ballY) <= courtWidth/2
		landedWithinBaseline := math.Abs(s.ballX) <= courtLength/2
		landedInServiceArea := math.Abs(s.ballX) < serviceBoxDepth
		if !(landedInCorrectHalf && landedWithinSidelines && landedWithinBaseline && landedInServiceArea) {
			log.Println("Sim result: fault (serve out)")
			serveFault = true
		}
	}

	if serveFault {
		s.publish(topicOut, "1")
		time.Sleep(500 * time.Millisecond)
		return opponent(s.server), rallyStart
	}

	// Serve in: land the ball.
	s.ballZ = 0
	s.publishCoords()
	time.Sleep(100 * time.Millisecond)

	currentHitter := opponent(s.server)

	numHits := rallyLengthMin + rand.Intn(rallyLengthMax-rallyLengthMin+1)
	for hit := 0; hit < numHits; hit++ {
		targetXSide := courtLength / 2
		if currentHitter == 2 {
			targetXSide = -courtLength / 2
		}
		targetXRel := 0.1 + rand.Float64()*0.35
		targetX := targetXSide * targetXRel
		if targetXSide < 0 {
			targetX = targetXSide * (1 - targetXRel)
		}
		targetY := (rand.Float64()*2 - 1) * courtWidth / 2 * 0.95

		startX, startY, startZ := s.ballX, s.ballY, 0.1
		dx := targetX - startX
		dy := targetY - startY
		dist := math.Hypot(dx, dy)
		if dist == 0 {
			dist = 1
		}

		steps := int(dist / 1.5)
		if steps < 10 {
			steps = 10
		}
		maxArcHeight := 1.0 + rand.Float64()*1.5
		hitNet := false

		for i := 1; i <= steps; i++ {
			frac := float64(i) / float64(steps)
			prevX := s.ballX
			s.ballX = startX + dx*frac
			s.ballY = startY + dy*frac
			s.ballZ = startZ + math.Sin(frac*math.Pi)*maxArcHeight
			s.publishCoords()
			time.Sleep(s.speed)

			if prevX*s.ballX <= 0 && s.ballZ < netHeight {
				log.Println("Sim result: net!")
				hitNet = true
				break
			}
		}

		if hitNet {
			s.publish(topicOut, "1")
			return opponent(currentHitter), rallyStart
		}

		if isOutOfBounds(s.ballX, s.ballY) {
			log.Println("Sim result: out!")
			s.publish(topicOut, "1")
			return opponent(currentHitter), rallyStart
		}

		// Ball in: land it and switch hitter.
		s.ballZ = 0
		s.publishCoords()
		currentHitter = opponent(currentHitter)
		time.Sleep(200*time.Millisecond + time.Duration(rand.Intn(300))*time.Millisecond)

		if hit > 0 && rand.Float64() < outProbability/2 {
			log.Println("Sim result: unforced error!")
			return opponent(currentHitter), rallyStart
		}
	}

	log.Println("Sim result: rally ended (max hits).")
	return opponent(currentHitter), rallyStart
}

// updateScore advances points, games and sets for the point winner and
// publishes the resulting scoreboard state.
func (s *simulator) updateScore(winner int) {
	gameOver := false

	switch winner {
	case 1:
		switch {
		case s.team1Points == "40" && (s.team2Points == "0" || s.team2Points == "15" || s.team2Points == "30"):
			gameOver = true
		case s.team1Points == "40" && s.team2Points == "40":
			s.team1Points = "AD"
		case s.team1Points == "40" && s.team2Points == "AD":
			s.team2Points = "40" // back to deuce
		case s.team1Points == "AD":
			gameOver = true
		default:
			s.team1Points = nextPoint(s.team1Points)
		}
	default:
		switch {
		case s.team2Points == "40" && (s.team1Points == "0" || s.team1Points == "15" || s.team1Points == "30"):
			gameOver = true
		case s.team2Points == "40" && s.team1Points == "40":
			s.team2Points = "AD"
		case s.team2Points == "40" && s.team1Points == "AD":
			s.team1Points = "40" // back to deuce
		case s.team2Points == "AD":
			gameOver = true
		default:
			s.team2Points = nextPoint(s.team2Points)
		}
	}

	s.publish(topicT1Points, s.team1Points)
	s.publish(topicT2Points, s.team2Points)
	log.Printf("Score updated: %s-%s", s.team1Points, s.team2Points)

	if !gameOver {
		return
	}

	log.Printf("GAME player %d!", winner)
	s.team1Points = "0"
	s.team2Points = "0"
	s.servingSide = "deuce"
	if winner == 1 {
		s.team1Games++
	} else {
		s.team2Games++
	}

	s.publish(topicT1Games, fmt.Sprintf("%d,%d", s.team1Games, s.currentSet))
	s.publish(topicT2Games, fmt.Sprintf("%d,%d", s.team2Games, s.currentSet))

	if s.resetClockPerGame {
		s.gameTimeSeconds = 0
		s.publish(topicResetClock, "")
		s.publish(topicClock, formatClock(s.gameTimeSeconds))
	}

	setOver := (s.team1Games >= 6 && s.team1Games >= s.team2Games+2) || s.team1Games == 7 ||
		(s.team2Games >= 6 && s.team2Games >= s.team1Games+2) || s.team2Games == 7

	if setOver {
		log.Printf("*** SET over, starting set %d ***", s.currentSet+1)
		s.team1Games = 0
		s.team2Games = 0
		s.currentSet++
		s.publish(topicT1Games, fmt.Sprintf("%d,%d", s.team1Games, s.currentSet))
		s.publish(topicT2Games, fmt.Sprintf("%d,%d", s.team2Games, s.currentSet))
	}

	s.server = opponent(s.server)
	log.Printf("Next server: P%d", s.server)
}

func (s *simulator) servePosition() (float64, float64, float64) {
	x := -courtLength / 2
	if s.server == 2 {
		x = courtLength / 2
	}
	y := -courtWidth * 0.25
	if s.servingSide != "deuce" {
		y = courtWidth * 0.25
	}
	return x, y, 1.5
}

func isOutOfBounds(x, y float64) bool {
	return math.Abs(x) > courtLength/2 || math.Abs(y) > courtWidth/2
}

func opponent(player int) int {
	if player == 1 {
		return 2
	}
	return 1
}

func nextPoint(current string) string {
	for i, p := range pointsSequence {
		if p == current && i+1 < len(pointsSequence) {
			return pointsSequence[i+1]
		}
	}
	return current
}

func formatClock(totalSeconds float64) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	total := int(totalSeconds)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}
