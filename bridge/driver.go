package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/ESD-II/tracker-website/metrics"
)

// DriverConfig holds the bus connection settings.
type DriverConfig struct {
	BrokerHost string
	BrokerPort int
	// StartupAttempts bounds the initial connect budget; exhausting it is
	// fatal. Reconnects after a successful start are unbounded and handled
	// by the client.
	StartupAttempts      uint
	MaxReconnectInterval time.Duration
}

const (
	defaultStartupAttempts      = 5
	defaultMaxReconnectInterval = 30 * time.Second
	disconnectQuiesceMS         = 250
)

// Bridge owns the bus connection and the single event-processing path:
// every received message goes Route -> SessionState -> PointTracker ->
// Publisher, in that order, on one goroutine (the client delivers callbacks
// in order). SessionState therefore needs no locking.
type Bridge struct {
	client    mqtt.Client
	session   *SessionState
	tracker   *PointTracker
	publisher *Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics

	startupAttempts uint
	brokerURL       string
}

func NewBridge(cfg DriverConfig, session *SessionState, tracker *PointTracker, publisher *Publisher, logger *slog.Logger, m *metrics.Metrics) *Bridge {
	if cfg.StartupAttempts == 0 {
		cfg.StartupAttempts = defaultStartupAttempts
	}
	if cfg.MaxReconnectInterval <= 0 {
		cfg.MaxReconnectInterval = defaultMaxReconnectInterval
	}

	b := &Bridge{
		session:         session,
		tracker:         tracker,
		publisher:       publisher,
		logger:          logger,
		metrics:         m,
		startupAttempts: cfg.StartupAttempts,
		brokerURL:       fmt.Sprintf("tcp://%s:%d", cfg.BrokerHost, cfg.BrokerPort),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(b.brokerURL).
		SetClientID("tracker-bridge-" + uuid.NewString()[:8]).
		SetAutoReconnect(true).
		SetMaxReconnectInterval(cfg.MaxReconnectInterval).
		SetOrderMatters(true).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(b.onConnectionLost)

	b.client = mqtt.NewClient(opts)
	return b
}

// Start connects to the broker with a bounded retry budget. Subscriptions
// happen in the connect handler so they are replayed on every reconnect.
func (b *Bridge) Start(ctx context.Context) error {
	backoffCfg := backoff.NewExponentialBackOff()

	var attempt uint
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		token := b.client.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			attempt++
			if attempt >= b.startupAttempts {
				return fmt.Errorf("could not reach broker %s after %d attempts: %w", b.brokerURL, attempt, err)
			}
			sleep := backoffCfg.NextBackOff()
			if sleep == backoff.Stop {
				sleep = defaultMaxReconnectInterval
			}
			b.logger.Warn("broker connect failed, retrying",
				slog.String("broker", b.brokerURL),
				slog.Uint64("attempt", uint64(attempt)),
				slog.Duration("retry_in", sleep),
				slog.Any("error", err),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
			continue
		}
		b.logger.Info("connected to message bus", slog.String("broker", b.brokerURL))
		return nil
	}
}

func (b *Bridge) onConnect(client mqtt.Client) {
	subscriptions := make(map[string]byte, len(Topics()))
	for _, topic := range Topics() {
		subscriptions[topic] = 0 // QoS 0: at-most-once, matching the scoreboard publisher
	}

	token := client.SubscribeMultiple(subscriptions, b.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		b.logger.Error("failed to subscribe to scoreboard topics", slog.Any("error", err))
		return
	}
	b.logger.Info("subscribed to scoreboard topics", slog.Int("count", len(subscriptions)))
}

func (b *Bridge) onConnectionLost(_ mqtt.Client, err error) {
	// Session state is in-memory and simply continues across the gap; the
	// client reconnects on its own and onConnect resubscribes.
	if b.metrics != nil {
		b.metrics.RecordReconnect()
	}
	b.logger.Warn("lost connection to message bus, reconnecting", slog.Any("error", err))
}

// handleMessage is the single event-processing path. State update happens
// before the lifecycle and fan-out steps consult the snapshot.
func (b *Bridge) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	if b.metrics != nil {
		b.metrics.RecordMessage(msg.Topic())
	}

	ev, err := Route(msg.Topic(), msg.Payload())
	if err != nil {
		var parseErr *ParseError
		if errors.As(err, &parseErr) {
			if b.metrics != nil {
				b.metrics.RecordParseError()
			}
			b.logger.Warn("dropping malformed payload",
				slog.String("topic", parseErr.Topic),
				slog.String("payload", parseErr.Payload),
				slog.String("reason", parseErr.Reason),
			)
			return
		}
		b.logger.Error("router error", slog.Any("error", err))
		return
	}
	if ev == nil {
		b.logger.Debug("message on unrecognized topic", slog.String("topic", msg.Topic()))
		return
	}

	b.session.Apply(ev)
	snapshot := b.session.Snapshot()
	b.tracker.Handle(ev, snapshot)
	b.publisher.Publish(ev, snapshot)
}

// Close stops intake, finalizes any open point, drains pending writes within
// the context's grace period, and releases the connection.
func (b *Bridge) Close(ctx context.Context) {
	if b.client.IsConnected() {
		token := b.client.Unsubscribe(Topics()...)
		token.Wait()
		if err := token.Error(); err != nil {
			b.logger.Warn("failed to unsubscribe during shutdown", slog.Any("error", err))
		}
	}

	b.tracker.Shutdown(ctx, b.session.Snapshot())

	b.client.Disconnect(disconnectQuiesceMS)
	b.logger.Info("disconnected from message bus")
}
