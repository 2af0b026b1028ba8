// Package stream implements the Helius Enhanced WebSocket ingestion loop:
// connect, subscribe to Pump.Fun transactions, keep the connection alive,
// decode inbound frames and hand decoded creation events to the dispatcher.
// The loop reconnects forever with a fixed delay; only context cancellation
// stops it.
package stream

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"pumpfun-sniper/internal/events"
	"pumpfun-sniper/internal/utils"
)

// ConnState describes the ingestion loop's connection lifecycle.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateSubscribed
	StateDisconnected
)

// EventSink receives decoded creation events. The dispatcher implements it.
type EventSink interface {
	Dispatch(ctx context.Context, event *events.CreateEvent) bool
}

// ClientConfig configures the ingestion client.
type ClientConfig struct {
	// URL is the Enhanced WebSocket endpoint, api-key included.
	URL string
	// ProgramID is the Pump.Fun program address to subscribe to.
	ProgramID string
	// PingInterval is how often a keepalive ping is sent (Helius drops
	// connections idle for more than ~30s).
	PingInterval time.Duration
	// ReconnectDelay is the fixed wait between connection attempts.
	ReconnectDelay time.Duration
	// HandshakeTimeout bounds the WebSocket dial.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds each outbound write.
	WriteTimeout time.Duration
}

// DefaultClientConfig returns the connection defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PingInterval:     10 * time.Second,
		ReconnectDelay:   5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
	}
}

// Client owns one active WebSocket connection at a time and feeds decoded
// events to the sink. The connection and state fields are only touched from
// the Run goroutine.
type Client struct {
	config  ClientConfig
	sink    EventSink
	metrics *Metrics

	state atomic.Int32
}

// NewClient creates an ingestion client. Zero durations in the config are
// filled with defaults.
func NewClient(config ClientConfig, sink EventSink, metrics *Metrics) *Client {
	defaults := DefaultClientConfig()
	if config.PingInterval <= 0 {
		config.PingInterval = defaults.PingInterval
	}
	if config.ReconnectDelay <= 0 {
		config.ReconnectDelay = defaults.ReconnectDelay
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = defaults.HandshakeTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if metrics == nil {
		metrics = NewMetrics()
	}

	c := &Client{
		config:  config,
		sink:    sink,
		metrics: metrics,
	}
	c.state.Store(int32(StateDisconnected))
	return c
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	return ConnState(c.state.Load())
}

// Run drives the connect/subscribe/read/reconnect cycle until ctx is
// cancelled. Transport errors are logged and absorbed; they never terminate
// the loop.
func (c *Client) Run(ctx context.Context) error {
	for {
		c.state.Store(int32(StateConnecting))

		if err := c.runConnection(ctx); err != nil {
			logrus.WithField("error", utils.SanitizeError(err, c.config.URL)).Warn("⚠️  WebSocket connection lost")
		}

		c.state.Store(int32(StateDisconnected))
		c.metrics.RecordDisconnect()

		select {
		case <-ctx.Done():
			logrus.Info("🛑 Ingestion loop stopping")
			return nil
		case <-time.After(c.config.ReconnectDelay):
			logrus.WithField("delay", c.config.ReconnectDelay).Info("🔄 Reconnecting to WebSocket feed")
		}
	}
}

// runConnection handles one connection lifetime: dial, subscribe, keepalive
// and the read loop. It returns when the transport fails or ctx is
// cancelled; per-connection goroutines are torn down before it returns.
func (c *Client) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: c.config.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	defer conn.Close()

	logrus.Info("✅ WebSocket connected")

	// Answer peer pings immediately; WriteControl is safe to call
	// concurrently with the keepalive goroutine's pings.
	conn.SetPingHandler(func(appData string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.config.WriteTimeout))
	})

	if err := c.subscribe(conn); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	c.state.Store(int32(StateSubscribed))

	// Per-connection teardown: done stops the keepalive exactly once, the
	// watcher goroutine unblocks ReadMessage on cancellation.
	done := make(chan struct{})
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		c.keepalive(conn, done)
	}()
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	err = c.readLoop(ctx, conn)

	close(done)
	wg.Wait()

	if ctx.Err() != nil {
		return nil
	}
	return err
}

// subscribe sends one transactionSubscribe request scoped to the target
// program, excluding failed transactions, at confirmed commitment.
func (c *Client) subscribe(conn *websocket.Conn) error {
	request := map[string]interface{}{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "transactionSubscribe",
		"params": []interface{}{
			map[string]interface{}{
				"failed":         false,
				"accountInclude": []string{c.config.ProgramID},
			},
			map[string]interface{}{
				"commitment":                     "confirmed",
				"encoding":                       "jsonParsed",
				"transactionDetails":             "full",
				"maxSupportedTransactionVersion": 0,
			},
		},
	}

	conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	if err := conn.WriteJSON(request); err != nil {
		return err
	}

	logrus.WithField("program", c.config.ProgramID).Info("📡 Subscribed to Pump.Fun transactions")
	return nil
}

// keepalive sends a protocol ping on a fixed interval for the life of one
// connection. It exits when done closes, so no pings survive a reconnect.
func (c *Client) keepalive(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteTimeout)); err != nil {
				// Connection is likely dead; the read loop will notice.
				logrus.WithError(err).Debug("Keepalive ping failed")
			}
		}
	}
}

// readLoop consumes frames until the transport errors or ctx is cancelled.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		// Only text frames carry JSON payloads; gorilla already answers
		// control frames through the handlers.
		if msgType != websocket.TextMessage {
			continue
		}

		c.handleMessage(ctx, data)
	}
}

// handleMessage decodes one text frame and routes it.
func (c *Client) handleMessage(ctx context.Context, data []byte) {
	c.metrics.RecordFrame()

	env := DecodeEnvelope(data)
	switch env.Kind {
	case EnvelopeAck:
		logrus.WithField("subscription_id", env.SubscriptionID).Info("✅ Subscription confirmed")

	case EnvelopeNotification:
		c.handleNotification(ctx, env)

	default:
		// Control messages and unparseable payloads are expected; drop.
	}
}

// handleNotification scans a transaction's log lines for the first
// decodable CreateEvent and dispatches it.
func (c *Client) handleNotification(ctx context.Context, env Envelope) {
	c.metrics.RecordNotification()

	if env.Failed {
		logrus.WithField("signature", shortSig(env.Signature)).Debug("Skipping failed transaction")
		return
	}

	event, ok := events.ScanLogs(env.Logs)
	if !ok {
		return
	}
	event.Signature = env.Signature
	c.metrics.RecordEvent()

	logrus.WithFields(logrus.Fields{
		"signature": shortSig(env.Signature),
		"symbol":    event.Symbol,
		"name":      event.Name,
		"mint":      event.Mint,
		"creator":   event.Creator,
	}).Info("🆕 New token created")

	if c.sink.Dispatch(ctx, event) {
		c.metrics.RecordDispatch()
	}
}

func shortSig(sig string) string {
	if len(sig) < 8 {
		return sig
	}
	return sig[:8] + "..."
}
