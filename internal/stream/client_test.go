package stream

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pumpfun-sniper/internal/events"
)

var testUpgrader = websocket.Upgrader{}

// captureSink records dispatched events.
type captureSink struct {
	mu     sync.Mutex
	events []*events.CreateEvent
	ch     chan *events.CreateEvent
}

func newCaptureSink() *captureSink {
	return &captureSink{ch: make(chan *events.CreateEvent, 16)}
}

func (s *captureSink) Dispatch(ctx context.Context, event *events.CreateEvent) bool {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	s.ch <- event
	return true
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

// encodeCreateEvent builds a wire-format CreateEvent payload.
func encodeCreateEvent(name, symbol, uri string) []byte {
	buf := []byte{27, 114, 169, 77, 222, 235, 99, 118}
	for _, s := range []string{name, symbol, uri} {
		var length [4]byte
		binary.LittleEndian.PutUint32(length[:], uint32(len(s)))
		buf = append(buf, length[:]...)
		buf = append(buf, s...)
	}
	for fill := byte(1); fill <= 3; fill++ {
		key := make([]byte, 32)
		for i := range key {
			key[i] = fill
		}
		buf = append(buf, key...)
	}
	return buf
}

// notificationJSON builds a transactionNotification frame.
func notificationJSON(t *testing.T, signature string, failed bool, logs []string) []byte {
	t.Helper()

	var errValue interface{}
	if failed {
		errValue = map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}
	}

	frame := map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "transactionNotification",
		"params": map[string]interface{}{
			"subscription": 99,
			"result": map[string]interface{}{
				"signature": signature,
				"transaction": map[string]interface{}{
					"meta": map[string]interface{}{
						"err":         errValue,
						"logMessages": logs,
					},
				},
			},
		},
	}

	data, err := json.Marshal(frame)
	require.NoError(t, err)
	return data
}

func programDataLine(payload []byte) string {
	return events.ProgramDataPrefix + base64.StdEncoding.EncodeToString(payload)
}

func testClientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:              url,
		ProgramID:        "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P",
		PingInterval:     20 * time.Millisecond,
		ReconnectDelay:   50 * time.Millisecond,
		HandshakeTimeout: time.Second,
		WriteTimeout:     time.Second,
	}
}

func TestClientRun_SubscribesAndDispatches(t *testing.T) {
	subReqCh := make(chan map[string]interface{}, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req map[string]interface{}
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		subReqCh <- req

		conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":1,"result":99}`))

		logs := []string{
			"Program log: Instruction: Create",
			programDataLine(encodeCreateEvent("Pepe Coin", "PEPE", "https://x/meta.json")),
		}
		conn.WriteMessage(websocket.TextMessage, notificationJSON(t, "5h3xSig", false, logs))

		// Drain frames (keepalive pings) until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	sink := newCaptureSink()
	client := NewClient(testClientConfig(wsURL(srv)), sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	runDone := make(chan struct{})
	go func() {
		client.Run(ctx)
		close(runDone)
	}()

	select {
	case req := <-subReqCh:
		assert.Equal(t, "transactionSubscribe", req["method"])
		params, ok := req["params"].([]interface{})
		require.True(t, ok)
		require.Len(t, params, 2)

		filter := params[0].(map[string]interface{})
		assert.Equal(t, false, filter["failed"])
		assert.Contains(t, filter["accountInclude"], "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P")

		opts := params[1].(map[string]interface{})
		assert.Equal(t, "confirmed", opts["commitment"])
		assert.Equal(t, "jsonParsed", opts["encoding"])
		assert.Equal(t, "full", opts["transactionDetails"])
	case <-time.After(2 * time.Second):
		t.Fatal("no subscription request received")
	}

	select {
	case event := <-sink.ch:
		assert.Equal(t, "PEPE", event.Symbol)
		assert.Equal(t, "Pepe Coin", event.Name)
		assert.Equal(t, "5h3xSig", event.Signature)
		assert.NotEmpty(t, event.Mint)
	case <-time.After(2 * time.Second):
		t.Fatal("no event dispatched")
	}

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestClientRun_ReconnectsAfterClosure(t *testing.T) {
	var connCount atomic.Int32
	connTimes := make(chan time.Time, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		n := connCount.Add(1)
		connTimes <- time.Now()

		var req map[string]interface{}
		if err := conn.ReadJSON(&req); err != nil {
			conn.Close()
			return
		}

		if n == 1 {
			// Simulate an abrupt server-side closure.
			conn.Close()
			return
		}

		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	cfg := testClientConfig(wsURL(srv))
	client := NewClient(cfg, newCaptureSink(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go client.Run(ctx)

	var first, second time.Time
	select {
	case first = <-connTimes:
	case <-time.After(2 * time.Second):
		t.Fatal("no initial connection")
	}
	select {
	case second = <-connTimes:
	case <-time.After(2 * time.Second):
		t.Fatal("no reconnect after closure")
	}

	assert.GreaterOrEqual(t, second.Sub(first), cfg.ReconnectDelay,
		"reconnect must wait the fixed delay")

	// The second connection stays healthy: no further reconnects.
	time.Sleep(3 * cfg.ReconnectDelay)
	assert.Equal(t, int32(2), connCount.Load())
}

func TestClientRun_KeepaliveStopsOnShutdown(t *testing.T) {
	var pingCount atomic.Int32

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		conn.SetPingHandler(func(appData string) error {
			pingCount.Add(1)
			return nil
		})

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	client := NewClient(testClientConfig(wsURL(srv)), newCaptureSink(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		client.Run(ctx)
		close(runDone)
	}()

	require.Eventually(t, func() bool {
		return pingCount.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond, "keepalive pings expected while subscribed")

	cancel()
	select {
	case <-runDone:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop; keepalive goroutine may be leaked")
	}

	// No pings from the torn-down connection after shutdown.
	settled := pingCount.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, settled, pingCount.Load())
}

func TestHandleMessage_FailedTransactionNotDecoded(t *testing.T) {
	sink := newCaptureSink()
	client := NewClient(testClientConfig("ws://unused"), sink, nil)

	logs := []string{programDataLine(encodeCreateEvent("Pepe", "PEPE", "https://x"))}
	client.handleMessage(context.Background(), notificationJSON(t, "failedSig", true, logs))

	assert.Equal(t, 0, sink.count(), "failed transactions carry no event")
}

func TestHandleMessage_FirstValidLineWins(t *testing.T) {
	sink := newCaptureSink()
	client := NewClient(testClientConfig("ws://unused"), sink, nil)

	// Only the second line decodes; dispatch fires exactly once, for it.
	garbage := encodeCreateEvent("Bad", "BAD", "https://bad")
	garbage[0] ^= 0xff
	logs := []string{
		programDataLine(garbage),
		programDataLine(encodeCreateEvent("Good Token", "GOOD", "https://good")),
	}
	client.handleMessage(context.Background(), notificationJSON(t, "sig", false, logs))

	require.Equal(t, 1, sink.count())
	assert.Equal(t, "GOOD", sink.events[0].Symbol)
	assert.Equal(t, "sig", sink.events[0].Signature)
}

func TestHandleMessage_AckAndUnrecognized(t *testing.T) {
	sink := newCaptureSink()
	metrics := NewMetrics()
	client := NewClient(testClientConfig("ws://unused"), sink, metrics)

	client.handleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"result":42}`))
	client.handleMessage(context.Background(), []byte(`garbage`))
	client.handleMessage(context.Background(), []byte(`{"method":"other"}`))

	assert.Equal(t, 0, sink.count())
	assert.Equal(t, int64(3), atomic.LoadInt64(&metrics.FramesReceived))
	assert.Equal(t, int64(0), atomic.LoadInt64(&metrics.Notifications))
}

func TestNewClient_FillsDefaults(t *testing.T) {
	client := NewClient(ClientConfig{URL: "ws://x", ProgramID: "p"}, newCaptureSink(), nil)

	defaults := DefaultClientConfig()
	assert.Equal(t, defaults.PingInterval, client.config.PingInterval)
	assert.Equal(t, defaults.ReconnectDelay, client.config.ReconnectDelay)
	assert.Equal(t, StateDisconnected, client.State())
}
