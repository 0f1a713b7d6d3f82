// Package binance maintains a live trade subscription against a
// Binance-compatible combined stream endpoint. The client normalizes inbound
// trade events, delivers them through injected handlers, and recovers from
// drops with capped exponential backoff and an idle-liveness heartbeat.
package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"crypto-dashboard/internal/domain"
	"crypto-dashboard/internal/observability"
)

// Config configures stream client behavior.
type Config struct {
	// Endpoint is the websocket base URL, without the /stream suffix.
	Endpoint string
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// HeartbeatInterval is how often idle liveness is checked.
	HeartbeatInterval time.Duration
	// IdleThreshold is how long the socket may stay silent before a
	// keep-alive frame is sent.
	IdleThreshold time.Duration
	// WriteTimeout is the deadline for outbound frames.
	WriteTimeout time.Duration
	// HandshakeTimeout is the deadline for the dial handshake.
	HandshakeTimeout time.Duration
}

// DefaultConfig returns default stream client configuration.
func DefaultConfig() Config {
	return Config{
		Endpoint:          "wss://data-stream.binance.vision",
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 15 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		IdleThreshold:     45 * time.Second,
		WriteTimeout:      10 * time.Second,
		HandshakeTimeout:  10 * time.Second,
	}
}

// Handlers receive normalized events and lifecycle changes. Handlers are
// invoked from the client's internal goroutines; OnTrade is always called
// from a single goroutine, so per-symbol delivery order matches socket order.
type Handlers struct {
	OnTrade  func(domain.TradeEvent)
	OnStatus func(domain.ConnectionState)
	OnError  func(error)
}

// session is one live socket. Reconnects replace the whole session.
type session struct {
	conn      *websocket.Conn
	done      chan struct{}
	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
}

// writeMessage sends one frame. The connection allows at most one concurrent
// writer, so all outbound frames are serialized through writeMu.
func (s *session) writeMessage(messageType int, data []byte, deadline time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(deadline)
	return s.conn.WriteMessage(messageType, data)
}

// writeJSON sends one JSON frame, serialized through writeMu like
// writeMessage.
func (s *session) writeJSON(v interface{}, deadline time.Time) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(deadline)
	return s.conn.WriteJSON(v)
}

// StreamClient is a self-healing trade stream subscription. The state
// machine is idle → connecting → open ⇄ reconnecting → closed, with closed
// reachable from any state via Disconnect. The client is terminal only when
// the user disconnects; otherwise it reconnects indefinitely.
type StreamClient struct {
	cfg      Config
	handlers Handlers
	logger   *zap.Logger

	mu             sync.Mutex
	sess           *session
	state          domain.ConnectionState
	symbols        []string
	attempts       int
	reconnectTimer *time.Timer

	closedByUser atomic.Bool
	lastMessage  atomic.Int64 // ms since epoch
	wg           sync.WaitGroup
}

// NewStreamClient creates a stream client in the idle state.
func NewStreamClient(cfg Config, handlers Handlers, logger *zap.Logger) *StreamClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamClient{
		cfg:      cfg,
		handlers: handlers,
		logger:   logger,
		state:    domain.StateIdle,
	}
}

// Connect opens a combined subscription for the given symbol set. An empty
// symbol set is a no-op: no socket is ever opened for zero subscriptions.
func (c *StreamClient) Connect(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}

	normalized := make([]string, len(symbols))
	for i, s := range symbols {
		normalized[i] = strings.ToLower(s)
	}
	sort.Strings(normalized)

	c.closedByUser.Store(false)
	return c.connect(ctx, normalized)
}

// connect dials and starts a session. Reconnect attempts re-enter here
// without resetting the user-terminated flag.
func (c *StreamClient) connect(ctx context.Context, normalized []string) error {
	c.mu.Lock()
	if c.sess != nil {
		c.mu.Unlock()
		return fmt.Errorf("already connected")
	}
	c.symbols = normalized
	retry := c.attempts > 0
	c.mu.Unlock()

	if retry {
		c.setState(domain.StateReconnecting)
	} else {
		c.setState(domain.StateConnecting)
	}

	url := c.cfg.Endpoint + "/stream?streams=" + streamPath(normalized)
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		err = fmt.Errorf("websocket dial: %w", err)
		if c.handlers.OnError != nil {
			c.handlers.OnError(err)
		}
		c.setState(domain.StateClosed)
		if !c.closedByUser.Load() {
			c.scheduleReconnect()
		}
		return err
	}

	if c.closedByUser.Load() {
		// Disconnected while the dial was in flight.
		conn.Close()
		c.setState(domain.StateClosed)
		return nil
	}

	sess := &session{conn: conn, done: make(chan struct{})}

	c.mu.Lock()
	c.sess = sess
	c.attempts = 0
	c.mu.Unlock()

	c.lastMessage.Store(time.Now().UnixMilli())
	c.setState(domain.StateOpen)

	c.wg.Add(2)
	go c.readLoop(sess)
	go c.heartbeatLoop(sess)

	return nil
}

// Disconnect terminates the session. It suppresses any scheduled reconnect,
// stops the heartbeat, and closes the socket. Idempotent.
func (c *StreamClient) Disconnect() {
	c.closedByUser.Store(true)

	c.mu.Lock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	sess := c.sess
	c.sess = nil
	c.mu.Unlock()

	if sess != nil {
		sess.writeMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.cfg.WriteTimeout))
		sess.close()
	}

	c.setState(domain.StateClosed)
	c.wg.Wait()
}

// State returns the current connection state.
func (c *StreamClient) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState records a transition and notifies the status handler. Repeated
// transitions to the same state are collapsed.
func (c *StreamClient) setState(state domain.ConnectionState) {
	c.mu.Lock()
	if c.state == state {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	if c.handlers.OnStatus != nil {
		c.handlers.OnStatus(state)
	}
}

// readLoop reads frames until the socket drops, then drives the close and
// reconnect handling.
func (c *StreamClient) readLoop(sess *session) {
	defer c.wg.Done()

	for {
		_, message, err := sess.conn.ReadMessage()
		if err != nil {
			sess.close()

			c.mu.Lock()
			if c.sess == sess {
				c.sess = nil
			}
			c.mu.Unlock()

			c.setState(domain.StateClosed)

			if !c.closedByUser.Load() {
				if c.handlers.OnError != nil {
					c.handlers.OnError(fmt.Errorf("websocket read: %w", err))
				}
				c.scheduleReconnect()
			}
			return
		}

		c.lastMessage.Store(time.Now().UnixMilli())
		c.handleMessage(message)
	}
}

// handleMessage parses one inbound frame. Malformed payloads are logged and
// dropped without affecting the connection.
func (c *StreamClient) handleMessage(message []byte) {
	var frame combinedStreamMessage
	if err := json.Unmarshal(message, &frame); err != nil {
		c.logger.Warn("dropping malformed stream frame", zap.Error(err))
		observability.RecordFrameDropped()
		return
	}

	if frame.Data.EventType != "trade" {
		return
	}

	event, err := frame.Data.toTradeEvent()
	if err != nil {
		c.logger.Warn("dropping unparseable trade event",
			zap.String("symbol", frame.Data.Symbol), zap.Error(err))
		observability.RecordFrameDropped()
		return
	}

	observability.RecordTradeProcessed()
	if c.handlers.OnTrade != nil {
		c.handlers.OnTrade(event)
	}
}

// heartbeatLoop sends a keep-alive frame when the socket has been silent
// past the idle threshold. Send failures are logged, not fatal; a dead
// connection surfaces through the read loop.
func (c *StreamClient) heartbeatLoop(sess *session) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.done:
			return
		case <-ticker.C:
			idle := time.Since(time.UnixMilli(c.lastMessage.Load()))
			if idle <= c.cfg.IdleThreshold {
				continue
			}
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := sess.writeJSON(map[string]string{"method": "PING"}, deadline); err != nil {
				c.logger.Warn("heartbeat send failed", zap.Error(err))
			}
		}
	}
}

// scheduleReconnect arms a retry after an exponentially growing delay. The
// attempt is skipped if the session was meanwhile user-terminated.
func (c *StreamClient) scheduleReconnect() {
	c.mu.Lock()
	if c.closedByUser.Load() {
		c.mu.Unlock()
		return
	}
	c.attempts++
	observability.RecordStreamReconnect()
	delay := c.reconnectDelay(c.attempts)
	symbols := c.symbols
	c.reconnectTimer = time.AfterFunc(delay, func() {
		if c.closedByUser.Load() {
			return
		}
		// connect schedules the next attempt itself when the dial fails.
		_ = c.connect(context.Background(), symbols)
	})
	c.mu.Unlock()

	c.setState(domain.StateReconnecting)
}

// reconnectDelay returns the backoff for the given attempt number:
// base, base×2, base×4, ... capped at MaxReconnectDelay.
func (c *StreamClient) reconnectDelay(attempt int) time.Duration {
	delay := c.cfg.ReconnectDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.cfg.MaxReconnectDelay {
			return c.cfg.MaxReconnectDelay
		}
	}
	if delay > c.cfg.MaxReconnectDelay {
		delay = c.cfg.MaxReconnectDelay
	}
	return delay
}
