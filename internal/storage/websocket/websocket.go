// Package websocket implements storage.Backend by streaming runs to a WebSocket
// server as they are simulated.
package websocket

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cxd309/tampere-platoon/internal/config"
	"github.com/cxd309/tampere-platoon/internal/core"
)

const (
	sendChSize = 10_000
	writeWait  = 10 * time.Second
)

var (
	// ErrClosed is returned when sending on a closed backend.
	ErrClosed = errors.New("websocket backend closed")

	// ErrQueueFull is returned when a message is dropped because the write loop is behind.
	ErrQueueFull = errors.New("websocket send queue full")
)

// Backend streams run data to a WebSocket server from a single write goroutine.
type Backend struct {
	cfg    config.WebSocketConfig
	logger zerolog.Logger

	mu     sync.Mutex
	conn   *ws.Conn
	sendCh chan []byte
	closed bool
	wg     sync.WaitGroup
}

// New creates a new WebSocket storage backend.
func New(cfg config.WebSocketConfig, logger zerolog.Logger) *Backend {
	return &Backend{
		cfg:    cfg,
		logger: logger.With().Str("component", "storage.websocket").Logger(),
		sendCh: make(chan []byte, sendChSize),
	}
}

// Init connects to the WebSocket server and starts the write loop.
func (b *Backend) Init() error {
	u, err := url.Parse(b.cfg.URL)
	if err != nil {
		return fmt.Errorf("invalid websocket URL: %w", err)
	}
	if b.cfg.Secret != "" {
		q := u.Query()
		q.Set("secret", b.cfg.Secret)
		u.RawQuery = q.Encode()
	}

	conn, _, err := ws.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("websocket dial failed: %w", err)
	}

	b.mu.Lock()
	b.conn = conn
	b.mu.Unlock()

	b.wg.Add(1)
	go b.writeLoop(conn)
	return nil
}

// Close drains queued messages, sends a close frame and disconnects.
func (b *Backend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.sendCh)
	conn := b.conn
	b.mu.Unlock()

	b.wg.Wait()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// writeLoop drains sendCh until it is closed. A write error ends streaming; the
// remaining messages are discarded.
func (b *Backend) writeLoop(conn *ws.Conn) {
	defer b.wg.Done()

	failed := false
	for data := range b.sendCh {
		if failed {
			continue
		}
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			b.logger.Warn().Err(err).Msg("WebSocket SetWriteDeadline error")
			failed = true
			continue
		}
		if err := conn.WriteMessage(ws.TextMessage, data); err != nil {
			b.logger.Warn().Err(err).Msg("WebSocket write error")
			failed = true
		}
	}

	if !failed {
		msg := ws.FormatCloseMessage(ws.CloseNormalClosure, "")
		_ = conn.WriteControl(ws.CloseMessage, msg, time.Now().Add(writeWait))
	}
}

// send queues an envelope for the write loop. It never blocks; a full queue drops
// the message and returns ErrQueueFull.
func (b *Backend) send(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrClosed
	}
	select {
	case b.sendCh <- data:
	default:
		b.logger.Warn().Str("type", msgType).Msg("send queue full, dropping message")
		return fmt.Errorf("%s: %w", msgType, ErrQueueFull)
	}
	return nil
}

func (b *Backend) StartRun(run *core.Run) error {
	return b.send(TypeStartRun, run)
}

func (b *Backend) RecordStep(step *core.Step) error {
	return b.send(TypeStep, step)
}

func (b *Backend) EndRun() error {
	return b.send(TypeEndRun, nil)
}
