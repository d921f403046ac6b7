package conns

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/fy-st0rm/lobic/internal/metrics"
)

const (
	// outboxCapacity bounds the per-connection send queue. When full, the
	// oldest frame is dropped so slow readers never stall the engine.
	outboxCapacity = 100

	writeDeadline = 5 * time.Second
	pingInterval  = 30 * time.Second
	pongDeadline  = 60 * time.Second
)

// Sender serializes all writes to a single websocket connection through one
// writer goroutine and keeps the connection alive with pings.
type Sender struct {
	conn     *websocket.Conn
	clock    clockwork.Clock
	outbox   chan []byte
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewSender wraps the connection and starts its writer goroutine.
func NewSender(conn *websocket.Conn, clock clockwork.Clock) *Sender {
	s := &Sender{
		conn:   conn,
		clock:  clock,
		outbox: make(chan []byte, outboxCapacity),
		done:   make(chan struct{}),
	}

	_ = conn.SetReadDeadline(s.clock.Now().Add(pongDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(s.clock.Now().Add(pongDeadline))
	})

	s.wg.Add(1)
	go s.writeLoop()
	return s
}

// Send marshals v and queues it for delivery. It never blocks.
func (s *Sender) Send(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal outbound frame", "error", err)
		return
	}
	s.Push(data)
}

// Push queues a pre-encoded frame. If the outbox is full the oldest queued
// frame is discarded to make room; if it is still full the new frame is
// dropped instead.
func (s *Sender) Push(data []byte) {
	select {
	case <-s.done:
		return
	default:
	}

	select {
	case s.outbox <- data:
		metrics.FramesSent.Inc()
		return
	default:
	}

	select {
	case <-s.outbox:
		metrics.FramesDropped.Inc()
	default:
	}

	select {
	case s.outbox <- data:
		metrics.FramesSent.Inc()
	default:
		metrics.FramesDropped.Inc()
	}
}

func (s *Sender) writeLoop() {
	defer s.wg.Done()

	ticker := s.clock.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-s.outbox:
			if err := s.write(websocket.TextMessage, data); err != nil {
				slog.Debug("websocket write failed", "error", err)
				return
			}

		case <-ticker.Chan():
			if err := s.write(websocket.PingMessage, nil); err != nil {
				metrics.PingFailures.Inc()
				slog.Debug("websocket ping failed", "error", err)
				return
			}

		case <-s.done:
			// Drain what is already queued before closing.
			for {
				select {
				case data := <-s.outbox:
					if err := s.write(websocket.TextMessage, data); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

func (s *Sender) write(messageType int, data []byte) error {
	if err := s.conn.SetWriteDeadline(s.clock.Now().Add(writeDeadline)); err != nil {
		return err
	}
	return s.conn.WriteMessage(messageType, data)
}

// Stop terminates the writer goroutine and closes the connection. Safe to
// call multiple times.
func (s *Sender) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		_ = s.conn.Close()
	})
}

// StopGraceful sends a close frame with the given reason before stopping.
func (s *Sender) StopGraceful(reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, s.clock.Now().Add(writeDeadline))
	s.Stop()
}
