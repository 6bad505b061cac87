package ws

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait   = 10 * time.Second
	idleTimeout = 60 * time.Second
	// keepalive must fire before idleTimeout expires on the peer.
	keepalive = idleTimeout * 9 / 10

	queueDepth   = 16
	maxInboundSz = 512
)

type subscriber struct {
	conn   *websocket.Conn
	events map[string]bool
	out    chan []byte
}

func newSubscriber(conn *websocket.Conn, events map[string]bool) *subscriber {
	return &subscriber{
		conn:   conn,
		events: events,
		out:    make(chan []byte, queueDepth),
	}
}

func (s *subscriber) wants(event string) bool { return s.events[event] }

// offer queues frame without blocking and reports whether it fit.
func (s *subscriber) offer(frame []byte) bool {
	select {
	case s.out <- frame:
		return true
	default:
		return false
	}
}

// writeLoop owns all writes on the connection. It exits when out is closed
// or a write fails.
func (s *subscriber) writeLoop() {
	ping := time.NewTicker(keepalive)
	defer func() {
		ping.Stop()
		s.conn.Close()
	}()

	for {
		var (
			kind    = websocket.PingMessage
			payload []byte
		)
		select {
		case frame, open := <-s.out:
			if !open {
				s.conn.SetWriteDeadline(time.Now().Add(writeWait))
				s.conn.WriteMessage(websocket.CloseMessage, nil) //nolint:errcheck
				return
			}
			kind, payload = websocket.TextMessage, frame
		case <-ping.C:
		}

		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := s.conn.WriteMessage(kind, payload); err != nil {
			return
		}
	}
}

// readLoop discards inbound frames; it exists to service pongs and notice
// the peer hanging up.
func (s *subscriber) readLoop() {
	defer s.conn.Close()
	s.conn.SetReadLimit(maxInboundSz)
	s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
