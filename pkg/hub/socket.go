package hub

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// SocketID is process-unique for the lifetime of a connection.
type SocketID uint64

var (
	// ErrAlreadyBound is returned when a socket that carries an identity is
	// asked to bind another one. Bindings are never overwritten.
	ErrAlreadyBound = errors.New("socket already bound to an identity")

	// ErrSendBufferFull means the socket's outbound queue was full. The hub
	// treats it like a transport write failure and removes the socket.
	ErrSendBufferFull = errors.New("socket send buffer full")

	// ErrSocketClosed means the socket was torn down before the send.
	ErrSocketClosed = errors.New("socket closed")
)

// Conn is the transport surface the hub needs. *websocket.Conn satisfies it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Socket owns the exclusive outbound write path for one connection. Frames
// are queued on a bounded channel and written by a single goroutine, so
// writes to one connection never interleave.
type Socket struct {
	id   SocketID
	conn Conn

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu       sync.RWMutex
	identity *uuid.UUID
}

func newSocket(id SocketID, conn Conn, sendBuffer int) *Socket {
	if sendBuffer < 1 {
		sendBuffer = 1
	}
	return &Socket{
		id:   id,
		conn: conn,
		out:  make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

func (s *Socket) ID() SocketID {
	return s.id
}

// Identity returns the bound identity, if any. The ingestion loop snapshots
// this at frame receipt; it is not re-checked at dispatch time.
func (s *Socket) Identity() (uuid.UUID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return uuid.UUID{}, false
	}
	return *s.identity, true
}

// bind sets the identity exactly once.
func (s *Socket) bind(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity != nil {
		return ErrAlreadyBound
	}
	s.identity = &id
	return nil
}

// enqueue hands a frame to the writer goroutine without blocking. A full
// buffer is reported as a send failure rather than stalling the caller.
func (s *Socket) enqueue(payload []byte) error {
	select {
	case <-s.done:
		return ErrSocketClosed
	default:
	}
	select {
	case s.out <- payload:
		return nil
	case <-s.done:
		return ErrSocketClosed
	default:
		return ErrSendBufferFull
	}
}

// close is idempotent and releases the writer goroutine.
func (s *Socket) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// writeLoop drains the outbound queue onto the transport. A failed write
// removes the socket from the hub; remaining queued frames are discarded.
func (s *Socket) writeLoop(h *Hub) {
	for {
		select {
		case payload := <-s.out:
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.reportWriteFailure(s, err)
				return
			}
		case <-s.done:
			return
		}
	}
}
