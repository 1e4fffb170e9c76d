// Package hub tracks live websocket connections and the identities bound to
// them, and feeds decoded client commands to the dispatch queue.
package hub

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fernwick/chatter/internal/telemetry"
	"github.com/fernwick/chatter/pkg/protocol"
)

// Envelope is the unit of work on the dispatch queue: a decoded command
// tagged with its socket and the identity bound to that socket when the
// frame arrived.
type Envelope struct {
	Socket   SocketID
	Identity *uuid.UUID
	Cmd      protocol.Command
}

// Hub is the connection registry. It is mutated both by the dispatch loop
// (binds, sends) and by per-connection read loops (teardown), so every table
// carries its own lock; no lock spans a send.
type Hub struct {
	log        *zap.Logger
	queue      chan<- Envelope
	sendBuffer int

	nextID atomic.Uint64

	mu      sync.RWMutex
	sockets map[SocketID]*Socket

	cmu     sync.RWMutex
	clients map[uuid.UUID]*Client
}

func New(queue chan<- Envelope, sendBuffer int, log *zap.Logger) *Hub {
	return &Hub{
		log:        log,
		queue:      queue,
		sendBuffer: sendBuffer,
		sockets:    make(map[SocketID]*Socket),
		clients:    make(map[uuid.UUID]*Client),
	}
}

// Register allocates a fresh socket for conn and starts its writer.
func (h *Hub) Register(conn Conn) *Socket {
	s := newSocket(SocketID(h.nextID.Add(1)), conn, h.sendBuffer)

	h.mu.Lock()
	h.sockets[s.id] = s
	h.mu.Unlock()

	go s.writeLoop(h)

	telemetry.OpenConnections.Inc()
	h.log.Debug("socket registered", zap.Uint64("socket", uint64(s.id)))
	return s
}

// Deregister removes the socket and, if it carried an identity, detaches it
// from that identity's client, destroying the client when the set empties.
// It is idempotent; teardown races between the read loop, the write loop and
// an explicit Disconnect all funnel through here.
func (h *Hub) Deregister(id SocketID) {
	h.mu.Lock()
	s, ok := h.sockets[id]
	if ok {
		delete(h.sockets, id)
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	s.close()
	telemetry.OpenConnections.Dec()

	identity, bound := s.Identity()
	if !bound {
		return
	}

	h.cmu.Lock()
	if c, ok := h.clients[identity]; ok {
		if c.remove(id) == 0 {
			delete(h.clients, identity)
			telemetry.AuthenticatedIdentities.Dec()
		}
	}
	h.cmu.Unlock()

	h.log.Debug("socket deregistered",
		zap.Uint64("socket", uint64(id)),
		zap.String("identity", identity.String()))
}

// Bind attaches identity to the socket and adds it to the identity's client,
// creating the client if this is the identity's first live socket. Only one
// creation wins under concurrent first binds. A socket that already carries
// an identity is rejected with ErrAlreadyBound. A socket that has already
// disappeared is a silent no-op.
//
// The registry lock is held across the bind and the client insert. A
// concurrent Deregister either completes first (socket absent here, no-op)
// or waits for the insert and then observes the bound identity, so it can
// never skip the client teardown and strand a client whose only socket is
// gone.
func (h *Hub) Bind(id SocketID, identity uuid.UUID) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s, ok := h.sockets[id]
	if !ok {
		return nil
	}

	if err := s.bind(identity); err != nil {
		return err
	}

	h.cmu.Lock()
	if c, ok := h.clients[identity]; ok {
		c.add(s)
	} else {
		h.clients[identity] = newClient(s)
		telemetry.AuthenticatedIdentities.Inc()
	}
	h.cmu.Unlock()
	return nil
}

// SendToSocket queues payload on one socket. An absent socket is a no-op; a
// failed send removes the socket and is reported to the caller.
func (h *Hub) SendToSocket(id SocketID, payload []byte) error {
	h.mu.RLock()
	s, ok := h.sockets[id]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	if err := s.enqueue(payload); err != nil {
		h.reportWriteFailure(s, err)
		return err
	}
	return nil
}

// SendToIdentity fans payload out to every socket bound to identity. Each
// socket's send is independent: a failure removes that socket only and never
// surfaces to the message's originator. An unknown identity is a no-op.
func (h *Hub) SendToIdentity(identity uuid.UUID, payload []byte) {
	h.cmu.RLock()
	c, ok := h.clients[identity]
	h.cmu.RUnlock()
	if !ok {
		return
	}
	for _, s := range c.snapshot() {
		if err := s.enqueue(payload); err != nil {
			h.reportWriteFailure(s, err)
		}
	}
}

// SendToIdentities reuses one serialized payload across every target.
func (h *Hub) SendToIdentities(identities []uuid.UUID, payload []byte) {
	for _, identity := range identities {
		h.SendToIdentity(identity, payload)
	}
}

func (h *Hub) reportWriteFailure(s *Socket, err error) {
	telemetry.SendFailures.Inc()
	h.log.Warn("send failed, removing socket",
		zap.Uint64("socket", uint64(s.id)),
		zap.Error(err))
	h.Deregister(s.id)
}

// Serve runs the ingestion loop for one connection: register, read frames,
// decode, tag with the currently bound identity, enqueue. Decode failures
// drop the frame and keep the connection; read errors (including close
// frames) end the loop and deregister the socket. Enqueueing blocks this
// connection's reader when the dispatch queue is full.
func (h *Hub) Serve(conn Conn) {
	s := h.Register(conn)
	defer h.Deregister(s.id)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			h.log.Debug("socket read ended", zap.Uint64("socket", uint64(s.id)), zap.Error(err))
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		cmd, err := protocol.DecodeCommand(data)
		if err != nil {
			telemetry.DroppedFrames.Inc()
			h.log.Warn("dropping undecodable frame",
				zap.Uint64("socket", uint64(s.id)),
				zap.Error(err))
			continue
		}

		env := Envelope{Socket: s.id, Cmd: cmd}
		if identity, ok := s.Identity(); ok {
			env.Identity = &identity
		}
		h.queue <- env
	}
}
