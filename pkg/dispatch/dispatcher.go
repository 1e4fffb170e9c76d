// Package dispatch implements the protocol state machine. A single goroutine
// drains the shared queue in arrival order, so conversation writes and
// identity-binding decisions are never evaluated concurrently.
package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fernwick/chatter/internal/auth"
	"github.com/fernwick/chatter/internal/profile"
	"github.com/fernwick/chatter/internal/telemetry"
	"github.com/fernwick/chatter/pkg/history"
	"github.com/fernwick/chatter/pkg/hub"
	"github.com/fernwick/chatter/pkg/protocol"
)

type Dispatcher struct {
	hub      *hub.Hub
	store    *history.Store
	verifier auth.Verifier
	profiles profile.Source
	queue    <-chan hub.Envelope
	log      *zap.Logger
}

func New(h *hub.Hub, store *history.Store, verifier auth.Verifier, profiles profile.Source, queue <-chan hub.Envelope, log *zap.Logger) *Dispatcher {
	return &Dispatcher{
		hub:      h,
		store:    store,
		verifier: verifier,
		profiles: profiles,
		queue:    queue,
		log:      log,
	}
}

// Run consumes the queue until ctx is cancelled or the queue is closed. No
// envelope's failure ever ends the loop; every branch replies or logs and
// the next envelope is processed.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-d.queue:
			if !ok {
				return
			}
			d.dispatch(ctx, env)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, env hub.Envelope) {
	start := time.Now()
	telemetry.CommandsTotal.WithLabelValues(string(env.Cmd.Type)).Inc()
	defer func() {
		telemetry.DispatchDuration.WithLabelValues(string(env.Cmd.Type)).
			Observe(time.Since(start).Seconds())
	}()

	switch env.Cmd.Type {
	case protocol.CmdPing:
		_ = d.hub.SendToSocket(env.Socket, protocol.Pong())
	case protocol.CmdDisconnect:
		d.hub.Deregister(env.Socket)
	case protocol.CmdAuthenticate:
		d.authenticate(ctx, env)
	case protocol.CmdDirectMessage:
		d.relay(env, func(from uuid.UUID) protocol.ChatMessage {
			return protocol.ChatMessage{Type: protocol.EntryUser, From: from.String(), Message: env.Cmd.Message}
		})
	case protocol.CmdSetTopic:
		d.relay(env, func(from uuid.UUID) protocol.ChatMessage {
			return protocol.ChatMessage{Type: protocol.EntryTopic, From: from.String(), Topic: env.Cmd.Topic}
		})
	case protocol.CmdSyncChat:
		d.syncChat(env)
	case protocol.CmdSyncChatUsers:
		d.syncChatUsers(ctx, env)
	case protocol.CmdUserMeta:
		d.userMeta(ctx, env)
	}
}

// sendErr unicasts a protocol error to the offending socket only.
func (d *Dispatcher) sendErr(sock hub.SocketID, kind protocol.ErrKind) {
	telemetry.ProtocolErrors.WithLabelValues(string(kind)).Inc()
	_ = d.hub.SendToSocket(sock, protocol.ErrorFrame(kind))
}

// sender returns the identity snapshotted at receipt, or replies Unauthorized.
func (d *Dispatcher) sender(env hub.Envelope) (uuid.UUID, bool) {
	if env.Identity == nil {
		d.sendErr(env.Socket, protocol.ErrUnauthorized)
		return uuid.UUID{}, false
	}
	return *env.Identity, true
}

// target parses a command's counterpart field, or replies InvalidUuid.
func (d *Dispatcher) target(env hub.Envelope, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		d.sendErr(env.Socket, protocol.ErrInvalidUuid)
		return uuid.UUID{}, false
	}
	return id, true
}

func (d *Dispatcher) authenticate(ctx context.Context, env hub.Envelope) {
	d.log.Info("authentication attempt", zap.String("id", env.Cmd.ID))

	if env.Identity != nil {
		telemetry.AuthAttempts.WithLabelValues("already_authenticated").Inc()
		d.sendErr(env.Socket, protocol.ErrAlreadyAuthenticated)
		return
	}
	id, err := uuid.Parse(env.Cmd.ID)
	if err != nil {
		telemetry.AuthAttempts.WithLabelValues("invalid_uuid").Inc()
		d.sendErr(env.Socket, protocol.ErrInvalidUuid)
		return
	}
	if !d.verifier.Verify(ctx, id, env.Cmd.Secret) {
		telemetry.AuthAttempts.WithLabelValues("invalid_secret").Inc()
		d.sendErr(env.Socket, protocol.ErrInvalidSecret)
		return
	}

	// The envelope's identity snapshot can be stale: the socket may have
	// been bound by an envelope processed after this one's receipt. Bind
	// settles it authoritatively.
	if err := d.hub.Bind(env.Socket, id); err != nil {
		telemetry.AuthAttempts.WithLabelValues("already_authenticated").Inc()
		d.sendErr(env.Socket, protocol.ErrAlreadyAuthenticated)
		return
	}

	telemetry.AuthAttempts.WithLabelValues("ok").Inc()
	d.log.Info("authenticated", zap.String("id", id.String()))
	_ = d.hub.SendToSocket(env.Socket, protocol.Authenticated())
}

// relay appends an entry to the pair's conversation, records the open
// conversation both ways, and fans the frame out to both parties' sockets.
func (d *Dispatcher) relay(env hub.Envelope, entry func(from uuid.UUID) protocol.ChatMessage) {
	from, ok := d.sender(env)
	if !ok {
		return
	}
	to, ok := d.target(env, env.Cmd.To)
	if !ok {
		return
	}

	msg := entry(from)
	d.store.Push(from, to, msg)
	d.store.RecordOpen(from, to)

	participants := []string{from.String(), to.String()}
	d.hub.SendToIdentities([]uuid.UUID{from, to}, protocol.DirectMessageFrame(participants, msg))
}

func (d *Dispatcher) syncChat(env hub.Envelope) {
	from, ok := d.sender(env)
	if !ok {
		return
	}
	with, ok := d.target(env, env.Cmd.With)
	if !ok {
		return
	}

	msgs := d.store.Messages(from, with)
	participants := []string{from.String(), with.String()}
	_ = d.hub.SendToSocket(env.Socket, protocol.BulkMessagesFrame(participants, msgs))
}

func (d *Dispatcher) syncChatUsers(ctx context.Context, env hub.Envelope) {
	from, ok := d.sender(env)
	if !ok {
		return
	}

	counterparts := d.store.Counterparts(from)
	users := make([]protocol.User, 0, len(counterparts))
	for _, id := range counterparts {
		users = append(users, d.profiles.Lookup(ctx, id))
	}
	_ = d.hub.SendToSocket(env.Socket, protocol.BulkUsersFrame(users))
}

func (d *Dispatcher) userMeta(ctx context.Context, env hub.Envelope) {
	if _, ok := d.sender(env); !ok {
		return
	}
	with, ok := d.target(env, env.Cmd.With)
	if !ok {
		return
	}
	_ = d.hub.SendToSocket(env.Socket, protocol.UserMetaFrame(d.profiles.Lookup(ctx, with)))
}
