package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orderdesk/orderdesk/internal/auth"
	"github.com/orderdesk/orderdesk/internal/metrics"
	"github.com/orderdesk/orderdesk/internal/models"
)

// TokenVerifier validates a raw credential and yields the identity it
// carries.
type TokenVerifier interface {
	Verify(token string) (*auth.Identity, error)
}

// MessageStore persists chat messages. AppendMessage must be atomic: either
// the message is durably stored with its assigned id and timestamp, or an
// error is returned and nothing is delivered.
type MessageStore interface {
	AppendMessage(ctx context.Context, m *models.Message) (*models.Message, error)
}

// Hub owns session and room state for the realtime layer and applies the
// persist-before-broadcast rule for every message that passes through it.
type Hub struct {
	verifier TokenVerifier
	store    MessageStore
	sessions *Registry
	rooms    *RoomIndex
	logger   zerolog.Logger

	// sendMu serializes the persist+broadcast pair per room so delivery
	// order within a room always matches persistence order.
	sendMu sync.Mutex
	seq    map[string]*sync.Mutex
}

// NewHub creates a hub with empty session and room state.
func NewHub(verifier TokenVerifier, store MessageStore, logger zerolog.Logger) *Hub {
	return &Hub{
		verifier: verifier,
		store:    store,
		sessions: NewRegistry(),
		rooms:    NewRoomIndex(),
		logger:   logger.With().Str("component", "chat").Logger(),
		seq:      make(map[string]*sync.Mutex),
	}
}

// roomLock returns the mutex owning a room's send sequence. Locks live for
// the life of the process; the set is bounded by rooms that saw traffic.
func (h *Hub) roomLock(room string) *sync.Mutex {
	h.sendMu.Lock()
	defer h.sendMu.Unlock()
	mu, ok := h.seq[room]
	if !ok {
		mu = &sync.Mutex{}
		h.seq[room] = mu
	}
	return mu
}

// Authenticate verifies a connection credential before any session state is
// created. Callers must refuse the connection when an error is returned.
func (h *Hub) Authenticate(token string) (*auth.Identity, error) {
	return h.verifier.Verify(token)
}

// Admit registers a new session for a verified identity and subscribes it to
// the user's personal support room. The returned session id addresses the
// connection for the rest of its lifetime.
func (h *Hub) Admit(identity auth.Identity, out Outbound) *Session {
	s := newSession(identity, out)
	h.sessions.add(s)
	h.joinRoom(s, UserRoom(identity.UserID))

	metrics.ChatConnections.Inc()
	h.logger.Info().
		Str("session_id", s.ID.String()).
		Int64("user_id", identity.UserID).
		Str("role", identity.Role).
		Msg("session admitted")
	return s
}

// Disconnect tears down a session: it leaves every joined room and is
// removed from the registry. Disconnecting an unknown session is a no-op.
func (h *Hub) Disconnect(id uuid.UUID) {
	s := h.sessions.Get(id)
	if s == nil {
		return
	}
	for _, room := range s.Rooms() {
		s.trackLeave(room)
		h.rooms.Leave(room, s)
	}
	if h.sessions.remove(id) {
		metrics.ChatConnections.Dec()
		h.logger.Info().
			Str("session_id", id.String()).
			Int64("user_id", s.Identity.UserID).
			Msg("session closed")
	}
}

// Connections returns the number of live sessions.
func (h *Hub) Connections() int {
	return h.sessions.Len()
}

func (h *Hub) joinRoom(s *Session, room string) {
	if !s.trackJoin(room) {
		return
	}
	h.rooms.Join(room, s)
}

func (h *Hub) leaveRoom(s *Session, room string) {
	if !s.trackLeave(room) {
		return
	}
	h.rooms.Leave(room, s)
}

// JoinUserRoom re-subscribes the session to its own support room. The room
// is already joined on admission, so this is normally a no-op kept for
// clients that send an explicit join after connecting.
func (h *Hub) JoinUserRoom(id uuid.UUID) {
	s := h.sessions.Get(id)
	if s == nil {
		return
	}
	h.joinRoom(s, UserRoom(s.Identity.UserID))
}

// JoinOrder subscribes the session to an order's discussion thread.
func (h *Hub) JoinOrder(id uuid.UUID, orderID int64) {
	s := h.sessions.Get(id)
	if s == nil || orderID <= 0 {
		return
	}
	h.joinRoom(s, OrderRoom(orderID))
}

// LeaveOrder unsubscribes the session from an order's discussion thread.
func (h *Hub) LeaveOrder(id uuid.UUID, orderID int64) {
	s := h.sessions.Get(id)
	if s == nil || orderID <= 0 {
		return
	}
	h.leaveRoom(s, OrderRoom(orderID))
}

// directionFor maps the sender's role onto the stored message direction:
// staff messages flow out to the user, everything else flows in.
func directionFor(identity auth.Identity) string {
	if identity.Role == models.RoleAdmin {
		return models.DirectionOut
	}
	return models.DirectionIn
}

// SendOrderMessage persists a message into an order thread and fans it out
// to the thread's current members. Empty text (after trimming) and
// non-positive order ids are dropped without a reply. A persistence failure
// aborts the send: nothing is delivered and the error propagates so the
// connection can be torn down.
func (h *Hub) SendOrderMessage(ctx context.Context, id uuid.UUID, orderID int64, text, clientMessageID string) error {
	s := h.sessions.Get(id)
	if s == nil {
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" || orderID <= 0 {
		return nil
	}

	room := OrderRoom(orderID)
	mu := h.roomLock(room)
	mu.Lock()
	defer mu.Unlock()

	msg := &models.Message{
		UserID:      s.Identity.UserID,
		Username:    s.Identity.Username,
		Direction:   directionFor(s.Identity),
		Text:        text,
		OrderID:     &orderID,
		MessageType: models.MessageTypeText,
	}
	stored, err := h.store.AppendMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("append order message: %w", err)
	}
	metrics.MessagesStored.WithLabelValues("order").Inc()

	h.broadcast(room, Envelope{
		Event: EventNewMessage,
		Data:  payloadFor(stored, clientMessageID),
	})
	return nil
}

// SendSupportMessage persists a message into the sender's personal support
// channel and fans it out to the members of that room, which includes the
// sender and any staff session observing the user. Empty text is dropped
// without a reply; persistence failures abort the send.
func (h *Hub) SendSupportMessage(ctx context.Context, id uuid.UUID, text, clientMessageID string) error {
	s := h.sessions.Get(id)
	if s == nil {
		return nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	room := UserRoom(s.Identity.UserID)
	mu := h.roomLock(room)
	mu.Lock()
	defer mu.Unlock()

	msg := &models.Message{
		UserID:      s.Identity.UserID,
		Username:    s.Identity.Username,
		Direction:   directionFor(s.Identity),
		Text:        text,
		MessageType: models.MessageTypeText,
	}
	stored, err := h.store.AppendMessage(ctx, msg)
	if err != nil {
		return fmt.Errorf("append support message: %w", err)
	}
	metrics.MessagesStored.WithLabelValues("support").Inc()

	h.broadcast(room, Envelope{
		Event: EventNewSupportMessage,
		Data:  payloadFor(stored, clientMessageID),
	})
	return nil
}

// NotifyUser fans an already-persisted message out to a user's support
// room. Used by the HTTP layer after staff reply to a user. It takes the
// room's send lock so it cannot overtake an in-flight socket send.
func (h *Hub) NotifyUser(userID int64, m *models.Message) {
	room := UserRoom(userID)
	mu := h.roomLock(room)
	mu.Lock()
	defer mu.Unlock()
	h.broadcast(room, Envelope{
		Event: EventNewSupportMessage,
		Data:  payloadFor(m, ""),
	})
}

// NotifyOrder fans an already-persisted message out to an order thread.
func (h *Hub) NotifyOrder(orderID int64, m *models.Message) {
	room := OrderRoom(orderID)
	mu := h.roomLock(room)
	mu.Lock()
	defer mu.Unlock()
	h.broadcast(room, Envelope{
		Event: EventNewMessage,
		Data:  payloadFor(m, ""),
	})
}

// broadcast delivers an envelope to a snapshot of the room's members taken
// after persistence. Members joining after the snapshot do not receive the
// event; recipients that cannot accept it are skipped.
func (h *Hub) broadcast(room string, env Envelope) {
	for _, member := range h.rooms.MembersOf(room) {
		if member.out.TrySend(env) {
			metrics.MessagesDelivered.Inc()
			continue
		}
		metrics.DeliveryDrops.Inc()
		h.logger.Warn().
			Str("session_id", member.ID.String()).
			Str("room", room).
			Msg("delivery dropped")
	}
}
