package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/orderdesk/orderdesk/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound frame size.
	maxMessageSize = 64 * 1024

	// Outbound buffer per connection. When full, deliveries are dropped
	// rather than blocking the hub.
	sendBufferSize = 256

	// Budget for persisting a single inbound message.
	persistTimeout = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Client is the websocket transport for one session. It owns the connection
// and pumps frames between the socket and the hub.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	logger zerolog.Logger

	send chan Envelope
	done chan struct{}
}

// TrySend queues an envelope for delivery without blocking. It returns
// false when the connection is closing or its buffer is full.
func (c *Client) TrySend(env Envelope) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- env:
		return true
	default:
		return false
	}
}

// ServeWS authenticates and upgrades a websocket request. The credential is
// taken from the "token" query parameter or a Bearer Authorization header;
// when it does not verify the request is refused with 401 before any
// upgrade happens.
func ServeWS(hub *Hub, logger zerolog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("token")
		if token == "" {
			if bearer := r.Header.Get("Authorization"); strings.HasPrefix(bearer, "Bearer ") {
				token = strings.TrimPrefix(bearer, "Bearer ")
			}
		}

		identity, err := hub.Authenticate(token)
		if err != nil {
			metrics.ChatUpgradesRejected.Inc()
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := &Client{
			hub:    hub,
			conn:   conn,
			logger: logger.With().Int64("user_id", identity.UserID).Logger(),
			send:   make(chan Envelope, sendBufferSize),
			done:   make(chan struct{}),
		}
		session := hub.Admit(*identity, client)

		go client.writePump()
		go client.readPump(session)
	}
}

// readPump reads frames from the socket and dispatches them to the hub.
// Malformed frames and unknown events are dropped without a reply. A
// persistence failure closes the connection.
func (c *Client) readPump(session *Session) {
	defer func() {
		c.hub.Disconnect(session.ID)
		close(c.done)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("unexpected close")
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}

		if err := c.dispatch(session, frame); err != nil {
			c.logger.Error().Err(err).Str("event", frame.Event).Msg("message handling failed")
			return
		}
	}
}

// dispatch routes one inbound frame. Only a persistence failure is an
// error; everything else that cannot be handled is silently ignored.
func (c *Client) dispatch(session *Session, frame Frame) error {
	switch frame.Event {
	case EventJoin:
		c.hub.JoinUserRoom(session.ID)

	case EventJoinOrderRoom:
		var req roomRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return nil
		}
		c.hub.JoinOrder(session.ID, req.OrderID)

	case EventLeaveOrder:
		var req roomRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return nil
		}
		c.hub.LeaveOrder(session.ID, req.OrderID)

	case EventSendMessage:
		var req sendRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		return c.hub.SendOrderMessage(ctx, session.ID, req.OrderID, req.Text, req.ClientMessageID)

	case EventSendUserMsg:
		var req sendRequest
		if err := json.Unmarshal(frame.Data, &req); err != nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		return c.hub.SendSupportMessage(ctx, session.ID, req.Text, req.ClientMessageID)
	}
	return nil
}

// writePump drains the send buffer onto the socket and keeps the
// connection alive with periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
