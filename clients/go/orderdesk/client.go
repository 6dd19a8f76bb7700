// Package orderdesk provides a client for the orderdesk realtime chat.
package orderdesk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Client talks to an orderdesk server over HTTP and websocket.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client

	conn *websocket.Conn
}

// NewClient creates a client for the given server base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

// Login authenticates a client account and stores the access token.
func (c *Client) Login(username, password string) error {
	body, _ := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	resp, err := c.HTTPClient.Post(c.BaseURL+"/api/client/login", "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: %s", resp.Status)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return err
	}
	c.Token = tr.AccessToken
	return nil
}

// Event is one server push received over the websocket.
type Event struct {
	Event string `json:"event"`
	Data  struct {
		ID              int64     `json:"id"`
		UserID          int64     `json:"user_id"`
		Direction       string    `json:"direction"`
		Text            string    `json:"text"`
		OrderID         *int64    `json:"order_id"`
		CreatedAt       time.Time `json:"created_at"`
		ClientMessageID string    `json:"client_message_id"`
	} `json:"data"`
}

// Connect opens the websocket using the stored token.
func (c *Client) Connect() error {
	if c.Token == "" {
		return fmt.Errorf("not authenticated")
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	u.RawQuery = "token=" + url.QueryEscape(c.Token)

	conn, resp, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("connect refused: %s", resp.Status)
		}
		return err
	}
	c.conn = conn
	return nil
}

// Close shuts the websocket down.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

func (c *Client) emit(event string, data interface{}) error {
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return c.conn.WriteJSON(map[string]interface{}{
		"event": event,
		"data":  json.RawMessage(payload),
	})
}

// JoinOrder subscribes to an order's chat thread.
func (c *Client) JoinOrder(orderID int64) error {
	return c.emit("join_order_room", map[string]int64{"order_id": orderID})
}

// LeaveOrder unsubscribes from an order's chat thread.
func (c *Client) LeaveOrder(orderID int64) error {
	return c.emit("leave_order_room", map[string]int64{"order_id": orderID})
}

// SendOrderMessage sends a message into an order thread.
func (c *Client) SendOrderMessage(orderID int64, text, clientMessageID string) error {
	return c.emit("send_message", map[string]interface{}{
		"order_id":          orderID,
		"text":              text,
		"client_message_id": clientMessageID,
	})
}

// SendSupportMessage sends a message into the account's support channel.
func (c *Client) SendSupportMessage(text, clientMessageID string) error {
	return c.emit("send_user_message", map[string]interface{}{
		"text":              text,
		"client_message_id": clientMessageID,
	})
}

// Next blocks until the server pushes the next event.
func (c *Client) Next() (*Event, error) {
	if c.conn == nil {
		return nil, fmt.Errorf("not connected")
	}
	var ev Event
	if err := c.conn.ReadJSON(&ev); err != nil {
		return nil, err
	}
	return &ev, nil
}
