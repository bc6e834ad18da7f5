package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/session"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	actionTimeout  = 10 * time.Second
)

// Client is one browser connection. It hosts at most one room session at
// a time and relays that session's output.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	who  domain.Identity

	mu      sync.Mutex
	send    chan []byte
	closed  bool
	session *session.Session
	stop    context.CancelFunc
}

func NewClient(hub *Hub, conn *websocket.Conn, who domain.Identity) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		who:  who,
		send: make(chan []byte, 256),
	}
}

func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("user", c.who.ID.String()).Msg("websocket error")
			}
			break
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug().Err(err).Msg("failed to unmarshal message")
			c.sendError("INVALID_MESSAGE", "Message is not valid JSON")
			continue
		}

		c.handleMessage(&msg)
	}
}

func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(msg *Message) {
	switch msg.Type {
	case MessageTypeJoinRoom:
		var payload JoinRoomPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError("INVALID_PAYLOAD", "Invalid join room payload")
			return
		}
		c.hub.JoinRoom(c, payload.RoomID)

	case MessageTypeSetSecret:
		var payload SetSecretPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError("INVALID_PAYLOAD", "Invalid set secret payload")
			return
		}
		c.act(func(ctx context.Context, s *session.Session) error {
			return s.SetSecret(ctx, payload.Code)
		})

	case MessageTypeSubmitGuess:
		var payload SubmitGuessPayload
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			c.sendError("INVALID_PAYLOAD", "Invalid submit guess payload")
			return
		}
		c.act(func(ctx context.Context, s *session.Session) error {
			return s.SubmitGuess(ctx, payload.Guess)
		})

	case MessageTypeReset:
		c.act(func(ctx context.Context, s *session.Session) error {
			return s.Reset(ctx)
		})

	case MessageTypeLeave:
		c.act(func(ctx context.Context, s *session.Session) error {
			return s.Leave(ctx)
		})

	default:
		c.sendError("UNKNOWN_MESSAGE", "Unknown message type")
	}
}

// act runs fn against the current session and reports its error.
func (c *Client) act(fn func(ctx context.Context, s *session.Session) error) {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		c.sendError(session.CodeNotInRoom, "Join a room first")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()
	if err := fn(ctx, s); err != nil {
		c.sendError(session.ErrorCode(err), err.Error())
	}
}

// attach makes s the client's session, stopping any previous one.
func (c *Client) attach(s *session.Session, stop context.CancelFunc) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	if c.stop != nil {
		c.stop()
	}
	c.session, c.stop = s, stop
	return true
}

// detach clears s if it is still the client's session.
func (c *Client) detach(s *session.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == s {
		c.session, c.stop = nil, nil
	}
}

// State implements session.Sink.
func (c *Client) State(v session.View) {
	c.emit(MessageTypeStateSync, StateSyncPayload{View: v})
}

// TimerTick implements session.Sink.
func (c *Client) TimerTick(turn domain.Seat, secondsLeft int) {
	c.emit(MessageTypeTimerTick, TimerTickPayload{Turn: turn, SecondsLeft: secondsLeft})
}

// Notice implements session.Sink.
func (c *Client) Notice(code, message string) {
	c.emit(MessageTypeNotice, NoticePayload{Code: code, Message: message})
}

// Closed implements session.Sink.
func (c *Client) Closed(reason string) {
	c.emit(MessageTypeRoomClosed, RoomClosedPayload{Reason: reason})
}

func (c *Client) sendError(code, message string) {
	c.emit(MessageTypeError, ErrorPayload{
		Code:    code,
		Message: message,
	})
}

func (c *Client) emit(msgType MessageType, payload interface{}) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("type", string(msgType)).Msg("failed to build message")
		return
	}
	c.Send(msg)
}

// Send queues msg for the write pump. Messages for a slow or closed
// connection are dropped; the next STATE_SYNC carries the full view.
func (c *Client) Send(msg *Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Warn().Str("user", c.who.ID.String()).Str("type", string(msg.Type)).Msg("send buffer full, dropping message")
	}
}

// Close stops the client's session and ends the write pump.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.stop != nil {
		c.stop()
	}
	c.session, c.stop = nil, nil
	close(c.send)
}
