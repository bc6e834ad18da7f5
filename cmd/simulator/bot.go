package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/session"
	ws "github.com/jovywahba/jovnumbergames/internal/websocket"
)

var errRoomClosed = errors.New("room closed")

// Bot is a scripted player that joins a room over the WebSocket API and
// plays until the match ends.
type Bot struct {
	name  string
	url   string
	think time.Duration

	conn   *websocket.Conn
	codes  []string
	sentAt int
}

func NewBot(name, wsURL string, think time.Duration) *Bot {
	return &Bot{name: name, url: wsURL, think: think, sentAt: -1}
}

// Play joins roomID and returns the final view of the match.
func (b *Bot) Play(ctx context.Context, roomID string) (session.View, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return session.View{}, fmt.Errorf("dial: %w", err)
	}
	b.conn = conn
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	if err := b.send(ws.MessageTypeJoinRoom, ws.JoinRoomPayload{RoomID: roomID}); err != nil {
		return session.View{}, err
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return session.View{}, ctx.Err()
			}
			return session.View{}, fmt.Errorf("read: %w", err)
		}

		var msg ws.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			return session.View{}, fmt.Errorf("decode: %w", err)
		}

		switch msg.Type {
		case ws.MessageTypeStateSync:
			var payload ws.StateSyncPayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				return session.View{}, fmt.Errorf("decode view: %w", err)
			}
			done, err := b.onView(payload.View)
			if err != nil || done {
				return payload.View, err
			}

		case ws.MessageTypeError, ws.MessageTypeNotice:
			var payload ws.ErrorPayload
			json.Unmarshal(msg.Payload, &payload)
			fmt.Printf("  [%s] %s: %s\n", b.name, payload.Code, payload.Message)

		case ws.MessageTypeRoomClosed:
			return session.View{}, errRoomClosed
		}
	}
}

func (b *Bot) onView(v session.View) (bool, error) {
	if b.codes == nil && v.CodeLen > 0 {
		b.codes = allCodes(v.CodeLen)
	}

	if v.Status == domain.RoomStatusFinished && v.ResultsLogged {
		return true, nil
	}

	if v.CanSetSecret {
		time.Sleep(b.think)
		return false, b.send(ws.MessageTypeSetSecret, ws.SetSecretPayload{Code: randomCode(b.codes)})
	}

	mine := v.P1.Moves
	if v.Role == session.RoleP2 {
		mine = v.P2.Moves
	}
	if v.Status != domain.RoomStatusPlaying {
		b.sentAt = -1
		return false, nil
	}
	if !v.CanGuess || len(mine) == b.sentAt {
		return false, nil
	}

	left := candidates(b.codes, mine)
	if len(left) == 0 {
		left = b.codes
	}
	guess := randomCode(left)
	b.sentAt = len(mine)

	time.Sleep(b.think)
	fmt.Printf("  [%s] guess #%d: %s (%d candidates)\n", b.name, len(mine)+1, guess, len(left))
	return false, b.send(ws.MessageTypeSubmitGuess, ws.SubmitGuessPayload{Guess: guess})
}

func (b *Bot) send(msgType ws.MessageType, payload interface{}) error {
	msg, err := ws.NewMessage(msgType, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.conn.WriteMessage(websocket.TextMessage, data)
}
