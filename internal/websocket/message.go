package websocket

import (
	"encoding/json"
	"time"

	"github.com/jovywahba/jovnumbergames/internal/domain"
	"github.com/jovywahba/jovnumbergames/internal/session"
)

type MessageType string

const (
	// Client to Server
	MessageTypeJoinRoom    MessageType = "JOIN_ROOM"
	MessageTypeSetSecret   MessageType = "SET_SECRET"
	MessageTypeSubmitGuess MessageType = "SUBMIT_GUESS"
	MessageTypeReset       MessageType = "RESET"
	MessageTypeLeave       MessageType = "LEAVE"

	// Server to Client
	MessageTypeStateSync  MessageType = "STATE_SYNC"
	MessageTypeTimerTick  MessageType = "TIMER_TICK"
	MessageTypeNotice     MessageType = "NOTICE"
	MessageTypeRoomClosed MessageType = "ROOM_CLOSED"
	MessageTypeError      MessageType = "ERROR"
)

type Message struct {
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		Payload:   payloadBytes,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// Client to Server payloads

type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

type SetSecretPayload struct {
	Code string `json:"code"`
}

type SubmitGuessPayload struct {
	Guess string `json:"guess"`
}

// Server to Client payloads

type StateSyncPayload struct {
	View session.View `json:"view"`
}

type TimerTickPayload struct {
	Turn        domain.Seat `json:"turn"`
	SecondsLeft int         `json:"secondsLeft"`
}

type NoticePayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RoomClosedPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
