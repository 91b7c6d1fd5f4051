package domain

import (
	"encoding/json"
	"errors"
)

type MessageType string

const (
	TypeJoinRoom       MessageType = "join_room"
	TypeRoomJoined     MessageType = "room_joined"
	TypeLocationUpdate MessageType = "location_update"
	TypeSosTrigger     MessageType = "sos_trigger"
	TypeGuardianUpdate MessageType = "guardian_update"
	TypeSosAlert       MessageType = "sos_alert"
	TypeError          MessageType = "error"
)

var ErrEmptyPayload = errors.New("message payload is empty")

// Message is one relay frame. Payload holds the variant selected by Type:
//
//	join_room                          JoinRoom
//	room_joined                        RoomJoined
//	location_update, sos_trigger,
//	guardian_update, sos_alert         PresenceEvent
//	error                              ErrorPayload
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type JoinRoom struct {
	Code string `json:"code"`
}

type RoomJoined struct {
	Message string `json:"message"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func NewMessage(t MessageType, payload any) (Message, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}
	return Message{Type: t, Payload: raw}, nil
}

func JoinRoomMessage(code string) Message {
	msg, _ := NewMessage(TypeJoinRoom, JoinRoom{Code: code})
	return msg
}

func RoomJoinedMessage(text string) Message {
	msg, _ := NewMessage(TypeRoomJoined, RoomJoined{Message: text})
	return msg
}

func ErrorMessage(text string) Message {
	msg, _ := NewMessage(TypeError, ErrorPayload{Message: text})
	return msg
}

// Decode unmarshals the payload into v.
func (m Message) Decode(v any) error {
	if len(m.Payload) == 0 {
		return ErrEmptyPayload
	}
	return json.Unmarshal(m.Payload, v)
}

// Envelope carries a message to every member of a room except Exclude.
// It is the unit handed between relay instances.
type Envelope struct {
	Code    string  `json:"code"`
	Exclude string  `json:"exclude,omitempty"`
	Message Message `json:"message"`
}
