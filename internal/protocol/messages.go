// Package protocol defines the JSON control and status frames exchanged with
// the transcription server. Audio travels as raw binary frames and is not
// described here.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Client message types.
const (
	TypeStartRecording = "start_recording"
	TypeStopRecording  = "stop_recording"
)

// Server message types.
const (
	TypeText   = "text"
	TypeStatus = "status"
	TypeError  = "error"
)

// StatusIdle is the status the server reports once a stop request is fully processed.
const StatusIdle = "idle"

// ErrMalformedMessage marks frames that are not a tagged JSON record.
var ErrMalformedMessage = errors.New("malformed server message")

type controlMessage struct {
	Type string `json:"type"`
}

// ServerMessage is one decoded server frame. Fields not used by Type are zero.
type ServerMessage struct {
	Type          string `json:"type"`
	IsNewResponse bool   `json:"isNewResponse"`
	Content       string `json:"content"`
	Status        string `json:"status"`
	Message       string `json:"message"`
}

// StartRecording encodes the start control frame.
func StartRecording() []byte {
	return encodeControl(TypeStartRecording)
}

// StopRecording encodes the stop control frame.
func StopRecording() []byte {
	return encodeControl(TypeStopRecording)
}

func encodeControl(kind string) []byte {
	payload, err := json.Marshal(controlMessage{Type: kind})
	if err != nil {
		// controlMessage holds a single string; Marshal cannot fail.
		panic(err)
	}
	return payload
}

// DecodeServerMessage parses a server text frame.
func DecodeServerMessage(payload []byte) (ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return ServerMessage{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	msg.Type = strings.TrimSpace(msg.Type)
	if msg.Type == "" {
		return ServerMessage{}, fmt.Errorf("%w: missing type", ErrMalformedMessage)
	}
	return msg, nil
}

// IsTerminal reports whether msg ends the current utterance. Idle only counts
// when the caller is waiting for the final transcript.
func (m ServerMessage) IsTerminal(awaitingFinal bool) bool {
	switch m.Type {
	case TypeError:
		return true
	case TypeStatus:
		return awaitingFinal && m.Status == StatusIdle
	default:
		return false
	}
}
