// Package syncmsg defines the messages pushed over the events websocket.
package syncmsg

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

type Message struct {
	Id   string      `json:"id"`
	Type MessageType `json:"typ"`
	Data any         `json:"dat"`
}

func (m *Message) UnmarshalJSON(data []byte) error {
	type tempMessage struct {
		Id   string          `json:"id"`
		Type MessageType     `json:"typ"`
		Data json.RawMessage `json:"dat"`
	}

	var temp tempMessage
	if err := json.Unmarshal(data, &temp); err != nil {
		return err
	}

	m.Id = temp.Id
	m.Type = temp.Type

	switch m.Type {
	case MsgSystem:
		var sys System
		if err := json.Unmarshal(temp.Data, &sys); err != nil {
			return err
		}
		m.Data = sys
	case MsgError:
		var e Error
		if err := json.Unmarshal(temp.Data, &e); err != nil {
			return err
		}
		m.Data = e
	case MsgFilesChanged:
		var fc FilesChanged
		if err := json.Unmarshal(temp.Data, &fc); err != nil {
			return err
		}
		m.Data = fc
	default:
		return fmt.Errorf("unknown message type: %d", m.Type)
	}

	return nil
}

func generateID() string {
	return uuid.NewString()[:8]
}
