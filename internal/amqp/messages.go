package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"kakeibo/internal/core"
)

// Action tells the worker what to do with an entry.
type Action string

const (
	ActionSync   Action = "sync"
	ActionDelete Action = "delete"
)

// EntryMessage is published after every ledger mutation. Sync messages carry
// a snapshot of the entry so backends without a queryable store can be
// exported too; the worker prefers the stored row when one exists.
type EntryMessage struct {
	Action    Action            `json:"action"`
	UID       string            `json:"uid"`
	Entry     *core.LedgerEntry `json:"entry,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewEntrySyncMessage creates a sync message for e.
func NewEntrySyncMessage(e core.LedgerEntry) *EntryMessage {
	return &EntryMessage{
		Action:    ActionSync,
		UID:       e.ID,
		Entry:     &e,
		Timestamp: time.Now(),
	}
}

// NewEntryDeleteMessage creates a delete message for uid.
func NewEntryDeleteMessage(uid string) *EntryMessage {
	return &EntryMessage{
		Action:    ActionDelete,
		UID:       uid,
		Timestamp: time.Now(),
	}
}

func (m *EntryMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EntryMessageFromJSON decodes and checks a message.
func EntryMessageFromJSON(data []byte) (*EntryMessage, error) {
	var msg EntryMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UID == "" {
		return nil, fmt.Errorf("message without uid")
	}
	switch msg.Action {
	case ActionSync, ActionDelete:
	default:
		return nil, fmt.Errorf("unknown action %q", msg.Action)
	}
	return &msg, nil
}
