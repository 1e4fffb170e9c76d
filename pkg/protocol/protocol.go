// Package protocol defines the wire format: one JSON object per text frame,
// tagged by a "type" field with the payload fields flattened alongside it.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ErrKind is a protocol-level error delivered to the offending sender only.
type ErrKind string

const (
	ErrUnauthorized         ErrKind = "Unauthorized"
	ErrInvalidUuid          ErrKind = "InvalidUuid"
	ErrInvalidSecret        ErrKind = "InvalidSecret"
	ErrAlreadyAuthenticated ErrKind = "AlreadyAuthenticated"
)

type CommandType string

const (
	CmdPing          CommandType = "Ping"
	CmdDisconnect    CommandType = "Disconnect"
	CmdAuthenticate  CommandType = "Authenticate"
	CmdDirectMessage CommandType = "DirectMessage"
	CmdSetTopic      CommandType = "SetTopic"
	CmdSyncChat      CommandType = "SyncChat"
	CmdSyncChatUsers CommandType = "SyncChatUsers"
	CmdUserMeta      CommandType = "UserMeta"
)

// Command is a decoded client frame. Fields beyond Type are populated per
// command: Authenticate uses ID/Secret, DirectMessage uses To/Message,
// SetTopic uses To/Topic, SyncChat and UserMeta use With.
type Command struct {
	Type    CommandType `json:"type"`
	ID      string      `json:"id,omitempty"`
	Secret  string      `json:"secret,omitempty"`
	To      string      `json:"to,omitempty"`
	Message string      `json:"message,omitempty"`
	Topic   string      `json:"topic,omitempty"`
	With    string      `json:"with,omitempty"`
}

// DecodeCommand parses a client text frame. Frames with an unknown or missing
// type tag are rejected; the ingestion loop drops them without closing the
// connection.
func DecodeCommand(data []byte) (Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return Command{}, err
	}
	switch c.Type {
	case CmdPing, CmdDisconnect, CmdAuthenticate, CmdDirectMessage,
		CmdSetTopic, CmdSyncChat, CmdSyncChatUsers, CmdUserMeta:
		return c, nil
	}
	return Command{}, fmt.Errorf("unknown command type %q", c.Type)
}

type EntryType string

const (
	EntryUser  EntryType = "User"
	EntryTopic EntryType = "Topic"
)

// ChatMessage is one conversation history entry: a user message or a topic
// change. From carries the sender so clients can resolve unknown participants
// lazily.
type ChatMessage struct {
	Type    EntryType `json:"type"`
	From    string    `json:"from"`
	Message string    `json:"message,omitempty"`
	Topic   string    `json:"topic,omitempty"`
}

// User is a profile summary as served by the metadata backend.
type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
