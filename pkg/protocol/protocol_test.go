package protocol

import (
	"encoding/json"
	"testing"
)

func TestDecodeCommand(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Command
	}{
		{"ping", `{"type":"Ping"}`, Command{Type: CmdPing}},
		{"authenticate", `{"type":"Authenticate","id":"abc","secret":"s3cret"}`,
			Command{Type: CmdAuthenticate, ID: "abc", Secret: "s3cret"}},
		{"direct message", `{"type":"DirectMessage","to":"xyz","message":"hi"}`,
			Command{Type: CmdDirectMessage, To: "xyz", Message: "hi"}},
		{"set topic", `{"type":"SetTopic","to":"xyz","topic":"plans"}`,
			Command{Type: CmdSetTopic, To: "xyz", Topic: "plans"}},
		{"sync chat", `{"type":"SyncChat","with":"xyz"}`,
			Command{Type: CmdSyncChat, With: "xyz"}},
		{"sync chat users", `{"type":"SyncChatUsers"}`, Command{Type: CmdSyncChatUsers}},
	}

	for _, c := range cases {
		got, err := DecodeCommand([]byte(c.in))
		if err != nil {
			t.Fatalf("%s: DecodeCommand error: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s: DecodeCommand = %+v, want %+v", c.name, got, c.want)
		}
	}
}

func TestDecodeCommandRejectsUnknown(t *testing.T) {
	for _, in := range []string{
		`{"type":"Shout","message":"hi"}`,
		`{"message":"no type"}`,
		`not json`,
	} {
		if _, err := DecodeCommand([]byte(in)); err == nil {
			t.Fatalf("DecodeCommand(%q) = nil error, want rejection", in)
		}
	}
}

func TestServerFrames(t *testing.T) {
	if got := string(Pong()); got != `{"type":"Pong"}` {
		t.Fatalf("Pong = %s", got)
	}
	if got := string(ErrorFrame(ErrUnauthorized)); got != `{"type":"Error","error":"Unauthorized"}` {
		t.Fatalf("ErrorFrame = %s", got)
	}

	// BulkMessages with no history must serialize an empty array, not null:
	// the client iterates the field unconditionally.
	var bulk struct {
		Type     string        `json:"type"`
		Messages []ChatMessage `json:"messages"`
	}
	raw := BulkMessagesFrame([]string{"a", "b"}, nil)
	if err := json.Unmarshal(raw, &bulk); err != nil {
		t.Fatalf("unmarshal BulkMessages: %v", err)
	}
	if bulk.Messages == nil {
		t.Fatalf("BulkMessages serialized nil messages: %s", raw)
	}
}

func TestDirectMessageFrameRoundTrip(t *testing.T) {
	msg := ChatMessage{Type: EntryUser, From: "a", Message: "hello"}
	raw := DirectMessageFrame([]string{"a", "b"}, msg)

	var got struct {
		Type         string      `json:"type"`
		Participants []string    `json:"participants"`
		Message      ChatMessage `json:"message"`
	}
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Type != "DirectMessage" || len(got.Participants) != 2 || got.Message != msg {
		t.Fatalf("frame = %+v, want DirectMessage [a b] %+v", got, msg)
	}
}
