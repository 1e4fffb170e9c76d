package protocol

import "encoding/json"

// Server-to-client frames. Each helper returns the serialized frame so
// fan-out paths marshal once and reuse the bytes across every target socket.
// Marshalling these fixed shapes cannot fail.

func Pong() []byte {
	b, _ := json.Marshal(struct {
		Type string `json:"type"`
	}{"Pong"})
	return b
}

func Authenticated() []byte {
	b, _ := json.Marshal(struct {
		Type string `json:"type"`
	}{"Authenticated"})
	return b
}

func ErrorFrame(kind ErrKind) []byte {
	b, _ := json.Marshal(struct {
		Type  string  `json:"type"`
		Error ErrKind `json:"error"`
	}{"Error", kind})
	return b
}

func DirectMessageFrame(participants []string, msg ChatMessage) []byte {
	b, _ := json.Marshal(struct {
		Type         string      `json:"type"`
		Participants []string    `json:"participants"`
		Message      ChatMessage `json:"message"`
	}{"DirectMessage", participants, msg})
	return b
}

func BulkMessagesFrame(participants []string, msgs []ChatMessage) []byte {
	if msgs == nil {
		msgs = []ChatMessage{}
	}
	b, _ := json.Marshal(struct {
		Type         string        `json:"type"`
		Participants []string      `json:"participants"`
		Messages     []ChatMessage `json:"messages"`
	}{"BulkMessages", participants, msgs})
	return b
}

func BulkUsersFrame(users []User) []byte {
	if users == nil {
		users = []User{}
	}
	b, _ := json.Marshal(struct {
		Type  string `json:"type"`
		Users []User `json:"users"`
	}{"BulkUsers", users})
	return b
}

func UserMetaFrame(user User) []byte {
	b, _ := json.Marshal(struct {
		Type string `json:"type"`
		User User   `json:"user"`
	}{"UserMeta", user})
	return b
}
