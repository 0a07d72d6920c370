package db

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MessageType tags the content a message carries
type MessageType string

const (
	MessageText   MessageType = "text"
	MessageImage  MessageType = "image"
	MessageSystem MessageType = "system"
)

// Valid reports whether t is one of the known message types
func (t MessageType) Valid() bool {
	switch t {
	case MessageText, MessageImage, MessageSystem:
		return true
	}
	return false
}

// Message is a single entry in a chat
type Message struct {
	ID        string      `json:"id"`
	Text      *string     `json:"text,omitempty"`
	ImagePath *string     `json:"imagePath,omitempty"` // filename inside the image store
	Timestamp time.Time   `json:"timestamp"`
	Type      MessageType `json:"type"`
}

// Chat is a named, ordered list of messages
type Chat struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Messages []Message `json:"messages"`
}

// Epoch is the last-activity time reported for chats without messages
var Epoch = time.Unix(0, 0).UTC()

// NewID returns a fresh identifier in the upper-case form used on disk
func NewID() string {
	return strings.ToUpper(uuid.NewString())
}

// Now returns the current time without a monotonic reading, in UTC
func Now() time.Time {
	return time.Now().UTC().Round(0)
}

// NewChat creates an empty, unnamed chat
func NewChat() *Chat {
	return &Chat{
		ID:       NewID(),
		Messages: []Message{},
	}
}

// NewTextMessage creates a text message stamped with the current time
func NewTextMessage(text string) Message {
	return Message{
		ID:        NewID(),
		Text:      &text,
		Timestamp: Now(),
		Type:      MessageText,
	}
}

// NewImageMessage creates an image message referencing a stored image filename
func NewImageMessage(filename string) Message {
	return Message{
		ID:        NewID(),
		ImagePath: &filename,
		Timestamp: Now(),
		Type:      MessageImage,
	}
}

// NewSystemMessage creates a system notice
func NewSystemMessage(text string) Message {
	msg := NewTextMessage(text)
	msg.Type = MessageSystem
	return msg
}

// Content returns the message text, or "" if there is none
func (m Message) Content() string {
	if m.Text == nil {
		return ""
	}
	return *m.Text
}

// Image returns the referenced image filename, or "" if there is none
func (m Message) Image() string {
	if m.ImagePath == nil {
		return ""
	}
	return *m.ImagePath
}

// HasImage reports whether the message references a stored image
func (m Message) HasImage() bool {
	return m.ImagePath != nil && *m.ImagePath != ""
}

// LastMessageTime returns the timestamp of the last message or Epoch when empty
func (c *Chat) LastMessageTime() time.Time {
	if len(c.Messages) == 0 {
		return Epoch
	}
	return c.Messages[len(c.Messages)-1].Timestamp
}

// IndexOf returns the position of the message with the given id, or -1
func (c *Chat) IndexOf(messageID string) int {
	for i := range c.Messages {
		if c.Messages[i].ID == messageID {
			return i
		}
	}
	return -1
}

// ImagePaths returns every image filename referenced by the chat
func (c *Chat) ImagePaths() []string {
	var paths []string
	for i := range c.Messages {
		if c.Messages[i].HasImage() {
			paths = append(paths, *c.Messages[i].ImagePath)
		}
	}
	return paths
}

// Clone returns a deep copy of the chat
func (c *Chat) Clone() *Chat {
	out := &Chat{
		ID:       c.ID,
		Name:     c.Name,
		Messages: make([]Message, len(c.Messages)),
	}
	for i, msg := range c.Messages {
		out.Messages[i] = msg.Clone()
	}
	return out
}

// Clone returns a copy of the message that shares no pointers with m
func (m Message) Clone() Message {
	if m.Text != nil {
		text := *m.Text
		m.Text = &text
	}
	if m.ImagePath != nil {
		path := *m.ImagePath
		m.ImagePath = &path
	}
	return m
}

// CloneChats deep-copies a collection
func CloneChats(chats []*Chat) []*Chat {
	out := make([]*Chat, len(chats))
	for i, c := range chats {
		out[i] = c.Clone()
	}
	return out
}
