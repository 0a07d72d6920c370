package controller

import (
	"context"
	"errors"
	"strings"
	"sync"

	"notechat/db"
)

// Session edits the messages of one chat. Every change goes through the
// owning ChatList so it lands in the autosave pipeline, and asynchronous
// steps apply their result to the chat as it is when they finish.
type Session struct {
	list   *ChatList
	chatID string

	mu        sync.Mutex
	editingID string
}

// OpenSession starts an editing session on a chat and selects it
func (l *ChatList) OpenSession(chatID string) (*Session, error) {
	if err := l.SelectChat(chatID); err != nil {
		return nil, err
	}
	return &Session{list: l, chatID: chatID}, nil
}

// ChatID returns the id of the chat being edited
func (s *Session) ChatID() string {
	return s.chatID
}

// Messages returns a copy of the chat's messages in order
func (s *Session) Messages() []db.Message {
	c, ok := s.list.Chat(s.chatID)
	if !ok {
		return nil
	}
	return c.Messages
}

// SendMessage appends a text message; blank text is ignored
func (s *Session) SendMessage(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	msg := db.NewTextMessage(text)
	return s.list.mutateChat(s.chatID, func(c *db.Chat) (bool, error) {
		c.Messages = append(c.Messages, msg)
		return true, nil
	})
}

// BeginEdit puts a text message into edit mode
func (s *Session) BeginEdit(messageID string) error {
	msg, err := s.message(messageID)
	if err != nil {
		return err
	}
	if msg.Type != db.MessageText {
		return ErrNotEditable
	}
	s.mu.Lock()
	s.editingID = messageID
	s.mu.Unlock()
	return nil
}

// Editing returns the id of the message in edit mode, or ""
func (s *Session) Editing() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editingID
}

// CancelEdit leaves edit mode without changing anything
func (s *Session) CancelEdit() {
	s.mu.Lock()
	s.editingID = ""
	s.mu.Unlock()
}

// CommitEdit replaces the text of the message in edit mode and refreshes its timestamp.
// The message keeps its id, type and position.
func (s *Session) CommitEdit(text string) error {
	s.mu.Lock()
	id := s.editingID
	s.mu.Unlock()
	if id == "" {
		return ErrNotEditing
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyText
	}

	err := s.list.mutateChat(s.chatID, func(c *db.Chat) (bool, error) {
		i := c.IndexOf(id)
		if i < 0 {
			return false, ErrMessageNotFound
		}
		msg := &c.Messages[i]
		if msg.Type != db.MessageText {
			return false, ErrNotEditable
		}
		msg.Text = &text
		msg.Timestamp = db.Now()
		return true, nil
	})
	if err == nil || errors.Is(err, ErrMessageNotFound) || errors.Is(err, ErrChatNotFound) {
		s.CancelEdit()
	}
	return err
}

// Submit commits the edit in progress, or sends text as a new message
func (s *Session) Submit(text string) error {
	if s.Editing() != "" {
		return s.CommitEdit(text)
	}
	return s.SendMessage(text)
}

// DeleteMessage removes a message. For image messages the file is deleted
// first and the message is kept if that fails, so the only reference to an
// image that may still be on disk is not lost.
func (s *Session) DeleteMessage(ctx context.Context, messageID string) error {
	msg, err := s.message(messageID)
	if err != nil {
		return err
	}

	if msg.HasImage() {
		if err := s.list.store.DeleteImage(ctx, msg.Image()); err != nil {
			s.list.fail("Could not delete image", err)
			return err
		}
	}

	err = s.list.mutateChat(s.chatID, func(c *db.Chat) (bool, error) {
		i := c.IndexOf(messageID)
		if i < 0 {
			return false, nil
		}
		c.Messages = append(c.Messages[:i], c.Messages[i+1:]...)
		return true, nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.editingID == messageID {
		s.editingID = ""
	}
	s.mu.Unlock()
	return nil
}

// AttachImage stores image bytes and appends an image message referencing them
func (s *Session) AttachImage(ctx context.Context, data []byte) (db.Message, error) {
	filename, err := s.list.store.SaveImage(ctx, data)
	if err != nil {
		s.list.fail("Could not save image", err)
		return db.Message{}, err
	}

	msg := db.NewImageMessage(filename)
	err = s.list.mutateChat(s.chatID, func(c *db.Chat) (bool, error) {
		c.Messages = append(c.Messages, msg)
		return true, nil
	})
	if err != nil {
		// the chat went away while the image was being written
		if delErr := s.list.store.DeleteImage(ctx, filename); delErr != nil {
			s.list.logger.Error("Failed to remove unattached image %s: %v", filename, delErr)
		}
		return db.Message{}, err
	}
	return msg.Clone(), nil
}

// ImagePath resolves an image message to the file on disk
func (s *Session) ImagePath(msg db.Message) (string, error) {
	if !msg.HasImage() {
		return "", ErrMessageNotFound
	}
	return s.list.store.ImagePath(msg.Image())
}

func (s *Session) message(id string) (db.Message, error) {
	c, ok := s.list.Chat(s.chatID)
	if !ok {
		return db.Message{}, ErrChatNotFound
	}
	i := c.IndexOf(id)
	if i < 0 {
		return db.Message{}, ErrMessageNotFound
	}
	return c.Messages[i], nil
}
