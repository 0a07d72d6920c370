package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"notechat/utils"
)

// DocumentName is the filename of the canonical document
const DocumentName = "chats.json"

// JSONStore keeps the whole collection in a single JSON array on disk
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON backend writing to path
func NewJSONStore(path string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &JSONStore{path: path}, nil
}

// Location returns the document path
func (s *JSONStore) Location() string {
	return s.path
}

// SaveAll replaces the document with chats
func (s *JSONStore) SaveAll(ctx context.Context, chats []*Chat) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := EncodeChats(chats)
	if err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(s.path, data, 0600); err != nil {
		return opError(ErrEncoding, s.path, err)
	}
	return nil
}

// LoadAll reads the document; a missing document is an empty collection
func (s *JSONStore) LoadAll(ctx context.Context) ([]*Chat, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []*Chat{}, nil
	}
	if err != nil {
		// an unreadable file is not a corrupt one; leave it where it is
		return nil, fmt.Errorf("failed to read document %s: %w", s.path, err)
	}
	chats, err := DecodeChats(data)
	if err != nil {
		return nil, opError(ErrDecoding, s.path, err)
	}
	return chats, nil
}

// Quarantine moves the document aside so it is not overwritten by the next save
func (s *JSONStore) Quarantine() (string, error) {
	if _, err := os.Stat(s.path); err != nil {
		return "", fmt.Errorf("failed to stat document: %w", err)
	}
	target := quarantinePath(s.path, time.Now())
	if err := os.Rename(s.path, target); err != nil {
		return "", fmt.Errorf("failed to move document aside: %w", err)
	}
	return target, nil
}

// Close is a no-op; the document is not held open between calls
func (s *JSONStore) Close() error {
	return nil
}

// EncodeChats renders chats in the canonical document format
func EncodeChats(chats []*Chat) ([]byte, error) {
	if chats == nil {
		chats = []*Chat{}
	}
	for _, c := range chats {
		if c == nil {
			return nil, opError(ErrEncoding, "", fmt.Errorf("nil chat in collection"))
		}
	}
	data, err := json.MarshalIndent(chats, "", "  ")
	if err != nil {
		return nil, opError(ErrEncoding, "", err)
	}
	return data, nil
}

// DecodeChats parses and validates a canonical document
func DecodeChats(data []byte) ([]*Chat, error) {
	var chats []*Chat
	if err := json.Unmarshal(data, &chats); err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	if chats == nil {
		return nil, fmt.Errorf("document is not an array of chats")
	}
	if err := validateChats(chats); err != nil {
		return nil, err
	}
	return chats, nil
}
