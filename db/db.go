package db

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"notechat/utils"
)

// Backend names accepted by Open
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// ImageDirName is the image directory below the storage root
const ImageDirName = "images"

// QuarantineMarker separates a document's path from the timestamp of a quarantined copy
const QuarantineMarker = ".corrupt-"

func quarantinePath(path string, now time.Time) string {
	return path + QuarantineMarker + now.UTC().Format("20060102T150405Z")
}

// Backend persists the whole chat collection
type Backend interface {
	SaveAll(ctx context.Context, chats []*Chat) error
	LoadAll(ctx context.Context) ([]*Chat, error)
	Quarantine() (string, error)
	Location() string
	Close() error
}

// Service is the only gateway to disk: the collection backend plus the image store
type Service struct {
	backend Backend
	images  *ImageStore
	logger  *utils.Logger

	writeMu sync.Mutex // single writer for the canonical document
}

// NewService wires a backend and an image store together
func NewService(backend Backend, images *ImageStore, logger *utils.Logger) *Service {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	return &Service{
		backend: backend,
		images:  images,
		logger:  logger,
	}
}

// Open builds a service rooted at dir using the named backend
func Open(dir, backend string, processor *utils.ImageProcessor, logger *utils.Logger) (*Service, error) {
	images, err := NewImageStore(filepath.Join(dir, ImageDirName), processor)
	if err != nil {
		return nil, err
	}

	var b Backend
	switch strings.ToLower(backend) {
	case "", BackendJSON:
		b, err = NewJSONStore(filepath.Join(dir, DocumentName))
	case BackendSQLite:
		b, err = NewSQLiteStore(filepath.Join(dir, SQLiteName))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
	if err != nil {
		return nil, err
	}

	return NewService(b, images, logger), nil
}

// Close releases the backend
func (s *Service) Close() error {
	return s.backend.Close()
}

// Location describes where the collection lives
func (s *Service) Location() string {
	return s.backend.Location()
}

// Images exposes the image store
func (s *Service) Images() *ImageStore {
	return s.images
}

// SaveAll replaces the persisted collection; writes never overlap
func (s *Service) SaveAll(ctx context.Context, chats []*Chat) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.backend.SaveAll(ctx, chats); err != nil {
		return err
	}
	s.logger.Debug("Saved %d chats to %s", len(chats), s.backend.Location())
	return nil
}

// LoadAll reads the persisted collection; duplicate chat ids keep their first occurrence
func (s *Service) LoadAll(ctx context.Context) ([]*Chat, error) {
	chats, err := s.backend.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(chats))
	out := make([]*Chat, 0, len(chats))
	for _, c := range chats {
		if seen[c.ID] {
			s.logger.Warn("Dropping duplicate chat %s from %s", c.ID, s.backend.Location())
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out, nil
}

// Quarantine moves an unreadable collection aside and returns where it went
func (s *Service) Quarantine() (string, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.backend.Quarantine()
}

// SaveImage stores image bytes as JPEG and returns the new filename
func (s *Service) SaveImage(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	filename, err := s.images.Save(data)
	if err != nil {
		return "", err
	}
	s.logger.Debug("Saved image %s", filename)
	return filename, nil
}

// DeleteImage removes a stored image; deleting a missing image succeeds
func (s *Service) DeleteImage(ctx context.Context, filename string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.images.Delete(filename); err != nil {
		return err
	}
	s.logger.Debug("Deleted image %s", filename)
	return nil
}

// ImagePath resolves a stored filename to an absolute path
func (s *Service) ImagePath(filename string) (string, error) {
	return s.images.Path(filename)
}

func validateChats(chats []*Chat) error {
	for i, c := range chats {
		if c == nil {
			return fmt.Errorf("chat %d: null entry", i)
		}
		if _, err := uuid.Parse(c.ID); err != nil {
			return fmt.Errorf("chat %d: invalid id %q", i, c.ID)
		}
		if c.Messages == nil {
			c.Messages = []Message{}
		}
		for j := range c.Messages {
			if err := validateMessage(&c.Messages[j]); err != nil {
				return fmt.Errorf("chat %s message %d: %w", c.ID, j, err)
			}
		}
	}
	return nil
}

func validateMessage(m *Message) error {
	if _, err := uuid.Parse(m.ID); err != nil {
		return fmt.Errorf("invalid id %q", m.ID)
	}
	if !m.Type.Valid() {
		return fmt.Errorf("unknown type %q", m.Type)
	}
	if m.Timestamp.IsZero() {
		return fmt.Errorf("missing timestamp")
	}
	// exactly one of text and imagePath, matching the type
	switch m.Type {
	case MessageImage:
		if m.Text != nil {
			return fmt.Errorf("image message has text")
		}
		if m.ImagePath == nil || !validImageName(*m.ImagePath) {
			return fmt.Errorf("image message has no valid imagePath")
		}
	default:
		if m.Text == nil {
			return fmt.Errorf("%s message has no text", m.Type)
		}
		if m.ImagePath != nil {
			return fmt.Errorf("%s message has an imagePath", m.Type)
		}
	}
	return nil
}
