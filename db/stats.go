package db

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// StorageStats summarizes what is on disk
type StorageStats struct {
	ChatCount     int
	MessageCount  int
	TypeCounts    map[MessageType]int
	ImageCount    int
	ImageBytes    int64
	DocumentBytes int64
	LastActivity  time.Time
}

// IntegrityReport lists disagreements between messages and the image directory
type IntegrityReport struct {
	Orphans  []string        // image files no message references
	Dangling []DanglingImage // messages whose image file is missing

	// Quarantined documents that could not be loaded, and the otherwise
	// orphaned images they still mention. Preserved images are never pruned.
	Quarantined []string
	Preserved   []string
}

// DanglingImage is a message pointing at an image that is not on disk
type DanglingImage struct {
	ChatID    string
	MessageID string
	Filename  string
}

// Clean reports whether the store is consistent
func (r *IntegrityReport) Clean() bool {
	return len(r.Orphans) == 0 && len(r.Dangling) == 0
}

type sizer interface {
	Size() (int64, error)
}

type compactor interface {
	Compact() error
}

// Stats loads the collection and measures the storage root
func (s *Service) Stats(ctx context.Context) (*StorageStats, error) {
	chats, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}

	stats := &StorageStats{
		ChatCount:    len(chats),
		TypeCounts:   make(map[MessageType]int),
		LastActivity: Epoch,
	}
	for _, c := range chats {
		stats.MessageCount += len(c.Messages)
		for _, m := range c.Messages {
			stats.TypeCounts[m.Type]++
		}
		if t := c.LastMessageTime(); t.After(stats.LastActivity) {
			stats.LastActivity = t
		}
	}

	names, err := s.images.List()
	if err != nil {
		return nil, err
	}
	stats.ImageCount = len(names)
	if stats.ImageBytes, err = s.images.Size(); err != nil {
		return nil, err
	}

	if sz, ok := s.backend.(sizer); ok {
		if stats.DocumentBytes, err = sz.Size(); err != nil {
			return nil, err
		}
	} else if info, err := os.Stat(s.backend.Location()); err == nil {
		stats.DocumentBytes = info.Size()
	}

	return stats, nil
}

// Check compares image references in chats with the files in the image store
func Check(chats []*Chat, images *ImageStore) (*IntegrityReport, error) {
	names, err := images.List()
	if err != nil {
		return nil, err
	}
	onDisk := make(map[string]bool, len(names))
	for _, name := range names {
		onDisk[name] = true
	}

	report := &IntegrityReport{}
	referenced := make(map[string]bool)
	for _, c := range chats {
		for _, m := range c.Messages {
			if !m.HasImage() {
				continue
			}
			name := *m.ImagePath
			referenced[name] = true
			if !onDisk[name] {
				report.Dangling = append(report.Dangling, DanglingImage{
					ChatID:    c.ID,
					MessageID: m.ID,
					Filename:  name,
				})
			}
		}
	}
	for _, name := range names {
		if !referenced[name] {
			report.Orphans = append(report.Orphans, name)
		}
	}
	sort.Strings(report.Orphans)
	return report, nil
}

// Check loads the collection and runs an integrity check against the image store.
// Orphans named in a quarantined document move to Preserved.
func (s *Service) Check(ctx context.Context) (*IntegrityReport, error) {
	chats, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	report, err := Check(chats, s.images)
	if err != nil {
		return nil, err
	}

	if report.Quarantined, err = s.Quarantined(); err != nil {
		return nil, err
	}
	if len(report.Quarantined) == 0 || len(report.Orphans) == 0 {
		return report, nil
	}

	var docs [][]byte
	for _, path := range report.Quarantined {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read quarantined document %s: %w", path, err)
		}
		docs = append(docs, data)
	}
	orphans := report.Orphans[:0]
	for _, name := range report.Orphans {
		if mentioned(docs, name) {
			report.Preserved = append(report.Preserved, name)
			continue
		}
		orphans = append(orphans, name)
	}
	report.Orphans = orphans
	return report, nil
}

// mentioned reports whether any document contains name; both backends store image names as plain text
func mentioned(docs [][]byte, name string) bool {
	for _, data := range docs {
		if bytes.Contains(data, []byte(name)) {
			return true
		}
	}
	return false
}

// Quarantined lists the documents moved aside by Quarantine, oldest first
func (s *Service) Quarantined() ([]string, error) {
	location := s.backend.Location()
	entries, err := os.ReadDir(filepath.Dir(location))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", filepath.Dir(location), err)
	}
	prefix := filepath.Base(location) + QuarantineMarker
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			paths = append(paths, filepath.Join(filepath.Dir(location), e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// PruneOrphans deletes image files that no message references and returns their names.
// Files written less than minAge ago are kept: a running app may not have saved
// the message that references them yet.
func (s *Service) PruneOrphans(ctx context.Context, minAge time.Duration) ([]string, error) {
	report, err := s.Check(ctx)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-minAge)
	var pruned []string
	for _, name := range report.Orphans {
		if minAge > 0 {
			modified, err := s.images.ModTime(name)
			if err != nil {
				s.logger.Error("Failed to stat orphaned image %s: %v", name, err)
				continue
			}
			if modified.After(cutoff) {
				s.logger.Info("Keeping recent orphaned image %s", name)
				continue
			}
		}
		if err := s.DeleteImage(ctx, name); err != nil {
			s.logger.Error("Failed to prune orphaned image %s: %v", name, err)
			continue
		}
		pruned = append(pruned, name)
	}
	return pruned, nil
}

// Compact reclaims space in backends that support it
func (s *Service) Compact() error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	c, ok := s.backend.(compactor)
	if !ok {
		return nil
	}
	if err := c.Compact(); err != nil {
		return fmt.Errorf("failed to compact %s: %w", s.backend.Location(), err)
	}
	return nil
}
