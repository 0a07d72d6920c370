package db

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"notechat/utils"
)

// ImageExt is the extension of every stored image
const ImageExt = ".jpg"

// ImageStore manages the flat directory of JPEG files referenced by image messages
type ImageStore struct {
	dir       string
	processor *utils.ImageProcessor
}

// NewImageStore creates the image directory if needed
func NewImageStore(dir string, processor *utils.ImageProcessor) (*ImageStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	if processor == nil {
		processor = utils.NewImageProcessor(utils.DefaultJPEGQuality, utils.DefaultMaxDimension)
	}
	return &ImageStore{dir: dir, processor: processor}, nil
}

// Dir returns the image directory
func (s *ImageStore) Dir() string {
	return s.dir
}

// Save encodes data as JPEG under a fresh <UUID>.jpg name and returns the filename
func (s *ImageStore) Save(data []byte) (string, error) {
	encoded, err := s.processor.ToJPEG(data)
	if err != nil {
		return "", opError(ErrImageSave, "", err)
	}

	filename := NewID() + ImageExt
	path := filepath.Join(s.dir, filename)
	if err := utils.WriteFileAtomic(path, encoded, 0644); err != nil {
		return "", opError(ErrImageSave, filename, err)
	}
	return filename, nil
}

// Delete removes the named image; a missing file counts as deleted
func (s *ImageStore) Delete(filename string) error {
	path, err := s.Path(filename)
	if err != nil {
		return opError(ErrImageDelete, filename, err)
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return opError(ErrImageDelete, filename, err)
	}
	return nil
}

// Path resolves a stored filename to its absolute location
func (s *ImageStore) Path(filename string) (string, error) {
	if !validImageName(filename) {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, filename)
	}
	return filepath.Join(s.dir, filename), nil
}

// validImageName reports whether filename is a bare name inside the image directory
func validImageName(filename string) bool {
	return filename != "" && filename == filepath.Base(filename) &&
		!strings.ContainsAny(filename, `/\`) && filename != "." && filename != ".."
}

// Exists reports whether the named image is present on disk
func (s *ImageStore) Exists(filename string) bool {
	path, err := s.Path(filename)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// List returns the stored image filenames in lexical order, skipping temp files
func (s *ImageStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read image directory: %w", err)
	}
	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ImageExt) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// ModTime returns when the named image was last written
func (s *ImageStore) ModTime(filename string) (time.Time, error) {
	path, err := s.Path(filename)
	if err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// Size returns the total size in bytes of all stored images
func (s *ImageStore) Size() (int64, error) {
	names, err := s.List()
	if err != nil {
		return 0, err
	}
	var total int64
	for _, name := range names {
		info, err := os.Stat(filepath.Join(s.dir, name))
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}
