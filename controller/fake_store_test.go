package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"notechat/db"
)

var errDisk = errors.New("disk unavailable")

// fakeStore records calls and can be told to fail
type fakeStore struct {
	mu sync.Mutex

	saved     []*db.Chat
	saves     int
	loadChats []*db.Chat
	images    map[string]bool
	deleted   []string

	loadErr        error
	saveErr        error
	saveImageErr   error
	deleteImageErr map[string]error
	quarantined    int

	// saveStarted, when set, receives once a save starts and the save waits on saveRelease
	saveStarted chan struct{}
	saveRelease chan struct{}
}

func newFakeStore(chats ...*db.Chat) *fakeStore {
	f := &fakeStore{
		loadChats:      chats,
		images:         make(map[string]bool),
		deleteImageErr: make(map[string]error),
	}
	for _, c := range chats {
		for _, name := range c.ImagePaths() {
			f.images[name] = true
		}
	}
	return f
}

func (f *fakeStore) SaveAll(ctx context.Context, chats []*db.Chat) error {
	f.mu.Lock()
	started, release := f.saveStarted, f.saveRelease
	f.saveStarted = nil
	f.mu.Unlock()
	if started != nil {
		started <- struct{}{}
		<-release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = db.CloneChats(chats)
	return nil
}

func (f *fakeStore) LoadAll(ctx context.Context) ([]*db.Chat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return db.CloneChats(f.loadChats), nil
}

func (f *fakeStore) Quarantine() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quarantined++
	return "chats.json.corrupt-test", nil
}

func (f *fakeStore) SaveImage(ctx context.Context, data []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveImageErr != nil {
		return "", f.saveImageErr
	}
	name := db.NewID() + db.ImageExt
	f.images[name] = true
	return name, nil
}

func (f *fakeStore) DeleteImage(ctx context.Context, filename string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteImageErr[filename]; err != nil {
		return err
	}
	delete(f.images, filename)
	f.deleted = append(f.deleted, filename)
	return nil
}

func (f *fakeStore) ImagePath(filename string) (string, error) {
	if filename == "" {
		return "", fmt.Errorf("empty name")
	}
	return "/images/" + filename, nil
}

func (f *fakeStore) saveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves
}

func (f *fakeStore) lastSaved() []*db.Chat {
	f.mu.Lock()
	defer f.mu.Unlock()
	return db.CloneChats(f.saved)
}

func (f *fakeStore) hasImage(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.images[name]
}

func (f *fakeStore) setSaveErr(err error) {
	f.mu.Lock()
	f.saveErr = err
	f.mu.Unlock()
}
