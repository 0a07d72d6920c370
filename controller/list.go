// Package controller owns the in-memory chat collection and keeps it in sync
// with the persistence service.
//
// Every mutation of a chat or of the collection happens under one lock (the
// update context) and bumps a version counter; a debounced flush writes the
// collection whenever the version moved past the last durable one. Disk I/O
// always runs outside the update context.
package controller

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"notechat/db"
	"notechat/utils"
)

// DefaultDebounce is the autosave quiet period
const DefaultDebounce = 500 * time.Millisecond

// imageDeleteConcurrency bounds parallel image deletes in a batch chat delete
const imageDeleteConcurrency = 4

var (
	ErrNotReady        = errors.New("chats are not loaded yet")
	ErrChatNotFound    = errors.New("chat not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotEditable     = errors.New("only text messages can be edited")
	ErrNotEditing      = errors.New("no message is being edited")
	ErrEmptyText       = errors.New("message text is empty")
)

// State is the lifecycle of the chat list
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	}
	return "unknown"
}

// Store is the persistence the controllers depend on; *db.Service implements it
type Store interface {
	SaveAll(ctx context.Context, chats []*db.Chat) error
	LoadAll(ctx context.Context) ([]*db.Chat, error)
	Quarantine() (string, error)
	SaveImage(ctx context.Context, data []byte) (string, error)
	DeleteImage(ctx context.Context, filename string) error
	ImagePath(filename string) (string, error)
}

// ChatList owns the canonical collection of chats
type ChatList struct {
	store     Store
	logger    *utils.Logger
	debouncer *Debouncer

	saveMu sync.Mutex // orders snapshot-then-write sequences

	mu           sync.Mutex // the update context
	state        State
	chats        []*db.Chat
	selectedID   string
	errMsg       string
	version      uint64
	savedVersion uint64
	listeners    map[int]func()
	nextListener int
}

// NewChatList creates an uninitialized chat list; window <= 0 uses DefaultDebounce
func NewChatList(store Store, logger *utils.Logger, window time.Duration) *ChatList {
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	if window <= 0 {
		window = DefaultDebounce
	}
	l := &ChatList{
		store:     store,
		logger:    logger,
		chats:     []*db.Chat{},
		listeners: make(map[int]func()),
	}
	l.debouncer = NewDebouncer(window, l.autosave)
	return l
}

// Initialize loads the collection. On failure the list still becomes ready,
// empty, with the error recorded; an unreadable document is moved aside first.
func (l *ChatList) Initialize(ctx context.Context) error {
	l.mu.Lock()
	if l.state != StateUninitialized {
		l.mu.Unlock()
		return nil
	}
	l.state = StateLoading
	l.mu.Unlock()
	l.notify()

	chats, err := l.store.LoadAll(ctx)
	if err != nil {
		l.logger.Error("Failed to load chats: %v", err)
		if errors.Is(err, db.ErrDecoding) {
			if moved, qErr := l.store.Quarantine(); qErr != nil {
				l.logger.Error("Failed to preserve unreadable chats: %v", qErr)
			} else {
				l.logger.Warn("Unreadable chats preserved at %s", moved)
			}
		}
		chats = []*db.Chat{}
	}

	l.mu.Lock()
	l.chats = chats
	l.state = StateReady
	if err != nil {
		l.errMsg = utils.WrapError(err, "Could not load saved chats").Error()
	}
	l.mu.Unlock()

	if err == nil {
		l.logger.Info("Loaded %d chats", len(chats))
	}
	l.notify()
	return err
}

// State returns the lifecycle state
func (l *ChatList) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Chats returns copies of all chats ordered by last activity, newest first.
// Chats with equal activity keep their collection order.
func (l *ChatList) Chats() []*db.Chat {
	l.mu.Lock()
	out := db.CloneChats(l.chats)
	l.mu.Unlock()

	SortByActivity(out)
	return out
}

// SortByActivity orders chats by last message time, newest first, keeping
// the relative order of chats with equal times
func SortByActivity(chats []*db.Chat) {
	slices.SortStableFunc(chats, func(a, b *db.Chat) int {
		return b.LastMessageTime().Compare(a.LastMessageTime())
	})
}

// Len returns the number of chats
func (l *ChatList) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.chats)
}

// Chat returns a copy of the chat with the given id
func (l *ChatList) Chat(id string) (*db.Chat, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	c := l.find(id)
	if c == nil {
		return nil, false
	}
	return c.Clone(), true
}

// AddChat creates an empty chat at the head of the collection and selects it
func (l *ChatList) AddChat() (*db.Chat, error) {
	chat := db.NewChat()
	err := l.mutate(func() error {
		l.chats = slices.Insert(l.chats, 0, chat)
		l.selectedID = chat.ID
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("Created chat %s", chat.ID)
	return chat.Clone(), nil
}

// RenameChat changes a chat's display name
func (l *ChatList) RenameChat(id, name string) error {
	return l.mutateChat(id, func(c *db.Chat) (bool, error) {
		if c.Name == name {
			return false, nil
		}
		c.Name = name
		return true, nil
	})
}

// SelectChat marks a chat as the active selection; "" clears it
func (l *ChatList) SelectChat(id string) error {
	l.mu.Lock()
	if id != "" && l.find(id) == nil {
		l.mu.Unlock()
		return ErrChatNotFound
	}
	changed := l.selectedID != id
	l.selectedID = id
	l.mu.Unlock()
	if changed {
		l.notify()
	}
	return nil
}

// Selected returns the id of the selected chat, or ""
func (l *ChatList) Selected() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selectedID
}

// DeleteChat deletes one chat and its images
func (l *ChatList) DeleteChat(ctx context.Context, id string) error {
	return l.DeleteChats(ctx, []string{id})
}

// DeleteChats deletes the given chats. Image files go first (failures are
// reported, not fatal), then the collection without those chats is saved, and
// only after that save succeeds are the chats removed from memory.
func (l *ChatList) DeleteChats(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	targets := make(map[string]bool, len(ids))
	for _, id := range ids {
		targets[id] = true
	}

	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	l.mu.Lock()
	if l.state != StateReady {
		l.mu.Unlock()
		return ErrNotReady
	}
	var images []string
	for _, c := range l.chats {
		if targets[c.ID] {
			images = append(images, c.ImagePaths()...)
		}
	}
	l.mu.Unlock()

	imageErr := errors.Join(l.deleteImages(ctx, images)...)
	if imageErr != nil {
		l.logger.Error("Failed to delete some images: %v", imageErr)
	}

	l.mu.Lock()
	snapshot := db.CloneChats(withoutChats(l.chats, targets))
	snapshotVersion := l.version
	l.mu.Unlock()

	if err := l.store.SaveAll(ctx, snapshot); err != nil {
		l.fail("Could not delete chats", err)
		return err
	}

	l.mu.Lock()
	l.chats = withoutChats(l.chats, targets)
	if targets[l.selectedID] {
		l.selectedID = ""
	}
	if l.version == snapshotVersion {
		// nothing changed while saving, so the write covers this mutation too
		l.version++
		l.savedVersion = l.version
	} else {
		l.version++
	}
	dirty := l.version != l.savedVersion
	if imageErr != nil {
		l.errMsg = utils.WrapError(imageErr, "Some images could not be deleted").Error()
	}
	l.mu.Unlock()

	if dirty {
		l.debouncer.Trigger()
	}
	l.logger.Info("Deleted %d chats", len(ids))
	l.notify()
	return nil
}

func (l *ChatList) deleteImages(ctx context.Context, filenames []string) []error {
	var (
		mu   sync.Mutex
		errs []error
		g    errgroup.Group
	)
	g.SetLimit(imageDeleteConcurrency)
	for _, name := range filenames {
		g.Go(func() error {
			if err := l.store.DeleteImage(ctx, name); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	g.Wait()
	return errs
}

func withoutChats(chats []*db.Chat, targets map[string]bool) []*db.Chat {
	out := make([]*db.Chat, 0, len(chats))
	for _, c := range chats {
		if !targets[c.ID] {
			out = append(out, c)
		}
	}
	return out
}

// Flush writes the collection now if it has unsaved changes
func (l *ChatList) Flush(ctx context.Context) error {
	l.saveMu.Lock()
	defer l.saveMu.Unlock()

	l.mu.Lock()
	if l.state != StateReady || l.version == l.savedVersion {
		l.mu.Unlock()
		return nil
	}
	snapshot := db.CloneChats(l.chats)
	version := l.version
	l.mu.Unlock()

	if err := l.store.SaveAll(ctx, snapshot); err != nil {
		l.fail("Could not save chats", err)
		return err
	}

	l.mu.Lock()
	if version > l.savedVersion {
		l.savedVersion = version
	}
	if version == l.version {
		// the scheduled autosave would find nothing to write
		l.debouncer.Cancel()
	}
	l.mu.Unlock()
	return nil
}

// Dirty reports whether there are changes not yet written
func (l *ChatList) Dirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.version != l.savedVersion
}

// Close stops autosave and writes any pending change
func (l *ChatList) Close(ctx context.Context) error {
	pending := l.debouncer.Pending()
	l.debouncer.Stop()
	if pending {
		l.logger.Debug("Writing pending autosave on close")
	}
	return l.Flush(ctx)
}

func (l *ChatList) autosave() {
	err := utils.SafeCall(l.logger, "autosave", func() {
		l.Flush(context.Background())
	})
	if err != nil {
		l.fail("Could not save chats", err)
	}
}

// Err returns the active user-facing error, or ""
func (l *ChatList) Err() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.errMsg
}

// ClearError acknowledges the active error
func (l *ChatList) ClearError() {
	l.mu.Lock()
	had := l.errMsg != ""
	l.errMsg = ""
	l.mu.Unlock()
	if had {
		l.notify()
	}
}

// Subscribe registers fn to run after every change; the returned func removes it.
// fn may run on any goroutine.
func (l *ChatList) Subscribe(fn func()) func() {
	l.mu.Lock()
	id := l.nextListener
	l.nextListener++
	l.listeners[id] = fn
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		delete(l.listeners, id)
		l.mu.Unlock()
	}
}

func (l *ChatList) notify() {
	l.mu.Lock()
	fns := make([]func(), 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (l *ChatList) fail(context string, err error) {
	wrapped := utils.WrapError(err, context)
	l.logger.Error("%v", wrapped)
	l.mu.Lock()
	l.errMsg = wrapped.Error()
	l.mu.Unlock()
	l.notify()
}

// mutate applies fn in the update context and schedules a save
func (l *ChatList) mutate(fn func() error) error {
	l.mu.Lock()
	if l.state != StateReady {
		l.mu.Unlock()
		return ErrNotReady
	}
	if err := fn(); err != nil {
		l.mu.Unlock()
		return err
	}
	l.version++
	l.mu.Unlock()

	l.debouncer.Trigger()
	l.notify()
	return nil
}

// mutateChat applies fn to the current state of one chat; fn reports whether it changed anything
func (l *ChatList) mutateChat(id string, fn func(c *db.Chat) (bool, error)) error {
	l.mu.Lock()
	if l.state != StateReady {
		l.mu.Unlock()
		return ErrNotReady
	}
	c := l.find(id)
	if c == nil {
		l.mu.Unlock()
		return ErrChatNotFound
	}
	changed, err := fn(c)
	if err != nil || !changed {
		l.mu.Unlock()
		return err
	}
	l.version++
	l.mu.Unlock()

	l.debouncer.Trigger()
	l.notify()
	return nil
}

// find returns the live chat; callers hold l.mu
func (l *ChatList) find(id string) *db.Chat {
	for _, c := range l.chats {
		if c.ID == id {
			return c
		}
	}
	return nil
}
