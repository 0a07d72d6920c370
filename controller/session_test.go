package controller

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notechat/db"
)

func openTestSession(t *testing.T, chats ...*db.Chat) (*ChatList, *Session, *fakeStore) {
	t.Helper()
	if len(chats) == 0 {
		chats = []*db.Chat{chatAt("notes")}
	}
	store := newFakeStore(chats...)
	l := newReadyList(t, store, manual)
	session, err := l.OpenSession(chats[0].ID)
	require.NoError(t, err)
	return l, session, store
}

func TestOpenSessionSelectsChat(t *testing.T) {
	l, session, _ := openTestSession(t)
	assert.Equal(t, session.ChatID(), l.Selected())

	_, err := l.OpenSession("missing")
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestSendMessage(t *testing.T) {
	l, session, _ := openTestSession(t)

	require.NoError(t, session.SendMessage("  buy milk \n"))
	msgs := session.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "buy milk", msgs[0].Content())
	assert.Equal(t, db.MessageText, msgs[0].Type)
	assert.Nil(t, msgs[0].ImagePath)
	assert.True(t, l.Dirty())
}

func TestSendBlankMessageIsIgnored(t *testing.T) {
	l, session, store := openTestSession(t)

	var notified int
	l.Subscribe(func() { notified++ })

	for _, text := range []string{"", "   ", "\n\t"} {
		require.NoError(t, session.SendMessage(text))
	}
	assert.Empty(t, session.Messages())
	assert.False(t, l.Dirty())
	assert.Zero(t, notified)
	assert.Zero(t, store.saveCount())
}

func TestSendMessageMovesChatToTop(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	quiet := chatAt("quiet", base)
	busy := chatAt("busy", base.Add(time.Hour))
	l, session, _ := openTestSession(t, quiet, busy)

	assert.Equal(t, []string{"busy", "quiet"}, names(l.Chats()))
	require.NoError(t, session.SendMessage("hello"))
	assert.Equal(t, []string{"quiet", "busy"}, names(l.Chats()))
}

func TestEditKeepsIdentity(t *testing.T) {
	_, session, _ := openTestSession(t)
	require.NoError(t, session.SendMessage("first"))
	require.NoError(t, session.SendMessage("second"))
	original := session.Messages()[0]

	require.NoError(t, session.BeginEdit(original.ID))
	assert.Equal(t, original.ID, session.Editing())

	// Submit routes to the edit while one is in progress
	require.NoError(t, session.Submit(" corrected "))
	assert.Empty(t, session.Editing())

	msgs := session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, original.ID, msgs[0].ID)
	assert.Equal(t, db.MessageText, msgs[0].Type)
	assert.Equal(t, "corrected", msgs[0].Content())
	assert.False(t, msgs[0].Timestamp.Before(original.Timestamp))
	assert.Equal(t, "second", msgs[1].Content())
}

func TestCommitEditRejectsEmptyText(t *testing.T) {
	_, session, _ := openTestSession(t)
	require.NoError(t, session.SendMessage("keep me"))
	id := session.Messages()[0].ID

	require.NoError(t, session.BeginEdit(id))
	assert.ErrorIs(t, session.CommitEdit("   "), ErrEmptyText)
	assert.Equal(t, id, session.Editing(), "edit mode survives a rejected commit")
	assert.Equal(t, "keep me", session.Messages()[0].Content())

	session.CancelEdit()
	assert.Empty(t, session.Editing())
	assert.ErrorIs(t, session.CommitEdit("x"), ErrNotEditing)
}

func TestBeginEditRejectsImageMessages(t *testing.T) {
	chat := chatWithImages("pics", "p.jpg")
	_, session, _ := openTestSession(t, chat)

	assert.ErrorIs(t, session.BeginEdit(chat.Messages[1].ID), ErrNotEditable)
	assert.ErrorIs(t, session.BeginEdit("missing"), ErrMessageNotFound)
	assert.Empty(t, session.Editing())
}

func TestDeleteTextMessage(t *testing.T) {
	_, session, _ := openTestSession(t)
	require.NoError(t, session.SendMessage("one"))
	require.NoError(t, session.SendMessage("two"))
	first := session.Messages()[0]

	require.NoError(t, session.BeginEdit(first.ID))
	require.NoError(t, session.DeleteMessage(context.Background(), first.ID))

	msgs := session.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "two", msgs[0].Content())
	assert.Empty(t, session.Editing())

	assert.ErrorIs(t, session.DeleteMessage(context.Background(), first.ID), ErrMessageNotFound)
}

func TestDeleteImageMessage(t *testing.T) {
	chat := chatWithImages("pics", "p.jpg")
	l, session, store := openTestSession(t, chat)

	require.NoError(t, session.DeleteMessage(context.Background(), chat.Messages[1].ID))
	assert.Len(t, session.Messages(), 1)
	assert.False(t, store.hasImage("p.jpg"))
	assert.True(t, l.Dirty())
}

func TestDeleteImageMessageKeepsMessageWhenFileDeleteFails(t *testing.T) {
	chat := chatWithImages("pics", "p.jpg")
	l, session, store := openTestSession(t, chat)
	store.deleteImageErr["p.jpg"] = errDisk

	err := session.DeleteMessage(context.Background(), chat.Messages[1].ID)
	require.ErrorIs(t, err, errDisk)
	assert.Len(t, session.Messages(), 2)
	assert.True(t, store.hasImage("p.jpg"))
	assert.Contains(t, l.Err(), "Could not delete image")
	assert.False(t, l.Dirty())
}

func TestAttachImage(t *testing.T) {
	l, session, store := openTestSession(t)

	msg, err := session.AttachImage(context.Background(), []byte("jpeg bytes"))
	require.NoError(t, err)
	assert.Equal(t, db.MessageImage, msg.Type)
	assert.Nil(t, msg.Text)
	assert.True(t, store.hasImage(msg.Image()))

	msgs := session.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)
	assert.True(t, l.Dirty())

	path, err := session.ImagePath(msgs[0])
	require.NoError(t, err)
	assert.Equal(t, "/images/"+msg.Image(), path)
}

func TestAttachImageFailureAppendsNothing(t *testing.T) {
	l, session, store := openTestSession(t)
	store.saveImageErr = db.ErrImageSave

	_, err := session.AttachImage(context.Background(), []byte("broken"))
	require.ErrorIs(t, err, db.ErrImageSave)
	assert.Empty(t, session.Messages())
	assert.Contains(t, l.Err(), "Could not save image")
	assert.False(t, l.Dirty())
}

func TestAttachImageAfterChatDeletedRemovesFile(t *testing.T) {
	l, session, store := openTestSession(t)
	require.NoError(t, l.DeleteChat(context.Background(), session.ChatID()))

	_, err := session.AttachImage(context.Background(), []byte("late"))
	require.ErrorIs(t, err, ErrChatNotFound)

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Empty(t, store.images)
	assert.Len(t, store.deleted, 1)
}

func TestConcurrentSessionChangesAllLand(t *testing.T) {
	_, session, _ := openTestSession(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 20; i++ {
			session.AttachImage(context.Background(), []byte("img"))
		}
	}()
	for i := 0; i < 20; i++ {
		require.NoError(t, session.SendMessage("text"))
	}
	<-done

	var text, images int
	for _, m := range session.Messages() {
		switch m.Type {
		case db.MessageText:
			text++
		case db.MessageImage:
			images++
		}
	}
	assert.Equal(t, 20, text)
	assert.Equal(t, 20, images)
}
