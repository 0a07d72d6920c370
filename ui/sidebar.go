package ui

import (
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"notechat/db"
)

// ChatSidebar lists chats, most recently active first
type ChatSidebar struct {
	app   *App
	list  *widget.List
	items []*db.Chat

	// set while the list selection is being synced from the model
	syncing bool
}

// NewChatSidebar creates the chat list widget
func NewChatSidebar(app *App) *ChatSidebar {
	s := &ChatSidebar{app: app}

	s.list = widget.NewList(
		func() int {
			return len(s.items)
		},
		func() fyne.CanvasObject {
			title := widget.NewLabel("Chat name")
			title.Truncation = fyne.TextTruncateEllipsis
			detail := widget.NewLabel("")
			detail.SizeName = theme.SizeNameCaptionText
			return container.NewVBox(title, detail)
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			if id >= len(s.items) {
				return
			}
			chat := s.items[id]
			box := obj.(*fyne.Container)
			box.Objects[0].(*widget.Label).SetText(chatTitle(chat))
			box.Objects[1].(*widget.Label).SetText(chatDetail(chat))
		},
	)

	s.list.OnSelected = func(id widget.ListItemID) {
		if s.syncing || id >= len(s.items) {
			return
		}
		s.app.openChat(s.items[id].ID)
	}

	return s
}

// Refresh reloads the items from the chat list and syncs the selection
func (s *ChatSidebar) Refresh() {
	s.items = s.app.chats.Chats()
	s.list.Refresh()

	selected := s.app.chats.Selected()
	s.syncing = true
	defer func() { s.syncing = false }()
	for i, c := range s.items {
		if c.ID == selected {
			s.list.Select(i)
			return
		}
	}
	s.list.UnselectAll()
}

func chatTitle(c *db.Chat) string {
	if strings.TrimSpace(c.Name) == "" {
		return "Untitled"
	}
	return c.Name
}

func chatDetail(c *db.Chat) string {
	if len(c.Messages) == 0 {
		return "No messages"
	}
	last := c.LastMessageTime().Local().Format("Jan 2 15:04")
	if len(c.Messages) == 1 {
		return "1 message · " + last
	}
	return fmt.Sprintf("%d messages · %s", len(c.Messages), last)
}
