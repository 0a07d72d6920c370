package ui

import (
	"context"
	"errors"
	"io"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"notechat/controller"
	"notechat/db"
	"notechat/utils"
)

// maxImageHeight caps how tall an image message is drawn
const maxImageHeight = 240

// inputEntry extends Entry to submit on Ctrl+Enter and cancel an edit on Escape
type inputEntry struct {
	widget.Entry
	onSubmit func()
	onCancel func()
}

func newInputEntry() *inputEntry {
	e := &inputEntry{}
	e.MultiLine = true
	e.Wrapping = fyne.TextWrapWord
	e.SetMinRowsVisible(3)
	e.ExtendBaseWidget(e)
	return e
}

// TypedShortcut handles keyboard shortcuts
func (e *inputEntry) TypedShortcut(shortcut fyne.Shortcut) {
	if ks, ok := shortcut.(*desktop.CustomShortcut); ok {
		if (ks.KeyName == fyne.KeyReturn || ks.KeyName == fyne.KeyEnter) &&
			ks.Modifier == fyne.KeyModifierShortcutDefault {
			if e.onSubmit != nil {
				e.onSubmit()
				return
			}
		}
	}
	e.Entry.TypedShortcut(shortcut)
}

// TypedKey intercepts key events as a fallback
func (e *inputEntry) TypedKey(key *fyne.KeyEvent) {
	switch key.Name {
	case fyne.KeyEscape:
		if e.onCancel != nil {
			e.onCancel()
			return
		}
	case fyne.KeyReturn, fyne.KeyEnter:
		if drv, ok := fyne.CurrentApp().Driver().(desktop.Driver); ok {
			if drv.CurrentKeyModifiers()&fyne.KeyModifierShortcutDefault != 0 && e.onSubmit != nil {
				e.onSubmit()
				return
			}
		}
	}
	e.Entry.TypedKey(key)
}

// ChatView shows the messages of the open chat and the composer
type ChatView struct {
	app     *App
	session *controller.Session

	nameEntry         *widget.Entry
	messagesContainer *fyne.Container
	messagesScroll    *container.Scroll
	input             *inputEntry
	sendButton        *widget.Button
	cancelButton      *widget.Button
	attachButton      *widget.Button
	editBanner        *widget.Label

	// number of messages last drawn, used to scroll down on append
	shown int
}

// NewChatView creates an empty chat view
func NewChatView(app *App) *ChatView {
	return &ChatView{app: app}
}

// Build builds the chat view UI
func (cv *ChatView) Build() fyne.CanvasObject {
	cv.nameEntry = widget.NewEntry()
	cv.nameEntry.SetPlaceHolder("Chat name")
	cv.nameEntry.OnChanged = func(name string) {
		if cv.session == nil {
			return
		}
		if err := cv.app.chats.RenameChat(cv.session.ChatID(), name); err != nil {
			cv.app.logger.Warn("Failed to rename chat: %v", err)
		}
	}

	cv.messagesContainer = container.NewVBox()
	cv.messagesScroll = container.NewVScroll(cv.messagesContainer)
	cv.messagesScroll.SetMinSize(fyne.NewSize(500, 400))

	cv.input = newInputEntry()
	cv.input.SetPlaceHolder("Write a note... (Ctrl+Enter to send)")
	cv.input.onSubmit = cv.submit
	cv.input.onCancel = cv.cancelEdit

	cv.sendButton = widget.NewButtonWithIcon("Send", theme.MailSendIcon(), cv.submit)
	cv.sendButton.Importance = widget.HighImportance
	cv.cancelButton = widget.NewButton("Cancel", cv.cancelEdit)
	cv.cancelButton.Hide()
	cv.attachButton = widget.NewButtonWithIcon("", theme.FileImageIcon(), cv.chooseImage)

	cv.editBanner = widget.NewLabel("Editing message")
	cv.editBanner.TextStyle = fyne.TextStyle{Italic: true}
	cv.editBanner.Hide()

	inputContainer := container.NewBorder(
		cv.editBanner,
		nil,
		cv.attachButton,
		container.NewVBox(cv.sendButton, cv.cancelButton),
		cv.input,
	)

	cv.setEnabled(false)

	return container.NewBorder(
		cv.nameEntry,
		inputContainer,
		nil,
		nil,
		cv.messagesScroll,
	)
}

// ChatID returns the id of the open chat, or ""
func (cv *ChatView) ChatID() string {
	if cv.session == nil {
		return ""
	}
	return cv.session.ChatID()
}

// SetSession switches the view to another chat; nil shows an empty view
func (cv *ChatView) SetSession(session *controller.Session) {
	cv.session = session
	cv.shown = 0
	cv.input.SetText("")
	cv.showEditMode(false)
	cv.setEnabled(session != nil)
	cv.Refresh()
	cv.messagesScroll.ScrollToBottom()
}

// Refresh redraws the open chat from the chat list
func (cv *ChatView) Refresh() {
	if cv.session == nil {
		cv.nameEntry.SetText("")
		cv.messagesContainer.Objects = nil
		cv.messagesContainer.Refresh()
		return
	}

	chat, ok := cv.app.chats.Chat(cv.session.ChatID())
	if !ok {
		// deleted underneath us
		cv.SetSession(nil)
		return
	}

	if cv.nameEntry.Text != chat.Name {
		cv.nameEntry.SetText(chat.Name)
	}

	objects := make([]fyne.CanvasObject, 0, len(chat.Messages))
	for _, msg := range chat.Messages {
		objects = append(objects, cv.buildMessageUI(msg))
	}
	cv.messagesContainer.Objects = objects
	cv.messagesContainer.Refresh()

	if cv.session.Editing() == "" {
		cv.showEditMode(false)
	}
	if len(chat.Messages) > cv.shown {
		cv.messagesScroll.ScrollToBottom()
	}
	cv.shown = len(chat.Messages)
}

// buildMessageUI renders one message with its actions
func (cv *ChatView) buildMessageUI(msg db.Message) fyne.CanvasObject {
	stamp := widget.NewLabel(msg.Timestamp.Local().Format("Jan 2 15:04"))
	stamp.SizeName = theme.SizeNameCaptionText
	stamp.Importance = widget.LowImportance

	var content fyne.CanvasObject
	switch msg.Type {
	case db.MessageImage:
		content = cv.renderImage(msg)
	case db.MessageSystem:
		label := widget.NewLabel(msg.Content())
		label.Wrapping = fyne.TextWrapWord
		label.TextStyle = fyne.TextStyle{Italic: true}
		label.Alignment = fyne.TextAlignCenter
		return container.NewVBox(label, widget.NewSeparator())
	default:
		label := widget.NewLabel(msg.Content())
		label.Wrapping = fyne.TextWrapWord
		label.Selectable = true
		content = label
	}

	id := msg.ID
	actions := container.NewHBox()
	if msg.Type == db.MessageText {
		editButton := widget.NewButtonWithIcon("", theme.DocumentCreateIcon(), func() {
			cv.beginEdit(id)
		})
		editButton.Importance = widget.LowImportance
		actions.Add(editButton)
	}
	deleteButton := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
		cv.confirmDeleteMessage(id)
	})
	deleteButton.Importance = widget.LowImportance
	actions.Add(deleteButton)

	return container.NewVBox(
		container.NewBorder(nil, nil, stamp, actions),
		content,
		widget.NewSeparator(),
	)
}

func (cv *ChatView) renderImage(msg db.Message) fyne.CanvasObject {
	path, err := cv.session.ImagePath(msg)
	if err != nil {
		cv.app.logger.Warn("Bad image reference in message %s: %v", msg.ID, err)
		return widget.NewLabel("(image unavailable)")
	}
	img := canvas.NewImageFromFile(path)
	img.FillMode = canvas.ImageFillContain
	img.ScaleMode = canvas.ImageScaleSmooth
	img.SetMinSize(fyne.NewSize(maxImageHeight*4/3, maxImageHeight))
	return img
}

// submit sends the input as a new message, or commits the edit in progress
func (cv *ChatView) submit() {
	if cv.session == nil {
		return
	}
	err := cv.session.Submit(cv.input.Text)
	switch {
	case err == nil:
		cv.input.SetText("")
		cv.showEditMode(false)
	case errors.Is(err, controller.ErrEmptyText):
		cv.app.showError("A message cannot be empty. Delete it instead.")
	default:
		cv.app.logger.Error("Failed to submit message: %v", err)
		cv.app.showError("Failed to save message: " + err.Error())
	}
}

func (cv *ChatView) beginEdit(messageID string) {
	if err := cv.session.BeginEdit(messageID); err != nil {
		cv.app.logger.Warn("Cannot edit message %s: %v", messageID, err)
		return
	}
	for _, msg := range cv.session.Messages() {
		if msg.ID == messageID {
			cv.input.SetText(msg.Content())
			break
		}
	}
	cv.showEditMode(true)
	cv.app.window.Canvas().Focus(cv.input)
}

func (cv *ChatView) cancelEdit() {
	if cv.session == nil || cv.session.Editing() == "" {
		return
	}
	cv.session.CancelEdit()
	cv.input.SetText("")
	cv.showEditMode(false)
}

func (cv *ChatView) showEditMode(editing bool) {
	if editing {
		cv.sendButton.SetText("Save")
		cv.cancelButton.Show()
		cv.editBanner.Show()
		return
	}
	cv.sendButton.SetText("Send")
	cv.cancelButton.Hide()
	cv.editBanner.Hide()
}

func (cv *ChatView) confirmDeleteMessage(messageID string) {
	session := cv.session
	dialog.ShowConfirm("Delete message", "Delete this message?", func(confirmed bool) {
		if !confirmed {
			return
		}
		// failures also land in the chat list error slot
		utils.SafeGoWithError(cv.app.logger, "deleteMessage", func() error {
			return session.DeleteMessage(context.Background(), messageID)
		}, nil)
	}, cv.app.window)
}

// chooseImage lets the user pick an image file and attaches it
func (cv *ChatView) chooseImage() {
	session := cv.session
	if session == nil {
		return
	}

	fd := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			cv.app.logger.Error("File dialog error: %v", err)
			return
		}
		if reader == nil {
			return
		}
		// the extension filter is only a hint on some platforms
		if name := reader.URI().Name(); !utils.IsImageFile(name) {
			reader.Close()
			cv.app.showError("Not an image file: " + name)
			return
		}

		utils.SafeGo(cv.app.logger, "attachImage", func() {
			defer reader.Close()
			data, err := io.ReadAll(reader)
			if err != nil {
				cv.app.logger.Error("Failed to read %s: %v", reader.URI().Name(), err)
				fyne.Do(func() {
					cv.app.showError("Failed to read image: " + err.Error())
				})
				return
			}
			// attached to the chat the picker was opened for, even if the view moved on
			if _, err := session.AttachImage(context.Background(), data); err != nil {
				cv.app.logger.Warn("Image %s not attached: %v", reader.URI().Name(), err)
			}
		})
	}, cv.app.window)

	var extensions []string
	for _, ext := range utils.ImageExtensions() {
		extensions = append(extensions, ext, strings.ToUpper(ext))
	}
	fd.SetFilter(storage.NewExtensionFileFilter(extensions))
	fd.Show()
}

func (cv *ChatView) setEnabled(enabled bool) {
	widgets := []fyne.Disableable{cv.nameEntry, cv.input, cv.sendButton, cv.attachButton}
	for _, w := range widgets {
		if enabled {
			w.Enable()
		} else {
			w.Disable()
		}
	}
}
