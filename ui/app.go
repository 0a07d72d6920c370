package ui

import (
	"context"
	"errors"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"notechat/controller"
	"notechat/utils"
)

// App represents the main application window
type App struct {
	fyneApp    fyne.App
	window     fyne.Window
	config     *utils.Config
	configPath string
	chats      *controller.ChatList
	logger     *utils.Logger

	// UI components
	sidebar     *ChatSidebar
	chatView    *ChatView
	status      *widget.Label
	errorDialog dialog.Dialog
	unsubscribe func()
}

// NewApp creates a new application instance bound to the chat list
func NewApp(config *utils.Config, configPath string, chats *controller.ChatList, logger *utils.Logger) *App {
	fyneApp := app.NewWithID("notechat")
	window := fyneApp.NewWindow("Notechat")

	// Set window size from config
	window.Resize(fyne.NewSize(
		float32(config.UI.WindowWidth),
		float32(config.UI.WindowHeight),
	))

	application := &App{
		fyneApp:    fyneApp,
		window:     window,
		config:     config,
		configPath: configPath,
		chats:      chats,
		logger:     logger,
	}

	// Save window size when closing
	window.SetOnClosed(func() {
		size := window.Canvas().Size()
		application.config.UI.WindowWidth = int(size.Width)
		application.config.UI.WindowHeight = int(size.Height)
		if err := utils.SaveConfig(application.configPath, application.config); err != nil {
			application.logger.Error("Failed to save window size: %v", err)
		}
		if application.unsubscribe != nil {
			application.unsubscribe()
		}
	})

	application.applyThemeFromConfig()
	application.buildUI()

	// Listeners can fire on any goroutine; hop back onto the UI goroutine
	application.unsubscribe = chats.Subscribe(func() {
		fyne.Do(application.refresh)
	})

	return application
}

// buildUI builds the main UI
func (a *App) buildUI() {
	a.sidebar = NewChatSidebar(a)
	a.chatView = NewChatView(a)
	a.status = widget.NewLabel("Loading chats...")

	newChatButton := widget.NewButtonWithIcon("New chat", theme.ContentAddIcon(), func() {
		a.createNewChat()
	})
	newChatButton.Importance = widget.HighImportance

	deleteChatButton := widget.NewButtonWithIcon("Delete chat", theme.DeleteIcon(), func() {
		a.confirmDeleteChat(a.chats.Selected())
	})

	settingsButton := widget.NewButtonWithIcon("Settings", theme.SettingsIcon(), func() {
		a.showSettings()
	})

	sidebarContainer := container.NewBorder(
		nil,
		container.NewVBox(newChatButton, deleteChatButton, settingsButton, a.status),
		nil,
		nil,
		a.sidebar.list,
	)

	split := container.NewHSplit(sidebarContainer, a.chatView.Build())
	split.SetOffset(0.28)

	a.window.SetContent(split)
}

// Run loads the chats in the background and shows the window
func (a *App) Run() {
	utils.SafeGo(a.logger, "initialize", func() {
		// the list records load failures in its error slot; refresh shows them
		a.chats.Initialize(context.Background())
	})
	a.window.ShowAndRun()
}

// refresh redraws everything from the chat list; runs on the UI goroutine
func (a *App) refresh() {
	switch a.chats.State() {
	case controller.StateReady:
		a.status.SetText("")
	default:
		a.status.SetText("Loading chats...")
	}

	a.sidebar.Refresh()
	a.chatView.Refresh()

	if msg := a.chats.Err(); msg != "" && a.errorDialog == nil {
		a.showError(msg)
	}
}

// showError shows the active error; dismissing it acknowledges the error
func (a *App) showError(message string) {
	d := dialog.NewError(errors.New(message), a.window)
	d.SetOnClosed(func() {
		a.errorDialog = nil
		a.chats.ClearError()
	})
	a.errorDialog = d
	d.Show()
}

// createNewChat creates a chat and opens it
func (a *App) createNewChat() {
	chat, err := a.chats.AddChat()
	if err != nil {
		a.logger.Error("Failed to create chat: %v", err)
		a.showError("Failed to create chat: " + err.Error())
		return
	}
	a.openChat(chat.ID)
}

// openChat starts an editing session for the chat
func (a *App) openChat(chatID string) {
	if chatID == "" || a.chatView.ChatID() == chatID {
		return
	}
	session, err := a.chats.OpenSession(chatID)
	if err != nil {
		a.logger.Error("Failed to open chat %s: %v", chatID, err)
		return
	}
	a.chatView.SetSession(session)
	a.sidebar.Refresh()
}

// confirmDeleteChat asks before deleting a chat and its images
func (a *App) confirmDeleteChat(chatID string) {
	if chatID == "" {
		return
	}
	chat, ok := a.chats.Chat(chatID)
	if !ok {
		return
	}
	name := chat.Name
	if name == "" {
		name = "Untitled"
	}

	dialog.ShowConfirm("Delete chat", "Delete \""+name+"\" and all of its images?", func(confirmed bool) {
		if !confirmed {
			return
		}
		utils.SafeGo(a.logger, "deleteChat", func() {
			if err := a.chats.DeleteChat(context.Background(), chatID); err != nil {
				return
			}
			fyne.Do(func() {
				if a.chatView.ChatID() == chatID {
					a.chatView.SetSession(nil)
				}
			})
		})
	}, a.window)
}

// applyThemeFromConfig applies the theme from config
func (a *App) applyThemeFromConfig() {
	isDark := a.config.UI.Theme == "dark"
	a.fyneApp.Settings().SetTheme(newCustomTheme(isDark))
	a.logger.Debug("Applied %s theme", a.config.UI.Theme)
}
