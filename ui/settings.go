package ui

import (
	"fmt"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"notechat/utils"
)

// showSettings opens the settings form. The theme applies immediately;
// storage and image settings take effect on the next start.
func (a *App) showSettings() {
	themeSelect := widget.NewSelect([]string{"light", "dark"}, nil)
	themeSelect.SetSelected(a.config.UI.Theme)

	backendSelect := widget.NewSelect([]string{"json", "sqlite"}, nil)
	backendSelect.SetSelected(a.config.Data.Backend)

	debounceEntry := widget.NewEntry()
	debounceEntry.SetText(strconv.Itoa(a.config.Data.DebounceMS))

	qualitySlider := widget.NewSlider(1, 100)
	qualitySlider.Step = 1
	qualitySlider.Value = float64(a.config.Images.JPEGQuality)
	qualityLabel := widget.NewLabel(strconv.Itoa(a.config.Images.JPEGQuality))
	qualitySlider.OnChanged = func(v float64) {
		qualityLabel.SetText(strconv.Itoa(int(v)))
	}

	maxDimEntry := widget.NewEntry()
	maxDimEntry.SetText(strconv.Itoa(a.config.Images.MaxDimension))

	debugCheck := widget.NewCheck("", nil)
	debugCheck.SetChecked(a.config.Log.Debug)

	dataDir := widget.NewLabel(a.config.Data.Dir)
	dataDir.Wrapping = fyne.TextWrapBreak

	items := []*widget.FormItem{
		widget.NewFormItem("Theme", themeSelect),
		widget.NewFormItem("Storage", backendSelect),
		widget.NewFormItem("Autosave delay (ms)", debounceEntry),
		widget.NewFormItem("JPEG quality", qualitySlider),
		widget.NewFormItem("", qualityLabel),
		widget.NewFormItem("Max image size (px)", maxDimEntry),
		widget.NewFormItem("Debug logging", debugCheck),
		widget.NewFormItem("Data folder", dataDir),
	}

	d := dialog.NewForm("Settings", "Save", "Cancel", items, func(save bool) {
		if !save {
			return
		}
		updated := *a.config
		updated.UI.Theme = themeSelect.Selected
		updated.Data.Backend = backendSelect.Selected
		updated.Images.JPEGQuality = int(qualitySlider.Value)
		updated.Log.Debug = debugCheck.Checked

		var err error
		if updated.Data.DebounceMS, err = parseNonNegative(debounceEntry.Text); err != nil {
			a.showError("Autosave delay: " + err.Error())
			return
		}
		if updated.Images.MaxDimension, err = parseNonNegative(maxDimEntry.Text); err != nil {
			a.showError("Max image size: " + err.Error())
			return
		}
		if err := updated.Validate(); err != nil {
			a.showError(err.Error())
			return
		}

		restart := updated.Data != a.config.Data || updated.Images != a.config.Images
		*a.config = updated
		a.applyThemeFromConfig()
		a.logger.SetDebug(updated.Log.Debug)

		if err := utils.SaveConfig(a.configPath, a.config); err != nil {
			a.logger.Error("Failed to save settings: %v", err)
			a.showError("Failed to save settings: " + err.Error())
			return
		}
		a.logger.Info("Settings saved")
		if restart {
			dialog.ShowInformation("Settings", "Storage and image settings apply after a restart.", a.window)
		}
	}, a.window)
	d.Resize(fyne.NewSize(520, 420))
	d.Show()
}

func parseNonNegative(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%q is not a number", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("must not be negative")
	}
	return n, nil
}
