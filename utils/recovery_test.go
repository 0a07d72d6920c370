package utils

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSafeCallRecoversPanic(t *testing.T) {
	var console bytes.Buffer
	logger, err := NewLogger(filepath.Join(t.TempDir(), "test.log"), &console)
	require.NoError(t, err)
	defer logger.Close()

	err = SafeCall(logger, "autosave", func() { panic("boom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "autosave")
	assert.Contains(t, console.String(), "Panic recovered in autosave: boom")

	assert.NoError(t, SafeCall(logger, "quiet", func() {}))
}

func TestSafeGoWithErrorReportsError(t *testing.T) {
	logger := NewDiscardLogger()
	got := make(chan error, 1)
	want := errors.New("disk full")

	SafeGoWithError(logger, "save", func() error { return want }, func(err error) { got <- err })
	assert.ErrorIs(t, <-got, want)
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ctx"))

	base := errors.New("base")
	wrapped := WrapError(base, "Could not save chats")
	assert.ErrorIs(t, wrapped, base)
	assert.Equal(t, "Could not save chats: base", wrapped.Error())
}

func TestLoggerDebugGate(t *testing.T) {
	var console bytes.Buffer
	logger, err := NewLogger(GetLogPath(t.TempDir()), &console)
	require.NoError(t, err)
	defer logger.Close()

	logger.Debug("hidden")
	logger.SetDebug(true)
	logger.Debug("shown %d", 1)
	logger.Warn("careful")

	out := console.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[DEBUG] shown 1")
	assert.Contains(t, out, "[WARN] careful")
}
