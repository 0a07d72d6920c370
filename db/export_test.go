package db

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseExportFormat(t *testing.T) {
	for in, want := range map[string]ExportFormat{"json": FormatJSON, "JSON": FormatJSON, "markdown": FormatMarkdown, "md": FormatMarkdown, "html": FormatHTML} {
		got, err := ParseExportFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseExportFormat("pdf")
	assert.Error(t, err)
}

func exportFixture(t *testing.T) ([]*Chat, *ImageStore) {
	t.Helper()
	service, err := Open(t.TempDir(), BackendJSON, nil, nil)
	require.NoError(t, err)

	name, err := service.SaveImage(context.Background(), testPNG(t, 4, 4))
	require.NoError(t, err)

	chat := NewChat()
	chat.Name = "Trip"
	chat.Messages = append(chat.Messages,
		NewTextMessage("pack socks"),
		NewImageMessage(name),
		NewImageMessage("0C4A2A5E-0B5E-4C39-9C59-7B6B3A3B1E22.jpg"), // missing on disk
	)
	return []*Chat{chat, NewChat()}, service.Images()
}

func TestExportJSON(t *testing.T) {
	chats, images := exportFixture(t)
	out := t.TempDir()

	path, err := ExportChats(chats, images, out, FormatJSON)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".json"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	decoded, err := DecodeChats(data)
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, chats[0].ID, decoded[0].ID)

	copied, err := os.ReadDir(filepath.Join(out, ImageDirName))
	require.NoError(t, err)
	require.Len(t, copied, 1)
	assert.Equal(t, chats[0].Messages[1].Image(), copied[0].Name())
}

func TestExportMarkdown(t *testing.T) {
	chats, images := exportFixture(t)
	out := t.TempDir()

	path, err := ExportChats(chats, images, out, FormatMarkdown)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".md"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	md := string(data)
	assert.Contains(t, md, "# Trip")
	assert.Contains(t, md, "# Untitled")
	assert.Contains(t, md, "pack socks")
	assert.Contains(t, md, "![image](images/"+chats[0].Messages[1].Image()+")")
	assert.Equal(t, 1, strings.Count(md, "---"))
}

func TestExportHTML(t *testing.T) {
	chats, images := exportFixture(t)
	chats[0].Messages = append(chats[0].Messages, NewTextMessage("<script>alert(1)</script>"))
	out := t.TempDir()

	path, err := ExportChats(chats, images, out, FormatHTML)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".html"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	page := string(data)
	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Contains(t, page, "<h1>Trip</h1>")
	assert.Contains(t, page, `<img src="images/`+chats[0].Messages[1].Image()+`"`)
	assert.Contains(t, page, "<hr")
	assert.NotContains(t, page, "<script>")
}

func TestGenerateExportFilename(t *testing.T) {
	name := GenerateExportFilename(`a/b:c*"d`, FormatMarkdown)
	assert.True(t, strings.HasPrefix(name, "a_b_c__d_"))
	assert.True(t, strings.HasSuffix(name, ".md"))
	assert.NotContains(t, name, "/")

	long := GenerateExportFilename(strings.Repeat("x", 80), FormatJSON)
	assert.True(t, strings.HasPrefix(long, strings.Repeat("x", 50)+"_"))
}
