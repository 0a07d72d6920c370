package db

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"notechat/utils"
)

// ExportFormat represents the export format
type ExportFormat string

const (
	FormatJSON     ExportFormat = "json"
	FormatMarkdown ExportFormat = "markdown"
	FormatHTML     ExportFormat = "html"
)

// ParseExportFormat accepts "json", "markdown" (or "md") and "html"
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "html":
		return FormatHTML, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// ExportChats writes chats into dir and copies referenced images to dir/images.
// It returns the path of the written document.
func ExportChats(chats []*Chat, images *ImageStore, dir string, format ExportFormat) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	var (
		data []byte
		name string
		err  error
	)
	switch format {
	case FormatJSON:
		data, err = EncodeChats(chats)
		name = GenerateExportFilename("chats", format)
	case FormatMarkdown:
		data = []byte(RenderMarkdown(chats))
		name = GenerateExportFilename("chats", format)
	case FormatHTML:
		data, err = RenderHTML(chats)
		name = GenerateExportFilename("chats", format)
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return "", err
	}

	if err := copyImages(chats, images, filepath.Join(dir, ImageDirName)); err != nil {
		return "", err
	}

	path := filepath.Join(dir, name)
	if err := utils.WriteFileAtomic(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

// RenderMarkdown renders chats as one Markdown section per chat
func RenderMarkdown(chats []*Chat) string {
	var sb strings.Builder
	for i, c := range chats {
		name := c.Name
		if strings.TrimSpace(name) == "" {
			name = "Untitled"
		}
		sb.WriteString(fmt.Sprintf("# %s\n\n", name))
		if len(c.Messages) > 0 {
			sb.WriteString(fmt.Sprintf("*Last activity: %s*\n\n", c.LastMessageTime().Local().Format("2006-01-02 15:04:05")))
		}

		for _, msg := range c.Messages {
			stamp := msg.Timestamp.Local().Format("2006-01-02 15:04")
			switch msg.Type {
			case MessageImage:
				sb.WriteString(fmt.Sprintf("**%s**\n\n![image](%s/%s)\n\n", stamp, ImageDirName, msg.Image()))
			case MessageSystem:
				sb.WriteString(fmt.Sprintf("*%s - %s*\n\n", stamp, msg.Content()))
			default:
				sb.WriteString(fmt.Sprintf("**%s**\n\n%s\n\n", stamp, msg.Content()))
			}
		}

		if i < len(chats)-1 {
			sb.WriteString("---\n\n")
		}
	}
	return sb.String()
}

// RenderHTML renders the Markdown export as a standalone HTML page
func RenderHTML(chats []*Chat) ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))

	var body bytes.Buffer
	if err := md.Convert([]byte(RenderMarkdown(chats)), &body); err != nil {
		return nil, fmt.Errorf("failed to render html: %w", err)
	}

	var page bytes.Buffer
	page.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	page.WriteString("<title>Chats</title>\n")
	page.WriteString("<style>body{max-width:48em;margin:2em auto;font-family:sans-serif}img{max-width:100%}</style>\n")
	page.WriteString("</head>\n<body>\n")
	page.Write(body.Bytes())
	page.WriteString("</body>\n</html>\n")
	return page.Bytes(), nil
}

func copyImages(chats []*Chat, images *ImageStore, dst string) error {
	for _, c := range chats {
		for _, name := range c.ImagePaths() {
			if !images.Exists(name) {
				continue
			}
			src, err := images.Path(name)
			if err != nil {
				return err
			}
			if err := utils.CopyFile(src, filepath.Join(dst, name)); err != nil {
				return fmt.Errorf("failed to copy image %s: %w", name, err)
			}
		}
	}
	return nil
}

// GenerateExportFilename generates a filename for export
func GenerateExportFilename(title string, format ExportFormat) string {
	// Sanitize title for filename
	sanitized := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' || r == '"' || r == '<' || r == '>' || r == '|' {
			return '_'
		}
		return r
	}, title)

	// Truncate if too long
	if len(sanitized) > 50 {
		sanitized = sanitized[:50]
	}

	timestamp := time.Now().Format("20060102_150405")
	ext := string(format)
	if format == FormatMarkdown {
		ext = "md"
	}

	return fmt.Sprintf("%s_%s.%s", sanitized, timestamp, ext)
}
