package utils

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Logger provides logging functionality
type Logger struct {
	mu      sync.Mutex
	file    *os.File
	logger  *log.Logger
	console io.Writer
	debug   bool
}

// NewLogger creates a logger that appends to logPath and echoes to console
func NewLogger(logPath string, console io.Writer) (*Logger, error) {
	// Ensure directory exists
	dir := filepath.Dir(logPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// Open log file
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	return &Logger{
		file:    file,
		logger:  log.New(file, "", log.LstdFlags),
		console: console,
	}, nil
}

// NewDiscardLogger returns a logger that drops everything
func NewDiscardLogger() *Logger {
	return &Logger{logger: log.New(io.Discard, "", 0)}
}

// SetDebug enables or disables debug output
func (l *Logger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

// Close closes the logger
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	l.write("INFO", format, v...)
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	l.write("ERROR", format, v...)
}

// Debug logs a debug message when debug output is enabled
func (l *Logger) Debug(format string, v ...interface{}) {
	l.mu.Lock()
	enabled := l.debug
	l.mu.Unlock()
	if enabled {
		l.write("DEBUG", format, v...)
	}
}

// Warn logs a warning message
func (l *Logger) Warn(format string, v ...interface{}) {
	l.write("WARN", format, v...)
}

func (l *Logger) write(level, format string, v ...interface{}) {
	msg := fmt.Sprintf("["+level+"] "+format, v...)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logger.Println(msg)
	if l.console != nil {
		fmt.Fprintln(l.console, msg)
	}
}

// GetLogPath returns the dated log path inside dir
func GetLogPath(dir string) string {
	if dir == "" {
		dir = filepath.Join(".", "logs")
	}
	return filepath.Join(dir, fmt.Sprintf("notechat-%s.log", time.Now().Format("2006-01-02")))
}
