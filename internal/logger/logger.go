// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Level is a log severity threshold
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelFatal: "FATAL",
}

// String returns the label written in front of each log line
func (lv Level) String() string {
	if name, ok := levelNames[lv]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int32(lv))
}

// ParseLevel converts a config value such as "warn" into a Level
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Logger wraps the standard log package with optional file output and a level threshold
type Logger struct {
	file   *os.File
	logger *log.Logger
	level  atomic.Int32
	mu     sync.RWMutex
	closed bool
}

var (
	defaultLogger *Logger
	defaultMu     sync.Mutex
)

// Init replaces the default logger with one writing to stdout and, if logFile is set, to that file
func Init(logFile string, level Level) (*Logger, error) {
	l, err := NewLogger(logFile, level)
	if err != nil {
		return nil, err
	}

	defaultMu.Lock()
	old := defaultLogger
	defaultLogger = l
	defaultMu.Unlock()

	if old != nil {
		old.Close()
	}
	return l, nil
}

// NewLogger creates a logger writing to stdout plus an append-only log file
func NewLogger(logFile string, level Level) (*Logger, error) {
	if logFile == "" {
		return New(os.Stdout, level), nil
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := New(io.MultiWriter(os.Stdout, file), level)
	l.file = file
	return l, nil
}

// New creates a logger writing to w
func New(w io.Writer, level Level) *Logger {
	l := &Logger{
		logger: log.New(w, "", log.LstdFlags|log.Lshortfile),
	}
	l.level.Store(int32(level))
	return l
}

// GetDefault returns the default logger, falling back to stdout if Init was never called
func GetDefault() *Logger {
	defaultMu.Lock()
	defer defaultMu.Unlock()

	if defaultLogger == nil {
		defaultLogger = New(os.Stdout, LevelInfo)
	}
	return defaultLogger
}

// SetLevel changes the threshold; safe to call while logging
func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// Level returns the current threshold
func (l *Logger) Level() Level {
	return Level(l.level.Load())
}

// logf writes one line if level passes the threshold.
// depth is the call depth handed to log.Output so Lshortfile points at the caller.
func (l *Logger) logf(depth int, level Level, format string, v ...interface{}) {
	if level < l.Level() {
		return
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return
	}

	message := fmt.Sprintf(format, v...)
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	l.logger.Output(depth, fmt.Sprintf("[%s] [%s] %s", timestamp, level, message))
}

// Printf logs a message at INFO level
func (l *Logger) Printf(format string, v ...interface{}) {
	l.logf(3, LevelInfo, format, v...)
}

// Errorf logs a message at ERROR level
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.logf(3, LevelError, format, v...)
}

// Warnf logs a message at WARN level
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.logf(3, LevelWarn, format, v...)
}

// Debugf logs a message at DEBUG level
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.logf(3, LevelDebug, format, v...)
}

// Fatalf logs a message at FATAL level and exits
func (l *Logger) Fatalf(format string, v ...interface{}) {
	l.logf(3, LevelFatal, format, v...)
	os.Exit(1)
}

// Close closes the log file; later messages are dropped
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Package-level convenience functions
func Printf(format string, v ...interface{}) {
	GetDefault().logf(3, LevelInfo, format, v...)
}

func Errorf(format string, v ...interface{}) {
	GetDefault().logf(3, LevelError, format, v...)
}

func Warnf(format string, v ...interface{}) {
	GetDefault().logf(3, LevelWarn, format, v...)
}

func Debugf(format string, v ...interface{}) {
	GetDefault().logf(3, LevelDebug, format, v...)
}

func Fatalf(format string, v ...interface{}) {
	GetDefault().logf(3, LevelFatal, format, v...)
	os.Exit(1)
}

// SetLevel changes the default logger's threshold
func SetLevel(level Level) {
	GetDefault().SetLevel(level)
}
