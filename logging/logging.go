// Package logging configures the process-wide slog logger. While the
// terminal monitor owns the screen, log output can be held back in memory
// and flushed once the screen is free again.
package logging

import (
	"bytes"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"lautenbacher.net/accelmon/config"
)

// heldWriter forwards to a target or holds output back, and copies every
// write to an optional log file.
type heldWriter struct {
	mu      sync.Mutex
	held    bytes.Buffer
	holding bool
	target  io.Writer
	file    *os.File
}

func (w *heldWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var firstErr error
	switch {
	case w.holding:
		w.held.Write(p)
	case w.target != nil:
		if _, err := w.target.Write(p); err != nil {
			firstErr = err
		}
	}
	if w.file != nil {
		if _, err := w.file.Write(p); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return len(p), firstErr
}

var writer = &heldWriter{target: os.Stderr}

// ParseLevel maps DEBUG, INFO, WARN and ERROR to slog levels, falling back
// to INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Init installs the default logger. With hold set, output is kept in
// memory until SetOutput is called.
func Init(conf config.LoggingConfig, hold bool) error {
	w := &heldWriter{holding: hold, target: os.Stderr}
	if conf.File != "" {
		file, err := os.OpenFile(conf.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
		if err != nil {
			return err
		}
		w.file = file
	}
	writer = w

	opts := &slog.HandlerOptions{Level: ParseLevel(conf.Level)}
	var handler slog.Handler
	if strings.EqualFold(conf.Format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// SetOutput flushes held output to target and writes through from now on.
func SetOutput(target io.Writer) error {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	if writer.held.Len() > 0 {
		if _, err := target.Write(writer.held.Bytes()); err != nil {
			return err
		}
		writer.held.Reset()
	}
	writer.target = target
	writer.holding = false
	return nil
}

// Close flushes held output (to stderr if no file is configured) and closes
// the log file.
func Close() error {
	writer.mu.Lock()
	defer writer.mu.Unlock()

	var firstErr error
	if writer.held.Len() > 0 && writer.file == nil {
		if _, err := os.Stderr.Write(writer.held.Bytes()); err != nil {
			firstErr = err
		}
	}
	writer.held.Reset()
	writer.holding = false
	if writer.file != nil {
		if err := writer.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		writer.file = nil
	}
	return firstErr
}
