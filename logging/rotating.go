package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Options controls log level and file rotation.
type Options struct {
	Level          string
	RetentionWeeks int
	MaxFileSize    int64
}

func (o Options) withDefaults() Options {
	if o.Level == "" {
		o.Level = "info"
	}
	if o.RetentionWeeks <= 0 {
		o.RetentionWeeks = 4
	}
	if o.MaxFileSize <= 0 {
		o.MaxFileSize = 100 * 1024 * 1024
	}
	return o
}

// RotatingWriter writes to one log file per ISO week, starting a numbered
// part when the current file exceeds the size cap, and deletes files older
// than the retention window.
type RotatingWriter struct {
	logDir      string
	retention   time.Duration
	maxFileSize int64

	mu          sync.Mutex
	currentFile *os.File
	currentWeek string
	currentSize int64
	part        int
	lastCleanup time.Time
}

// NewRotatingWriter creates a rotating writer for logDir.
func NewRotatingWriter(logDir string, retentionWeeks int, maxFileSize int64) *RotatingWriter {
	return &RotatingWriter{
		logDir:      logDir,
		retention:   time.Duration(retentionWeeks) * 7 * 24 * time.Hour,
		maxFileSize: maxFileSize,
	}
}

// weekKey returns the ISO week key, e.g. "2026-W35".
func weekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

func (rw *RotatingWriter) Write(p []byte) (int, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	now := time.Now()
	week := weekKey(now)
	if rw.currentFile == nil || week != rw.currentWeek || rw.currentSize >= rw.maxFileSize {
		if err := rw.rotate(week); err != nil {
			return 0, err
		}
	}

	n, err := rw.currentFile.Write(p)
	rw.currentSize += int64(n)

	if now.Sub(rw.lastCleanup) > 24*time.Hour {
		rw.lastCleanup = now
		go rw.cleanup()
	}

	return n, err
}

// rotate opens the file for targetWeek, bumping the part counter when the
// size cap forced the rotation. Caller holds the lock.
func (rw *RotatingWriter) rotate(targetWeek string) error {
	if rw.currentFile != nil {
		if err := rw.currentFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "failed to close log file during rotation: %v\n", err)
		}
		rw.currentFile = nil
	}

	if targetWeek != rw.currentWeek {
		rw.part = 0
	} else {
		rw.part++
	}

	if err := os.MkdirAll(rw.logDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", rw.logDir, err)
	}

	name := fmt.Sprintf("app-%s.log", targetWeek)
	if rw.part > 0 {
		name = fmt.Sprintf("app-%s.%d.log", targetWeek, rw.part)
	}
	path := filepath.Join(rw.logDir, name)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	info, err := file.Stat()
	if err == nil {
		rw.currentSize = info.Size()
	} else {
		rw.currentSize = 0
	}

	rw.currentFile = file
	rw.currentWeek = targetWeek
	return nil
}

// cleanup removes log files past the retention window.
func (rw *RotatingWriter) cleanup() {
	entries, err := os.ReadDir(rw.logDir)
	if err != nil {
		return
	}

	cutoff := time.Now().Add(-rw.retention)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "app-") || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(rw.logDir, entry.Name())); err != nil {
				fmt.Fprintf(os.Stderr, "failed to remove old log file %s: %v\n", entry.Name(), err)
			}
		}
	}
}

// Close closes the current log file.
func (rw *RotatingWriter) Close() error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	if rw.currentFile == nil {
		return nil
	}
	err := rw.currentFile.Close()
	rw.currentFile = nil
	return err
}

// SetupLogger builds the slog logger: text on stderr, JSON in the rotating
// file when a log directory is configured.
func SetupLogger(logDir string, opts Options) *slog.Logger {
	opts = opts.withDefaults()

	var level slog.Level
	switch strings.ToLower(opts.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	if logDir == "" {
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	}

	rotating := NewRotatingWriter(logDir, opts.RetentionWeeks, opts.MaxFileSize)
	writer := io.MultiWriter(os.Stderr, rotating)
	return slog.New(slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level}))
}
