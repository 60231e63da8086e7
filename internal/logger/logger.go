package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	once     sync.Once
	instance zerolog.Logger

	mu     sync.RWMutex
	level  = zerolog.InfoLevel
	logDir string
)

// SetLevel sets the global log level from a string such as "debug" or "info".
// Unknown values fall back to info.
func SetLevel(levelStr string) {
	mu.Lock()
	defer mu.Unlock()
	if lvl, err := zerolog.ParseLevel(strings.ToLower(levelStr)); err == nil && lvl != zerolog.NoLevel {
		level = lvl
	} else {
		level = zerolog.InfoLevel
	}
}

// SetLogDir enables rotated file output under dir in addition to the console.
func SetLogDir(dir string) {
	mu.Lock()
	defer mu.Unlock()
	logDir = dir
}

func output(name string) io.Writer {
	console := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
	mu.RLock()
	dir := logDir
	mu.RUnlock()
	if dir == "" {
		return console
	}
	fileWriter := &lumberjack.Logger{
		Filename:   filepath.Join(dir, name+".log"),
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	}
	return zerolog.MultiLevelWriter(console, fileWriter)
}

// New returns a named component logger.
func New(name string) zerolog.Logger {
	mu.RLock()
	lvl := level
	mu.RUnlock()
	return zerolog.New(output(name)).
		Level(lvl).
		With().
		Timestamp().
		Str("component", name).
		Logger()
}

// Default returns the shared application logger.
func Default() zerolog.Logger {
	once.Do(func() {
		instance = New("debridui")
	})
	return instance
}
