package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config controls where log output goes and how much of it there is.
type Config struct {
	Level         string // minimum level written: debug, info, warn, error
	FilePath      string // log file location
	MaxSizeMB     int    // file size cap before rotation
	MaxFiles      int    // rotated backups kept
	WriteToStderr bool   // mirror lines to stderr as well as the file
}

// Rotation defaults when the config leaves them zero.
const (
	defaultMaxSizeMB = 10
	defaultMaxFiles  = 5
)

// DefaultConfig returns the standard file logging setup: info level,
// quarry.log under the user log dir, stderr mirror on.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     defaultMaxSizeMB,
		MaxFiles:      defaultMaxFiles,
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig at debug level.
func DebugConfig() Config {
	c := DefaultConfig()
	c.Level = "debug"
	return c
}

// Setup builds a JSON slog logger over a rotating log file. The writer
// creates the file's directory as needed. The returned cleanup syncs and
// closes the file; callers hold it for the life of the process.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	w, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}
	var out io.Writer = w
	if cfg.WriteToStderr {
		out = io.MultiWriter(w, os.Stderr)
	}
	handler := slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: LevelFromString(cfg.Level),
	})
	cleanup := func() {
		_ = w.Sync()
		_ = w.Close()
	}
	return slog.New(handler), cleanup, nil
}

// levelNames maps config level names to slog levels.
var levelNames = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// LevelFromString maps a config level name to its slog level. Unknown
// names fall back to info.
func LevelFromString(level string) slog.Level {
	if lv, ok := levelNames[strings.ToLower(level)]; ok {
		return lv
	}
	return slog.LevelInfo
}
