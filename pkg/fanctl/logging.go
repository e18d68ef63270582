package fanctl

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogging installs the default slog logger. With a log file, lines also go to a
// size-rotated file next to stderr. The returned func closes that file.
func setupLogging(debug bool, logFile string) func() {
	slogOpts := slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	if debug {
		slogOpts.Level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	closer := func() {}
	if logFile != "" {
		lj := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		}
		w = io.MultiWriter(os.Stderr, lj)
		closer = func() { lj.Close() }
	}

	log := slog.New(slog.NewTextHandler(w, &slogOpts))
	slog.SetDefault(log)
	return closer
}
