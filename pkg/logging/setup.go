package logging

import (
	"io"
	"log/slog"
	"os"
)

// Setup wires slog's default logger to write to both stderr and a
// rotating file at path, the way the teacher's setupLogging does for
// its debug log — except SEFS is a daemon, so logging is always on
// rather than gated behind a --debug flag. Returns the RotatingFile so
// the caller can Close it on shutdown.
func Setup(path string, level slog.Level) (*RotatingFile, error) {
	logFile, err := NewRotatingFile(path)
	if err != nil {
		return nil, err
	}

	handler := slog.NewTextHandler(io.MultiWriter(os.Stderr, logFile), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
	return logFile, nil
}
