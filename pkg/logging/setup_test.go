package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesToFileAndSetsDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sefs.log")

	logFile, err := Setup(path, slog.LevelInfo)
	require.NoError(t, err)
	defer logFile.Close()

	slog.Info("engine started", "root", "/data/docs")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "engine started")
}
