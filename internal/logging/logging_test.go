package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sink.log")

	logger, closer, err := Setup(Config{Level: "debug", File: path})
	require.NoError(t, err)

	logger.Debug().Str("device", "Speakers").Msg("output device selected")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "output device selected")
	assert.Contains(t, string(data), `"device":"Speakers"`)
}

func TestSetupConsole(t *testing.T) {
	var buf bytes.Buffer

	_, closer, err := Setup(Config{Level: "info", Console: true, Out: &buf})
	require.NoError(t, err)
	defer closer.Close()

	log.Info().Msg("playback started")
	log.Debug().Msg("hidden")

	assert.Contains(t, buf.String(), "playback started")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestSetupRejectsUnknownLevel(t *testing.T) {
	_, _, err := Setup(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestSetupWithoutOutputs(t *testing.T) {
	logger, closer, err := Setup(Config{})
	require.NoError(t, err)
	require.NoError(t, closer.Close())

	logger.Info().Msg("dropped")
}
