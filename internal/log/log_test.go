package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, FormatJSON, true)
	require.NoError(t, err)
	logger.Info().Str("symbol", "BTCUSDT").Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["message"])
	assert.Equal(t, "BTCUSDT", entry["symbol"])

	buf.Reset()
	logger, err = NewLogger(&buf, FormatAuto, false)
	require.NoError(t, err)
	logger.Info().Msg("piped")
	assert.True(t, strings.HasPrefix(buf.String(), "{"))

	buf.Reset()
	logger, err = NewLogger(&buf, FormatConsole, false)
	require.NoError(t, err)
	logger.Info().Msg("console")
	assert.Contains(t, buf.String(), "console")
	assert.False(t, strings.HasPrefix(buf.String(), "{"))

	_, err = NewLogger(&buf, "xml", false)
	assert.Error(t, err)
}

func TestSetup_InvalidLevel(t *testing.T) {
	assert.Error(t, Setup("loud", FormatJSON))
}

func TestProgress_Throttles(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	clock := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	p := NewProgressWithLogger(logger, "optimize", 4, time.Minute)
	p.startTime = clock
	p.lastLog = clock
	p.now = func() time.Time { return clock }

	p.Done(true)
	p.Done(false)
	assert.Empty(t, buf.String())

	clock = clock.Add(2 * time.Minute)
	p.Done(true)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "optimize progress: 75.0%")
	assert.Contains(t, lines[0], `"failed":1`)

	p.Done(true)
	lines = strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "optimize completed")

	completed, failed := p.Counts()
	assert.Equal(t, 4, completed)
	assert.Equal(t, 1, failed)
}
