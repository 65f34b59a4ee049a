package debug

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure(t *testing.T) {
	t.Cleanup(func() { Init(false) })

	var buf bytes.Buffer
	Configure(&buf, slog.LevelDebug, true)
	assert.True(t, Enabled())

	With("conn", 3).Debug("savepoint created", "savepoint", "sp2")
	assert.Contains(t, buf.String(), `"savepoint":"sp2"`)
	assert.Contains(t, buf.String(), `"conn":3`)

	buf.Reset()
	Configure(&buf, slog.LevelWarn, false)
	assert.False(t, Enabled())
	Info("hidden")
	Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestInitDisabledDiscardsWarnings(t *testing.T) {
	Init(false)
	assert.False(t, Enabled())
	assert.False(t, Logger().Enabled(context.Background(), slog.LevelWarn))
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
