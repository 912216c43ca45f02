package execproc

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRejectsEmpty(t *testing.T) {
	_, err := Parse("tts", "  ")
	assert.ErrorIs(t, err, ErrEmptyCommand)

	_, err = Parse("tts", `say "unterminated`)
	assert.Error(t, err)
}

func TestRunEchoesRequest(t *testing.T) {
	cmd, err := Parse("test", "cat")
	require.NoError(t, err)

	var lines [][]byte
	err = cmd.Run(context.Background(), map[string]string{"text": "hold the plank"}, func(line []byte) error {
		lines = append(lines, append([]byte(nil), line...))
		return nil
	})
	require.NoError(t, err)
	require.Len(t, lines, 1)

	var got map[string]string
	require.NoError(t, json.Unmarshal(lines[0], &got))
	assert.Equal(t, "hold the plank", got["text"])
}

func TestRunReportsStderr(t *testing.T) {
	cmd, err := Parse("test", `sh -c 'echo broken >&2; exit 3'`)
	require.NoError(t, err)

	err = cmd.Run(context.Background(), nil, func([]byte) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestRunStopsOnLineError(t *testing.T) {
	cmd, err := Parse("test", `sh -c 'echo one; echo two; sleep 5'`)
	require.NoError(t, err)

	stop := errors.New("stop")
	start := time.Now()
	err = cmd.Run(context.Background(), nil, func([]byte) error { return stop })
	assert.ErrorIs(t, err, stop)
	assert.Less(t, time.Since(start), 4*time.Second)
}

func TestRunHonoursDeadline(t *testing.T) {
	cmd, err := Parse("test", "sleep 5")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = cmd.Run(ctx, nil, func([]byte) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
