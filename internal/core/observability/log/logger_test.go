package log

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"INFO":    LevelInfo,
		"":        LevelInfo,
		"warning": LevelWarn,
		" error ": LevelError,
		"fatal":   LevelFatal,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestDerivedLoggerSharesLevel(t *testing.T) {
	root := NewWithOptions(LevelInfo, Options{OutputPaths: []string{"stdout"}})
	child := root.With(String("component", "test"))

	root.SetLevel(LevelError)
	assert.Equal(t, LevelError, child.GetLevel())
}

func TestFieldsConvert(t *testing.T) {
	fields := toZapFields(
		String("s", "v"),
		Float64("f", 1.5),
		Int("i", 3),
		Bool("b", true),
		Error(errors.New("boom")),
		Error(nil),
	)
	require.Len(t, fields, 6)
	assert.Equal(t, "s", fields[0].Key)
	assert.Equal(t, "error", fields[4].Key)
}

func TestNopLoggerDiscards(t *testing.T) {
	l := NewNop()
	l.Info("ignored", String("k", "v"))
	l.Log(LevelDebug, "ignored")
	assert.Equal(t, LevelFatal, l.GetLevel())
}
