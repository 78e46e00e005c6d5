package logger

import (
	"testing"

	"github.com/labstack/gommon/log"
	"github.com/stretchr/testify/assert"
)

func TestLevel(t *testing.T) {
	tests := map[string]log.Lvl{
		"debug":   log.DEBUG,
		" WARN ":  log.WARN,
		"warning": log.WARN,
		"error":   log.ERROR,
		"off":     log.OFF,
		"info":    log.INFO,
		"":        log.INFO,
		"verbose": log.INFO,
	}
	for s, want := range tests {
		assert.Equal(t, want, Level(s), s)
	}
}

func TestNew(t *testing.T) {
	t.Setenv("MACROTUNE_LOG_LEVEL", "debug")
	l := New("test")
	assert.Equal(t, "test", l.Prefix())
	assert.Equal(t, log.DEBUG, l.Level())
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))

	l := New("kept")
	assert.Same(t, l, OrDiscard(l))

	// must not panic
	OrDiscard(nil).Errorf("dropped %d", 1)
}
