package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLoggerBackends(t *testing.T) {
	for _, backend := range []string{"zap", "zerolog"} {
		t.Run(backend, func(t *testing.T) {
			l := NewLogger(&LoggerConfig{Logger: backend, Level: "error", Encoding: "json"})
			assert.NotPanics(t, func() {
				l.Info(General, Startup, "hidden below error level", map[ExtraKey]any{RoomID: "r1"})
				l.Debug(Room, Join, "nil extras are fine", nil)
			})
		})
	}
}

func TestNewLoggerUnknownBackendPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewLogger(&LoggerConfig{Logger: "logrus"})
	})
}

func TestLogParams(t *testing.T) {
	params := logParamsToZapParams(map[ExtraKey]any{ConnID: "c1"})
	assert.Equal(t, []any{"ConnId", "c1"}, params)

	zero := logParamsToZeroParams(map[ExtraKey]any{ConnID: "c1"})
	assert.Equal(t, map[string]any{"ConnId": "c1"}, zero)
}
