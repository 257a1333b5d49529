package env

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetters(t *testing.T) {
	t.Setenv("WS_TEST_STRING", "hello")
	t.Setenv("WS_TEST_INT", "42")
	t.Setenv("WS_TEST_BAD_INT", "forty")
	t.Setenv("WS_TEST_BOOL", "true")
	t.Setenv("WS_TEST_DURATION", "90s")

	assert.Equal(t, "hello", GetString("WS_TEST_STRING", "x"))
	assert.Equal(t, "x", GetString("WS_TEST_MISSING", "x"))
	assert.Equal(t, 42, GetInt("WS_TEST_INT", 1))
	assert.Equal(t, 1, GetInt("WS_TEST_BAD_INT", 1))
	assert.True(t, GetBool("WS_TEST_BOOL", false))
	assert.Equal(t, 90*time.Second, GetDuration("WS_TEST_DURATION", time.Second))
	assert.Equal(t, time.Second, GetDuration("WS_TEST_MISSING", time.Second))
}
