package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLineFormatsKeyValues(t *testing.T) {
	assert.Equal(t, "signed in\n", line("signed in"))
	assert.Equal(t, "signed in user_id=42 device=Chrome\n", line("signed in", "user_id", 42, "device", "Chrome"))
	assert.Equal(t, "dangling key=1 orphan\n", line("dangling", "key", 1, "orphan"))
}

func TestLoggersSatisfyInterface(t *testing.T) {
	var _ Logger = defLogger{}

	logger := NoopLogger()
	assert.NotPanics(t, func() {
		logger.Debug("debug", "k", "v")
		logger.Info("info")
		logger.Warn("warn", "k")
		logger.Error("error", "k", 1)
	})
}
