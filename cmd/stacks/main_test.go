package main

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dieseltech/stacks/internal/common"
)

func setLogging(t *testing.T, level, format string) {
	t.Helper()
	viper.Set("logging.level", level)
	viper.Set("logging.format", format)
	t.Cleanup(func() {
		viper.Set("logging.level", "info")
		viper.Set("logging.format", "console")
	})
}

func TestSetupLoggingRejectsUnknownLevel(t *testing.T) {
	setLogging(t, "chatty", "console")
	assert.ErrorIs(t, setupLogging(), common.ErrInvalidConfig)
}

func TestSetupLoggingRejectsUnknownFormat(t *testing.T) {
	setLogging(t, "info", "xml")
	assert.ErrorIs(t, setupLogging(), common.ErrInvalidConfig)
}

func TestSetupLoggingAcceptsValidSettings(t *testing.T) {
	setLogging(t, "debug", "json")
	require.NoError(t, setupLogging())
}
