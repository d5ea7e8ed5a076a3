package logging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_DefaultsToInfoLevel(t *testing.T) {
	logger := NewLogger("test-component")
	assert.NotNil(t, logger.Logger)
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
}

func TestGetGlobalLogger_ReturnsSameInstance(t *testing.T) {
	first := GetGlobalLogger()
	second := GetGlobalLogger()
	assert.Same(t, first, second)
}

func TestGetLogger_CreatesDistinctComponentLoggers(t *testing.T) {
	a := GetLogger("component-a")
	b := GetLogger("component-b")
	assert.NotSame(t, a, b)
}

func TestSetupLogging_AppliesConfiguredLevel(t *testing.T) {
	err := SetupLogging(&LoggingConfig{Level: "debug", Format: "text", ConsoleEnabled: true})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, GetGlobalLogger().GetLevel())
}

func TestSetupLogging_InvalidLevelFallsBackToInfo(t *testing.T) {
	err := SetupLogging(&LoggingConfig{Level: "not-a-level", ConsoleEnabled: true})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, GetGlobalLogger().GetLevel())
}

func TestSetupLogging_FileHandlerCreatesLogDirectory(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "nested", "service.log")

	err := SetupLogging(&LoggingConfig{
		Level:       "info",
		Format:      "json",
		FileEnabled: true,
		FilePath:    logPath,
		MaxFileSize: 1024 * 1024,
		BackupCount: 1,
	})
	require.NoError(t, err)

	_, statErr := os.Stat(filepath.Dir(logPath))
	require.NoError(t, statErr)
}

func TestWithCorrelationID_AttachesIDWithoutMutatingOriginal(t *testing.T) {
	base := NewLogger("test-component")
	withID := base.WithCorrelationID("req-123")

	assert.Equal(t, "req-123", withID.correlationID)
	assert.Empty(t, base.correlationID)
}

func TestCorrelationIDContext_RoundTrips(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "req-456")
	assert.Equal(t, "req-456", GetCorrelationIDFromContext(ctx))
}

func TestGetCorrelationIDFromContext_EmptyWhenAbsent(t *testing.T) {
	assert.Empty(t, GetCorrelationIDFromContext(context.Background()))
	assert.Empty(t, GetCorrelationIDFromContext(nil))
}

func TestGenerateCorrelationID_ProducesUniqueValues(t *testing.T) {
	a := GenerateCorrelationID()
	b := GenerateCorrelationID()
	assert.NotEqual(t, a, b)
}
