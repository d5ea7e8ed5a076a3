package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_FormatsWithoutCause(t *testing.T) {
	err := New("ingest.Start", KindDeviceBusy, "cam1")
	assert.Equal(t, "ingest.Start: cam1: device-busy", err.Error())
}

func TestWrap_FormatsWithCause(t *testing.T) {
	cause := errors.New("device or resource busy")
	err := Wrap("ingest.Start", KindDeviceBusy, "cam1", cause)
	assert.Equal(t, "ingest.Start: cam1: device-busy: device or resource busy", err.Error())
	assert.Same(t, cause, errors.Unwrap(err))
}

func TestWrap_NilCauseReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap("ingest.Start", KindDeviceBusy, "cam1", nil))
}

func TestIs_MatchesWrappedKind(t *testing.T) {
	err := fmt.Errorf("context: %w", New("recorder.StartSession", KindSessionConflict, "session-1"))
	assert.True(t, Is(err, KindSessionConflict))
	assert.False(t, Is(err, KindStorageCritical))
}

func TestKindOf_ReturnsFalseForPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestKindOf_ReturnsKindForAppError(t *testing.T) {
	kind, ok := KindOf(New("broker.CreatePath", KindBrokerUnreachable, "cam1"))
	assert.True(t, ok)
	assert.Equal(t, KindBrokerUnreachable, kind)
}
