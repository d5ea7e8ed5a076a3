package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/r58io/core-service/internal/config"
	"github.com/r58io/core-service/internal/ingest"
	"github.com/r58io/core-service/internal/recorder"
)

func TestVariantAdapter_TranslatesIngestVariantToRecorderVariant(t *testing.T) {
	sup := ingest.NewSupervisor(config.IngestConfig{}, []config.CameraConfig{
		{ID: "cam-valve", PipelineVariant: "valve"},
		{ID: "cam-subscriber", PipelineVariant: "subscriber"},
	}, nil, nil, nil, nil)
	adapter := variantAdapter{supervisor: sup}

	v, ok := adapter.VariantFor("cam-valve")
	assert.True(t, ok)
	assert.Equal(t, recorder.VariantValve, v)

	v, ok = adapter.VariantFor("cam-subscriber")
	assert.True(t, ok)
	assert.Equal(t, recorder.VariantSubscriber, v)

	_, ok = adapter.VariantFor("unknown-camera")
	assert.False(t, ok)
}
