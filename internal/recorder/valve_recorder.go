package recorder

import (
	"context"
	"os"

	"github.com/r58io/core-service/internal/apperr"
)

// ValveRecorder gates the in-pipeline recording branch of a camera already
// running ingest's Variant B (tee) pipeline: the muxed file sink lives
// downstream of the tee's rec_valve element, so starting a recording is
// nothing more than opening that valve. Used for cameras provisioned with
// the live-mix (tee) variant, per spec.md §4.2's Variant B description.
type ValveRecorder struct {
	valves ValveController
}

func newValveRecorder(valves ValveController) *ValveRecorder {
	return &ValveRecorder{valves: valves}
}

// Start creates the output file the pipeline's rec_valve branch writes
// through once opened, then opens the valve. The file is created first so a
// stall-detection tick landing immediately after Start always finds a file
// to os.Stat.
func (v *ValveRecorder) Start(ctx context.Context, rec *Recording) error {
	f, err := os.OpenFile(rec.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return apperr.Wrap("recorder.ValveRecorder.Start", apperr.KindPipelineStartFailed, rec.CameraID, err)
	}
	if err := f.Close(); err != nil {
		return apperr.Wrap("recorder.ValveRecorder.Start", apperr.KindPipelineStartFailed, rec.CameraID, err)
	}
	if err := v.valves.OpenValve(rec.CameraID); err != nil {
		return apperr.Wrap("recorder.ValveRecorder.Start", apperr.KindPipelineStartFailed, rec.CameraID, err)
	}
	return nil
}

// Stop closes the valve. The pipeline keeps running for preview; only the
// recording branch is torn down.
func (v *ValveRecorder) Stop(ctx context.Context, rec *Recording) error {
	if err := v.valves.CloseValve(rec.CameraID); err != nil {
		return apperr.Wrap("recorder.ValveRecorder.Stop", apperr.KindPipelineRuntimeError, rec.CameraID, err)
	}
	return nil
}

var _ cameraRecorder = (*ValveRecorder)(nil)
