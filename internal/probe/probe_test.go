package probe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbe_NoDeviceNode_ReportsNoSignalNotError(t *testing.T) {
	p := New(ModeCLI, nil)
	caps, err := p.Probe(context.Background(), "/dev/video99-does-not-exist")
	require.NoError(t, err)
	assert.False(t, caps.HasSignal)
}

func TestParseV4L2CtlOutput_SignalPresent(t *testing.T) {
	out := "Driver name   : rkcif\nCard type     : HDMI Capture\nWidth/Height  : 1920/1080\nPixel Format  : 'YUYV'\n"
	caps := parseV4L2CtlOutput("/dev/video0", out)

	assert.True(t, caps.HasSignal)
	assert.Equal(t, "rkcif", caps.DriverName)
	assert.Equal(t, 1920, caps.Width)
	assert.Equal(t, 1080, caps.Height)
}

func TestParseV4L2CtlOutput_NoSignal(t *testing.T) {
	out := "Driver name   : rkcif\nCard type     : HDMI Capture\nNo video signal detected\n"
	caps := parseV4L2CtlOutput("/dev/video0", out)
	assert.False(t, caps.HasSignal)
}

func TestInitializeBridge_UnknownSubdeviceIsNoop(t *testing.T) {
	p := New(ModeCLI, nil)
	_, err := p.InitializeBridge(context.Background(), "/dev/video0", "unknown-subdevice")
	require.NoError(t, err)
}

func TestInitializeBridge_IdempotentForKnownSubdevice(t *testing.T) {
	p := New(ModeCLI, nil)
	ctx := context.Background()

	_, err := p.InitializeBridge(ctx, "/dev/video0", "rkcif-mipi-lvds0")
	require.NoError(t, err)

	p.initMu.Lock()
	initialized := p.initOnce["rkcif-mipi-lvds0"]
	p.initMu.Unlock()
	assert.True(t, initialized)

	_, err = p.InitializeBridge(ctx, "/dev/video0", "rkcif-mipi-lvds0")
	require.NoError(t, err)
}
