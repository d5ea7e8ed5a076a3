package probe

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// V4L2 ioctl request codes and struct layouts, per linux/videodev2.h. Only
// the fields this probe needs are modeled; reserved padding is kept so the
// struct sizes match what the kernel expects.
const (
	vidiocQuerycap = 0x80685600
	vidiocGFmt     = 0xc0d05604
	vBufTypeVideoCapture = 1
)

type v4l2Capability struct {
	Driver       [16]byte
	Card         [32]byte
	BusInfo      [32]byte
	Version      uint32
	Capabilities uint32
	DeviceCaps   uint32
	Reserved     [3]uint32
}

type v4l2PixFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	Field        uint32
	BytesPerLine uint32
	SizeImage    uint32
	Colorspace   uint32
	Priv         uint32
	Flags        uint32
	YcbcrEnc     uint32
	Quantization uint32
	XferFunc     uint32
}

// v4l2Format mirrors struct v4l2_format with the union collapsed to its
// pix member plus trailing padding, sized to match the kernel's ABI.
type v4l2Format struct {
	Type uint32
	_    [4]byte // alignment padding before the union on 64-bit
	Pix  v4l2PixFormat
	_    [200 - 48]byte // remainder of the 200-byte union payload
}

// IoctlExecutor probes a V4L2 device directly via ioctl, avoiding a
// v4l2-ctl subprocess per probe on the hot path.
type IoctlExecutor struct{}

// Query opens devicePath and issues VIDIOC_QUERYCAP + VIDIOC_G_FMT,
// returning the subset of CaptureCapabilities direct ioctls can answer. A
// device that exists but returns EINVAL/ENODATA for G_FMT (no active
// format, e.g. no signal) is reported with HasSignal left false rather than
// as an error.
func (e *IoctlExecutor) Query(devicePath string) (CaptureCapabilities, error) {
	caps := CaptureCapabilities{DevicePath: devicePath}

	fd, err := unix.Open(devicePath, unix.O_RDWR|unix.O_NONBLOCK, 0)
	if err != nil {
		return caps, fmt.Errorf("open %s: %w", devicePath, err)
	}
	defer unix.Close(fd)

	var cap v4l2Capability
	if err := ioctl(fd, vidiocQuerycap, unsafe.Pointer(&cap)); err != nil {
		return caps, fmt.Errorf("VIDIOC_QUERYCAP %s: %w", devicePath, err)
	}
	caps.DriverName = cString(cap.Driver[:])
	caps.CardName = cString(cap.Card[:])

	var format v4l2Format
	format.Type = vBufTypeVideoCapture
	if err := ioctl(fd, vidiocGFmt, unsafe.Pointer(&format)); err != nil {
		// No negotiated format is a normal "no signal" condition, not an error.
		caps.HasSignal = false
		return caps, nil
	}

	caps.HasSignal = format.Pix.Width > 0 && format.Pix.Height > 0
	caps.Width = int(format.Pix.Width)
	caps.Height = int(format.Pix.Height)
	caps.PixelFormat = fourCCString(format.Pix.PixelFormat)

	return caps, nil
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func fourCCString(v uint32) string {
	return string([]byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

// deviceExists is a cheap existence check used before attempting a full
// ioctl probe, so a missing /dev node is reported distinctly from a device
// that exists but refuses the open.
func deviceExists(devicePath string) bool {
	_, err := os.Stat(devicePath)
	return err == nil
}
