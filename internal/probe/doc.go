// Package probe implements device capability discovery (C1) for HDMI
// capture devices exposed through V4L2, including the vendor bridge
// sub-device initialization handshake HDMI-over-MIPI capture boards need
// before they report a usable signal.
package probe
