package sysmetrics

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
)

// DiskUsage reports free/total bytes for the filesystem backing path.
type DiskUsage struct {
	Path       string
	TotalBytes uint64
	FreeBytes  uint64
	UsedBytes  uint64
}

// FreeBytes returns the free bytes available on the filesystem backing
// path, used by the recorder's preflight and hard-stop checks.
func FreeBytes(path string) (uint64, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return 0, err
	}
	return usage.Free, nil
}

// GetDiskUsage returns a full usage snapshot for path.
func GetDiskUsage(path string) (DiskUsage, error) {
	usage, err := disk.Usage(path)
	if err != nil {
		return DiskUsage{}, err
	}
	return DiskUsage{
		Path:       path,
		TotalBytes: usage.Total,
		FreeBytes:  usage.Free,
		UsedBytes:  usage.Used,
	}, nil
}

// Snapshot is a point-in-time system resource reading.
type Snapshot struct {
	CPUPercent    float64
	MemoryPercent float64
	Goroutines    int
	SampledAt     time.Time
}

// Sample collects a CPUPercent reading over a short window; callers should
// not call this from a hot path since it blocks for `window`.
func Sample(window time.Duration) (Snapshot, error) {
	percentages, err := cpu.Percent(window, false)
	if err != nil {
		return Snapshot{}, err
	}
	cpuPct := 0.0
	if len(percentages) > 0 {
		cpuPct = percentages[0]
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	memPct := 0.0
	if mem.Sys > 0 {
		memPct = float64(mem.Alloc) / float64(mem.Sys) * 100.0
	}

	return Snapshot{
		CPUPercent:    cpuPct,
		MemoryPercent: memPct,
		Goroutines:    runtime.NumGoroutine(),
		SampledAt:     time.Now(),
	}, nil
}
