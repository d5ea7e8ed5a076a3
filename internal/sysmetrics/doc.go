// Package sysmetrics wraps gopsutil so the recorder's disk-space preflight
// and the process health snapshot share one source of system resource
// readings instead of each shelling out to statfs or /proc independently.
package sysmetrics
