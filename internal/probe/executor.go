package probe

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandExecutor runs a v4l2-ctl invocation against a device and returns
// its stdout. It exists so tests can substitute a fake without shelling
// out, mirroring the teacher's V4L2CommandExecutor seam.
type CommandExecutor interface {
	ExecuteCommand(ctx context.Context, devicePath string, args ...string) (string, error)
}

// RealCommandExecutor shells out to v4l2-ctl. It is the fallback path used
// when direct ioctl probing (IoctlExecutor) is unavailable or disabled.
type RealCommandExecutor struct{}

func (r *RealCommandExecutor) ExecuteCommand(ctx context.Context, devicePath string, args ...string) (string, error) {
	fullArgs := append([]string{"--device", devicePath}, args...)
	cmd := exec.CommandContext(ctx, "v4l2-ctl", fullArgs...)

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		stderrText := strings.TrimSpace(stderr.String())
		var execErr *exec.ExitError
		if isExitError(err, &execErr) {
			switch {
			case strings.Contains(stderrText, "Cannot open device"):
				return "", fmt.Errorf("v4l2-ctl: cannot open device %s", devicePath)
			case strings.Contains(stderrText, "Permission denied"):
				return "", fmt.Errorf("v4l2-ctl: permission denied accessing device %s", devicePath)
			case strings.Contains(stderrText, "No such file or directory"):
				return "", fmt.Errorf("v4l2-ctl: device %s does not exist", devicePath)
			case stderrText != "":
				return "", fmt.Errorf("v4l2-ctl: %s", stderrText)
			default:
				return "", fmt.Errorf("v4l2-ctl: command failed with exit status %d", execErr.ExitCode())
			}
		}
		if isNotFoundError(err) {
			return "", fmt.Errorf("v4l2-ctl: command not found, install v4l-utils")
		}
		return "", fmt.Errorf("v4l2-ctl: execution error: %w", err)
	}

	return stdout.String(), nil
}

func isExitError(err error, target **exec.ExitError) bool {
	ee, ok := err.(*exec.ExitError)
	if ok {
		*target = ee
	}
	return ok
}

func isNotFoundError(err error) bool {
	return strings.Contains(err.Error(), "executable file not found")
}
