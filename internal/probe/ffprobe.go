package probe

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// ffprobeConnTimeoutUS is passed to ffprobe as -rw_timeout (microseconds)
// so the tool gives up on a stalled connection before our hard cap fires.
const ffprobeConnTimeoutUS = "10000000" // 10s

// FFprobeInspector runs ffprobe with machine-readable JSON output.
type FFprobeInspector struct {
	Path string // ffprobe binary; "" means "ffprobe" from PATH
}

// Inspect runs ffprobe against streamURL. The process is killed when ctx
// expires. A nonzero exit is returned as *InspectExitError carrying the
// tool's stderr.
func (f *FFprobeInspector) Inspect(ctx context.Context, streamURL string) ([]byte, error) {
	path := f.Path
	if path == "" {
		path = "ffprobe"
	}
	args := []string{
		"-v", "error",
		"-rw_timeout", ffprobeConnTimeoutUS,
		"-show_format",
		"-show_streams",
		"-print_format", "json",
		streamURL,
	}
	cmd := exec.CommandContext(ctx, path, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &InspectExitError{Stderr: stderr.String()}
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
