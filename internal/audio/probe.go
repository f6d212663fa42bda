package audio

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrProbeUnavailable means the probing tool is not installed.
	ErrProbeUnavailable = errors.New("duration probe unavailable")

	// ErrProbeFailed means the tool ran but no duration could be read.
	ErrProbeFailed = errors.New("duration probe failed")

	// ErrUnsupportedFormat means a prober does not handle the file type.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// DurationProber measures audio files.
type DurationProber interface {
	// Probe returns the duration of the file at path in milliseconds.
	Probe(ctx context.Context, path string) (int32, error)
}

// FFprobe reads durations with the ffprobe command line tool.
type FFprobe struct {
	path     string
	executor CommandExecutor
}

// NewFFprobe creates a prober running the ffprobe binary at path (looked up
// in PATH when not absolute).
func NewFFprobe(path string) *FFprobe {
	if path == "" {
		path = "ffprobe"
	}
	return &FFprobe{path: path, executor: DefaultExecutor}
}

// WithExecutor replaces the command executor.
func (p *FFprobe) WithExecutor(executor CommandExecutor) *FFprobe {
	p.executor = executor
	return p
}

// Probe asks ffprobe for the container duration.
func (p *FFprobe) Probe(ctx context.Context, path string) (int32, error) {
	stdout, stderr, err := p.executor.Run(ctx, p.path,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	if err != nil {
		if isMissingBinary(err) {
			return 0, fmt.Errorf("%w: %s: %v", ErrProbeUnavailable, p.path, err)
		}
		return 0, fmt.Errorf("%w: %s: %v: %s", ErrProbeFailed, path, err, tail(stderr, 200))
	}

	return parseSeconds(path, string(stdout))
}

// parseSeconds converts ffprobe's "123.456" output to milliseconds.
func parseSeconds(path, out string) (int32, error) {
	seconds, err := strconv.ParseFloat(strings.TrimSpace(out), 64)
	if err != nil || math.IsNaN(seconds) || seconds < 0 {
		return 0, fmt.Errorf("%w: %s: unexpected duration %q", ErrProbeFailed, path, strings.TrimSpace(out))
	}
	return millis(seconds * 1000), nil
}

// millis truncates a millisecond count into the int32 range used on disk.
func millis(ms float64) int32 {
	if ms >= math.MaxInt32 {
		return math.MaxInt32
	}
	return int32(ms)
}

// ChainProber tries several probers in order.
type ChainProber struct {
	probers []DurationProber
}

// NewChainProber creates a prober that returns the first successful result.
func NewChainProber(probers ...DurationProber) *ChainProber {
	return &ChainProber{probers: probers}
}

// Probe runs each prober until one succeeds. When all fail the returned
// error joins every failure, so errors.Is matches any of them.
func (c *ChainProber) Probe(ctx context.Context, path string) (int32, error) {
	if len(c.probers) == 0 {
		return 0, fmt.Errorf("%w: no prober configured", ErrProbeUnavailable)
	}

	var errs []error
	for _, p := range c.probers {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		ms, err := p.Probe(ctx, path)
		if err == nil {
			return ms, nil
		}
		errs = append(errs, err)
	}
	return 0, errors.Join(errs...)
}
