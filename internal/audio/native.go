package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// mp3 decoders always produce 16-bit stereo PCM.
const mp3BytesPerFrame = 4

// NativeProber measures WAV and MP3 files in-process.
type NativeProber struct{}

// NewNativeProber creates a NativeProber.
func NewNativeProber() *NativeProber {
	return &NativeProber{}
}

// Probe decodes the file header (WAV) or walks the frames (MP3).
func (p *NativeProber) Probe(ctx context.Context, path string) (int32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return p.probeWAV(path)
	case ".mp3":
		return p.probeMP3(path)
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

func (p *NativeProber) probeWAV(path string) (int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("%w: %s: not a valid wav file", ErrProbeFailed, path)
	}

	d, err := dec.Duration()
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrProbeFailed, path, err)
	}
	return millis(float64(d.Milliseconds())), nil
}

func (p *NativeProber) probeMP3(path string) (int32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrProbeFailed, err)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrProbeFailed, path, err)
	}

	length := dec.Length()
	rate := dec.SampleRate()
	if length <= 0 || rate <= 0 {
		return 0, fmt.Errorf("%w: %s: unknown mp3 length", ErrProbeFailed, path)
	}

	frames := float64(length) / mp3BytesPerFrame
	return millis(frames * 1000 / float64(rate)), nil
}
