package audio

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	ioutils "github.com/xbst-tools/xbst/internal/io"
	"github.com/xbst-tools/xbst/internal/model"
)

var (
	// ErrTranscodeFailed means ffmpeg exited with an error.
	ErrTranscodeFailed = errors.New("transcode failed")

	// ErrTranscoderUnavailable means ffmpeg is not installed.
	ErrTranscoderUnavailable = errors.New("transcoder unavailable")
)

// Output parameters expected by the dashboard's WMA player.
const (
	DefaultCodec      = "wmav1"
	DefaultSampleRate = 44100
	DefaultChannels   = 2
	DefaultBitrate    = 128
)

// Transcoder converts one song into the soundtrack output layout.
type Transcoder interface {
	// Transcode writes inputPath to
	// outputDir/{soundtrackIndex:04d}/{songIndex:08x}.wma.
	Transcode(ctx context.Context, inputPath, outputDir string, soundtrackIndex, songIndex uint32, bitrateKbps int) error
}

// FFmpeg transcodes with the ffmpeg command line tool. Soundtrack folders
// are created on its afero.Fs; ffmpeg itself always writes to the OS
// filesystem, so the Fs must be OS-backed outside tests.
type FFmpeg struct {
	path     string
	codec    string
	format   StreamFormat
	executor CommandExecutor
	fs       afero.Fs
	log      zerolog.Logger
}

// NewFFmpeg creates a transcoder running the ffmpeg binary at path.
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{
		path:     path,
		codec:    DefaultCodec,
		format:   StreamFormat{SampleRate: DefaultSampleRate, Channels: DefaultChannels},
		executor: DefaultExecutor,
		fs:       afero.NewOsFs(),
		log:      zerolog.Nop(),
	}
}

// WithExecutor replaces the command executor.
func (f *FFmpeg) WithExecutor(executor CommandExecutor) *FFmpeg {
	f.executor = executor
	return f
}

// WithFs sets the filesystem soundtrack folders are created on.
func (f *FFmpeg) WithFs(fs afero.Fs) *FFmpeg {
	f.fs = fs
	return f
}

// WithLogger sets the logger used for command tracing.
func (f *FFmpeg) WithLogger(log zerolog.Logger) *FFmpeg {
	f.log = log
	return f
}

// Args returns the ffmpeg arguments used to transcode inputPath to outputPath.
func (f *FFmpeg) Args(inputPath, outputPath string, bitrateKbps int) []string {
	return f.command(inputPath, outputPath, bitrateKbps).Build()
}

func (f *FFmpeg) command(inputPath, outputPath string, bitrateKbps int) *CommandBuilder {
	if bitrateKbps <= 0 {
		bitrateKbps = DefaultBitrate
	}
	return NewCommandBuilder(f.path).
		WithInputFile(inputPath).
		WithFormat(f.format).
		WithOutputCodec(f.codec).
		WithOutputBitrate(bitrateKbps).
		StripMetadata().
		AudioOnly().
		WithOutputFile(outputPath)
}

// Transcode creates the soundtrack folder and runs ffmpeg. Existing output is
// overwritten.
func (f *FFmpeg) Transcode(ctx context.Context, inputPath, outputDir string, soundtrackIndex, songIndex uint32, bitrateKbps int) error {
	if err := ioutils.EnsureDir(f.fs, model.SoundtrackDir(outputDir, soundtrackIndex)); err != nil {
		return fmt.Errorf("failed to create soundtrack directory: %w", err)
	}

	outputPath := model.SongOutputPath(outputDir, soundtrackIndex, songIndex)
	cmd := f.command(inputPath, outputPath, bitrateKbps)
	f.log.Debug().Str("command", cmd.BuildCommand()).Msg("running ffmpeg")

	_, stderr, err := f.executor.Run(ctx, f.path, cmd.Build()...)
	if err != nil {
		if isMissingBinary(err) {
			return fmt.Errorf("%w: %s: %v", ErrTranscoderUnavailable, f.path, err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s: %v: %s", ErrTranscodeFailed, inputPath, err, tail(stderr, 300))
	}
	return nil
}
