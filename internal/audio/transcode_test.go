package audio

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFFmpeg_Args(t *testing.T) {
	args := NewFFmpeg("").Args("in.flac", "out/0000/00000000.wma", 192)
	assert.Equal(t, []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "in.flac",
		"-ac", "2",
		"-ar", "44100",
		"-acodec", "wmav1",
		"-b:a", "192k",
		"-map_metadata", "-1",
		"-map", "0:a",
		"-y", "out/0000/00000000.wma",
	}, args)
}

func TestFFmpeg_Args_DefaultBitrate(t *testing.T) {
	args := NewFFmpeg("").Args("in.flac", "out.wma", 0)
	assert.Contains(t, args, "128k")
}

func TestFFmpeg_Transcode(t *testing.T) {
	out := t.TempDir()
	e := &fakeExecutor{}

	err := NewFFmpeg("/opt/ffmpeg").WithExecutor(e).Transcode(context.Background(), "in.flac", out, 3, 26, 128)
	require.NoError(t, err)

	assert.Equal(t, "/opt/ffmpeg", e.name)
	assert.Equal(t, filepath.Join(out, "0003", "0000001a.wma"), e.args[len(e.args)-1])

	info, err := os.Stat(filepath.Join(out, "0003"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestFFmpeg_TranscodeUsesFs(t *testing.T) {
	fs := afero.NewMemMapFs()
	var buf bytes.Buffer
	e := &fakeExecutor{}

	err := NewFFmpeg("ffmpeg").
		WithExecutor(e).
		WithFs(fs).
		WithLogger(zerolog.New(&buf)).
		Transcode(context.Background(), "in.flac", "/xbst-out", 3, 26, 128)
	require.NoError(t, err)

	exists, err := afero.DirExists(fs, filepath.Join("/xbst-out", "0003"))
	require.NoError(t, err)
	assert.True(t, exists)
	_, err = os.Stat("/xbst-out")
	assert.True(t, os.IsNotExist(err))

	assert.Contains(t, buf.String(), "ffmpeg -hide_banner -loglevel error -i in.flac")
	assert.Contains(t, buf.String(), "0000001a.wma")
}

func TestFFmpeg_TranscodeErrors(t *testing.T) {
	t.Run("missing binary", func(t *testing.T) {
		e := &fakeExecutor{err: &exec.Error{Name: "ffmpeg", Err: exec.ErrNotFound}}
		err := NewFFmpeg("").WithExecutor(e).Transcode(context.Background(), "in.flac", t.TempDir(), 0, 0, 128)
		assert.ErrorIs(t, err, ErrTranscoderUnavailable)
	})

	t.Run("non-zero exit", func(t *testing.T) {
		e := &fakeExecutor{err: errors.New("exit status 1"), stderr: "Unknown encoder 'wmav1'"}
		err := NewFFmpeg("").WithExecutor(e).Transcode(context.Background(), "in.flac", t.TempDir(), 0, 0, 128)
		assert.ErrorIs(t, err, ErrTranscodeFailed)
		assert.Contains(t, err.Error(), "Unknown encoder")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		e := &fakeExecutor{err: errors.New("signal: killed")}
		err := NewFFmpeg("").WithExecutor(e).Transcode(ctx, "in.flac", t.TempDir(), 0, 0, 128)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestCommandBuilder_BuildCommand(t *testing.T) {
	cmd := NewCommandBuilder("ffmpeg").
		WithInputFile("a.mp3").
		WithOutputCodec("wmav1").
		WithOutputFile("b.wma").
		BuildCommand()
	assert.Equal(t, "ffmpeg -hide_banner -loglevel error -i a.mp3 -acodec wmav1 -y b.wma", cmd)
}
