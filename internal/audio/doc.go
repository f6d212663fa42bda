// Package audio wraps the external audio tools xbst relies on: duration
// probing and transcoding.
//
// # Duration Probing
//
// A DurationProber returns the length of a file in milliseconds:
//
//	prober := audio.NewChainProber(
//	    audio.NewFFprobe("ffprobe"),
//	    audio.NewNativeProber(),
//	    audio.NewTagProber(),
//	)
//	ms, err := prober.Probe(ctx, "/music/Boss Theme/01.mp3")
//
// Available probers:
//   - FFprobe: asks ffprobe for the container duration (any format)
//   - NativeProber: reads WAV headers and MP3 frames without external tools
//   - TagProber: reads the ID3v2 TLEN frame
//   - ChainProber: first success wins
//
// Errors wrap ErrProbeUnavailable when the tool is missing and
// ErrProbeFailed otherwise. Callers decide whether a failure is fatal.
//
// # Transcoding
//
// FFmpeg converts a song to the WMA layout the dashboard plays:
//
//	tc := audio.NewFFmpeg("ffmpeg")
//	err := tc.Transcode(ctx, "/music/Boss Theme/01.mp3", "./output", 0, 12, 128)
//	// writes ./output/0000/0000000c.wma
//
// # Commands
//
// External commands are created through a CommandExecutor so tests can
// replace ffprobe and ffmpeg with fakes.
package audio
