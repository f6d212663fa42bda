package audio

import (
	"fmt"
	"strings"
)

// StreamFormat defines output audio parameters.
type StreamFormat struct {
	SampleRate int
	Channels   int
}

// CommandBuilder builds FFmpeg commands.
type CommandBuilder struct {
	ffmpegPath string
	input      string
	output     string
	outputOpts []string
	format     StreamFormat
	globalOpts []string
}

// NewCommandBuilder creates a new command builder with the given FFmpeg path.
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{
		ffmpegPath: ffmpegPath,
		outputOpts: make([]string, 0),
		globalOpts: []string{"-hide_banner", "-loglevel", "error"},
	}
}

// WithFormat sets the audio format.
func (b *CommandBuilder) WithFormat(format StreamFormat) *CommandBuilder {
	b.format = format
	return b
}

// WithInputFile sets an input file.
func (b *CommandBuilder) WithInputFile(filePath string) *CommandBuilder {
	b.input = filePath
	return b
}

// WithOutputFile sets an output file.
func (b *CommandBuilder) WithOutputFile(filePath string) *CommandBuilder {
	b.output = filePath
	return b
}

// WithOutputCodec sets the output audio codec.
func (b *CommandBuilder) WithOutputCodec(codec string) *CommandBuilder {
	b.outputOpts = append(b.outputOpts, "-acodec", codec)
	return b
}

// WithOutputBitrate sets the output bitrate in kbps.
func (b *CommandBuilder) WithOutputBitrate(kbps int) *CommandBuilder {
	b.outputOpts = append(b.outputOpts, "-b:a", fmt.Sprintf("%dk", kbps))
	return b
}

// StripMetadata drops every input metadata tag from the output.
func (b *CommandBuilder) StripMetadata() *CommandBuilder {
	b.outputOpts = append(b.outputOpts, "-map_metadata", "-1")
	return b
}

// AudioOnly maps the first input's audio streams and nothing else.
func (b *CommandBuilder) AudioOnly() *CommandBuilder {
	b.outputOpts = append(b.outputOpts, "-map", "0:a")
	return b
}

// Build builds the complete command arguments.
func (b *CommandBuilder) Build() []string {
	args := make([]string, 0, len(b.globalOpts)+len(b.outputOpts)+8)

	args = append(args, b.globalOpts...)
	args = append(args, "-i", b.input)

	if b.format.Channels > 0 {
		args = append(args, "-ac", fmt.Sprintf("%d", b.format.Channels))
	}
	if b.format.SampleRate > 0 {
		args = append(args, "-ar", fmt.Sprintf("%d", b.format.SampleRate))
	}

	args = append(args, b.outputOpts...)

	args = append(args, "-y", b.output)

	return args
}

// BuildCommand returns the command line as one string for logging.
func (b *CommandBuilder) BuildCommand() string {
	return fmt.Sprintf("%s %s", b.ffmpegPath, strings.Join(b.Build(), " "))
}
