package audio

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bogem/id3v2"
)

// TagProber reads the track length stored in an ID3v2 TLEN frame.
//
// Many ripped and downloaded MP3 files carry this frame, which makes it a
// cheap fallback when neither ffprobe nor frame decoding is possible.
type TagProber struct{}

// NewTagProber creates a TagProber.
func NewTagProber() *TagProber {
	return &TagProber{}
}

// Probe opens the tag, parsing only the length frame.
func (p *TagProber) Probe(ctx context.Context, path string) (int32, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{"Length"}})
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrProbeFailed, path, err)
	}
	defer tag.Close()

	frame := tag.GetTextFrame(tag.CommonID("Length"))
	value := strings.TrimSpace(strings.Trim(frame.Text, "\x00"))
	if value == "" {
		return 0, fmt.Errorf("%w: %s: no TLEN frame", ErrProbeFailed, path)
	}

	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil || ms < 0 {
		return 0, fmt.Errorf("%w: %s: bad TLEN %q", ErrProbeFailed, path, value)
	}
	return millis(float64(ms)), nil
}
