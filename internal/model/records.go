package model

import (
	"errors"
	"fmt"
	"strings"
)

// Record magics used by the dashboard to recognize each block.
const (
	HeaderMagic     int32 = 1
	SoundtrackMagic int32 = 136049
	SongMagic       int32 = 200819
)

// Capacities of the fixed array fields.
const (
	// MaxSoundtracks is the number of soundtrack slots in the header and in
	// the soundtrack table.
	MaxSoundtracks = 100

	// MaxSongGroups is the number of song group ids a soundtrack can hold.
	MaxSongGroups = 84

	// SongsPerGroup is the number of songs packed in one Song record.
	SongsPerGroup = 6

	// NameChars is the width, in characters, of one soundtrack or song name.
	NameChars = 32

	// MaxSongsPerSoundtrack is the most songs a soundtrack can reference.
	MaxSongsPerSoundtrack = MaxSongGroups * SongsPerGroup
)

// RecordSize is the packed size of Header, Soundtrack and Song.
const RecordSize = 512

// ErrSlotOverflow is returned when a slice does not fit a fixed array field.
// Callers are expected to bound their data before converting, so seeing this
// error means a bug rather than bad input.
var ErrSlotOverflow = errors.New("slot overflow")

// WideChar is one character of a stored name: the ASCII byte followed by a
// zero high byte.
type WideChar [2]byte

// Header is the first record of ST.DB.
type Header struct {
	Magic            int32
	NumSoundtracks   int32
	NextSoundtrackID int32
	SoundtrackIDs    [MaxSoundtracks]int32
	NextSongID       int32
	Padding          [96]byte
}

// Soundtrack describes one soundtrack folder. The table of soundtracks always
// holds MaxSoundtracks slots; unused slots are written as zero blocks.
type Soundtrack struct {
	Magic                 int32
	ID                    int32
	NumSongs              uint32
	SongGroupIDs          [MaxSongGroups]int32
	TotalTimeMilliseconds int32
	Name                  [NameChars]WideChar
	Padding               [96]byte
}

// Song is a song group: up to SongsPerGroup consecutive files of one
// soundtrack. Unused slots keep a zero id and a zero duration.
type Song struct {
	Magic                int32
	SoundtrackID         int32
	ID                   int32
	IPadding             int32
	SongIDs              [SongsPerGroup]int32
	SongTimeMilliseconds [SongsPerGroup]int32
	SongNames            [SongsPerGroup * NameChars]WideChar
	CPadding             [64]byte
}

// NewHeader returns an empty header with its magic set.
func NewHeader() Header {
	return Header{Magic: HeaderMagic}
}

// NewSoundtrack returns an empty soundtrack record with the given id.
func NewSoundtrack(id int32) Soundtrack {
	return Soundtrack{Magic: SoundtrackMagic, ID: id}
}

// NewSong returns an empty song group belonging to soundtrackID.
func NewSong(soundtrackID, groupID int32) Song {
	return Song{Magic: SongMagic, SoundtrackID: soundtrackID, ID: groupID}
}

// SoundtrackIDSlots copies ids into a zero-padded header slot array.
func SoundtrackIDSlots(ids []int32) ([MaxSoundtracks]int32, error) {
	var slots [MaxSoundtracks]int32
	if len(ids) > MaxSoundtracks {
		return slots, fmt.Errorf("%d soundtrack ids for %d slots: %w", len(ids), MaxSoundtracks, ErrSlotOverflow)
	}
	copy(slots[:], ids)
	return slots, nil
}

// SongGroupSlots copies ids into a zero-padded soundtrack group array.
func SongGroupSlots(ids []int32) ([MaxSongGroups]int32, error) {
	var slots [MaxSongGroups]int32
	if len(ids) > MaxSongGroups {
		return slots, fmt.Errorf("%d song group ids for %d slots: %w", len(ids), MaxSongGroups, ErrSlotOverflow)
	}
	copy(slots[:], ids)
	return slots, nil
}

// TotalTime returns the sum of the group's slot durations as an int64.
func (s *Song) TotalTime() int64 {
	var total int64
	for _, ms := range s.SongTimeMilliseconds {
		total += int64(ms)
	}
	return total
}

// SongNameAt decodes the i-th 32-character name segment of the group.
func (s *Song) SongNameAt(i int) string {
	if i < 0 || i >= SongsPerGroup {
		return ""
	}
	return DecodeName(s.SongNames[i*NameChars : (i+1)*NameChars])
}

// DisplayName decodes the soundtrack name.
func (s *Soundtrack) DisplayName() string {
	return DecodeName(s.Name[:])
}

// DecodeName turns stored wide characters back into a string, stopping at the
// first zero character.
func DecodeName(chars []WideChar) string {
	var sb strings.Builder
	for _, c := range chars {
		if c[0] == 0 {
			break
		}
		sb.WriteByte(c[0])
	}
	return sb.String()
}
