package stdb

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xbst-tools/xbst/internal/model"
	"github.com/xbst-tools/xbst/internal/text"
)

func sampleDatabase(numSoundtracks, groupsPerSoundtrack int) (model.Header, []model.Soundtrack, []model.Song) {
	header := model.NewHeader()
	header.NumSoundtracks = int32(numSoundtracks)
	header.NextSoundtrackID = int32(numSoundtracks + 1)

	var soundtracks []model.Soundtrack
	var songs []model.Song
	songID := int32(0)
	for i := 0; i < numSoundtracks; i++ {
		header.SoundtrackIDs[i] = int32(i)

		st := model.NewSoundtrack(int32(i))
		st.Name = text.EncodeName(fmt.Sprintf("Soundtrack %d", i))
		for g := 0; g < groupsPerSoundtrack; g++ {
			st.SongGroupIDs[g] = int32(g)

			song := model.NewSong(int32(i), int32(g))
			for slot := 0; slot < model.SongsPerGroup; slot++ {
				song.SongIDs[slot] = songID
				song.SongTimeMilliseconds[slot] = 1000 * (songID + 1)
				text.EncodeInto(song.SongNames[slot*model.NameChars:(slot+1)*model.NameChars], fmt.Sprintf("Track %d", songID))
				songID++
			}
			st.NumSongs += model.SongsPerGroup
			st.TotalTimeMilliseconds += int32(song.TotalTime())
			songs = append(songs, song)
		}
		soundtracks = append(soundtracks, st)
	}
	header.NextSongID = songID
	return header, soundtracks, songs
}

func TestSerialize_SoundtrackTableIsAlwaysFull(t *testing.T) {
	for _, n := range []int{0, 1, 100} {
		t.Run(fmt.Sprintf("%d soundtracks", n), func(t *testing.T) {
			header, soundtracks, songs := sampleDatabase(n, 1)

			data, err := Bytes(header, soundtracks, songs)
			require.NoError(t, err)

			assert.Len(t, data, Size(len(songs)))
			assert.Equal(t, model.RecordSize+model.MaxSoundtracks*model.RecordSize, SongTableOffset)

			for slot := n; slot < model.MaxSoundtracks; slot++ {
				start := model.RecordSize * (1 + slot)
				assert.Equal(t, emptySlot[:], data[start:start+model.RecordSize], "slot %d should be zero", slot)
			}
		})
	}
}

func TestSerialize_FieldOffsets(t *testing.T) {
	header, soundtracks, songs := sampleDatabase(2, 2)

	data, err := Bytes(header, soundtracks, songs)
	require.NoError(t, err)

	le := binary.LittleEndian
	assert.Equal(t, uint32(model.HeaderMagic), le.Uint32(data[0:4]))
	assert.Equal(t, uint32(2), le.Uint32(data[4:8]))
	assert.Equal(t, uint32(3), le.Uint32(data[8:12]))
	assert.Equal(t, uint32(1), le.Uint32(data[16:20]), "second soundtrack id slot")
	assert.Equal(t, uint32(header.NextSongID), le.Uint32(data[412:416]))

	st := data[model.RecordSize:]
	assert.Equal(t, uint32(model.SoundtrackMagic), le.Uint32(st[0:4]))
	assert.Equal(t, uint32(12), le.Uint32(st[8:12]), "num songs")
	assert.Equal(t, uint32(soundtracks[0].TotalTimeMilliseconds), le.Uint32(st[348:352]))
	assert.Equal(t, []byte{'S', 0, 'o', 0}, st[352:356], "name starts after total time")

	song := data[SongTableOffset+model.RecordSize:]
	assert.Equal(t, uint32(model.SongMagic), le.Uint32(song[0:4]))
	assert.Equal(t, uint32(0), le.Uint32(song[4:8]), "soundtrack id precedes group id")
	assert.Equal(t, uint32(1), le.Uint32(song[8:12]), "group id")
	assert.Equal(t, uint32(6), le.Uint32(song[16:20]), "first song id of second group")
	assert.Equal(t, uint32(7000), le.Uint32(song[40:44]), "first duration")
	assert.Equal(t, []byte{'T', 0, 'r', 0}, song[64:68])
}

func TestSerialize_TooManySoundtracks(t *testing.T) {
	header := model.NewHeader()
	soundtracks := make([]model.Soundtrack, model.MaxSoundtracks+1)

	var buf bytes.Buffer
	err := Serialize(&buf, header, soundtracks, nil)

	assert.ErrorIs(t, err, model.ErrSlotOverflow)
	assert.Zero(t, buf.Len())
}

func TestDecode_RoundTrip(t *testing.T) {
	header, soundtracks, songs := sampleDatabase(3, 4)

	data, err := Bytes(header, soundtracks, songs)
	require.NoError(t, err)

	db, err := Decode(bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, header, db.Header)
	assert.Equal(t, soundtracks, db.Soundtracks)
	assert.Equal(t, songs, db.Songs)
	assert.Len(t, db.SongsOf(1), 4)
	assert.Equal(t, "Soundtrack 2", db.Soundtracks[2].DisplayName())
}

func TestDecode_Errors(t *testing.T) {
	header, soundtracks, songs := sampleDatabase(1, 1)
	data, err := Bytes(header, soundtracks, songs)
	require.NoError(t, err)

	t.Run("truncated song", func(t *testing.T) {
		_, err := Decode(bytes.NewReader(data[:len(data)-10]))
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("truncated table", func(t *testing.T) {
		_, err := Decode(bytes.NewReader(data[:model.RecordSize*3]))
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("bad header magic", func(t *testing.T) {
		corrupt := bytes.Clone(data)
		corrupt[0] = 9
		_, err := Decode(bytes.NewReader(corrupt))
		assert.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("bad song magic", func(t *testing.T) {
		corrupt := bytes.Clone(data)
		corrupt[SongTableOffset] = 0
		_, err := Decode(bytes.NewReader(corrupt))
		assert.ErrorIs(t, err, ErrBadMagic)
	})
}

func TestWriteFile_ReadFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	header, soundtracks, songs := sampleDatabase(2, 1)

	path, err := WriteFile(fs, "output", header, soundtracks, songs)
	require.NoError(t, err)
	assert.Equal(t, "output/"+FileName, path)

	info, err := fs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(Size(len(songs))), info.Size())

	db, err := ReadFile(fs, "output")
	require.NoError(t, err)
	assert.Equal(t, soundtracks, db.Soundtracks)

	db, err = ReadFile(fs, path)
	require.NoError(t, err)
	assert.Len(t, db.Songs, 2)
}
