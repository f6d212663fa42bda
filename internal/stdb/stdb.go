package stdb

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	ioutils "github.com/xbst-tools/xbst/internal/io"
	"github.com/xbst-tools/xbst/internal/model"
)

// FileName is the database file name inside the output directory.
const FileName = "ST.DB"

// SongTableOffset is where the first song group starts.
const SongTableOffset = model.RecordSize * (1 + model.MaxSoundtracks)

var (
	// ErrTruncated is returned when a database ends inside a record.
	ErrTruncated = errors.New("truncated database")

	// ErrBadMagic is returned when a record does not carry its magic.
	ErrBadMagic = errors.New("bad record magic")
)

var byteOrder = binary.LittleEndian

var emptySlot [model.RecordSize]byte

// Database is a decoded ST.DB.
type Database struct {
	Header      model.Header
	Soundtracks []model.Soundtrack
	Songs       []model.Song
}

// Serialize writes the header, the padded soundtrack table and the song
// groups to w. More soundtracks than slots is a programmer error and returns
// model.ErrSlotOverflow before anything is written.
func Serialize(w io.Writer, header model.Header, soundtracks []model.Soundtrack, songs []model.Song) error {
	if len(soundtracks) > model.MaxSoundtracks {
		return fmt.Errorf("%d soundtracks for %d table slots: %w", len(soundtracks), model.MaxSoundtracks, model.ErrSlotOverflow)
	}

	bw := bufio.NewWriter(w)

	if err := binary.Write(bw, byteOrder, &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i := range soundtracks {
		if err := binary.Write(bw, byteOrder, &soundtracks[i]); err != nil {
			return fmt.Errorf("failed to write soundtrack %d: %w", soundtracks[i].ID, err)
		}
	}
	for i := len(soundtracks); i < model.MaxSoundtracks; i++ {
		if _, err := bw.Write(emptySlot[:]); err != nil {
			return fmt.Errorf("failed to write empty soundtrack slot %d: %w", i, err)
		}
	}

	for i := range songs {
		if err := binary.Write(bw, byteOrder, &songs[i]); err != nil {
			return fmt.Errorf("failed to write song group %d of soundtrack %d: %w", songs[i].ID, songs[i].SoundtrackID, err)
		}
	}

	return bw.Flush()
}

// Bytes serializes the database into memory.
func Bytes(header model.Header, soundtracks []model.Soundtrack, songs []model.Song) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(SongTableOffset + len(songs)*model.RecordSize)
	if err := Serialize(&buf, header, soundtracks, songs); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Size returns the serialized length of a database with songCount groups.
func Size(songCount int) int {
	return SongTableOffset + songCount*model.RecordSize
}

// WriteFile serializes the database and atomically replaces dir/ST.DB. It
// returns the written path.
func WriteFile(fs afero.Fs, dir string, header model.Header, soundtracks []model.Soundtrack, songs []model.Song) (string, error) {
	data, err := Bytes(header, soundtracks, songs)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, FileName)
	if err := ioutils.WriteFileAtomic(fs, path, data); err != nil {
		return "", err
	}
	return path, nil
}

// Decode reads a database written by Serialize. Only the first
// Header.NumSoundtracks table slots are decoded; every record after the
// table is a song group.
func Decode(r io.Reader) (*Database, error) {
	br := bufio.NewReader(r)
	db := &Database{}

	if err := readRecord(br, &db.Header); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if db.Header.Magic != model.HeaderMagic {
		return nil, fmt.Errorf("header magic %d: %w", db.Header.Magic, ErrBadMagic)
	}
	if db.Header.NumSoundtracks < 0 || db.Header.NumSoundtracks > model.MaxSoundtracks {
		return nil, fmt.Errorf("header claims %d soundtracks: %w", db.Header.NumSoundtracks, model.ErrSlotOverflow)
	}

	for i := 0; i < model.MaxSoundtracks; i++ {
		var st model.Soundtrack
		if err := readRecord(br, &st); err != nil {
			return nil, fmt.Errorf("soundtrack slot %d: %w", i, err)
		}
		if i >= int(db.Header.NumSoundtracks) {
			continue
		}
		if st.Magic != model.SoundtrackMagic {
			return nil, fmt.Errorf("soundtrack slot %d magic %d: %w", i, st.Magic, ErrBadMagic)
		}
		db.Soundtracks = append(db.Soundtracks, st)
	}

	for {
		if _, err := br.Peek(1); err == io.EOF {
			break
		}
		var song model.Song
		if err := readRecord(br, &song); err != nil {
			return nil, fmt.Errorf("song group %d: %w", len(db.Songs), err)
		}
		if song.Magic != model.SongMagic {
			return nil, fmt.Errorf("song group %d magic %d: %w", len(db.Songs), song.Magic, ErrBadMagic)
		}
		db.Songs = append(db.Songs, song)
	}

	return db, nil
}

// ReadFile decodes dir/ST.DB, or the file itself when path is not a
// directory.
func ReadFile(fs afero.Fs, path string) (*Database, error) {
	if ok, _ := afero.IsDir(fs, path); ok {
		path = filepath.Join(path, FileName)
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return Decode(f)
}

func readRecord(r io.Reader, v any) error {
	if err := binary.Read(r, byteOrder, v); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ErrTruncated
		}
		return err
	}
	return nil
}

// SongsOf returns the song groups of one soundtrack in file order.
func (db *Database) SongsOf(soundtrackID int32) []model.Song {
	var songs []model.Song
	for _, s := range db.Songs {
		if s.SoundtrackID == soundtrackID {
			songs = append(songs, s)
		}
	}
	return songs
}
