package model

import (
	"fmt"
	"path/filepath"
)

// TranscodeExtension is the container written for every transcoded song.
const TranscodeExtension = ".wma"

// MusicFile is a song found during the scan that still has to be transcoded.
// It is never persisted.
type MusicFile struct {
	// Path is the input file.
	Path string

	// SoundtrackIndex is the id of the soundtrack the song belongs to.
	SoundtrackIndex uint32

	// SoundtrackName is the soundtrack's transliterated display name.
	SoundtrackName string

	// Index is the global song id.
	Index uint32
}

// Stem returns the input file name without directory and extension.
func (f MusicFile) Stem() string {
	return FileStem(filepath.Base(f.Path))
}

// FileStem strips the last extension from a file name. Dot files such as
// ".intro" keep their whole name.
func FileStem(name string) string {
	ext := filepath.Ext(name)
	if ext == name {
		return name
	}
	return name[:len(name)-len(ext)]
}

// OutputPath returns where the transcoded copy of the song lives under
// outputDir: {soundtrack:4 digits}/{song id:8 hex digits}.wma.
func (f MusicFile) OutputPath(outputDir string) string {
	return SongOutputPath(outputDir, f.SoundtrackIndex, f.Index)
}

// SoundtrackDir returns the output folder of a soundtrack.
func SoundtrackDir(outputDir string, soundtrackIndex uint32) string {
	return filepath.Join(outputDir, fmt.Sprintf("%04d", soundtrackIndex))
}

// SongOutputPath returns the transcoded file path for a song.
func SongOutputPath(outputDir string, soundtrackIndex, songIndex uint32) string {
	return filepath.Join(SoundtrackDir(outputDir, soundtrackIndex), fmt.Sprintf("%08x%s", songIndex, TranscodeExtension))
}
