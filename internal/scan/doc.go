// Package scan walks a music directory and builds the in-memory ST.DB model.
//
// Every top-level subdirectory of the root is a soundtrack. Its entries are
// split into chunks of model.SongsPerGroup; each chunk becomes one Song
// record. Global song ids are handed out in enumeration order across all
// soundtracks.
//
//	scanner := scan.NewScanner(afero.NewOsFs(), prober, scan.Options{})
//	result, err := scanner.Scan(ctx, "./music")
//
// # Compatibility
//
// The zero Options reproduce the legacy layout byte for byte, quirks
// included:
//   - entries are chunked before non-files are dropped, so a subdirectory
//     inside a soundtrack leaves a hole in its group
//   - the header's NextSongID is the song count of the last soundtrack
//
// FilterBeforeChunk, GlobalGroupIDs and GlobalNextSongID switch individual
// behaviors.
package scan
