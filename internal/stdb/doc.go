// Package stdb reads and writes ST.DB, the soundtrack index of the console
// dashboard.
//
// # Layout
//
// ST.DB is a sequence of 512-byte little-endian records:
//
//	offset 0          Header
//	offset 512        Soundtrack slot table: 100 records, unused slots zero
//	offset 51712      Song groups, back to back, no trailing padding
//
// The soundtrack table always has 100 slots, whatever the number of
// soundtracks, because the dashboard locates song groups by fixed offset.
//
// # Writing
//
//	err := stdb.WriteFile(afero.NewOsFs(), "./output", header, soundtracks, songs)
//
// WriteFile replaces <dir>/ST.DB atomically.
//
// # Reading
//
//	db, err := stdb.Decode(f)
//	fmt.Println(db.Header.NumSoundtracks, len(db.Songs))
package stdb
