// Package model defines the fixed-layout records of the ST.DB soundtrack
// database and the transient work items produced while scanning.
//
// # Records
//
// Every record is exactly RecordSize (512) bytes once packed little-endian
// with no alignment gaps:
//
//	header := model.NewHeader()
//	st := model.NewSoundtrack(0)
//	song := model.NewSong(0, 0)
//
// The field order of each struct is the on-disk order. Do not reorder fields
// or change array widths: the console dashboard that reads ST.DB depends on
// byte-exact offsets.
//
// # Slots
//
// Array fields have fixed capacities (MaxSoundtracks, MaxSongGroups,
// SongsPerGroup, NameChars). Conversions from dynamically sized slices go
// through SoundtrackIDSlots and SongGroupSlots, which return ErrSlotOverflow
// instead of dropping data.
//
// # Names
//
// Names are stored as WideChar pairs whose high byte is always zero. See
// package text for the encoder.
package model
