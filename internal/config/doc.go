// Package config provides configuration management for xbst.
//
// This package handles:
//   - Default configuration values
//   - Loading settings from a file, XBST_* environment variables and flags
//   - Saving settings as JSON
//   - Conversion to scan.Options for the scanner
//
// # Default Settings
//
//	settings := config.DefaultSettings()
//	// Reads ./music, writes ./output
//	// 128 kbps WMA, one transcode at a time
//	// ffprobe first, then the built-in WAV/MP3 reader, then ID3 TLEN
//
// # Loading
//
// Precedence, highest first: changed flags, environment, config file,
// defaults.
//
//	flags := pflag.NewFlagSet("xbst", pflag.ExitOnError)
//	config.RegisterFlags(flags)
//	flags.Parse(os.Args[1:])
//	settings, err := config.Load("/path/to/config.yaml", flags)
//
// A missing config file is not an error. The file type follows the
// extension (json, yaml, toml).
//
// # Saving Settings
//
//	settings.Bitrate = 192
//	err := settings.Save("/path/to/config.json")
//
// # Compatibility switches
//
// SortEntries, FilterBeforeChunk, GlobalGroupIDs and GlobalNextSongID all
// default to false, which produces the legacy ST.DB layout. See package scan.
package config
