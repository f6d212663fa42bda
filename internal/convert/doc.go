// Package convert provides the conversion orchestration logic for turning
// a folder of soundtracks into an ST.DB database and transcoded songs.
//
// # Manager
//
// The Manager coordinates the entire conversion:
//
//  1. Scan the input directory (package scan)
//  2. Write ST.DB atomically to the output directory (package stdb)
//  3. Transcode every song to WMA concurrently (package audio)
//
// The database is written before the first transcode starts, so a failed
// transcode never leaves a partial database behind.
//
// # Basic Usage
//
//	manager := convert.NewManager(settings, func(event convert.ProgressEvent) {
//	    fmt.Println(event.Message)
//	})
//
//	if err := manager.Run(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// For a dry run call Scan only and inspect Summary.
//
// # Concurrency
//
// settings.MaxConcurrentTranscodes bounds the number of ffmpeg processes.
// The first failure cancels the rest and is returned by Transcode.
//
// # Progress Tracking
//
// Progress is reported via a callback function that receives ProgressEvent:
//
//	type ProgressEvent struct {
//	    Message string
//	    Level   ProgressLevel // Info, Verbose, Warning, Error, Success
//	}
package convert
