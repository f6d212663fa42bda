package scan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/xbst-tools/xbst/internal/logging"
	"github.com/xbst-tools/xbst/internal/model"
	"github.com/xbst-tools/xbst/internal/text"
)

var (
	ErrUnreadableRoot          = errors.New("cannot read input directory")
	ErrUnreadableSoundtrackDir = errors.New("cannot read soundtrack directory")
	ErrNoFilesFound            = errors.New("no music files found")
	ErrTooManySoundtracks      = errors.New("too many soundtracks")
)

// DurationProber measures one audio file in milliseconds.
type DurationProber interface {
	Probe(ctx context.Context, path string) (int32, error)
}

// Options tunes the scan. The zero value is the legacy behavior.
type Options struct {
	// SortEntries enumerates directories by name instead of platform order.
	SortEntries bool

	// FilterBeforeChunk drops non-file entries before chunking.
	FilterBeforeChunk bool

	// GlobalGroupIDs numbers a soundtrack's group slots with scan-wide group
	// indices instead of 0..G.
	GlobalGroupIDs bool

	// GlobalNextSongID sets the header's NextSongID to the total song count.
	GlobalNextSongID bool

	// ProbeConcurrency is how many files of one soundtrack are probed at
	// once. Values below 2 probe sequentially.
	ProbeConcurrency int

	Logger *zerolog.Logger
}

// CapacityKind names the fixed field a soundtrack overflowed.
type CapacityKind int

const (
	// CapacityGroups means more song groups than SongGroupIDs slots.
	CapacityGroups CapacityKind = iota

	// CapacityDuration means the summed durations do not fit
	// TotalTimeMilliseconds.
	CapacityDuration
)

// CapacityWarning records a soundtrack that did not fit its record. Group
// overflows drop the extra group ids; duration overflows clamp the total to
// math.MaxInt32.
type CapacityWarning struct {
	Kind         CapacityKind
	SoundtrackID int32
	Name         string

	// Groups and Dropped are set for CapacityGroups.
	Groups  int
	Dropped int

	// TotalMilliseconds is the unclamped total for CapacityDuration.
	TotalMilliseconds int64
}

func (w CapacityWarning) String() string {
	if w.Kind == CapacityDuration {
		return fmt.Sprintf("soundtrack %d (%s): total duration %dms clamped to %dms",
			w.SoundtrackID, w.Name, w.TotalMilliseconds, int64(math.MaxInt32))
	}
	return fmt.Sprintf("soundtrack %d (%s): %d song groups, %d not referenced (limit %d)",
		w.SoundtrackID, w.Name, w.Groups, w.Dropped, model.MaxSongGroups)
}

// Result is the in-memory database plus the transcoding work list.
type Result struct {
	Header      model.Header
	Soundtracks []model.Soundtrack
	Songs       []model.Song
	Files       []model.MusicFile
	Warnings    []CapacityWarning
}

// TotalDuration sums the durations of all soundtracks.
func (r *Result) TotalDuration() int64 {
	var total int64
	for _, st := range r.Soundtracks {
		total += int64(st.TotalTimeMilliseconds)
	}
	return total
}

// Scanner builds a Result from a directory tree.
type Scanner struct {
	fs     afero.Fs
	prober DurationProber
	opts   Options
	log    zerolog.Logger
}

// NewScanner creates a Scanner reading from fs.
func NewScanner(fs afero.Fs, prober DurationProber, opts Options) *Scanner {
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Scanner{
		fs:     fs,
		prober: prober,
		opts:   opts,
		log:    logging.WithModule(log, "scan"),
	}
}

// scanState holds the counters shared across soundtracks of one scan.
type scanState struct {
	nextSongID  uint32
	nextGroupID int32
	lastCount   uint32
}

// pendingProbe is a file whose duration still has to be filled in.
type pendingProbe struct {
	path  string
	group int
	slot  int
}

// Scan walks root and returns the database model.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	entries, err := s.readDir(root)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %v", ErrUnreadableRoot, root, err)
	}

	res := &Result{}
	state := &scanState{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		dir := filepath.Join(root, entry.Name())
		if !s.isDir(dir, entry) {
			continue
		}
		if len(res.Soundtracks) == model.MaxSoundtracks {
			return nil, fmt.Errorf("%w: more than %d directories in %s", ErrTooManySoundtracks, model.MaxSoundtracks, root)
		}

		if err := s.scanSoundtrack(ctx, state, res, dir, entry.Name()); err != nil {
			return nil, err
		}
	}

	if len(res.Files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoFilesFound, root)
	}

	ids := make([]int32, len(res.Soundtracks))
	for i := range ids {
		ids[i] = int32(i)
	}
	slots, err := model.SoundtrackIDSlots(ids)
	if err != nil {
		return nil, err
	}

	res.Header = model.NewHeader()
	res.Header.NumSoundtracks = int32(len(res.Soundtracks))
	res.Header.NextSoundtrackID = int32(len(res.Soundtracks)) + 1
	res.Header.SoundtrackIDs = slots
	res.Header.NextSongID = int32(state.lastCount)
	if s.opts.GlobalNextSongID {
		res.Header.NextSongID = int32(state.nextSongID)
	}

	s.log.Info().
		Int("soundtracks", len(res.Soundtracks)).
		Int("songs", len(res.Files)).
		Int("groups", len(res.Songs)).
		Msg("scan complete")

	return res, nil
}

func (s *Scanner) scanSoundtrack(ctx context.Context, state *scanState, res *Result, dir, name string) error {
	entries, err := s.readDir(dir)
	if err != nil {
		return fmt.Errorf("%w %s: %v", ErrUnreadableSoundtrackDir, dir, err)
	}

	id := int32(len(res.Soundtracks))
	soundtrack := model.NewSoundtrack(id)
	soundtrack.Name = text.EncodeName(name)
	displayName := soundtrack.DisplayName()
	log := s.log.With().Int32("soundtrack", id).Str("name", displayName).Logger()

	if s.opts.FilterBeforeChunk {
		files := entries[:0]
		for _, entry := range entries {
			if s.isRegular(filepath.Join(dir, entry.Name()), entry) {
				files = append(files, entry)
			}
		}
		entries = files
	}

	var songs []model.Song
	var pending []pendingProbe
	var numSongs uint32
	for g := 0; g*model.SongsPerGroup < len(entries); g++ {
		end := min((g+1)*model.SongsPerGroup, len(entries))
		chunk := entries[g*model.SongsPerGroup : end]

		song := model.NewSong(id, int32(g))
		named := 0
		for k, entry := range chunk {
			path := filepath.Join(dir, entry.Name())
			if !s.isRegular(path, entry) {
				log.Debug().Str("path", path).Int("group", g).Int("slot", k).Msg("skipping non-file entry")
				continue
			}

			songID := state.nextSongID
			state.nextSongID++
			numSongs++

			song.SongIDs[k] = int32(songID)
			text.EncodeInto(song.SongNames[named*model.NameChars:(named+1)*model.NameChars], model.FileStem(entry.Name()))
			named++

			pending = append(pending, pendingProbe{path: path, group: g, slot: k})
			res.Files = append(res.Files, model.MusicFile{
				Path:            path,
				SoundtrackIndex: uint32(id),
				SoundtrackName:  displayName,
				Index:           songID,
			})
		}
		songs = append(songs, song)
	}

	durations, err := s.probeAll(ctx, log, pending)
	if err != nil {
		return err
	}
	for i, p := range pending {
		songs[p.group].SongTimeMilliseconds[p.slot] = durations[i]
	}

	var total int64
	groupIDs := make([]int32, len(songs))
	for g := range songs {
		total += songs[g].TotalTime()
		groupIDs[g] = int32(g)
		if s.opts.GlobalGroupIDs {
			groupIDs[g] = state.nextGroupID + int32(g)
		}
	}
	state.nextGroupID += int32(len(songs))

	if total > math.MaxInt32 {
		warning := CapacityWarning{
			Kind:              CapacityDuration,
			SoundtrackID:      id,
			Name:              displayName,
			TotalMilliseconds: total,
		}
		log.Warn().Int64("total_ms", total).Msg("total duration overflows, clamping")
		res.Warnings = append(res.Warnings, warning)
		total = math.MaxInt32
	}
	soundtrack.TotalTimeMilliseconds = int32(total)

	if len(groupIDs) > model.MaxSongGroups {
		warning := CapacityWarning{
			Kind:         CapacityGroups,
			SoundtrackID: id,
			Name:         displayName,
			Groups:       len(groupIDs),
			Dropped:      len(groupIDs) - model.MaxSongGroups,
		}
		log.Warn().Int("groups", warning.Groups).Int("dropped", warning.Dropped).Msg("too many song groups, truncating")
		res.Warnings = append(res.Warnings, warning)
		groupIDs = groupIDs[:model.MaxSongGroups]
	}
	if soundtrack.SongGroupIDs, err = model.SongGroupSlots(groupIDs); err != nil {
		return err
	}
	soundtrack.NumSongs = numSongs
	state.lastCount = numSongs

	log.Debug().Uint32("songs", numSongs).Int("groups", len(songs)).Int32("total_ms", soundtrack.TotalTimeMilliseconds).Msg("soundtrack scanned")

	res.Soundtracks = append(res.Soundtracks, soundtrack)
	res.Songs = append(res.Songs, songs...)
	return nil
}

// probeAll returns the duration of every pending file, in order. Probe
// failures become 0.
func (s *Scanner) probeAll(ctx context.Context, log zerolog.Logger, pending []pendingProbe) ([]int32, error) {
	durations := make([]int32, len(pending))
	probe := func(i int) {
		ms, err := s.prober.Probe(ctx, pending[i].path)
		if err != nil {
			log.Warn().Err(err).Str("path", pending[i].path).Msg("failed to get duration, using 0")
			ms = 0
		}
		durations[i] = ms
	}

	if s.opts.ProbeConcurrency < 2 {
		for i := range pending {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			probe(i)
		}
		return durations, nil
	}

	var g errgroup.Group
	g.SetLimit(s.opts.ProbeConcurrency)
	for i := range pending {
		g.Go(func() error {
			if ctx.Err() == nil {
				probe(i)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return durations, nil
}

func (s *Scanner) readDir(path string) ([]os.FileInfo, error) {
	dir, err := s.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer dir.Close()

	entries, err := dir.Readdir(-1)
	if err != nil {
		return nil, err
	}
	if s.opts.SortEntries {
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	}
	return entries, nil
}

// isDir reports whether entry is a directory, following symlinks.
func (s *Scanner) isDir(path string, entry os.FileInfo) bool {
	if entry.Mode()&os.ModeSymlink != 0 {
		info, err := s.fs.Stat(path)
		return err == nil && info.IsDir()
	}
	return entry.IsDir()
}

// isRegular reports whether entry is a regular file, following symlinks.
func (s *Scanner) isRegular(path string, entry os.FileInfo) bool {
	if entry.Mode()&os.ModeSymlink != 0 {
		info, err := s.fs.Stat(path)
		return err == nil && info.Mode().IsRegular()
	}
	return entry.Mode().IsRegular()
}
