package scan

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/xbst-tools/xbst/internal/model"
)

// fakeProber returns fixed durations by path; unknown paths return 1000.
type fakeProber struct {
	mu        sync.Mutex
	durations map[string]int32
	calls     []string
}

func (p *fakeProber) Probe(_ context.Context, path string) (int32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, path)
	if ms, ok := p.durations[path]; ok {
		return ms, nil
	}
	return 1000, nil
}

type mockProber struct {
	mock.Mock
}

func (m *mockProber) Probe(ctx context.Context, path string) (int32, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(int32), args.Error(1)
}

// failDirFs refuses to open one directory.
type failDirFs struct {
	afero.Fs
	dir string
}

func (f failDirFs) Open(name string) (afero.File, error) {
	if name == f.dir {
		return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
	}
	return f.Fs.Open(name)
}

func writeFiles(t *testing.T, fs afero.Fs, dir string, names ...string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(dir, 0o755))
	for _, name := range names {
		require.NoError(t, afero.WriteFile(fs, filepath.Join(dir, name), []byte("audio"), 0o644))
	}
}

func numbered(n int) []string {
	names := make([]string, n)
	for i := range names {
		names[i] = fmt.Sprintf("%03d.mp3", i+1)
	}
	return names
}

func sorted(opts Options) Options {
	opts.SortEntries = true
	return opts
}

func TestScan_SingleSoundtrack(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := "/music/Boss Theme"
	writeFiles(t, fs, dir, "01.mp3", "02.mp3", "03.mp3", "04.mp3", "05.mp3", "06.mp3", "07.mp3")

	prober := &fakeProber{durations: map[string]int32{}}
	for i := 1; i <= 7; i++ {
		prober.durations[filepath.Join(dir, fmt.Sprintf("%02d.mp3", i))] = int32(i * 1000)
	}

	res, err := NewScanner(fs, prober, sorted(Options{})).Scan(context.Background(), "/music")
	require.NoError(t, err)

	require.Len(t, res.Soundtracks, 1)
	st := res.Soundtracks[0]
	assert.Equal(t, model.SoundtrackMagic, st.Magic)
	assert.Equal(t, int32(0), st.ID)
	assert.Equal(t, uint32(7), st.NumSongs)
	assert.Equal(t, int32(28000), st.TotalTimeMilliseconds)
	assert.Equal(t, "Boss Theme", st.DisplayName())
	assert.Equal(t, [model.MaxSongGroups]int32{0, 1}, st.SongGroupIDs)

	require.Len(t, res.Songs, 2)
	assert.Equal(t, [model.SongsPerGroup]int32{0, 1, 2, 3, 4, 5}, res.Songs[0].SongIDs)
	assert.Equal(t, [model.SongsPerGroup]int32{1000, 2000, 3000, 4000, 5000, 6000}, res.Songs[0].SongTimeMilliseconds)
	assert.Equal(t, [model.SongsPerGroup]int32{6}, res.Songs[1].SongIDs)
	assert.Equal(t, [model.SongsPerGroup]int32{7000}, res.Songs[1].SongTimeMilliseconds)
	assert.Equal(t, int32(1), res.Songs[1].ID)
	assert.Equal(t, int32(0), res.Songs[1].SoundtrackID)
	assert.Equal(t, "01", res.Songs[0].SongNameAt(0))
	assert.Equal(t, "06", res.Songs[0].SongNameAt(5))
	assert.Equal(t, "07", res.Songs[1].SongNameAt(0))
	assert.Equal(t, "", res.Songs[1].SongNameAt(1))

	assert.Equal(t, model.HeaderMagic, res.Header.Magic)
	assert.Equal(t, int32(1), res.Header.NumSoundtracks)
	assert.Equal(t, int32(2), res.Header.NextSoundtrackID)
	assert.Equal(t, int32(7), res.Header.NextSongID)
	assert.Equal(t, [model.MaxSoundtracks]int32{}, res.Header.SoundtrackIDs)

	require.Len(t, res.Files, 7)
	assert.Equal(t, model.MusicFile{
		Path:            filepath.Join(dir, "07.mp3"),
		SoundtrackIndex: 0,
		SoundtrackName:  "Boss Theme",
		Index:           6,
	}, res.Files[6])
	assert.Empty(t, res.Warnings)
	assert.Equal(t, int64(28000), res.TotalDuration())
}

func TestScan_MultipleSoundtracks(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/music/A", numbered(3)...)
	writeFiles(t, fs, "/music/B", numbered(8)...)
	writeFiles(t, fs, "/music/C", numbered(2)...)
	writeFiles(t, fs, "/music", "readme.txt")

	res, err := NewScanner(fs, &fakeProber{}, sorted(Options{})).Scan(context.Background(), "/music")
	require.NoError(t, err)

	require.Len(t, res.Soundtracks, 3)
	require.Len(t, res.Songs, 4)
	require.Len(t, res.Files, 13)

	for i, f := range res.Files {
		assert.Equal(t, uint32(i), f.Index, "song ids must be contiguous")
	}
	assert.Equal(t, uint32(1), res.Files[3].SoundtrackIndex)
	assert.Equal(t, "B", res.Files[3].SoundtrackName)
	assert.Equal(t, uint32(2), res.Files[12].SoundtrackIndex)

	assert.Equal(t, int32(1), res.Songs[1].SoundtrackID)
	assert.Equal(t, int32(0), res.Songs[1].ID)
	assert.Equal(t, int32(1), res.Songs[2].SoundtrackID)
	assert.Equal(t, int32(1), res.Songs[2].ID)
	assert.Equal(t, [model.SongsPerGroup]int32{9, 10}, res.Songs[2].SongIDs)

	assert.Equal(t, [model.MaxSongGroups]int32{0, 1}, res.Soundtracks[1].SongGroupIDs)
	assert.Equal(t, [model.MaxSongGroups]int32{0}, res.Soundtracks[2].SongGroupIDs)
	assert.Equal(t, uint32(8), res.Soundtracks[1].NumSongs)
	assert.Equal(t, int32(8000), res.Soundtracks[1].TotalTimeMilliseconds)

	assert.Equal(t, int32(3), res.Header.NumSoundtracks)
	assert.Equal(t, int32(4), res.Header.NextSoundtrackID)
	assert.Equal(t, [model.MaxSoundtracks]int32{0, 1, 2}, res.Header.SoundtrackIDs)
	assert.Equal(t, int32(2), res.Header.NextSongID, "legacy NextSongID is the last soundtrack's count")
}

func TestScan_CompatibilitySwitches(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/music/A", numbered(3)...)
	writeFiles(t, fs, "/music/B", numbered(8)...)
	writeFiles(t, fs, "/music/C", numbered(2)...)

	opts := sorted(Options{GlobalGroupIDs: true, GlobalNextSongID: true})
	res, err := NewScanner(fs, &fakeProber{}, opts).Scan(context.Background(), "/music")
	require.NoError(t, err)

	assert.Equal(t, [model.MaxSongGroups]int32{0}, res.Soundtracks[0].SongGroupIDs)
	assert.Equal(t, [model.MaxSongGroups]int32{1, 2}, res.Soundtracks[1].SongGroupIDs)
	assert.Equal(t, [model.MaxSongGroups]int32{3}, res.Soundtracks[2].SongGroupIDs)
	assert.Equal(t, int32(13), res.Header.NextSongID)

	// Song records keep their per-soundtrack group number.
	assert.Equal(t, int32(1), res.Songs[2].ID)
}

func TestScan_HolesFromSubdirectories(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/music/A", "01.mp3", "02.mp3", "04.mp3")
	require.NoError(t, fs.MkdirAll("/music/A/03 extras", 0o755))

	t.Run("legacy chunks before filtering", func(t *testing.T) {
		res, err := NewScanner(fs, &fakeProber{}, sorted(Options{})).Scan(context.Background(), "/music")
		require.NoError(t, err)

		require.Len(t, res.Songs, 1)
		song := res.Songs[0]
		assert.Equal(t, [model.SongsPerGroup]int32{0, 1, 0, 2}, song.SongIDs)
		assert.Equal(t, [model.SongsPerGroup]int32{1000, 1000, 0, 1000}, song.SongTimeMilliseconds)
		assert.Equal(t, "01", song.SongNameAt(0))
		assert.Equal(t, "02", song.SongNameAt(1))
		assert.Equal(t, "04", song.SongNameAt(2))
		assert.Equal(t, uint32(3), res.Soundtracks[0].NumSongs)
		assert.Len(t, res.Files, 3)
	})

	t.Run("filter before chunk", func(t *testing.T) {
		res, err := NewScanner(fs, &fakeProber{}, sorted(Options{FilterBeforeChunk: true})).Scan(context.Background(), "/music")
		require.NoError(t, err)

		require.Len(t, res.Songs, 1)
		assert.Equal(t, [model.SongsPerGroup]int32{0, 1, 2}, res.Songs[0].SongIDs)
		assert.Equal(t, [model.SongsPerGroup]int32{1000, 1000, 1000}, res.Songs[0].SongTimeMilliseconds)
	})
}

func TestScan_ProbeFailureUsesZero(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/music/A", "good.mp3", "broken.mp3")

	prober := &mockProber{}
	prober.On("Probe", mock.Anything, filepath.Join("/music/A", "broken.mp3")).Return(int32(0), errors.New("invalid data"))
	prober.On("Probe", mock.Anything, filepath.Join("/music/A", "good.mp3")).Return(int32(2500), nil)

	res, err := NewScanner(fs, prober, sorted(Options{})).Scan(context.Background(), "/music")
	require.NoError(t, err)

	// broken.mp3 sorts first.
	assert.Equal(t, [model.SongsPerGroup]int32{0, 1}, res.Songs[0].SongIDs)
	assert.Equal(t, [model.SongsPerGroup]int32{0, 2500}, res.Songs[0].SongTimeMilliseconds)
	assert.Equal(t, int32(2500), res.Soundtracks[0].TotalTimeMilliseconds)
	assert.Len(t, res.Files, 2)
	prober.AssertNumberOfCalls(t, "Probe", 2)
}

func TestScan_TooManySongGroups(t *testing.T) {
	fs := afero.NewMemMapFs()
	files := (model.MaxSongGroups + 1) * model.SongsPerGroup
	writeFiles(t, fs, "/music/Huge", numbered(files)...)

	res, err := NewScanner(fs, &fakeProber{}, sorted(Options{})).Scan(context.Background(), "/music")
	require.NoError(t, err)

	assert.Len(t, res.Songs, model.MaxSongGroups+1)
	assert.Len(t, res.Files, files)
	assert.Equal(t, uint32(files), res.Soundtracks[0].NumSongs)
	assert.Equal(t, int32(model.MaxSongGroups-1), res.Soundtracks[0].SongGroupIDs[model.MaxSongGroups-1])

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, CapacityWarning{Kind: CapacityGroups, SoundtrackID: 0, Name: "Huge", Groups: model.MaxSongGroups + 1, Dropped: 1}, res.Warnings[0])
	assert.Contains(t, res.Warnings[0].String(), "Huge")
}

func TestScan_TotalDurationOverflowClamps(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/music/Long", "a.flac", "b.flac")
	writeFiles(t, fs, "/music/Short", "c.flac")

	prober := &fakeProber{durations: map[string]int32{
		"/music/Long/a.flac": 2_000_000_000,
		"/music/Long/b.flac": 2_000_000_000,
	}}
	res, err := NewScanner(fs, prober, sorted(Options{})).Scan(context.Background(), "/music")
	require.NoError(t, err)

	require.Len(t, res.Soundtracks, 2)
	assert.Equal(t, int32(math.MaxInt32), res.Soundtracks[0].TotalTimeMilliseconds)
	assert.Equal(t, int32(1000), res.Soundtracks[1].TotalTimeMilliseconds)
	assert.Equal(t, [model.SongsPerGroup]int32{2_000_000_000, 2_000_000_000}, res.Songs[0].SongTimeMilliseconds)

	require.Len(t, res.Warnings, 1)
	assert.Equal(t, CapacityWarning{
		Kind:              CapacityDuration,
		SoundtrackID:      0,
		Name:              "Long",
		TotalMilliseconds: 4_000_000_000,
	}, res.Warnings[0])
	assert.Contains(t, res.Warnings[0].String(), "4000000000ms")
}

func TestScan_ParallelProbingMatchesSequential(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/music/A", numbered(13)...)
	writeFiles(t, fs, "/music/B", numbered(5)...)

	durations := map[string]int32{}
	for i, name := range numbered(13) {
		durations[filepath.Join("/music/A", name)] = int32(100 * (i + 1))
	}

	sequential, err := NewScanner(fs, &fakeProber{durations: durations}, sorted(Options{})).Scan(context.Background(), "/music")
	require.NoError(t, err)

	parallel, err := NewScanner(fs, &fakeProber{durations: durations}, sorted(Options{ProbeConcurrency: 4})).Scan(context.Background(), "/music")
	require.NoError(t, err)

	assert.Equal(t, sequential, parallel)
}

func TestScan_NameTransliteration(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFiles(t, fs, "/music/Pokémon Mystery Dungeon: Explorers of Sky OST", "Café del Mar.flac")

	res, err := NewScanner(fs, &fakeProber{}, Options{}).Scan(context.Background(), "/music")
	require.NoError(t, err)

	assert.Equal(t, "Pokemon Mystery Dungeon: Explore", res.Soundtracks[0].DisplayName())
	assert.Equal(t, "Cafe del Mar", res.Songs[0].SongNameAt(0))
	assert.Equal(t, "Pokemon Mystery Dungeon: Explore", res.Files[0].SoundtrackName)
}

func TestScan_Errors(t *testing.T) {
	t.Run("missing root", func(t *testing.T) {
		_, err := NewScanner(afero.NewMemMapFs(), &fakeProber{}, Options{}).Scan(context.Background(), "/nope")
		assert.ErrorIs(t, err, ErrUnreadableRoot)
	})

	t.Run("empty root", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, fs.MkdirAll("/music", 0o755))
		_, err := NewScanner(fs, &fakeProber{}, Options{}).Scan(context.Background(), "/music")
		assert.ErrorIs(t, err, ErrNoFilesFound)
	})

	t.Run("only empty soundtracks", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		require.NoError(t, fs.MkdirAll("/music/A", 0o755))
		require.NoError(t, fs.MkdirAll("/music/B/nested", 0o755))
		_, err := NewScanner(fs, &fakeProber{}, Options{}).Scan(context.Background(), "/music")
		assert.ErrorIs(t, err, ErrNoFilesFound)
	})

	t.Run("unreadable soundtrack directory", func(t *testing.T) {
		mem := afero.NewMemMapFs()
		writeFiles(t, mem, "/music/A", "a.mp3")
		writeFiles(t, mem, "/music/B", "b.mp3")

		res, err := NewScanner(failDirFs{Fs: mem, dir: "/music/B"}, &fakeProber{}, sorted(Options{})).Scan(context.Background(), "/music")
		assert.ErrorIs(t, err, ErrUnreadableSoundtrackDir)
		assert.Contains(t, err.Error(), "/music/B")
		assert.Nil(t, res)
	})

	t.Run("too many soundtracks", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		for i := 0; i <= model.MaxSoundtracks; i++ {
			writeFiles(t, fs, fmt.Sprintf("/music/%03d", i), "a.mp3")
		}
		_, err := NewScanner(fs, &fakeProber{}, Options{}).Scan(context.Background(), "/music")
		assert.ErrorIs(t, err, ErrTooManySoundtracks)
	})

	t.Run("cancelled", func(t *testing.T) {
		fs := afero.NewMemMapFs()
		writeFiles(t, fs, "/music/A", "a.mp3")
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewScanner(fs, &fakeProber{}, Options{}).Scan(ctx, "/music")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestScan_ExactlyMaxSoundtracks(t *testing.T) {
	fs := afero.NewMemMapFs()
	for i := 0; i < model.MaxSoundtracks; i++ {
		writeFiles(t, fs, fmt.Sprintf("/music/%03d", i), "a.mp3")
	}

	res, err := NewScanner(fs, &fakeProber{}, sorted(Options{})).Scan(context.Background(), "/music")
	require.NoError(t, err)

	assert.Len(t, res.Soundtracks, model.MaxSoundtracks)
	assert.Equal(t, int32(model.MaxSoundtracks-1), res.Header.SoundtrackIDs[model.MaxSoundtracks-1])
	assert.Equal(t, int32(model.MaxSoundtracks+1), res.Header.NextSoundtrackID)
}
