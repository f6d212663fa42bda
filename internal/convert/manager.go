package convert

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/xbst-tools/xbst/internal/audio"
	"github.com/xbst-tools/xbst/internal/config"
	"github.com/xbst-tools/xbst/internal/logging"
	"github.com/xbst-tools/xbst/internal/metrics"
	"github.com/xbst-tools/xbst/internal/model"
	"github.com/xbst-tools/xbst/internal/scan"
	"github.com/xbst-tools/xbst/internal/stdb"
)

// ErrNotScanned is returned when WriteDatabase or Transcode run before Scan.
var ErrNotScanned = errors.New("input has not been scanned")

// ProgressLevel indicates the severity/type of a progress message.
type ProgressLevel int

const (
	LevelInfo ProgressLevel = iota
	LevelVerbose
	LevelWarning
	LevelError
	LevelSuccess
)

// ProgressEvent represents a conversion progress update.
type ProgressEvent struct {
	Message string
	Level   ProgressLevel
}

// Summary describes a finished scan.
type Summary struct {
	Soundtracks   int
	Songs         int
	Groups        int
	TotalDuration time.Duration
	Warnings      []scan.CapacityWarning
	DatabasePath  string
}

// Manager coordinates a conversion: scan, write ST.DB, transcode.
type Manager struct {
	settings   *config.Settings
	fs         afero.Fs
	prober     scan.DurationProber
	transcoder audio.Transcoder
	metrics    *metrics.Metrics
	log        zerolog.Logger

	result          *scan.Result
	dbPath          string
	totalFiles      int32
	transcodedFiles int32

	onProgress func(ProgressEvent)
	mu         sync.RWMutex
}

// Option customizes a Manager.
type Option func(*Manager)

// WithFs sets the filesystem used for scanning, writing ST.DB and creating
// soundtrack folders.
func WithFs(fs afero.Fs) Option {
	return func(m *Manager) { m.fs = fs }
}

// WithProber replaces the prober built from settings.
func WithProber(p scan.DurationProber) Option {
	return func(m *Manager) { m.prober = p }
}

// WithTranscoder replaces the ffmpeg transcoder.
func WithTranscoder(t audio.Transcoder) Option {
	return func(m *Manager) { m.transcoder = t }
}

// WithMetrics records scan and transcode metrics into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// NewManager creates a new conversion Manager.
func NewManager(settings *config.Settings, onProgress func(ProgressEvent), opts ...Option) *Manager {
	m := &Manager{
		settings:   settings,
		fs:         afero.NewOsFs(),
		log:        zerolog.Nop(),
		onProgress: onProgress,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.prober == nil {
		m.prober = NewProber(settings)
	}
	if m.transcoder == nil {
		m.transcoder = audio.NewFFmpeg(settings.FFmpegPath).
			WithFs(m.fs).
			WithLogger(logging.WithModule(m.log, "ffmpeg"))
	}
	if m.metrics != nil {
		m.prober = m.metrics.InstrumentProber(m.prober)
		m.transcoder = m.metrics.InstrumentTranscoder(m.transcoder)
	}
	m.log = logging.WithModule(m.log, "convert")
	return m
}

// NewProber builds the prober chain named in settings.Probers.
func NewProber(settings *config.Settings) audio.DurationProber {
	var probers []audio.DurationProber
	for _, name := range settings.Probers {
		switch name {
		case config.ProberFFprobe:
			probers = append(probers, audio.NewFFprobe(settings.FFprobePath))
		case config.ProberNative:
			probers = append(probers, audio.NewNativeProber())
		case config.ProberTag:
			probers = append(probers, audio.NewTagProber())
		}
	}
	if len(probers) == 1 {
		return probers[0]
	}
	return audio.NewChainProber(probers...)
}

// Scan walks the input directory and builds the database in memory.
func (m *Manager) Scan(ctx context.Context) error {
	m.progress(ProgressEvent{Message: fmt.Sprintf("Scanning %s", m.settings.InputDir), Level: LevelVerbose})

	scanner := scan.NewScanner(m.fs, m.prober, m.settings.ToScanOptions(&m.log))
	result, err := scanner.Scan(ctx, m.settings.InputDir)
	if err != nil {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Error scanning %s: %v", m.settings.InputDir, err), Level: LevelError})
		return err
	}

	for i := range result.Soundtracks {
		st := &result.Soundtracks[i]
		m.progress(ProgressEvent{
			Message: fmt.Sprintf("Found soundtrack: %s (%d songs, %s)", st.DisplayName(), st.NumSongs, formatDuration(st.TotalTimeMilliseconds)),
			Level:   LevelInfo,
		})
	}
	for _, w := range result.Warnings {
		m.progress(ProgressEvent{Message: w.String(), Level: LevelWarning})
	}

	if m.metrics != nil {
		m.metrics.SoundtracksScanned.Set(float64(len(result.Soundtracks)))
		m.metrics.SongsScanned.Set(float64(len(result.Files)))
		m.metrics.SongGroupsScanned.Set(float64(len(result.Songs)))
		m.metrics.CapacityWarnings.Add(float64(len(result.Warnings)))
	}

	m.mu.Lock()
	m.result = result
	m.dbPath = ""
	m.totalFiles = int32(len(result.Files))
	m.mu.Unlock()
	atomic.StoreInt32(&m.transcodedFiles, 0)

	return nil
}

// WriteDatabase writes ST.DB to the output directory and returns its path.
func (m *Manager) WriteDatabase() (string, error) {
	m.mu.RLock()
	result := m.result
	m.mu.RUnlock()
	if result == nil {
		return "", ErrNotScanned
	}

	path, err := stdb.WriteFile(m.fs, m.settings.OutputDir, result.Header, result.Soundtracks, result.Songs)
	if err != nil {
		m.progress(ProgressEvent{Message: fmt.Sprintf("Error writing database: %v", err), Level: LevelError})
		return "", err
	}

	m.mu.Lock()
	m.dbPath = path
	m.mu.Unlock()

	size := stdb.Size(len(result.Songs))
	if m.metrics != nil {
		m.metrics.DatabaseBytes.Set(float64(size))
	}
	m.log.Info().Str("path", path).Int("bytes", size).Msg("database written")
	m.progress(ProgressEvent{Message: fmt.Sprintf("Wrote %s", path), Level: LevelSuccess})
	return path, nil
}

// Transcode converts every scanned file. The first failure cancels the
// remaining work and is returned; files already written are kept.
func (m *Manager) Transcode(ctx context.Context) error {
	m.mu.RLock()
	result := m.result
	m.mu.RUnlock()
	if result == nil {
		return ErrNotScanned
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(m.settings.MaxConcurrentTranscodes, 1))

	for _, file := range result.Files {
		g.Go(func() error {
			return m.transcodeFile(ctx, file)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	m.progress(ProgressEvent{Message: fmt.Sprintf("Transcoded %d songs", len(result.Files)), Level: LevelSuccess})
	return nil
}

func (m *Manager) transcodeFile(ctx context.Context, file model.MusicFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log := m.log.With().
		Uint32("soundtrack", file.SoundtrackIndex).
		Uint32("song_id", file.Index).
		Str("path", file.Path).
		Logger()

	m.progress(ProgressEvent{Message: fmt.Sprintf("Transcoding %s/%s", file.SoundtrackName, file.Stem()), Level: LevelVerbose})

	err := m.transcoder.Transcode(ctx, file.Path, m.settings.OutputDir, file.SoundtrackIndex, file.Index, m.settings.Bitrate)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error().Err(err).Msg("transcode failed")
		m.progress(ProgressEvent{Message: fmt.Sprintf("Error transcoding %s: %v", file.Path, err), Level: LevelError})
		return fmt.Errorf("transcode %s: %w", file.Path, err)
	}

	atomic.AddInt32(&m.transcodedFiles, 1)
	log.Debug().Str("output", file.OutputPath(m.settings.OutputDir)).Msg("transcoded")
	return nil
}

// Run scans, writes the database and transcodes. The database is written
// before any transcoding starts.
func (m *Manager) Run(ctx context.Context) error {
	if err := m.Scan(ctx); err != nil {
		return err
	}
	if _, err := m.WriteDatabase(); err != nil {
		return err
	}
	return m.Transcode(ctx)
}

// GetProgress returns current transcoding progress.
func (m *Manager) GetProgress() (transcoded, total int32) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return atomic.LoadInt32(&m.transcodedFiles), m.totalFiles
}

// GetSoundtrackNames returns the names of all scanned soundtracks.
func (m *Manager) GetSoundtrackNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.result == nil {
		return nil
	}

	names := make([]string, len(m.result.Soundtracks))
	for i := range m.result.Soundtracks {
		st := &m.result.Soundtracks[i]
		names[i] = fmt.Sprintf("%04d %s (%d songs)", st.ID, st.DisplayName(), st.NumSongs)
	}
	return names
}

// Summary returns totals of the last scan.
func (m *Manager) Summary() Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.result == nil {
		return Summary{}
	}
	return Summary{
		Soundtracks:   len(m.result.Soundtracks),
		Songs:         len(m.result.Files),
		Groups:        len(m.result.Songs),
		TotalDuration: time.Duration(m.result.TotalDuration()) * time.Millisecond,
		Warnings:      m.result.Warnings,
		DatabasePath:  m.dbPath,
	}
}

// Result returns the last scan result, or nil.
func (m *Manager) Result() *scan.Result {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.result
}

func (m *Manager) progress(event ProgressEvent) {
	if m.onProgress != nil {
		m.onProgress(event)
	}
}

func formatDuration(ms int32) string {
	return (time.Duration(ms) * time.Millisecond).Truncate(time.Second).String()
}
