package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	ioutils "github.com/xbst-tools/xbst/internal/io"
	"github.com/xbst-tools/xbst/internal/scan"
)

// EnvPrefix prefixes environment overrides, e.g. XBST_BITRATE=192.
const EnvPrefix = "XBST"

// Prober names accepted in Settings.Probers.
const (
	ProberFFprobe = "ffprobe"
	ProberNative  = "native"
	ProberTag     = "tag"
)

// ErrInvalidSettings is returned by Validate.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings holds all configuration options.
type Settings struct {
	// Paths
	InputDir  string `json:"input_dir" yaml:"input_dir" mapstructure:"input_dir"`
	OutputDir string `json:"output_dir" yaml:"output_dir" mapstructure:"output_dir"`

	// Transcoding
	Bitrate                 int    `json:"bitrate" yaml:"bitrate" mapstructure:"bitrate"` // kbps
	FFmpegPath              string `json:"ffmpeg_path" yaml:"ffmpeg_path" mapstructure:"ffmpeg_path"`
	MaxConcurrentTranscodes int    `json:"max_concurrent_transcodes" yaml:"max_concurrent_transcodes" mapstructure:"max_concurrent_transcodes"`

	// Duration probing
	FFprobePath      string   `json:"ffprobe_path" yaml:"ffprobe_path" mapstructure:"ffprobe_path"`
	Probers          []string `json:"probers" yaml:"probers" mapstructure:"probers"` // ffprobe, native, tag
	ProbeConcurrency int      `json:"probe_concurrency" yaml:"probe_concurrency" mapstructure:"probe_concurrency"`

	// Scan layout
	SortEntries       bool `json:"sort_entries" yaml:"sort_entries" mapstructure:"sort_entries"`
	FilterBeforeChunk bool `json:"filter_before_chunk" yaml:"filter_before_chunk" mapstructure:"filter_before_chunk"`
	GlobalGroupIDs    bool `json:"global_group_ids" yaml:"global_group_ids" mapstructure:"global_group_ids"`
	GlobalNextSongID  bool `json:"global_next_song_id" yaml:"global_next_song_id" mapstructure:"global_next_song_id"`

	// Logging and metrics
	LogLevel    string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`
	LogFormat   string `json:"log_format" yaml:"log_format" mapstructure:"log_format"` // text, json
	MetricsFile string `json:"metrics_file" yaml:"metrics_file" mapstructure:"metrics_file"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		InputDir:  "./music",
		OutputDir: "./output",

		Bitrate:                 128,
		FFmpegPath:              "ffmpeg",
		MaxConcurrentTranscodes: 1,

		FFprobePath:      "ffprobe",
		Probers:          []string{ProberFFprobe, ProberNative, ProberTag},
		ProbeConcurrency: 1,

		LogLevel:  "info",
		LogFormat: "text",
	}
}

// DefaultPath returns the per-user config file location.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "xbst", "config.json")
}

// flagKeys maps command line flag names to settings keys.
var flagKeys = map[string]string{
	"input":                 "input_dir",
	"output":                "output_dir",
	"bitrate":               "bitrate",
	"ffmpeg":                "ffmpeg_path",
	"ffprobe":               "ffprobe_path",
	"probers":               "probers",
	"probe-concurrency":     "probe_concurrency",
	"transcode-concurrency": "max_concurrent_transcodes",
	"sort":                  "sort_entries",
	"filter-before-chunk":   "filter_before_chunk",
	"global-group-ids":      "global_group_ids",
	"global-next-song-id":   "global_next_song_id",
	"log-level":             "log_level",
	"log-format":            "log_format",
	"metrics-file":          "metrics_file",
}

// RegisterFlags adds one flag per setting to flags, using the defaults as
// flag defaults. Pass the same set to Load so changed flags win.
func RegisterFlags(flags *pflag.FlagSet) {
	d := DefaultSettings()
	flags.String("input", d.InputDir, "Directory of soundtrack folders")
	flags.String("output", d.OutputDir, "Output directory for ST.DB and transcoded songs")
	flags.IntP("bitrate", "b", d.Bitrate, "Output bitrate in kbps")
	flags.String("ffmpeg", d.FFmpegPath, "Path to the ffmpeg binary")
	flags.String("ffprobe", d.FFprobePath, "Path to the ffprobe binary")
	flags.StringSlice("probers", d.Probers, "Duration probers to try in order (ffprobe, native, tag)")
	flags.Int("probe-concurrency", d.ProbeConcurrency, "Files probed in parallel per soundtrack")
	flags.Int("transcode-concurrency", d.MaxConcurrentTranscodes, "Songs transcoded in parallel")
	flags.Bool("sort", d.SortEntries, "Enumerate folders in name order")
	flags.Bool("filter-before-chunk", d.FilterBeforeChunk, "Drop subfolders before grouping songs")
	flags.Bool("global-group-ids", d.GlobalGroupIDs, "Number song groups across all soundtracks")
	flags.Bool("global-next-song-id", d.GlobalNextSongID, "Store the total song count as the next song id")
	flags.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	flags.String("log-format", d.LogFormat, "Log format (text, json)")
	flags.String("metrics-file", d.MetricsFile, "Write Prometheus metrics to this file after the run")
}

func newViper() *viper.Viper {
	v := viper.New()
	d := DefaultSettings()
	v.SetDefault("input_dir", d.InputDir)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("bitrate", d.Bitrate)
	v.SetDefault("ffmpeg_path", d.FFmpegPath)
	v.SetDefault("max_concurrent_transcodes", d.MaxConcurrentTranscodes)
	v.SetDefault("ffprobe_path", d.FFprobePath)
	v.SetDefault("probers", d.Probers)
	v.SetDefault("probe_concurrency", d.ProbeConcurrency)
	v.SetDefault("sort_entries", d.SortEntries)
	v.SetDefault("filter_before_chunk", d.FilterBeforeChunk)
	v.SetDefault("global_group_ids", d.GlobalGroupIDs)
	v.SetDefault("global_next_song_id", d.GlobalNextSongID)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("metrics_file", d.MetricsFile)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads settings from a JSON, YAML or TOML file, then applies XBST_*
// environment variables and any changed flags. A missing file yields the
// defaults. path and flags may both be empty.
func Load(path string, flags *pflag.FlagSet) (*Settings, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, err
				}
			}
		}
	}

	// Decode into a zero value so slices are replaced, not merged.
	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return &settings, nil
}

// Validate checks values that would make a run fail later.
func (s *Settings) Validate() error {
	if s.Bitrate <= 0 {
		return fmt.Errorf("%w: bitrate must be positive, got %d", ErrInvalidSettings, s.Bitrate)
	}
	if s.InputDir == "" || s.OutputDir == "" {
		return fmt.Errorf("%w: input and output directories are required", ErrInvalidSettings)
	}
	if len(s.Probers) == 0 {
		return fmt.Errorf("%w: at least one prober is required", ErrInvalidSettings)
	}
	for _, name := range s.Probers {
		switch name {
		case ProberFFprobe, ProberNative, ProberTag:
		default:
			return fmt.Errorf("%w: unknown prober %q", ErrInvalidSettings, name)
		}
	}
	switch s.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", ErrInvalidSettings, s.LogFormat)
	}
	if s.ProbeConcurrency < 1 {
		s.ProbeConcurrency = 1
	}
	if s.MaxConcurrentTranscodes < 1 {
		s.MaxConcurrentTranscodes = 1
	}
	return nil
}

// Save writes settings to path. Files ending in .yaml or .yml are written as
// YAML, everything else as JSON.
func (s *Settings) Save(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(s)
	default:
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return ioutils.WriteFileAtomic(afero.NewOsFs(), path, data)
}

// ToScanOptions converts settings to scan.Options.
func (s *Settings) ToScanOptions(logger *zerolog.Logger) scan.Options {
	return scan.Options{
		SortEntries:       s.SortEntries,
		FilterBeforeChunk: s.FilterBeforeChunk,
		GlobalGroupIDs:    s.GlobalGroupIDs,
		GlobalNextSongID:  s.GlobalNextSongID,
		ProbeConcurrency:  s.ProbeConcurrency,
		Logger:            logger,
	}
}
