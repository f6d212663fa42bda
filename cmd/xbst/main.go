package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"github.com/xbst-tools/xbst/internal/config"
	"github.com/xbst-tools/xbst/internal/convert"
	"github.com/xbst-tools/xbst/internal/logging"
	"github.com/xbst-tools/xbst/internal/metrics"
	"github.com/xbst-tools/xbst/internal/model"
	"github.com/xbst-tools/xbst/internal/stdb"
)

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#9BE564")).Bold(true)
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C757D"))
)

func main() {
	flags := pflag.NewFlagSet("xbst", pflag.ExitOnError)
	config.RegisterFlags(flags)
	var (
		configFlag  = flags.StringP("config", "c", "", "Path to config file (json, yaml or toml)")
		verboseFlag = flags.BoolP("verbose", "v", false, "Show verbose output")
		dryRunFlag  = flags.Bool("dry-run", false, "Scan and report without writing anything")
		inspectFlag = flags.String("inspect", "", "Print the contents of an existing ST.DB (file or directory)")
	)
	flags.Usage = func() {
		fmt.Fprintln(os.Stderr, "xbst - convert soundtrack folders to an ST.DB database")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  xbst [options] [input_dir] [output_dir]")
		fmt.Fprintln(os.Stderr, "  xbst --inspect output/ST.DB")
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "For interactive mode, use: xbst-tui")
		fmt.Fprintln(os.Stderr)
		flags.PrintDefaults()
	}
	_ = flags.Parse(os.Args[1:])

	if *inspectFlag != "" {
		if err := inspect(*inspectFlag); err != nil {
			fail(err)
		}
		return
	}

	settings, err := config.Load(*configFlag, flags)
	if err != nil {
		fail(fmt.Errorf("loading config: %w", err))
	}
	if flags.NArg() > 0 {
		settings.InputDir = flags.Arg(0)
	}
	if flags.NArg() > 1 {
		settings.OutputDir = flags.Arg(1)
	}
	if *verboseFlag {
		settings.LogLevel = "debug"
	}

	logger := logging.New(settings.LogLevel, logging.Format(settings.LogFormat), os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []convert.Option{convert.WithLogger(logger)}
	var m *metrics.Metrics
	if settings.MetricsFile != "" {
		m = metrics.NewMetrics()
		opts = append(opts, convert.WithMetrics(m))
	}
	// Metrics are flushed on every exit path, including failures.
	flush := func() {
		if m == nil {
			return
		}
		if err := m.WriteToTextfile(settings.MetricsFile); err != nil {
			logger.Warn().Err(err).Str("path", settings.MetricsFile).Msg("failed to write metrics")
		}
	}
	abort := func(err error) {
		flush()
		fail(err)
	}

	manager := convert.NewManager(settings, func(event convert.ProgressEvent) {
		if event.Level == convert.LevelVerbose && !*verboseFlag {
			return
		}

		prefix := ""
		switch event.Level {
		case convert.LevelError:
			prefix = "✗ "
		case convert.LevelWarning:
			prefix = "! "
		case convert.LevelSuccess:
			prefix = "✓ "
		case convert.LevelInfo:
			prefix = "› "
		default:
			prefix = "  "
		}

		fmt.Println(prefix + event.Message)
	}, opts...)

	fmt.Println(titleStyle.Render("♫ xbst"))
	fmt.Println(dimStyle.Render(fmt.Sprintf("%s → %s", settings.InputDir, settings.OutputDir)))
	fmt.Println()

	if err := manager.Scan(ctx); err != nil {
		abort(err)
	}

	if *dryRunFlag {
		printSummary(manager.Summary())
		fmt.Println("\n[Dry run - nothing written]")
		flush()
		return
	}

	if _, err := manager.WriteDatabase(); err != nil {
		abort(err)
	}

	start := time.Now()
	if err := manager.Transcode(ctx); err != nil {
		if ctx.Err() != nil {
			fmt.Println("\nConversion cancelled.")
			flush()
			os.Exit(130)
		}
		abort(err)
	}

	fmt.Println()
	printSummary(manager.Summary())
	done, total := manager.GetProgress()
	fmt.Printf("Transcoded %d/%d songs in %s\n", done, total, time.Since(start).Truncate(time.Second))
	flush()
}

func printSummary(s convert.Summary) {
	fmt.Printf("Soundtracks: %d\n", s.Soundtracks)
	fmt.Printf("Songs:       %d (%d groups)\n", s.Songs, s.Groups)
	fmt.Printf("Duration:    %s\n", s.TotalDuration.Truncate(time.Second))
	if s.DatabasePath != "" {
		fmt.Printf("Database:    %s\n", s.DatabasePath)
	}
	for _, w := range s.Warnings {
		fmt.Printf("! %s\n", w)
	}
}

func inspect(path string) error {
	db, err := stdb.ReadFile(afero.NewOsFs(), path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	h := db.Header
	fmt.Printf("Soundtracks: %d  next soundtrack id: %d  next song id: %d\n", h.NumSoundtracks, h.NextSoundtrackID, h.NextSongID)
	for i := range db.Soundtracks {
		st := &db.Soundtracks[i]
		fmt.Println()
		fmt.Println(titleStyle.Render(fmt.Sprintf("%04d %s", st.ID, st.DisplayName())))
		fmt.Println(dimStyle.Render(fmt.Sprintf("  %d songs, %s", st.NumSongs, (time.Duration(st.TotalTimeMilliseconds) * time.Millisecond).Truncate(time.Second))))

		for _, song := range db.SongsOf(st.ID) {
			for slot := 0; slot < model.SongsPerGroup; slot++ {
				name := song.SongNameAt(slot)
				if name == "" {
					continue
				}
				fmt.Printf("  group %-3d %08x  %-32s %s\n", song.ID, song.SongIDs[slot], name,
					(time.Duration(song.SongTimeMilliseconds[slot]) * time.Millisecond).Truncate(time.Second))
			}
		}
	}
	return nil
}

func fail(err error) {
	msg := err.Error()
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		msg = fmt.Sprintf("%s: %v", pathErr.Path, pathErr.Err)
	}
	fmt.Fprintln(os.Stderr, errorStyle.Render("error: "+msg))
	os.Exit(1)
}
