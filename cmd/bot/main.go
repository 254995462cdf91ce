// Package main provides the bot entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/radiobox/internal/api/httpapi"
	"github.com/osa030/radiobox/internal/app/filter"
	"github.com/osa030/radiobox/internal/app/playback"
	"github.com/osa030/radiobox/internal/app/radio"
	"github.com/osa030/radiobox/internal/app/resolver"
	"github.com/osa030/radiobox/internal/app/session"
	"github.com/osa030/radiobox/internal/infra/config"
	"github.com/osa030/radiobox/internal/infra/discord"
	"github.com/osa030/radiobox/internal/infra/history"
	"github.com/osa030/radiobox/internal/infra/logger"
	"github.com/osa030/radiobox/internal/infra/snapshot"
	"github.com/osa030/radiobox/internal/infra/spotify"
	"github.com/osa030/radiobox/internal/infra/youtube"
	"github.com/osa030/radiobox/internal/infra/ytdlp"
	"github.com/osa030/radiobox/internal/infra/ytmusic"
	"github.com/osa030/radiobox/internal/infra/ytsearch"
)

var (
	app        = kingpin.New("radiobox", "radiobox Discord music bot")
	configPath = app.Flag("config", "Path to config file").Default("config/bot.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the bot (default)").Default()
}

func main() {
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = "file"
		loggerConfig.File = *logfile
	}
	if err := logger.Init(loggerConfig); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func() { _ = logger.Close() }()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Bot error: %v", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until shutdown. Deferred cleanup runs on every
// return path.
func run(cfg *config.Config) error {
	if err := validateFilterConfig(cfg); err != nil {
		return errors.Wrap(err, "invalid filter config")
	}
	checkTools(cfg)

	ctx := context.Background()

	searchers, lookups, err := buildSearchProviders(cfg)
	if err != nil {
		return err
	}
	res := resolver.New(searchers, lookups, cfg.YouTube.Timeout)

	ytdl := ytdlp.New(ytdlp.Config{
		Executable: cfg.Playback.YtDlpLocation,
		Proxy:      cfg.Playback.YtDlpProxy,
	})

	var finder playback.RelatedFinder
	chain, err := radio.NewProviderChainFromConfig(cfg, res, ytdl)
	if err != nil {
		zlog.Warn().Msgf("Radio providers unavailable, using search fallback only: %v", err)
		chain = radio.NewProviderChain(nil)
	}
	finder = radio.NewFinder(chain, res, cfg.Playback.MaxSongDurationValue(), cfg.Radio.Timeout)

	deps := session.Deps{
		Resolver: res,
		Streams:  ytdl,
		Finder:   finder,
		Importer: ytdlp.NewPlaylistImporter(),
	}
	if cfg.Playback.QueueFile != "" {
		deps.Snapshot = snapshot.NewFile(cfg.Playback.QueueFile)
	}

	if !cfg.History.Disabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return errors.Wrap(err, "failed to open history")
		}
		defer func() {
			if err := store.Close(); err != nil {
				zlog.Warn().Msgf("Failed to close history: %v", err)
			}
		}()
		deps.History = store
	}

	if cfg.Spotify.Enabled() {
		sp, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return errors.Wrap(err, "failed to create Spotify client")
		}
		deps.Rewriter = sp
	} else {
		zlog.Info().Msg("Spotify not configured, Spotify links will be searched as text")
	}

	transport := discord.NewTransport(discord.TransportConfig{
		FFmpeg: cfg.Playback.FFmpegLocation,
		Volume: cfg.Playback.DefaultVolume,
	})
	deps.Transport = transport

	sessionMgr, err := session.NewManager(cfg, deps)
	if err != nil {
		return errors.Wrap(err, "failed to create session manager")
	}

	bot, err := discord.New(cfg, sessionMgr, transport, sessionMgr.GetNotificationManager())
	if err != nil {
		sessionMgr.Close()
		return err
	}
	if err := bot.Start(ctx); err != nil {
		sessionMgr.Close()
		return err
	}

	api := httpapi.New(cfg, sessionMgr, sessionMgr.GetNotificationManager())
	serverErrCh := make(chan error, 1)
	api.Start(serverErrCh)

	executeHooks(cfg.Server.Hooks.OnStarted, "on_started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigCh:
		zlog.Info().Msg("Received shutdown signal...")
	case <-sessionMgr.Done():
		zlog.Info().Msg("Session ended, shutting down...")
	case err := <-serverErrCh:
		runErr = err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Leave voice before stopping the session so the transport detaches cleanly.
	bot.Close(shutdownCtx)
	sessionMgr.Close()

	if err := api.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		zlog.Error().Msgf("Failed to shutdown control API: %v", err)
	}

	zlog.Info().Msg("Bot stopped")
	executeHooks(cfg.Server.Hooks.OnStopped, "on_stopped")
	return runErr
}

// buildSearchProviders creates the configured search providers in order. Providers that can
// look up a single video are also returned as lookups; the keyless scraper is always
// available as the last lookup.
func buildSearchProviders(cfg *config.Config) ([]resolver.SearchProvider, []resolver.LookupProvider, error) {
	var searchers []resolver.SearchProvider
	var lookups []resolver.LookupProvider
	haveScraper := false

	httpClient := &http.Client{Timeout: cfg.YouTube.Timeout}

	for i, p := range cfg.Search.Providers {
		zlog.Debug().Msgf("creating search provider: index=%d type=%s", i+1, p.Type)
		switch p.Type {
		case config.ProviderYouTube:
			yt, err := youtube.New(youtube.Config{
				APIKey:          cfg.YouTube.APIKey,
				MusicCategoryID: cfg.YouTube.MusicCategoryID,
				Timeout:         cfg.YouTube.Timeout,
			})
			if err != nil {
				return nil, nil, errors.Wrapf(err, "failed to create search provider %d (%s)", i+1, p.Type)
			}
			searchers = append(searchers, yt)
			lookups = append(lookups, yt)
		case config.ProviderYTSearch:
			yts := ytsearch.New(httpClient)
			searchers = append(searchers, yts)
			lookups = append(lookups, yts)
			haveScraper = true
		case config.ProviderYTMusic:
			searchers = append(searchers, ytmusic.New())
		default:
			return nil, nil, errors.Newf("unsupported search provider type: %s (provider index %d)", p.Type, i+1)
		}
	}

	if !haveScraper {
		lookups = append(lookups, ytsearch.New(httpClient))
	}
	return searchers, lookups, nil
}

// checkTools warns about missing external binaries. Playback fails per track without them
// but the bot can still start.
func checkTools(cfg *config.Config) {
	ytdlpPath := cfg.Playback.YtDlpLocation
	if ytdlpPath == "" {
		ytdlpPath = "yt-dlp"
	}
	for _, bin := range []string{cfg.Playback.FFmpegLocation, ytdlpPath} {
		if _, err := exec.LookPath(bin); err != nil {
			zlog.Warn().Msgf("Required tool not found: %s (%v)", bin, err)
		}
	}
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	for _, factory := range filter.GetRegistered() {
		f := factory()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}

// validateFilterConfig validates filter configurations.
func validateFilterConfig(cfg *config.Config) error {
	registry := filter.GetRegistered()

	for filterName, filterCfg := range cfg.Filters {
		if !filterCfg.Enabled {
			continue
		}

		factory, exists := registry[filterName]
		if !exists {
			return errors.Newf("unknown filter: %s", filterName)
		}

		f := factory()
		if err := f.ValidateConfig(filterCfg.Settings); err != nil {
			return errors.Wrapf(err, "filter %s", filterName)
		}
	}

	return nil
}

// executeHooks runs a list of shell commands.
func executeHooks(hooks []string, stage string) {
	if len(hooks) == 0 {
		return
	}

	zlog.Info().Msgf("Executing %s hooks (%d commands)", stage, len(hooks))

	for _, hook := range hooks {
		zlog.Info().Msgf("Executing hook: %s", hook)
		cmd := exec.Command("sh", "-c", hook)
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			zlog.Error().Err(err).Msgf("Failed to execute hook: %s", hook)
		}
	}
}
