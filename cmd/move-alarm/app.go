package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/codeGROOVE-dev/move-alarm/pkg/appsettings"
	"github.com/codeGROOVE-dev/move-alarm/pkg/auth"
	"github.com/codeGROOVE-dev/move-alarm/pkg/config"
	"github.com/codeGROOVE-dev/move-alarm/pkg/dedup"
	"github.com/codeGROOVE-dev/move-alarm/pkg/freesound"
	"github.com/codeGROOVE-dev/move-alarm/pkg/searchcache"
	"github.com/codeGROOVE-dev/move-alarm/pkg/sounds"
)

const (
	searchCacheTTL       = 24 * time.Hour
	cacheCleanupInterval = 5 * 24 * time.Hour
	tokenFileName        = "token.json"
	notifyDedupWindow    = 10 * time.Second
)

// app holds everything a command needs, built from one config snapshot.
type app struct {
	provider *auth.Provider
	player   *sounds.Player
	cfg      config.Config
}

func newApp(configPath string, out io.Writer) *app {
	cfg := config.LoadOrDefault(configPath, out)
	slog.Debug("[MAIN] Configuration loaded", "path", configPath, "wait", cfg.WaitDuration,
		"snooze", cfg.SnoozeDuration, "freesound", cfg.APIEnabled, "backend", cfg.Backend)

	provider := newProvider(cfg)

	opts := []freesound.Option{}
	if dir, err := os.UserCacheDir(); err == nil {
		sc := searchcache.New[[]freesound.SoundResult](filepath.Join(dir, config.AppName, "search"), searchCacheTTL)
		go func() {
			if cleaned, errs := sc.CleanupOldFiles(cacheCleanupInterval); cleaned > 0 || errs > 0 {
				slog.Info("[CACHE] Cleanup completed", "removed", cleaned, "errors", errs)
			}
		}()
		opts = append(opts, freesound.WithCache(sc))
	}
	remote := freesound.New(opts...)

	src := sounds.NewSource(cfg, provider, remote, out)
	return &app{
		cfg:      cfg,
		provider: provider,
		player:   sounds.NewPlayer(src, newBackend(cfg.Backend)),
	}
}

func newProvider(cfg config.Config) *auth.Provider {
	return auth.NewProvider(cfg.ClientID, cfg.ClientSecret, appsettings.NewManager(config.AppName, tokenFileName))
}

func newBackend(name string) sounds.Backend {
	if name == config.BackendCommand {
		return sounds.NewCommandBackend()
	}
	return sounds.NewSpeakerBackend(sounds.DefaultSampleRate)
}

// desktopNotifier shows the reminder as a desktop notification. Identical
// notifications inside the dedup window are dropped.
type desktopNotifier struct {
	recent *dedup.Filter
	notify func(title, message string) error
}

func newDesktopNotifier() *desktopNotifier {
	return &desktopNotifier{
		recent: dedup.New(notifyDedupWindow),
		notify: func(title, message string) error { return beeep.Notify(title, message, "") },
	}
}

func (n *desktopNotifier) Notify(title, message string) error {
	if !n.recent.Allow(title + "\x00" + message) {
		slog.Debug("[NOTIFY] Suppressing repeated notification", "title", title)
		return nil
	}
	if err := n.notify(title, message); err != nil {
		return fmt.Errorf("desktop notification: %w", err)
	}
	return nil
}
