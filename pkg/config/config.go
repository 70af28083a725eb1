// Package config loads the move-alarm configuration file.
//
// The file is TOML with the sections used since the first release:
//
//	[alarm]
//	interval = 3600        # seconds until the alarm sounds
//	snooze = 300           # seconds added by a snooze
//	message = "Time to stretch!"
//
//	[sounds]
//	path = "/home/me/.local/share/move-alarm/sounds"
//	freesound = false      # search freesound.org before using local files
//	themes = ["funk"]
//	backend = "speaker"    # or "command"
//
//	[freesound]
//	client_id = ""
//	client_secret = ""
//
// Every key can be overridden from the environment, e.g.
// MOVE_ALARM_ALARM_INTERVAL=60.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppName names the per-user config, data and cache directories.
const AppName = "move-alarm"

const (
	BackendSpeaker = "speaker"
	BackendCommand = "command"
)

// Config is an immutable snapshot consumed by the alarm and sound packages.
type Config struct {
	WaitDuration   time.Duration
	SnoozeDuration time.Duration
	ReminderText   string
	WavDirectory   string
	APIEnabled     bool
	SoundThemes    []string
	Backend        string
	ClientID       string
	ClientSecret   string
}

// file mirrors the on-disk layout.
type file struct {
	Alarm struct {
		Interval int    `mapstructure:"interval"`
		Snooze   int    `mapstructure:"snooze"`
		Message  string `mapstructure:"message"`
	} `mapstructure:"alarm"`
	Sounds struct {
		Path      string   `mapstructure:"path"`
		Freesound bool     `mapstructure:"freesound"`
		Themes    []string `mapstructure:"themes"`
		Backend   string   `mapstructure:"backend"`
	} `mapstructure:"sounds"`
	Freesound struct {
		ClientID     string `mapstructure:"client_id"`
		ClientSecret string `mapstructure:"client_secret"`
	} `mapstructure:"freesound"`
}

// requiredKeys must be present in a file for Load to accept it.
var requiredKeys = []string{
	"alarm.interval",
	"alarm.snooze",
	"alarm.message",
	"sounds.path",
	"sounds.freesound",
	"sounds.themes",
}

// Default returns the configuration used when no usable file exists.
func Default() Config {
	return Config{
		WaitDuration:   time.Hour,
		SnoozeDuration: 5 * time.Minute,
		ReminderText:   "Time to stretch!",
		WavDirectory:   DefaultSoundDir(),
		APIEnabled:     false,
		SoundThemes:    []string{"funk"},
		Backend:        BackendSpeaker,
	}
}

// DefaultPath returns <user config dir>/move-alarm/config.toml.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("get user config dir: %w", err)
	}
	return filepath.Join(dir, AppName, "config.toml"), nil
}

// DefaultSoundDir returns the directory local sounds are read from and
// downloads are written to when the file does not say otherwise.
func DefaultSoundDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, AppName, "sounds")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), AppName, "sounds")
	}
	return filepath.Join(home, ".local", "share", AppName, "sounds")
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("MOVE_ALARM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := Default()
	v.SetDefault("alarm.interval", int(d.WaitDuration/time.Second))
	v.SetDefault("alarm.snooze", int(d.SnoozeDuration/time.Second))
	v.SetDefault("alarm.message", d.ReminderText)
	v.SetDefault("sounds.path", d.WavDirectory)
	v.SetDefault("sounds.freesound", d.APIEnabled)
	v.SetDefault("sounds.themes", d.SoundThemes)
	v.SetDefault("sounds.backend", d.Backend)
	v.SetDefault("freesound.client_id", "")
	v.SetDefault("freesound.client_secret", "")
	return v
}

// Load reads and validates the file at path. A missing file, a missing
// required key, or a value of the wrong type is an error.
func Load(path string) (Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	for _, key := range requiredKeys {
		if !v.InConfig(key) {
			section, option, _ := strings.Cut(key, ".")
			return Config{}, fmt.Errorf("no option '%s' in section: '%s'", option, section)
		}
	}

	return decode(v)
}

// LoadOrDefault behaves like Load but never fails: problems are reported
// to w and the defaults are used instead. If no file exists at path, a
// default one is written so the user has something to edit.
func LoadOrDefault(path string, w io.Writer) Config {
	cfg, err := Load(path)
	if err == nil {
		return cfg
	}

	fmt.Fprintf(w, "Warning: %v\nUsing default values...\n", err)

	v := newViper()
	if _, statErr := os.Stat(path); errors.Is(statErr, os.ErrNotExist) {
		if werr := write(v, path); werr != nil {
			fmt.Fprintf(w, "Warning: %v\n", werr)
		}
	}

	// Defaults plus any environment overrides.
	cfg, err = decode(v)
	if err != nil {
		return Default()
	}
	return cfg
}

// WriteDefault creates a default config file at path. An existing file is
// left untouched and reported as an error.
func WriteDefault(path string) error {
	return write(newViper(), path)
}

func write(v *viper.Viper, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := v.SafeWriteConfigAs(path); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func decode(v *viper.Viper) (Config, error) {
	var f file
	if err := v.Unmarshal(&f); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg := Config{
		WaitDuration:   time.Duration(f.Alarm.Interval) * time.Second,
		SnoozeDuration: time.Duration(f.Alarm.Snooze) * time.Second,
		ReminderText:   f.Alarm.Message,
		WavDirectory:   expandHome(f.Sounds.Path),
		APIEnabled:     f.Sounds.Freesound,
		SoundThemes:    cleanThemes(f.Sounds.Themes),
		Backend:        strings.ToLower(strings.TrimSpace(f.Sounds.Backend)),
		ClientID:       f.Freesound.ClientID,
		ClientSecret:   f.Freesound.ClientSecret,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that decode cleanly but make no sense.
func (c Config) Validate() error {
	var errs []error
	if c.WaitDuration <= 0 {
		errs = append(errs, fmt.Errorf("alarm.interval must be positive, got %v", c.WaitDuration))
	}
	if c.SnoozeDuration <= 0 {
		errs = append(errs, fmt.Errorf("alarm.snooze must be positive, got %v", c.SnoozeDuration))
	}
	if c.WavDirectory == "" {
		errs = append(errs, errors.New("sounds.path cannot be empty"))
	}
	switch c.Backend {
	case BackendSpeaker, BackendCommand:
	default:
		errs = append(errs, fmt.Errorf("sounds.backend must be %q or %q, got %q", BackendSpeaker, BackendCommand, c.Backend))
	}
	return errors.Join(errs...)
}

// cleanThemes accepts both TOML arrays and the comma separated strings
// older files (and environment variables) carry.
func cleanThemes(raw []string) []string {
	var themes []string
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			part = strings.Trim(strings.TrimSpace(part), `[]'"`)
			if part != "" {
				themes = append(themes, part)
			}
		}
	}
	return themes
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}
