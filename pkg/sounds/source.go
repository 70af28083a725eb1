// Package sounds finds a sound to play, locally or on freesound.org, and
// plays any number of sounds at once.
package sounds

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/codeGROOVE-dev/move-alarm/pkg/config"
	"github.com/codeGROOVE-dev/move-alarm/pkg/freesound"
)

// Extension is the only file type picked from a sound directory.
const Extension = ".wav"

// TokenSource supplies the bearer token for remote calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Remote searches for and downloads sounds. *freesound.Client satisfies it.
type Remote interface {
	Search(ctx context.Context, token string, themes []string) ([]freesound.SoundResult, error)
	Download(ctx context.Context, token, url, dest string) error
}

// PickLocalFile returns a uniformly random *.wav regular file from dir.
func PickLocalFile(dir string) (string, error) {
	return pickLocalFile(dir, rand.IntN)
}

func pickLocalFile(dir string, intN func(int) int) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("%w: sound directory %s: %w", ErrNotFound, dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), Extension) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		// Stat follows symlinks, so a link to a regular file counts.
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, path)
	}

	if len(files) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoCandidate, dir)
	}
	return files[intN(len(files))], nil
}

// Source resolves the sound to play for a configuration snapshot.
type Source struct {
	tokens TokenSource
	remote Remote
	out    io.Writer
	intN   func(int) int
	cfg    config.Config
}

// NewSource returns a Source. tokens and remote may be nil when the
// configuration does not enable the remote API. Notices for the user are
// written to out, which must be safe for concurrent use when Resolve runs
// in the background.
func NewSource(cfg config.Config, tokens TokenSource, remote Remote, out io.Writer) *Source {
	if out == nil {
		out = io.Discard
	}
	return &Source{cfg: cfg, tokens: tokens, remote: remote, out: out, intN: rand.IntN}
}

func (s *Source) token(ctx context.Context) (string, error) {
	if s.tokens == nil {
		return "", ErrAuth
	}
	tok, err := s.tokens.Token(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if tok == "" {
		return "", ErrAuth
	}
	return tok, nil
}

// SearchRemote returns a random sound matching any of themes, or nil if the
// search matched nothing. A non-success status comes back as
// *freesound.ConnectionError.
func (s *Source) SearchRemote(ctx context.Context, themes []string) (*freesound.SoundResult, error) {
	tok, err := s.token(ctx)
	if err != nil {
		return nil, err
	}
	if s.remote == nil {
		return nil, errors.New("no remote sound service configured")
	}

	results, err := s.remote.Search(ctx, tok, themes)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	r := results[s.intN(len(results))]
	return &r, nil
}

// DownloadRemote fetches url into dest and returns dest. Transport errors
// from the download are returned unchanged.
func (s *Source) DownloadRemote(ctx context.Context, url, dest string) (string, error) {
	tok, err := s.token(ctx)
	if err != nil {
		return "", err
	}
	if s.remote == nil {
		return "", errors.New("no remote sound service configured")
	}

	if err := s.remote.Download(ctx, tok, url, dest); err != nil {
		return "", err
	}
	if _, err := os.Stat(dest); err != nil {
		return "", fmt.Errorf("%w: downloaded file %s: %w", ErrNotFound, dest, err)
	}
	return dest, nil
}

// Resolve returns the path of the sound to play next.
func (s *Source) Resolve(ctx context.Context) (string, error) {
	if !s.cfg.APIEnabled {
		return pickLocalFile(s.cfg.WavDirectory, s.intN)
	}

	result, err := s.SearchRemote(ctx, s.cfg.SoundThemes)
	if err != nil {
		return "", err
	}
	if result == nil {
		fmt.Fprintf(s.out, "No sounds found for themes: %s. Using a local file instead.\n", strings.Join(s.cfg.SoundThemes, ", "))
		slog.Info("[SOUND] Remote search empty, falling back to local file", "themes", s.cfg.SoundThemes)
		return pickLocalFile(s.cfg.WavDirectory, s.intN)
	}

	dest := filepath.Join(s.cfg.WavDirectory, downloadName(result))
	slog.Debug("[SOUND] Downloading remote sound", "id", result.ID, "name", result.Name, "dest", dest)
	return s.DownloadRemote(ctx, result.Download, dest)
}

// downloadName keeps only the base of the result name so a hostile name
// can't escape the sound directory.
func downloadName(r *freesound.SoundResult) string {
	name := filepath.Base(filepath.Clean("/" + strings.ReplaceAll(r.Name, `\`, "/")))
	if name == "/" || name == "." || name == "" {
		name = fmt.Sprintf("freesound-%d", r.ID)
	}
	if !strings.HasSuffix(strings.ToLower(name), Extension) {
		name += Extension
	}
	return name
}
