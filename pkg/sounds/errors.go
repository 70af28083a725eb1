package sounds

import "errors"

var (
	// ErrNotFound means a directory or file that should exist does not.
	ErrNotFound = errors.New("not found")
	// ErrNoCandidate means a sound directory holds no playable files.
	ErrNoCandidate = errors.New("no sound files")
	// ErrAuth means no access token could be obtained for the remote API.
	ErrAuth = errors.New("unable to get an access token")
	// ErrPlayback means the audio device or the file could not be played.
	ErrPlayback = errors.New("playback failed")
)
