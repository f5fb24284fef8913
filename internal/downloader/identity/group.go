package identity

import (
	"github.com/slipstream/slskbridge/internal/library/audio"
)

// KeyFor returns the key for a user's directory given its audio files. A
// directory whose audio collapses to one file is keyed by that file's path.
func KeyFor(username, directory string, audioFiles []audio.File) Key {
	if len(audioFiles) == 1 {
		return Key{Username: username, Path: audioFiles[0].Filename}
	}
	return Key{Username: username, Path: directory}
}

// Matches reports whether a remote directory listing belongs to the key,
// either as the directory itself or as the single file it was collapsed to.
func (k Key) Matches(directory string, filenames []string) bool {
	if directory == k.Path {
		return true
	}
	for _, name := range filenames {
		if name == k.Path {
			return true
		}
	}
	return false
}
