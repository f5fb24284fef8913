package audio

import (
	"strings"
	"sync"
)

// Extensions contains the audio file extensions treated as release content.
var Extensions = map[string]bool{
	"flac": true,
	"alac": true,
	"wav":  true,
	"ape":  true,
	"ogg":  true,
	"aac":  true,
	"mp3":  true,
	"wma":  true,
	"m4a":  true,
}

// IsAudioExtension reports whether ext (without a leading dot) is an audio extension.
func IsAudioExtension(ext string) bool {
	return Extensions[strings.ToLower(ext)]
}

// Classifier derives missing extensions and decides which files are audio.
// It memoizes extension lookups per instance and is safe for concurrent use.
type Classifier struct {
	mu   sync.RWMutex
	memo map[string]bool
}

// NewClassifier creates a new classifier.
func NewClassifier() *Classifier {
	return &Classifier{memo: make(map[string]bool)}
}

// Classify fills in the extension from the file name when slskd left it empty.
// Calling it more than once has no further effect.
func (c *Classifier) Classify(f *File) {
	if f.Extension != "" {
		return
	}
	if f.Name == "" && f.Filename != "" {
		f.SetPath(f.Filename)
	}
	if i := strings.LastIndex(f.Name, "."); i >= 0 {
		f.Extension = strings.ToLower(f.Name[i+1:])
	}
}

// IsAudio reports whether the file has an allow-listed audio extension.
func (c *Classifier) IsAudio(f *File) bool {
	if f.Extension == "" {
		return false
	}
	ext := strings.ToLower(f.Extension)

	c.mu.RLock()
	ok, found := c.memo[ext]
	c.mu.RUnlock()
	if found {
		return ok
	}

	ok = Extensions[ext]
	c.mu.Lock()
	c.memo[ext] = ok
	c.mu.Unlock()
	return ok
}

// FilterAudio classifies files in place and returns the audio ones in their
// original order. An empty result means the group has nothing to track.
func (c *Classifier) FilterAudio(files []File) []File {
	out := make([]File, 0, len(files))
	for i := range files {
		c.Classify(&files[i])
		if c.IsAudio(&files[i]) {
			out = append(out, files[i])
		}
	}
	return out
}
