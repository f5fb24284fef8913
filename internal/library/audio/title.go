package audio

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// genericFolders are share-level folder names that say nothing about the release.
var genericFolders = map[string]bool{
	"music":           true,
	"mp3":             true,
	"flac":            true,
	"downloads":       true,
	"download":        true,
	"complete":        true,
	"completed":       true,
	"incoming":        true,
	"shared":          true,
	"share":           true,
	"shares":          true,
	"soulseek":        true,
	"slsk":            true,
	"slskd":           true,
	"deezer":          true,
	"beets":           true,
	"torrents":        true,
	"torrent":         true,
	"albums":          true,
	"album":           true,
	"media":           true,
	"audio":           true,
	"library":         true,
	"users":           true,
	"user":            true,
	"home":            true,
	"data":            true,
	"music library":   true,
	"my music":        true,
	"new music":       true,
	"lossless":        true,
	"lossy":           true,
	"public":          true,
	"private":         true,
	"upload":          true,
	"uploads":         true,
	"files":           true,
	"various":         true,
	"various artists": true,
	"soundtracks":     true,
	"ost":             true,
}

var ignoredFolderPrefixes = []string{"@@", "_", "smb-share:"}

// BuildTitle derives a display title such as "Artist Album FLAC 24bit 96.0kHz CBR"
// from a group of audio files sharing one directory. It returns "" for no files.
func BuildTitle(files []File) string {
	if len(files) == 0 {
		return ""
	}

	parts := []string{
		folderLabel(&files[0]),
		codec(files),
		bitRate(files),
		sampleDescriptor(files),
		rateMode(files),
	}

	nonEmpty := parts[:0]
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.TrimSpace(strings.Join(nonEmpty, " "))
}

func codec(files []File) string {
	ext := strings.ToLower(files[0].Extension)
	for i := range files[1:] {
		if strings.ToLower(files[i+1].Extension) != ext {
			return ""
		}
	}
	return strings.ToUpper(ext)
}

func bitRate(files []File) string {
	first := files[0].BitRate
	if first == nil {
		return ""
	}
	for i := range files {
		if files[i].BitRate == nil || *files[i].BitRate != *first {
			return ""
		}
	}
	return fmt.Sprintf("%dkbps", *first)
}

func sampleDescriptor(files []File) string {
	for i := range files {
		if files[i].SampleRate == nil || files[i].BitDepth == nil {
			return ""
		}
	}
	return fmt.Sprintf("%dbit %.1fkHz", *files[0].BitDepth, float64(*files[0].SampleRate)/1000)
}

func rateMode(files []File) string {
	allVBR, allCBR := true, true
	for i := range files {
		v := files[i].IsVariableBitRate
		if v == nil {
			return ""
		}
		if *v {
			allCBR = false
		} else {
			allVBR = false
		}
	}

	switch {
	case allVBR:
		return "VBR"
	case allCBR:
		return "CBR"
	default:
		return ""
	}
}

func folderLabel(f *File) string {
	parent := f.ParentPath
	if parent == "" && f.Name == "" {
		_, _, _, parent = SplitPath(f.Filename)
	}

	var kept []string
	for _, seg := range strings.Split(parent, PathSeparator) {
		if !isIgnoredFolder(seg) {
			kept = append(kept, seg)
		}
	}

	switch len(kept) {
	case 0:
		name := f.Name
		if name == "" {
			name, _, _, _ = SplitPath(f.Filename)
		}
		return (&File{Name: name}).NameWithoutExtension()
	case 1:
		return kept[0]
	default:
		last, prev := kept[len(kept)-1], kept[len(kept)-2]
		if strings.Contains(last, prev) {
			return last
		}
		return prev + " " + last
	}
}

func isIgnoredFolder(seg string) bool {
	seg = strings.TrimSpace(seg)
	if utf8.RuneCountInString(seg) <= 1 {
		return true
	}

	lower := strings.ToLower(seg)
	if genericFolders[lower] {
		return true
	}
	for ext := range Extensions {
		if strings.HasPrefix(lower, ext) {
			return true
		}
	}
	for _, prefix := range ignoredFolderPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
