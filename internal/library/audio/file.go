// Package audio classifies remote Soulseek files and derives release titles from them.
package audio

import "strings"

// PathSeparator is the separator slskd uses in remote file paths.
const PathSeparator = `\`

// File is a single file as reported by slskd, either in a search response
// or inside a transfer directory listing.
type File struct {
	Filename          string `json:"filename"`
	Extension         string `json:"extension"`
	Size              int64  `json:"size"`
	BitDepth          *int   `json:"bitDepth,omitempty"`
	SampleRate        *int   `json:"sampleRate,omitempty"`
	BitRate           *int   `json:"bitRate,omitempty"`
	IsVariableBitRate *bool  `json:"isVariableBitRate,omitempty"`

	// Derived from Filename by SetPath.
	Name               string `json:"-"`
	FirstParentFolder  string `json:"-"`
	SecondParentFolder string `json:"-"`
	ParentPath         string `json:"-"`
}

// NewFile returns a File for the given remote path with its segments derived.
func NewFile(path string, size int64) File {
	f := File{Size: size}
	f.SetPath(path)
	return f
}

// SetPath assigns Filename and recomputes every path-derived field.
func (f *File) SetPath(path string) {
	f.Filename = path
	f.Name, f.FirstParentFolder, f.SecondParentFolder, f.ParentPath = SplitPath(path)
}

// NameWithoutExtension returns the file name with its final extension removed.
func (f *File) NameWithoutExtension() string {
	if i := strings.LastIndex(f.Name, "."); i > 0 {
		return f.Name[:i]
	}
	return f.Name
}

// SplitPath breaks a backslash-delimited remote path into the file name, the
// immediate parent folder, the last two parent folders joined by a backslash,
// and the full parent path.
func SplitPath(path string) (name, firstParent, secondParent, parentPath string) {
	parts := strings.Split(path, PathSeparator)
	n := len(parts)
	name = parts[n-1]
	if n < 2 {
		return name, "", "", ""
	}

	dirs := parts[:n-1]
	firstParent = dirs[len(dirs)-1]
	if len(dirs) >= 2 {
		secondParent = strings.Join(dirs[len(dirs)-2:], PathSeparator)
	} else {
		secondParent = firstParent
	}
	parentPath = strings.Join(dirs, PathSeparator)
	return name, firstParent, secondParent, parentPath
}
