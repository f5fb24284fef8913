package audio

import (
	"testing"
)

func TestIsAudioExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want bool
	}{
		{"flac", true},
		{"FLAC", true},
		{"alac", true},
		{"wav", true},
		{"ape", true},
		{"ogg", true},
		{"aac", true},
		{"mp3", true},
		{"wma", true},
		{"m4a", true},

		{"jpg", false},
		{"cue", false},
		{"log", false},
		{"nfo", false},
		{"m3u", false},
		{"flac2", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			if got := IsAudioExtension(tt.ext); got != tt.want {
				t.Errorf("IsAudioExtension(%q) = %v, want %v", tt.ext, got, tt.want)
			}
		})
	}
}

func TestClassifier_Classify(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		ext     string
		wantExt string
	}{
		{"derives lowercase extension", `user\Music\Album\01 - Track.FLAC`, "", "flac"},
		{"keeps reported extension", `user\Album\01 - Track.flac`, "mp3", "mp3"},
		{"uses last dot", `user\Album\01. Intro.live.mp3`, "", "mp3"},
		{"no dot leaves empty", `user\Album\README`, "", ""},
		{"trailing dot", `user\Album\track.`, "", ""},
	}

	c := NewClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFile(tt.path, 1)
			f.Extension = tt.ext

			c.Classify(&f)
			if f.Extension != tt.wantExt {
				t.Errorf("Classify() extension = %q, want %q", f.Extension, tt.wantExt)
			}

			once := f
			c.Classify(&f)
			if f != once {
				t.Errorf("Classify() is not idempotent: %+v != %+v", f, once)
			}
		})
	}
}

func TestClassifier_ClassifyWithoutDerivedName(t *testing.T) {
	c := NewClassifier()
	f := File{Filename: `user\Album\01 - Track.Mp3`}

	c.Classify(&f)

	if f.Extension != "mp3" {
		t.Errorf("Classify() extension = %q, want %q", f.Extension, "mp3")
	}
	if f.Name != "01 - Track.Mp3" {
		t.Errorf("Classify() name = %q, want %q", f.Name, "01 - Track.Mp3")
	}
}

func TestClassifier_FilterAudio(t *testing.T) {
	files := []File{
		NewFile(`u\Album\01.flac`, 10),
		NewFile(`u\Album\cover.jpg`, 2),
		NewFile(`u\Album\02.flac`, 11),
		NewFile(`u\Album\album.cue`, 1),
		NewFile(`u\Album\03.m4a`, 12),
	}

	got := NewClassifier().FilterAudio(files)

	want := []string{"01.flac", "02.flac", "03.m4a"}
	if len(got) != len(want) {
		t.Fatalf("FilterAudio() returned %d files, want %d", len(got), len(want))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Errorf("FilterAudio()[%d] = %q, want %q", i, got[i].Name, name)
		}
		if !IsAudioExtension(got[i].Extension) {
			t.Errorf("FilterAudio()[%d] extension %q is not audio", i, got[i].Extension)
		}
	}
}

func TestClassifier_FilterAudioEmpty(t *testing.T) {
	files := []File{
		NewFile(`u\Album\cover.jpg`, 2),
		NewFile(`u\Album\info.nfo`, 1),
	}

	if got := NewClassifier().FilterAudio(files); len(got) != 0 {
		t.Errorf("FilterAudio() = %v, want empty", got)
	}
	if got := NewClassifier().FilterAudio(nil); len(got) != 0 {
		t.Errorf("FilterAudio(nil) = %v, want empty", got)
	}
}
