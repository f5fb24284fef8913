package health

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// probeFolder checks that path is a directory slskd could write into by
// creating and removing a scratch file.
func probeFolder(path string) error {
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("folder does not exist: %s", path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("permission denied: %s", path)
	case err != nil:
		return fmt.Errorf("cannot access folder: %w", err)
	case !info.IsDir():
		return fmt.Errorf("not a directory: %s", path)
	}

	f, err := os.CreateTemp(path, ".slskbridge-probe-*")
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return fmt.Errorf("folder is read-only: %s", path)
		}
		return fmt.Errorf("cannot write to folder: %w", err)
	}
	name := f.Name()
	_, werr := f.WriteString("probe")
	cerr := f.Close()
	rerr := os.Remove(name)
	if err := errors.Join(werr, cerr); err != nil {
		return fmt.Errorf("cannot write to folder: %w", err)
	}
	if rerr != nil {
		return fmt.Errorf("cannot remove probe file: %w", rerr)
	}
	return nil
}
