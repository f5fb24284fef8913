//go:build !windows

package health

import "golang.org/x/sys/unix"

func diskUsage(path string) (free, total int64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, err
	}
	bsize := uint64(st.Bsize) //nolint:gosec,unconvert // width differs per OS
	return int64(st.Bavail * bsize), int64(st.Blocks * bsize), nil //nolint:gosec // fits in int64
}
