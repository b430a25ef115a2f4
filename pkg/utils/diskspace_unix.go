//go:build !windows

package utils

import "golang.org/x/sys/unix"

// FreeDiskSpace returns the bytes available to unprivileged users on the
// filesystem holding path
func FreeDiskSpace(path string) (uint64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, err
	}
	return uint64(st.Bavail) * uint64(st.Bsize), nil
}
