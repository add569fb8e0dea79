//go:build unix || linux || darwin

package ipc

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"syscall"
)

// listenSecure listens with a 0077 umask so only the owner can connect.
func listenSecure(network, address string) (net.Listener, error) {
	oldMask := syscall.Umask(0077)
	defer syscall.Umask(oldMask)

	return net.Listen(network, address)
}

// EnsureSecureDirectory creates path if needed and checks that it is a real
// directory, mode 0700, owned by the current user. A wrong mode is fixed;
// a symlink or foreign owner is an error.
func EnsureSecureDirectory(path string) error {
	info, err := os.Lstat(path)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(path, 0700); err != nil {
			return err
		}
		if info, err = os.Lstat(path); err != nil {
			return err
		}
	case err != nil:
		return err
	}

	if info.Mode()&os.ModeSymlink != 0 {
		return fmt.Errorf("%s is a symlink", path)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}

	if mode := info.Mode().Perm(); mode != 0700 {
		if err := os.Chmod(path, 0700); err != nil {
			return fmt.Errorf("insecure permissions on %s (%o) and failed to fix: %v", path, mode, err)
		}
	}

	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		if uid := uint32(os.Getuid()); stat.Uid != uid {
			return fmt.Errorf("insecure ownership on %s: owned by uid %d, expected %d", path, stat.Uid, uid)
		}
	}
	return nil
}

// GetSocketDir returns the per-user directory watchers put their sockets in.
func GetSocketDir() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("vastlogmon-%d", os.Getuid()))
}
