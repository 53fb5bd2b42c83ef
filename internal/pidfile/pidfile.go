// Package pidfile implements the daemon's single-instance guard: an
// O_CREAT|O_EXCL pidfile, the same "create exclusively or fail" pattern
// the teacher uses for exclusive device acquisition in internal/ublk's
// control-path opens, applied here to a regular file via
// golang.org/x/sys/unix rather than a device ioctl.
package pidfile

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/ticos-device/ticosd/internal/daemonerr"
)

// PidFile holds an acquired, exclusively-created pidfile for the life of
// the process. Release removes it.
type PidFile struct {
	path string
}

// Acquire creates path exclusively and writes the current PID into it.
// If the file already exists, its contents are read back and returned in
// the error so the caller can report which PID is holding it.
func Acquire(path string) (*PidFile, error) {
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_WRONLY|unix.O_CLOEXEC, 0o644)
	if err != nil {
		if err == unix.EEXIST {
			holder, readErr := os.ReadFile(path)
			if readErr == nil {
				return nil, daemonerr.New("pidfile.acquire", daemonerr.CodeFilesystem,
					fmt.Sprintf("%s already held by pid %s", path, strings.TrimSpace(string(holder))))
			}
		}
		return nil, daemonerr.Wrap("pidfile.acquire", daemonerr.CodeFilesystem, err)
	}
	f := os.NewFile(uintptr(fd), path)
	defer f.Close()

	if _, err := f.WriteString(strconv.Itoa(os.Getpid())); err != nil {
		os.Remove(path)
		return nil, daemonerr.Wrap("pidfile.acquire", daemonerr.CodeFilesystem, err)
	}
	return &PidFile{path: path}, nil
}

// Release removes the pidfile. Safe to call on a process's own clean
// shutdown path only; it does not verify the current holder still
// matches, matching the original's unconditional unlink-on-exit.
func (p *PidFile) Release() error {
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return daemonerr.Wrap("pidfile.release", daemonerr.CodeFilesystem, err)
	}
	return nil
}
