// Package procmem reads a process's virtual memory through
// /proc/<pid>/mem (spec §4.5, §9 design note: "model as a capability
// trait ProcMem::read(vaddr, len, buf) -> ssize, with a test fake").
package procmem

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ProcMem reads a process's memory at an absolute virtual address. It
// mirrors the interfaces.ProcMem capability so the coredump transformer
// does not need to import this package directly.
type ProcMem interface {
	ReadAt(p []byte, off int64) (n int, err error)
	Close() error
}

// file is the production ProcMem backed by the real /proc/<pid>/mem file.
type file struct {
	f   *os.File
	pid int
}

// Open opens /proc/<pid>/mem for reading. The file is opened O_CLOEXEC
// per spec §5's resource-acquisition rule.
func Open(pid int) (ProcMem, error) {
	f, err := os.OpenFile(fmt.Sprintf("/proc/%d/mem", pid), os.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, err
	}
	return &file{f: f, pid: pid}, nil
}

// ReadAt performs a pread(2) at the given virtual address. Short reads
// and errors are surfaced to the caller, which (per spec §4.5) is
// responsible for filling any unread remainder with the placeholder byte.
func (m *file) ReadAt(p []byte, off int64) (int, error) {
	n, err := unix.Pread(int(m.f.Fd()), p, off)
	if err != nil {
		return n, err
	}
	return n, nil
}

func (m *file) Close() error {
	return m.f.Close()
}
