// Package storage: FileLock serializes writers to the same key path
// across goroutines (via an in-process mutex) and across processes (via
// flock on a sidecar ".lock" file), so two myclaw processes pointed at
// the same state directory don't tear each other's writes.
package storage

import (
	"os"
	"sync"
	"syscall"
)

// FileLock guards exclusive access to the file at path. The zero value
// is not ready for use; construct one with NewFileLock.
type FileLock struct {
	path string
	file *os.File
	mu   sync.Mutex
}

// NewFileLock returns a lock for path. No lock file is created until
// Lock or TryLock is called.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// Lock blocks until it holds the in-process mutex and an exclusive
// flock on path+".lock".
func (l *FileLock) Lock() error {
	l.mu.Lock()
	if err := l.acquireFlock(syscall.LOCK_EX); err != nil {
		l.mu.Unlock()
		return err
	}
	return nil
}

// TryLock attempts to acquire the lock without blocking, returning
// false immediately if another goroutine or process already holds it.
func (l *FileLock) TryLock() bool {
	if !l.mu.TryLock() {
		return false
	}
	if err := l.acquireFlock(syscall.LOCK_EX | syscall.LOCK_NB); err != nil {
		l.mu.Unlock()
		return false
	}
	return true
}

// acquireFlock opens the sidecar lock file and applies flock with the
// given mode. The caller must already hold l.mu.
func (l *FileLock) acquireFlock(mode int) error {
	f, err := os.OpenFile(l.path+".lock", os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return err
	}
	if err := syscall.Flock(int(f.Fd()), mode); err != nil {
		f.Close()
		return err
	}
	l.file = f
	return nil
}

// Unlock releases the flock, closes the sidecar lock file, and releases
// the in-process mutex. The sidecar stays on disk so every locker flocks
// the same file. Safe to call on a lock that was never successfully
// acquired.
func (l *FileLock) Unlock() error {
	if l.file == nil {
		return nil
	}

	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	l.file = nil
	l.mu.Unlock()

	return nil
}
