package dts

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
)

// fileStore archives entries as an append-only JSONL file: one
// serialized entry per line, exactly as produced. The line number is
// the sequence number, so the file doubles as a verifiable export —
// feeding its lines to VerifyChain in order is the offline
// verification path.
type fileStore struct {
	dir     string
	file    *os.File
	mu      sync.RWMutex
	lastSeq uint64
}

const entriesFileName = "entries.jsonl"

// OpenFileStore creates or opens a file-based archive in the given
// directory and recovers the last sequence number by scanning it.
func OpenFileStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create directory: %w", err)
	}
	path := filepath.Join(dir, entriesFileName)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return nil, fmt.Errorf("open entries file: %w", err)
	}

	st := &fileStore{dir: dir, file: f}
	n, err := st.countLines()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("recover archive state: %w", err)
	}
	st.lastSeq = n
	return st, nil
}

// Append writes one entry line. Entries must arrive contiguously; the
// line is flushed to disk before Append returns.
func (s *fileStore) Append(seq uint64, entry string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastSeq != seq-1 {
		return fmt.Errorf("%w: have %d, got %d", ErrNonContiguous, s.lastSeq, seq)
	}

	if err := syscall.Flock(int(s.file.Fd()), syscall.LOCK_EX); err != nil {
		return fmt.Errorf("lock entries file: %w", err)
	}
	defer func() { _ = syscall.Flock(int(s.file.Fd()), syscall.LOCK_UN) }()

	if _, err := s.file.WriteString(entry + "\n"); err != nil {
		return fmt.Errorf("write entry: %w", err)
	}
	// Entries must survive crashes.
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync entries file: %w", err)
	}

	s.lastSeq = seq
	return nil
}

// Iter streams entries with Seq >= startSeq from a fresh read handle so
// it can run concurrently with appends.
func (s *fileStore) Iter(startSeq uint64) (<-chan StoredEntry, func() error, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, err := os.Open(filepath.Join(s.dir, entriesFileName))
	if err != nil {
		return nil, nil, fmt.Errorf("open entries file for reading: %w", err)
	}

	out := make(chan StoredEntry, 64)
	done := make(chan struct{})

	go func() {
		defer close(out)
		defer f.Close()

		scanner := bufio.NewScanner(f)
		scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
		var seq uint64
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			seq++
			if seq < startSeq {
				continue
			}
			select {
			case out <- StoredEntry{Seq: seq, Entry: line}:
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cleanup := func() error {
		once.Do(func() { close(done) })
		return nil
	}
	return out, cleanup, nil
}

// Count returns the number of archived entries.
func (s *fileStore) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeq, nil
}

// Close closes the append handle.
func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

func (s *fileStore) countLines() (uint64, error) {
	f, err := os.Open(filepath.Join(s.dir, entriesFileName))
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	var n uint64
	for scanner.Scan() {
		if scanner.Text() != "" {
			n++
		}
	}
	return n, scanner.Err()
}
