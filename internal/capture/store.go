// Package capture owns the per-session capture files that tmux pipes game
// console output into.
package capture

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/NotCreative21/taurus/internal/logging"
	"github.com/NotCreative21/taurus/internal/tmux"
)

// RotationThreshold is the line count past which a stream is recreated.
const RotationThreshold = 2000

var log = logging.L("capture")

// ErrNoStream is returned by Open when the session has no capture file yet.
var ErrNoStream = errors.New("capture stream does not exist")

// Store maps session names to capture files and keeps tmux piping into them.
type Store struct {
	mux tmux.Multiplexer

	mu    sync.RWMutex
	paths map[string]string
}

func NewStore(mux tmux.Multiplexer) *Store {
	return &Store{
		mux:   mux,
		paths: make(map[string]string),
	}
}

// PathFor returns the capture file path convention: {dir}/{session}-{suffix}.
func PathFor(dir, session, suffix string) string {
	return filepath.Join(dir, session+"-"+suffix)
}

// Register associates a session with its capture file path.
func (s *Store) Register(session, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths[session] = path
}

// Path returns the capture file for session, or "" if it is not registered.
func (s *Store) Path(session string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paths[session]
}

// Ensure creates the capture file if it is missing, or deletes and recreates
// it when reset is true, then points the session's pane output at it. With
// reset false and an existing file, only the pipe is re-established.
func (s *Store) Ensure(session string, reset bool) error {
	path := s.Path(session)
	if path == "" {
		return fmt.Errorf("ensure %s: session not registered", session)
	}

	if reset {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove capture %s: %w", path, err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("create capture %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("create capture %s: %w", path, err)
	}

	if err := s.mux.PipeTo(session, path); err != nil {
		log.Error("capture redirect failed", logging.KeySession, session, "path", path, logging.KeyError, err)
		return fmt.Errorf("redirect %s output: %w", session, err)
	}
	log.Debug("capture stream ready", logging.KeySession, session, "path", path, "reset", reset)
	return nil
}

// Rotate recreates the session's capture file. The caller owns resetting
// any cursor into the old file.
func (s *Store) Rotate(session string) error {
	return s.Ensure(session, true)
}

// Open returns a reader over the session's capture file. A missing file or
// unregistered session yields ErrNoStream.
func (s *Store) Open(session string) (io.ReadCloser, error) {
	path := s.Path(session)
	if path == "" {
		return nil, ErrNoStream
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoStream
		}
		return nil, err
	}
	return f, nil
}

// LineCount returns the number of complete lines in the session's capture
// file. Absent streams count as empty.
func (s *Store) LineCount(session string) int {
	r, err := s.Open(session)
	if err != nil {
		return 0
	}
	defer r.Close()

	n, err := countLines(r)
	if err != nil {
		log.Warn("count lines failed", logging.KeySession, session, logging.KeyError, err)
	}
	return n
}

func countLines(r io.Reader) (int, error) {
	buf := make([]byte, 32*1024)
	count := 0
	for {
		n, err := r.Read(buf)
		count += bytes.Count(buf[:n], []byte{'\n'})
		if err == io.EOF {
			return count, nil
		}
		if err != nil {
			return count, err
		}
	}
}
