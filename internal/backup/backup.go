// Package backup snapshots game data directories into tar.gz archives and
// hands them to a storage provider, pruning old archives per session.
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/NotCreative21/taurus/internal/backup/providers"
	"github.com/NotCreative21/taurus/internal/logging"
)

var log = logging.L("backup")

// ErrBackupRunning is returned when a session already has a backup in flight.
var ErrBackupRunning = errors.New("backup already running")

const timestampLayout = "20060102-150405"

// Result describes one finished backup run.
type Result struct {
	Session    string
	RemotePath string
	Files      int
	Bytes      int64
	Pruned     int
	StartedAt  time.Time
	Duration   time.Duration
}

// Manager runs backups. Runs for different sessions may overlap; runs for
// the same session may not.
type Manager struct {
	provider providers.Provider
	tempDir  string
	now      func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

func NewManager(provider providers.Provider) *Manager {
	return &Manager{
		provider: provider,
		tempDir:  os.TempDir(),
		now:      time.Now,
		running:  make(map[string]bool),
	}
}

// RemotePath returns the archive name for a session at t.
func RemotePath(session string, t time.Time) string {
	return path.Join(session, session+"-"+t.UTC().Format(timestampLayout)+".tar.gz")
}

// Run archives dataDir, uploads it and keeps at most keep archives for the
// session (keep <= 0 keeps everything). Unreadable files inside dataDir do
// not fail the run: the error is returned together with a non-nil Result.
func (m *Manager) Run(ctx context.Context, session, dataDir string, keep int) (*Result, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("backup %s: no data directory configured", session)
	}
	if !m.begin(session) {
		return nil, fmt.Errorf("%w: %s", ErrBackupRunning, session)
	}
	defer m.end(session)

	res := &Result{Session: session, StartedAt: m.now()}
	res.RemotePath = RemotePath(session, res.StartedAt)
	log.Info("backup started", logging.KeySession, session, "source", dataDir)

	tmp, err := os.CreateTemp(m.tempDir, "taurus-"+session+"-*.tar.gz")
	if err != nil {
		return nil, fmt.Errorf("create temp archive: %w", err)
	}
	defer os.Remove(tmp.Name())

	stats, archiveErr := writeArchive(tmp, dataDir)
	if closeErr := tmp.Close(); closeErr != nil && archiveErr == nil {
		archiveErr = closeErr
	}
	res.Files, res.Bytes = stats.Files, stats.Bytes
	if archiveErr != nil && stats.Files == 0 {
		return nil, fmt.Errorf("backup %s: %w", session, archiveErr)
	}
	if archiveErr != nil {
		log.Warn("backup skipped files", logging.KeySession, session, logging.KeyError, archiveErr)
	}

	if err := m.provider.Upload(ctx, tmp.Name(), res.RemotePath); err != nil {
		return nil, fmt.Errorf("backup %s: %w", session, err)
	}

	pruned, pruneErr := m.prune(ctx, session, keep)
	res.Pruned = pruned
	if pruneErr != nil {
		log.Warn("backup retention failed", logging.KeySession, session, logging.KeyError, pruneErr)
	}

	res.Duration = m.now().Sub(res.StartedAt)
	log.Info("backup finished",
		logging.KeySession, session,
		"path", res.RemotePath,
		"files", res.Files,
		"bytes", res.Bytes,
		"pruned", res.Pruned,
		"duration", res.Duration)
	return res, errors.Join(archiveErr, pruneErr)
}

func (m *Manager) begin(session string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running[session] {
		return false
	}
	m.running[session] = true
	return true
}

func (m *Manager) end(session string) {
	m.mu.Lock()
	delete(m.running, session)
	m.mu.Unlock()
}

// prune deletes the oldest archives of session beyond keep. Archive names
// sort chronologically.
func (m *Manager) prune(ctx context.Context, session string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	all, err := m.provider.List(ctx, session+"/")
	if err != nil {
		return 0, err
	}

	var archives []string
	for _, p := range all {
		base := path.Base(p)
		if strings.HasPrefix(base, session+"-") && strings.HasSuffix(base, ".tar.gz") {
			archives = append(archives, p)
		}
	}
	if len(archives) <= keep {
		return 0, nil
	}
	sort.Strings(archives)

	var errs []error
	pruned := 0
	for _, p := range archives[:len(archives)-keep] {
		if err := m.provider.Delete(ctx, p); err != nil {
			errs = append(errs, err)
			continue
		}
		pruned++
	}
	return pruned, errors.Join(errs...)
}
