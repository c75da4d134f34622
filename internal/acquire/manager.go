// Package acquire downloads large model artifacts over HTTP with resumable,
// pause-safe transfers. Transfer cursors are persisted to SQLite so an
// interrupted process can continue where it left off instead of
// re-downloading completed bytes.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/triage-edge-server/internal/domain"
)

// ErrTransferPaused is returned by Acquire when the transfer was suspended
// via Pause. The cursor has been persisted; a later Acquire resumes it.
var ErrTransferPaused = errors.New("transfer paused")

// ProgressFunc reports transfer progress. It is throttled by the manager and
// must not block; invocations are serialized per transfer.
type ProgressFunc func(bytesReceived, bytesExpected int64, percent float64)

const chunkSize = 64 * 1024

// Manager coordinates artifact acquisition. At most one transfer per
// artifact is in flight at a time; a second concurrent Acquire for the same
// artifact fails with domain.ErrTransferActive.
type Manager struct {
	logger       *logrus.Logger
	store        *StateStore
	client       *http.Client
	progressRate rate.Limit

	mu     sync.Mutex
	active map[string]*transfer
}

// transfer tracks one in-flight acquisition.
type transfer struct {
	artifact domain.ModelArtifact
	pauseCh  chan struct{} // closed to request suspension
	doneCh   chan struct{} // closed once the loop has exited and state is durable
	cursor   *domain.TransferState
}

// NewManager creates an acquisition manager backed by the given state store.
// progressPerSec bounds how often progress callbacks fire per transfer.
func NewManager(logger *logrus.Logger, store *StateStore, progressPerSec float64) *Manager {
	if progressPerSec <= 0 {
		progressPerSec = 4
	}
	return &Manager{
		logger:       logger,
		store:        store,
		client:       &http.Client{Timeout: 0}, // large transfers, no overall deadline
		progressRate: rate.Limit(progressPerSec),
		active:       make(map[string]*transfer),
	}
}

// Status checks local storage for an artifact. Nothing is cached: every call
// stats the file.
func (m *Manager) Status(artifact domain.ModelArtifact) domain.ArtifactStatus {
	info, err := os.Stat(artifact.LocalPath)
	if err != nil {
		return domain.ArtifactStatus{}
	}
	return domain.ArtifactStatus{
		Exists:      artifact.IsComplete(info.Size()),
		BytesOnDisk: info.Size(),
	}
}

// HasResumable reports whether a persisted cursor and matching partial file
// exist for the artifact.
func (m *Manager) HasResumable(ctx context.Context, artifact domain.ModelArtifact) bool {
	state, err := m.store.Get(ctx, artifact.ID)
	if err != nil || state == nil {
		return false
	}
	info, err := os.Stat(partPath(artifact))
	return err == nil && info.Size() > 0
}

// Acquire downloads the artifact, resuming from a persisted cursor when one
// exists. Returns nil on completion, ErrTransferPaused if suspended via
// Pause, domain.ErrTransferActive if another transfer for the same artifact
// is in flight, and a transient I/O error otherwise.
func (m *Manager) Acquire(ctx context.Context, artifact domain.ModelArtifact, onProgress ProgressFunc) error {
	if status := m.Status(artifact); status.Exists {
		// Already materialized; clear any stale cursor.
		_ = m.store.Delete(ctx, artifact.ID)
		return nil
	}

	t := &transfer{
		artifact: artifact,
		pauseCh:  make(chan struct{}),
		doneCh:   make(chan struct{}),
	}

	m.mu.Lock()
	if _, exists := m.active[artifact.ID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", domain.ErrTransferActive, artifact.ID)
	}
	m.active[artifact.ID] = t
	m.mu.Unlock()

	defer func() {
		close(t.doneCh)
		m.mu.Lock()
		delete(m.active, artifact.ID)
		m.mu.Unlock()
	}()

	return m.run(ctx, t, onProgress)
}

// Pause suspends all in-flight transfers, synchronously persisting a
// resumable cursor for each before returning. Once Pause returns the caller
// may safely terminate the process.
func (m *Manager) Pause() []domain.TransferState {
	m.mu.Lock()
	transfers := make([]*transfer, 0, len(m.active))
	for _, t := range m.active {
		transfers = append(transfers, t)
	}
	m.mu.Unlock()

	cursors := make([]domain.TransferState, 0, len(transfers))
	for _, t := range transfers {
		select {
		case <-t.pauseCh:
			// already pausing
		default:
			close(t.pauseCh)
		}
		<-t.doneCh
		if t.cursor != nil {
			cursors = append(cursors, *t.cursor)
		}
	}

	m.logger.WithField("paused_transfers", len(cursors)).Info("Acquisition paused")
	return cursors
}

// run performs the transfer loop for one artifact.
func (m *Manager) run(ctx context.Context, t *transfer, onProgress ProgressFunc) error {
	artifact := t.artifact
	part := partPath(artifact)

	offset := m.resumeOffset(ctx, artifact, part)

	log := m.logger.WithFields(logrus.Fields{
		"artifact": artifact.ID,
		"url":      artifact.RemoteURL,
		"offset":   offset,
	})
	log.Info("Starting artifact transfer")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifact.RemoteURL, nil)
	if err != nil {
		return domain.NewTransientIOError("failed to build request", err)
	}
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	resp, err := m.client.Do(req)
	if err != nil {
		m.persistCursor(t, offset)
		return domain.NewTransientIOError("request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusPartialContent && offset > 0:
		// resuming
	case resp.StatusCode == http.StatusOK:
		// server ignored the range; restart from zero
		offset = 0
	default:
		return domain.NewTransientIOError(
			fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	expected := artifact.ExpectedBytes
	if expected <= 0 && resp.ContentLength > 0 {
		expected = offset + resp.ContentLength
	}

	flags := os.O_CREATE | os.O_WRONLY
	if offset > 0 {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	if err := os.MkdirAll(filepath.Dir(part), 0755); err != nil {
		return domain.NewTransientIOError("failed to create models dir", err)
	}
	file, err := os.OpenFile(part, flags, 0644)
	if err != nil {
		return domain.NewTransientIOError("failed to open partial file", err)
	}
	defer file.Close()

	received := offset
	limiter := rate.NewLimiter(m.progressRate, 1)
	report := func(final bool) {
		if onProgress == nil {
			return
		}
		if !final && !limiter.Allow() {
			return
		}
		percent := 0.0
		if expected > 0 {
			percent = float64(received) / float64(expected) * 100
		}
		onProgress(received, expected, percent)
	}

	buf := make([]byte, chunkSize)
	for {
		// Suspension is only honored at chunk boundaries.
		select {
		case <-t.pauseCh:
			t.cursor = m.persistCursor(t, received)
			log.WithField("bytes_received", received).Info("Transfer paused")
			return ErrTransferPaused
		case <-ctx.Done():
			m.persistCursor(t, received)
			return domain.NewTransientIOError("transfer cancelled", ctx.Err())
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := file.Write(buf[:n]); werr != nil {
				m.persistCursor(t, received)
				return domain.NewTransientIOError("write failed", werr)
			}
			received += int64(n)
			report(false)
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			m.persistCursor(t, received)
			return domain.NewTransientIOError("read failed", readErr)
		}
	}

	if err := file.Sync(); err != nil {
		return domain.NewTransientIOError("sync failed", err)
	}
	file.Close()

	if !artifact.IsComplete(received) {
		// Short of the completion threshold: a resume would produce a
		// corrupt artifact, so force a restart next time.
		_ = os.Remove(part)
		_ = m.store.Delete(ctx, artifact.ID)
		return domain.NewTransientIOError(
			fmt.Sprintf("incomplete transfer: %d of %d bytes", received, expected), nil)
	}

	if err := os.Rename(part, artifact.LocalPath); err != nil {
		return domain.NewTransientIOError("failed to finalize artifact", err)
	}
	_ = m.store.Delete(ctx, artifact.ID)
	report(true)

	log.WithField("bytes_received", received).Info("Artifact transfer complete")
	return nil
}

// resumeOffset determines where a new transfer should start, reconciling the
// persisted cursor with the bytes actually on disk.
func (m *Manager) resumeOffset(ctx context.Context, artifact domain.ModelArtifact, part string) int64 {
	state, err := m.store.Get(ctx, artifact.ID)
	if err != nil || state == nil {
		return 0
	}
	info, err := os.Stat(part)
	if err != nil {
		return 0
	}
	// The file is authoritative; a cursor ahead of the file means lost bytes.
	if state.BytesReceived != info.Size() {
		m.logger.WithFields(logrus.Fields{
			"artifact": artifact.ID,
			"cursor":   state.BytesReceived,
			"on_disk":  info.Size(),
		}).Warn("Transfer cursor disagrees with partial file")
	}
	return info.Size()
}

// persistCursor synchronously writes a resumable cursor. A failed persist is
// an accepted degradation: the next Acquire starts over.
func (m *Manager) persistCursor(t *transfer, received int64) *domain.TransferState {
	state := &domain.TransferState{
		ArtifactID:    t.artifact.ID,
		RemoteURL:     t.artifact.RemoteURL,
		LocalPath:     t.artifact.LocalPath,
		BytesReceived: received,
		BytesExpected: t.artifact.ExpectedBytes,
		UpdatedAt:     time.Now(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.store.Save(ctx, state); err != nil {
		m.logger.WithError(err).WithField("artifact", t.artifact.ID).
			Warn("Failed to persist transfer cursor; next acquire restarts")
		return nil
	}
	return state
}

// partPath is where in-progress bytes accumulate until the transfer passes
// the completion threshold.
func partPath(artifact domain.ModelArtifact) string {
	return artifact.LocalPath + ".part"
}
