package services

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/mitchens84/APPLE-HEALTH/internal/errors"
	"github.com/mitchens84/APPLE-HEALTH/internal/healthdata"
	"github.com/mitchens84/APPLE-HEALTH/internal/observability"
	"github.com/mitchens84/APPLE-HEALTH/internal/report"
)

// ExportFileName is the name the uploaded export is stored under inside a
// session directory.
const ExportFileName = "export.xml"

// Session holds one uploaded export and everything derived from it. The
// export and its output artifacts live in a per-session directory; the
// report accumulates across the session's extraction calls.
type Session struct {
	ID         string
	Dir        string
	ExportPath string
	OutputDir  string
	CreatedAt  time.Time

	Processor *healthdata.Processor
	Report    *report.Report
}

// SessionManager owns the lifecycle of upload sessions
type SessionManager struct {
	baseDir string
	logger  *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessionManager creates a session manager storing sessions under baseDir
func NewSessionManager(baseDir string, logger *slog.Logger) *SessionManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionManager{
		baseDir:  baseDir,
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// Create stores the uploaded export under a fresh session directory and
// returns the new session.
func (m *SessionManager) Create(ctx context.Context, src io.Reader) (*Session, error) {
	id := uuid.New().String()
	dir := filepath.Join(m.baseDir, id)
	outputDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, apperrors.NewStorageError("failed to create session directory", err)
	}

	exportPath := filepath.Join(dir, ExportFileName)
	written, err := storeUpload(exportPath, src)
	if err != nil {
		os.RemoveAll(dir)
		return nil, err
	}

	sessionLogger := m.logger.With(slog.String("session_id", id))
	s := &Session{
		ID:         id,
		Dir:        dir,
		ExportPath: exportPath,
		OutputDir:  outputDir,
		CreatedAt:  time.Now(),
		Processor:  healthdata.NewProcessor(exportPath, sessionLogger),
		Report:     report.New(sessionLogger),
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	observability.IncActiveSessions()
	m.logger.InfoContext(ctx, "session created",
		slog.String("session_id", id),
		slog.Int64("export_bytes", written))
	return s, nil
}

func storeUpload(path string, src io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, apperrors.NewStorageError("failed to store uploaded export", err)
	}

	written, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, apperrors.NewStorageError("failed to store uploaded export", err)
	}
	return written, nil
}

// Get returns the session with the given id.
func (m *SessionManager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewNotFoundError("session").WithContext("session_id", id)
	}
	return s, nil
}

// Delete removes the session and its directory with every artifact in it.
func (m *SessionManager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()
	if !ok {
		return apperrors.NewNotFoundError("session").WithContext("session_id", id)
	}

	if err := os.RemoveAll(s.Dir); err != nil {
		return apperrors.NewStorageError("failed to remove session directory", err)
	}

	observability.DecActiveSessions()
	m.logger.InfoContext(ctx, "session deleted",
		slog.String("session_id", id))
	return nil
}

// Count returns the number of live sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
