// Package inventory supplies raw vehicle records to the engine. The engine
// core never touches disk or network itself; a Source collaborator hands it
// snapshots on demand.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ShowfloorAI/showfloor-mvp/engine/domain"
)

// Source provides the current inventory snapshot.
type Source interface {
	Snapshot(ctx context.Context) ([]domain.Record, error)
}

// StaticSource serves a fixed set of records. Used in tests and demos.
type StaticSource struct {
	Records []domain.Record
}

func (s StaticSource) Snapshot(ctx context.Context) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.Records, nil
}

// feedFile tolerates both a bare JSON array and the wrapped object shape
// some DMS exports produce.
type feedFile struct {
	Vehicles []domain.Record `json:"vehicles"`
}

// FileSource reads a JSON inventory feed from disk. Reloads are limited to
// one disk check per poll interval and skipped entirely when the file has
// not changed; concurrent callers share the cached snapshot.
type FileSource struct {
	path    string
	logger  *slog.Logger
	limiter *rate.Limiter

	mu      sync.Mutex
	cached  []domain.Record
	modTime time.Time
}

// DefaultPollInterval is the minimum spacing between feed file checks.
const DefaultPollInterval = 10 * time.Second

// NewFileSource creates a FileSource over a JSON feed file. A nil logger
// falls back to slog.Default.
func NewFileSource(path string, logger *slog.Logger) *FileSource {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileSource{
		path:    path,
		logger:  logger,
		limiter: rate.NewLimiter(rate.Every(DefaultPollInterval), 1),
	}
}

// Snapshot returns the current feed contents. The first call always reads
// the file; later calls return the cache unless the poll interval has passed
// and the file's mtime moved. A read failure after a successful load keeps
// serving the last good snapshot.
func (s *FileSource) Snapshot(ctx context.Context) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	allowed := s.limiter.Allow()
	if s.cached != nil && !allowed {
		return s.cached, nil
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if s.cached != nil {
			s.logger.Warn("inventory: feed stat failed, serving cached snapshot", "path", s.path, "error", err)
			return s.cached, nil
		}
		return nil, fmt.Errorf("inventory: stat %s: %w", s.path, err)
	}
	if s.cached != nil && info.ModTime().Equal(s.modTime) {
		return s.cached, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if s.cached != nil {
			s.logger.Warn("inventory: feed read failed, serving cached snapshot", "path", s.path, "error", err)
			return s.cached, nil
		}
		return nil, fmt.Errorf("inventory: read %s: %w", s.path, err)
	}

	recs, err := decodeFeed(data)
	if err != nil {
		if s.cached != nil {
			s.logger.Warn("inventory: feed decode failed, serving cached snapshot", "path", s.path, "error", err)
			return s.cached, nil
		}
		return nil, fmt.Errorf("inventory: decode %s: %w", s.path, err)
	}

	s.cached = recs
	s.modTime = info.ModTime()
	s.logger.Info("inventory: feed loaded", "path", s.path, "vehicles", len(recs))
	return recs, nil
}

func decodeFeed(data []byte) ([]domain.Record, error) {
	var recs []domain.Record
	if err := json.Unmarshal(data, &recs); err == nil {
		return recs, nil
	}
	var wrapped feedFile
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, err
	}
	if wrapped.Vehicles == nil {
		return nil, fmt.Errorf("no vehicle array found")
	}
	return wrapped.Vehicles, nil
}
