package ingest

import (
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fmcg-dashboard/internal/models"
)

const cacheVersion = "v1"

// FileLoader reads datasets from disk and keeps a gob copy of each parsed
// file in a cache directory. A cached copy is used while it is newer than
// its source file.
type FileLoader struct {
	cacheDir string
	logger   *slog.Logger
}

// NewFileLoader returns a loader caching into cacheDir. An empty cacheDir
// disables caching.
func NewFileLoader(cacheDir string, logger *slog.Logger) *FileLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileLoader{cacheDir: cacheDir, logger: logger}
}

// Load returns the dataset stored at path.
func (l *FileLoader) Load(ctx context.Context, path string) (*models.Dataset, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	if cached, err := l.loadFromCache(path); err == nil && info.ModTime().Before(cached.LoadedAt) {
		l.logger.Info("loaded dataset from cache", "path", path, "rows", cached.Len())
		return cached, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	ds, err := Read(file, path)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	ds.LoadedAt = time.Now()

	if err := l.saveToCache(path, ds); err != nil {
		l.logger.Warn("failed to save dataset cache", "path", path, "error", err)
	}

	l.logger.Info("dataset parsed",
		"path", path,
		"rows", ds.Len(),
		"columns", len(ds.Columns),
		"duration", time.Since(start))
	return ds, nil
}

func (l *FileLoader) cacheFilename(path string) string {
	name := strings.NewReplacer("/", "_", `\`, "_", ":", "_").Replace(path)
	return filepath.Join(l.cacheDir, fmt.Sprintf("%s_%s.gob", name, cacheVersion))
}

func (l *FileLoader) saveToCache(path string, ds *models.Dataset) error {
	if l.cacheDir == "" {
		return nil
	}
	if err := os.MkdirAll(l.cacheDir, 0o755); err != nil {
		return err
	}
	file, err := os.Create(l.cacheFilename(path))
	if err != nil {
		return err
	}
	defer file.Close()
	return gob.NewEncoder(file).Encode(ds)
}

func (l *FileLoader) loadFromCache(path string) (*models.Dataset, error) {
	if l.cacheDir == "" {
		return nil, os.ErrNotExist
	}
	file, err := os.Open(l.cacheFilename(path))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var ds models.Dataset
	if err := gob.NewDecoder(file).Decode(&ds); err != nil {
		return nil, err
	}
	return &ds, nil
}
