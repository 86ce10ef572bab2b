package services

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
)

// GeneratedFile tracks one generated image persisted on disk
type GeneratedFile struct {
	Filename  string
	Path      string
	Size      int64
	CreatedAt time.Time
}

// FileCacheService persists generated images to disk and expires them after
// the retention window. LINE fetches image messages by URL, so assets must
// stay retrievable well after the reply is sent; eviction deletes the file
// from disk.
type FileCacheService struct {
	dir       string
	retention time.Duration
	cache     *cache.Cache
}

// NewFileCacheService creates a file cache rooted at dir. The directory is
// created if missing.
func NewFileCacheService(dir string, retention time.Duration) (*FileCacheService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}

	c := cache.New(retention, time.Hour)
	c.OnEvicted(func(key string, value interface{}) {
		if file, ok := value.(*GeneratedFile); ok {
			if err := os.Remove(file.Path); err != nil && !os.IsNotExist(err) {
				log.Printf("⚠️  [FILE-CACHE] Failed to delete expired image %s: %v", file.Filename, err)
			} else {
				log.Printf("🗑️  [FILE-CACHE] Expired image deleted: %s", file.Filename)
			}
		}
	})

	return &FileCacheService{
		dir:       dir,
		retention: retention,
		cache:     c,
	}, nil
}

// StoreImage writes image bytes to disk under a random filename and tracks
// it for retention cleanup. Returns the filename to embed in the public URL.
func (s *FileCacheService) StoreImage(data []byte, ext string) (string, error) {
	if ext == "" {
		ext = "png"
	}
	filename := fmt.Sprintf("%s.%s", uuid.NewString(), ext)
	path := filepath.Join(s.dir, filename)

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	file := &GeneratedFile{
		Filename:  filename,
		Path:      path,
		Size:      int64(len(data)),
		CreatedAt: time.Now(),
	}
	s.cache.Set(filename, file, cache.DefaultExpiration)

	log.Printf("📦 [FILE-CACHE] Stored generated image %s (%d bytes)", filename, len(data))
	return filename, nil
}

// Resolve maps a requested filename to its on-disk path. Only tracked,
// plainly-named files resolve; anything with path separators is rejected.
func (s *FileCacheService) Resolve(filename string) (string, bool) {
	if filename == "" || strings.ContainsAny(filename, "/\\") || strings.Contains(filename, "..") {
		return "", false
	}
	value, found := s.cache.Get(filename)
	if !found {
		// Untracked but present on disk (e.g. after restart): still serve it,
		// the orphan sweep handles its retention.
		path := filepath.Join(s.dir, filename)
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
		return "", false
	}
	return value.(*GeneratedFile).Path, true
}

// CleanupOrphanedFiles deletes files in the image directory that are not
// tracked in the cache and are older than the retention window. Untracked
// files appear after a restart since the cache is memory-only.
func (s *FileCacheService) CleanupOrphanedFiles() {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Printf("⚠️  [FILE-CACHE] Failed to read image directory: %v", err)
		return
	}

	now := time.Now()
	deleted := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if _, tracked := s.cache.Get(entry.Name()); tracked {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) > s.retention {
			path := filepath.Join(s.dir, entry.Name())
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.Printf("⚠️  [FILE-CACHE] Failed to delete orphaned image %s: %v", entry.Name(), err)
			} else {
				deleted++
			}
		}
	}

	if deleted > 0 {
		log.Printf("✅ [FILE-CACHE] Cleanup deleted %d orphaned images", deleted)
	}
}

// Count returns the number of tracked images (used by health/metrics)
func (s *FileCacheService) Count() int {
	return s.cache.ItemCount()
}
