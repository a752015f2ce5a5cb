// Package crawler discovers files under a project root and publishes
// tree-index batches onto the transport. It is a producer for the indexing
// orchestrator, not part of the pipeline itself.
package crawler

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/chishiki/internal/models"
	"github.com/hyperjump/chishiki/internal/transport"
)

// maxFileSize bounds what the crawler will read into one request.
const maxFileSize = 2 << 20

// Config tunes a crawl.
type Config struct {
	ProjectName string
	ProjectRoot string
	Extensions  []string
	Ignore      []string
	BatchSize   int
}

// CrawlerOption configures a Crawler.
type CrawlerOption func(*Crawler)

// WithLogger sets a logger for skipped files and publish errors.
func WithLogger(l *zap.Logger) CrawlerOption {
	return func(c *Crawler) { c.logger = l }
}

// Crawler walks a project tree and emits tree-index batches.
type Crawler struct {
	bus    transport.Transport
	cfg    Config
	logger *zap.Logger
}

// NewCrawler creates a crawler publishing onto bus.
func NewCrawler(bus transport.Transport, cfg Config, opts ...CrawlerOption) (*Crawler, error) {
	if strings.TrimSpace(cfg.ProjectName) == "" {
		return nil, fmt.Errorf("crawler requires a project name")
	}
	if cfg.ProjectRoot == "" {
		return nil, fmt.Errorf("crawler requires a project root")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	c := &Crawler{bus: bus, cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Crawl walks the root once and publishes every eligible file in batches.
// Returns the number of files published.
func (c *Crawler) Crawl(ctx context.Context) (int, error) {
	var batch []models.FileRecord
	total := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := c.publishBatch(ctx, batch); err != nil {
			return err
		}
		total += len(batch)
		batch = nil
		return nil
	}

	err := filepath.WalkDir(c.cfg.ProjectRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if c.ignored(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		rec, ok := c.readFile(path)
		if !ok {
			return nil
		}
		batch = append(batch, rec)
		if len(batch) >= c.cfg.BatchSize {
			return flush()
		}
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("walk %s: %w", c.cfg.ProjectRoot, err)
	}
	if err := flush(); err != nil {
		return total, err
	}
	return total, nil
}

// Watch republishes changed files until ctx is cancelled. Only the roots'
// directories present at start (plus directories created later under them)
// are watched.
func (c *Crawler) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	err = filepath.WalkDir(c.cfg.ProjectRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if c.ignored(d.Name()) {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("watch %s: %w", c.cfg.ProjectRoot, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
				if !c.ignored(filepath.Base(ev.Name)) {
					_ = watcher.Add(ev.Name)
				}
				continue
			}
			if rec, ok := c.readFile(ev.Name); ok {
				if err := c.publishBatch(ctx, []models.FileRecord{rec}); err != nil {
					c.logger.Warn("publish changed file", zap.String("path", ev.Name), zap.Error(err))
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			if err != nil {
				c.logger.Warn("watcher error", zap.Error(err))
			}
		}
	}
}

func (c *Crawler) publishBatch(ctx context.Context, files []models.FileRecord) error {
	req := models.TreeIndexRequest{
		ProjectName: c.cfg.ProjectName,
		ProjectRoot: c.cfg.ProjectRoot,
		Files:       files,
	}
	env, err := transport.NewEnvelope("tree-index", "", "repository-crawler", req)
	if err != nil {
		return err
	}
	return c.bus.Publish(ctx, transport.TopicTreeIndex, env)
}

// readFile loads one file as a record, skipping binaries, oversized files,
// and extension mismatches.
func (c *Crawler) readFile(path string) (models.FileRecord, bool) {
	if !c.matchExtension(path) {
		return models.FileRecord{}, false
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() > maxFileSize {
		return models.FileRecord{}, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		c.logger.Warn("read file", zap.String("path", path), zap.Error(err))
		return models.FileRecord{}, false
	}
	if len(data) == 0 || !utf8.Valid(data) {
		return models.FileRecord{}, false
	}
	return models.FileRecord{
		Path:     path,
		Content:  string(data),
		Language: languageForExt(filepath.Ext(path)),
	}, true
}

func (c *Crawler) matchExtension(path string) bool {
	if len(c.cfg.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range c.cfg.Extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func (c *Crawler) ignored(name string) bool {
	for _, ig := range c.cfg.Ignore {
		if name == ig {
			return true
		}
	}
	return strings.HasPrefix(name, ".")
}

var extLanguages = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".ts":   "typescript",
	".rs":   "rust",
	".java": "java",
	".rb":   "ruby",
	".md":   "markdown",
	".yaml": "yaml",
	".yml":  "yaml",
	".json": "json",
	".sh":   "shell",
	".sql":  "sql",
}

func languageForExt(ext string) string {
	return extLanguages[strings.ToLower(ext)]
}
