// Package main is the Chishiki CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/chishiki/internal/config"
	"github.com/hyperjump/chishiki/internal/crawler"
	"github.com/hyperjump/chishiki/internal/models"
	"github.com/hyperjump/chishiki/internal/runtime"
	"github.com/hyperjump/chishiki/internal/server"
	"github.com/hyperjump/chishiki/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/chishiki/config.yaml"

// loadConfig loads config from path. If path is the default and the file
// does not exist, it tries config.yaml in the current directory, then falls
// back to built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if path != defaultConfigPath {
		return nil, err
	}
	if cwd, cwdErr := os.Getwd(); cwdErr == nil {
		fallback := filepath.Join(cwd, "config.yaml")
		if _, statErr := os.Stat(fallback); statErr == nil {
			return config.Load(fallback)
		}
	}
	return config.Default(), nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "search":
		runSearch()
	case "index":
		runIndex()
	case "crawl":
		runCrawl()
	case "version", "--version", "-v":
		fmt.Printf("chishiki version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Usage: chishiki <command> [flags]

Commands:
  server    run the indexing and search services
  search    query a running server
  index     submit one document to a running server
  crawl     walk a project tree and enqueue it for indexing
  version   print the version`)
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	rt, err := runtime.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize runtime", zap.Error(err))
	}
	defer rt.Close()
	if err := rt.Start(); err != nil {
		logger.Fatal("failed to start services", zap.Error(err))
	}

	srv := server.NewServer(rt, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	serverURL := fs.String("server", "http://127.0.0.1:8181", "server base URL")
	kind := fs.String("type", "hybrid", "search type: semantic|vector|knowledge_graph|hybrid")
	project := fs.String("project", "", "project name filter")
	pattern := fs.String("path", "", "path glob filter (e.g. services/**/*.py)")
	limit := fs.Int("limit", 10, "max results")
	qualityWeight := fs.Float64("quality-weight", -1, "quality weight in [0,1]; negative disables")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Println("Usage: chishiki search [flags] <query>")
		os.Exit(1)
	}

	req := models.SearchRequest{
		Query:      fs.Arg(0),
		Kind:       models.SearchKind(*kind),
		MaxResults: *limit,
		Filters: models.SearchFilters{
			ProjectName: *project,
			PathPattern: *pattern,
		},
	}
	if *qualityWeight >= 0 {
		req.QualityWeight = qualityWeight
	}

	var resp models.SearchResponse
	if err := postJSON(*serverURL+"/api/v1/search", req, &resp); err != nil {
		fmt.Printf("Search failed: %v\n", err)
		os.Exit(1)
	}
	for i, r := range resp.Results {
		fmt.Printf("%2d. %-50s %.3f  [%v]\n", i+1, r.SourcePath, r.Score, r.Metadata["source"])
		if r.Excerpt != "" {
			fmt.Printf("    %s\n", r.Excerpt)
		}
	}
	fmt.Printf("\n%d results in %.1fms (sources: %v", resp.TotalResults, resp.SearchTimeMS, resp.SourcesQueried)
	if len(resp.FailedSources) > 0 {
		fmt.Printf(", failed: %v", resp.FailedSources)
	}
	fmt.Println(")")
}

func runIndex() {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	serverURL := fs.String("server", "http://127.0.0.1:8181", "server base URL")
	project := fs.String("project", "", "project name (required)")
	language := fs.String("language", "", "language tag")
	force := fs.Bool("force", false, "force reindex of duplicate content")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 || *project == "" {
		fmt.Println("Usage: chishiki index -project <name> [flags] <file>")
		os.Exit(1)
	}

	path := fs.Arg(0)
	content, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("Failed to read %s: %v\n", path, err)
		os.Exit(1)
	}
	req := models.IndexRequest{
		SourcePath:  path,
		Content:     string(content),
		Language:    *language,
		ProjectName: *project,
		Options:     models.IndexingOptions{ForceReindex: *force},
	}
	var resp map[string]string
	if err := postJSON(*serverURL+"/api/v1/documents", req, &resp); err != nil {
		fmt.Printf("Index failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Accepted: correlation_id=%s\n", resp["correlation_id"])
}

func runCrawl() {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	project := fs.String("project", "", "project name (required)")
	watch := fs.Bool("watch", false, "keep watching for changes after the initial crawl")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 || *project == "" {
		fmt.Println("Usage: chishiki crawl -project <name> [flags] <root>")
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	rt, err := runtime.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize runtime", zap.Error(err))
	}
	defer rt.Close()

	c, err := crawler.NewCrawler(rt.Bus, crawler.Config{
		ProjectName: *project,
		ProjectRoot: fs.Arg(0),
		Extensions:  cfg.Crawl.Extensions,
		Ignore:      cfg.Crawl.Ignore,
		BatchSize:   cfg.Crawl.BatchSize,
	}, crawler.WithLogger(logger))
	if err != nil {
		logger.Fatal("failed to create crawler", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	total, err := c.Crawl(ctx)
	if err != nil {
		logger.Fatal("crawl failed", zap.Error(err))
	}
	fmt.Printf("Enqueued %d files from %s\n", total, fs.Arg(0))

	if *watch || cfg.Crawl.Watch {
		fmt.Println("Watching for changes (ctrl-c to stop)")
		if err := c.Watch(ctx); err != nil {
			logger.Fatal("watch failed", zap.Error(err))
		}
	}
}

func postJSON(url string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var apiErr struct {
			ErrorMessage string `json:"error_message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		if apiErr.ErrorMessage != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.ErrorMessage)
		}
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
