// Package main is the kioku CLI entry point.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/kioku"
	"github.com/hyperjump/kioku/internal/cli"
	"github.com/hyperjump/kioku/internal/config"
	"github.com/hyperjump/kioku/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kioku/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used,
// so that "kioku add" from the project dir uses the project's config (including debug).
// A missing config file is not an error: built-in defaults plus environment
// overrides apply, so "kioku configure" can bootstrap a config at any path.
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		cfg := &config.Config{}
		config.ApplyDefaults(cfg)
		config.ApplyEnv(cfg)
		return cfg, path, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// configPathFromEnv returns KIOKU_CONFIG when set and path is still the
// default, so the environment can relocate the config without a flag.
func configPathFromEnv(path string) string {
	if path == defaultConfigPath {
		if env := os.Getenv("KIOKU_CONFIG"); env != "" {
			return env
		}
	}
	return path
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "configure":
		runConfigure()
	case "add":
		runAdd()
	case "search":
		runSearch()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kioku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// newLogger builds the CLI logger, exiting on failure like every command does.
func newLogger(debug bool) *zap.Logger {
	logger, err := utils.NewLogger(debug)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// newStore builds a Store wired from config: capacity, lock policy, path
// allowlist, and logging all come from cfg.
func newStore(cfg *config.Config, logger *zap.Logger) (*kioku.Store, error) {
	attempts := cfg.Lock.Attempts
	if attempts < 1 {
		attempts = 1
	}
	opts := []kioku.Option{
		kioku.WithLogger(logger),
		kioku.WithObserver(kioku.NewZapObserver(logger)),
		kioku.WithMaxDocuments(cfg.Store.MaxDocuments),
		kioku.WithLockRetry(uint(attempts), cfg.Lock.InitialDelay(), cfg.Lock.MaxDelay()),
		kioku.WithLockStaleAfter(cfg.Lock.StaleAfter()),
	}
	if len(cfg.Auth.AllowedDirs) > 0 {
		allow, err := kioku.NewDirAllowlist(cfg.Auth.AllowedDirs...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, kioku.WithPathAuthorizer(allow))
	}
	return kioku.New(opts...), nil
}

// watchSignals releases the process's store lock when the CLI is interrupted
// mid-operation, so the next invocation does not have to wait out staleness.
func watchSignals(logger *zap.Logger) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutting down...")
		if err := kioku.ReleaseCurrentLock(); err != nil {
			logger.Warn("lock release on shutdown failed", zap.Error(err))
		}
		os.Exit(1)
	}()
}

func runConfigure() {
	fs := flag.NewFlagSet("configure", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	storePath := fs.String("store", "", "store file path (default from config)")
	embeddingSize := fs.Int("embedding-size", 0, "embedding vector width (default from config)")
	maxDocuments := fs.Int("max-documents", 0, "document capacity (default from config)")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(configPathFromEnv(*configPathFlag))
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *storePath != "" {
		absPath, absErr := filepath.Abs(*storePath)
		if absErr != nil {
			fmt.Fprintf(os.Stderr, "Bad store path: %v\n", absErr)
			os.Exit(1)
		}
		cfg.Store.Path = absPath
	}
	if *embeddingSize > 0 {
		cfg.Store.EmbeddingSize = *embeddingSize
	}
	if *maxDocuments > 0 {
		cfg.Store.MaxDocuments = *maxDocuments
	}

	logger := newLogger(cfg.Debug || *debug)
	defer logger.Sync()
	watchSignals(logger)

	store, err := newStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configure failed: %v\n", err)
		os.Exit(1)
	}
	if err := store.Configure(context.Background(), cfg.Store.Path, cfg.Store.EmbeddingSize); err != nil {
		fmt.Fprintf(os.Stderr, "Configure failed: %v\n", err)
		os.Exit(1)
	}
	if err := config.Save(resolvedConfigPath, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Store configured but saving config failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Store configured: %s (embedding size %d, capacity %d)\n",
		cfg.Store.Path, cfg.Store.EmbeddingSize, cfg.Store.MaxDocuments)
}

func runAdd() {
	addArgs := argsReorder(os.Args[2:])
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	embeddingStr := fs.String("embedding", "", "comma-separated embedding vector (required)")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { printAddUsage(fs) }
	_ = fs.Parse(addArgs)

	if fs.NArg() < 1 {
		printAddUsage(fs)
		os.Exit(1)
	}
	content := buildContent(fs.Args())
	if content == "" {
		printAddUsage(fs)
		os.Exit(1)
	}
	if *embeddingStr == "" {
		printAddUsage(fs)
		os.Exit(1)
	}
	embedding, err := cli.ParseEmbedding(*embeddingStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad embedding: %v\n", err)
		os.Exit(1)
	}

	cfg, _, err := loadConfig(configPathFromEnv(*configPathFlag))
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Debug || *debug)
	defer logger.Sync()
	watchSignals(logger)

	store, err := newStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Add failed: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	if err := store.Configure(ctx, cfg.Store.Path, cfg.Store.EmbeddingSize); err != nil {
		fmt.Fprintf(os.Stderr, "Add failed: %v\n", err)
		os.Exit(1)
	}
	if err := store.Add(ctx, content, embedding); err != nil {
		fmt.Fprintf(os.Stderr, "Add failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Document added to %s\n", cfg.Store.Path)
}

func runSearch() {
	searchArgs := argsReorder(os.Args[2:])
	configPath := configPathFromArgs(searchArgs, defaultConfigPath)
	defaultK := defaultKFromConfig(configPathFromEnv(configPath))

	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	embeddingStr := fs.String("embedding", "", "comma-separated query embedding (required)")
	k := fs.Int("k", defaultK, "number of results")
	outputFormat := fs.String("output", "text", "output format: text (human-readable) or json (parseable)")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { printSearchUsage(fs) }
	_ = fs.Parse(searchArgs)

	if *embeddingStr == "" {
		printSearchUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	embedding, err := cli.ParseEmbedding(*embeddingStr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad embedding: %v\n", err)
		os.Exit(1)
	}

	cfg, _, err := loadConfig(configPathFromEnv(*configPathFlag))
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Debug || *debug)
	defer logger.Sync()
	watchSignals(logger)

	store, err := newStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	if err := store.Configure(ctx, cfg.Store.Path, cfg.Store.EmbeddingSize); err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	response, err := store.Search(ctx, embedding, kioku.WithK(*k))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteSearchResults(os.Stdout, response, format); err != nil {
		fmt.Fprintf(os.Stderr, "Search failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseFormat(*outputFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	cfg, _, err := loadConfig(configPathFromEnv(*configPathFlag))
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Debug || *debug)
	defer logger.Sync()
	watchSignals(logger)

	store, err := newStore(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	ctx := context.Background()
	if err := store.Configure(ctx, cfg.Store.Path, cfg.Store.EmbeddingSize); err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	st, err := store.Status(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
}

// buildContent joins all positional args with spaces so multi-word documents
// work the same with or without shell quoting (e.g. "meeting notes" vs meeting notes).
func buildContent(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
	}
	return defaultPath
}

// defaultKFromConfig loads config at path and returns the default result count
// for search. On load failure, or when the config leaves it unset, returns
// the built-in default.
func defaultKFromConfig(path string) int {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil {
		return kioku.DefaultK
	}
	if cfg.Search.DefaultK > 0 {
		return cfg.Search.DefaultK
	}
	return kioku.DefaultK
}

// argsReorder moves any flags (and their values) that appear after positional
// arguments to the front of the slice so that flag.Parse() sees them. Go's
// flag package stops at the first non-flag argument, so "kioku add \"note\"
// -embedding 0.1,0.2" would otherwise leave -embedding unparsed.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// printAddUsage prints add subcommand usage.
func printAddUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kioku add [flags] -embedding \"0.1,0.2,...\" <content>\n\n")
	fmt.Fprintf(fs.Output(), "Content is all remaining arguments joined by spaces. Multi-word documents work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
The embedding must have exactly as many components as the store was configured
with, and every component must be a finite number.

Examples:
  kioku add -embedding "0.12,0.98,0.31" meeting notes from tuesday
  kioku add -embedding "0.12,0.98,0.31" "meeting notes from tuesday"   # same as above
`)
}

// printSearchUsage prints search subcommand usage.
func printSearchUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: kioku search [flags] -embedding \"0.1,0.2,...\"\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Every stored document is scored by cosine similarity against the query
embedding and the top k are printed, best first.
  • -k controls how many results come back (default from config).
  • -output json emits the full response for other tools to parse.

Examples:
  kioku search -embedding "0.11,0.97,0.30"
  kioku search -embedding "0.11,0.97,0.30" -k 10
  kioku search -embedding "0.11,0.97,0.30" -output json   # structured JSON for other apps
`)
}

func printUsage() {
	fmt.Println(`kioku - Single-file document store with embedding search

Usage:
  kioku configure [flags]          Create or open a store file and remember it
  kioku add [flags] <content>      Add a document and its embedding
  kioku search [flags]             Rank stored documents against a query embedding
  kioku status [flags]             Show store location, schema, and disk usage
  kioku version                    Show version
  kioku help                       Show this help

Configure Flags:
  --config string          Config file path (default: /usr/local/etc/kioku/config.yaml)
  --store string           Store file path (default from config)
  --embedding-size int     Embedding vector width (default from config)
  --max-documents int      Document capacity (default from config)
  --debug                  Enable debug logging

Add Flags:
  --config string      Config file path
  --embedding string   Comma-separated embedding vector (required)
  --debug              Enable debug logging

Search Flags:
  --config string      Config file path (also used for the default -k value)
  --embedding string   Comma-separated query embedding (required)
  --k int              Number of results (default from config, or 5)
  --output string      Output format: text or json (default: text)
  --debug              Enable debug logging

Status Flags:
  --config string    Config file path
  --output string    Output format: text or json (default: text)
  --debug            Enable debug logging

Examples:
  kioku configure --store ~/notes/store.json --embedding-size 384
  kioku add --embedding "0.12,0.98,0.31" meeting notes from tuesday
  kioku search --embedding "0.11,0.97,0.30" --k 10
  kioku search --embedding "0.11,0.97,0.30" --output json
  kioku status --output json

Environment:
  KIOKU_CONFIG        Config file path (used when --config is not given)
  KIOKU_STORE         Store file path (overrides config)
  KIOKU_ALLOWED_DIRS  Directories store files may live in, separated like $PATH
  KIOKU_DEBUG         Enable debug logging (true/false)

The store lives in a single JSON file next to a .lock file that serializes
access between processes. An interrupted command releases its lock on the way
out; a lock left behind by a crashed process is reclaimed after it goes stale.`)
}
