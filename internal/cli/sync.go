package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/docsync-dev/docsync/internal/cache"
	"github.com/docsync-dev/docsync/internal/config"
	"github.com/docsync-dev/docsync/internal/driver"
	"github.com/docsync-dev/docsync/internal/ignore"
	"github.com/docsync-dev/docsync/internal/llm"
)

const cacheFileName = "cache.db"

func RunSummary(cmd *cobra.Command, args []string) error {
	return runSync(cmd, args, false)
}

func RunDocstrings(cmd *cobra.Command, args []string) error {
	return runSync(cmd, args, true)
}

func runSync(cmd *cobra.Command, args []string, docstrings bool) error {
	rootPath, err := resolveRoot(args)
	if err != nil {
		return err
	}
	cfg, err := loadRunConfig(cmd, rootPath)
	if err != nil {
		return err
	}
	dryRun, err := cmd.Flags().GetBool("dry-run")
	if err != nil {
		return fmt.Errorf("failed to read --dry-run flag: %w", err)
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("failed to read --json flag: %w", err)
	}

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is not set; export it or add it to .env")
	}

	logger := newLogger(cmd)

	rules, err := ignore.LoadRules(rootPath)
	if err != nil {
		return fmt.Errorf("failed to load ignore rules: %w", err)
	}
	matcher := ignore.NewMatcher(append(rules, cfg.Exclude...))

	store, err := openStore(rootPath, dryRun)
	if err != nil {
		return err
	}
	defer store.Close()

	capability := llm.NewClient(apiKey, cfg.Model, cfg.RequestRate, logger)

	// An explicit retries: 0 in config disables retrying; the driver's zero
	// value means "default".
	retries := cfg.Retries
	if retries == 0 {
		retries = -1
	}

	// Cooperative cancellation: first signal stops dispatching new work,
	// persisting is skipped entirely.
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := driver.Run(ctx, driver.Options{
		Root:        rootPath,
		Docstrings:  docstrings,
		DryRun:      dryRun,
		Concurrency: cfg.Concurrency,
		Retries:     retries,
		ChunkBytes:  cfg.ChunkBytes,
		Matcher:     matcher,
		Store:       store,
		Capability:  capability,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	return printReport(report, asJSON)
}

func openStore(rootPath string, dryRun bool) (cache.Store, error) {
	if dryRun {
		return cache.NewMemoryStore(), nil
	}
	return cache.OpenBolt(filepath.Join(rootPath, config.DocsyncDir, cacheFileName))
}

func RunPrune(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveRoot(args)
	if err != nil {
		return err
	}

	walker, err := driver.LoadWalker(rootPath, nil)
	if err != nil {
		return err
	}
	root, skipped, err := walker.Build(rootPath)
	if err != nil {
		return err
	}
	for _, skip := range skipped {
		fmt.Fprintf(os.Stderr, "warning: %s skipped: %s\n", skip.Path, skip.Reason)
	}

	store, err := openStore(rootPath, false)
	if err != nil {
		return err
	}
	defer store.Close()

	removed, err := store.Prune(driver.LiveFingerprints(root))
	if err != nil {
		return fmt.Errorf("failed to prune cache: %w", err)
	}
	fmt.Printf("pruned %d stale cache entries\n", removed)
	return nil
}
