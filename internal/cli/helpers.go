package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/docsync-dev/docsync/internal/config"
	"github.com/docsync-dev/docsync/internal/driver"
)

// resolveRoot turns the optional positional path argument into an absolute
// project root.
func resolveRoot(args []string) (string, error) {
	path := "."
	if len(args) > 0 {
		path = args[0]
	}

	rootPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path %q: %w", path, err)
	}
	info, err := os.Stat(rootPath)
	if err != nil {
		return "", fmt.Errorf("failed to access path %q: %w", path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path %q is not a directory", path)
	}
	return rootPath, nil
}

func newLogger(cmd *cobra.Command) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if verbose, err := cmd.Flags().GetBool("verbose"); err == nil && verbose {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.WarnLevel)
	}
	return logger
}

// loadRunConfig merges .docsync.yaml with command-line overrides.
func loadRunConfig(cmd *cobra.Command, rootPath string) (*config.Config, error) {
	cfg, err := config.Load(rootPath)
	if err != nil {
		return nil, err
	}
	if concurrency, err := cmd.Flags().GetInt("concurrency"); err == nil && concurrency > 0 {
		cfg.Concurrency = concurrency
	}
	if model, err := cmd.Flags().GetString("model"); err == nil && model != "" {
		cfg.Model = model
	}
	return cfg, nil
}

func printReport(report *driver.Report, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("status: %s\n", report.Status)
	fmt.Printf("processed %d files, %d capability calls\n", len(report.Processed), report.Calls)
	if len(report.Rewritten) > 0 {
		fmt.Printf("rewrote docstrings in %d files\n", len(report.Rewritten))
	}
	for _, warning := range report.Warnings {
		fmt.Fprintf(os.Stderr, "warning: %s: %s (%s)\n", warning.Path, warning.Message, warning.Kind)
	}
	if report.Persisted {
		fmt.Printf("%s and %s/%s updated\n", config.SummaryFile, config.DocsyncDir, "state.json")
	} else {
		fmt.Println("nothing persisted")
	}
	return nil
}
