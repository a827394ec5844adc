package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/docsync-dev/docsync/internal/config"
	"github.com/docsync-dev/docsync/internal/driver"
	"github.com/docsync-dev/docsync/internal/state"
	"github.com/docsync-dev/docsync/internal/tree"
)

type statusOutput struct {
	Changed []string `json:"changed"`
	Deleted []string `json:"deleted"`
	Tracked int      `json:"tracked"`
	Scanned int      `json:"scanned"`
}

// RunStatus reports what the next run would regenerate. It walks and
// fingerprints but never calls the summarization capability.
func RunStatus(cmd *cobra.Command, args []string) error {
	rootPath, err := resolveRoot(args)
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return fmt.Errorf("failed to read --json flag: %w", err)
	}

	st, err := state.Load(filepath.Join(rootPath, config.DocsyncDir))
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	walker, err := driver.LoadWalker(rootPath, nil)
	if err != nil {
		return err
	}
	root, _, err := walker.Build(rootPath)
	if err != nil {
		return err
	}

	current := make(map[string]string)
	for _, file := range tree.Files(root) {
		current[file.Rel] = file.File.Fingerprint
	}
	currentSet := make(map[string]bool, len(current))
	for rel := range current {
		currentSet[rel] = true
	}

	changed := st.ChangedFiles(current)
	deleted := st.DeletedFiles(currentSet)
	sort.Strings(changed)
	sort.Strings(deleted)

	out := statusOutput{
		Changed: changed,
		Deleted: deleted,
		Tracked: len(st.Files),
		Scanned: len(current),
	}

	if asJSON {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("scanned %d files, %d tracked from last run\n", out.Scanned, out.Tracked)
	if len(changed) == 0 && len(deleted) == 0 {
		fmt.Println("everything up to date")
		return nil
	}
	for _, rel := range changed {
		fmt.Printf("  changed: %s\n", rel)
	}
	for _, rel := range deleted {
		fmt.Printf("  deleted: %s\n", rel)
	}
	return nil
}
