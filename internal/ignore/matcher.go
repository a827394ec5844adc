package ignore

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	gitignore "github.com/sabhiram/go-gitignore"
)

const RulesFile = ".docsyncignore"

// Default excludes are prepended to user rules and can be overridden by
// user negation rules, gitignore-style.
var defaultRules = []string{
	".git/",
	".docsync/",
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"target/",
	"venv/",
	".venv/",
	"__pycache__/",
	".mypy_cache/",
	".pytest_cache/",
}

// Matcher decides which paths the tree walk should skip.
type Matcher struct {
	gi *gitignore.GitIgnore
}

func NewMatcher(userRules []string) *Matcher {
	all := make([]string, 0, len(defaultRules)+len(userRules))
	all = append(all, defaultRules...)
	all = append(all, userRules...)
	return &Matcher{gi: gitignore.CompileIgnoreLines(all...)}
}

// ShouldIgnore returns true when relPath should be excluded from the walk.
func (m *Matcher) ShouldIgnore(relPath string, isDir bool) bool {
	relPath = filepath.ToSlash(relPath)
	if relPath == "." || relPath == "" {
		return false
	}
	if isDir && !strings.HasSuffix(relPath, "/") {
		if m.gi.MatchesPath(relPath + "/") {
			return true
		}
	}
	return m.gi.MatchesPath(relPath)
}

// LoadRules reads user rules from .docsyncignore at the project root.
// A missing file is not an error.
func LoadRules(rootPath string) ([]string, error) {
	f, err := os.Open(filepath.Join(rootPath, RulesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	rules := make([]string, 0)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rules = append(rules, line)
	}
	return rules, scanner.Err()
}
