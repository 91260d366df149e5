package watch

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultIgnore lists patterns skipped in every project.
var DefaultIgnore = []string{".git/", ".designer/", "*.swp", "*~"}

// Ignore matches slash-separated relative paths against gitignore-style
// patterns:
//   - *.log              any file ending in .log, at any depth
//   - /build/            the build directory at the root only
//   - **/node_modules/** anything below a node_modules directory
//   - !keep.log          re-include a path excluded earlier
//
// The last matching pattern wins.
type Ignore struct {
	rules []rule
}

type rule struct {
	original string
	g        glob.Glob
	negation bool
	dirOnly  bool
	rooted   bool
	hasSlash bool
}

// NewIgnore compiles patterns.
func NewIgnore(patterns ...string) (*Ignore, error) {
	ig := &Ignore{}
	if err := ig.Add(patterns...); err != nil {
		return nil, err
	}
	return ig, nil
}

// Add compiles and appends patterns. Blank lines and comments are skipped.
func (ig *Ignore) Add(patterns ...string) error {
	for _, pattern := range patterns {
		pattern = strings.TrimRight(pattern, " \t\r")
		if pattern == "" || strings.HasPrefix(pattern, "#") {
			continue
		}

		r := rule{original: pattern}
		if strings.HasPrefix(pattern, "!") {
			r.negation = true
			pattern = pattern[1:]
		}
		if strings.HasSuffix(pattern, "/") {
			r.dirOnly = true
			pattern = strings.TrimSuffix(pattern, "/")
		}
		if strings.HasPrefix(pattern, "/") {
			r.rooted = true
			pattern = pattern[1:]
		}
		r.hasSlash = strings.Contains(pattern, "/")

		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return fmt.Errorf("ignore pattern %q: %w", r.original, err)
		}
		r.g = g
		ig.rules = append(ig.rules, r)
	}
	return nil
}

// AddFromFile appends the patterns of a .gitignore-style file. A missing
// file is not an error.
func (ig *Ignore) AddFromFile(name string) error {
	f, err := os.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return ig.Add(lines...)
}

// Len returns the number of rules.
func (ig *Ignore) Len() int {
	if ig == nil {
		return 0
	}
	return len(ig.rules)
}

// Match reports whether rel, a path relative to the project root, is
// ignored. A path is also ignored when one of its parent directories is.
func (ig *Ignore) Match(rel string, isDir bool) bool {
	if ig == nil || len(ig.rules) == 0 {
		return false
	}
	rel = strings.TrimPrefix(filepath.ToSlash(rel), "./")
	if rel == "" || rel == "." {
		return false
	}

	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if ig.matchOne(strings.Join(parts[:i], "/"), true) {
			return true
		}
	}
	return ig.matchOne(rel, isDir)
}

// MatchPath is Match for an absolute path below root.
func (ig *Ignore) MatchPath(root, name string, isDir bool) bool {
	rel, err := filepath.Rel(root, name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	return ig.Match(rel, isDir)
}

func (ig *Ignore) matchOne(rel string, isDir bool) bool {
	ignored := false
	base := path.Base(rel)
	for _, r := range ig.rules {
		if r.dirOnly && !isDir {
			continue
		}
		var hit bool
		if r.rooted || r.hasSlash {
			hit = r.g.Match(rel)
		} else {
			hit = r.g.Match(base)
		}
		if hit {
			ignored = !r.negation
		}
	}
	return ignored
}
