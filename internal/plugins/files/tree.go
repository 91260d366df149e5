package files

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dshills/bluebird/internal/watch"
)

// Kind tells files and folders apart.
type Kind string

// Entry kinds.
const (
	KindFile   Kind = "file"
	KindFolder Kind = "folder"
)

// Entry is a node of the project file tree.
type Entry struct {
	Name     string  `json:"name"`
	Kind     Kind    `json:"kind"`
	Children []Entry `json:"children,omitempty"`
}

// Count returns the number of entries in the subtree, including e.
func (e Entry) Count() int {
	n := 1
	for _, c := range e.Children {
		n += c.Count()
	}
	return n
}

// Find returns the entry at the slash-separated path relative to e.
func (e Entry) Find(rel string) (Entry, bool) {
	rel = strings.Trim(filepath.ToSlash(rel), "/")
	if rel == "" || rel == "." {
		return e, true
	}
	head, tail, _ := strings.Cut(rel, "/")
	for _, c := range e.Children {
		if c.Name == head {
			return c.Find(tail)
		}
	}
	return Entry{}, false
}

// BuildTree reads dir recursively. Folders sort before files, then by
// name. Paths matched by ignore are left out; unreadable subdirectories
// appear empty.
func BuildTree(dir string, ignore *watch.Ignore) (Entry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return Entry{}, err
	}
	root := Entry{Name: filepath.Base(dir), Kind: KindFile}
	if info.IsDir() {
		root.Kind = KindFolder
		root.Children = readDir(dir, "", ignore)
	}
	return root, nil
}

func readDir(abs, rel string, ignore *watch.Ignore) []Entry {
	dirents, err := os.ReadDir(abs)
	if err != nil {
		return nil
	}

	out := make([]Entry, 0, len(dirents))
	for _, d := range dirents {
		childRel := d.Name()
		if rel != "" {
			childRel = rel + "/" + d.Name()
		}
		isDir := d.IsDir()
		if ignore.Match(childRel, isDir) {
			continue
		}
		e := Entry{Name: d.Name(), Kind: KindFile}
		if isDir {
			e.Kind = KindFolder
			e.Children = readDir(filepath.Join(abs, d.Name()), childRel, ignore)
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind == KindFolder
		}
		return out[i].Name < out[j].Name
	})
	return out
}
