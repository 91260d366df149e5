// Package watch reports project file changes.
//
// A Watcher wraps fsnotify with recursive directory registration, ignore
// patterns and per-path debouncing: rapid changes to one path are
// coalesced into a single Event whose Op combines every operation seen.
package watch

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the coalescing window when none is configured.
const DefaultDebounce = 100 * time.Millisecond

// Errors returned by watcher operations.
var (
	ErrClosed       = errors.New("watcher is closed")
	ErrPathNotExist = errors.New("path does not exist")
)

// Op is a set of file system operations.
type Op uint32

// Operations.
const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

var opNames = []struct {
	op   Op
	name string
}{
	{OpCreate, "create"},
	{OpWrite, "write"},
	{OpRemove, "remove"},
	{OpRename, "rename"},
	{OpChmod, "chmod"},
}

// String returns the operations joined by "|", e.g. "create|write".
func (op Op) String() string {
	var names []string
	for _, n := range opNames {
		if op.Has(n.op) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// Has reports whether op includes o.
func (op Op) Has(o Op) bool {
	return op&o == o
}

// Event is a debounced change of one path.
type Event struct {
	Path string
	Op   Op
	At   time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithIgnore skips paths matched by ig, relative to the watched root.
func WithIgnore(ig *Ignore) Option {
	return func(w *Watcher) {
		w.ignore = ig
	}
}

// WithDebounce sets the coalescing window.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithBuffer sets the capacity of the Events channel.
func WithBuffer(n int) Option {
	return func(w *Watcher) {
		if n > 0 {
			w.bufSize = n
		}
	}
}

type pending struct {
	event Event
	timer *time.Timer
}

// Watcher watches one directory tree.
type Watcher struct {
	fsw     *fsnotify.Watcher
	ignore  *Ignore
	delay   time.Duration
	bufSize int

	mu      sync.Mutex
	root    string
	dirs    map[string]bool
	pending map[string]*pending
	closed  bool

	events  chan Event
	errors  chan error
	closeCh chan struct{}
	wg      sync.WaitGroup
}

// New creates a watcher. Call Watch to start receiving events.
func New(opts ...Option) (*Watcher, error) {
	w := &Watcher{
		delay:   DefaultDebounce,
		bufSize: 100,
		dirs:    make(map[string]bool),
		pending: make(map[string]*pending),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.fsw = fsw
	w.events = make(chan Event, w.bufSize)
	w.errors = make(chan error, w.bufSize)

	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Watch registers root and every non-ignored directory below it.
// Directories created later are added automatically.
func (w *Watcher) Watch(root string) error {
	abs, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrPathNotExist
		}
		return err
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	w.root = abs
	w.mu.Unlock()

	if !info.IsDir() {
		return w.add(abs)
	}
	return w.addTree(abs)
}

// Root returns the watched root.
func (w *Watcher) Root() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.root
}

// Unwatch stops watching every directory.
func (w *Watcher) Unwatch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for dir := range w.dirs {
		_ = w.fsw.Remove(dir)
	}
	clear(w.dirs)
	w.root = ""
}

// Events returns the debounced event channel.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns watcher errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Watched returns the number of registered directories.
func (w *Watcher) Watched() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.dirs)
}

// Close stops the watcher and closes its channels.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for p, pe := range w.pending {
		pe.timer.Stop()
		delete(w.pending, p)
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return err
}

// Flush delivers every pending event immediately.
func (w *Watcher) Flush() {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for p, pe := range w.pending {
		pe.timer.Stop()
		paths = append(paths, p)
	}
	w.mu.Unlock()

	for _, p := range paths {
		w.fire(p)
	}
}

func (w *Watcher) add(dir string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if w.dirs[dir] {
		return nil
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = true
	return nil
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && w.ignored(p, true) {
			return filepath.SkipDir
		}
		if err := w.add(p); err != nil {
			if errors.Is(err, ErrClosed) {
				return err
			}
			w.sendError(err)
		}
		return nil
	})
}

func (w *Watcher) ignored(name string, isDir bool) bool {
	w.mu.Lock()
	root := w.root
	w.mu.Unlock()
	if root == "" {
		return false
	}
	return w.ignore.MatchPath(root, name, isDir)
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.closeCh:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.sendError(err)
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	op := convertOp(ev.Op)
	if op == 0 {
		return
	}

	isDir := false
	if op.Has(OpCreate) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			isDir = true
		}
	}
	if w.ignored(ev.Name, isDir) {
		return
	}
	if isDir {
		_ = w.addTree(ev.Name)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if pe, ok := w.pending[ev.Name]; ok {
		pe.event.Op |= op
		pe.event.At = time.Now()
		pe.timer.Reset(w.delay)
		return
	}
	name := ev.Name
	w.pending[name] = &pending{
		event: Event{Path: name, Op: op, At: time.Now()},
		timer: time.AfterFunc(w.delay, func() { w.fire(name) }),
	}
}

func (w *Watcher) fire(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	pe, ok := w.pending[name]
	if !ok || w.closed {
		return
	}
	delete(w.pending, name)

	select {
	case w.events <- pe.event:
	default:
		select {
		case w.errors <- errors.New("event channel full, dropping " + name):
		default:
		}
	}
}

func (w *Watcher) sendError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case w.errors <- err:
	default:
	}
}

func convertOp(fsOp fsnotify.Op) Op {
	var op Op
	if fsOp.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if fsOp.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if fsOp.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if fsOp.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if fsOp.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}
