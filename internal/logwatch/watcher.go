// Package logwatch follows the output files of running tools and publishes
// each completed line on the event bus.
package logwatch

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Iron-Ham/launchkit/internal/event"
	"github.com/Iron-Ham/launchkit/internal/logging"
)

// DefaultDebounce is how long the watcher lets writes settle before reading.
const DefaultDebounce = 50 * time.Millisecond

// maxLine bounds a single published line; longer lines are split.
const maxLine = 4096

// tail is the read position in one log file.
type tail struct {
	offset  int64
	partial []byte
}

// Watcher tails tool logs in one directory. Files appear while a build runs,
// so the directory itself is watched and matching logs are picked up as they
// are created.
type Watcher struct {
	watcher  *fsnotify.Watcher
	dir      string
	pattern  string
	bus      *event.Bus
	logger   *logging.Logger
	debounce time.Duration

	mu    sync.Mutex
	tails map[string]*tail

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// New creates a Watcher for tool logs in dir whose log name matches pattern
// (see logging.FindToolLogs). dir is created if it does not exist.
func New(dir, pattern string, bus *event.Bus, logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	// Reject a bad pattern before any goroutine starts.
	if _, err := logging.FindToolLogs(dir, pattern); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watching %s: %w", dir, err)
	}

	return &Watcher{
		watcher:  fw,
		dir:      dir,
		pattern:  pattern,
		bus:      bus,
		logger:   logger.With("component", "logwatch"),
		debounce: DefaultDebounce,
		tails:    make(map[string]*tail),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// SkipExisting records the current end of every matching log so that only
// output written from now on is published. Call it before the build starts
// when logs from an earlier run may still be present.
func (w *Watcher) SkipExisting() {
	logs, _ := logging.FindToolLogs(w.dir, w.pattern)

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, l := range logs {
		w.tails[l.Path] = &tail{offset: l.Size}
	}
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	go w.watchLoop()
}

// Stop stops watching, publishes whatever the logs gained since the last
// read, and releases the watcher. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		<-w.done
		_ = w.watcher.Close()
		w.Poll()
		w.flushPartial()
	})
}

func (w *Watcher) watchLoop() {
	defer close(w.done)

	timer := time.NewTimer(0)
	<-timer.C
	pending := false

	for {
		select {
		case <-w.stopCh:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !pending {
				pending = true
				timer.Reset(w.debounce)
			}

		case <-timer.C:
			pending = false
			w.Poll()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("log watcher error", "error", err.Error())
		}
	}
}

// Poll reads new output from every matching log and publishes complete
// lines. The watch loop calls it after each burst of writes.
func (w *Watcher) Poll() {
	logs, err := logging.FindToolLogs(w.dir, w.pattern)
	if err != nil {
		w.logger.Warn("listing tool logs failed", "error", err.Error())
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, l := range logs {
		w.readLocked(l)
	}
}

func (w *Watcher) readLocked(l logging.ToolLog) {
	t, ok := w.tails[l.Path]
	if !ok {
		t = &tail{}
		w.tails[l.Path] = t
	}
	if l.Size < t.offset {
		// Rewritten by a new run of the same step.
		t.offset = 0
		t.partial = nil
	}
	if l.Size == t.offset {
		return
	}

	f, err := os.Open(l.Path)
	if err != nil {
		w.logger.Debug("opening tool log failed", "path", l.Path, "error", err.Error())
		return
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(t.offset, io.SeekStart); err != nil {
		return
	}
	data, err := io.ReadAll(f)
	if err != nil {
		w.logger.Debug("reading tool log failed", "path", l.Path, "error", err.Error())
	}
	t.offset += int64(len(data))

	buf := append(t.partial, data...)
	for {
		i := bytes.IndexByte(buf, '\n')
		if i < 0 {
			break
		}
		w.publish(l, buf[:i])
		buf = buf[i+1:]
	}
	for len(buf) > maxLine {
		w.publish(l, buf[:maxLine])
		buf = buf[maxLine:]
	}
	t.partial = append([]byte(nil), buf...)
}

func (w *Watcher) flushPartial() {
	logs, _ := logging.FindToolLogs(w.dir, w.pattern)

	w.mu.Lock()
	defer w.mu.Unlock()
	for _, l := range logs {
		if t := w.tails[l.Path]; t != nil && len(t.partial) > 0 {
			w.publish(l, t.partial)
			t.partial = nil
		}
	}
}

func (w *Watcher) publish(l logging.ToolLog, line []byte) {
	text := string(bytes.TrimRight(line, "\r"))
	if text == "" {
		return
	}
	w.bus.Publish(event.NewToolOutputEvent(l.Path, l.Name, l.Index, text))
}
