package logwatch

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/launchkit/internal/event"
	"github.com/Iron-Ham/launchkit/internal/testutil"
)

type collector struct {
	mu    sync.Mutex
	lines []event.ToolOutputEvent
}

func (c *collector) handle(e event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, e.(event.ToolOutputEvent))
}

func (c *collector) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []string
	for _, l := range c.lines {
		out = append(out, l.Line)
	}
	return out
}

func newWatcher(t *testing.T, dir, pattern string) (*Watcher, *collector) {
	t.Helper()
	bus := event.NewBus(nil)
	c := &collector{}
	bus.Subscribe(event.TypeToolOutput, c.handle)

	w, err := New(dir, pattern, bus, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(w.Stop)
	return w, c
}

func appendTo(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(text); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestWatcher_PublishesLines(t *testing.T) {
	dir := t.TempDir()
	w, c := newWatcher(t, dir, "lightmaps_*")
	w.Start()

	path := filepath.Join(dir, "lightmaps_dam-1.log")
	appendTo(t, path, "loading scenario\r\nbaking ")

	testutil.Eventually(t, 2*time.Second, func() bool {
		return len(c.texts()) == 1
	}, "first line was not published")

	appendTo(t, path, "cluster 3\n")
	w.Stop()

	want := []string{"loading scenario", "baking cluster 3"}
	if diff := cmp.Diff(want, c.texts()); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if first := c.lines[0]; first.Name != "lightmaps_dam" || first.Worker != 1 || first.Path != path {
		t.Errorf("event = %+v", first)
	}
}

func TestWatcher_PatternAndLauncherLog(t *testing.T) {
	dir := t.TempDir()
	w, c := newWatcher(t, dir, "lightmaps_*")

	testutil.WriteFile(t, dir, "lightmaps_dam.log", "merged\n")
	testutil.WriteFile(t, dir, "structure_dam.log", "ignored\n")
	testutil.WriteFile(t, dir, "launchkit.log", `{"msg":"ignored"}`+"\n")
	w.Poll()

	if diff := cmp.Diff([]string{"merged"}, c.texts()); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcher_SkipExisting(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "lightmaps_dam-0.log", "old run\n")
	w, c := newWatcher(t, dir, "")

	w.SkipExisting()
	appendTo(t, path, "new run\n")
	w.Poll()

	if diff := cmp.Diff([]string{"new run"}, c.texts()); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcher_Truncation(t *testing.T) {
	dir := t.TempDir()
	w, c := newWatcher(t, dir, "")

	testutil.WriteFile(t, dir, "cache_dam.log", "first attempt output\n")
	w.Poll()
	testutil.WriteFile(t, dir, "cache_dam.log", "retry\n")
	w.Poll()

	want := []string{"first attempt output", "retry"}
	if diff := cmp.Diff(want, c.texts()); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

func TestWatcher_LongLinesAreSplit(t *testing.T) {
	dir := t.TempDir()
	w, c := newWatcher(t, dir, "")

	testutil.WriteFile(t, dir, "strings_hud.log", strings.Repeat("x", maxLine+10))
	w.Poll()
	w.Stop()

	got := c.texts()
	if len(got) != 2 || len(got[0]) != maxLine || len(got[1]) != 10 {
		t.Errorf("got %d lines", len(got))
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, _ := newWatcher(t, t.TempDir(), "")
	w.Start()
	w.Stop()
	w.Stop()
}

func TestNew_InvalidPattern(t *testing.T) {
	if _, err := New(t.TempDir(), "[", event.NewBus(nil), nil); err == nil {
		t.Error("expected an error for an invalid pattern")
	}
}
