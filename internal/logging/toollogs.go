package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

// ToolLog describes one captured tool output file in the log directory.
type ToolLog struct {
	Path string
	// Name is the log name without the worker suffix, e.g. "lightmaps_dam".
	Name string
	// Index is the worker index, or -1 for single-process steps.
	Index   int
	Size    int64
	ModTime time.Time
}

// ToolLogPath returns the file a tool writes its output to. index < 0 means
// the step has no worker index.
func ToolLogPath(dir, name string, index int) string {
	if index < 0 {
		return filepath.Join(dir, name+".log")
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%d.log", name, index))
}

// FindToolLogs lists the tool logs in dir whose log name matches pattern
// (gobwas/glob syntax, e.g. "lightmaps_*"). An empty pattern matches every
// log. The launcher's own log is never included. Results are ordered by name
// then worker index.
func FindToolLogs(dir, pattern string) ([]ToolLog, error) {
	var matcher glob.Glob
	if pattern != "" {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid log pattern %q: %w", pattern, err)
		}
		matcher = g
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading log directory: %w", err)
	}

	var logs []ToolLog
	for _, entry := range entries {
		fileName := entry.Name()
		if entry.IsDir() || filepath.Ext(fileName) != ".log" || fileName == LogFileName {
			continue
		}

		name, index := splitToolLogName(strings.TrimSuffix(fileName, ".log"))
		if matcher != nil && !matcher.Match(name) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		logs = append(logs, ToolLog{
			Path:    filepath.Join(dir, fileName),
			Name:    name,
			Index:   index,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(logs, func(i, j int) bool {
		if logs[i].Name != logs[j].Name {
			return logs[i].Name < logs[j].Name
		}
		return logs[i].Index < logs[j].Index
	})
	return logs, nil
}

// splitToolLogName separates a trailing "-<n>" worker suffix.
func splitToolLogName(base string) (string, int) {
	i := strings.LastIndexByte(base, '-')
	if i <= 0 {
		return base, -1
	}
	n, err := strconv.Atoi(base[i+1:])
	if err != nil || n < 0 {
		return base, -1
	}
	return base[:i], n
}

// PruneResult reports what PruneToolLogs removed.
type PruneResult struct {
	Removed []ToolLog
	Bytes   int64
	// Errors holds one message per log that could not be removed.
	Errors []string
}

// PruneToolLogs removes the tool logs matching pattern whose operation last
// wrote output before cutoff. The logs of one operation are kept or removed
// together, so a bake never loses some of its worker logs. With dryRun set
// nothing is deleted and Removed lists what would be.
//
// The set of stale logs is captured before anything is removed; logs that
// appear while pruning are left alone.
func PruneToolLogs(dir, pattern string, cutoff time.Time, dryRun bool) (PruneResult, error) {
	logs, err := FindToolLogs(dir, pattern)
	if err != nil {
		return PruneResult{}, err
	}

	newest := make(map[string]time.Time)
	for _, l := range logs {
		if l.ModTime.After(newest[l.Name]) {
			newest[l.Name] = l.ModTime
		}
	}

	var res PruneResult
	for _, l := range logs {
		if !newest[l.Name].Before(cutoff) {
			continue
		}
		if !dryRun {
			if err := os.Remove(l.Path); err != nil && !os.IsNotExist(err) {
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", l.Path, err))
				continue
			}
		}
		res.Removed = append(res.Removed, l)
		res.Bytes += l.Size
	}
	return res, nil
}
