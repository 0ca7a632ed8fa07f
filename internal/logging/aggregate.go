package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// LogEntry is one parsed line of the launcher log.
type LogEntry struct {
	Timestamp time.Time      `json:"time"`
	Level     string         `json:"level"`
	Message   string         `json:"msg"`
	Operation string         `json:"operation,omitempty"`
	Step      string         `json:"step,omitempty"`
	Worker    *int           `json:"worker,omitempty"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// LogFilter selects log entries. Zero-valued fields do not filter.
// Criteria are combined with AND.
type LogFilter struct {
	// Level is the minimum level (DEBUG < INFO < WARN < ERROR).
	Level     string
	StartTime time.Time
	EndTime   time.Time
	Operation string
	Step      string
	// Worker restricts to one fan-out worker when non-nil.
	Worker          *int
	MessageContains string
}

var levelOrder = map[string]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

var standardFields = map[string]bool{
	"time":      true,
	"level":     true,
	"msg":       true,
	"operation": true,
	"step":      true,
	"worker":    true,
}

// AggregateLogs reads {logDir}/launchkit.log and returns its entries sorted
// by timestamp. Lines that are not valid JSON are skipped.
func AggregateLogs(logDir string) ([]LogEntry, error) {
	f, err := os.Open(filepath.Join(logDir, LogFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("no launcher log in %s: %w", logDir, err)
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()

	entries, err := ReadLogEntries(f)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

// ReadLogEntries parses JSON log lines from r in file order.
func ReadLogEntries(r io.Reader) ([]LogEntry, error) {
	scanner := bufio.NewScanner(r)
	const maxLine = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxLine)

	var entries []LogEntry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		entry, err := parseLogEntry(line)
		if err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading log file: %w", err)
	}
	return entries, nil
}

func parseLogEntry(line string) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return LogEntry{}, fmt.Errorf("invalid JSON: %w", err)
	}

	entry := LogEntry{Attrs: make(map[string]any)}
	if s, ok := raw["time"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			entry.Timestamp = t
		}
	}
	entry.Level, _ = raw["level"].(string)
	entry.Message, _ = raw["msg"].(string)
	entry.Operation, _ = raw["operation"].(string)
	entry.Step, _ = raw["step"].(string)
	// encoding/json decodes numbers into float64
	if w, ok := raw["worker"].(float64); ok {
		idx := int(w)
		entry.Worker = &idx
	}

	for k, v := range raw {
		if !standardFields[k] {
			entry.Attrs[k] = v
		}
	}
	return entry, nil
}

// FilterLogs returns the entries matching filter.
func FilterLogs(entries []LogEntry, filter LogFilter) []LogEntry {
	var filtered []LogEntry
	for _, entry := range entries {
		if filter.matches(entry) {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

func (f LogFilter) matches(entry LogEntry) bool {
	if f.Level != "" {
		want, okWant := levelOrder[strings.ToUpper(f.Level)]
		got, okGot := levelOrder[entry.Level]
		if okWant && okGot && got < want {
			return false
		}
	}
	if !f.StartTime.IsZero() && entry.Timestamp.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && entry.Timestamp.After(f.EndTime) {
		return false
	}
	if f.Operation != "" && entry.Operation != f.Operation {
		return false
	}
	if f.Step != "" && entry.Step != f.Step {
		return false
	}
	if f.Worker != nil && (entry.Worker == nil || *entry.Worker != *f.Worker) {
		return false
	}
	if f.MessageContains != "" && !strings.Contains(entry.Message, f.MessageContains) {
		return false
	}
	return true
}

// WriteEntries renders entries to w as "json" (one object per line) or
// "text".
func WriteEntries(w io.Writer, entries []LogEntry, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		for _, e := range entries {
			if err := enc.Encode(e); err != nil {
				return fmt.Errorf("encoding log entry: %w", err)
			}
		}
		return nil
	case "text", "":
		for _, e := range entries {
			if _, err := fmt.Fprintln(w, FormatEntry(e)); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported format %q (supported: json, text)", format)
	}
}

// FormatEntry renders one entry as a single human-readable line.
func FormatEntry(e LogEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%-5s] %s", e.Timestamp.Format("2006-01-02 15:04:05.000"), e.Level, e.Message)

	var ctx []string
	if e.Operation != "" {
		ctx = append(ctx, "op="+e.Operation)
	}
	if e.Step != "" {
		ctx = append(ctx, "step="+e.Step)
	}
	if e.Worker != nil {
		ctx = append(ctx, fmt.Sprintf("worker=%d", *e.Worker))
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}

	if len(e.Attrs) > 0 {
		keys := make([]string, 0, len(e.Attrs))
		for k := range e.Attrs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Attrs[k])
		}
	}
	return b.String()
}
