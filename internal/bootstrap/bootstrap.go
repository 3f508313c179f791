// Package bootstrap loads the fixed set of optional markdown files that
// seed a workspace's system prompt.
package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Names is the fixed, ordered list of candidate bootstrap file stems.
var Names = []string{"AGENTS", "SOUL", "USER", "TOOLS", "IDENTITY", "MEMORY", "HEARTBEAT", "BOOTSTRAP"}

const (
	// DefaultPerFileCap truncates any single file's content.
	DefaultPerFileCap = 50_000
	// DefaultTotalCap bounds the sum of all loaded content.
	DefaultTotalCap = 200_000
)

// File is one loaded bootstrap document.
type File struct {
	Name    string
	Content string
}

// Options configures Load's size caps.
type Options struct {
	PerFileCap int
	TotalCap   int
}

// DefaultOptions returns the spec-mandated default caps.
func DefaultOptions() Options {
	return Options{PerFileCap: DefaultPerFileCap, TotalCap: DefaultTotalCap}
}

// Load reads Names in order from dir (each as "<name>.md"), skipping
// any that are missing, unreadable, or whitespace-only after trim.
// Each file's content is truncated to PerFileCap. Loading stops once
// the running total would exceed TotalCap; the file that would have
// crossed it contributes only the prefix that fits.
func Load(dir string, opts Options) ([]File, error) {
	if opts.PerFileCap <= 0 {
		opts.PerFileCap = DefaultPerFileCap
	}
	if opts.TotalCap <= 0 {
		opts.TotalCap = DefaultTotalCap
	}

	var out []File
	total := 0

	for _, name := range Names {
		path := filepath.Join(dir, name+".md")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			continue // unreadable: skip, per spec
		}

		content := string(data)
		if strings.TrimSpace(content) == "" {
			continue
		}

		content = truncate(content, opts.PerFileCap)

		remaining := opts.TotalCap - total
		if remaining <= 0 {
			break
		}
		if len(content) > remaining {
			content = truncate(content, remaining)
			out = append(out, File{Name: name, Content: content})
			total += len(content)
			break
		}

		out = append(out, File{Name: name, Content: content})
		total += len(content)
	}

	return out, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// ScaffoldDefault writes a minimal AGENTS.md into dir if no such file
// already exists. It never overwrites an existing file.
func ScaffoldDefault(dir string) error {
	path := filepath.Join(dir, "AGENTS.md")
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("bootstrap: stat %s: %w", path, err)
	}

	const content = "# AGENTS\n\nThis workspace has no project-specific instructions yet.\n"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("bootstrap: mkdir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("bootstrap: write %s: %w", path, err)
	}
	return nil
}
