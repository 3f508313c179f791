package tool

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// buildDiffMetadata turns a before/after pair into unified-diff text and
// +/- counts. No tool calls it: the edit and write results carry no diff
// metadata. Line-level diffing (DiffLinesToChars rather than
// DiffMain directly) keeps the patch readable for whole-file edits instead
// of producing a character-by-character diff.
func buildDiffMetadata(path, before, after, baseDir string) (diffText string, additions, deletions int) {
	if before == after {
		return "", 0, 0
	}

	dmp := diffmatchpatch.New()
	a, b, lineArray := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lineArray)

	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			additions += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			deletions += countLines(d.Text)
		}
	}

	patchText := dmp.PatchToText(dmp.PatchMake(before, diffs))
	if patchText == "" {
		return "", additions, deletions
	}

	if relPath := relativePath(path, baseDir); relPath != "" {
		var header strings.Builder
		fmt.Fprintf(&header, "--- %s\n+++ %s\n", relPath, relPath)
		return header.String() + patchText, additions, deletions
	}
	return patchText, additions, deletions
}

// relativePath reports path relative to baseDir for display, falling
// back to the absolute path when that isn't possible.
func relativePath(path, baseDir string) string {
	if path == "" || baseDir == "" {
		return path
	}
	if rel, err := filepath.Rel(baseDir, path); err == nil {
		return rel
	}
	return path
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
