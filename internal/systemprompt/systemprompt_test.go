package systemprompt

import (
	"strings"
	"testing"
	"time"

	"github.com/myclaw-dev/myclaw/internal/bootstrap"
)

func TestComposeOmitsEmptySections(t *testing.T) {
	out := Compose(Options{Now: time.Unix(0, 0)})
	if strings.Contains(out, "<bootstrap-files>") {
		t.Error("expected no bootstrap-files section when no files supplied")
	}
	if strings.Contains(out, "Available tools:") {
		t.Error("expected no tools section when no tool names supplied")
	}
	if !strings.Contains(out, defaultIdentity) {
		t.Error("expected default identity text")
	}
	if !strings.Contains(out, "Never fabricate tool results") {
		t.Error("expected safety section")
	}
	if !strings.Contains(out, "Runtime:") {
		t.Error("expected runtime section")
	}
}

func TestComposeOrdering(t *testing.T) {
	out := Compose(Options{
		BootstrapFiles: []bootstrap.File{{Name: "AGENTS", Content: "be nice"}},
		ToolNames:      []string{"Bash", "Read"},
		Model:          "claude-3",
		Now:            time.Unix(0, 0),
	})

	idxIdentity := strings.Index(out, defaultIdentity)
	idxFiles := strings.Index(out, "<bootstrap-files>")
	idxTools := strings.Index(out, "Available tools:")
	idxSafety := strings.Index(out, "Never fabricate")
	idxRuntime := strings.Index(out, "Runtime:")

	if !(idxIdentity < idxFiles && idxFiles < idxTools && idxTools < idxSafety && idxSafety < idxRuntime) {
		t.Errorf("sections out of order: %d %d %d %d %d", idxIdentity, idxFiles, idxTools, idxSafety, idxRuntime)
	}
}

func TestComposeIdentityOverride(t *testing.T) {
	out := Compose(Options{Identity: "Custom identity.", Now: time.Unix(0, 0)})
	if !strings.Contains(out, "Custom identity.") {
		t.Error("expected override identity text")
	}
	if strings.Contains(out, defaultIdentity) {
		t.Error("default identity should not appear when overridden")
	}
}

func TestComposeIncludesModel(t *testing.T) {
	out := Compose(Options{Model: "claude-3-opus", Now: time.Unix(0, 0)})
	if !strings.Contains(out, "claude-3-opus") {
		t.Error("expected model id in runtime section")
	}
}
