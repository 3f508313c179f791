// Package systemprompt composes the fixed-order system prompt sent
// alongside a message sequence to the provider.
package systemprompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/myclaw-dev/myclaw/internal/bootstrap"
)

const defaultIdentity = "You are a personal AI assistant operating inside a sandboxed workspace on the user's behalf."

const safetyText = "Never fabricate tool results or claim an action succeeded without having performed it. Never attempt to bypass a permission boundary the user has not granted."

// Options parametrises Compose.
type Options struct {
	// Identity overrides the fixed identity text if non-empty.
	Identity string
	// BootstrapFiles are rendered as <file path="NAME"> blocks.
	BootstrapFiles []bootstrap.File
	// ToolNames lists the available tools, rendered as a bullet list.
	ToolNames []string
	// WorkDir is included in the runtime section.
	WorkDir string
	// Model is the model identifier, included in the runtime section
	// if non-empty.
	Model string
	// Platform is the OS platform string; callers typically pass
	// runtime.GOOS.
	Platform string
	// Now is the current time used to render the runtime section;
	// callers pass time.Now() so the function stays deterministic
	// under test.
	Now time.Time
}

// Compose concatenates the identity, bootstrap-files, tools, safety,
// and runtime sections, in that fixed order, separated by blank
// lines. Sections with no content are omitted entirely.
func Compose(opts Options) string {
	var sections []string

	identity := opts.Identity
	if identity == "" {
		identity = defaultIdentity
	}
	sections = append(sections, identity)

	if len(opts.BootstrapFiles) > 0 {
		var b strings.Builder
		b.WriteString("<bootstrap-files>\n")
		for _, f := range opts.BootstrapFiles {
			b.WriteString(fmt.Sprintf("<file path=%q>%s</file>\n", f.Name, f.Content))
		}
		b.WriteString("</bootstrap-files>")
		sections = append(sections, b.String())
	}

	if len(opts.ToolNames) > 0 {
		var b strings.Builder
		b.WriteString("Available tools:\n")
		for _, name := range opts.ToolNames {
			b.WriteString("- ")
			b.WriteString(name)
			b.WriteString("\n")
		}
		b.WriteString("Invoke a tool only when it is necessary to answer or act on the user's request.")
		sections = append(sections, b.String())
	}

	sections = append(sections, safetyText)

	sections = append(sections, runtimeSection(opts))

	return strings.Join(sections, "\n\n")
}

func runtimeSection(opts Options) string {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	var b strings.Builder
	b.WriteString("Runtime:\n")
	b.WriteString("- time: " + now.UTC().Format(time.RFC3339) + "\n")
	if opts.Platform != "" {
		b.WriteString("- platform: " + opts.Platform + "\n")
	}
	if opts.WorkDir != "" {
		b.WriteString("- workdir: " + opts.WorkDir + "\n")
	}
	if opts.Model != "" {
		b.WriteString("- model: " + opts.Model + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
