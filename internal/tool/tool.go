// Package tool defines the contract every built-in tool (read, edit,
// bash, grep, ...) implements, plus the shared Context/Result types the
// invoker (invoke.go) and the Eino function-calling adapter both use to
// talk to them.
package tool

import (
	"context"
	"encoding/json"

	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Tool is implemented by every tool the run loop can dispatch a call to.
type Tool interface {
	// ID is the name the model refers to this tool by in a tool call.
	ID() string

	// Description is the model-facing usage text for this tool.
	Description() string

	// Parameters is the JSON Schema describing this tool's arguments.
	Parameters() json.RawMessage

	// Execute runs the tool against input, scoped by toolCtx.
	Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)

	// EinoTool adapts this tool to Eino's function-calling interface.
	EinoTool() einotool.InvokableTool
}

// Context is the per-call state a tool needs beyond its JSON arguments:
// which session and workspace it's running in, how to report interim
// progress, and how to notice cancellation.
type Context struct {
	SessionID string
	CallID    string
	WorkDir   string
	AbortCh   <-chan struct{}
	Extra     map[string]any

	// OnMetadata, if set, is called as a tool makes progress so a
	// caller can stream interim state (e.g. bash's running output)
	// before the final Result is ready.
	OnMetadata func(title string, meta map[string]any)
}

// SetMetadata reports interim progress via OnMetadata, a no-op if unset.
func (c *Context) SetMetadata(title string, meta map[string]any) {
	if c.OnMetadata != nil {
		c.OnMetadata(title, meta)
	}
}

// IsAborted reports whether AbortCh has fired.
func (c *Context) IsAborted() bool {
	select {
	case <-c.AbortCh:
		return true
	default:
		return false
	}
}

// Result is what a tool hands back after a call completes successfully;
// a failed call returns a non-nil error from Execute instead.
type Result struct {
	Title       string         `json:"title"`
	Output      string         `json:"output"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Attachments []Attachment   `json:"attachments,omitempty"`
}

// Attachment represents a file attachment.
type Attachment struct {
	Filename  string `json:"filename"`
	MediaType string `json:"mediaType"`
	URL       string `json:"url"` // data: URL or file path
}

// BaseTool is a Tool built from plain fields and a closure, for tools
// whose Execute needs no extra state beyond their workDir.
type BaseTool struct {
	id          string
	description string
	parameters  json.RawMessage
	workDir     string
	execute     func(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error)
}

// NewBaseTool builds a BaseTool; workDir is threaded into the Eino
// adapter so InvokableRun sees the same working directory Execute does.
func NewBaseTool(id, description string, params json.RawMessage, workDir string, execute func(context.Context, json.RawMessage, *Context) (*Result, error)) *BaseTool {
	return &BaseTool{
		id:          id,
		description: description,
		parameters:  params,
		workDir:     workDir,
		execute:     execute,
	}
}

func (t *BaseTool) ID() string                  { return t.id }
func (t *BaseTool) Description() string         { return t.description }
func (t *BaseTool) Parameters() json.RawMessage { return t.parameters }

func (t *BaseTool) Execute(ctx context.Context, input json.RawMessage, toolCtx *Context) (*Result, error) {
	return t.execute(ctx, input, toolCtx)
}

// EinoTool adapts this tool to Eino's function-calling interface.
func (t *BaseTool) EinoTool() einotool.InvokableTool {
	return &einoToolWrapper{tool: t, workDir: t.workDir}
}

// einoToolWrapper adapts a Tool to Eino's InvokableTool interface, for
// callers that drive tool execution through an Eino agent executor
// rather than through Invoker directly.
type einoToolWrapper struct {
	tool    Tool
	workDir string
}

// Info describes the wrapped tool in Eino's schema.
func (w *einoToolWrapper) Info(ctx context.Context) (*schema.ToolInfo, error) {
	params := parseJSONSchemaToParams(w.tool.Parameters())
	return &schema.ToolInfo{
		Name:        w.tool.ID(),
		Desc:        w.tool.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(params),
	}, nil
}

// InvokableRun executes the wrapped tool outside of Invoker, scoped to
// the workDir it was registered with; there is no session or
// cancellation channel to forward in this path.
func (w *einoToolWrapper) InvokableRun(ctx context.Context, argsJSON string, opts ...einotool.Option) (string, error) {
	toolCtx := &Context{WorkDir: w.workDir}

	result, err := w.tool.Execute(ctx, json.RawMessage(argsJSON), toolCtx)
	if err != nil {
		return "", err
	}

	return result.Output, nil
}

// parseJSONSchemaToParams converts JSON Schema to Eino ParameterInfo.
func parseJSONSchemaToParams(schemaJSON json.RawMessage) map[string]*schema.ParameterInfo {
	var jsonSchema struct {
		Properties map[string]struct {
			Type        string `json:"type"`
			Description string `json:"description"`
		} `json:"properties"`
		Required []string `json:"required"`
	}

	if err := json.Unmarshal(schemaJSON, &jsonSchema); err != nil {
		return nil
	}

	requiredSet := make(map[string]bool)
	for _, r := range jsonSchema.Required {
		requiredSet[r] = true
	}

	params := make(map[string]*schema.ParameterInfo)
	for name, prop := range jsonSchema.Properties {
		paramType := schema.String
		switch prop.Type {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}

		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     prop.Description,
			Required: requiredSet[name],
		}
	}

	return params
}
