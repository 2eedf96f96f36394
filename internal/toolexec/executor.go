// Package toolexec implements the tool catalog agents call: file reading
// and editing, command execution, code search, and the shared message log.
// The executor validates arguments against each tool's JSON schema and
// never returns an error to the loop: every failure becomes an "Error: ..."
// result the model can read and correct.
package toolexec

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ChamsBouzaiene/foreman/internal/engine"
	"github.com/ChamsBouzaiene/foreman/internal/sandbox"
	"github.com/ChamsBouzaiene/foreman/internal/state"
	"github.com/ChamsBouzaiene/foreman/internal/symbols"
)

// Tool is one callable catalog entry.
type Tool struct {
	Name        string
	Description string
	SchemaJSON  string
	Fn          func(ctx context.Context, args map[string]any, callerRole string) string
}

// Executor implements engine.ToolExecutor over the tool catalog.
type Executor struct {
	root  string
	index *symbols.Index
	store *state.Store

	runner sandbox.Runner
	http   *http.Client

	tools    map[string]Tool
	order    []string
	compiled map[string]*gojsonschema.Schema
}

// New builds the executor with the full catalog registered, rooted at the
// generated project's directory.
func New(root string, index *symbols.Index, store *state.Store, runner sandbox.Runner) (*Executor, error) {
	if runner == nil {
		runner = sandbox.NewDefaultRunner()
	}

	e := &Executor{
		root:     root,
		index:    index,
		store:    store,
		runner:   runner,
		http:     &http.Client{Timeout: 30 * time.Second},
		tools:    make(map[string]Tool),
		compiled: make(map[string]*gojsonschema.Schema),
	}

	for _, t := range []Tool{
		e.readFileTool(),
		e.listFilesTool(),
		e.writeFileTool(),
		e.replaceInFileTool(),
		e.searchFilesTool(),
		e.searchSymbolsTool(),
		e.getFileContextTool(),
		e.runCommandTool(),
		e.fetchURLTool(),
		e.postMessageTool(),
	} {
		if err := e.register(t); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func (e *Executor) register(t Tool) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(t.SchemaJSON))
	if err != nil {
		return fmt.Errorf("invalid schema for tool %s: %w", t.Name, err)
	}
	e.tools[t.Name] = t
	e.compiled[t.Name] = schema
	e.order = append(e.order, t.Name)
	return nil
}

// Schemas returns the catalog in registration order, in the form the
// providers need for function calling.
func (e *Executor) Schemas() []engine.ToolSchema {
	out := make([]engine.ToolSchema, 0, len(e.order))
	for _, name := range e.order {
		t := e.tools[name]
		out = append(out, engine.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			JSONSchema:  t.SchemaJSON,
		})
	}
	return out
}

// Execute runs one tool call. Unknown tools, invalid arguments, panics and
// tool failures all come back as text so the calling agent can recover.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]any, callerRole string) (result string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ tool %s panicked: %v", name, r)
			result = fmt.Sprintf("Error: tool %s failed internally: %v", name, r)
		}
	}()

	t, ok := e.tools[name]
	if !ok {
		return fmt.Sprintf("Error: unknown tool %q", name)
	}

	if msg := e.validateArgs(name, args); msg != "" {
		return msg
	}
	return t.Fn(ctx, args, callerRole)
}

func (e *Executor) validateArgs(name string, args map[string]any) string {
	if args == nil {
		args = map[string]any{}
	}
	blob, err := json.Marshal(args)
	if err != nil {
		return fmt.Sprintf("Error: arguments for %s are not serializable: %v", name, err)
	}
	res, err := e.compiled[name].Validate(gojsonschema.NewBytesLoader(blob))
	if err != nil {
		return fmt.Sprintf("Error: failed to validate arguments for %s: %v", name, err)
	}
	if !res.Valid() {
		msg := fmt.Sprintf("Error: invalid arguments for %s:", name)
		for _, issue := range res.Errors() {
			msg += "\n  - " + issue.String()
		}
		return msg
	}
	return ""
}

// stringArg fetches a validated string argument.
func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

// boolArg fetches an optional boolean argument.
func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

// numArg fetches an optional numeric argument (JSON numbers decode as
// float64).
func numArg(args map[string]any, key string) float64 {
	n, _ := args[key].(float64)
	return n
}

// jsonResult marshals a tool result map; marshalling these maps cannot
// realistically fail, but the error path still reports rather than panics.
func jsonResult(fields map[string]any) string {
	blob, err := json.Marshal(fields)
	if err != nil {
		return fmt.Sprintf("Error: failed to encode tool result: %v", err)
	}
	return string(blob)
}

// failure renders the standard failed-result JSON.
func failure(path, msg string) string {
	fields := map[string]any{"status": "failed", "error": msg}
	if path != "" {
		fields["path"] = path
	}
	return jsonResult(fields)
}
