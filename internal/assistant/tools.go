package assistant

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Tool names.
const (
	ToolListTasks       = "list_tasks"
	ToolAddTasks        = "add_tasks"
	ToolEditTasks       = "edit_tasks"
	ToolDeleteTasks     = "delete_tasks"
	ToolCompleteTasks   = "complete_tasks"
	ToolUncompleteTasks = "uncomplete_tasks"
)

const taskFields = `
  "description": { "type": "string", "description": "Longer notes" },
  "priority": { "type": "string", "enum": ["high", "medium", "low"] },
  "dueDate": { "type": "string", "description": "Due date as YYYY-MM-DD; empty clears it" },
  "project": { "type": "string", "description": "Exact project name; empty removes the project" },
  "labels": { "type": "array", "items": { "type": "string" } },
  "subtasks": { "type": "array", "items": { "type": "string" }, "description": "Checklist items to add" }`

const (
	addItemSchema = `{
  "type": "object",
  "required": ["title"],
  "properties": {
    "title": { "type": "string", "minLength": 1 },` + taskFields + `
  }
}`
	editItemSchema = `{
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": { "type": "integer" },
    "title": { "type": "string", "minLength": 1 },
    "completed": { "type": "boolean" },` + taskFields + `
  }
}`
	idItemSchema = `{ "type": "integer" }`
)

// batchSchema wraps an item schema in the {"tasks": [...]} envelope.
func batchSchema(item string) string {
	return `{
  "type": "object",
  "required": ["tasks"],
  "properties": {
    "tasks": { "type": "array", "minItems": 1, "items": ` + item + ` }
  }
}`
}

// idsSchema wraps an item schema in the {"ids": [...]} envelope.
func idsSchema(item string) string {
	return `{
  "type": "object",
  "required": ["ids"],
  "properties": {
    "ids": { "type": "array", "minItems": 1, "items": ` + item + `, "description": "Task ids" }
  }
}`
}

// toolDef describes one tool. Batch tools carry an item schema: the
// envelope is validated as a whole, each item on its own so one bad item
// does not sink the batch.
type toolDef struct {
	name        string
	description string
	schema      string
	item        string
	wrap        func(item string) string
}

var toolDefs = []toolDef{
	{
		name:        ToolListTasks,
		description: "List tasks in a view, optionally narrowed to a project, a label or a search text.",
		schema: `{
  "type": "object",
  "properties": {
    "view": { "type": "string", "enum": ["today", "upcoming", "inbox", "important", "all", "completed"] },
    "project": { "type": "string" },
    "label": { "type": "string" },
    "search": { "type": "string" }
  }
}`,
	},
	{
		name:        ToolAddTasks,
		description: "Create one or many tasks.",
		item:        addItemSchema,
		wrap:        batchSchema,
	},
	{
		name:        ToolEditTasks,
		description: "Edit one or many tasks by id. Only the given fields change.",
		item:        editItemSchema,
		wrap:        batchSchema,
	},
	{
		name:        ToolDeleteTasks,
		description: "Delete tasks by id.",
		item:        idItemSchema,
		wrap:        idsSchema,
	},
	{
		name:        ToolCompleteTasks,
		description: "Mark tasks as completed by id.",
		item:        idItemSchema,
		wrap:        idsSchema,
	},
	{
		name:        ToolUncompleteTasks,
		description: "Mark tasks as pending again by id.",
		item:        idItemSchema,
		wrap:        idsSchema,
	},
}

// parameters is the schema advertised to the model, items included.
func (d toolDef) parameters() string {
	if d.wrap == nil {
		return d.schema
	}
	return d.wrap(d.item)
}

// envelope is the schema the whole document is validated against; items
// are left open.
func (d toolDef) envelope() string {
	if d.wrap == nil {
		return d.schema
	}
	return d.wrap("{}")
}

// Functions returns the tool catalogue sent with the first round.
func Functions() []Function {
	out := make([]Function, 0, len(toolDefs))
	for _, def := range toolDefs {
		out = append(out, Function{
			Name:        def.name,
			Description: def.description,
			Parameters:  json.RawMessage(def.parameters()),
		})
	}
	return out
}

type toolSchema struct {
	envelope *jsonschema.Schema
	item     *jsonschema.Schema
}

var (
	toolSchemasOnce sync.Once
	toolSchemas     map[string]toolSchema
	toolSchemasErr  error
)

func compiledToolSchemas() (map[string]toolSchema, error) {
	toolSchemasOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		schemas := make(map[string]toolSchema, len(toolDefs))
		for _, def := range toolDefs {
			var ts toolSchema
			ts.envelope, toolSchemasErr = compileSchema(compiler, def.name, def.envelope())
			if toolSchemasErr != nil {
				return
			}
			if def.item != "" {
				ts.item, toolSchemasErr = compileSchema(compiler, def.name+"-item", def.item)
				if toolSchemasErr != nil {
					return
				}
			}
			schemas[def.name] = ts
		}
		toolSchemas = schemas
	})
	return toolSchemas, toolSchemasErr
}

func compileSchema(compiler *jsonschema.Compiler, name, schema string) (*jsonschema.Schema, error) {
	url := "tasklane://tools/" + name + ".json"
	if err := compiler.AddResource(url, strings.NewReader(schema)); err != nil {
		return nil, fmt.Errorf("load %s schema: %w", name, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", name, err)
	}
	return compiled, nil
}

// validateArgs checks a normalized argument document against the tool's
// envelope schema.
func validateArgs(tool string, doc any) error {
	schemas, err := compiledToolSchemas()
	if err != nil {
		return err
	}
	ts, ok := schemas[tool]
	if !ok {
		return fmt.Errorf("unknown tool %q", tool)
	}
	return schemaError(ts.envelope.Validate(doc))
}

// validateItem checks one element of a batch against the tool's item
// schema.
func validateItem(tool string, item any) error {
	schemas, err := compiledToolSchemas()
	if err != nil {
		return err
	}
	ts, ok := schemas[tool]
	if !ok || ts.item == nil {
		return fmt.Errorf("tool %q takes no items", tool)
	}
	return schemaError(ts.item.Validate(item))
}

func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if errors.As(err, &ve) {
		return errors.New(strings.Join(schemaMessages(ve, nil), "; "))
	}
	return err
}

func schemaMessages(err *jsonschema.ValidationError, out []string) []string {
	if len(err.Causes) == 0 {
		loc := strings.TrimPrefix(err.InstanceLocation, "/")
		if loc == "" {
			return append(out, err.Message)
		}
		return append(out, fmt.Sprintf("%s: %s", loc, err.Message))
	}
	for _, cause := range err.Causes {
		out = schemaMessages(cause, out)
	}
	return out
}
