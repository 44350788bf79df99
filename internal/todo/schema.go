package todo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// ExportVersion tags export files.
const ExportVersion = "1.0"

const importSchemaURL = "tasklane://import.schema.json"

// bundledImportSchema is the shape accepted by ParseImport.
const bundledImportSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "tasklane export",
  "type": "object",
  "anyOf": [
    { "required": ["tasks"] },
    { "required": ["projects"] }
  ],
  "properties": {
    "version": { "type": "string" },
    "exportDate": { "type": "string" },
    "taskIdCounter": { "type": "integer", "minimum": 0 },
    "projectIdCounter": { "type": "integer", "minimum": 0 },
    "subtaskIdCounter": { "type": "integer", "minimum": 0 },
    "tasks": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "title"],
        "properties": {
          "id": { "type": "integer", "minimum": 1 },
          "title": { "type": "string", "minLength": 1 },
          "description": { "type": "string" },
          "completed": { "type": "boolean" },
          "completedAt": { "type": ["string", "null"], "format": "date-time" },
          "priority": { "type": "string", "enum": ["high", "medium", "low"] },
          "dueDate": { "type": ["string", "null"] },
          "projectId": { "type": ["integer", "null"] },
          "labels": { "type": "array", "items": { "type": "string" } },
          "subtasks": {
            "type": "array",
            "items": {
              "type": "object",
              "required": ["id"],
              "properties": {
                "id": { "type": "integer", "minimum": 1 },
                "title": { "type": "string" },
                "completed": { "type": "boolean" }
              }
            }
          },
          "createdAt": { "type": "string", "format": "date-time" }
        }
      }
    },
    "projects": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["id", "name"],
        "properties": {
          "id": { "type": "integer", "minimum": 1 },
          "name": { "type": "string", "minLength": 1 },
          "color": { "type": "string" }
        }
      }
    }
  }
}`

var (
	importSchemaOnce sync.Once
	importSchema     *jsonschema.Schema
	importSchemaErr  error
)

func compiledImportSchema() (*jsonschema.Schema, error) {
	importSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true
		if err := compiler.AddResource(importSchemaURL, strings.NewReader(bundledImportSchema)); err != nil {
			importSchemaErr = fmt.Errorf("load import schema: %w", err)
			return
		}
		importSchema, importSchemaErr = compiler.Compile(importSchemaURL)
	})
	return importSchema, importSchemaErr
}

// ExportFile is the document written by Export.
type ExportFile struct {
	Version    string    `json:"version"`
	ExportDate time.Time `json:"exportDate"`
	State
}

// Export renders st as an export document with 2-space indentation and a
// trailing newline.
func Export(st State, now time.Time) ([]byte, error) {
	doc := ExportFile{
		Version:    ExportVersion,
		ExportDate: now.UTC(),
		State:      st,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal export: %w", err)
	}
	return append(data, '\n'), nil
}

// ParseImport validates an export document and returns its state. Any
// problem yields an *ImportFormatError; the returned state is only usable
// when err is nil.
func ParseImport(data []byte) (State, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return State{}, &ImportFormatError{Problems: []error{fmt.Errorf("parse import file: %w", err)}}
	}

	schema, err := compiledImportSchema()
	if err != nil {
		return State{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return State{}, &ImportFormatError{Problems: schemaProblems(err)}
	}

	var file ExportFile
	if err := json.Unmarshal(data, &file); err != nil {
		return State{}, &ImportFormatError{Problems: []error{fmt.Errorf("decode import file: %w", err)}}
	}
	if file.Tasks == nil {
		file.Tasks = []Task{}
	}
	if file.Projects == nil {
		file.Projects = []Project{}
	}

	// Dry run so semantic problems (duplicate ids, bad dates) surface before
	// the caller replaces anything.
	trial := NewStore()
	if err := trial.Restore(file.State); err != nil {
		return State{}, &ImportFormatError{Problems: []error{err}}
	}
	return trial.Snapshot(), nil
}

func schemaProblems(err error) []error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []error{err}
	}
	var out []error
	collectSchemaErrors(&out, ve)
	return out
}

func collectSchemaErrors(out *[]error, err *jsonschema.ValidationError) {
	if err == nil {
		return
	}

	if len(err.Causes) == 0 {
		*out = append(*out, &ValidationError{
			Path: jsonPointerToPath(err.InstanceLocation),
			Err:  fmt.Errorf("%s", err.Message),
		})
		return
	}

	for _, cause := range err.Causes {
		collectSchemaErrors(out, cause)
	}
}

// jsonPointerToPath turns "/tasks/0/title" into "tasks[0].title".
func jsonPointerToPath(ptr string) string {
	ptr = strings.TrimPrefix(ptr, "#")
	ptr = strings.TrimPrefix(ptr, "/")
	if ptr == "" {
		return ""
	}

	var b strings.Builder
	for _, part := range strings.Split(ptr, "/") {
		part = strings.ReplaceAll(part, "~1", "/")
		part = strings.ReplaceAll(part, "~0", "~")
		if part == "" {
			continue
		}
		if idx, err := strconv.Atoi(part); err == nil {
			fmt.Fprintf(&b, "[%d]", idx)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(part)
	}
	return b.String()
}
