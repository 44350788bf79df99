package assistant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/nibzard/tasklane/internal/dates"
)

// fieldAliases maps accepted task keys, lowercased, to canonical fields.
// Models mix English and Spanish keys and sometimes snake_case.
var fieldAliases = map[string]string{
	"id":                "id",
	"taskid":            "id",
	"task_id":           "id",
	"title":             "title",
	"titulo":            "title",
	"título":            "title",
	"name":              "title",
	"nombre":            "title",
	"text":              "title",
	"description":       "description",
	"descripcion":       "description",
	"descripción":       "description",
	"desc":              "description",
	"notes":             "description",
	"notas":             "description",
	"details":           "description",
	"priority":          "priority",
	"prioridad":         "priority",
	"duedate":           "dueDate",
	"due_date":          "dueDate",
	"due":               "dueDate",
	"date":              "dueDate",
	"deadline":          "dueDate",
	"fecha":             "dueDate",
	"fechavencimiento":  "dueDate",
	"fecha_vencimiento": "dueDate",
	"project":           "project",
	"proyecto":          "project",
	"projectname":       "project",
	"project_name":      "project",
	"labels":            "labels",
	"label":             "labels",
	"tags":              "labels",
	"etiquetas":         "labels",
	"subtasks":          "subtasks",
	"subtareas":         "subtasks",
	"checklist":         "subtasks",
	"completed":         "completed",
	"done":              "completed",
	"completada":        "completed",
	"completado":        "completed",
}

// listAliases maps list_tasks keys to canonical fields.
var listAliases = map[string]string{
	"view":     "view",
	"vista":    "view",
	"filter":   "view",
	"filtro":   "view",
	"project":  "project",
	"proyecto": "project",
	"label":    "label",
	"tag":      "label",
	"etiqueta": "label",
	"search":   "search",
	"query":    "search",
	"text":     "search",
	"buscar":   "search",
}

// batchKeys hold the item list of add_tasks and edit_tasks.
var batchKeys = []string{"tasks", "tareas", "items", "task", "tarea"}

// idKeys hold the id list of the id-based tools.
var idKeys = []string{"ids", "id", "taskids", "task_ids", "tasks", "tareas"}

var priorityAliases = map[string]string{
	"high":       "high",
	"alta":       "high",
	"alto":       "high",
	"urgent":     "high",
	"urgente":    "high",
	"important":  "high",
	"importante": "high",
	"h":          "high",
	"1":          "high",
	"medium":     "medium",
	"media":      "medium",
	"medio":      "medium",
	"normal":     "medium",
	"m":          "medium",
	"2":          "medium",
	"low":        "low",
	"baja":       "low",
	"bajo":       "low",
	"l":          "low",
	"3":          "low",
}

var viewAliases = map[string]string{
	"today":       "today",
	"hoy":         "today",
	"upcoming":    "upcoming",
	"proximas":    "upcoming",
	"próximas":    "upcoming",
	"next":        "upcoming",
	"inbox":       "inbox",
	"bandeja":     "inbox",
	"important":   "important",
	"importante":  "important",
	"importantes": "important",
	"all":         "all",
	"todas":       "all",
	"todos":       "all",
	"completed":   "completed",
	"done":        "completed",
	"completadas": "completed",
}

// relativeDays resolves due-date words relative to today.
var relativeDays = map[string]int{
	"today":     0,
	"hoy":       0,
	"tomorrow":  1,
	"mañana":    1,
	"manana":    1,
	"yesterday": -1,
	"ayer":      -1,
}

// decodeArgs parses raw tool arguments, maps aliases onto canonical fields,
// validates the result against the tool's schema and decodes it into out.
func decodeArgs(tool, raw string, today dates.Date, out any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "{}"
	}
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &MalformedToolCallError{Tool: tool, Err: fmt.Errorf("parse arguments: %w", err)}
	}

	var normalized any
	switch tool {
	case ToolListTasks:
		normalized = normalizeList(doc)
	case ToolAddTasks, ToolEditTasks:
		normalized = normalizeBatch(doc, today)
	case ToolDeleteTasks, ToolCompleteTasks, ToolUncompleteTasks:
		normalized = normalizeIDs(doc)
	default:
		return &MalformedToolCallError{Tool: tool, Err: fmt.Errorf("unknown tool %q", tool)}
	}

	if err := validateArgs(tool, normalized); err != nil {
		return &MalformedToolCallError{Tool: tool, Err: err}
	}

	data, err := json.Marshal(normalized)
	if err != nil {
		return &MalformedToolCallError{Tool: tool, Err: err}
	}
	if err := json.NewDecoder(bytes.NewReader(data)).Decode(out); err != nil {
		return &MalformedToolCallError{Tool: tool, Err: err}
	}
	return nil
}

// decodeItem validates one normalized batch element against the tool's
// item schema and decodes it into out.
func decodeItem(tool string, raw json.RawMessage, out any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	if err := validateItem(tool, doc); err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// canonicalKeys renames keys through aliases. A canonical key present in m
// wins over its aliases; aliases are applied in sorted order.
func canonicalKeys(m map[string]any, aliases map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if canon, ok := aliases[strings.ToLower(k)]; ok && canon == k {
			out[canon] = m[k]
		}
	}
	for _, k := range keys {
		canon, ok := aliases[strings.ToLower(k)]
		if !ok {
			out[k] = m[k]
			continue
		}
		if _, exists := out[canon]; !exists {
			out[canon] = m[k]
		}
	}
	return out
}

func normalizeList(doc any) any {
	m, ok := doc.(map[string]any)
	if !ok {
		return doc
	}
	m = canonicalKeys(m, listAliases)
	if v, ok := m["view"].(string); ok {
		key := strings.ToLower(strings.TrimSpace(v))
		if canon, ok := viewAliases[key]; ok {
			m["view"] = canon
		} else if key == "" {
			delete(m, "view")
		}
	}
	return m
}

func normalizeBatch(doc any, today dates.Date) any {
	var items []any
	switch v := doc.(type) {
	case []any:
		items = v
	case map[string]any:
		list, found := lookupKey(v, batchKeys)
		switch l := list.(type) {
		case []any:
			items = l
		case map[string]any, string:
			items = []any{l}
		case nil:
			if found {
				return v
			}
			// A single task given at the top level.
			items = []any{v}
		default:
			return v
		}
	default:
		return doc
	}

	out := make([]any, 0, len(items))
	for _, item := range items {
		out = append(out, normalizeTask(item, today))
	}
	return map[string]any{"tasks": out}
}

func normalizeTask(item any, today dates.Date) any {
	if s, ok := item.(string); ok {
		return map[string]any{"title": s}
	}
	m, ok := item.(map[string]any)
	if !ok {
		return item
	}
	m = canonicalKeys(m, fieldAliases)

	if v, ok := m["id"]; ok {
		m["id"] = normalizeID(v)
	}
	if v, ok := m["priority"].(string); ok {
		if canon, ok := priorityAliases[strings.ToLower(strings.TrimSpace(v))]; ok {
			m["priority"] = canon
		}
	}
	if v, ok := m["priority"].(json.Number); ok {
		if canon, ok := priorityAliases[v.String()]; ok {
			m["priority"] = canon
		}
	}
	switch v := m["dueDate"].(type) {
	case nil:
		if _, present := m["dueDate"]; present {
			m["dueDate"] = ""
		}
	case string:
		m["dueDate"] = normalizeDueWord(v, today)
	}
	switch v := m["project"].(type) {
	case nil:
		if _, present := m["project"]; present {
			m["project"] = ""
		}
	case json.Number:
		m["project"] = v.String()
	}
	if v, ok := m["labels"]; ok {
		m["labels"] = normalizeStringList(v)
	}
	if v, ok := m["subtasks"]; ok {
		m["subtasks"] = normalizeSubtasks(v)
	}
	if v, ok := m["completed"].(string); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			m["completed"] = b
		}
	}
	return m
}

func normalizeIDs(doc any) any {
	var list any
	switch v := doc.(type) {
	case map[string]any:
		l, found := lookupKey(v, idKeys)
		if !found {
			return v
		}
		list = l
	default:
		list = v
	}

	var items []any
	switch l := list.(type) {
	case []any:
		items = l
	default:
		items = []any{l}
	}
	ids := make([]any, 0, len(items))
	for _, item := range items {
		ids = append(ids, normalizeID(item))
	}
	return map[string]any{"ids": ids}
}

// normalizeID turns a numeric string, or an object carrying an id, into a
// JSON number. Other values are returned unchanged for the schema to reject.
func normalizeID(v any) any {
	switch id := v.(type) {
	case string:
		s := strings.TrimPrefix(strings.TrimSpace(id), "#")
		if _, err := strconv.Atoi(s); err == nil {
			return json.Number(s)
		}
	case map[string]any:
		inner, found := lookupKey(canonicalKeys(id, fieldAliases), []string{"id"})
		if found {
			return normalizeID(inner)
		}
	}
	return v
}

func normalizeDueWord(s string, today dates.Date) string {
	key := strings.ToLower(strings.TrimSpace(s))
	if n, ok := relativeDays[key]; ok {
		return today.AddDays(n).String()
	}
	return strings.TrimSpace(s)
}

func normalizeStringList(v any) any {
	switch l := v.(type) {
	case nil:
		return []any{}
	case string:
		var out []any
		for _, part := range strings.Split(l, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		if out == nil {
			return []any{}
		}
		return out
	}
	return v
}

func normalizeSubtasks(v any) any {
	switch l := v.(type) {
	case string:
		return []any{l}
	case []any:
		out := make([]any, 0, len(l))
		for _, item := range l {
			if m, ok := item.(map[string]any); ok {
				if title, found := lookupKey(canonicalKeys(m, fieldAliases), []string{"title"}); found {
					out = append(out, title)
					continue
				}
			}
			out = append(out, item)
		}
		return out
	}
	return v
}

// lookupKey returns the value of the first key present, matched
// case-insensitively.
func lookupKey(m map[string]any, keys []string) (any, bool) {
	for _, want := range keys {
		for k, v := range m {
			if strings.EqualFold(k, want) {
				return v, true
			}
		}
	}
	return nil, false
}
