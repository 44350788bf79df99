// Package todo holds tasks, projects and labels and answers filtered views.
//
// A Store owns every Task and Project. Reads return deep copies, so callers
// re-read by id before mutating instead of keeping references around.
//
// The persisted layout (see State) is:
//
//	{
//	  "tasks": [
//	    {
//	      "id": 1,
//	      "title": "Buy milk",
//	      "description": "",
//	      "completed": false,
//	      "completedAt": null,
//	      "priority": "low",
//	      "dueDate": "2026-10-18",
//	      "projectId": 2,
//	      "labels": ["errands"],
//	      "subtasks": [{"id": 1, "title": "Oat milk", "completed": false}],
//	      "createdAt": "2026-10-18T09:00:00Z"
//	    }
//	  ],
//	  "projects": [{"id": 2, "name": "Home", "color": "#4a90d9"}],
//	  "taskIdCounter": 1,
//	  "projectIdCounter": 2,
//	  "subtaskIdCounter": 1
//	}
//
// # Views
//
//   - today: incomplete tasks due today or earlier (overdue folds into today)
//   - upcoming: incomplete tasks due after today
//   - inbox: incomplete tasks without a project
//   - important: incomplete high-priority tasks
//   - all, completed, project:<id>, label:<name>, search:<text>
//
// Every view is sorted the same way: incomplete first, then priority
// (high, medium, low), then due date with undated tasks last, then newest
// first.
//
// # Import
//
// Imported documents are checked against a bundled JSON Schema before any
// state is replaced. Import is all or nothing.
package todo
