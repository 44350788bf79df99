package server

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nibzard/tasklane/internal/history"
	"github.com/nibzard/tasklane/internal/todo"
	"github.com/nibzard/tasklane/internal/usage"
	"github.com/nibzard/tasklane/internal/workspace"
)

// maxImportSize caps the import request body.
const maxImportSize = 8 << 20

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, ws *workspace.Workspace) {
	e.GET("/healthz", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	e.GET("/api/tasks", listTasks(ws))
	e.POST("/api/tasks", createTask(ws))
	e.GET("/api/tasks/:id", getTask(ws))
	e.PATCH("/api/tasks/:id", patchTask(ws))
	e.DELETE("/api/tasks/:id", deleteTask(ws))
	e.POST("/api/tasks/:id/subtasks", addSubtask(ws))
	e.POST("/api/tasks/:id/subtasks/:sid/toggle", toggleSubtask(ws))
	e.DELETE("/api/tasks/:id/subtasks/:sid", deleteSubtask(ws))

	e.GET("/api/projects", listProjects(ws))
	e.POST("/api/projects", createProject(ws))
	e.PATCH("/api/projects/:id", patchProject(ws))
	e.DELETE("/api/projects/:id", deleteProject(ws))

	e.GET("/api/counts", getCounts(ws))

	e.POST("/api/assistant", postAssistant(ws))
	e.GET("/api/assistant/history", getHistory(ws))
	e.DELETE("/api/assistant/history", clearHistory(ws))
	e.GET("/api/usage", getUsage(ws))

	e.GET("/api/export", exportData(ws))
	e.POST("/api/import", importData(ws))
	e.DELETE("/api/data", clearData(ws))
}

type tasksResponse struct {
	View  string      `json:"view"`
	Tasks []todo.Task `json:"tasks"`
}

type taskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Priority    string   `json:"priority"`
	DueDate     string   `json:"dueDate"`
	ProjectID   *int     `json:"projectId"`
	Labels      []string `json:"labels"`
	Subtasks    []string `json:"subtasks"`
	Completed   bool     `json:"completed"`
}

// taskPatchRequest leaves absent fields alone. dueDate "" clears the due
// date and projectId 0 moves the task to the inbox.
type taskPatchRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Priority    *string   `json:"priority"`
	DueDate     *string   `json:"dueDate"`
	ProjectID   *int      `json:"projectId"`
	Labels      *[]string `json:"labels"`
	Completed   *bool     `json:"completed"`
	AddSubtasks []string  `json:"addSubtasks"`
}

type projectRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

type projectResponse struct {
	todo.Project
	OpenTasks int `json:"openTasks"`
}

type assistantRequest struct {
	Message string `json:"message"`
}

type assistantResponse struct {
	Text       string `json:"text"`
	RequestID  string `json:"requestId,omitempty"`
	Tool       string `json:"tool,omitempty"`
	Summarized bool   `json:"summarized"`
	Error      string `json:"error,omitempty"`
}

func listTasks(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		view, err := todo.ParseView(c.QueryParam("view"))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		var tasks []todo.Task
		_ = ws.View(func(s *todo.Store) error {
			tasks = s.Query(view)
			return nil
		})
		return c.JSON(http.StatusOK, tasksResponse{View: view.String(), Tasks: tasks})
	}
}

func createTask(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req taskRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		fields := todo.NewTask{
			Title:       req.Title,
			Description: req.Description,
			DueDate:     req.DueDate,
			ProjectID:   req.ProjectID,
			Labels:      req.Labels,
			Subtasks:    req.Subtasks,
			Completed:   req.Completed,
		}
		if req.Priority != "" {
			p, err := todo.ParsePriority(req.Priority)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			fields.Priority = p
		}

		var task todo.Task
		err := ws.Update(c.Request().Context(), func(s *todo.Store) error {
			id, err := s.AddTask(fields)
			if err != nil {
				return err
			}
			task, err = s.Get(id)
			return err
		})
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func getTask(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		var task todo.Task
		if err := ws.View(func(s *todo.Store) error {
			task, err = s.Get(id)
			return err
		}); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, task)
	}
}

func patchTask(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		var req taskPatchRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		patch := todo.Patch{
			Title:       req.Title,
			Description: req.Description,
			DueDate:     req.DueDate,
			ProjectID:   req.ProjectID,
			Labels:      req.Labels,
			Completed:   req.Completed,
			AddSubtasks: req.AddSubtasks,
		}
		if req.Priority != nil {
			p, err := todo.ParsePriority(*req.Priority)
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, err.Error())
			}
			patch.Priority = &p
		}
		return updateAndReturn(c, ws, id, func(s *todo.Store) error {
			return s.EditTask(id, patch)
		})
	}
}

func deleteTask(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		var removed todo.Task
		if err := ws.Update(c.Request().Context(), func(s *todo.Store) error {
			removed, err = s.DeleteTask(id)
			return err
		}); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, removed)
	}
}

func addSubtask(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		var req struct {
			Title string `json:"title"`
		}
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		var task todo.Task
		if err := ws.Update(c.Request().Context(), func(s *todo.Store) error {
			if _, err := s.AddSubtask(id, req.Title); err != nil {
				return err
			}
			task, err = s.Get(id)
			return err
		}); err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func toggleSubtask(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		sid, err := pathID(c, "sid")
		if err != nil {
			return err
		}
		return updateAndReturn(c, ws, id, func(s *todo.Store) error {
			return s.ToggleSubtask(id, sid)
		})
	}
}

func deleteSubtask(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		sid, err := pathID(c, "sid")
		if err != nil {
			return err
		}
		return updateAndReturn(c, ws, id, func(s *todo.Store) error {
			return s.DeleteSubtask(id, sid)
		})
	}
}

func listProjects(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		out := make([]projectResponse, 0)
		_ = ws.View(func(s *todo.Store) error {
			counts := s.Counts()
			for _, p := range s.Projects() {
				out = append(out, projectResponse{Project: p, OpenTasks: counts.Projects[p.ID]})
			}
			return nil
		})
		return c.JSON(http.StatusOK, out)
	}
}

func createProject(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req projectRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		var name, color string
		if req.Name != nil {
			name = *req.Name
		}
		if req.Color != nil {
			color = *req.Color
		}
		var p todo.Project
		if err := ws.Update(c.Request().Context(), func(s *todo.Store) error {
			id, err := s.AddProject(name, color)
			if err != nil {
				return err
			}
			p, err = s.Project(id)
			return err
		}); err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, p)
	}
}

func patchProject(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		var req projectRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		var p todo.Project
		if err := ws.Update(c.Request().Context(), func(s *todo.Store) error {
			if err := s.EditProject(id, todo.ProjectPatch{Name: req.Name, Color: req.Color}); err != nil {
				return err
			}
			p, err = s.Project(id)
			return err
		}); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, p)
	}
}

func deleteProject(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := pathID(c, "id")
		if err != nil {
			return err
		}
		n, err := ws.DeleteProject(c.Request().Context(), id, confirmParam(c))
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]int{"tasksMoved": n})
	}
}

func getCounts(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		var counts todo.Counts
		_ = ws.View(func(s *todo.Store) error {
			counts = s.Counts()
			return nil
		})
		return c.JSON(http.StatusOK, counts)
	}
}

func postAssistant(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req assistantRequest
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		reply, err := ws.Ask(c.Request().Context(), req.Message)
		if err != nil {
			return err
		}
		resp := assistantResponse{
			Text:       reply.Text,
			RequestID:  reply.RequestID,
			Summarized: reply.Summarized,
		}
		if reply.Result != nil {
			resp.Tool = reply.Result.Tool
		}
		if reply.Err != nil {
			// An empty message is the caller's fault; every other assistant
			// failure is reported in the body.
			if he := toHTTPError(reply.Err); he.Code == http.StatusBadRequest {
				return he
			}
			resp.Error = reply.Err.Error()
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func getHistory(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		msgs := ws.History()
		if msgs == nil {
			msgs = []history.Message{}
		}
		return c.JSON(http.StatusOK, msgs)
	}
}

func clearHistory(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := ws.ClearHistory(c.Request().Context()); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getUsage(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		stats := ws.Usage()
		if stats.Events == nil {
			stats.Events = []usage.Event{}
		}
		return c.JSON(http.StatusOK, stats)
	}
}

func exportData(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := ws.Export(c.Request().Context())
		if err != nil {
			return err
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="tasklane-export.json"`)
		return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
	}
}

func importData(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		data, err := io.ReadAll(io.LimitReader(c.Request().Body, maxImportSize))
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
		}
		sum, err := ws.Import(c.Request().Context(), data)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, sum)
	}
}

func clearData(ws *workspace.Workspace) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := ws.ClearAll(c.Request().Context(), confirmParam(c)); err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func updateAndReturn(c echo.Context, ws *workspace.Workspace, id int, fn func(*todo.Store) error) error {
	var task todo.Task
	if err := ws.Update(c.Request().Context(), func(s *todo.Store) error {
		if err := fn(s); err != nil {
			return err
		}
		var err error
		task, err = s.Get(id)
		return err
	}); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, task)
}

func pathID(c echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

// confirmParam turns ?confirm=true into the workspace confirmation gate.
func confirmParam(c echo.Context) workspace.Confirm {
	v := strings.ToLower(c.QueryParam("confirm"))
	if v == "true" || v == "1" || v == "yes" {
		return workspace.Yes
	}
	return nil
}
