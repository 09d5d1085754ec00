package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"momentum/internal/actions"
	"momentum/internal/domain"
	"momentum/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Exec      actions.Executor
	Proposals actions.Proposals
	BasePath  string
	Auth      AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"not_found"`
	Message string         `json:"message" example:"task not found"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Momentum API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Exec.Repo))
	hcfg := huma.DefaultConfig("Momentum API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerTasks(group, cfg.Exec)
	registerGoals(group, cfg.Exec)
	registerAnalytics(group, cfg.Exec)
	registerCalendar(group, cfg.Exec)
	registerAssistant(group, cfg.Exec, cfg.Proposals)
	registerEvents(group, cfg.Exec)
	registerAPIKeys(group, cfg.Exec)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Exec)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", "not found", nil)
	}
	if errors.Is(err, repo.ErrVersionConflict) {
		return newAPIError(http.StatusConflict, "version_conflict", err.Error(), nil)
	}
	if errors.Is(err, actions.ErrBatchTooLarge) {
		return newAPIError(http.StatusBadRequest, "batch_too_large", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "cannot transition"):
		return newAPIError(http.StatusConflict, "invalid_transition", msg, nil)
	case strings.Contains(lowered, "not found or unauthorized"):
		return newAPIError(http.StatusNotFound, "not_found", msg, nil)
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") || strings.Contains(lowered, "unknown action"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Momentum API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerTasks(api huma.API, x actions.Executor) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		if input.Body.Category == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "category is required", nil)
		}
		data := map[string]any{"title": input.Body.Title, "category": input.Body.Category}
		if input.Body.Description != nil {
			data["description"] = *input.Body.Description
		}
		if input.Body.Priority != nil {
			data["priority"] = *input.Body.Priority
		}
		if input.Body.Status != nil {
			data["status"] = *input.Body.Status
		}
		if input.Body.DueDate != nil {
			data["due_date"] = *input.Body.DueDate
		}
		res, err := x.ExecuteAction(ctx, ownerID, actions.Action{Type: actions.TypeCreateTask, Data: data})
		if err != nil {
			return nil, handleError(err)
		}
		if !res.Success {
			return nil, handleError(errors.New(res.Error))
		}
		t, err := x.Repo.GetTask(ctx, ownerID, res.Data["id"].(string))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status"`
		Category string `query:"category"`
		Limit    int    `query:"limit" default:"50"`
		Cursor   string `query:"cursor"`
	}) (*struct {
		Body paginatedTasks `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		tasks, err := x.Repo.ListTasks(ctx, repo.TaskFilters{
			OwnerID:         ownerID,
			Status:          input.Status,
			Category:        input.Category,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedTasks{Items: []domain.Task{}}
		if len(tasks) > limit {
			resp.NextCursor = composeCursor(tasks[limit].CreatedAt, tasks[limit].ID)
			tasks = tasks[:limit]
		}
		resp.Items = tasks
		return &struct {
			Body paginatedTasks `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := x.Repo.GetTask(ctx, ownerID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Update task",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		updates := map[string]any{}
		if input.Body.Title != nil {
			updates["title"] = *input.Body.Title
		}
		if input.Body.Category != nil {
			updates["category"] = *input.Body.Category
		}
		if input.Body.Description != nil {
			updates["description"] = *input.Body.Description
		}
		if input.Body.Priority != nil {
			updates["priority"] = *input.Body.Priority
		}
		if input.Body.Status != nil {
			updates["status"] = *input.Body.Status
		}
		if input.Body.DueDate != nil {
			updates["due_date"] = *input.Body.DueDate
		}
		if len(updates) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "no updates provided", nil)
		}
		res, err := x.ExecuteAction(ctx, ownerID, actions.Action{
			Type: actions.TypeUpdateTask,
			Data: map[string]any{"taskId": input.ID, "updates": updates},
		})
		if err != nil {
			return nil, handleError(err)
		}
		if !res.Success {
			return nil, handleError(errors.New(res.Error))
		}
		t, err := x.Repo.GetTask(ctx, ownerID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-task",
		Method:      http.MethodDelete,
		Path:        "/tasks/{id}",
		Summary:     "Delete task",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := x.ExecuteAction(ctx, ownerID, actions.Action{
			Type: actions.TypeDeleteTask,
			Data: map[string]any{"taskId": input.ID},
		})
		if err != nil {
			return nil, handleError(err)
		}
		if !res.Success {
			return nil, handleError(errors.New(res.Error))
		}
		return &struct{}{}, nil
	})
}

func registerGoals(api huma.API, x actions.Executor) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-goal",
		Method:        http.MethodPost,
		Path:          "/goals",
		Summary:       "Create goal",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body CreateGoalRequest `json:"body"`
	}) (*struct {
		Body domain.Goal `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		if input.Body.Category == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "category is required", nil)
		}
		data := map[string]any{"title": input.Body.Title, "category": input.Body.Category}
		if input.Body.Description != nil {
			data["description"] = *input.Body.Description
		}
		if input.Body.TargetDate != nil {
			data["target_date"] = *input.Body.TargetDate
		}
		if input.Body.Progress != nil {
			data["progress"] = *input.Body.Progress
		}
		res, err := x.ExecuteAction(ctx, ownerID, actions.Action{Type: actions.TypeCreateGoal, Data: data})
		if err != nil {
			return nil, handleError(err)
		}
		if !res.Success {
			return nil, handleError(errors.New(res.Error))
		}
		g, err := x.Repo.GetGoal(ctx, ownerID, res.Data["id"].(string))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Goal `json:"body"`
		}{Body: g}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-goals",
		Method:      http.MethodGet,
		Path:        "/goals",
		Summary:     "List goals",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status   string `query:"status"`
		Category string `query:"category"`
		Limit    int    `query:"limit" default:"50"`
	}) (*struct {
		Body []domain.Goal `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		goals, err := x.Repo.ListGoals(ctx, repo.GoalFilters{
			OwnerID:  ownerID,
			Status:   input.Status,
			Category: input.Category,
			Limit:    normalizeLimit(input.Limit),
		})
		if err != nil {
			return nil, handleError(err)
		}
		if goals == nil {
			goals = []domain.Goal{}
		}
		return &struct {
			Body []domain.Goal `json:"body"`
		}{Body: goals}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-goal",
		Method:      http.MethodGet,
		Path:        "/goals/{id}",
		Summary:     "Get goal",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Goal `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		g, err := x.Repo.GetGoal(ctx, ownerID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Goal `json:"body"`
		}{Body: g}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-goal",
		Method:      http.MethodPatch,
		Path:        "/goals/{id}",
		Summary:     "Update goal",
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound, http.StatusConflict, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body UpdateGoalRequest `json:"body"`
	}) (*struct {
		Body domain.Goal `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		updates := map[string]any{}
		if input.Body.Title != nil {
			updates["title"] = *input.Body.Title
		}
		if input.Body.Category != nil {
			updates["category"] = *input.Body.Category
		}
		if input.Body.Description != nil {
			updates["description"] = *input.Body.Description
		}
		if input.Body.TargetDate != nil {
			updates["target_date"] = *input.Body.TargetDate
		}
		if input.Body.Progress != nil {
			updates["progress"] = *input.Body.Progress
		}
		if input.Body.Status != nil {
			updates["status"] = *input.Body.Status
		}
		if len(updates) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "no updates provided", nil)
		}
		res, err := x.ExecuteAction(ctx, ownerID, actions.Action{
			Type: actions.TypeUpdateGoal,
			Data: map[string]any{"goalId": input.ID, "updates": updates},
		})
		if err != nil {
			return nil, handleError(err)
		}
		if !res.Success {
			return nil, handleError(errors.New(res.Error))
		}
		g, err := x.Repo.GetGoal(ctx, ownerID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Goal `json:"body"`
		}{Body: g}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-goal",
		Method:      http.MethodDelete,
		Path:        "/goals/{id}",
		Summary:     "Delete goal",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := x.ExecuteAction(ctx, ownerID, actions.Action{
			Type: actions.TypeDeleteGoal,
			Data: map[string]any{"goalId": input.ID},
		})
		if err != nil {
			return nil, handleError(err)
		}
		if !res.Success {
			return nil, handleError(errors.New(res.Error))
		}
		return &struct{}{}, nil
	})
}

func registerAnalytics(api huma.API, x actions.Executor) {
	huma.Register(api, huma.Operation{
		OperationID: "analytics-summary",
		Method:      http.MethodGet,
		Path:        "/analytics/summary",
		Summary:     "Productivity summary",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body AnalyticsSummaryResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		taskCounts, err := x.Repo.CountTasksByStatus(ctx, ownerID)
		if err != nil {
			return nil, handleError(err)
		}
		goalCounts, err := x.Repo.CountGoalsByStatus(ctx, ownerID)
		if err != nil {
			return nil, handleError(err)
		}
		avg, err := x.Repo.AverageGoalProgress(ctx, ownerID)
		if err != nil {
			return nil, handleError(err)
		}
		total := 0
		for _, n := range taskCounts {
			total += n
		}
		rate := 0.0
		if total > 0 {
			rate = float64(taskCounts["completed"]) / float64(total)
		}
		return &struct {
			Body AnalyticsSummaryResponse `json:"body"`
		}{Body: AnalyticsSummaryResponse{
			TaskCounts:      taskCounts,
			GoalCounts:      goalCounts,
			AvgGoalProgress: avg,
			CompletionRate:  rate,
		}}, nil
	})
}

func registerCalendar(api huma.API, x actions.Executor) {
	huma.Register(api, huma.Operation{
		OperationID: "connect-calendar",
		Method:      http.MethodPut,
		Path:        "/calendar/account",
		Summary:     "Connect calendar",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body ConnectCalendarRequest `json:"body"`
	}) (*struct {
		Body domain.CalendarAccount `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Provider == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "provider is required", nil)
		}
		if input.Body.AccessToken == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "access_token is required", nil)
		}
		account := domain.CalendarAccount{
			OwnerID:     ownerID,
			Provider:    input.Body.Provider,
			AccessToken: input.Body.AccessToken,
			CalendarID:  input.Body.CalendarID,
			ConnectedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := x.Repo.UpsertCalendarAccount(ctx, account); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CalendarAccount `json:"body"`
		}{Body: account}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-calendar-account",
		Method:      http.MethodGet,
		Path:        "/calendar/account",
		Summary:     "Get calendar account",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body domain.CalendarAccount `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		account, err := x.Repo.GetCalendarAccount(ctx, ownerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.CalendarAccount `json:"body"`
		}{Body: account}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "disconnect-calendar",
		Method:      http.MethodDelete,
		Path:        "/calendar/account",
		Summary:     "Disconnect calendar",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct{}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := x.Repo.DeleteCalendarAccount(ctx, ownerID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerAssistant(api huma.API, x actions.Executor, p actions.Proposals) {
	huma.Register(api, huma.Operation{
		OperationID: "validate-action",
		Method:      http.MethodPost,
		Path:        "/assistant/actions/validate",
		Summary:     "Validate an action descriptor",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body actions.Action `json:"body"`
	}) (*struct {
		Body actions.Validation `json:"body"`
	}, error) {
		if _, authErr := ownerIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body actions.Validation `json:"body"`
		}{Body: actions.Validate(input.Body)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "execute-batch",
		Method:      http.MethodPost,
		Path:        "/assistant/actions/execute",
		Summary:     "Execute an action batch",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body ExecuteBatchRequest `json:"body"`
	}) (*struct {
		Body BatchResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if max := x.Config.Assistant.MaxBatchSize; max > 0 && len(input.Body.Actions) > max {
			return nil, handleError(fmt.Errorf("%w (%d > %d)", actions.ErrBatchTooLarge, len(input.Body.Actions), max))
		}
		br, err := x.ExecuteBatch(ctx, ownerID, input.Body.Actions)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BatchResponse `json:"body"`
		}{Body: batchResponse(br)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "submit-proposals",
		Method:        http.MethodPost,
		Path:          "/assistant/proposals",
		Summary:       "Submit proposed actions for review",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body SubmitProposalsRequest `json:"body"`
	}) (*struct {
		Body []ProposalResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		conversationID := input.Body.ConversationID
		if conversationID == "" {
			conversationID = uuid.NewString()
		}
		if len(input.Body.Actions) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actions are required", nil)
		}
		props, err := p.Submit(ctx, ownerID, conversationID, input.Body.Actions)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProposalResponse `json:"body"`
		}{Body: mapProposals(props)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-proposals",
		Method:      http.MethodGet,
		Path:        "/assistant/proposals",
		Summary:     "List proposals",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ConversationID string `query:"conversation_id"`
		Status         string `query:"status" enum:",proposed,processing,approved,declined,failed"`
	}) (*struct {
		Body []ProposalResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		props, err := p.Repo.ListProposals(ctx, ownerID, input.ConversationID, input.Status)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []ProposalResponse `json:"body"`
		}{Body: mapProposals(props)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-proposal",
		Method:      http.MethodPost,
		Path:        "/assistant/proposals/{id}/approve",
		Summary:     "Approve and execute one proposal",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body struct {
			Proposal ProposalResponse `json:"proposal"`
			Result   actions.Result   `json:"result"`
		} `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		prop, res, err := p.Approve(ctx, ownerID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Proposal ProposalResponse `json:"proposal"`
				Result   actions.Result   `json:"result"`
			} `json:"body"`
		}{}
		out.Body.Proposal = proposalResponse(prop)
		out.Body.Result = res
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "decline-proposal",
		Method:      http.MethodPost,
		Path:        "/assistant/proposals/{id}/decline",
		Summary:     "Decline a proposal",
		Errors:      []int{http.StatusNotFound, http.StatusConflict, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body ProposalResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		prop, err := p.Decline(ctx, ownerID, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ProposalResponse `json:"body"`
		}{Body: proposalResponse(prop)}, nil
	})

	// Approve-all goes through the same sequential batch path as execute, so
	// pending references resolve across proposals.
	huma.Register(api, huma.Operation{
		OperationID: "approve-conversation",
		Method:      http.MethodPost,
		Path:        "/assistant/conversations/{conversation_id}/approve",
		Summary:     "Approve all open proposals in a conversation",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ConversationID string `path:"conversation_id"`
	}) (*struct {
		Body BatchResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		br, err := p.ApproveConversation(ctx, ownerID, input.ConversationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BatchResponse `json:"body"`
		}{Body: batchResponse(br)}, nil
	})
}

func registerEvents(api huma.API, x actions.Executor) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit event feed",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		After int64 `query:"after"`
		Limit int   `query:"limit" default:"100"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		evts, err := x.Repo.ListEvents(ctx, ownerID, input.After, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		if evts == nil {
			evts = []domain.Event{}
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: evts}, nil
	})
}

func registerAPIKeys(api huma.API, x actions.Executor) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Create API key",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body struct {
			Name string `json:"name,omitempty"`
		} `json:"body"`
	}) (*struct {
		Body struct {
			ID  string `json:"id"`
			Key string `json:"key"`
		} `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		raw := uuid.NewString() + uuid.NewString()
		key := domain.APIKey{
			ID:        uuid.NewString(),
			OwnerID:   ownerID,
			Name:      input.Body.Name,
			KeyHash:   repo.HashAPIKey(raw),
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := x.Repo.InsertAPIKey(ctx, key); err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				ID  string `json:"id"`
				Key string `json:"key"`
			} `json:"body"`
		}{}
		out.Body.ID = key.ID
		out.Body.Key = raw
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List API keys",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.APIKey `json:"body"`
	}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := x.Repo.ListAPIKeys(ctx, ownerID)
		if err != nil {
			return nil, handleError(err)
		}
		if keys == nil {
			keys = []domain.APIKey{}
		}
		return &struct {
			Body []domain.APIKey `json:"body"`
		}{Body: keys}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{id}",
		Summary:     "Delete API key",
		Errors:      []int{http.StatusNotFound, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		ownerID, authErr := ownerIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := x.Repo.DeleteAPIKey(ctx, ownerID, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func mapProposals(props []domain.Proposal) []ProposalResponse {
	out := make([]ProposalResponse, 0, len(props))
	for _, p := range props {
		out = append(out, proposalResponse(p))
	}
	return out
}

func proposalResponse(p domain.Proposal) ProposalResponse {
	var a actions.Action
	_ = json.Unmarshal([]byte(p.ActionJSON), &a)
	return ProposalResponse{
		ID:             p.ID,
		ConversationID: p.ConversationID,
		Action:         a,
		Status:         p.Status,
		Error:          p.Error,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}

func composeCursor(createdAt, id string) string {
	return createdAt + "|" + id
}

func parseCompositeCursor(cursor string) (string, string, error) {
	if cursor == "" {
		return "", "", nil
	}
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid cursor")
	}
	return parts[0], parts[1], nil
}
