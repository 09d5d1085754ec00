package actions_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"momentum/internal/actions"
	"momentum/internal/calendar"
	"momentum/internal/config"
	"momentum/internal/db"
	"momentum/internal/domain"
	"momentum/internal/events"
	"momentum/internal/migrate"
	"momentum/internal/repo"
)

type fakeCalendar struct {
	failTitles map[string]bool
	created    []string
	nextID     int
}

func (f *fakeCalendar) CreateEvent(_ context.Context, _ domain.CalendarAccount, t domain.Task) (calendar.Event, error) {
	if f.failTitles[t.Title] {
		return calendar.Event{}, fmt.Errorf("%w: quota exceeded", calendar.ErrUnavailable)
	}
	f.nextID++
	id := fmt.Sprintf("evt-%d", f.nextID)
	f.created = append(f.created, t.Title)
	return calendar.Event{ID: id, Link: "https://cal.example/" + id}, nil
}

type testEnv struct {
	Exec     actions.Executor
	Calendar *fakeCalendar
	Ctx      context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	if _, err := db.EnsureWorkspace(dir); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cal := &fakeCalendar{failTitles: map[string]bool{}}
	now := func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	x := actions.Executor{
		DB:       conn,
		Repo:     repo.Repo{DB: conn},
		Events:   events.Writer{DB: conn, Now: now},
		Calendar: cal,
		Config:   config.Default(),
		Now:      now,
	}
	return testEnv{Exec: x, Calendar: cal, Ctx: context.Background()}
}

func (e testEnv) connectCalendar(t *testing.T) {
	t.Helper()
	err := e.Exec.Repo.UpsertCalendarAccount(e.Ctx, domain.CalendarAccount{
		OwnerID:     "owner-1",
		Provider:    "momentum-calendar",
		AccessToken: "tok",
		CalendarID:  "primary",
		ConnectedAt: "2024-05-01T09:00:00Z",
	})
	if err != nil {
		t.Fatalf("connect calendar: %v", err)
	}
}

func (e testEnv) mustExecute(t *testing.T, batch ...actions.Action) actions.BatchResult {
	t.Helper()
	br, err := e.Exec.ExecuteBatch(e.Ctx, "owner-1", batch)
	if err != nil {
		t.Fatalf("execute batch: %v", err)
	}
	return br
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		action  actions.Action
		wantErr string
	}{
		{
			name:    "empty type",
			action:  actions.Action{},
			wantErr: "Action type is required",
		},
		{
			name:    "unknown type",
			action:  actions.Action{Type: "make_coffee"},
			wantErr: "Unknown action type: make_coffee",
		},
		{
			name:    "create task without data",
			action:  actions.Action{Type: actions.TypeCreateTask},
			wantErr: "Action data is required",
		},
		{
			name:    "create task missing title",
			action:  actions.Action{Type: actions.TypeCreateTask, Data: map[string]any{"category": "work"}},
			wantErr: "Title is required",
		},
		{
			name:    "create task missing category",
			action:  actions.Action{Type: actions.TypeCreateTask, Data: map[string]any{"title": "Ship"}},
			wantErr: "Category is required",
		},
		{
			name:   "create task fields inside updates",
			action: actions.Action{Type: actions.TypeCreateTask, Data: map[string]any{"updates": map[string]any{"title": "Ship", "category": "work"}}},
		},
		{
			name:    "update task missing id",
			action:  actions.Action{Type: actions.TypeUpdateTask, Data: map[string]any{"updates": map[string]any{"title": "x"}}},
			wantErr: "Task ID is required",
		},
		{
			name:    "id inside updates does not count",
			action:  actions.Action{Type: actions.TypeUpdateTask, Data: map[string]any{"updates": map[string]any{"taskId": "t-1"}}},
			wantErr: "Task ID is required",
		},
		{
			name:    "empty string id rejected",
			action:  actions.Action{Type: actions.TypeDeleteTask, Data: map[string]any{"taskId": ""}},
			wantErr: "Task ID is required",
		},
		{
			name:    "update goal missing id",
			action:  actions.Action{Type: actions.TypeUpdateGoal, Data: map[string]any{}},
			wantErr: "Goal ID is required",
		},
		{
			name:   "delete all tasks needs no data",
			action: actions.Action{Type: actions.TypeDeleteAllTasks},
		},
		{
			name:   "bulk sync needs no data",
			action: actions.Action{Type: actions.TypeSyncBulkCalendar},
		},
		{
			name:   "sync accepts pending placeholder",
			action: actions.Action{Type: actions.TypeSyncCalendarEvent, Data: map[string]any{"taskId": "pending"}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := actions.Validate(tc.action)
			if tc.wantErr == "" {
				if !v.Valid {
					t.Fatalf("expected valid, got error %q", v.Error)
				}
				return
			}
			if v.Valid {
				t.Fatalf("expected invalid")
			}
			if v.Error != tc.wantErr {
				t.Fatalf("error = %q, want %q", v.Error, tc.wantErr)
			}
		})
	}
}

func TestStatusTransitions(t *testing.T) {
	valid := [][2]string{
		{"", "processing"},
		{"proposed", "processing"},
		{"proposed", "declined"},
		{"processing", "approved"},
		{"processing", "failed"},
	}
	for _, p := range valid {
		if err := actions.EnsureTransition(p[0], p[1]); err != nil {
			t.Fatalf("expected %q -> %q allowed: %v", p[0], p[1], err)
		}
	}
	invalid := [][2]string{
		{"proposed", "approved"},
		{"proposed", "failed"},
		{"processing", "declined"},
		{"processing", "proposed"},
		{"approved", "processing"},
		{"declined", "processing"},
		{"failed", "processing"},
		{"approved", "failed"},
	}
	for _, p := range invalid {
		err := actions.EnsureTransition(p[0], p[1])
		if err == nil {
			t.Fatalf("expected %q -> %q rejected", p[0], p[1])
		}
		want := fmt.Sprintf("cannot transition action from %q to %q", actions.NormalizeStatus(p[0]), p[1])
		if err.Error() != want {
			t.Fatalf("error = %q, want %q", err.Error(), want)
		}
	}
}

func TestWithStatusCopies(t *testing.T) {
	a := actions.Action{Type: actions.TypeCreateTask, Status: actions.StatusProposed}
	b, err := a.WithStatus(actions.StatusProcessing)
	if err != nil {
		t.Fatalf("with status: %v", err)
	}
	if a.Status != actions.StatusProposed {
		t.Fatalf("original mutated to %q", a.Status)
	}
	if b.Status != actions.StatusProcessing {
		t.Fatalf("copy status = %q", b.Status)
	}
	c := b.WithFailure("boom")
	if c.Status != actions.StatusFailed || c.Error != "boom" {
		t.Fatalf("failure copy = %+v", c)
	}
	if b.Error != "" {
		t.Fatalf("intermediate copy mutated: %q", b.Error)
	}
	if _, err := c.WithStatus(actions.StatusProcessing); err == nil {
		t.Fatalf("expected terminal action to refuse transitions")
	}
}

func TestCreateTaskDefaults(t *testing.T) {
	env := newTestEnv(t)
	br := env.mustExecute(t, actions.Action{
		Type: actions.TypeCreateTask,
		Data: map[string]any{"title": "Write report", "category": "work"},
	})
	res := br.Results[0]
	if !res.Success {
		t.Fatalf("create failed: %s", res.Error)
	}
	if res.Data["priority"] != "medium" || res.Data["status"] != "todo" {
		t.Fatalf("defaults = %v", res.Data)
	}
	// due date defaults to two days out, date only
	if res.Data["due_date"] != "2024-05-03" {
		t.Fatalf("due_date = %v", res.Data["due_date"])
	}
	task, err := env.Exec.Repo.GetTask(env.Ctx, "owner-1", res.Data["id"].(string))
	if err != nil {
		t.Fatalf("fetch created task: %v", err)
	}
	if task.Version != 1 {
		t.Fatalf("new task version = %d", task.Version)
	}
	if task.Title != "Write report" || task.Category != "work" {
		t.Fatalf("stored task = %+v", task)
	}
}

func TestPendingResolvesToMostRecentCreation(t *testing.T) {
	env := newTestEnv(t)
	env.connectCalendar(t)
	br := env.mustExecute(t,
		actions.Action{Type: actions.TypeCreateTask, Data: map[string]any{"title": "First", "category": "work"}},
		actions.Action{Type: actions.TypeCreateGoal, Data: map[string]any{"title": "Run more", "category": "health"}},
		actions.Action{Type: actions.TypeCreateTask, Data: map[string]any{"title": "Second", "category": "work"}},
		actions.Action{Type: actions.TypeSyncCalendarEvent, Data: map[string]any{"taskId": "pending"}},
	)
	if br.Summary.Failed != 0 {
		t.Fatalf("summary = %+v, results = %+v", br.Summary, br.Results)
	}
	sync := br.Results[3]
	if sync.Data["taskId"] != br.Results[2].Data["id"] {
		t.Fatalf("pending resolved to %v, want most recent task %v", sync.Data["taskId"], br.Results[2].Data["id"])
	}
	if sync.Data["taskTitle"] != "Second" {
		t.Fatalf("synced title = %v", sync.Data["taskTitle"])
	}
	if len(env.Calendar.created) != 1 || env.Calendar.created[0] != "Second" {
		t.Fatalf("calendar calls = %v", env.Calendar.created)
	}
}

func TestPendingWithoutPriorCreationFails(t *testing.T) {
	env := newTestEnv(t)
	env.connectCalendar(t)
	br := env.mustExecute(t,
		actions.Action{Type: actions.TypeSyncCalendarEvent, Data: map[string]any{"taskId": "pending"}},
	)
	res := br.Results[0]
	if res.Success {
		t.Fatalf("expected dependency failure")
	}
	want := "No task was created earlier in this batch to satisfy the pending taskId reference"
	if res.Error != want {
		t.Fatalf("error = %q, want %q", res.Error, want)
	}
}

func TestPendingSkipsFailedCreation(t *testing.T) {
	env := newTestEnv(t)
	env.connectCalendar(t)
	br := env.mustExecute(t,
		actions.Action{Type: actions.TypeCreateTask, Data: map[string]any{"title": "Missing category"}},
		actions.Action{Type: actions.TypeSyncCalendarEvent, Data: map[string]any{"taskId": "pending"}},
	)
	if br.Results[0].Success {
		t.Fatalf("invalid creation should fail")
	}
	res := br.Results[1]
	if res.Success {
		t.Fatalf("pending must not resolve against a failed creation")
	}
	if !strings.Contains(res.Error, "No task was created earlier in this batch") {
		t.Fatalf("error = %q", res.Error)
	}
}

func TestBatchIsolationAndSummary(t *testing.T) {
	env := newTestEnv(t)
	br := env.mustExecute(t,
		actions.Action{Type: actions.TypeCreateTask, Data: map[string]any{"title": "A", "category": "work"}},
		actions.Action{Type: actions.TypeCreateTask, Data: map[string]any{"title": "B"}}, // missing category
		actions.Action{Type: actions.TypeCreateTask, Data: map[string]any{"title": "C", "category": "work"}},
		actions.Action{Type: actions.TypeCreateGoal, Data: map[string]any{"title": "D", "category": "health"}},
	)
	if br.Summary.Total != 4 || br.Summary.Succeeded != 3 || br.Summary.Failed != 1 {
		t.Fatalf("summary = %+v", br.Summary)
	}
	if len(br.Results) != br.Summary.Total {
		t.Fatalf("results %d != total %d", len(br.Results), br.Summary.Total)
	}
	if br.Results[1].Success || br.Results[1].Error != "Category is required" {
		t.Fatalf("result[1] = %+v", br.Results[1])
	}
	// the failure did not stop later actions
	if !br.Results[2].Success || !br.Results[3].Success {
		t.Fatalf("later actions aborted: %+v", br.Results)
	}
	msg := actions.Format(br)
	want := "Completed 3 of 4 actions. 1 failed: Category is required"
	if msg != want {
		t.Fatalf("message = %q, want %q", msg, want)
	}
	n, err := env.Exec.Repo.CountTasks(env.Ctx, "owner-1")
	if err != nil || n != 2 {
		t.Fatalf("stored tasks = %d (%v)", n, err)
	}
}

func TestTerminalActionIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	br := env.mustExecute(t, actions.Action{
		Type:   actions.TypeCreateTask,
		Data:   map[string]any{"title": "Old", "category": "work"},
		Status: actions.StatusApproved,
	})
	res := br.Results[0]
	if !res.Success {
		t.Fatalf("skip should count as success: %+v", res)
	}
	if res.Data["skipped"] != true || res.Data["status"] != actions.StatusApproved {
		t.Fatalf("skip data = %v", res.Data)
	}
	n, err := env.Exec.Repo.CountTasks(env.Ctx, "owner-1")
	if err != nil || n != 0 {
		t.Fatalf("terminal action must not execute, tasks = %d (%v)", n, err)
	}
}

func TestUpdateTaskMergesAndCompletes(t *testing.T) {
	env := newTestEnv(t)
	created := env.mustExecute(t, actions.Action{
		Type: actions.TypeCreateTask,
		Data: map[string]any{"title": "Draft", "category": "work"},
	}).Results[0]
	id := created.Data["id"].(string)

	br := env.mustExecute(t, actions.Action{
		Type: actions.TypeUpdateTask,
		Data: map[string]any{
			"taskId": id,
			"title":  "top-level loses",
			"updates": map[string]any{
				"title":  "Final",
				"status": "completed",
			},
		},
	})
	res := br.Results[0]
	if !res.Success {
		t.Fatalf("update failed: %s", res.Error)
	}
	fields, ok := res.Data["updatedFields"].([]string)
	if !ok || len(fields) != 2 || fields[0] != "status" || fields[1] != "title" {
		t.Fatalf("updatedFields = %v, want sorted [status title]", res.Data["updatedFields"])
	}
	task, err := env.Exec.Repo.GetTask(env.Ctx, "owner-1", id)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if task.Title != "Final" {
		t.Fatalf("nested updates must win, title = %q", task.Title)
	}
	if task.Status != "completed" || task.CompletedAt == nil {
		t.Fatalf("completion not recorded: %+v", task)
	}
	if task.Version != 2 {
		t.Fatalf("version = %d, want 2", task.Version)
	}
}

func TestCrossOwnerAccessDenied(t *testing.T) {
	env := newTestEnv(t)
	other, err := env.Exec.ExecuteAction(env.Ctx, "owner-2", actions.Action{
		Type: actions.TypeCreateTask,
		Data: map[string]any{"title": "Theirs", "category": "work"},
	})
	if err != nil || !other.Success {
		t.Fatalf("seed foreign task: %v %+v", err, other)
	}
	id := other.Data["id"].(string)

	for _, a := range []actions.Action{
		{Type: actions.TypeUpdateTask, Data: map[string]any{"taskId": id, "updates": map[string]any{"title": "Mine"}}},
		{Type: actions.TypeDeleteTask, Data: map[string]any{"taskId": id}},
	} {
		res, err := env.Exec.ExecuteAction(env.Ctx, "owner-1", a)
		if err != nil {
			t.Fatalf("execute: %v", err)
		}
		if res.Success || res.Error != "Task not found or unauthorized" {
			t.Fatalf("%s result = %+v", a.Type, res)
		}
	}
	// the row is untouched
	if _, err := env.Exec.Repo.GetTask(env.Ctx, "owner-2", id); err != nil {
		t.Fatalf("foreign task gone: %v", err)
	}
}

func TestDeleteAllOnEmptyStore(t *testing.T) {
	env := newTestEnv(t)
	br := env.mustExecute(t, actions.Action{Type: actions.TypeDeleteAllTasks})
	res := br.Results[0]
	if !res.Success {
		t.Fatalf("delete all on empty store must succeed: %+v", res)
	}
	if res.Data["deletedCount"] != 0 {
		t.Fatalf("deletedCount = %v", res.Data["deletedCount"])
	}
	if msg := actions.Format(br); msg != "Deleted 0 tasks." {
		t.Fatalf("message = %q", msg)
	}
}

func TestGoalProgressAutoCompletes(t *testing.T) {
	env := newTestEnv(t)
	created := env.mustExecute(t, actions.Action{
		Type: actions.TypeCreateGoal,
		Data: map[string]any{"title": "Read 12 books", "category": "growth"},
	}).Results[0]
	if created.Data["status"] != "active" || created.Data["progress"] != 0 {
		t.Fatalf("goal defaults = %v", created.Data)
	}
	id := created.Data["id"].(string)

	res, err := env.Exec.ExecuteAction(env.Ctx, "owner-1", actions.Action{
		Type: actions.TypeUpdateGoal,
		Data: map[string]any{"goalId": id, "updates": map[string]any{"progress": 120}},
	})
	if err != nil || !res.Success {
		t.Fatalf("update: %v %+v", err, res)
	}
	goal, err := env.Exec.Repo.GetGoal(env.Ctx, "owner-1", id)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if goal.Progress != 100 || goal.Status != "completed" {
		t.Fatalf("goal = %+v", goal)
	}
}

func TestGoalProgressClamped(t *testing.T) {
	env := newTestEnv(t)
	created := env.mustExecute(t, actions.Action{
		Type: actions.TypeCreateGoal,
		Data: map[string]any{"title": "Save money", "category": "finance", "progress": -30},
	}).Results[0]
	if !created.Success || created.Data["progress"] != 0 {
		t.Fatalf("create result = %+v", created)
	}
	id := created.Data["id"].(string)

	res, err := env.Exec.ExecuteAction(env.Ctx, "owner-1", actions.Action{
		Type: actions.TypeUpdateGoal,
		Data: map[string]any{"goalId": id, "updates": map[string]any{"progress": -50}},
	})
	if err != nil || !res.Success {
		t.Fatalf("update: %v %+v", err, res)
	}
	goal, err := env.Exec.Repo.GetGoal(env.Ctx, "owner-1", id)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if goal.Progress != 0 || goal.Status != "active" {
		t.Fatalf("goal = %+v", goal)
	}

	over := env.mustExecute(t, actions.Action{
		Type: actions.TypeCreateGoal,
		Data: map[string]any{"title": "Overachieve", "category": "growth", "progress": 150},
	}).Results[0]
	if over.Data["progress"] != 100 {
		t.Fatalf("overflow progress = %v", over.Data["progress"])
	}
}

func TestSyncWithoutCalendarAccount(t *testing.T) {
	env := newTestEnv(t)
	created := env.mustExecute(t, actions.Action{
		Type: actions.TypeCreateTask,
		Data: map[string]any{"title": "Standup", "category": "work"},
	}).Results[0]

	res, err := env.Exec.ExecuteAction(env.Ctx, "owner-1", actions.Action{
		Type: actions.TypeSyncCalendarEvent,
		Data: map[string]any{"taskId": created.Data["id"]},
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if res.Success || res.Error != "Calendar not connected" {
		t.Fatalf("result = %+v", res)
	}
}

func TestSyncCalendarEventMarksTask(t *testing.T) {
	env := newTestEnv(t)
	env.connectCalendar(t)
	created := env.mustExecute(t, actions.Action{
		Type: actions.TypeCreateTask,
		Data: map[string]any{"title": "Dentist", "category": "health", "due_date": "2024-05-10"},
	}).Results[0]
	id := created.Data["id"].(string)

	res, err := env.Exec.ExecuteAction(env.Ctx, "owner-1", actions.Action{
		Type: actions.TypeSyncCalendarEvent,
		Data: map[string]any{"taskId": id},
	})
	if err != nil || !res.Success {
		t.Fatalf("sync: %v %+v", err, res)
	}
	if res.Data["synced"] != true || res.Data["calendarEventId"] == "" {
		t.Fatalf("sync data = %v", res.Data)
	}
	task, err := env.Exec.Repo.GetTask(env.Ctx, "owner-1", id)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if task.CalendarEventID == nil || *task.CalendarEventID != res.Data["calendarEventId"] {
		t.Fatalf("task not marked synced: %+v", task)
	}
}

func TestSyncBulkCalendarTolerance(t *testing.T) {
	env := newTestEnv(t)
	env.connectCalendar(t)
	env.Calendar.failTitles["Flaky"] = true
	env.mustExecute(t,
		actions.Action{Type: actions.TypeCreateTask, Data: map[string]any{"title": "Solid", "category": "work"}},
		actions.Action{Type: actions.TypeCreateTask, Data: map[string]any{"title": "Flaky", "category": "work"}},
	)

	br := env.mustExecute(t, actions.Action{Type: actions.TypeSyncBulkCalendar})
	res := br.Results[0]
	if !res.Success {
		t.Fatalf("bulk sync should succeed overall: %+v", res)
	}
	if res.Data["success"] != 1 || res.Data["failed"] != 1 {
		t.Fatalf("bulk counts = %v", res.Data)
	}
	errs, ok := res.Data["errors"].([]string)
	if !ok || len(errs) != 1 || !strings.Contains(errs[0], "Flaky") {
		t.Fatalf("bulk errors = %v", res.Data["errors"])
	}
	if msg := actions.Format(br); msg != "Synced 1 tasks to your calendar, 1 failed." {
		t.Fatalf("message = %q", msg)
	}
	// already-synced tasks are skipped on the next run
	again, err := env.Exec.ExecuteAction(env.Ctx, "owner-1", actions.Action{Type: actions.TypeSyncBulkCalendar})
	if err != nil || !again.Success {
		t.Fatalf("second sync: %v %+v", err, again)
	}
	if again.Data["skipped"] != 1 {
		t.Fatalf("second run skipped = %v", again.Data)
	}
}

func TestExecuteBatchRequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.Exec.ExecuteBatch(env.Ctx, "", []actions.Action{{Type: actions.TypeDeleteAllTasks}})
	if err == nil {
		t.Fatalf("expected owner error")
	}
}

func TestFormat(t *testing.T) {
	mk := func(results ...actions.Result) actions.BatchResult {
		succeeded := 0
		for _, r := range results {
			if r.Success {
				succeeded++
			}
		}
		return actions.BatchResult{
			Results: results,
			Summary: actions.Summary{Total: len(results), Succeeded: succeeded, Failed: len(results) - succeeded},
		}
	}
	cases := []struct {
		name string
		br   actions.BatchResult
		want string
	}{
		{
			name: "empty batch",
			br:   mk(),
			want: "No actions to perform.",
		},
		{
			name: "single create",
			br:   mk(actions.Result{Success: true, ActionType: actions.TypeCreateTask, Data: map[string]any{"title": "Ship it"}}),
			want: `Created task "Ship it".`,
		},
		{
			name: "single goal delete",
			br:   mk(actions.Result{Success: true, ActionType: actions.TypeDeleteGoal, Data: map[string]any{"title": "Old goal"}}),
			want: `Deleted goal "Old goal".`,
		},
		{
			name: "single sync",
			br:   mk(actions.Result{Success: true, ActionType: actions.TypeSyncCalendarEvent, Data: map[string]any{"taskTitle": "Dentist"}}),
			want: `Synced "Dentist" to your calendar.`,
		},
		{
			name: "all succeeded mixed types",
			br: mk(
				actions.Result{Success: true, ActionType: actions.TypeCreateTask},
				actions.Result{Success: true, ActionType: actions.TypeCreateGoal},
				actions.Result{Success: true, ActionType: actions.TypeDeleteAllTasks},
			),
			want: "Completed all 3 actions.",
		},
		{
			name: "pure bulk purge",
			br: mk(
				actions.Result{Success: true, ActionType: actions.TypeDeleteAllTasks, Data: map[string]any{"deletedCount": 7}},
				actions.Result{Success: true, ActionType: actions.TypeDeleteAllGoals, Data: map[string]any{"deletedCount": 2}},
			),
			want: "Deleted 7 tasks and 2 goals.",
		},
		{
			name: "all failed uses first error",
			br: mk(
				actions.Result{Error: "Title is required"},
				actions.Result{Error: "Category is required"},
			),
			want: "Title is required",
		},
		{
			name: "partial failure lists errors in order",
			br: mk(
				actions.Result{Success: true, ActionType: actions.TypeCreateTask, Data: map[string]any{"title": "A"}},
				actions.Result{Error: "Category is required"},
				actions.Result{Error: "Task not found or unauthorized"},
			),
			want: "Completed 1 of 3 actions. 2 failed: Category is required, Task not found or unauthorized",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := actions.Format(tc.br)
			if got != tc.want {
				t.Fatalf("Format = %q, want %q", got, tc.want)
			}
			if again := actions.Format(tc.br); again != got {
				t.Fatalf("Format not stable: %q then %q", got, again)
			}
		})
	}
}
