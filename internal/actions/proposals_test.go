package actions_test

import (
	"strings"
	"testing"

	"momentum/internal/actions"
	"momentum/internal/domain"
)

func newProposals(env testEnv) actions.Proposals {
	return actions.Proposals{Repo: env.Exec.Repo, Exec: env.Exec, Now: env.Exec.Now}
}

func TestProposalLifecycle(t *testing.T) {
	env := newTestEnv(t)
	p := newProposals(env)

	stored, err := p.Submit(env.Ctx, "owner-1", "conv-1", []actions.Action{
		{Type: actions.TypeCreateTask, Data: map[string]any{"title": "Plan trip", "category": "personal"}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(stored) != 1 || stored[0].Status != actions.StatusProposed {
		t.Fatalf("stored = %+v", stored)
	}

	prop, res, err := p.Approve(env.Ctx, "owner-1", stored[0].ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !res.Success || prop.Status != actions.StatusApproved {
		t.Fatalf("approve outcome: %+v %+v", prop, res)
	}
	fetched, err := p.Repo.GetProposal(env.Ctx, "owner-1", stored[0].ID)
	if err != nil || fetched.Status != actions.StatusApproved {
		t.Fatalf("persisted status = %+v (%v)", fetched, err)
	}

	// approving a settled proposal is a no-op, not a re-execution
	_, again, err := p.Approve(env.Ctx, "owner-1", stored[0].ID)
	if err != nil {
		t.Fatalf("re-approve: %v", err)
	}
	if !again.Success || again.Data["skipped"] != true {
		t.Fatalf("re-approve result = %+v", again)
	}
	n, err := env.Exec.Repo.CountTasks(env.Ctx, "owner-1")
	if err != nil || n != 1 {
		t.Fatalf("tasks after double approve = %d (%v)", n, err)
	}
}

func TestApproveFailingProposal(t *testing.T) {
	env := newTestEnv(t)
	p := newProposals(env)

	stored, err := p.Submit(env.Ctx, "owner-1", "conv-1", []actions.Action{
		{Type: actions.TypeUpdateTask, Data: map[string]any{"taskId": "missing", "updates": map[string]any{"title": "x"}}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	prop, res, err := p.Approve(env.Ctx, "owner-1", stored[0].ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if res.Success || prop.Status != actions.StatusFailed {
		t.Fatalf("outcome = %+v %+v", prop, res)
	}
	if prop.Error != "Task not found or unauthorized" {
		t.Fatalf("stored error = %q", prop.Error)
	}
}

func TestDeclineProposal(t *testing.T) {
	env := newTestEnv(t)
	p := newProposals(env)

	stored, err := p.Submit(env.Ctx, "owner-1", "conv-1", []actions.Action{
		{Type: actions.TypeDeleteAllTasks},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	prop, err := p.Decline(env.Ctx, "owner-1", stored[0].ID)
	if err != nil || prop.Status != actions.StatusDeclined {
		t.Fatalf("decline: %v %+v", err, prop)
	}
	// declining again stays settled
	prop, err = p.Decline(env.Ctx, "owner-1", stored[0].ID)
	if err != nil || prop.Status != actions.StatusDeclined {
		t.Fatalf("re-decline: %v %+v", err, prop)
	}
	// a declined proposal can no longer be approved into execution
	_, res, err := p.Approve(env.Ctx, "owner-1", stored[0].ID)
	if err != nil {
		t.Fatalf("approve declined: %v", err)
	}
	if res.Success || res.Data["skipped"] != true {
		t.Fatalf("approve of declined proposal = %+v", res)
	}
}

func TestSubmitRejectsInvalidActions(t *testing.T) {
	env := newTestEnv(t)
	p := newProposals(env)

	_, err := p.Submit(env.Ctx, "owner-1", "conv-1", []actions.Action{
		{Type: actions.TypeCreateTask, Data: map[string]any{"title": "ok", "category": "work"}},
		{Type: actions.TypeCreateTask, Data: map[string]any{"title": "no category"}},
	})
	if err == nil || !strings.Contains(err.Error(), "Category is required") {
		t.Fatalf("err = %v", err)
	}

	_, err = p.Submit(env.Ctx, "owner-1", "conv-1", []actions.Action{
		{Type: actions.TypeDeleteAllTasks, Status: actions.StatusApproved},
	})
	if err == nil || !strings.Contains(err.Error(), "only proposed actions") {
		t.Fatalf("err = %v", err)
	}
}

func TestSubmitEnforcesBatchLimit(t *testing.T) {
	env := newTestEnv(t)
	env.Exec.Config.Assistant.MaxBatchSize = 2
	p := newProposals(env)

	batch := []actions.Action{
		{Type: actions.TypeDeleteAllTasks},
		{Type: actions.TypeDeleteAllGoals},
		{Type: actions.TypeDeleteAllTasks},
	}
	_, err := p.Submit(env.Ctx, "owner-1", "conv-1", batch)
	if err == nil || !strings.Contains(err.Error(), "maximum size") {
		t.Fatalf("err = %v", err)
	}
}

func TestApproveConversationRunsOneBatch(t *testing.T) {
	env := newTestEnv(t)
	env.connectCalendar(t)
	p := newProposals(env)

	_, err := p.Submit(env.Ctx, "owner-1", "conv-1", []actions.Action{
		{Type: actions.TypeCreateTask, Data: map[string]any{"title": "Book flights", "category": "personal"}},
		{Type: actions.TypeSyncCalendarEvent, Data: map[string]any{"taskId": "pending"}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	// an unrelated conversation must not be swept up
	other, err := p.Submit(env.Ctx, "owner-1", "conv-2", []actions.Action{
		{Type: actions.TypeDeleteAllGoals},
	})
	if err != nil {
		t.Fatalf("submit other: %v", err)
	}

	br, err := p.ApproveConversation(env.Ctx, "owner-1", "conv-1")
	if err != nil {
		t.Fatalf("approve conversation: %v", err)
	}
	if br.Summary.Total != 2 || br.Summary.Succeeded != 2 {
		t.Fatalf("summary = %+v, results = %+v", br.Summary, br.Results)
	}
	// pending resolved against the creation from the same approval batch
	if br.Results[1].Data["taskId"] != br.Results[0].Data["id"] {
		t.Fatalf("pending resolution: %v vs %v", br.Results[1].Data["taskId"], br.Results[0].Data["id"])
	}

	settled, err := p.Repo.ListProposals(env.Ctx, "owner-1", "conv-1", actions.StatusApproved)
	if err != nil || len(settled) != 2 {
		t.Fatalf("approved proposals = %d (%v)", len(settled), err)
	}
	untouched, err := p.Repo.GetProposal(env.Ctx, "owner-1", other[0].ID)
	if err != nil || untouched.Status != actions.StatusProposed {
		t.Fatalf("other conversation touched: %+v (%v)", untouched, err)
	}
}

func TestApproveConversationKeepsSubmissionOrder(t *testing.T) {
	env := newTestEnv(t)
	env.connectCalendar(t)
	p := newProposals(env)

	// The ids sort against submission order and the second-precision
	// timestamps tie, so only the stored sequence can keep the creation
	// ahead of the sync that depends on it.
	now := "2024-05-01T10:00:00Z"
	seed := []domain.Proposal{
		{
			ID:             "zzz-create",
			OwnerID:        "owner-1",
			ConversationID: "conv-1",
			ActionJSON:     `{"type":"create_task","data":{"title":"Order matters","category":"work"}}`,
			Status:         actions.StatusProposed,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
		{
			ID:             "aaa-sync",
			OwnerID:        "owner-1",
			ConversationID: "conv-1",
			ActionJSON:     `{"type":"sync_calendar_event","data":{"taskId":"pending"}}`,
			Status:         actions.StatusProposed,
			CreatedAt:      now,
			UpdatedAt:      now,
		},
	}
	for _, prop := range seed {
		if err := p.Repo.InsertProposal(env.Ctx, prop); err != nil {
			t.Fatalf("insert %s: %v", prop.ID, err)
		}
	}

	open, err := p.Repo.ListProposals(env.Ctx, "owner-1", "conv-1", actions.StatusProposed)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(open) != 2 || open[0].ID != "zzz-create" || open[1].ID != "aaa-sync" {
		t.Fatalf("listing order = %+v", open)
	}

	br, err := p.ApproveConversation(env.Ctx, "owner-1", "conv-1")
	if err != nil {
		t.Fatalf("approve conversation: %v", err)
	}
	if br.Summary.Succeeded != 2 {
		t.Fatalf("summary = %+v, results = %+v", br.Summary, br.Results)
	}
	if br.Results[0].ActionType != actions.TypeCreateTask {
		t.Fatalf("batch ran out of order: %+v", br.Results)
	}
	if br.Results[1].Data["taskId"] != br.Results[0].Data["id"] {
		t.Fatalf("pending resolution: %v vs %v", br.Results[1].Data["taskId"], br.Results[0].Data["id"])
	}
}

func TestApproveConversationPersistsFailures(t *testing.T) {
	env := newTestEnv(t)
	p := newProposals(env)

	stored, err := p.Submit(env.Ctx, "owner-1", "conv-1", []actions.Action{
		{Type: actions.TypeCreateTask, Data: map[string]any{"title": "Good", "category": "work"}},
		{Type: actions.TypeUpdateTask, Data: map[string]any{"taskId": "missing", "updates": map[string]any{"title": "x"}}},
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	br, err := p.ApproveConversation(env.Ctx, "owner-1", "conv-1")
	if err != nil {
		t.Fatalf("approve conversation: %v", err)
	}
	if br.Summary.Succeeded != 1 || br.Summary.Failed != 1 {
		t.Fatalf("summary = %+v", br.Summary)
	}
	first, err := p.Repo.GetProposal(env.Ctx, "owner-1", stored[0].ID)
	if err != nil || first.Status != actions.StatusApproved {
		t.Fatalf("first = %+v (%v)", first, err)
	}
	second, err := p.Repo.GetProposal(env.Ctx, "owner-1", stored[1].ID)
	if err != nil || second.Status != actions.StatusFailed {
		t.Fatalf("second = %+v (%v)", second, err)
	}
	if second.Error != "Task not found or unauthorized" {
		t.Fatalf("second error = %q", second.Error)
	}
}
