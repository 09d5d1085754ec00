package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"momentum/internal/domain"
	"momentum/internal/repo"
)

// Proposals persists AI-suggested actions and drives their approval
// lifecycle. Statuses mirror the action state machine; the stored row is the
// durable evidence that a proposal was attempted.
type Proposals struct {
	Repo repo.Repo
	Exec Executor
	Now  func() time.Time
}

var ErrBatchTooLarge = errors.New("batch exceeds the configured maximum size")

func (p Proposals) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p Proposals) timestamp() string {
	return p.now().UTC().Format(time.RFC3339)
}

// Submit stores a conversation's proposed actions for review. Every action
// must be valid and in the proposed state.
func (p Proposals) Submit(ctx context.Context, ownerID, conversationID string, batch []Action) ([]domain.Proposal, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if max := p.Exec.Config.Assistant.MaxBatchSize; max > 0 && len(batch) > max {
		return nil, fmt.Errorf("%w (%d > %d)", ErrBatchTooLarge, len(batch), max)
	}
	for i, a := range batch {
		if NormalizeStatus(a.Status) != StatusProposed {
			return nil, fmt.Errorf("action %d: only proposed actions can be submitted", i)
		}
		if v := Validate(a); !v.Valid {
			return nil, fmt.Errorf("action %d: %s", i, v.Error)
		}
	}
	out := make([]domain.Proposal, 0, len(batch))
	for _, a := range batch {
		raw, err := json.Marshal(a)
		if err != nil {
			return nil, err
		}
		now := p.timestamp()
		prop := domain.Proposal{
			ID:             uuid.NewString(),
			OwnerID:        ownerID,
			ConversationID: conversationID,
			ActionJSON:     string(raw),
			Status:         StatusProposed,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if err := p.Repo.InsertProposal(ctx, prop); err != nil {
			return nil, err
		}
		out = append(out, prop)
	}
	return out, nil
}

// Approve executes one proposal. The processing transition is recorded
// before execution so a crash mid-run leaves visible evidence. Approving a
// settled proposal is a no-op.
func (p Proposals) Approve(ctx context.Context, ownerID, id string) (domain.Proposal, Result, error) {
	prop, err := p.Repo.GetProposal(ctx, ownerID, id)
	if err != nil {
		return domain.Proposal{}, Result{}, err
	}
	if IsTerminalStatus(prop.Status) {
		return prop, Result{
			Success:   prop.Status == StatusApproved,
			Data:      map[string]any{"skipped": true, "status": prop.Status},
			Error:     prop.Error,
			Timestamp: p.timestamp(),
		}, nil
	}
	if err := EnsureTransition(prop.Status, StatusProcessing); err != nil {
		return prop, Result{}, err
	}
	if err := p.Repo.UpdateProposalStatus(ctx, ownerID, prop.ID, StatusProcessing, "", p.timestamp()); err != nil {
		return prop, Result{}, err
	}
	prop.Status = StatusProcessing

	var a Action
	if err := json.Unmarshal([]byte(prop.ActionJSON), &a); err != nil {
		return p.settle(ctx, prop, Result{Error: "stored action is unreadable", Timestamp: p.timestamp()})
	}
	res, err := p.Exec.ExecuteAction(ctx, ownerID, a)
	if err != nil {
		return p.settle(ctx, prop, Result{ActionType: a.Type, Error: err.Error(), Timestamp: p.timestamp()})
	}
	return p.settle(ctx, prop, res)
}

func (p Proposals) settle(ctx context.Context, prop domain.Proposal, res Result) (domain.Proposal, Result, error) {
	status := StatusApproved
	if !res.Success {
		status = StatusFailed
	}
	if err := p.Repo.UpdateProposalStatus(ctx, prop.OwnerID, prop.ID, status, res.Error, p.timestamp()); err != nil {
		return prop, res, err
	}
	prop.Status = status
	prop.Error = res.Error
	return prop, res, nil
}

// Decline settles a proposal without execution. Declining a settled
// proposal is a no-op; declining one that is processing is an error.
func (p Proposals) Decline(ctx context.Context, ownerID, id string) (domain.Proposal, error) {
	prop, err := p.Repo.GetProposal(ctx, ownerID, id)
	if err != nil {
		return domain.Proposal{}, err
	}
	if IsTerminalStatus(prop.Status) {
		return prop, nil
	}
	if err := EnsureTransition(prop.Status, StatusDeclined); err != nil {
		return prop, err
	}
	if err := p.Repo.UpdateProposalStatus(ctx, ownerID, prop.ID, StatusDeclined, "", p.timestamp()); err != nil {
		return prop, err
	}
	prop.Status = StatusDeclined
	return prop, nil
}

// ApproveConversation approves every open proposal in a conversation as ONE
// sequential batch, so pending placeholders resolve across proposals in
// submission order.
func (p Proposals) ApproveConversation(ctx context.Context, ownerID, conversationID string) (BatchResult, error) {
	open, err := p.Repo.ListProposals(ctx, ownerID, conversationID, StatusProposed)
	if err != nil {
		return BatchResult{}, err
	}
	batch := make([]Action, 0, len(open))
	for _, prop := range open {
		var a Action
		if err := json.Unmarshal([]byte(prop.ActionJSON), &a); err != nil {
			return BatchResult{}, fmt.Errorf("proposal %s: stored action is unreadable", prop.ID)
		}
		batch = append(batch, a)
	}
	for _, prop := range open {
		if err := p.Repo.UpdateProposalStatus(ctx, ownerID, prop.ID, StatusProcessing, "", p.timestamp()); err != nil {
			return BatchResult{}, err
		}
	}
	br, err := p.Exec.ExecuteBatch(ctx, ownerID, batch)
	if err != nil {
		return BatchResult{}, err
	}
	for i, prop := range open {
		res := br.Results[i]
		status := StatusApproved
		if !res.Success {
			status = StatusFailed
		}
		if err := p.Repo.UpdateProposalStatus(ctx, ownerID, prop.ID, status, res.Error, p.timestamp()); err != nil {
			return br, err
		}
	}
	return br, nil
}
