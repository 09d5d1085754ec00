package actions

import "fmt"

// PendingID is the reserved placeholder meaning "the id of the entity most
// recently created earlier in this batch".
const PendingID = "pending"

// UnresolvedDependencyError reports a pending placeholder with no qualifying
// predecessor in the batch.
type UnresolvedDependencyError struct {
	Field string
	Kind  string
}

func (e UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("No %s was created earlier in this batch to satisfy the pending %s reference", e.Kind, e.Field)
}

// Resolve substitutes pending placeholders in a's dependency slots with the
// id produced by the most recent successful creation of the matching entity
// kind among prior results. Resolution never looks outside the batch.
func Resolve(a Action, prior []Result) (Action, error) {
	spec, ok := catalog[a.Type]
	if !ok || len(spec.slots) == 0 || a.Data == nil {
		return a, nil
	}
	var resolved map[string]any
	for fieldKey, kind := range spec.slots {
		raw, ok := a.Data[fieldKey].(string)
		if !ok || raw != PendingID {
			continue
		}
		id := latestCreatedID(prior, kind)
		if id == "" {
			return a, UnresolvedDependencyError{Field: fieldKey, Kind: kind}
		}
		if resolved == nil {
			resolved = make(map[string]any, len(a.Data))
			for k, v := range a.Data {
				resolved[k] = v
			}
		}
		resolved[fieldKey] = id
	}
	if resolved != nil {
		a.Data = resolved
	}
	return a, nil
}

func latestCreatedID(results []Result, kind string) string {
	for i := len(results) - 1; i >= 0; i-- {
		r := results[i]
		if !r.Success {
			continue
		}
		if catalog[r.ActionType].creates != kind {
			continue
		}
		if id, ok := r.Data["id"].(string); ok && id != "" {
			return id
		}
	}
	return ""
}
