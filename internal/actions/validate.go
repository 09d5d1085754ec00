package actions

import "fmt"

// Validation is the outcome of checking one action's shape.
type Validation struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

// Validate checks an action's type and required fields. Pure; an invalid
// action never reaches the store.
func Validate(a Action) Validation {
	if a.Type == "" {
		return Validation{Error: "Action type is required"}
	}
	spec, ok := catalog[a.Type]
	if !ok {
		return Validation{Error: fmt.Sprintf("Unknown action type: %s", a.Type)}
	}
	needsData := len(spec.required) > 0 || spec.idField != nil
	if a.Data == nil && needsData {
		return Validation{Error: "Action data is required"}
	}
	// Id fields are only honored at the top level of data, never inside
	// the updates mapping.
	if spec.idField != nil && !present(a.Data[spec.idField.key]) {
		return Validation{Error: fmt.Sprintf("%s is required", spec.idField.label)}
	}
	updates, _ := a.Data["updates"].(map[string]any)
	for _, f := range spec.required {
		if present(a.Data[f.key]) {
			continue
		}
		if updates != nil && present(updates[f.key]) {
			continue
		}
		return Validation{Error: fmt.Sprintf("%s is required", f.label)}
	}
	return Validation{Valid: true}
}

func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	default:
		return true
	}
}
